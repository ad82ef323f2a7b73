package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/rockgate"
	"github.com/neogan74/rockgate/internal/middleware"
)

// AdminHandler exposes engine introspection: properties, sequence numbers
// and the write-ahead log surface.
type AdminHandler struct {
	db      *rockgate.DB
	version string
}

func NewAdminHandler(db *rockgate.DB, version string) *AdminHandler {
	return &AdminHandler{db: db, version: version}
}

func (h *AdminHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"version":  h.version,
		"sequence": h.db.Sequence(),
	})
}

func (h *AdminHandler) GetProperty(c *fiber.Ctx) error {
	name := c.Params("name")

	value, err := h.db.GetProperty("rockgate." + name)
	if err != nil {
		return middleware.NotFound(c, err.Error())
	}
	return c.JSON(fiber.Map{"name": name, "value": value})
}

func (h *AdminHandler) Sequence(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"sequence": h.db.Sequence()})
}

func (h *AdminHandler) CurrentWalFile(c *fiber.Ctx) error {
	wf, err := h.db.CurrentWalFile()
	if err != nil {
		return translateError(c, err)
	}
	return c.JSON(wf)
}

func (h *AdminHandler) SortedWalFiles(c *fiber.Ctx) error {
	files, err := h.db.SortedWalFiles()
	if err != nil {
		return translateError(c, err)
	}
	return c.JSON(fiber.Map{"files": files, "count": len(files)})
}

func (h *AdminHandler) FlushWal(c *fiber.Ctx) error {
	sync := c.Query("sync", "true") == "true"

	if err := h.db.FlushWal(sync); err != nil {
		return translateError(c, err)
	}
	return c.JSON(fiber.Map{"message": "wal flushed", "sync": sync})
}
