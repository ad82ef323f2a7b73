package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/rockgate"
	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/middleware"
)

// KVHandler exposes the database façade's point operations over HTTP.
type KVHandler struct {
	db *rockgate.DB
}

func NewKVHandler(db *rockgate.DB) *KVHandler {
	return &KVHandler{db: db}
}

func (h *KVHandler) Get(c *fiber.Ctx) error {
	key := c.Params("key")
	log := middleware.GetLogger(c)

	value, found, err := h.db.Get(c.Context(), []byte(key))
	if err != nil {
		return translateError(c, err)
	}
	if !found {
		log.Debug("Key not found", logger.String("key", key))
		return middleware.NotFound(c, "Key not found")
	}

	return c.JSON(fiber.Map{"key": key, "value": string(value)})
}

func (h *KVHandler) Set(c *fiber.Ctx) error {
	key := c.Params("key")
	log := middleware.GetLogger(c)

	body := struct {
		Value string `json:"value"`
	}{}
	if err := c.BodyParser(&body); err != nil {
		log.Error("Failed to parse request body",
			logger.String("key", key),
			logger.Error(err))
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	if err := h.db.Put([]byte(key), []byte(body.Value)); err != nil {
		return translateError(c, err)
	}

	log.Info("Key stored", logger.String("key", key))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key, "value": body.Value})
}

func (h *KVHandler) Delete(c *fiber.Ctx) error {
	key := c.Params("key")

	if err := h.db.Delete([]byte(key)); err != nil {
		return translateError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetManyRequest asks for multiple keys at once.
type GetManyRequest struct {
	Keys []string `json:"keys"`
}

// GetManyResponse pairs found keys with values and lists the missing ones.
type GetManyResponse struct {
	Found    map[string]string `json:"found"`
	NotFound []string          `json:"not_found"`
}

func (h *KVHandler) GetMany(c *fiber.Ctx) error {
	var req GetManyRequest
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}
	if len(req.Keys) == 0 {
		return middleware.BadRequest(c, "keys must not be empty")
	}

	keys := make([][]byte, len(req.Keys))
	for i, k := range req.Keys {
		keys[i] = []byte(k)
	}

	values, err := h.db.GetMany(c.Context(), keys)
	if err != nil {
		return translateError(c, err)
	}

	resp := GetManyResponse{Found: make(map[string]string)}
	for i, val := range values {
		if val == nil {
			resp.NotFound = append(resp.NotFound, req.Keys[i])
			continue
		}
		resp.Found[req.Keys[i]] = string(val)
	}
	return c.JSON(resp)
}

func (h *KVHandler) Clear(c *fiber.Ctx) error {
	opts := rockgate.ClearOptions{}
	if start := c.Query("start"); start != "" {
		opts.Start = []byte(start)
	}
	if end := c.Query("end"); end != "" {
		opts.End = []byte(end)
	}

	if err := h.db.Clear(opts); err != nil {
		return translateError(c, err)
	}
	return c.JSON(fiber.Map{"message": "range cleared"})
}

// QueryRow is one key/value pair of a query page.
type QueryRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// QueryResponse is one page of a snapshot query.
type QueryResponse struct {
	Rows     []QueryRow `json:"rows"`
	Sequence uint64     `json:"sequence"`
	Finished bool       `json:"finished"`
}

func (h *KVHandler) Query(c *fiber.Ctx) error {
	opts := rockgate.QueryOptions{}
	if start := c.Query("start"); start != "" {
		opts.Start = []byte(start)
	}
	if end := c.Query("end"); end != "" {
		opts.End = []byte(end)
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return middleware.BadRequest(c, "limit must be a positive integer")
		}
		opts.Limit = limit
	}
	opts.Reverse = c.Query("reverse", "false") == "true"
	opts.ExcludeStart = c.Query("exclude_start", "false") == "true"

	result, err := h.db.Query(c.Context(), opts)
	if err != nil {
		return translateError(c, err)
	}

	resp := QueryResponse{
		Rows:     make([]QueryRow, len(result.Rows)),
		Sequence: result.Sequence,
		Finished: result.Finished,
	}
	for i, row := range result.Rows {
		resp.Rows[i] = QueryRow{Key: string(row.Key), Value: string(row.Value)}
	}
	return c.JSON(resp)
}

// translateError maps façade errors onto HTTP status codes.
func translateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, rockgate.ErrInvalidKey), errors.Is(err, rockgate.ErrInvalidLocation):
		return middleware.BadRequest(c, err.Error())
	case errors.Is(err, rockgate.ErrNotOpen):
		return middleware.ServiceUnavailable(c, "database is not open")
	default:
		return middleware.InternalServerError(c, err.Error())
	}
}
