package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/rockgate"
	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/middleware"
)

// BatchHandler applies ordered multi-operation writes atomically.
type BatchHandler struct {
	db *rockgate.DB
}

func NewBatchHandler(db *rockgate.DB) *BatchHandler {
	return &BatchHandler{db: db}
}

// BatchOp is one operation of a batch request, applied in list order.
type BatchOp struct {
	Type  string `json:"type"` // "put" or "delete"
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// BatchRequest is an ordered list of operations to apply atomically.
type BatchRequest struct {
	Operations []BatchOp `json:"operations"`
}

// BatchResponse reports the applied batch.
type BatchResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (h *BatchHandler) Apply(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}
	if len(req.Operations) == 0 {
		return middleware.BadRequest(c, "operations must not be empty")
	}

	ops := make([]rockgate.Operation, len(req.Operations))
	for i, op := range req.Operations {
		switch op.Type {
		case "put":
			ops[i] = rockgate.Operation{Type: rockgate.OpTypePut, Key: []byte(op.Key), Value: []byte(op.Value)}
		case "delete":
			ops[i] = rockgate.Operation{Type: rockgate.OpTypeDelete, Key: []byte(op.Key)}
		default:
			return middleware.BadRequest(c, "operation type must be put or delete")
		}
	}

	if err := h.db.Batch(ops); err != nil {
		return translateError(c, err)
	}

	log.Info("Batch applied", logger.Int("operations", len(ops)))
	return c.JSON(BatchResponse{Message: "batch applied", Count: len(ops)})
}
