package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/contrib/websocket"

	"github.com/neogan74/rockgate"
	"github.com/neogan74/rockgate/internal/logger"
)

// UpdatesHandler streams the database's change feed over WebSocket.
type UpdatesHandler struct {
	db  *rockgate.DB
	log logger.Logger
}

func NewUpdatesHandler(db *rockgate.DB, log logger.Logger) *UpdatesHandler {
	return &UpdatesHandler{db: db, log: log}
}

// UpdateRowMessage is one change row as sent on the wire.
type UpdateRowMessage struct {
	Type     string `json:"type"`
	Key      string `json:"key,omitempty"`
	Value    string `json:"value,omitempty"`
	Sequence uint64 `json:"sequence"`
}

// UpdateBatchMessage is one feed batch as sent on the wire.
type UpdateBatchMessage struct {
	Rows     []UpdateRowMessage `json:"rows"`
	Sequence uint64             `json:"sequence"`
	Count    int                `json:"count"`
}

// UpdatesWebSocket upgrades the connection and forwards feed batches until
// the client disconnects, the database closes, or the feed fails.
func (h *UpdatesHandler) UpdatesWebSocket(c *websocket.Conn) {
	opts := rockgate.UpdateOptions{}
	if sinceStr := c.Query("since"); sinceStr != "" {
		since, err := strconv.ParseUint(sinceStr, 10, 64)
		if err != nil {
			_ = c.WriteJSON(map[string]string{"error": "since must be an unsigned integer"})
			return
		}
		opts.Since = since
		opts.SinceStart = since == 0
	}

	feed, err := h.db.Updates(opts)
	if err != nil {
		h.log.Error("Failed to open update feed", logger.Error(err))
		_ = c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer feed.Close()

	h.log.Info("Update feed connection established",
		logger.Uint64("since", opts.Since))

	// Watch the socket so a client disconnect cancels the blocked Next.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		batch, err := feed.Next(ctx)
		if err != nil {
			if rockgate.IsSequenceGap(err) {
				h.log.Error("Update feed protocol violation", logger.Error(err))
				_ = c.WriteJSON(map[string]string{"error": err.Error()})
			}
			return
		}
		if batch.Count == 0 {
			// Feed closed underneath us (database close).
			return
		}

		msg := UpdateBatchMessage{
			Rows:     make([]UpdateRowMessage, len(batch.Rows)),
			Sequence: batch.Sequence,
			Count:    batch.Count,
		}
		for i, row := range batch.Rows {
			kind := "put"
			if row.Type == rockgate.OpTypeDelete {
				kind = "delete"
			}
			msg.Rows[i] = UpdateRowMessage{
				Type:     kind,
				Key:      string(row.Key),
				Value:    string(row.Value),
				Sequence: row.Sequence,
			}
		}

		if err := c.WriteJSON(msg); err != nil {
			h.log.Debug("Update feed client went away", logger.Error(err))
			return
		}
	}
}
