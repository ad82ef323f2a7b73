package rockgate

import (
	"fmt"
	"sync"

	"github.com/neogan74/rockgate/internal/engine"
	"github.com/neogan74/rockgate/internal/metrics"
)

// ChainedBatch accumulates put and delete operations and applies them
// atomically on Write. Operations are kept in insertion order so a later
// write to a key overrides an earlier one inside the same batch. A batch is
// single-owner: it must not be shared across goroutines, though Close is
// safe against the database's own close sweep.
type ChainedBatch struct {
	db *DB
	id uint64

	mu   sync.Mutex
	ops  []engine.Operation
	done bool
}

// ChainedBatch creates an empty batch tracked by the database.
func (db *DB) ChainedBatch() (*ChainedBatch, error) {
	if err := db.requireOpen(); err != nil {
		return nil, err
	}
	b := &ChainedBatch{db: db}
	id, err := db.tracker.attach("batch", b)
	if err != nil {
		return nil, err
	}
	b.id = id
	return b, nil
}

// Put appends a put operation.
func (b *ChainedBatch) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return ErrBatchWritten
	}
	b.ops = append(b.ops, engine.Operation{Kind: engine.OpPut, Key: key, Value: value})
	return nil
}

// Delete appends a delete operation.
func (b *ChainedBatch) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return ErrBatchWritten
	}
	b.ops = append(b.ops, engine.Operation{Kind: engine.OpDelete, Key: key})
	return nil
}

// Clear drops all accumulated operations; the batch stays usable.
func (b *ChainedBatch) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return ErrBatchWritten
	}
	b.ops = b.ops[:0]
	return nil
}

// Len returns the number of accumulated operations.
func (b *ChainedBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Write applies the accumulated operations atomically and disposes of the
// batch. Any later mutation fails with ErrBatchWritten.
func (b *ChainedBatch) Write() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return ErrBatchWritten
	}
	if err := b.db.requireOpen(); err != nil {
		return err
	}
	b.done = true
	ops := b.ops
	b.ops = nil
	b.db.tracker.detach(b.id)

	if len(ops) == 0 {
		return nil
	}
	if err := b.db.eng.ApplyBatch(ops); err != nil {
		metrics.DBOperationsTotal.WithLabelValues("batch", "error").Inc()
		return fmt.Errorf("rockgate: batch write: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("batch", "success").Inc()
	return nil
}

// Close discards the batch without applying it. Closing a written or
// already closed batch is a no-op.
func (b *ChainedBatch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return nil
	}
	b.done = true
	b.ops = nil
	b.db.tracker.detach(b.id)
	return nil
}

func (b *ChainedBatch) forceClose() {
	// Nothing engine-side to release; the pending operations are dropped.
	_ = b.Close()
}
