package rockgate

import (
	"context"
	"fmt"
	"sync"

	"github.com/neogan74/rockgate/internal/engine"
	"github.com/neogan74/rockgate/internal/metrics"
)

// queryCursor is the transient resource a snapshot query holds while it
// pulls rows. Tracking it lets a concurrent database close cancel the scan;
// the mutex keeps the engine cursor from being released mid-pull.
type queryCursor struct {
	mu        sync.Mutex
	it        engine.Iterator
	cancelled bool
}

// next pulls one row, or reports that the scan is over. ok is false on
// exhaustion, cancellation and error alike; the caller checks cancelled and
// the iterator's Err.
func (q *queryCursor) next() (entry Entry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelled || !q.it.Next() {
		return Entry{}, false
	}
	return Entry{
		Key:   append([]byte(nil), q.it.Key()...),
		Value: append([]byte(nil), q.it.Value()...),
	}, true
}

func (q *queryCursor) hasMore() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.cancelled && q.it.Next()
}

// release closes the engine cursor exactly once. Both the query's own exit
// path and the database close sweep funnel through it.
func (q *queryCursor) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelled {
		return
	}
	q.cancelled = true
	_ = q.it.Close()
}

func (q *queryCursor) forceClose() {
	q.release()
}

// Query runs a one-shot bounded scan at a fixed sequence and returns one
// page of rows. Finished=false means more rows exist past the limit; the
// caller resumes with Start set just beyond the last returned key.
func (db *DB) Query(ctx context.Context, opts QueryOptions) (QueryResult, error) {
	if err := db.requireOpen(); err != nil {
		return QueryResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return QueryResult{}, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = db.queryLimit
	}

	engIt, err := db.eng.NewIterator(engine.IteratorOptions{
		Range: engine.KeyRange{
			Start:        opts.Start,
			End:          opts.End,
			ExcludeStart: opts.ExcludeStart,
			IncludeEnd:   opts.IncludeEnd,
		},
		Reverse:  opts.Reverse,
		Sequence: opts.Sequence,
	})
	if err != nil {
		metrics.DBOperationsTotal.WithLabelValues("query", "error").Inc()
		return QueryResult{}, fmt.Errorf("rockgate: query: %w", err)
	}

	cursor := &queryCursor{it: engIt}
	id, err := db.tracker.attach("query", cursor)
	if err != nil {
		_ = engIt.Close()
		return QueryResult{}, err
	}
	// Release on every exit path; a concurrent close sweep may already have
	// done it, release is idempotent.
	defer func() {
		cursor.release()
		db.tracker.detach(id)
	}()

	sequence := opts.Sequence
	if sequence == 0 {
		sequence = db.eng.CurrentSequence()
	}

	rows := make([]Entry, 0, min(limit, 64))
	for len(rows) < limit {
		if err := ctx.Err(); err != nil {
			metrics.DBOperationsTotal.WithLabelValues("query", "error").Inc()
			return QueryResult{}, err
		}
		entry, ok := cursor.next()
		if !ok {
			break
		}
		rows = append(rows, entry)
	}

	cursor.mu.Lock()
	cancelled := cursor.cancelled
	iterErr := cursor.it.Err()
	cursor.mu.Unlock()

	if cancelled {
		metrics.DBOperationsTotal.WithLabelValues("query", "cancelled").Inc()
		return QueryResult{}, ErrNotOpen
	}
	if iterErr != nil {
		metrics.DBOperationsTotal.WithLabelValues("query", "error").Inc()
		return QueryResult{}, fmt.Errorf("rockgate: query: %w", iterErr)
	}

	finished := true
	if len(rows) == limit && cursor.hasMore() {
		finished = false
	}

	metrics.DBOperationsTotal.WithLabelValues("query", "success").Inc()
	metrics.QueryRows.Observe(float64(len(rows)))

	return QueryResult{Rows: rows, Sequence: sequence, Finished: finished}, nil
}
