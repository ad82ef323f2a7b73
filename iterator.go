package rockgate

import (
	"sync"

	"github.com/neogan74/rockgate/internal/engine"
	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/metrics"
)

// Iterator is a lazy, range-bounded cursor over ordered key/value pairs.
//
//	it, err := db.Iterator(rockgate.IteratorOptions{Start: a, End: z})
//	...
//	defer it.Close()
//	for it.Next() {
//	    use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
//
// Exhaustion is a sentinel (Next returns false with a nil Err), not an
// error. Reads after Close report ErrIteratorClosed through Err.
type Iterator struct {
	db *DB
	id uint64

	mu     sync.Mutex
	it     engine.Iterator
	limit  int
	seen   int
	closed bool
	err    error
	key    []byte
	value  []byte
}

// Iterator creates a cursor tracked by the database. Bounds, direction and
// limit are fixed for the cursor's lifetime.
func (db *DB) Iterator(opts IteratorOptions) (*Iterator, error) {
	if err := db.requireOpen(); err != nil {
		return nil, err
	}
	engIt, err := db.eng.NewIterator(engine.IteratorOptions{
		Range: engine.KeyRange{
			Start:        opts.Start,
			End:          opts.End,
			ExcludeStart: opts.ExcludeStart,
			IncludeEnd:   opts.IncludeEnd,
		},
		Reverse: opts.Reverse,
	})
	if err != nil {
		metrics.DBOperationsTotal.WithLabelValues("iterator", "error").Inc()
		return nil, err
	}

	it := &Iterator{db: db, it: engIt, limit: opts.Limit}
	id, attachErr := db.tracker.attach("iterator", it)
	if attachErr != nil {
		_ = engIt.Close()
		return nil, attachErr
	}
	it.id = id
	metrics.DBOperationsTotal.WithLabelValues("iterator", "success").Inc()
	return it, nil
}

// Next advances the cursor. It returns false once the range or the limit is
// exhausted, or after the cursor was closed; Err distinguishes the cases.
func (it *Iterator) Next() bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		it.err = ErrIteratorClosed
		return false
	}
	if it.limit > 0 && it.seen >= it.limit {
		return false
	}
	if !it.it.Next() {
		it.err = it.it.Err()
		it.key, it.value = nil, nil
		return false
	}
	it.seen++
	it.key = append([]byte(nil), it.it.Key()...)
	it.value = append([]byte(nil), it.it.Value()...)
	return true
}

// Seek repositions the cursor at the first entry at or after key (at or
// before, for a reverse cursor) within the declared bounds. It fails after
// close, reported through Err.
func (it *Iterator) Seek(key []byte) bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		it.err = ErrIteratorClosed
		return false
	}
	if it.limit > 0 && it.seen >= it.limit {
		return false
	}
	if !it.it.Seek(key) {
		it.err = it.it.Err()
		it.key, it.value = nil, nil
		return false
	}
	it.seen++
	it.key = append([]byte(nil), it.it.Key()...)
	it.value = append([]byte(nil), it.it.Value()...)
	return true
}

// Key returns the current entry's key. Valid until the next advance.
func (it *Iterator) Key() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.key
}

// Value returns the current entry's value. Valid until the next advance.
func (it *Iterator) Value() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.value
}

// Err returns the first failure the cursor observed, ErrIteratorClosed
// after a read-after-close, or nil on clean exhaustion.
func (it *Iterator) Err() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.err
}

// Close releases the engine-side cursor. Closing twice is a no-op.
func (it *Iterator) Close() error {
	it.mu.Lock()
	if it.closed {
		it.mu.Unlock()
		return nil
	}
	it.closed = true
	it.key, it.value = nil, nil
	err := it.it.Close()
	it.mu.Unlock()

	it.db.tracker.detach(it.id)
	if err != nil {
		it.db.log.Warn("iterator close failed", logger.Error(err))
	}
	return err
}

func (it *Iterator) forceClose() {
	_ = it.Close()
}
