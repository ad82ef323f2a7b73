// Package rockgate is a client façade over an embedded log-structured
// key-value storage engine. It layers resource tracking, lifecycle
// sequencing and a uniform operation surface (CRUD, atomic batches, range
// iteration, snapshot queries and live update feeds) on top of a narrow
// engine interface.
package rockgate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLocation is returned when opening with an empty location.
	ErrInvalidLocation = errors.New("rockgate: location must not be empty")

	// ErrInvalidKey is returned for nil or empty keys.
	ErrInvalidKey = errors.New("rockgate: key must not be empty")

	// ErrNotOpen is returned when an operation requires an open database.
	ErrNotOpen = errors.New("rockgate: database is not open")

	// ErrIteratorClosed is reported by a cursor read after the cursor was
	// closed, directly or by a database close.
	ErrIteratorClosed = errors.New("rockgate: iterator is closed")

	// ErrBatchWritten is returned when a chained batch is mutated after
	// Write or Close.
	ErrBatchWritten = errors.New("rockgate: batch already written or closed")

	// ErrInvalidSequence is returned when a requested sequence lies beyond
	// the engine's current write sequence.
	ErrInvalidSequence = errors.New("rockgate: sequence is beyond the current write sequence")
)

// SequenceGapError reports a hole in an update feed's sequence numbers.
// It is fatal to the feed that observed it: every subsequent Next call
// returns the same error.
type SequenceGapError struct {
	Expected uint64
	Got      uint64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("rockgate: update feed sequence gap: expected %d, got %d", e.Expected, e.Got)
}

// IsSequenceGap checks if an error is a feed sequence gap
func IsSequenceGap(err error) bool {
	var gap *SequenceGapError
	return errors.As(err, &gap)
}
