// Package engine defines the call surface of the underlying log-structured
// storage engine and its concrete adapters. The façade in the root package
// talks to storage exclusively through these interfaces.
package engine

import (
	"bytes"
	"context"
	"errors"
)

var (
	// ErrEngineClosed is returned when an operation is attempted on a closed engine.
	ErrEngineClosed = errors.New("engine closed")

	// ErrUnknownProperty is returned by GetProperty for an unrecognized name.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrAlreadyExists is returned on open when ErrorIfExists is set and the
	// location already holds an initialized store.
	ErrAlreadyExists = errors.New("store already exists")

	// ErrMissing is returned on open when CreateIfMissing is unset and the
	// location holds no initialized store.
	ErrMissing = errors.New("store does not exist")

	// ErrSequenceUnsupported is returned by NewIterator when the engine
	// cannot serve a read pinned to the requested sequence.
	ErrSequenceUnsupported = errors.New("sequence-pinned read not supported")
)

// OpKind identifies a write operation type.
type OpKind byte

const (
	OpPut OpKind = iota
	OpDelete
)

// Operation is a single entry of an atomic write batch.
type Operation struct {
	Kind  OpKind
	Key   []byte
	Value []byte // put only
}

// Entry is a key/value pair produced by iterators and queries.
type Entry struct {
	Key   []byte
	Value []byte
}

// KeyRange bounds a scan. Start is inclusive and End exclusive by default;
// the flags flip either bound. A nil bound is unbounded.
type KeyRange struct {
	Start        []byte
	End          []byte
	ExcludeStart bool
	IncludeEnd   bool
}

// IteratorOptions configures an engine-side cursor. Bounds are fixed at
// creation time.
type IteratorOptions struct {
	Range   KeyRange
	Reverse bool
	// Sequence pins the read snapshot when non-zero and the engine supports
	// explicit pinning; otherwise the snapshot is the creation-time state.
	Sequence uint64
}

// SubscribeOptions configures a change subscription.
type SubscribeOptions struct {
	// Since is the sequence number after which changes are delivered.
	// Zero means the current sequence, i.e. future changes only.
	Since  uint64
	Keys   bool
	Values bool
}

// ChangeRecord is one write observed by a subscription.
type ChangeRecord struct {
	Kind     OpKind
	Key      []byte
	Value    []byte
	Sequence uint64
}

// ChangeBatch is an ordered group of changes. Sequence is the number the
// batch advances the consumer to, i.e. the sequence of its last record.
type ChangeBatch struct {
	Records  []ChangeRecord
	Sequence uint64
	Count    int
}

// FirstSequence returns the sequence of the batch's first record, or zero
// for an empty batch.
func (b ChangeBatch) FirstSequence() uint64 {
	if len(b.Records) == 0 {
		return 0
	}
	return b.Records[0].Sequence
}

// WalFile describes one write-ahead log file of the engine.
type WalFile struct {
	Path          string `json:"path"`
	LogNumber     uint64 `json:"log_number"`
	Live          bool   `json:"live"`
	StartSequence uint64 `json:"start_sequence"`
	SizeBytes     uint64 `json:"size_bytes"`
}

// Iterator is an engine-side cursor. The usage pattern mirrors the badger
// and pebble iterators: Next advances and reports validity, Key/Value read
// the current entry, Err surfaces a failure after Next returns false.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Seek(key []byte) bool
	Err() error
	Close() error
}

// Subscription is a live ordered stream of engine write events.
type Subscription interface {
	// Next blocks until at least one change batch is available, the context
	// is cancelled, or the subscription is closed. A closed subscription
	// returns an empty batch and no error.
	Next(ctx context.Context) (ChangeBatch, error)
	Close() error
}

// Engine is the narrow surface the façade requires from a storage backend.
// Implementations must serialize writes and assign strictly increasing
// sequence numbers to them.
type Engine interface {
	Get(key []byte) ([]byte, bool, error)
	GetMany(keys [][]byte) ([][]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Clear(r KeyRange) error
	ApplyBatch(ops []Operation) error

	NewIterator(opts IteratorOptions) (Iterator, error)
	CurrentSequence() uint64
	Subscribe(opts SubscribeOptions) (Subscription, error)

	GetProperty(name string) (string, error)
	CurrentWalFile() (WalFile, error)
	SortedWalFiles() ([]WalFile, error)
	FlushWal(sync bool) error

	Close() error
}

// Contains reports whether key falls inside the range.
func (r KeyRange) Contains(key []byte) bool {
	if r.Start != nil {
		c := bytes.Compare(key, r.Start)
		if c < 0 || (c == 0 && r.ExcludeStart) {
			return false
		}
	}
	if r.End != nil {
		c := bytes.Compare(key, r.End)
		if c > 0 || (c == 0 && !r.IncludeEnd) {
			return false
		}
	}
	return true
}

// Before reports whether key precedes the range (in forward order).
func (r KeyRange) Before(key []byte) bool {
	if r.Start == nil {
		return false
	}
	c := bytes.Compare(key, r.Start)
	return c < 0 || (c == 0 && r.ExcludeStart)
}

// After reports whether key follows the range (in forward order).
func (r KeyRange) After(key []byte) bool {
	if r.End == nil {
		return false
	}
	c := bytes.Compare(key, r.End)
	return c > 0 || (c == 0 && !r.IncludeEnd)
}
