package rockgate

import (
	"github.com/neogan74/rockgate/internal/logger"
)

// Logger re-exports the structured logger interface so library callers can
// supply their own sink without importing internal packages.
type Logger = logger.Logger

// Options configures Open. A nil *Options means DefaultOptions().
type Options struct {
	// Engine selects the storage backend: "badger" (default) or "memory".
	Engine string

	// CreateIfMissing creates the data directory and store on first open.
	CreateIfMissing bool

	// ErrorIfExists makes Open fail when the location already holds an
	// initialized store.
	ErrorIfExists bool

	// SyncWrites forces every write through the engine's WAL fsync.
	SyncWrites bool

	// QueryLimit is the default row limit for Query when QueryOptions.Limit
	// is zero. Defaults to 1000.
	QueryLimit int

	// Logger receives façade and engine log output. Defaults to a no-op
	// logger.
	Logger Logger
}

// DefaultOptions returns the options Open uses when passed nil.
func DefaultOptions() *Options {
	return &Options{
		Engine:          "badger",
		CreateIfMissing: true,
		SyncWrites:      true,
		QueryLimit:      defaultQueryLimit,
	}
}

const defaultQueryLimit = 1000

// OpType identifies a write operation within a batch or change feed.
type OpType byte

const (
	OpTypePut OpType = iota
	OpTypeDelete
)

// Operation is one entry of an atomic batch.
type Operation struct {
	Type  OpType
	Key   []byte
	Value []byte // put only
}

// Entry is a key/value row returned by iterators and queries.
type Entry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// ClearOptions bounds a Clear sweep. Start is inclusive and End exclusive
// unless the flags flip them; nil bounds clear everything.
type ClearOptions struct {
	Start        []byte
	End          []byte
	ExcludeStart bool
	IncludeEnd   bool
}

// IteratorOptions configures a cursor. Bounds and direction are immutable
// once the cursor is created.
type IteratorOptions struct {
	Start        []byte
	End          []byte
	ExcludeStart bool
	IncludeEnd   bool
	Reverse      bool

	// Limit caps the number of entries the cursor yields. Zero means
	// unlimited.
	Limit int
}

// QueryOptions configures a one-shot snapshot query.
type QueryOptions struct {
	Start        []byte
	End          []byte
	ExcludeStart bool
	IncludeEnd   bool
	Reverse      bool

	// Limit caps the returned page. Zero means the database's default
	// query limit.
	Limit int

	// Sequence pins the read snapshot when non-zero and the engine
	// supports explicit pinning; otherwise the current sequence is used.
	Sequence uint64
}

// QueryResult is one page of a snapshot query. Finished reports whether the
// range was exhausted; when false the caller resumes from the last row's key.
type QueryResult struct {
	Rows     []Entry `json:"rows"`
	Sequence uint64  `json:"sequence"`
	Finished bool    `json:"finished"`
}

// UpdateOptions configures a live update feed.
type UpdateOptions struct {
	// Since is the sequence number after which changes are delivered.
	// Zero selects the engine's current sequence, i.e. only future
	// changes; set SinceStart to replay the full history instead.
	Since      uint64
	SinceStart bool

	// Keys and Values select what each change row carries. A zero-valued
	// options struct would select nothing, which no caller means, so
	// both default to true when neither is set.
	Keys   bool
	Values bool
}

// ChangeRow is one write observed by an update feed.
type ChangeRow struct {
	Type     OpType `json:"type"`
	Key      []byte `json:"key,omitempty"`
	Value    []byte `json:"value,omitempty"`
	Sequence uint64 `json:"sequence"`
}

// UpdateBatch is an ordered group of changes delivered by a feed. Sequence
// is the number the batch advances the feed to.
type UpdateBatch struct {
	Rows     []ChangeRow `json:"rows"`
	Sequence uint64      `json:"sequence"`
	Count    int         `json:"count"`
}
