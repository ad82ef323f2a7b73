package rockgate

import (
	"context"
	"fmt"
	"sync"

	"github.com/neogan74/rockgate/internal/engine"
	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/metrics"
)

type status int

const (
	statusNew status = iota
	statusOpening
	statusOpen
	statusClosing
	statusClosed
)

// WalFile describes one write-ahead log file of the engine.
type WalFile struct {
	Path          string `json:"path"`
	LogNumber     uint64 `json:"log_number"`
	Live          bool   `json:"live"`
	StartSequence uint64 `json:"start_sequence"`
	SizeBytes     uint64 `json:"size_bytes"`
}

// DB is an open database handle. It exclusively owns one engine context and
// tracks every dependent resource (iterators, batches, feeds) so Close can
// tear them down before releasing the engine.
type DB struct {
	mu       sync.Mutex
	status   status
	closedCh chan struct{}

	location   string
	eng        engine.Engine
	tracker    *resourceTracker
	log        logger.Logger
	queryLimit int
}

// Open opens the database at location. A nil opts means DefaultOptions().
// The engine enforces single-owner exclusivity on the location; Open never
// issues two concurrent opens for one handle because it creates the handle.
func Open(location string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	engineType := opts.Engine
	if engineType == "" {
		engineType = "badger"
	}
	if engineType != "memory" && location == "" {
		return nil, ErrInvalidLocation
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	queryLimit := opts.QueryLimit
	if queryLimit <= 0 {
		queryLimit = defaultQueryLimit
	}

	db := &DB{
		status:     statusOpening,
		closedCh:   make(chan struct{}),
		location:   location,
		tracker:    newResourceTracker(),
		log:        log,
		queryLimit: queryLimit,
	}

	eng, err := engine.New(engine.Config{
		Type:            engineType,
		DataDir:         location,
		SyncWrites:      opts.SyncWrites,
		CreateIfMissing: opts.CreateIfMissing,
		ErrorIfExists:   opts.ErrorIfExists,
	}, log)
	if err != nil {
		db.status = statusClosed
		metrics.DBOperationsTotal.WithLabelValues("open", "error").Inc()
		return nil, fmt.Errorf("rockgate: open %s: %w", location, err)
	}

	db.eng = eng
	db.status = statusOpen
	metrics.DBOperationsTotal.WithLabelValues("open", "success").Inc()
	metrics.OpenDatabases.Inc()

	log.Info("database opened",
		logger.String("location", location),
		logger.String("engine", engineType),
		logger.Uint64("sequence", eng.CurrentSequence()))

	return db, nil
}

// Location returns the path the database was opened at.
func (db *DB) Location() string {
	return db.location
}

// Sequence returns the engine's latest write sequence number.
func (db *DB) Sequence() uint64 {
	if db.requireOpen() != nil {
		return 0
	}
	return db.eng.CurrentSequence()
}

func (db *DB) requireOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.status != statusOpen {
		return ErrNotOpen
	}
	return nil
}

// Get returns the value stored under key. Absence is a value: a missing key
// yields (nil, false, nil), never an error.
func (db *DB) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, ErrInvalidKey
	}
	if err := db.requireOpen(); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	value, found, err := db.eng.Get(key)
	switch {
	case err != nil:
		metrics.DBOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, false, fmt.Errorf("rockgate: get: %w", err)
	case !found:
		metrics.DBOperationsTotal.WithLabelValues("get", "not_found").Inc()
		return nil, false, nil
	default:
		metrics.DBOperationsTotal.WithLabelValues("get", "success").Inc()
		return value, true, nil
	}
}

// GetMany returns the values for keys in order. Missing keys yield nil
// entries.
func (db *DB) GetMany(ctx context.Context, keys [][]byte) ([][]byte, error) {
	for _, key := range keys {
		if len(key) == 0 {
			return nil, ErrInvalidKey
		}
	}
	if err := db.requireOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values, err := db.eng.GetMany(keys)
	if err != nil {
		metrics.DBOperationsTotal.WithLabelValues("get_many", "error").Inc()
		return nil, fmt.Errorf("rockgate: get many: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("get_many", "success").Inc()
	return values, nil
}

// Put stores value under key.
func (db *DB) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	if err := db.requireOpen(); err != nil {
		return err
	}
	if err := db.eng.Put(key, value); err != nil {
		metrics.DBOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("rockgate: put: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("put", "success").Inc()
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	if err := db.requireOpen(); err != nil {
		return err
	}
	if err := db.eng.Delete(key); err != nil {
		metrics.DBOperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("rockgate: delete: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// Clear atomically removes every key inside the given range.
func (db *DB) Clear(opts ClearOptions) error {
	if err := db.requireOpen(); err != nil {
		return err
	}
	r := engine.KeyRange{
		Start:        opts.Start,
		End:          opts.End,
		ExcludeStart: opts.ExcludeStart,
		IncludeEnd:   opts.IncludeEnd,
	}
	if err := db.eng.Clear(r); err != nil {
		metrics.DBOperationsTotal.WithLabelValues("clear", "error").Inc()
		return fmt.Errorf("rockgate: clear: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("clear", "success").Inc()
	return nil
}

// Batch applies ops atomically in insertion order: no reader observes a
// partially applied batch, and a later op on a key overrides an earlier one.
func (db *DB) Batch(ops []Operation) error {
	converted, err := convertOps(ops)
	if err != nil {
		return err
	}
	if err := db.requireOpen(); err != nil {
		return err
	}
	if len(converted) == 0 {
		return nil
	}
	if err := db.eng.ApplyBatch(converted); err != nil {
		metrics.DBOperationsTotal.WithLabelValues("batch", "error").Inc()
		return fmt.Errorf("rockgate: batch: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("batch", "success").Inc()
	return nil
}

func convertOps(ops []Operation) ([]engine.Operation, error) {
	converted := make([]engine.Operation, 0, len(ops))
	for _, op := range ops {
		if len(op.Key) == 0 {
			return nil, ErrInvalidKey
		}
		switch op.Type {
		case OpTypePut:
			converted = append(converted, engine.Operation{Kind: engine.OpPut, Key: op.Key, Value: op.Value})
		case OpTypeDelete:
			converted = append(converted, engine.Operation{Kind: engine.OpDelete, Key: op.Key})
		default:
			return nil, fmt.Errorf("rockgate: unknown operation type: %d", op.Type)
		}
	}
	return converted, nil
}

// GetProperty reads an engine introspection property. It is synchronous and
// fails fast when the database is not open; it is never queued behind
// pending asynchronous work.
func (db *DB) GetProperty(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("rockgate: property name must not be empty")
	}
	if err := db.requireOpen(); err != nil {
		return "", err
	}
	value, err := db.eng.GetProperty(name)
	if err != nil {
		return "", fmt.Errorf("rockgate: property %s: %w", name, err)
	}
	return value, nil
}

// CurrentWalFile returns the write-ahead log file currently being written.
func (db *DB) CurrentWalFile() (WalFile, error) {
	if err := db.requireOpen(); err != nil {
		return WalFile{}, err
	}
	wf, err := db.eng.CurrentWalFile()
	if err != nil {
		return WalFile{}, fmt.Errorf("rockgate: current wal file: %w", err)
	}
	return walFileFromEngine(wf), nil
}

// SortedWalFiles returns the engine's log files ascending by log number.
func (db *DB) SortedWalFiles() ([]WalFile, error) {
	if err := db.requireOpen(); err != nil {
		return nil, err
	}
	files, err := db.eng.SortedWalFiles()
	if err != nil {
		return nil, fmt.Errorf("rockgate: sorted wal files: %w", err)
	}
	out := make([]WalFile, len(files))
	for i, wf := range files {
		out[i] = walFileFromEngine(wf)
	}
	return out, nil
}

// FlushWal persists buffered log writes; with sync it also fsyncs them.
func (db *DB) FlushWal(sync bool) error {
	if err := db.requireOpen(); err != nil {
		return err
	}
	if err := db.eng.FlushWal(sync); err != nil {
		metrics.DBOperationsTotal.WithLabelValues("flush_wal", "error").Inc()
		return fmt.Errorf("rockgate: flush wal: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("flush_wal", "success").Inc()
	return nil
}

func walFileFromEngine(wf engine.WalFile) WalFile {
	return WalFile{
		Path:          wf.Path,
		LogNumber:     wf.LogNumber,
		Live:          wf.Live,
		StartSequence: wf.StartSequence,
		SizeBytes:     wf.SizeBytes,
	}
}

// Close tears the database down: it refuses new resource creation, force
// closes every tracked resource, waits for those closes to settle, then
// releases the engine. It is idempotent; concurrent callers block until the
// first close completes.
func (db *DB) Close() error {
	db.mu.Lock()
	switch db.status {
	case statusClosed:
		db.mu.Unlock()
		return nil
	case statusClosing:
		db.mu.Unlock()
		<-db.closedCh
		return nil
	}
	db.status = statusClosing
	db.mu.Unlock()

	db.log.Info("closing database",
		logger.String("location", db.location),
		logger.Int("live_resources", db.tracker.count()))

	// Child close failures are logged inside each resource and swallowed:
	// the sweep is best effort but exhaustive, and never blocks the close.
	db.tracker.closeAll(db.log)

	err := db.eng.Close()

	db.mu.Lock()
	db.status = statusClosed
	db.mu.Unlock()
	close(db.closedCh)
	metrics.OpenDatabases.Dec()

	if err != nil {
		metrics.DBOperationsTotal.WithLabelValues("close", "error").Inc()
		return fmt.Errorf("rockgate: close: %w", err)
	}
	metrics.DBOperationsTotal.WithLabelValues("close", "success").Inc()
	db.log.Info("database closed", logger.String("location", db.location))
	return nil
}
