package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"

	"github.com/neogan74/rockgate/internal/logger"
)

// BadgerEngine implements Engine on top of BadgerDB, a log-structured
// merge-tree store with a value log acting as the write-ahead log.
type BadgerEngine struct {
	db   *badger.DB
	dir  string
	log  logger.Logger
	done chan struct{}
	wg   sync.WaitGroup
}

// BadgerConfig controls how the BadgerDB engine is opened.
type BadgerConfig struct {
	DataDir         string
	SyncWrites      bool
	CreateIfMissing bool
	ErrorIfExists   bool
}

// NewBadgerEngine opens a BadgerDB-backed engine at cfg.DataDir.
func NewBadgerEngine(cfg BadgerConfig, log logger.Logger) (*BadgerEngine, error) {
	initialized, err := storeInitialized(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect data directory: %w", err)
	}
	if initialized && cfg.ErrorIfExists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, cfg.DataDir)
	}
	if !initialized {
		if !cfg.CreateIfMissing {
			return nil, fmt.Errorf("%w: %s", ErrMissing, cfg.DataDir)
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	opts := badger.DefaultOptions(cfg.DataDir)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil // Badger's own logging is too chatty; we log at this layer

	opts.ValueLogFileSize = 64 << 20 // 64MB value log files
	opts.MemTableSize = 64 << 20     // 64MB memtable
	opts.NumMemtables = 5
	opts.NumLevelZeroTables = 5
	opts.NumLevelZeroTablesStall = 10
	opts.Compression = 1 // Snappy

	// Change subscriptions replay history by version, so old versions must
	// survive compaction.
	opts.NumVersionsToKeep = math.MaxInt32

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	engine := &BadgerEngine{
		db:   db,
		dir:  cfg.DataDir,
		log:  log,
		done: make(chan struct{}),
	}

	engine.wg.Add(1)
	go engine.runGarbageCollection()

	log.Info("BadgerDB engine opened",
		logger.String("data_dir", cfg.DataDir),
		logger.Bool("sync_writes", cfg.SyncWrites))

	return engine, nil
}

// storeInitialized reports whether dir already holds a badger store.
func storeInitialized(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, "MANIFEST"))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *BadgerEngine) runGarbageCollection() {
	defer b.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.log.Warn("BadgerDB garbage collection failed", logger.Error(err))
			}
		}
	}
}

func (b *BadgerEngine) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *BadgerEngine) GetMany(keys [][]byte) ([][]byte, error) {
	values := make([][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			values[i], err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (b *BadgerEngine) Put(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerEngine) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *BadgerEngine) Clear(r KeyRange) error {
	// Collect matching keys first, then delete them in one transaction so
	// readers never observe a partially cleared range.
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if r.After(key) {
				break
			}
			if r.Contains(key) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerEngine) ApplyBatch(ops []Operation) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			switch op.Kind {
			case OpPut:
				err = txn.Set(op.Key, op.Value)
			case OpDelete:
				err = txn.Delete(op.Key)
			default:
				err = fmt.Errorf("unknown operation kind: %d", op.Kind)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerEngine) NewIterator(opts IteratorOptions) (Iterator, error) {
	// Read transactions snapshot at creation; badger cannot rewind to an
	// arbitrary earlier version outside managed mode.
	if opts.Sequence > 0 {
		return nil, fmt.Errorf("%w: badger reads only the current snapshot", ErrSequenceUnsupported)
	}
	txn := b.db.NewTransaction(false)
	iopts := badger.DefaultIteratorOptions
	iopts.Reverse = opts.Reverse
	it := txn.NewIterator(iopts)

	return &badgerIterator{
		txn:     txn,
		it:      it,
		rng:     opts.Range,
		reverse: opts.Reverse,
	}, nil
}

func (b *BadgerEngine) CurrentSequence() uint64 {
	return b.db.MaxVersion()
}

func (b *BadgerEngine) Subscribe(opts SubscribeOptions) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &badgerSub{
		engine:  b,
		cancel:  cancel,
		batches: make(chan ChangeBatch, 64),
		done:    make(chan struct{}),
	}
	sub.floor.Store(b.db.MaxVersion())

	// Replay committed history past the requested sequence before going live.
	if opts.Since < sub.floor.Load() {
		replay, err := b.changesSince(opts.Since, opts)
		if err != nil {
			cancel()
			return nil, err
		}
		if len(replay) > 0 {
			sub.pending = ChangeBatch{
				Records:  replay,
				Sequence: replay[len(replay)-1].Sequence,
				Count:    len(replay),
			}
			sub.floor.Store(opts.Since)
		}
	}

	sub.wg.Add(1)
	go sub.run(ctx, opts)

	return sub, nil
}

// changesSince reads all key versions above seq from the LSM tree, ordered
// by commit version.
func (b *BadgerEngine) changesSince(seq uint64, opts SubscribeOptions) ([]ChangeRecord, error) {
	var records []ChangeRecord
	err := b.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.AllVersions = true
		iopts.PrefetchValues = opts.Values
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if item.Version() <= seq {
				continue
			}
			rec := ChangeRecord{Sequence: item.Version()}
			if item.IsDeletedOrExpired() {
				rec.Kind = OpDelete
			}
			if opts.Keys {
				rec.Key = item.KeyCopy(nil)
			}
			if opts.Values && rec.Kind == OpPut {
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				rec.Value = val
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Sequence < records[j].Sequence })
	return records, nil
}

func (b *BadgerEngine) GetProperty(name string) (string, error) {
	switch name {
	case "rockgate.engine":
		return "badger", nil
	case "rockgate.sequence":
		return strconv.FormatUint(b.db.MaxVersion(), 10), nil
	case "rockgate.lsm-size":
		lsm, _ := b.db.Size()
		return strconv.FormatInt(lsm, 10), nil
	case "rockgate.vlog-size":
		_, vlog := b.db.Size()
		return strconv.FormatInt(vlog, 10), nil
	case "rockgate.levels":
		return b.db.LevelsToString(), nil
	case "rockgate.tables":
		return strconv.Itoa(len(b.db.Tables())), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
}

func (b *BadgerEngine) CurrentWalFile() (WalFile, error) {
	files, err := b.SortedWalFiles()
	if err != nil {
		return WalFile{}, err
	}
	for i := len(files) - 1; i >= 0; i-- {
		if files[i].Live {
			return files[i], nil
		}
	}
	if len(files) == 0 {
		return WalFile{}, fmt.Errorf("no write-ahead log files at %s", b.dir)
	}
	return files[len(files)-1], nil
}

// SortedWalFiles lists badger's durability files, ascending by log number:
// value log segments plus the memtable WALs, of which the highest-numbered
// one is live.
func (b *BadgerEngine) SortedWalFiles() ([]WalFile, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var files []WalFile
	maxMem := uint64(0)
	for _, entry := range entries {
		name := entry.Name()
		var num uint64
		switch {
		case strings.HasSuffix(name, ".mem"):
			num, err = strconv.ParseUint(strings.TrimSuffix(name, ".mem"), 10, 64)
		case strings.HasSuffix(name, ".vlog"):
			num, err = strconv.ParseUint(strings.TrimSuffix(name, ".vlog"), 10, 64)
		default:
			continue
		}
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if strings.HasSuffix(name, ".mem") && num > maxMem {
			maxMem = num
		}
		files = append(files, WalFile{
			Path:      filepath.Join(b.dir, name),
			LogNumber: num,
			SizeBytes: uint64(info.Size()),
		})
	}
	for i := range files {
		if strings.HasSuffix(files[i].Path, ".mem") && files[i].LogNumber == maxMem {
			files[i].Live = true
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].LogNumber < files[j].LogNumber })
	return files, nil
}

func (b *BadgerEngine) FlushWal(sync bool) error {
	if !sync {
		return nil
	}
	return b.db.Sync()
}

func (b *BadgerEngine) Close() error {
	close(b.done)
	b.wg.Wait()
	return b.db.Close()
}

// badgerIterator adapts badger's seek-style iterator to the Next-driven
// Iterator contract, enforcing the range bounds badger lacks natively.
type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	rng     KeyRange
	reverse bool
	started bool
	closed  bool
	key     []byte
	value   []byte
	err     error
}

func (it *badgerIterator) Next() bool {
	if it.closed {
		return false
	}
	if !it.started {
		it.started = true
		it.rewind()
	} else {
		it.it.Next()
	}
	return it.settle()
}

// rewind positions the underlying iterator at the range's first key in
// iteration order.
func (it *badgerIterator) rewind() {
	if it.reverse {
		if it.rng.End != nil {
			it.it.Seek(it.rng.End)
		} else {
			it.it.Rewind()
		}
		return
	}
	if it.rng.Start != nil {
		it.it.Seek(it.rng.Start)
	} else {
		it.it.Rewind()
	}
}

// settle skips keys outside the range and loads the current entry.
func (it *badgerIterator) settle() bool {
	for it.it.Valid() {
		key := it.it.Item().KeyCopy(nil)
		passed := it.rng.After(key)
		short := it.rng.Before(key)
		if it.reverse {
			passed, short = short, passed
		}
		if passed {
			break
		}
		if short {
			it.it.Next()
			continue
		}
		val, err := it.it.Item().ValueCopy(nil)
		if err != nil {
			it.err = err
			return false
		}
		it.key, it.value = key, val
		return true
	}
	it.key, it.value = nil, nil
	return false
}

func (it *badgerIterator) Key() []byte {
	return it.key
}

func (it *badgerIterator) Value() []byte {
	return it.value
}

func (it *badgerIterator) Seek(key []byte) bool {
	if it.closed {
		return false
	}
	it.started = true
	it.it.Seek(key)
	return it.settle()
}

func (it *badgerIterator) Err() error {
	return it.err
}

func (it *badgerIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.it.Close()
	it.txn.Discard()
	return nil
}

// badgerSub bridges badger's push-style Subscribe callback to the
// pull-style Subscription contract.
type badgerSub struct {
	engine  *BadgerEngine
	cancel  context.CancelFunc
	batches chan ChangeBatch
	done    chan struct{}
	wg      sync.WaitGroup

	// pending is a replayed history batch delivered before live changes.
	pending ChangeBatch
	// floor is the highest sequence already delivered or replayed; live
	// records at or below it are duplicates and dropped.
	floor     atomic.Uint64
	closeOnce sync.Once
}

func (s *badgerSub) run(ctx context.Context, opts SubscribeOptions) {
	defer s.wg.Done()
	defer close(s.done)

	err := s.engine.db.Subscribe(ctx, func(list *badger.KVList) error {
		batch := s.convert(list, opts)
		if batch.Count == 0 {
			return nil
		}
		select {
		case s.batches <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, []pb.Match{{Prefix: nil}})

	if err != nil && !errors.Is(err, context.Canceled) {
		s.engine.log.Warn("change subscription terminated", logger.Error(err))
	}
}

// badgerInternalPrefix is the banned namespace badger reserves for its own
// bookkeeping keys (transaction markers); commits surface them on the
// publisher alongside user entries.
var badgerInternalPrefix = []byte("!badger!")

// badgerBitDelete is badger's meta flag marking a tombstone entry. Value
// emptiness is not a delete signal; empty-value puts are legal.
const badgerBitDelete byte = 1 << 0

func (s *badgerSub) convert(list *badger.KVList, opts SubscribeOptions) ChangeBatch {
	var batch ChangeBatch
	floor := s.floor.Load()
	for _, kv := range list.Kv {
		if kv.Version <= floor {
			continue
		}
		if bytes.HasPrefix(kv.Key, badgerInternalPrefix) {
			continue
		}
		rec := ChangeRecord{Sequence: kv.Version}
		if len(kv.Meta) > 0 && kv.Meta[0]&badgerBitDelete != 0 {
			rec.Kind = OpDelete
		}
		if opts.Keys {
			rec.Key = kv.Key
		}
		if opts.Values && rec.Kind == OpPut {
			rec.Value = kv.Value
		}
		batch.Records = append(batch.Records, rec)
		batch.Sequence = kv.Version
	}
	batch.Count = len(batch.Records)
	return batch
}

func (s *badgerSub) Next(ctx context.Context) (ChangeBatch, error) {
	if s.pending.Count > 0 {
		batch := s.pending
		s.pending = ChangeBatch{}
		s.floor.Store(batch.Sequence)
		return batch, nil
	}
	select {
	case batch := <-s.batches:
		s.floor.Store(batch.Sequence)
		return batch, nil
	case <-s.done:
		// Drain anything the subscriber goroutine buffered before exit.
		select {
		case batch := <-s.batches:
			s.floor.Store(batch.Sequence)
			return batch, nil
		default:
			return ChangeBatch{}, nil
		}
	case <-ctx.Done():
		return ChangeBatch{}, ctx.Err()
	}
}

func (s *badgerSub) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}
