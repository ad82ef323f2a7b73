package engine

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryEngine is an in-memory implementation of Engine. It keeps the full
// change history so subscriptions can replay from any past sequence, which
// makes it the engine of choice for tests and for running without a data
// directory.
type MemoryEngine struct {
	mu           sync.RWMutex
	data         map[string][]byte
	seq          uint64
	history      []ChangeRecord
	subs         map[int]*memorySub
	nextSubID    int
	bytesWritten uint64
	closed       bool
}

// NewMemoryEngine creates a new in-memory engine
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		data: make(map[string][]byte),
		subs: make(map[int]*memorySub),
	}
}

func (m *MemoryEngine) Get(key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, false, ErrEngineClosed
	}
	val, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

func (m *MemoryEngine) GetMany(keys [][]byte) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrEngineClosed
	}
	values := make([][]byte, len(keys))
	for i, key := range keys {
		if val, ok := m.data[string(key)]; ok {
			values[i] = append([]byte(nil), val...)
		}
	}
	return values, nil
}

func (m *MemoryEngine) Put(key, value []byte) error {
	return m.ApplyBatch([]Operation{{Kind: OpPut, Key: key, Value: value}})
}

func (m *MemoryEngine) Delete(key []byte) error {
	return m.ApplyBatch([]Operation{{Kind: OpDelete, Key: key}})
}

func (m *MemoryEngine) Clear(r KeyRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrEngineClosed
	}
	var ops []Operation
	for key := range m.data {
		if r.Contains([]byte(key)) {
			ops = append(ops, Operation{Kind: OpDelete, Key: []byte(key)})
		}
	}
	sort.Slice(ops, func(i, j int) bool { return bytes.Compare(ops[i].Key, ops[j].Key) < 0 })
	m.commitLocked(ops)
	return nil
}

func (m *MemoryEngine) ApplyBatch(ops []Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrEngineClosed
	}
	m.commitLocked(ops)
	return nil
}

// commitLocked applies ops atomically, assigning one sequence number per
// operation, and fans the resulting change batch out to subscribers.
func (m *MemoryEngine) commitLocked(ops []Operation) {
	if len(ops) == 0 {
		return
	}
	records := make([]ChangeRecord, 0, len(ops))
	for _, op := range ops {
		m.seq++
		switch op.Kind {
		case OpPut:
			m.data[string(op.Key)] = append([]byte(nil), op.Value...)
			m.bytesWritten += uint64(len(op.Key) + len(op.Value))
		case OpDelete:
			delete(m.data, string(op.Key))
			m.bytesWritten += uint64(len(op.Key))
		}
		records = append(records, ChangeRecord{
			Kind:     op.Kind,
			Key:      append([]byte(nil), op.Key...),
			Value:    append([]byte(nil), op.Value...),
			Sequence: m.seq,
		})
	}
	m.history = append(m.history, records...)

	batch := ChangeBatch{Records: records, Sequence: m.seq, Count: len(records)}
	for _, sub := range m.subs {
		sub.push(batch)
	}
}

func (m *MemoryEngine) NewIterator(opts IteratorOptions) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrEngineClosed
	}
	source := m.data
	if opts.Sequence > 0 && opts.Sequence != m.seq {
		if opts.Sequence > m.seq {
			return nil, fmt.Errorf("%w: sequence %d is beyond %d", ErrSequenceUnsupported, opts.Sequence, m.seq)
		}
		source = m.stateAtLocked(opts.Sequence)
	}
	var entries []Entry
	for key, val := range source {
		if opts.Range.Contains([]byte(key)) {
			entries = append(entries, Entry{
				Key:   []byte(key),
				Value: append([]byte(nil), val...),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if opts.Reverse {
			return bytes.Compare(entries[i].Key, entries[j].Key) > 0
		}
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})
	return &memoryIterator{entries: entries, reverse: opts.Reverse, idx: -1}, nil
}

// stateAtLocked replays the change history up to and including seq and
// returns the key space as it stood at that sequence.
func (m *MemoryEngine) stateAtLocked(seq uint64) map[string][]byte {
	state := make(map[string][]byte)
	for _, rec := range m.history {
		if rec.Sequence > seq {
			break
		}
		switch rec.Kind {
		case OpPut:
			state[string(rec.Key)] = rec.Value
		case OpDelete:
			delete(state, string(rec.Key))
		}
	}
	return state
}

func (m *MemoryEngine) CurrentSequence() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}

func (m *MemoryEngine) Subscribe(opts SubscribeOptions) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrEngineClosed
	}
	sub := &memorySub{
		engine: m,
		keys:   opts.Keys,
		values: opts.Values,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	m.nextSubID++
	sub.id = m.nextSubID
	m.subs[sub.id] = sub

	// Replay history past the requested sequence before any live delivery.
	if opts.Since < m.seq {
		var replay []ChangeRecord
		for _, rec := range m.history {
			if rec.Sequence > opts.Since {
				replay = append(replay, rec)
			}
		}
		if len(replay) > 0 {
			sub.push(ChangeBatch{
				Records:  replay,
				Sequence: replay[len(replay)-1].Sequence,
				Count:    len(replay),
			})
		}
	}
	return sub, nil
}

func (m *MemoryEngine) GetProperty(name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", ErrEngineClosed
	}
	switch name {
	case "rockgate.engine":
		return "memory", nil
	case "rockgate.sequence":
		return fmt.Sprintf("%d", m.seq), nil
	case "rockgate.num-keys":
		return fmt.Sprintf("%d", len(m.data)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
}

func (m *MemoryEngine) CurrentWalFile() (WalFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return WalFile{}, ErrEngineClosed
	}
	return m.walFileLocked(), nil
}

func (m *MemoryEngine) SortedWalFiles() ([]WalFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrEngineClosed
	}
	return []WalFile{m.walFileLocked()}, nil
}

// walFileLocked synthesizes a single live log descriptor so WAL
// introspection behaves uniformly across engines.
func (m *MemoryEngine) walFileLocked() WalFile {
	return WalFile{
		Path:          "<memory>",
		LogNumber:     0,
		Live:          true,
		StartSequence: 1,
		SizeBytes:     m.bytesWritten,
	}
}

func (m *MemoryEngine) FlushWal(sync bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrEngineClosed
	}
	return nil
}

func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for id, sub := range m.subs {
		sub.closeFromEngine()
		delete(m.subs, id)
	}
	m.data = make(map[string][]byte)
	m.history = nil
	return nil
}

func (m *MemoryEngine) dropSub(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// memoryIterator walks a point-in-time snapshot in iteration order.
type memoryIterator struct {
	entries []Entry
	reverse bool
	idx     int
	closed  bool
}

func (it *memoryIterator) Next() bool {
	if it.closed {
		return false
	}
	it.idx++
	return it.idx < len(it.entries)
}

func (it *memoryIterator) Key() []byte {
	if it.closed || it.idx < 0 || it.idx >= len(it.entries) {
		return nil
	}
	return it.entries[it.idx].Key
}

func (it *memoryIterator) Value() []byte {
	if it.closed || it.idx < 0 || it.idx >= len(it.entries) {
		return nil
	}
	return it.entries[it.idx].Value
}

func (it *memoryIterator) Seek(key []byte) bool {
	if it.closed {
		return false
	}
	it.idx = sort.Search(len(it.entries), func(i int) bool {
		if it.reverse {
			return bytes.Compare(it.entries[i].Key, key) <= 0
		}
		return bytes.Compare(it.entries[i].Key, key) >= 0
	})
	return it.idx < len(it.entries)
}

func (it *memoryIterator) Err() error {
	return nil
}

func (it *memoryIterator) Close() error {
	it.closed = true
	it.entries = nil
	return nil
}

// memorySub delivers change batches through an unbounded queue so a slow
// consumer never causes drops and sequence contiguity is preserved.
type memorySub struct {
	engine *MemoryEngine
	id     int
	keys   bool
	values bool

	mu     sync.Mutex
	queue  []ChangeBatch
	closed bool

	notify chan struct{}
	done   chan struct{}
}

func (s *memorySub) push(batch ChangeBatch) {
	// Batches are shared between subscribers; strip unrequested fields on
	// a copy of the records.
	if !s.keys || !s.values {
		records := make([]ChangeRecord, len(batch.Records))
		for i, rec := range batch.Records {
			if !s.keys {
				rec.Key = nil
			}
			if !s.values {
				rec.Value = nil
			}
			records[i] = rec
		}
		batch.Records = records
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, batch)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memorySub) Next(ctx context.Context) (ChangeBatch, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			batch := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return batch, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return ChangeBatch{}, nil
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return ChangeBatch{}, ctx.Err()
		}
	}
}

func (s *memorySub) Close() error {
	s.closeFromEngine()
	s.engine.dropSub(s.id)
	return nil
}

func (s *memorySub) closeFromEngine() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}
