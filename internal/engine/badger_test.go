package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/neogan74/rockgate/internal/logger"
)

func newTestBadger(t *testing.T) *BadgerEngine {
	t.Helper()
	e, err := NewBadgerEngine(BadgerConfig{
		DataDir:         t.TempDir(),
		CreateIfMissing: true,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to open badger engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestBadgerEngine_PutGetDelete(t *testing.T) {
	e := newTestBadger(t)

	if err := e.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	val, found, err := e.Get([]byte("k"))
	if err != nil || !found {
		t.Fatalf("expected value, got found=%v err=%v", found, err)
	}
	if !bytes.Equal(val, []byte("v")) {
		t.Errorf("expected %q, got %q", "v", val)
	}

	if err := e.Delete([]byte("k")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, found, err = e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found {
		t.Error("expected key gone after delete")
	}
}

func TestBadgerEngine_GetMany(t *testing.T) {
	e := newTestBadger(t)

	_ = e.Put([]byte("a"), []byte("1"))
	_ = e.Put([]byte("c"), []byte("3"))

	values, err := e.GetMany([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatalf("get many failed: %v", err)
	}
	if !bytes.Equal(values[0], []byte("1")) || values[1] != nil || !bytes.Equal(values[2], []byte("3")) {
		t.Errorf("unexpected values: %q", values)
	}
}

func TestBadgerEngine_IteratorRange(t *testing.T) {
	e := newTestBadger(t)

	for _, k := range []string{"a", "b", "c", "d"} {
		_ = e.Put([]byte(k), []byte("v:"+k))
	}

	it, err := e.NewIterator(IteratorOptions{
		Range: KeyRange{Start: []byte("b"), End: []byte("d")},
	})
	if err != nil {
		t.Fatalf("iterator failed: %v", err)
	}
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if it.Err() != nil {
		t.Fatalf("iterator error: %v", it.Err())
	}
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestBadgerEngine_SequenceAdvances(t *testing.T) {
	e := newTestBadger(t)

	before := e.CurrentSequence()
	_ = e.Put([]byte("k"), []byte("v"))
	after := e.CurrentSequence()
	if after <= before {
		t.Errorf("expected sequence to advance, before=%d after=%d", before, after)
	}
}

func TestBadgerEngine_WalFiles(t *testing.T) {
	e := newTestBadger(t)

	_ = e.Put([]byte("k"), []byte("v"))
	if err := e.FlushWal(true); err != nil {
		t.Fatalf("flush wal failed: %v", err)
	}

	files, err := e.SortedWalFiles()
	if err != nil {
		t.Fatalf("sorted wal files failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected at least one wal file")
	}
	for i := 1; i < len(files); i++ {
		if files[i].LogNumber < files[i-1].LogNumber {
			t.Errorf("wal files not sorted: %v", files)
		}
	}
}

func TestBadgerEngine_OpenFlags(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewBadgerEngine(BadgerConfig{DataDir: dir}, logger.Nop()); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing without CreateIfMissing, got %v", err)
	}

	e, err := NewBadgerEngine(BadgerConfig{DataDir: dir, CreateIfMissing: true}, logger.Nop())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := NewBadgerEngine(BadgerConfig{DataDir: dir, ErrorIfExists: true}, logger.Nop()); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestBadgerSub_ConvertSkipsInternalKeys(t *testing.T) {
	sub := &badgerSub{}

	list := &badger.KVList{Kv: []*pb.KV{
		{Key: []byte("k"), Value: []byte{}, Version: 5},
		{Key: []byte("!badger!txn"), Value: []byte("1"), Version: 5},
		{Key: []byte("gone"), Meta: []byte{badgerBitDelete}, Version: 6},
	}}
	batch := sub.convert(list, SubscribeOptions{Keys: true, Values: true})

	if batch.Count != 2 || len(batch.Records) != 2 {
		t.Fatalf("expected 2 records, got count=%d records=%v", batch.Count, batch.Records)
	}
	// Empty-value put stays a put; the tombstone is flagged in the meta byte.
	if string(batch.Records[0].Key) != "k" || batch.Records[0].Kind != OpPut {
		t.Errorf("unexpected first record: %+v", batch.Records[0])
	}
	if string(batch.Records[1].Key) != "gone" || batch.Records[1].Kind != OpDelete {
		t.Errorf("unexpected second record: %+v", batch.Records[1])
	}
	if batch.Sequence != 6 {
		t.Errorf("expected batch sequence 6, got %d", batch.Sequence)
	}
}

func TestBadgerSub_ConvertOnlyInternalKeys(t *testing.T) {
	sub := &badgerSub{}

	list := &badger.KVList{Kv: []*pb.KV{
		{Key: []byte("!badger!txn"), Value: []byte("1"), Version: 7},
	}}
	batch := sub.convert(list, SubscribeOptions{Keys: true, Values: true})
	if batch.Count != 0 {
		t.Errorf("expected empty batch, got %+v", batch)
	}
}

func TestBadgerEngine_IteratorSequencePinRejected(t *testing.T) {
	e := newTestBadger(t)

	_ = e.Put([]byte("k"), []byte("v"))
	if _, err := e.NewIterator(IteratorOptions{Sequence: 1}); !errors.Is(err, ErrSequenceUnsupported) {
		t.Fatalf("expected ErrSequenceUnsupported, got %v", err)
	}
}

func TestBadgerEngine_GetProperty(t *testing.T) {
	e := newTestBadger(t)

	name, err := e.GetProperty("rockgate.engine")
	if err != nil || name != "badger" {
		t.Errorf("expected badger, got %q err=%v", name, err)
	}
	if _, err := e.GetProperty("rockgate.bogus"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("expected ErrUnknownProperty, got %v", err)
	}
}
