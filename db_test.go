package rockgate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("", &Options{Engine: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRejectsEmptyLocation(t *testing.T) {
	_, err := Open("", nil)
	require.ErrorIs(t, err, ErrInvalidLocation)
}

func TestPutGetDelete(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	_, found, err := db.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, found, "absent key must not be an error")

	require.NoError(t, db.Put([]byte("a"), []byte("1")))

	val, found, err := db.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("1"), val)

	require.NoError(t, db.Put([]byte("a"), []byte("2")))
	val, _, err = db.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), val)

	require.NoError(t, db.Delete([]byte("a")))
	_, found, err = db.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEmptyKeyRejectedSynchronously(t *testing.T) {
	db := openMemoryDB(t)

	require.ErrorIs(t, db.Put(nil, []byte("v")), ErrInvalidKey)
	require.ErrorIs(t, db.Delete(nil), ErrInvalidKey)
	_, _, err := db.Get(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestGetMany(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("c"), []byte("3")))

	values, err := db.GetMany(context.Background(), [][]byte{
		[]byte("a"), []byte("b"), []byte("c"),
	})
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, []byte("1"), values[0])
	assert.Nil(t, values[1], "missing key yields a nil entry")
	assert.Equal(t, []byte("3"), values[2])
}

func TestClearRange(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, db.Put([]byte(k), []byte(k)))
	}
	require.NoError(t, db.Clear(ClearOptions{Start: []byte("b"), End: []byte("d")}))

	for k, want := range map[string]bool{"a": true, "b": false, "c": false, "d": true} {
		_, found, err := db.Get(ctx, []byte(k))
		require.NoError(t, err)
		assert.Equal(t, want, found, "key %q", k)
	}
}

func TestSequenceAdvancesMonotonically(t *testing.T) {
	db := openMemoryDB(t)

	prev := db.Sequence()
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Put([]byte{byte('a' + i)}, []byte("v")))
		cur := db.Sequence()
		assert.Greater(t, cur, prev)
		prev = cur
	}
}

func TestGetPropertyFailsFastWhenNotOpen(t *testing.T) {
	db, err := Open("", &Options{Engine: "memory"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.GetProperty("rockgate.sequence")
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestGetProperty(t *testing.T) {
	db := openMemoryDB(t)

	engineName, err := db.GetProperty("rockgate.engine")
	require.NoError(t, err)
	assert.Equal(t, "memory", engineName)

	_, err = db.GetProperty("rockgate.bogus")
	require.Error(t, err)
}

func TestWalIntrospection(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	wf, err := db.CurrentWalFile()
	require.NoError(t, err)
	assert.True(t, wf.Live)

	files, err := db.SortedWalFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	require.NoError(t, db.FlushWal(true))
}

func TestCloseIsIdempotent(t *testing.T) {
	db, err := Open("", &Options{Engine: "memory"})
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestConcurrentCloseNeverFails(t *testing.T) {
	db, err := Open("", &Options{Engine: "memory"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.Close()
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	db, err := Open("", &Options{Engine: "memory"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.ErrorIs(t, db.Put([]byte("k"), []byte("v")), ErrNotOpen)
	_, _, err = db.Get(context.Background(), []byte("k"))
	require.ErrorIs(t, err, ErrNotOpen)
	_, err = db.Iterator(IteratorOptions{})
	require.ErrorIs(t, err, ErrNotOpen)
	_, err = db.Updates(UpdateOptions{})
	require.ErrorIs(t, err, ErrNotOpen)
	_, err = db.ChainedBatch()
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestCloseSweepsLiveResources(t *testing.T) {
	db, err := Open("", &Options{Engine: "memory"})
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("b"), []byte("2")))

	it, err := db.Iterator(IteratorOptions{})
	require.NoError(t, err)
	require.True(t, it.Next(), "cursor should be mid-scan before close")

	batch, err := db.ChainedBatch()
	require.NoError(t, err)
	require.NoError(t, batch.Put([]byte("c"), []byte("3")))

	feed, err := db.Updates(UpdateOptions{})
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Zero(t, db.tracker.count(), "close must sweep every tracked resource")

	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrIteratorClosed)

	assert.ErrorIs(t, batch.Write(), ErrBatchWritten)

	got, err := feed.Next(context.Background())
	require.NoError(t, err, "a closed feed resolves empty instead of failing")
	assert.Zero(t, got.Count)
}
