package rockgate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainedBatchLastWriteWins(t *testing.T) {
	db := openMemoryDB(t)

	batch, err := db.ChainedBatch()
	require.NoError(t, err)
	require.NoError(t, batch.Put([]byte("a"), []byte("1")))
	require.NoError(t, batch.Delete([]byte("a")))
	require.NoError(t, batch.Put([]byte("a"), []byte("2")))
	require.NoError(t, batch.Write())

	val, found, err := db.Get(context.Background(), []byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("2"), val, "insertion order must decide the visible value")
}

func TestChainedBatchMutationAfterWrite(t *testing.T) {
	db := openMemoryDB(t)

	batch, err := db.ChainedBatch()
	require.NoError(t, err)
	require.NoError(t, batch.Put([]byte("a"), []byte("1")))
	require.NoError(t, batch.Write())

	assert.ErrorIs(t, batch.Put([]byte("b"), []byte("2")), ErrBatchWritten)
	assert.ErrorIs(t, batch.Delete([]byte("a")), ErrBatchWritten)
	assert.ErrorIs(t, batch.Clear(), ErrBatchWritten)
	assert.ErrorIs(t, batch.Write(), ErrBatchWritten)
	assert.NoError(t, batch.Close(), "closing a written batch is a no-op")
}

func TestChainedBatchClearResets(t *testing.T) {
	db := openMemoryDB(t)

	batch, err := db.ChainedBatch()
	require.NoError(t, err)
	require.NoError(t, batch.Put([]byte("a"), []byte("1")))
	require.NoError(t, batch.Clear())
	assert.Zero(t, batch.Len())

	require.NoError(t, batch.Put([]byte("b"), []byte("2")))
	require.NoError(t, batch.Write())

	_, found, err := db.Get(context.Background(), []byte("a"))
	require.NoError(t, err)
	assert.False(t, found, "cleared operations must not be applied")

	_, found, err = db.Get(context.Background(), []byte("b"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestChainedBatchCloseDiscards(t *testing.T) {
	db := openMemoryDB(t)

	batch, err := db.ChainedBatch()
	require.NoError(t, err)
	require.NoError(t, batch.Put([]byte("a"), []byte("1")))
	require.NoError(t, batch.Close())

	_, found, err := db.Get(context.Background(), []byte("a"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, db.tracker.count())
}

func TestBatchAtomicVisibility(t *testing.T) {
	db := openMemoryDB(t)

	// A reader racing the batch commit must see either none or all of it.
	require.NoError(t, db.Put([]byte("x"), []byte("old")))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = db.Batch([]Operation{
			{Type: OpTypePut, Key: []byte("x"), Value: []byte("new")},
			{Type: OpTypePut, Key: []byte("y"), Value: []byte("new")},
		})
	}()
	<-done

	xv, _, err := db.Get(context.Background(), []byte("x"))
	require.NoError(t, err)
	yv, _, err := db.Get(context.Background(), []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), xv)
	assert.Equal(t, []byte("new"), yv)
}

func TestBatchValidatesBeforeApply(t *testing.T) {
	db := openMemoryDB(t)

	err := db.Batch([]Operation{
		{Type: OpTypePut, Key: []byte("ok"), Value: []byte("v")},
		{Type: OpTypePut, Key: nil, Value: []byte("v")},
	})
	require.ErrorIs(t, err, ErrInvalidKey)

	_, found, err := db.Get(context.Background(), []byte("ok"))
	require.NoError(t, err)
	assert.False(t, found, "validation failure must precede any engine write")
}
