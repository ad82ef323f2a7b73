package rockgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedKeys(t *testing.T, db *DB, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, db.Put([]byte(k), []byte("v:"+k)))
	}
}

func collectKeys(t *testing.T, it *Iterator) []string {
	t.Helper()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	return keys
}

func TestIteratorForwardRange(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "b", "c", "d", "e")

	it, err := db.Iterator(IteratorOptions{Start: []byte("b"), End: []byte("e")})
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"b", "c", "d"}, collectKeys(t, it),
		"start inclusive, end exclusive by default")
}

func TestIteratorBoundFlags(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "b", "c", "d")

	it, err := db.Iterator(IteratorOptions{
		Start:        []byte("a"),
		End:          []byte("c"),
		ExcludeStart: true,
		IncludeEnd:   true,
	})
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"b", "c"}, collectKeys(t, it))
}

func TestIteratorReverse(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "b", "c")

	it, err := db.Iterator(IteratorOptions{Reverse: true})
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"c", "b", "a"}, collectKeys(t, it))
}

func TestIteratorLimit(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "b", "c", "d")

	it, err := db.Iterator(IteratorOptions{Limit: 2})
	require.NoError(t, err)
	defer it.Close()

	keys := collectKeys(t, it)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.NoError(t, it.Err(), "limit exhaustion is a sentinel, not an error")
}

func TestIteratorValues(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "k")

	it, err := db.Iterator(IteratorOptions{})
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	assert.Equal(t, []byte("k"), it.Key())
	assert.Equal(t, []byte("v:k"), it.Value())
	assert.False(t, it.Next())
}

func TestIteratorSeek(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "c", "e", "g")

	it, err := db.Iterator(IteratorOptions{})
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Seek([]byte("d")), "seek lands on the next key at or after the target")
	assert.Equal(t, []byte("e"), it.Key())

	require.True(t, it.Next())
	assert.Equal(t, []byte("g"), it.Key())
	assert.False(t, it.Next())
}

func TestIteratorSeekReverse(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "c", "e")

	it, err := db.Iterator(IteratorOptions{Reverse: true})
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Seek([]byte("d")))
	assert.Equal(t, []byte("c"), it.Key())

	require.True(t, it.Next())
	assert.Equal(t, []byte("a"), it.Key())
}

func TestIteratorReadAfterClose(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "b")

	it, err := db.Iterator(IteratorOptions{})
	require.NoError(t, err)
	require.True(t, it.Next())
	require.NoError(t, it.Close())

	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrIteratorClosed)
	assert.False(t, it.Seek([]byte("a")))
	assert.NoError(t, it.Close(), "double close is a no-op")
	assert.Zero(t, db.tracker.count())
}

func TestIteratorSnapshotIsolation(t *testing.T) {
	db := openMemoryDB(t)
	seedKeys(t, db, "a", "b")

	it, err := db.Iterator(IteratorOptions{})
	require.NoError(t, err)
	defer it.Close()

	// Writes after cursor creation are invisible to it.
	require.NoError(t, db.Put([]byte("c"), []byte("late")))

	assert.Equal(t, []string{"a", "b"}, collectKeys(t, it))
}
