package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlscap/internal/ledger"
)

func TestInsertFirstWriteWins(t *testing.T) {
	l := ledger.New[string]()

	assert.True(t, l.Insert("a", "first"))
	assert.False(t, l.Insert("a", "second"))
	assert.Equal(t, 1, l.Len())

	entries := l.Seek()
	require.Len(t, entries, 1)
	assert.Equal(t, "first", entries[0].Value)
}

func TestSeekReturnsOnlyNewEntries(t *testing.T) {
	l := ledger.New[int]()

	assert.Nil(t, l.Seek())

	l.Insert("a", 1)
	l.Insert("b", 2)

	entries := l.Seek()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)

	// Already seen: nothing new.
	assert.Nil(t, l.Seek())

	l.Insert("c", 3)
	entries = l.Seek()
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Key)
	assert.Equal(t, 3, entries[0].Value)
}

func TestSeekIgnoresReinsertedKeys(t *testing.T) {
	l := ledger.New[int]()

	l.InsertMany([]ledger.Entry[int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
	})
	require.Len(t, l.Seek(), 2)

	// An overlapping poll re-submits old keys alongside one new one.
	l.InsertMany([]ledger.Entry[int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
		{Key: "c", Value: 3},
	})

	entries := l.Seek()
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Key)
	assert.Equal(t, 3, l.Len())
}

func TestInsertManyPreservesOrder(t *testing.T) {
	l := ledger.New[int]()

	l.InsertMany([]ledger.Entry[int]{
		{Key: "z", Value: 26},
		{Key: "a", Value: 1},
		{Key: "m", Value: 13},
	})

	entries := l.Seek()
	require.Len(t, entries, 3)
	assert.Equal(t, "z", entries[0].Key)
	assert.Equal(t, "a", entries[1].Key)
	assert.Equal(t, "m", entries[2].Key)
}
