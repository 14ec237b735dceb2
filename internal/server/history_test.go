package server_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomcast/internal/server"
)

func newTestStore(t *testing.T) *server.HistoryStore {
	t.Helper()
	store, err := server.NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func testRecord(room, message string, ts int64) server.Record {
	return server.Record{
		Type:     "message",
		Room:     room,
		Username: "alice",
		Message:  message,
		TS:       ts,
	}
}

func TestHistoryAppendAndTail(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("general", testRecord("general", "first", 100)))
	require.NoError(t, store.Append("general", testRecord("general", "second", 101)))

	records, err := store.Tail("general", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "first", records[0].Message)
	assert.Equal(t, "second", records[1].Message)
	assert.Equal(t, int64(101), records[1].TS)
}

func TestHistoryTailBound(t *testing.T) {
	store := newTestStore(t)

	const published = 12
	const limit = 5
	for i := 0; i < published; i++ {
		require.NoError(t, store.Append("busy", testRecord("busy", fmt.Sprintf("msg-%d", i), int64(i))))
	}

	records, err := store.Tail("busy", limit)
	require.NoError(t, err)
	require.Len(t, records, limit)

	// Exactly the most recent records, oldest first.
	for i, record := range records {
		assert.Equal(t, fmt.Sprintf("msg-%d", published-limit+i), record.Message)
	}
}

func TestHistoryTailMissingRoom(t *testing.T) {
	store := newTestStore(t)

	records, err := store.Tail("never-published", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryTailSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	store, err := server.NewHistoryStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Append("general", testRecord("general", "good", 1)))

	// Simulate a torn write followed by a valid record.
	f, err := os.OpenFile(filepath.Join(dir, "general.txt"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"type\":\"message\",\"roo\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Append("general", testRecord("general", "after", 2)))

	records, err := store.Tail("general", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "good", records[0].Message)
	assert.Equal(t, "after", records[1].Message)
}

func TestHistoryLogNameSanitization(t *testing.T) {
	dir := t.TempDir()
	store, err := server.NewHistoryStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Append("a/b: c!_1-x", testRecord("a/b: c!_1-x", "hi", 1)))

	_, err = os.Stat(filepath.Join(dir, "abc_1-x.txt"))
	assert.NoError(t, err, "room name should be transliterated to a filesystem-safe log name")

	// The sanitized name addresses the same log on read.
	records, err := store.Tail("a/b: c!_1-x", 5)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestHistoryRoomsIndependent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("alpha", testRecord("alpha", "in-alpha", 1)))
	require.NoError(t, store.Append("beta", testRecord("beta", "in-beta", 2)))

	records, err := store.Tail("alpha", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "in-alpha", records[0].Message)
}
