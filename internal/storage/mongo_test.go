package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/webcrawler/internal/storage"
)

// newMongoStorage skips unless CRAWLER_TEST_MONGO_URI points at a live
// server; the contract tests mirror the in-process suite.
func newMongoStorage(t *testing.T) *storage.MongoStorage {
	t.Helper()
	uri := os.Getenv("CRAWLER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CRAWLER_TEST_MONGO_URI not set; skipping mongo storage tests")
	}

	store, err := storage.NewMongoStorage(context.Background(), storageTestSink{}, uri, "crawler_test", "crawl_results_test")
	require.Nil(t, err)

	require.Nil(t, store.Clear())
	t.Cleanup(func() {
		store.Clear()
		store.Close()
	})
	return store
}

func TestMongoStorage_UpsertLatestWins(t *testing.T) {
	store := newMongoStorage(t)

	first := sampleRecord("https://example.com/a")
	first.Title = "old title"
	require.Nil(t, store.Save(first))

	second := sampleRecord("https://example.com/a")
	second.Title = "new title"
	require.Nil(t, store.Save(second))

	count, err := store.Count()
	require.Nil(t, err)
	assert.Equal(t, 1, count)

	got, found, err := store.Get("https://example.com/a")
	require.Nil(t, err)
	require.True(t, found)
	assert.Equal(t, "new title", got.Title)
}

func TestMongoStorage_GetAll(t *testing.T) {
	store := newMongoStorage(t)

	require.Nil(t, store.Save(sampleRecord("https://example.com/a")))
	require.Nil(t, store.Save(sampleRecord("https://example.com/b")))

	all, err := store.GetAll()
	require.Nil(t, err)
	assert.Len(t, all, 2)
}
