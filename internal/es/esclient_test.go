package es

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	mu   sync.Mutex
	docs map[string]map[string]any
	fail atomic.Bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet && r.URL.Path == "/" {
		_, _ = w.Write([]byte(`{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`))
		return
	}
	if f.fail.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
		return
	}
	if r.Method == http.MethodPut || r.Method == http.MethodPost {
		var doc map[string]any
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.mu.Lock()
		f.docs[r.URL.Path] = doc
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func newFakeCluster(t *testing.T) (*fakeCluster, string) {
	t.Helper()
	f := &fakeCluster{docs: map[string]map[string]any{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func TestIndexDocument(t *testing.T) {
	f, url := newFakeCluster(t)
	ctx := context.Background()

	client, err := NewClient(ctx, Config{URL: url})
	require.NoError(t, err)

	require.NoError(t, IndexDocument(ctx, client, "orders", "abc", map[string]any{"number": "ORD-1"}))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.docs, 1)
	for path, doc := range f.docs {
		assert.True(t, strings.HasPrefix(path, "/orders/_doc/abc"), path)
		assert.Equal(t, "ORD-1", doc["number"])
	}
}

func TestIndexDocument_ErrorResponse(t *testing.T) {
	f, url := newFakeCluster(t)
	ctx := context.Background()
	client, err := NewClient(ctx, Config{URL: url})
	require.NoError(t, err)

	f.fail.Store(true)
	assert.Error(t, IndexDocument(ctx, client, "orders", "abc", map[string]any{}))
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}
