package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/cotizador/backend/internal/domain"
)

// newTestRemote returns a client that retries without sleeping
func newTestRemote(url string) *RemoteClient {
	c := NewRemoteClient(url, nil)
	c.backoff = func(int) time.Duration { return 0 }
	c.rateLimiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"https://example.com/listado.csv", true},
		{"http://10.0.0.1:8080/listado.csv", true},
		{"listado.csv", false},
		{"/data/listado.csv", false},
		{"ftp://example.com/listado.csv", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRemote(tt.path))
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestRemoteClient_Fetch(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/listado.csv", r.URL.Path)
			assert.Equal(t, remoteUserAgent, r.Header.Get("User-Agent"))
			w.Write([]byte(sampleCSV))
		}))
		defer server.Close()

		body, err := newTestRemote(server.URL + "/listado.csv").Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sampleCSV, string(body))
	})

	t.Run("server error retries", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(sampleCSV))
		}))
		defer server.Close()

		body, err := newTestRemote(server.URL).Fetch(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, body)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("too many requests retries", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(sampleCSV))
		}))
		defer server.Close()

		_, err := newTestRemote(server.URL).Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("client error does not retry", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := newTestRemote(server.URL).Fetch(context.Background())
		assert.ErrorIs(t, err, domain.ErrCatalogFetch)
		assert.Contains(t, err.Error(), "status 404")
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("all retries fail", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := newTestRemote(server.URL).Fetch(context.Background())
		assert.ErrorIs(t, err, domain.ErrCatalogFetch)
		assert.Equal(t, int32(remoteMaxAttempts), attempts.Load())
	})

	t.Run("oversized body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(strings.Repeat("x", 200)))
		}))
		defer server.Close()

		c := newTestRemote(server.URL)
		c.maxBodyBytes = 100
		_, err := c.Fetch(context.Background())
		assert.ErrorIs(t, err, domain.ErrCatalogFetch)
	})

	t.Run("context cancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := newTestRemote(server.URL).Fetch(ctx)
		assert.Error(t, err)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := newTestRemote("http://[::1]:namedport").Fetch(context.Background())
		assert.Error(t, err)
	})
}

func TestReadLimitedBody(t *testing.T) {
	t.Run("reads within limit", func(t *testing.T) {
		body, err := readLimitedBody(strings.NewReader("short content"), 1000)
		require.NoError(t, err)
		assert.Equal(t, "short content", string(body))
	})

	t.Run("exactly at limit", func(t *testing.T) {
		body, err := readLimitedBody(strings.NewReader(strings.Repeat("0", 100)), 100)
		require.NoError(t, err)
		assert.Len(t, body, 100)
	})

	t.Run("rejects beyond limit", func(t *testing.T) {
		_, err := readLimitedBody(strings.NewReader(strings.Repeat("0123456789", 100)), 100)
		assert.ErrorIs(t, err, domain.ErrCatalogFetch)
	})
}

func TestStore_RemoteReload(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	url := server.URL + "/listado.csv"
	store := NewStore(url, LoadOptions{}, nil)
	require.True(t, store.Remote())
	store.remote.backoff = func(int) time.Duration { return 0 }
	store.remote.rateLimiter = rate.NewLimiter(rate.Inf, 1)

	cat, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, url, cat.Source)
	assert.Len(t, cat.Rows, 2)

	status.Store(http.StatusNotFound)
	_, err = store.Reload(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogFetch)
	assert.Same(t, cat, store.Current(), "failed fetch keeps the previous catalog")

	err = NewWatcher(store, 0, nil).Run(context.Background())
	assert.Error(t, err, "remote catalogs cannot be watched")
}
