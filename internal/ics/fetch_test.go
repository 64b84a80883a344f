package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOneUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(twoEvents))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "sub-1", URL: srv.URL + "/feed.ics?token=secret"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, twoEvents, string(first.Body))

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, twoEvents, string(second.Body))
	assert.EqualValues(t, 2, hits.Load())
}

func TestFetchFallsBackToCacheOnError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(twoEvents))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "sub-1", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = f.FetchOne(context.Background(), Source{ID: "other", URL: srv.URL + "/other"})
	assert.Error(t, err)
}

func TestFetchRejectsOversizedFeed(t *testing.T) {
	var big atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(twoEvents))
		if big.Load() || r.URL.Path == "/big" {
			_, _ = w.Write([]byte(strings.Repeat("X", 64)))
		}
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	f.maxSize = int64(len(twoEvents))
	src := Source{ID: "sub-1", URL: srv.URL + "/feed.ics"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, twoEvents, string(first.Body))

	big.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, twoEvents, string(res.Body))

	_, err = f.FetchOne(context.Background(), Source{ID: "big", URL: srv.URL + "/big"})
	assert.ErrorIs(t, err, errFeedTooLarge)
}

func TestFetchAllJoinsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(twoEvents))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, err := f.FetchAll(context.Background(), []Source{
		{ID: "ok", URL: srv.URL + "/ok"},
		{ID: "missing", URL: srv.URL + "/missing"},
		{ID: "empty"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Source.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, err.Error(), "empty")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/cal.ics?token=abc"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
