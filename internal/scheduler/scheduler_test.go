package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/ics"
)

type stubFetcher struct {
	results []ics.FetchResult
	err     error
}

func (f stubFetcher) FetchAll(context.Context, []ics.Source) ([]ics.FetchResult, error) {
	return f.results, f.err
}

type recordingRefresher struct {
	mu   sync.Mutex
	seen []string
	fail string
}

func (r *recordingRefresher) RefreshSubscription(_ context.Context, src ics.Source, body []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src.ID == r.fail {
		return 0, errors.New("boom")
	}
	r.seen = append(r.seen, src.ID+":"+string(body))
	return 1, nil
}

func sources(ids ...string) []ics.Source {
	out := make([]ics.Source, 0, len(ids))
	for _, id := range ids {
		out = append(out, ics.Source{ID: id, Username: "ada", URL: "https://example.edu/" + id})
	}
	return out
}

func TestRunOnceSkipsFailures(t *testing.T) {
	srcs := sources("a", "b", "c", "d")
	f := stubFetcher{
		results: []ics.FetchResult{
			{Source: srcs[0], Body: []byte("A")},
			{Source: srcs[1], Body: []byte("B")},
			{Source: srcs[2]},
		},
		err: errors.New("d: timeout"),
	}
	r := &recordingRefresher{fail: "b"}

	n := New("@every 1h", time.UTC, srcs, f, r).RunOnce(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a:A"}, r.seen)
}

func TestRunOnceNoSources(t *testing.T) {
	r := &recordingRefresher{}
	assert.Zero(t, New("@every 1h", nil, nil, stubFetcher{}, r).RunOnce(context.Background()))
	assert.Empty(t, r.seen)
}

func TestRunRejectsBadSchedule(t *testing.T) {
	s := New("not a schedule", time.UTC, nil, stubFetcher{}, &recordingRefresher{})
	assert.Error(t, s.Run(context.Background()))
}

func TestRunStopsWithContext(t *testing.T) {
	srcs := sources("a")
	r := &recordingRefresher{}
	s := New("@every 1h", time.UTC, srcs, stubFetcher{results: []ics.FetchResult{{Source: srcs[0], Body: []byte("A")}}}, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.seen) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
