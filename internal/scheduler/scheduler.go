// Package scheduler periodically re-downloads subscribed .ics feeds and
// replaces the events of their calendar groupings.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"studycal/internal/ics"
	appLog "studycal/internal/log"
)

// Fetcher downloads feeds; *ics.Fetcher satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, error)
}

// Refresher stores a downloaded feed; *planner.Planner satisfies it.
type Refresher interface {
	RefreshSubscription(ctx context.Context, src ics.Source, body []byte) (int, error)
}

type Scheduler struct {
	spec    string
	loc     *time.Location
	sources []ics.Source
	fetch   Fetcher
	refresh Refresher

	// running guards against overlapping runs when a refresh is slower than
	// the schedule.
	running sync.Mutex
}

func New(spec string, loc *time.Location, sources []ics.Source, f Fetcher, r Refresher) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{spec: spec, loc: loc, sources: sources, fetch: f, refresh: r}
}

// RunOnce fetches every source and refreshes the ones that downloaded.
// Per-source failures are logged and skipped; it reports how many sources
// were refreshed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if !s.running.TryLock() {
		appLog.Info("refresh already running, skipping")
		return 0
	}
	defer s.running.Unlock()

	if len(s.sources) == 0 {
		return 0
	}
	start := time.Now()
	results, err := s.fetch.FetchAll(ctx, s.sources)
	if err != nil {
		appLog.Error("some subscriptions failed to download", err)
	}

	ok := 0
	for _, res := range results {
		if len(res.Body) == 0 {
			appLog.Info("subscription has no body yet, skipping", "id", res.Source.ID)
			continue
		}
		n, err := s.refresh.RefreshSubscription(ctx, res.Source, res.Body)
		if err != nil {
			appLog.Error("subscription refresh failed", err, "id", res.Source.ID, "user", res.Source.Username)
			continue
		}
		ok++
		appLog.Debug("subscription refreshed", "id", res.Source.ID, "events", n, "from_cache", res.FromCache)
	}
	appLog.Info("refresh finished", "sources", len(s.sources), "refreshed", ok, "took", time.Since(start).String())
	return ok
}

// Run refreshes once immediately, then on the cron schedule until ctx is
// done.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.spec, err)
	}

	s.RunOnce(ctx)
	c.Start()
	appLog.Info("scheduler started", "refresh", s.spec, "sources", len(s.sources))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	appLog.Info("scheduler stopped")
	return nil
}
