// Package planner is the application service behind the HTTP API and the
// CLI: it validates requests, talks to the store and runs the calendar
// bridge and grid builder.
package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"studycal/internal/apperr"
	"studycal/internal/gcal"
	"studycal/internal/ics"
	"studycal/internal/store"
)

var errNoProvider = errors.New("no external calendar configured")

// Provider is an external calendar that accepts new events.
type Provider interface {
	InsertEvent(ctx context.Context, token string, req gcal.EventRequest) (gcal.Inserted, error)
}

type Planner struct {
	st       store.Store
	bridge   *ics.Bridge
	ids      ics.IDGenerator
	loc      *time.Location
	now      func() time.Time
	provider Provider

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

type Option func(*Planner)

// WithLocation sets the display timezone used for every calendar-day
// comparison.
func WithLocation(loc *time.Location) Option {
	return func(p *Planner) { p.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithIDs sets the generator for task ids, manual event ids and
// replacement ids of colliding imports.
func WithIDs(ids ics.IDGenerator) Option {
	return func(p *Planner) { p.ids = ids }
}

func WithBridge(b *ics.Bridge) Option {
	return func(p *Planner) { p.bridge = b }
}

func WithProvider(pr Provider) Option {
	return func(p *Planner) { p.provider = pr }
}

func New(st store.Store, opts ...Option) *Planner {
	p := &Planner{
		st:        st,
		ids:       ics.UUIDs,
		loc:       time.Local,
		now:       time.Now,
		userLocks: make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(p)
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.bridge == nil {
		p.bridge = &ics.Bridge{IDs: p.ids, Colors: ics.RandomColors, Now: p.now}
	}
	if p.bridge.Location == nil {
		b := *p.bridge
		b.Location = p.loc
		p.bridge = &b
	}
	return p
}

// Now is the planner clock.
func (p *Planner) Now() time.Time { return p.now() }

// Location is the display timezone.
func (p *Planner) Location() *time.Location { return p.loc }

// lockUser serializes imports and refreshes of one user's calendars.
func (p *Planner) lockUser(user string) func() {
	p.mu.Lock()
	l, ok := p.userLocks[user]
	if !ok {
		l = &sync.Mutex{}
		p.userLocks[user] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func requireUser(op, user string) error {
	if strings.TrimSpace(user) == "" {
		return apperr.Validation(op, "username is required")
	}
	return nil
}
