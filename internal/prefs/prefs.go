// Package prefs is the per-user preference store: small JSON values under
// well known keys, persisted through store.PrefStore, with change
// notification for long-lived readers.
package prefs

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"studycal/internal/apperr"
	appLog "studycal/internal/log"
	"studycal/internal/store"
)

const (
	KeyCustomTaskTypes = "customTaskTypes"
	KeyCustomSubjects  = "customSubjects"
	KeyTaskTypeIcons   = "taskTypeIcons"
)

// Known lists the keys clients are expected to use.
var Known = []string{KeyCustomTaskTypes, KeyCustomSubjects, KeyTaskTypeIcons}

type subKey struct {
	user, key string
}

type Service struct {
	st store.PrefStore

	mu     sync.Mutex
	nextID int
	subs   map[subKey]map[int]chan string
}

func New(st store.PrefStore) *Service {
	return &Service{st: st, subs: make(map[subKey]map[int]chan string)}
}

func validKey(op, user, key string) error {
	if strings.TrimSpace(user) == "" {
		return apperr.Validation(op, "username is required")
	}
	if strings.TrimSpace(key) == "" {
		return apperr.Validation(op, "key is required")
	}
	return nil
}

// Get returns the stored JSON value. ok is false for an unset key.
func (s *Service) Get(ctx context.Context, user, key string) (string, bool, error) {
	if err := validKey("prefs.get", user, key); err != nil {
		return "", false, err
	}
	return s.st.GetPref(ctx, user, key)
}

// Set stores value, which must be valid JSON, and notifies subscribers.
func (s *Service) Set(ctx context.Context, user, key, value string) error {
	if err := validKey("prefs.set", user, key); err != nil {
		return err
	}
	if !json.Valid([]byte(value)) {
		return apperr.Validation("prefs.set", "value for %q is not valid JSON", key)
	}
	if err := s.st.SetPref(ctx, user, key, value); err != nil {
		return err
	}
	s.publish(user, key, value)
	return nil
}

// Subscribe returns a channel that receives every value later Set for
// (user, key). Slow readers miss intermediate values; the latest one is
// always delivered. cancel closes the channel.
func (s *Service) Subscribe(user, key string) (<-chan string, func()) {
	ch := make(chan string, 1)
	k := subKey{user, key}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.subs[k] == nil {
		s.subs[k] = make(map[int]chan string)
	}
	s.subs[k][id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[k], id)
			if len(s.subs[k]) == 0 {
				delete(s.subs, k)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Service) publish(user, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[subKey{user, key}] {
		// Replace a stale undelivered value with the new one.
		select {
		case ch <- value:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- value:
		default:
			appLog.Debug("prefs: dropped notification", "user", user, "key", key)
		}
	}
}
