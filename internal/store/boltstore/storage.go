// Package boltstore keeps studycal data in a single bbolt file.
//
// Layout: one root bucket per kind (events, calendars, tasks, prefs), one
// nested bucket per user inside it, JSON values keyed by record id.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"studycal/internal/apperr"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/store"
)

var (
	eventsBucket    = []byte("events")
	calendarsBucket = []byte("calendars")
	tasksBucket     = []byte("tasks")
	prefsBucket     = []byte("prefs")
)

type repo struct {
	d    *bolt.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (store.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("boltstore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("boltstore: %w", err)
	}
	d, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open db %s: %w", path, err)
	}
	err = d.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{eventsBucket, calendarsBucket, tasksBucket, prefsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("unable to create root bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	appLog.Info("bolt store opened", "path", path)
	return &repo{d: d, path: path}, nil
}

func (r *repo) Close() error {
	if r.d == nil {
		return nil
	}
	return r.d.Close()
}

// userBucket returns the user's bucket under root. With create=false it
// returns nil when the user has no data yet.
func userBucket(tx *bolt.Tx, root []byte, user string, create bool) (*bolt.Bucket, error) {
	rb := tx.Bucket(root)
	if rb == nil {
		return nil, fmt.Errorf("invalid bucket %s", root)
	}
	if !create {
		return rb.Bucket([]byte(user)), nil
	}
	return rb.CreateBucketIfNotExists([]byte(user))
}

func loadAll[T any](d *bolt.DB, root []byte, user string) ([]T, error) {
	out := make([]T, 0)
	err := d.View(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, root, user, false)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(k, raw []byte) error {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				appLog.Error("bolt store: skipping undecodable record", err, "bucket", string(root), "key", string(k))
				return nil
			}
			out = append(out, v)
			return nil
		})
	})
	return out, err
}

func put(b *bolt.Bucket, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal object: %w", err)
	}
	if err := b.Put([]byte(id), raw); err != nil {
		return fmt.Errorf("could not store encoded object: %w", err)
	}
	return nil
}

// update loads the record id, applies fn and writes it back.
func update[T any](d *bolt.DB, root []byte, user, id, op, what string, fn func(T) T) (T, error) {
	var out T
	err := d.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, root, user, false)
		if err != nil {
			return err
		}
		if b == nil {
			return apperr.NotFound(op, what)
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return apperr.NotFound(op, what)
		}
		var cur T
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("could not decode %s %s: %w", what, id, err)
		}
		out = fn(cur)
		return put(b, id, out)
	})
	return out, apperr.Transport(op, err)
}

func remove(d *bolt.DB, root []byte, user, id, op, what string) error {
	err := d.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, root, user, false)
		if err != nil {
			return err
		}
		if b == nil || b.Get([]byte(id)) == nil {
			return apperr.NotFound(op, what)
		}
		return b.Delete([]byte(id))
	})
	return apperr.Transport(op, err)
}

func (r *repo) ListEvents(_ context.Context, username string) ([]model.CalendarEvent, error) {
	events, err := loadAll[model.CalendarEvent](r.d, eventsBucket, username)
	if err != nil {
		return nil, apperr.Transport("events.list", err)
	}
	store.SortEvents(events)
	return events, nil
}

func (r *repo) CreateEvents(_ context.Context, username, calendarID string, events []model.CalendarEvent) error {
	err := r.d.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, eventsBucket, username, true)
		if err != nil {
			return err
		}
		for _, ev := range events {
			ev.CalendarID = calendarID
			if err := put(b, ev.ID, ev); err != nil {
				return err
			}
		}
		return nil
	})
	return apperr.Transport("events.create", err)
}

func (r *repo) UpdateEvent(_ context.Context, username, id string, upd model.EventUpdate) (model.CalendarEvent, error) {
	return update(r.d, eventsBucket, username, id, "events.update", "event", upd.Apply)
}

func (r *repo) DeleteEvent(_ context.Context, username, id string) error {
	return remove(r.d, eventsBucket, username, id, "events.delete", "event")
}

func (r *repo) DeleteCalendarEvents(_ context.Context, username, calendarID string) (int, error) {
	n := 0
	err := r.d.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, eventsBucket, username, false)
		if err != nil || b == nil {
			return err
		}
		// Collect first; deleting while iterating a cursor skips keys.
		var doomed [][]byte
		err = b.ForEach(func(k, raw []byte) error {
			var ev model.CalendarEvent
			if err := json.Unmarshal(raw, &ev); err == nil && ev.CalendarID == calendarID {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	if err != nil {
		return 0, apperr.Transport("events.delete_calendar", err)
	}
	return n, nil
}

func (r *repo) ListCalendars(_ context.Context, username string) ([]model.Calendar, error) {
	cals, err := loadAll[model.Calendar](r.d, calendarsBucket, username)
	if err != nil {
		return nil, apperr.Transport("calendars.list", err)
	}
	store.SortCalendars(cals)
	return cals, nil
}

func (r *repo) SaveCalendar(_ context.Context, username string, cal model.Calendar) error {
	err := r.d.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, calendarsBucket, username, true)
		if err != nil {
			return err
		}
		return put(b, cal.ID, cal)
	})
	return apperr.Transport("calendars.save", err)
}

func (r *repo) DeleteCalendar(_ context.Context, username, id string) error {
	return remove(r.d, calendarsBucket, username, id, "calendars.delete", "calendar")
}

func (r *repo) ListTasks(_ context.Context, userID string) ([]model.Task, error) {
	tasks, err := loadAll[model.Task](r.d, tasksBucket, userID)
	if err != nil {
		return nil, apperr.Transport("tasks.list", err)
	}
	store.SortTasks(tasks)
	return tasks, nil
}

func (r *repo) GetTask(_ context.Context, userID, id string) (model.Task, error) {
	var t model.Task
	err := r.d.View(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, tasksBucket, userID, false)
		if err != nil {
			return err
		}
		if b == nil {
			return apperr.NotFound("tasks.get", "task")
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return apperr.NotFound("tasks.get", "task")
		}
		return json.Unmarshal(raw, &t)
	})
	return t, apperr.Transport("tasks.get", err)
}

func (r *repo) CreateTask(_ context.Context, task model.Task) (model.Task, error) {
	err := r.d.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, tasksBucket, task.UserID, true)
		if err != nil {
			return err
		}
		return put(b, task.ID, task)
	})
	if err != nil {
		return model.Task{}, apperr.Transport("tasks.create", err)
	}
	return task, nil
}

func (r *repo) UpdateTask(_ context.Context, userID, id string, upd model.TaskUpdate) (model.Task, error) {
	return update(r.d, tasksBucket, userID, id, "tasks.update", "task", upd.Apply)
}

func (r *repo) DeleteTask(_ context.Context, userID, id string) error {
	return remove(r.d, tasksBucket, userID, id, "tasks.delete", "task")
}

func (r *repo) GetPref(_ context.Context, username, key string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := r.d.View(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, prefsBucket, username, false)
		if err != nil || b == nil {
			return err
		}
		if raw := b.Get([]byte(key)); raw != nil {
			v, ok = string(raw), true
		}
		return nil
	})
	if err != nil {
		return "", false, apperr.Transport("prefs.get", err)
	}
	return v, ok, nil
}

func (r *repo) SetPref(_ context.Context, username, key, value string) error {
	err := r.d.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, prefsBucket, username, true)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
	return apperr.Transport("prefs.set", err)
}
