// Package mongostore keeps studycal data in MongoDB. Documents carry the
// owning user next to the record fields: `username` for events, calendars
// and prefs, `userId` for tasks.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"studycal/internal/apperr"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/store"
)

const DefaultDatabase = "studycal"

const (
	eventsCollection    = "events"
	calendarsCollection = "calendars"
	tasksCollection     = "tasks"
	prefsCollection     = "prefs"
)

type eventDoc struct {
	Username            string `bson:"username"`
	model.CalendarEvent `bson:",inline"`
}

type calendarDoc struct {
	Username       string `bson:"username"`
	model.Calendar `bson:",inline"`
}

type prefDoc struct {
	Username string `bson:"username"`
	Key      string `bson:"key"`
	Value    string `bson:"value"`
}

type repo struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri, pings the primary and makes sure the per-user
// unique indexes exist.
func Open(ctx context.Context, uri, database string) (store.Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongostore: empty uri")
	}
	if database == "" {
		database = DefaultDatabase
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	r := &repo{client: client, db: client.Database(database)}
	if err := r.ensureIndexes(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	appLog.Info("mongo store opened", "database", database)
	return r, nil
}

func (r *repo) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string]bson.D{
		eventsCollection:    {{Key: "username", Value: 1}, {Key: "id", Value: 1}},
		calendarsCollection: {{Key: "username", Value: 1}, {Key: "id", Value: 1}},
		tasksCollection:     {{Key: "userId", Value: 1}, {Key: "id", Value: 1}},
		prefsCollection:     {{Key: "username", Value: 1}, {Key: "key", Value: 1}},
	}
	for name, keys := range specs {
		_, err := r.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: unique})
		if err != nil {
			return fmt.Errorf("mongostore: index %s: %w", name, err)
		}
	}
	return nil
}

func (r *repo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *repo) coll(name string) *mongo.Collection { return r.db.Collection(name) }

func ownedBy(user, id string) bson.M { return bson.M{"username": user, "id": id} }

func taskOwnedBy(user, id string) bson.M { return bson.M{"userId": user, "id": id} }

// eventSet builds the $set document for a partial event update.
func eventSet(upd model.EventUpdate) bson.D {
	set := bson.D{}
	if upd.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *upd.Title})
	}
	if upd.Start != nil {
		set = append(set, bson.E{Key: "start", Value: *upd.Start})
	}
	if upd.End != nil {
		set = append(set, bson.E{Key: "end", Value: *upd.End})
	}
	if upd.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *upd.Description})
	}
	return set
}

// taskSet builds the $set document for a partial task update, normalised
// the same way model.TaskUpdate.Apply normalises.
func taskSet(upd model.TaskUpdate) bson.D {
	set := bson.D{}
	if upd.Title != nil {
		set = append(set, bson.E{Key: "title", Value: strings.TrimSpace(*upd.Title)})
	}
	if upd.Completed != nil {
		set = append(set, bson.E{Key: "completed", Value: *upd.Completed})
	}
	if upd.StartDate != nil {
		set = append(set, bson.E{Key: "startDate", Value: *upd.StartDate})
	}
	if upd.EndDate != nil {
		set = append(set, bson.E{Key: "endDate", Value: *upd.EndDate})
	}
	if upd.TaskType != nil {
		set = append(set, bson.E{Key: "taskType", Value: strings.TrimSpace(*upd.TaskType)})
	}
	if upd.Subject != nil {
		set = append(set, bson.E{Key: "subject", Value: strings.TrimSpace(*upd.Subject)})
	}
	if upd.Repeat != nil {
		rep := *upd.Repeat
		if rep == "" {
			rep = model.RepeatNone
		}
		set = append(set, bson.E{Key: "repeat", Value: rep})
	}
	return set
}

// findAndSet applies set to the single document matched by filter and
// decodes the result into out. An empty set just reads the document.
func (r *repo) findAndSet(ctx context.Context, coll string, filter bson.M, set bson.D, out any) error {
	var res *mongo.SingleResult
	if len(set) == 0 {
		res = r.coll(coll).FindOne(ctx, filter)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		res = r.coll(coll).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts)
	}
	return res.Decode(out)
}

func notFoundOr(op, what string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(op, what)
	}
	return apperr.Transport(op, err)
}

func (r *repo) ListEvents(ctx context.Context, username string) ([]model.CalendarEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "id", Value: 1}})
	cur, err := r.coll(eventsCollection).Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, apperr.Transport("events.list", err)
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperr.Transport("events.list", err)
	}
	out := make([]model.CalendarEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.CalendarEvent)
	}
	store.SortEvents(out)
	return out, nil
}

func (r *repo) CreateEvents(ctx context.Context, username, calendarID string, events []model.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(events))
	for _, ev := range events {
		ev.CalendarID = calendarID
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(ownedBy(username, ev.ID)).
			SetReplacement(eventDoc{Username: username, CalendarEvent: ev}).
			SetUpsert(true))
	}
	_, err := r.coll(eventsCollection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	return apperr.Transport("events.create", err)
}

func (r *repo) UpdateEvent(ctx context.Context, username, id string, upd model.EventUpdate) (model.CalendarEvent, error) {
	var d eventDoc
	if err := r.findAndSet(ctx, eventsCollection, ownedBy(username, id), eventSet(upd), &d); err != nil {
		return model.CalendarEvent{}, notFoundOr("events.update", "event", err)
	}
	return d.CalendarEvent, nil
}

func (r *repo) DeleteEvent(ctx context.Context, username, id string) error {
	res, err := r.coll(eventsCollection).DeleteOne(ctx, ownedBy(username, id))
	if err != nil {
		return apperr.Transport("events.delete", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("events.delete", "event")
	}
	return nil
}

func (r *repo) DeleteCalendarEvents(ctx context.Context, username, calendarID string) (int, error) {
	res, err := r.coll(eventsCollection).DeleteMany(ctx, bson.M{"username": username, "calendarId": calendarID})
	if err != nil {
		return 0, apperr.Transport("events.delete_calendar", err)
	}
	return int(res.DeletedCount), nil
}

func (r *repo) ListCalendars(ctx context.Context, username string) ([]model.Calendar, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "id", Value: 1}})
	cur, err := r.coll(calendarsCollection).Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, apperr.Transport("calendars.list", err)
	}
	var docs []calendarDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperr.Transport("calendars.list", err)
	}
	out := make([]model.Calendar, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Calendar)
	}
	store.SortCalendars(out)
	return out, nil
}

func (r *repo) SaveCalendar(ctx context.Context, username string, cal model.Calendar) error {
	_, err := r.coll(calendarsCollection).ReplaceOne(ctx, ownedBy(username, cal.ID),
		calendarDoc{Username: username, Calendar: cal}, options.Replace().SetUpsert(true))
	return apperr.Transport("calendars.save", err)
}

func (r *repo) DeleteCalendar(ctx context.Context, username, id string) error {
	res, err := r.coll(calendarsCollection).DeleteOne(ctx, ownedBy(username, id))
	if err != nil {
		return apperr.Transport("calendars.delete", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("calendars.delete", "calendar")
	}
	return nil
}

func (r *repo) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: 1}})
	cur, err := r.coll(tasksCollection).Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, apperr.Transport("tasks.list", err)
	}
	out := make([]model.Task, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Transport("tasks.list", err)
	}
	return out, nil
}

func (r *repo) GetTask(ctx context.Context, userID, id string) (model.Task, error) {
	var t model.Task
	if err := r.coll(tasksCollection).FindOne(ctx, taskOwnedBy(userID, id)).Decode(&t); err != nil {
		return model.Task{}, notFoundOr("tasks.get", "task", err)
	}
	return t, nil
}

func (r *repo) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if _, err := r.coll(tasksCollection).InsertOne(ctx, task); err != nil {
		return model.Task{}, apperr.Transport("tasks.create", err)
	}
	return task, nil
}

func (r *repo) UpdateTask(ctx context.Context, userID, id string, upd model.TaskUpdate) (model.Task, error) {
	var t model.Task
	if err := r.findAndSet(ctx, tasksCollection, taskOwnedBy(userID, id), taskSet(upd), &t); err != nil {
		return model.Task{}, notFoundOr("tasks.update", "task", err)
	}
	return t, nil
}

func (r *repo) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := r.coll(tasksCollection).DeleteOne(ctx, taskOwnedBy(userID, id))
	if err != nil {
		return apperr.Transport("tasks.delete", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("tasks.delete", "task")
	}
	return nil
}

func (r *repo) GetPref(ctx context.Context, username, key string) (string, bool, error) {
	var d prefDoc
	err := r.coll(prefsCollection).FindOne(ctx, bson.M{"username": username, "key": key}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Transport("prefs.get", err)
	}
	return d.Value, true, nil
}

func (r *repo) SetPref(ctx context.Context, username, key, value string) error {
	_, err := r.coll(prefsCollection).UpdateOne(ctx,
		bson.M{"username": username, "key": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true))
	return apperr.Transport("prefs.set", err)
}
