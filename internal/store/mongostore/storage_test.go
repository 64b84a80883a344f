package mongostore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"studycal/internal/model"
	"studycal/internal/store"
	"studycal/internal/store/storetest"
)

func TestEventSet(t *testing.T) {
	title := "Final"
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	set := eventSet(model.EventUpdate{Title: &title, Start: &start})
	assert.Equal(t, bson.D{{Key: "title", Value: "Final"}, {Key: "start", Value: start}}, set)

	assert.Empty(t, eventSet(model.EventUpdate{}))
}

func TestTaskSetNormalises(t *testing.T) {
	title, subject := "  Essay ", " History  "
	rep := model.Repeat("")
	done := true

	set := taskSet(model.TaskUpdate{Title: &title, Subject: &subject, Repeat: &rep, Completed: &done})
	assert.Equal(t, bson.D{
		{Key: "title", Value: "Essay"},
		{Key: "completed", Value: true},
		{Key: "subject", Value: "History"},
		{Key: "repeat", Value: model.RepeatNone},
	}, set)
}

func TestFilters(t *testing.T) {
	assert.Equal(t, bson.M{"username": "ada", "id": "e1"}, ownedBy("ada", "e1"))
	assert.Equal(t, bson.M{"userId": "ada", "id": "t1"}, taskOwnedBy("ada", "t1"))
}

func TestOpenEmptyURI(t *testing.T) {
	_, err := Open(context.Background(), "", "")
	assert.Error(t, err)
}

// TestMongoStore runs the shared store suite against a live server when
// STUDYCAL_TEST_MONGO_URI is set.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("STUDYCAL_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STUDYCAL_TEST_MONGO_URI not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		db := "studycal_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		s, err := Open(context.Background(), uri, db)
		require.NoError(t, err)
		// The suite closes s itself, so the drop needs its own connection.
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if c, err := Open(ctx, uri, db); err == nil {
				_ = c.(*repo).db.Drop(ctx)
				_ = c.Close()
			}
		})
		return s
	})
}
