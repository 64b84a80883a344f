package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/model"
	"studycal/internal/store"
	"studycal/internal/store/storetest"
)

func TestBoltStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "studycal.db"))
		require.NoError(t, err)
		return s
	})
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "studycal.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateEvents(ctx, "ada", "term", []model.CalendarEvent{
		{ID: "midterm", Title: "Midterm", Start: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	events, err := s.ListEvents(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Midterm", events[0].Title)
	assert.Equal(t, "term", events[0].CalendarID)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
