package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/config"
	"studycal/internal/ics"
	"studycal/internal/store"
)

func TestSources(t *testing.T) {
	got := sources([]config.SubscriptionConfig{
		{ID: "uni", Name: "Timetable", URL: "https://example.edu/t.ics", Username: "ada"},
	})
	assert.Equal(t, []ics.Source{
		{ID: "uni", Name: "Timetable", URL: "https://example.edu/t.ics", Username: "ada"},
	}, got)
	assert.Empty(t, sources(nil))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, config.StoreConfig{Driver: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)

	st, err = openStore(ctx, config.StoreConfig{Driver: config.StoreBolt, Path: filepath.Join(t.TempDir(), "db", "studycal.db")})
	require.NoError(t, err)
	assert.NoError(t, st.Close())

	_, err = openStore(ctx, config.StoreConfig{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = openStore(ctx, config.StoreConfig{Driver: config.StoreMongo})
	assert.Error(t, err)
}
