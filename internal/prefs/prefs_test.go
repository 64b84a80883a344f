package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/apperr"
	"studycal/internal/store"
)

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	_, ok, err := s.Get(ctx, "ada", KeyCustomSubjects)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "ada", KeyCustomSubjects, `["Latin","Chemistry"]`))
	v, ok, err := s.Get(ctx, "ada", KeyCustomSubjects)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `["Latin","Chemistry"]`, v)
}

func TestSetRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	assert.True(t, apperr.IsValidation(s.Set(ctx, "ada", KeyTaskTypeIcons, `{"Exam":`)))
	assert.True(t, apperr.IsValidation(s.Set(ctx, "", KeyTaskTypeIcons, `{}`)))
	assert.True(t, apperr.IsValidation(s.Set(ctx, "ada", " ", `{}`)))

	_, _, err := s.Get(ctx, "", KeyTaskTypeIcons)
	assert.True(t, apperr.IsValidation(err))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	ch, cancel := s.Subscribe("ada", KeyCustomTaskTypes)
	other, cancelOther := s.Subscribe("bob", KeyCustomTaskTypes)
	defer cancelOther()

	require.NoError(t, s.Set(ctx, "ada", KeyCustomTaskTypes, `["Lab"]`))
	assert.Equal(t, `["Lab"]`, <-ch)

	// Only the latest undelivered value is kept.
	require.NoError(t, s.Set(ctx, "ada", KeyCustomTaskTypes, `["Lab","Seminar"]`))
	require.NoError(t, s.Set(ctx, "ada", KeyCustomTaskTypes, `["Seminar"]`))
	assert.Equal(t, `["Seminar"]`, <-ch)

	select {
	case v := <-other:
		t.Fatalf("bob received %q", v)
	default:
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()

	require.NoError(t, s.Set(ctx, "ada", KeyCustomTaskTypes, `[]`))
}
