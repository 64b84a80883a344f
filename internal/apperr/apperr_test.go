package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		kind Kind
		msg  string
	}{
		{"validation", Validation("events.create", "missing %s", "username"), KindValidation, "events.create: missing username"},
		{"parse", Parse("ics.import", cause), KindParse, "ics.import: not a valid calendar file: disk full"},
		{"not found", NotFound("events.update", "event"), KindNotFound, "events.update: event not found"},
		{"transport", Transport("events.list", cause), KindTransport, "events.list: transport: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.msg, tt.err.Error())
		})
	}
}

func TestTransportKeepsExistingKind(t *testing.T) {
	nf := NotFound("tasks.delete", "task")
	assert.True(t, IsNotFound(Transport("store", nf)))
	assert.Nil(t, Transport("store", nil))
}

func TestKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("planner: %w", Validation("x", "bad"))
	assert.True(t, IsValidation(err))
	assert.False(t, IsParse(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
