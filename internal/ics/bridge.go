package ics

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// ProductID identifies studycal in exported calendars.
const ProductID = "-//studycal//studycal//EN"

// IDGenerator produces unique identifiers for events and calendar groupings.
type IDGenerator interface {
	NewID() string
}

// ColorGenerator produces a display colour for a new calendar grouping.
type ColorGenerator interface {
	NewColor() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

// ColorFunc adapts a function to ColorGenerator.
type ColorFunc func() string

func (f ColorFunc) NewColor() string { return f() }

// UUIDs generates random (v4) UUID strings.
var UUIDs IDGenerator = IDFunc(uuid.NewString)

// RandomColors generates "#rrggbb" colours.
var RandomColors ColorGenerator = ColorFunc(func() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
})

// Bridge converts between CalendarEvent values and iCalendar text. It holds
// no state across calls besides its generators.
type Bridge struct {
	IDs    IDGenerator
	Colors ColorGenerator
	Now    func() time.Time

	// Location pins DATE and floating times on import. Defaults to
	// time.Local.
	Location *time.Location
}

// NewBridge returns a Bridge using random UUIDs and colours.
func NewBridge() *Bridge {
	return &Bridge{IDs: UUIDs, Colors: RandomColors, Now: time.Now}
}

func (b *Bridge) newID() string {
	if b.IDs == nil {
		return UUIDs.NewID()
	}
	return b.IDs.NewID()
}

func (b *Bridge) newColor() string {
	if b.Colors == nil {
		return RandomColors.NewColor()
	}
	return b.Colors.NewColor()
}

func (b *Bridge) location() *time.Location {
	if b.Location == nil {
		return time.Local
	}
	return b.Location
}

func (b *Bridge) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}
