package store_test

import (
	"testing"

	"studycal/internal/store"
	"studycal/internal/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return store.NewMemory() })
}
