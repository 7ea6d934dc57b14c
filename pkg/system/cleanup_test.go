//go:build unit || !integration

package system

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanupRunsCallbacksNewestFirst(t *testing.T) {
	cm := NewCleanupManager()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		cm.RegisterCallback(func() error {
			order = append(order, name)
			return nil
		})
	}

	cm.Cleanup()
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestCleanupIsIdempotent(t *testing.T) {
	cm := NewCleanupManager()

	calls := 0
	cm.RegisterCallback(func() error {
		calls++
		return nil
	})

	cm.Cleanup()
	cm.Cleanup()
	assert.Equal(t, 1, calls)
}

func TestCleanupContinuesPastFailures(t *testing.T) {
	cm := NewCleanupManager()

	ran := false
	cm.RegisterCallback(func() error {
		ran = true
		return nil
	})
	cm.RegisterCallback(func() error {
		return errors.New("close failed")
	})

	cm.Cleanup()
	assert.True(t, ran)
}

func TestRegisterAfterCleanupIsDropped(t *testing.T) {
	cm := NewCleanupManager()
	cm.Cleanup()

	cm.RegisterCallback(func() error {
		t.Fatal("callback registered after cleanup must not run")
		return nil
	})
	cm.Cleanup()
}
