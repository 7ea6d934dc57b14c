// Package system holds process-lifecycle helpers shared by the manager and
// worker nodes.
package system

import (
	"context"
	"errors"
	"time"

	sync "github.com/bacalhau-project/golang-mutex-tracer"

	"github.com/rs/zerolog/log"
)

// CleanupManager collects teardown callbacks from components as they are
// wired and runs them on shutdown in reverse registration order, so a
// component is never torn down before anything constructed on top of it.
type CleanupManager struct {
	mu   sync.Mutex
	fns  []func() error
	done bool
}

func NewCleanupManager() *CleanupManager {
	cm := &CleanupManager{}
	cm.mu.EnableTracerWithOpts(sync.Opts{
		Threshold: 10 * time.Millisecond,
		Id:        "CleanupManager.mu",
	})
	return cm
}

// RegisterCallback adds a teardown callback. Registration after Cleanup has
// run is dropped with an error log rather than silently leaking.
func (cm *CleanupManager) RegisterCallback(fn func() error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.done {
		log.Error().Msg("cleanup callback registered after shutdown, dropping it")
		return
	}
	cm.fns = append(cm.fns, fn)
}

// Cleanup runs the registered callbacks newest-first and returns once all
// have finished. Calling it a second time is a no-op.
func (cm *CleanupManager) Cleanup() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.done {
		return
	}
	cm.done = true

	for i := len(cm.fns) - 1; i >= 0; i-- {
		if err := cm.fns[i](); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("error during cleanup callback")
		}
	}
}
