package manager

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// DefaultHousekeepingInterval is how often the manage pass runs when the
// configuration does not set one.
const DefaultHousekeepingInterval = 5 * time.Second

type HousekeepingParams struct {
	TaskManager *TaskManager
	// Interval is the interval at which the manage pass runs.
	Interval time.Duration
	// Clock is the clock used for time-based operations.
	// If not provided, the system clock is used.
	Clock clock.Clock
}

// Housekeeping periodically runs the task manage pass: expiring stale
// assignments and handing pending tasks to available workers. Tasks are also
// managed eagerly on lifecycle changes; the tick is the backstop that makes
// progress when no message arrives.
type Housekeeping struct {
	taskManager *TaskManager
	interval    time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	waitGroup sync.WaitGroup
	clock     clock.Clock
}

func NewHousekeeping(params HousekeepingParams) *Housekeeping {
	if params.Interval <= 0 {
		params.Interval = DefaultHousekeepingInterval
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &Housekeeping{
		taskManager: params.TaskManager,
		interval:    params.Interval,
		stopChan:    make(chan struct{}),
		clock:       params.Clock,
	}
}

// Start begins the periodic manage pass. Subsequent calls are no-ops.
func (h *Housekeeping) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		h.waitGroup.Add(1)
		go h.run(ctx)
	})
}

// Stop halts the tick and waits for an in-flight pass to finish, or until
// the context is done.
func (h *Housekeeping) Stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		close(h.stopChan)

		done := make(chan struct{})
		go func() {
			h.waitGroup.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
		}
	})
}

func (h *Housekeeping) run(ctx context.Context) {
	defer h.waitGroup.Done()

	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.taskManager.ManageTasks(ctx); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("housekeeping pass failed")
			}
		case <-ctx.Done():
			log.Ctx(ctx).Debug().Msg("context cancelled, stopping housekeeping")
			return
		case <-h.stopChan:
			log.Ctx(ctx).Debug().Msg("stop requested, stopping housekeeping")
			return
		}
	}
}
