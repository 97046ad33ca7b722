package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/tasks"
)

// Jobs is the part of tasks.Runner driven by the harvest scheduler.
type Jobs interface {
	CheckAll(ctx context.Context, layers bool) ([]*tasks.Report, error)
	IndexAll(ctx context.Context) ([]*tasks.Report, error)
}

// ErrRunInProgress is returned by Run when a previous run has not finished.
var ErrRunInProgress = errors.New("harvest run already in progress")

// RunStatus summarises the latest harvest run.
type RunStatus struct {
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Elapsed  time.Duration `json:"elapsed"`
	OK       int           `json:"ok"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Error    string        `json:"error,omitempty"`
}

// HarvestScheduler periodically checks every service (and optionally every
// layer) and then re-indexes all catalogs.
type HarvestScheduler struct {
	jobs          Jobs
	logger        logger.Logger
	interval      time.Duration
	checkLayers   bool
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	running atomic.Bool
	mu      sync.RWMutex
	last    RunStatus
}

// NewHarvestScheduler creates a scheduler. A non-positive interval disables
// the ticker; manual triggers still run.
func NewHarvestScheduler(
	jobs Jobs,
	log logger.Logger,
	interval time.Duration,
	checkLayers bool,
	manualTrigger chan struct{},
) *HarvestScheduler {
	return &HarvestScheduler{
		jobs:          jobs,
		logger:        log,
		interval:      interval,
		checkLayers:   checkLayers,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start launches the scheduling loop. When runNow is set the first run
// starts immediately instead of after one interval.
func (hs *HarvestScheduler) Start(ctx context.Context, runNow bool) {
	var tick <-chan time.Time
	var ticker *time.Ticker
	if hs.interval > 0 {
		ticker = time.NewTicker(hs.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		if runNow {
			hs.runLogged(ctx)
		}
		for {
			select {
			case <-tick:
				hs.runLogged(ctx)
			case <-hs.manualTrigger:
				hs.logger.Info("manual harvest triggered")
				hs.runLogged(ctx)
			case <-hs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scheduling loop. A run in progress finishes on its own.
func (hs *HarvestScheduler) Stop() {
	hs.stopOnce.Do(func() { close(hs.stopCh) })
}

// Running reports whether a run is in progress.
func (hs *HarvestScheduler) Running() bool { return hs.running.Load() }

// Last returns the status of the latest finished run.
func (hs *HarvestScheduler) Last() RunStatus {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.last
}

func (hs *HarvestScheduler) runLogged(ctx context.Context) {
	if err := hs.Run(ctx); err != nil {
		hs.logger.Error("harvest run failed", logger.Error(err))
	}
}

// Run checks services, then layers when enabled, then indexes every catalog.
// Per-resource failures are part of the status, not of the returned error.
func (hs *HarvestScheduler) Run(ctx context.Context) error {
	if !hs.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer hs.running.Store(false)

	st := RunStatus{Started: time.Now()}
	hs.logger.Info("harvest run started", logger.Bool("layers", hs.checkLayers))

	err := hs.run(ctx, &st)

	st.Finished = time.Now()
	st.Elapsed = st.Finished.Sub(st.Started)
	if err != nil {
		st.Error = err.Error()
	}
	hs.mu.Lock()
	hs.last = st
	hs.mu.Unlock()

	hs.logger.Info("harvest run finished",
		logger.Int("ok", st.OK),
		logger.Int("skipped", st.Skipped),
		logger.Int("failed", st.Failed),
		logger.Duration("elapsed", st.Elapsed))
	return err
}

func (hs *HarvestScheduler) run(ctx context.Context, st *RunStatus) error {
	checks, err := hs.jobs.CheckAll(ctx, hs.checkLayers)
	st.add(checks)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	indexed, err := hs.jobs.IndexAll(ctx)
	st.add(indexed)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

func (st *RunStatus) add(reports []*tasks.Report) {
	for _, r := range reports {
		ok, skipped, failed := r.Counts()
		st.OK += ok
		st.Skipped += skipped
		st.Failed += failed
	}
}
