// Package tasks holds the units of work the scheduler, the CLI and the
// HTTP API invoke: registering, harvesting, checking and indexing.
//
// Each unit works on one resource and is safe to run concurrently for
// different resources. Batch runs record one Outcome per resource and
// continue past failures.
package tasks

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/search"
	"github.com/MrSnakeDoc/georegistry/internal/sources"
	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
)

// Metrics receives one observation per unit of work.
type Metrics interface {
	ObserveHarvest(serviceType string, ok bool, elapsed time.Duration)
	ObserveCheck(kind domain.ResourceKind, ok bool, elapsed time.Duration)
	ObserveIndex(engine, result string, n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveHarvest(string, bool, time.Duration)            {}
func (nopMetrics) ObserveCheck(domain.ResourceKind, bool, time.Duration) {}
func (nopMetrics) ObserveIndex(string, string, int)                      {}

// Options tunes a Runner.
type Options struct {
	// Concurrency bounds the resources processed at once by batch runs.
	Concurrency int

	HarvestTimeout time.Duration
	CheckTimeout   time.Duration
	IndexTimeout   time.Duration

	// LocalOrganization replaces the originator of services on localhost.
	LocalOrganization string
}

// Runner executes the units of work against one repository.
type Runner struct {
	repo      domain.Repository
	harvester *sources.Harvester
	registry  *sources.Registry
	engines   *search.Set
	client    *fetch.Client
	metrics   Metrics
	log       logger.Logger
	opts      Options
	now       func() time.Time
}

// Deps are the collaborators of a Runner. Metrics may be nil.
type Deps struct {
	Repo      domain.Repository
	Harvester *sources.Harvester
	Registry  *sources.Registry
	Engines   *search.Set
	Client    *fetch.Client
	Metrics   Metrics
	Logger    logger.Logger
}

// New creates a Runner.
func New(d Deps, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.HarvestTimeout <= 0 {
		opts.HarvestTimeout = 60 * time.Second
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 30 * time.Second
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = 30 * time.Second
	}
	m := d.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Runner{
		repo:      d.Repo,
		harvester: d.Harvester,
		registry:  d.Registry,
		engines:   d.Engines,
		client:    d.Client,
		metrics:   m,
		log:       d.Logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Outcome is the result of one unit of work on one resource.
type Outcome struct {
	Resource domain.ResourceKey `json:"resource"`
	OK       bool               `json:"ok"`
	Skipped  bool               `json:"skipped,omitempty"`
	Message  string             `json:"message,omitempty"`
	Elapsed  time.Duration      `json:"elapsed"`
}

// Report collects the outcomes of a batch run.
type Report struct {
	Operation string        `json:"operation"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// Counts returns how many outcomes succeeded, were skipped and failed.
func (r *Report) Counts() (ok, skipped, failed int) {
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.OK:
			ok++
		default:
			failed++
		}
	}
	return ok, skipped, failed
}

func (r *Report) log(l logger.Logger) {
	ok, skipped, failed := r.Counts()
	l.Info("batch finished",
		logger.String("operation", r.Operation),
		logger.Int("ok", ok),
		logger.Int("skipped", skipped),
		logger.Int("failed", failed),
		logger.Duration("elapsed", r.Elapsed))
}

// each runs fn for every id with bounded concurrency. fn never fails the
// group: its outcome is stored at the id's position.
func (r *Runner) each(ctx context.Context, op string, ids []domain.ResourceKey, fn func(context.Context, domain.ResourceKey) Outcome) *Report {
	rep := &Report{Operation: op, Started: r.now(), Outcomes: make([]Outcome, len(ids))}

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, key := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				rep.Outcomes[i] = Outcome{Resource: key, Message: err.Error()}
				return nil
			}
			rep.Outcomes[i] = fn(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	rep.Elapsed = r.now().Sub(rep.Started)
	rep.log(r.log)
	return rep
}

func failure(key domain.ResourceKey, start time.Time, err error) Outcome {
	return Outcome{Resource: key, Message: err.Error(), Elapsed: time.Since(start)}
}
