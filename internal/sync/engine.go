package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/dhkang/photocal/internal/model"
)

const (
	otelScope       = "photocal/sync"
	spanSync        = "sync.run"
	metricCreated   = "photocal.sync.events.created"
	metricUpdated   = "photocal.sync.events.updated"
	metricDeleted   = "photocal.sync.events.deleted"
	metricConflicts = "photocal.sync.conflicts"
	metricErrors    = "photocal.sync.errors"
)

// EngineConfig fixes the recurring-sync parameters for one user.
type EngineConfig struct {
	UserID   string
	Strategy model.Strategy

	// WindowPast and WindowAhead define the sync window relative to
	// the wall clock at the start of each pass.
	WindowPast  time.Duration
	WindowAhead time.Duration

	// PollInterval drives the default ticker loop. Ignored when
	// Schedule is set.
	PollInterval time.Duration

	// Schedule is an optional cron expression replacing the ticker.
	Schedule string
}

// Engine runs sync passes on a schedule. Create one with [NewEngine]
// and start it with [Engine.Run].
type Engine struct {
	orch *Orchestrator
	cfg  EngineConfig
	log  *slog.Logger

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer       trace.Tracer
	cntCreated   metric.Int64Counter
	cntUpdated   metric.Int64Counter
	cntDeleted   metric.Int64Counter
	cntConflicts metric.Int64Counter
	cntErrors    metric.Int64Counter
}

func NewEngine(orch *Orchestrator, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		orch: orch,
		cfg:  cfg,
		log:  logger,

		tracer:       tracer,
		cntCreated:   mustCounter(metricCreated, "Number of events created during sync"),
		cntUpdated:   mustCounter(metricUpdated, "Number of events updated during sync"),
		cntDeleted:   mustCounter(metricDeleted, "Number of events deleted during sync"),
		cntConflicts: mustCounter(metricConflicts, "Number of conflicts deferred during sync"),
		cntErrors:    mustCounter(metricErrors, "Number of per-event errors during sync"),
	}
}

func (e *Engine) window(now time.Time) model.Window {
	return model.Window{
		From: now.Add(-e.cfg.WindowPast),
		To:   now.Add(e.cfg.WindowAhead),
	}
}

// run performs one sync pass, recording a trace span and metrics.
func (e *Engine) run(ctx context.Context) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, spanSync)
	defer span.End()

	rpt, err := e.orch.Sync(ctx, e.cfg.UserID, e.window(time.Now().UTC()), e.cfg.Strategy)
	if rpt == nil {
		rpt = &Report{}
	}

	if n := rpt.Created.Total(); n > 0 {
		e.cntCreated.Add(ctx, int64(n))
	}
	if n := rpt.Updated.Total(); n > 0 {
		e.cntUpdated.Add(ctx, int64(n))
	}
	if n := rpt.Deleted.Total(); n > 0 {
		e.cntDeleted.Add(ctx, int64(n))
	}
	if n := len(rpt.Conflicts); n > 0 {
		e.cntConflicts.Add(ctx, int64(n))
	}
	if n := len(rpt.Errors); n > 0 {
		e.cntErrors.Add(ctx, int64(n))
	}

	span.SetAttributes(
		attribute.Int("sync.created", rpt.Created.Total()),
		attribute.Int("sync.updated", rpt.Updated.Total()),
		attribute.Int("sync.deleted", rpt.Deleted.Total()),
		attribute.Int("sync.conflicts", len(rpt.Conflicts)),
		attribute.Int("sync.errors", len(rpt.Errors)),
	)
	if err != nil {
		span.RecordError(err)
	}
	return rpt, err
}

// RunOnce performs a single sync pass and returns its report.
func (e *Engine) RunOnce(ctx context.Context) (*Report, error) {
	return e.run(ctx)
}

// Run starts the recurring loop and blocks until ctx is cancelled. An
// immediate first pass runs before the first scheduled one so a fresh
// daemon converges without waiting out the interval.
func (e *Engine) Run(ctx context.Context) error {
	pass := func() {
		if _, err := e.run(ctx); err != nil {
			e.log.Error("sync pass failed", "error", err)
		}
	}

	pass()

	if e.cfg.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(e.cfg.Schedule, pass); err != nil {
			return fmt.Errorf("invalid sync schedule %q: %w", e.cfg.Schedule, err)
		}
		c.Start()
		defer c.Stop()

		<-ctx.Done()
		e.log.Info("sync engine shutting down")
		return ctx.Err()
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			pass()
		}
	}
}
