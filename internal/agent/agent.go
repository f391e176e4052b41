// Package agent runs the periodic analysis loop: read the target location,
// analyze it, persist the run, and raise alerts.
package agent

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/rafabd1/climatesense/internal/metrics"
	"github.com/rafabd1/climatesense/internal/notify"
	"github.com/rafabd1/climatesense/internal/report"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/logger"
)

// ErrRunInProgress is returned by RunOnce while another run is still going.
var ErrRunInProgress = errors.New("analysis run already in progress")

// LocationSource yields the location to monitor.
type LocationSource interface {
	Location(ctx context.Context, def string) string
}

// MemoryWriter persists finished runs.
type MemoryWriter interface {
	Append(ctx context.Context, entry types.LogEntry) error
}

type Options struct {
	DefaultLocation string
	Schedule        string
	AlertLevels     []types.RiskLevel
	ReportDir       string
}

type Deps struct {
	Pipeline *Pipeline
	Control  LocationSource
	Memory   MemoryWriter
	Composer *EmailComposer
	Mailer   notify.Sender
	Out      io.Writer
	Metrics  *metrics.Metrics
}

type Agent struct {
	deps        Deps
	opts        Options
	broadcaster *Broadcaster
	running     atomic.Bool
	now         func() time.Time
}

func New(deps Deps, opts Options) (*Agent, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("agent requires a pipeline")
	}
	if deps.Control == nil || deps.Memory == nil {
		return nil, errors.New("agent requires control and memory files")
	}
	if opts.Schedule == "" {
		opts.Schedule = "@every 1h"
	}
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q", opts.Schedule)
	}
	return &Agent{
		deps:        deps,
		opts:        opts,
		broadcaster: &Broadcaster{Out: deps.Out},
		now:         time.Now,
	}, nil
}

func (a *Agent) shouldAlert(level types.RiskLevel) bool {
	for _, l := range a.opts.AlertLevels {
		if l == level {
			return true
		}
	}
	return false
}

// RunOnce performs a single analysis of the current target location.
func (a *Agent) RunOnce(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer a.running.Store(false)

	started := a.now()
	log := logger.FromContext(ctx)
	log.Info("New run", "at", started.Format(time.RFC3339))

	city := a.deps.Control.Location(ctx, a.opts.DefaultLocation)
	log.Info("Target location set", "location", city)

	entry, err := a.deps.Pipeline.Analyze(ctx, city, true)
	if err != nil {
		if errors.Is(err, ErrWeatherUnavailable) {
			log.Warn("Skipping run due to weather fetch error", "location", city, "error", err)
			a.deps.Metrics.RecordRun("skipped", a.now().Sub(started))
		} else {
			a.deps.Metrics.RecordRun("failed", a.now().Sub(started))
		}
		return err
	}

	a.broadcaster.Broadcast(entry, a.now())
	a.deps.Metrics.SetRiskLevel(city, entry.RiskReport.RiskLevel)

	if err := a.deps.Memory.Append(ctx, *entry); err != nil {
		log.Error("Failed to save run to memory", "error", err)
	}

	if a.shouldAlert(entry.RiskReport.RiskLevel) {
		log.Info("Elevated risk detected; starting report and email workflow", "risk_level", entry.RiskReport.RiskLevel)
		a.alert(ctx, entry)
	} else {
		log.Info("Risk below alert threshold; no report will be sent", "risk_level", entry.RiskReport.RiskLevel)
	}

	a.deps.Metrics.RecordRun("success", a.now().Sub(started))
	log.Info("Run complete", "duration", a.now().Sub(started).Round(time.Millisecond))
	return nil
}

func (a *Agent) alert(ctx context.Context, entry *types.LogEntry) {
	log := logger.FromContext(ctx)

	path, err := report.Generate(entry, a.opts.ReportDir, a.now())
	if err != nil {
		log.Error("Failed to generate PDF report", "error", err)
		a.deps.Metrics.RecordAlert("report_failed")
		return
	}
	log.Info("Report saved", "path", path)

	if a.deps.Composer == nil || a.deps.Mailer == nil {
		a.deps.Metrics.RecordAlert("skipped")
		return
	}
	msg := a.deps.Composer.Compose(ctx, entry)
	msg.Attachment = path

	err = a.deps.Mailer.Send(ctx, msg)
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		log.Warn("Missing email configuration; skipping email")
		a.deps.Metrics.RecordAlert("skipped")
	case err != nil:
		log.Error("Failed to send email", "error", err)
		a.deps.Metrics.RecordAlert("failed")
	default:
		a.deps.Metrics.RecordAlert("sent")
	}
}

// Run analyzes immediately and then on every schedule tick until ctx is
// cancelled. A tick that fires while a run is still going is skipped.
func (a *Agent) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("ClimateSense agent activated", "schedule", a.opts.Schedule)

	a.runLogged(ctx)

	c := cron.New(
		cron.WithLogger(cronLogger{log: log}),
		cron.WithChain(cron.Recover(cronLogger{log: log})),
	)
	if _, err := c.AddFunc(a.opts.Schedule, func() { a.runLogged(ctx) }); err != nil {
		return errors.Wrapf(err, "schedule %q", a.opts.Schedule)
	}
	c.Start()

	<-ctx.Done()
	log.Info("Shutting down agent loop")
	<-c.Stop().Done()
	log.Info("ClimateSense agent deactivated")
	return nil
}

func (a *Agent) runLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := a.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		logger.FromContext(ctx).Warn("Previous run still in progress; skipping this tick")
	case errors.Is(err, ErrWeatherUnavailable):
	case err != nil:
		logger.FromContext(ctx).Error("Run failed", "error", err)
	}
}

// cronLogger adapts our logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Interval estimates the gap between two runs of schedule. It falls back to
// an hour when the schedule cannot be parsed.
func Interval(schedule string, now time.Time) time.Duration {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Hour
	}
	next := sched.Next(now)
	if d := sched.Next(next).Sub(next); d > 0 {
		return d
	}
	return time.Hour
}
