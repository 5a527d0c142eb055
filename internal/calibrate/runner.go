// Package calibrate runs throughput estimations the way the kdfcal commands
// need them: retried on transient clock failures, traced, counted in
// metrics and captured as a report.Result.
package calibrate

import (
	"context"
	"fmt"
	"time"

	"github.com/psantana5/kdfcal/internal/report"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/psantana5/kdfcal/pkg/metrics"
	"github.com/psantana5/kdfcal/pkg/precisetime"
	"github.com/psantana5/kdfcal/pkg/retry"
	"github.com/psantana5/kdfcal/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Config controls a calibration run
type Config struct {
	Precision       int
	MaxStalledCalls int
	Retry           retry.Config
}

// DefaultConfig returns the estimator defaults with the standard retry policy
func DefaultConfig() Config {
	est := cpuperf.DefaultConfig()
	return Config{
		Precision:       est.Precision,
		MaxStalledCalls: est.MaxStalledCalls,
		Retry:           retry.DefaultConfig(),
	}
}

// Runner measures one workload against one clock. Metrics and Tracer are
// optional.
type Runner struct {
	Clock     cpuperf.Clock
	ClockInfo precisetime.Info
	Workload  cpuperf.Workload
	Name      string
	Config    Config
	Metrics   *metrics.Collector
	Tracer    *tracing.Provider
	Logger    *logging.Logger
}

// NewRunner creates a runner for the scrypt workload on the process clock
func NewRunner(cfg Config, logger *logging.Logger) (*Runner, error) {
	clock, err := precisetime.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to open clock: %w", err)
	}
	info, err := clock.Describe()
	if err != nil {
		return nil, fmt.Errorf("failed to describe clock: %w", err)
	}

	w := cpuperf.NewScryptWorkload()
	return &Runner{
		Clock:     clock,
		ClockInfo: info,
		Workload:  w,
		Name:      w.String(),
		Config:    cfg,
		Logger:    logger,
	}, nil
}

// Run estimates throughput, retrying while the failure is transient. The
// returned Result is always non-nil and records the failure when err is set.
func (r *Runner) Run(ctx context.Context) (*report.Result, error) {
	tracer := r.Tracer
	if tracer == nil {
		tracer = tracing.Disabled("kdfcal")
	}
	logger := r.Logger.WithFields(logging.Fields{"workload": r.Name})

	ctx, span := tracer.StartSpan(ctx, "kdfcal.calibrate",
		attribute.String("kdfcal.workload", r.Name),
		attribute.String("kdfcal.clock.source", r.ClockInfo.Source),
		attribute.Float64("kdfcal.clock.resolution_seconds", r.ClockInfo.ResolutionSeconds),
	)
	defer span.End()

	estimator := cpuperf.NewEstimator(r.Clock, cpuperf.Config{
		Precision:       r.Config.Precision,
		MaxStalledCalls: r.Config.MaxStalledCalls,
		Logger:          logger,
	})

	policy := r.Config.Retry
	policy.Retryable = cpuperf.IsTransient
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("estimation failed, retrying", logging.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
		tracing.AddEvent(ctx, "retry", attribute.Int("attempt", attempt))
	}

	start := time.Now()
	attempts := 0
	var m *cpuperf.Measurement

	err := retry.Do(ctx, policy, func() error {
		attempts++
		began := time.Now()
		var err error
		m, err = estimator.Measure(r.Workload)
		if r.Metrics != nil {
			r.Metrics.Observe(m, time.Since(began), err)
		}
		return err
	})

	res := report.NewResult(r.Name, start, time.Now(), attempts, m, err)
	res.SetClock(r.ClockInfo)

	if err != nil {
		tracing.SetError(ctx, err)
		return res, err
	}
	span.SetAttributes(tracing.MeasurementAttributes(m)...)
	return res, nil
}
