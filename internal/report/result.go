package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/psantana5/kdfcal/internal/hostinfo"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/kdfparams"
	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/psantana5/kdfcal/pkg/precisetime"
)

// Result is the record of one calibration run. Build it once when the run
// finishes and treat it as read-only afterwards.
type Result struct {
	ID          string    `json:"id" yaml:"id"`
	Workload    string    `json:"workload" yaml:"workload"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	TookSeconds float64   `json:"took_seconds" yaml:"took_seconds"` // includes retries and backoff
	Attempts    int       `json:"attempts" yaml:"attempts"`

	Outcome string `json:"outcome" yaml:"outcome"` // cpuperf.Reason of the final error
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`

	Clock          *precisetime.Info    `json:"clock,omitempty" yaml:"clock,omitempty"`
	Host           *hostinfo.Info       `json:"host,omitempty" yaml:"host,omitempty"`
	Measurement    *cpuperf.Measurement `json:"measurement,omitempty" yaml:"measurement,omitempty"`
	Recommendation *Recommendation      `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
}

// Recommendation is a parameter choice made from a measurement
type Recommendation struct {
	Params         kdfparams.Params `json:"params" yaml:"params"`
	N              uint64           `json:"n" yaml:"n"`
	MemoryBytes    uint64           `json:"memory_bytes" yaml:"memory_bytes"`
	PredictedTime  float64          `json:"predicted_seconds" yaml:"predicted_seconds"`
	MaxTime        float64          `json:"max_seconds" yaml:"max_seconds"`
	MemoryLimit    uint64           `json:"memory_limit_bytes" yaml:"memory_limit_bytes"`
	MemoryFraction float64          `json:"memory_fraction" yaml:"memory_fraction"`
}

// NewResult creates a result for a run that started at start and ended at
// end. m is dropped when err is set.
func NewResult(workload string, start, end time.Time, attempts int, m *cpuperf.Measurement, err error) *Result {
	r := &Result{
		ID:          uuid.NewString(),
		Workload:    workload,
		StartedAt:   start.UTC(),
		TookSeconds: end.Sub(start).Seconds(),
		Attempts:    attempts,
		Outcome:     cpuperf.Reason(err),
	}
	if err != nil {
		r.Error = err.Error()
	} else {
		r.Measurement = m
	}
	return r
}

// OK reports whether the run produced a measurement
func (r *Result) OK() bool {
	return r.Measurement != nil
}

// SetClock records the clock used. Call once, before the result is shared.
func (r *Result) SetClock(info precisetime.Info) {
	r.Clock = &info
}

// SetHost records the host description. Call once, before the result is shared.
func (r *Result) SetHost(info *hostinfo.Info) {
	r.Host = info
}

// SetRecommendation attaches a parameter choice. Call once, before the
// result is shared.
func (r *Result) SetRecommendation(params kdfparams.Params, limits kdfparams.Limits, memFrac float64) {
	if r.Measurement == nil {
		return
	}
	r.Recommendation = &Recommendation{
		Params:         params,
		N:              params.N(),
		MemoryBytes:    params.Memory(),
		PredictedTime:  params.Time(r.Measurement.OpsPerSecond).Seconds(),
		MaxTime:        limits.MaxTime.Seconds(),
		MemoryLimit:    limits.Memory,
		MemoryFraction: memFrac,
	}
}

// LogSummary writes a one-line summary of the run
func (r *Result) LogSummary(logger *logging.Logger) {
	fields := logging.Fields{
		"id":       r.ID,
		"workload": r.Workload,
		"outcome":  r.Outcome,
		"took_s":   r.TookSeconds,
		"attempts": r.Attempts,
	}
	if r.Clock != nil {
		fields["clock"] = r.Clock.Source
	}

	if !r.OK() {
		fields["error"] = r.Error
		logger.Error("calibration failed", fields)
		return
	}

	fields["ops_per_second"] = r.Measurement.OpsPerSecond
	fields["window_s"] = r.Measurement.Elapsed.Seconds()
	if rec := r.Recommendation; rec != nil {
		fields["params"] = rec.Params.String()
		fields["predicted_s"] = rec.PredictedTime
	}
	logger.Info("calibration complete", fields)
}
