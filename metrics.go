package motiondb

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/motiondb/builder"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; a
// Prometheus implementation is provided by PrometheusCollector.
type MetricsCollector interface {
	// RecordBuild is called after each build with the number of frames
	// and codebooks of the result.
	RecordBuild(duration time.Duration, frames, codeBooks int, err error)

	// RecordStage is called after each build stage.
	RecordStage(stage string, duration time.Duration, err error)

	// RecordLoad is called after a database was read from bytes or a store.
	RecordLoad(bytes int64, duration time.Duration, err error)

	// RecordSave is called after a database was written to a store.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordSearch is called after each search with the number of
	// candidates scored.
	RecordSearch(candidates int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(time.Duration, int, int, error) {}
func (NoopMetricsCollector) RecordStage(string, time.Duration, error)   {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error)     {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error)     {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	StageCount       atomic.Int64
	StageErrors      atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadBytes        atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveBytes        atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchCandidates atomic.Int64
	SearchTotalNanos atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(duration time.Duration, _, _ int, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(_ string, _ time.Duration, err error) {
	b.StageCount.Add(1)
	if err != nil {
		b.StageErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadBytes.Add(bytes)
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveBytes.Add(bytes)
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(candidates int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchCandidates.Add(int64(candidates))
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildAvgNanos:    avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		StageCount:       b.StageCount.Load(),
		StageErrors:      b.StageErrors.Load(),
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		LoadBytes:        b.LoadBytes.Load(),
		SaveCount:        b.SaveCount.Load(),
		SaveErrors:       b.SaveErrors.Load(),
		SaveBytes:        b.SaveBytes.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchCandidates: b.SearchCandidates.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount       int64
	BuildErrors      int64
	BuildAvgNanos    int64
	StageCount       int64
	StageErrors      int64
	LoadCount        int64
	LoadErrors       int64
	LoadBytes        int64
	SaveCount        int64
	SaveErrors       int64
	SaveBytes        int64
	SearchCount      int64
	SearchErrors     int64
	SearchCandidates int64
	SearchAvgNanos   int64
}

// buildObserver forwards builder events to a MetricsCollector and the
// stage log.
type buildObserver struct {
	ctx     context.Context
	metrics MetricsCollector
	logger  *Logger
}

var _ builder.MetricsObserver = buildObserver{}

func (o buildObserver) OnStage(stage string, duration time.Duration, err error) {
	o.metrics.RecordStage(stage, duration, err)
	o.logger.LogStage(o.ctx, stage, duration, err)
}

func (o buildObserver) OnBuild(duration time.Duration, frames, codeBooks int, err error) {
	o.metrics.RecordBuild(duration, frames, codeBooks, err)
}
