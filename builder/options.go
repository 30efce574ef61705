package builder

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/motiondb/internal/resource"
)

// MetricsObserver receives build events.
type MetricsObserver interface {
	// OnStage is called when a build stage completes.
	OnStage(stage string, duration time.Duration, err error)
	// OnBuild is called when a build completes.
	OnBuild(duration time.Duration, frames int, codeBooks int, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnStage(string, time.Duration, error)   {}
func (NoopMetricsObserver) OnBuild(time.Duration, int, int, error) {}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger of the builder.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithResourceController sets the controller that bounds worker slots and
// transient memory.
func WithResourceController(rc *resource.Controller) Option {
	return func(b *Builder) {
		b.rc = rc
	}
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(o MetricsObserver) Option {
	return func(b *Builder) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithBuildID fixes the build id. By default every build gets a random one.
func WithBuildID(id uuid.UUID) Option {
	return func(b *Builder) {
		b.buildID = id
	}
}

// WithProgressInterval sets the minimum interval between progress logs of
// long stages.
func WithProgressInterval(d time.Duration) Option {
	return func(b *Builder) {
		b.progressInterval = d
	}
}

// WithForceCompleteBatches controls whether a cancelled build lets the
// quantizer training batch in flight finish before it stops. It is enabled
// by default, so no centroid table is left partially written.
func WithForceCompleteBatches(enabled bool) Option {
	return func(b *Builder) {
		b.completeBatches = enabled
	}
}
