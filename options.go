package motiondb

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/internal/resource"
)

// ResourceConfig bounds the worker slots, transient memory and upload
// bandwidth of builds and saves.
type ResourceConfig = resource.Config

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	compression      blob.Compression
	resources        ResourceConfig
	buildID          uuid.UUID
	progressInterval time.Duration
}

// Option configures Build, Open, Load and the Database they return.
type Option func(*options)

// WithLogger sets the logger.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel replaces the logger with a text logger at level.
//
// Example:
//
//	db, err := motiondb.Build(ctx, in, motiondb.WithLogLevel(slog.LevelDebug))
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector for build, load, save
// and search events.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithCompression sets the payload compression used by Save and WriteTo.
// Default: blob.CompressionZSTD.
func WithCompression(c blob.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceConfig bounds the resources of a build and throttles saves.
//
// Example:
//
//	motiondb.WithResourceConfig(motiondb.ResourceConfig{
//	    MemoryLimitBytes:   2 << 30,
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
func WithResourceConfig(cfg ResourceConfig) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithBuildID fixes the build id written into the blob header. Builds with
// the same input and id produce identical databases.
func WithBuildID(id uuid.UUID) Option {
	return func(o *options) {
		o.buildID = id
	}
}

// WithProgressInterval sets the minimum interval between progress logs of
// long build stages.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		compression:      blob.CompressionZSTD,
		progressInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
