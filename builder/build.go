package builder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/internal/resource"
	"github.com/hupe1980/motiondb/internal/task"
)

const defaultProgressInterval = 5 * time.Second

// Builder builds motion databases. A Builder holds no per-build state and
// may run several builds concurrently.
type Builder struct {
	logger           *slog.Logger
	rc               *resource.Controller
	observer         MetricsObserver
	buildID          uuid.UUID
	progressInterval time.Duration
	completeBatches  bool
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		logger:           slog.New(slog.DiscardHandler),
		observer:         NoopMetricsObserver{},
		progressInterval: defaultProgressInterval,
		completeBatches:  true,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rc == nil {
		b.rc = resource.NewController(resource.Config{})
	}
	return b
}

// Build runs every stage and returns the verified binary. On failure or
// cancellation no binary is returned and every transient buffer has been
// released.
func (b *Builder) Build(ctx context.Context, in Input) (*blob.Binary, error) {
	start := time.Now()
	b.logger.Info("Build started", "clips", len(in.Clips), "metrics", len(in.Metrics), "sampleRate", in.Config.SampleRate)

	bin, err := b.build(ctx, &in)

	var frames, codeBooks int
	if bin != nil {
		frames, codeBooks = bin.NumFrames(), len(bin.CodeBooks)
	}
	b.observer.OnBuild(time.Since(start), frames, codeBooks, err)

	if err != nil {
		b.logger.Error("Build failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	b.logger.Info("Build completed",
		"buildID", bin.BuildID.String(),
		"frames", frames,
		"segments", len(bin.Segments),
		"codeBooks", codeBooks,
		"duration", time.Since(start))
	return bin, nil
}

func (b *Builder) build(ctx context.Context, in *Input) (*blob.Binary, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s := newState(in, b.logger, b.rc)
	s.bin.BuildID = b.buildID
	if s.bin.BuildID == uuid.Nil {
		s.bin.BuildID = uuid.New()
	}

	seq := task.NewSequence(
		b.stage("types", func(context.Context) error { return s.buildTypes() }),
		b.stage("metrics", func(context.Context) error { return s.buildMetrics() }),
		b.stage("segments", func(ctx context.Context) error {
			if err := s.buildSegments(ctx); err != nil {
				return err
			}
			// Fragments are sampled from the transforms as they are stored.
			s.bin.Freeze()
			return nil
		}),
		b.stage("links", func(context.Context) error { return s.linkBoundaries() }),
		b.stage("intervals", s.buildIntervals),
		b.stage("tags", func(context.Context) error {
			return CheckTagsAreLongEnough(s.bin, s.metricTraitTypes())
		}),
		b.stage("codebooks", s.buildCodeBooks),
		&stage{b: b, name: "encoding", newStep: func() (task.Step, error) {
			return s.newEncoder(b.progressInterval, b.completeBatches)
		}},
		b.stage("assemble", func(context.Context) error { return s.assemble() }),
	)

	if err := task.Run(ctx, seq); err != nil {
		return nil, err
	}
	return s.bin, nil
}

// assemble freezes the binary and verifies its integrity.
func (s *state) assemble() error {
	s.bin.Freeze()
	if err := s.bin.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return nil
}

func (b *Builder) stage(name string, fn func(ctx context.Context) error) *stage {
	return &stage{b: b, name: name, newStep: func() (task.Step, error) {
		return task.Once(fn, nil), nil
	}}
}

// stage times a build stage and reports it to the observer. The inner step
// is created when the stage starts, after the stages it depends on ran.
type stage struct {
	b       *Builder
	name    string
	newStep func() (task.Step, error)
	step    task.Step
	start   time.Time
}

func (st *stage) Step(ctx context.Context) (task.Status, error) {
	if st.step == nil {
		st.start = time.Now()
		step, err := st.newStep()
		if err != nil {
			return st.finish(err)
		}
		st.step = step
	}

	status, err := st.step.Step(ctx)
	if err != nil || status == task.Done {
		return st.finish(err)
	}
	return task.Continue, nil
}

func (st *stage) finish(err error) (task.Status, error) {
	d := time.Since(st.start)
	st.b.observer.OnStage(st.name, d, err)
	if err != nil {
		return task.Done, fmt.Errorf("%s: %w", st.name, err)
	}
	st.b.logger.Debug("Stage completed", "stage", st.name, "duration", d)
	return task.Done, nil
}

func (st *stage) Progress() float64 {
	if p, ok := st.step.(task.Progressor); ok {
		return p.Progress()
	}
	return 0
}

func (st *stage) Release() {
	if st.step != nil {
		st.step.Release()
	}
}
