package builder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/fragment"
	"github.com/hupe1980/motiondb/internal/resource"
	"github.com/hupe1980/motiondb/internal/task"
	"github.com/hupe1980/motiondb/quantization"
	"github.com/hupe1980/motiondb/xform"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/spatial/r3"
)

const vecBytes = 24

type encodePhase int

const (
	phaseSample encodePhase = iota
	phaseNormalize
	phaseTrain
	phaseEncode
	numPhases
)

func (p encodePhase) String() string {
	switch p {
	case phaseSample:
		return "sample"
	case phaseNormalize:
		return "normalize"
	case phaseTrain:
		return "train"
	case phaseEncode:
		return "encode"
	default:
		return "unknown"
	}
}

// encodeJob is one encoding (pose or trajectory) of one codebook.
type encodeJob struct {
	codeBook blob.CodeBookID
	kind     string
	factory  fragment.Factory
	enc      *blob.Encoding
}

// encoder is the encoding stage. Every job goes through the sample,
// normalize, train and encode phases; training yields after every batch of
// features.
type encoder struct {
	b        *blob.Binary
	rc       *resource.Controller
	settings quantization.TrainingSettings
	jobs     []encodeJob

	job   int
	phase encodePhase

	times   []blob.TimeIndex
	layout  fragment.Layout
	raw     []r3.Vec
	samples []r3.Vec
	pq      *quantization.ProductQuantizer
	res     *resource.Reservation

	// enc receives the result of the running job; it is copied into the
	// binary only when the job completes.
	enc blob.Encoding

	// completeBatches forces every training batch to finish once started.
	completeBatches bool

	logger   *slog.Logger
	progress rate.Sometimes
}

func (s *state) newEncoder(progressInterval time.Duration, completeBatches bool) (*encoder, error) {
	e := &encoder{
		b:               s.bin,
		rc:              s.rc,
		settings:        s.in.Config.Training,
		completeBatches: completeBatches,
		logger:          s.logger,
		progress:        rate.Sometimes{First: 1, Interval: progressInterval},
	}
	if e.settings.Concurrency <= 0 {
		e.settings.Concurrency = s.rc.Workers()
	}

	for i := range s.bin.CodeBooks {
		id := blob.CodeBookID(i)
		cb := &s.bin.CodeBooks[i]
		pose, err := fragment.NewPoseFactory(s.bin, cb.Metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		traj, err := fragment.NewTrajectoryFactory(s.bin, cb.Metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		e.jobs = append(e.jobs,
			encodeJob{codeBook: id, kind: "pose", factory: pose, enc: &cb.Pose},
			encodeJob{codeBook: id, kind: "trajectory", factory: traj, enc: &cb.Trajectory})
	}
	return e, nil
}

// Step implements task.Step.
func (e *encoder) Step(ctx context.Context) (task.Status, error) {
	if e.job >= len(e.jobs) {
		return task.Done, nil
	}
	j := &e.jobs[e.job]

	var err error
	switch e.phase {
	case phaseSample:
		err = e.sample(ctx, j)
	case phaseNormalize:
		err = e.normalize(ctx)
	case phaseTrain:
		if e.completeBatches {
			e.pq.ForceComplete()
		}
		var done bool
		done, err = e.pq.Step(ctx)
		if err == nil && !done {
			e.logProgress(j)
			return task.Continue, nil
		}
	case phaseEncode:
		err = e.encode(ctx)
	}
	if err != nil {
		return task.Done, fmt.Errorf("codebook %s %s %s: %w", j.codeBook, j.kind, e.phase, err)
	}

	e.logProgress(j)
	e.phase++
	if e.phase == numPhases {
		*j.enc = e.enc
		e.releaseJob()
		e.job++
		e.phase = phaseSample
	}
	if e.job >= len(e.jobs) {
		return task.Done, nil
	}
	return task.Continue, nil
}

// Progress implements task.Progressor.
func (e *encoder) Progress() float64 {
	if len(e.jobs) == 0 || e.job >= len(e.jobs) {
		return 1
	}
	p := float64(e.phase)
	if e.phase == phaseTrain && e.pq != nil {
		p += e.pq.Progress()
	}
	return (float64(e.job) + p/float64(numPhases)) / float64(len(e.jobs))
}

// Release implements task.Step.
func (e *encoder) Release() {
	e.releaseJob()
	e.jobs = nil
}

func (e *encoder) releaseJob() {
	if e.pq != nil {
		e.pq.Release()
		e.pq = nil
	}
	e.res.Release()
	e.res = nil
	e.times = nil
	e.raw = nil
	e.samples = nil
	e.enc = blob.Encoding{}
}

func (e *encoder) logProgress(j *encodeJob) {
	e.progress.Do(func() {
		e.logger.Info("Encoding progress",
			"codeBook", j.codeBook.String(),
			"kind", j.kind,
			"phase", e.phase.String(),
			"progress", e.Progress())
	})
}

// sample creates the raw fragment of every frame owned by the codebook.
func (e *encoder) sample(ctx context.Context, j *encodeJob) error {
	e.times = e.times[:0]
	for _, id := range e.b.CodeBookIntervalsOf(j.codeBook) {
		iv := e.b.Intervals[id]
		for f := iv.Range.First; f < iv.Range.End(); f++ {
			e.times = append(e.times, blob.TimeIndex{Segment: iv.Segment, Frame: f})
		}
	}

	e.layout = j.factory.Layout()
	numFeatures := e.layout.NumFeatures()
	n := len(e.times)
	if n == 0 || numFeatures == 0 {
		return fmt.Errorf("%w: empty encoding", ErrInternal)
	}

	res, err := e.rc.Reserve(int64(2 * n * numFeatures * vecBytes))
	if err != nil {
		return err
	}
	e.res = res
	e.raw = make([]r3.Vec, n*numFeatures)
	e.samples = make([]r3.Vec, n*numFeatures)

	return e.parallel(ctx, n, func(i int) error {
		t := blob.SamplingTime{TimeIndex: e.times[i]}
		if !j.factory.CreateInto(e.raw[i*numFeatures:(i+1)*numFeatures], e.b, t) {
			return fmt.Errorf("%w: no fragment at segment %s frame %d", ErrInternal, t.Segment, t.Frame)
		}
		return nil
	})
}

// normalize fits the quantizers and bounding boxes and derives the training
// samples. Quantized features train on their directions.
func (e *encoder) normalize(ctx context.Context) error {
	l := e.layout
	numFeatures := l.NumFeatures()
	n := len(e.times)

	e.enc = blob.Encoding{
		NumFragments:   uint32(n),
		NumQuantized:   uint32(l.NumQuantized),
		NumNormalized:  uint32(l.NumNormalized),
		NumTransformed: uint32(l.NumTransformed),
	}
	if l.NumQuantized > 0 {
		e.enc.Quantizers = make([]quantization.Quantizer, l.NumQuantized)
	}
	if l.NumTransformed > 0 {
		e.enc.BoundingBoxes = make([]quantization.BoundingBox, l.NumTransformed)
	}

	err := e.parallel(ctx, numFeatures, func(f int) error {
		switch e.enc.Kind(f) {
		case blob.FeatureQuantized:
			magnitudes := make([]float64, n)
			for i := range n {
				magnitudes[i] = r3.Norm(e.raw[i*numFeatures+f])
			}
			e.enc.Quantizers[f] = quantization.NewQuantizer(magnitudes)
			for i := range n {
				e.samples[i*numFeatures+f] = xform.SafeUnit(e.raw[i*numFeatures+f])
			}
		case blob.FeatureNormalized:
			for i := range n {
				e.samples[i*numFeatures+f] = xform.SafeUnit(e.raw[i*numFeatures+f])
			}
		default:
			points := make([]r3.Vec, n)
			for i := range n {
				points[i] = e.raw[i*numFeatures+f]
			}
			box := quantization.ComputeBoundingBox(points)
			e.enc.BoundingBoxes[f-l.NumQuantized-l.NumNormalized] = box
			for i, p := range points {
				e.samples[i*numFeatures+f] = box.Normalize(p)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.pq = quantization.NewProductQuantizer(numFeatures, e.settings)
	return e.pq.SetSamples(e.samples)
}

// encode assigns the code row of every fragment.
func (e *encoder) encode(ctx context.Context) error {
	numFeatures := e.layout.NumFeatures()
	nq := e.layout.NumQuantized
	stride := e.enc.NumFeaturesFlattened()
	n := len(e.times)

	e.enc.Centroids = slices.Clone(e.pq.Centroids())
	e.enc.Codes = make([]byte, n*stride)

	return e.parallel(ctx, n, func(i int) error {
		row := e.enc.Codes[i*stride : (i+1)*stride]
		raw := e.raw[i*numFeatures : (i+1)*numFeatures]
		for f := range nq {
			row[f] = e.enc.Quantizers[f].Encode(r3.Norm(raw[f]))
		}
		return e.pq.Encode(row[nq:], e.samples[i*numFeatures:(i+1)*numFeatures])
	})
}

// parallel runs fn for [0,n) in contiguous chunks, one per worker.
func (e *encoder) parallel(ctx context.Context, n int, fn func(i int) error) error {
	workers := max(e.rc.Workers(), 1)
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
