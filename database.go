package motiondb

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/blobstore"
	"github.com/hupe1980/motiondb/builder"
	"github.com/hupe1980/motiondb/fragment"
	"github.com/hupe1980/motiondb/internal/resource"
)

// FragmentKind selects the pose or the trajectory side of a codebook.
type FragmentKind int

const (
	// PoseFragment holds joint velocities and positions around a time.
	PoseFragment FragmentKind = iota
	// TrajectoryFragment holds the root trajectory over the time horizon.
	TrajectoryFragment
)

func (k FragmentKind) String() string {
	switch k {
	case PoseFragment:
		return "pose"
	case TrajectoryFragment:
		return "trajectory"
	default:
		return fmt.Sprintf("FragmentKind(%d)", int(k))
	}
}

// Database is a built motion database together with the fragment factories
// of its metrics. All query methods are read-only and safe for concurrent
// use.
type Database struct {
	bin  *blob.Binary
	opts options
	rc   *resource.Controller

	pose []*fragment.PoseFactory       // by metric
	traj []*fragment.TrajectoryFactory // by metric

	closed atomic.Bool
}

// Build runs the builder pipeline on in and returns the resulting database.
func Build(ctx context.Context, in builder.Input, opts ...Option) (*Database, error) {
	o := applyOptions(opts)
	rc := resource.NewController(o.resources)

	b := builder.New(
		builder.WithLogger(o.logger.Logger),
		builder.WithResourceController(rc),
		builder.WithMetricsObserver(buildObserver{ctx: ctx, metrics: o.metricsCollector, logger: o.logger}),
		builder.WithBuildID(o.buildID),
		builder.WithProgressInterval(o.progressInterval),
	)

	bin, err := b.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	return newDatabase(bin, o, rc)
}

// FromBinary wraps an existing binary. The binary must not be modified
// afterwards.
func FromBinary(bin *blob.Binary, opts ...Option) (*Database, error) {
	o := applyOptions(opts)
	if err := bin.Verify(); err != nil {
		return nil, translateError(err)
	}
	return newDatabase(bin, o, resource.NewController(o.resources))
}

// Load reads a serialized database from r.
func Load(ctx context.Context, r io.Reader, opts ...Option) (*Database, error) {
	o := applyOptions(opts)
	rc := resource.NewController(o.resources)
	start := time.Now()

	cr := &countingReader{r: resource.NewRateLimitedReader(ctx, r, rc)}
	db, err := func() (*Database, error) {
		bin, err := blob.Read(cr)
		if err != nil {
			return nil, translateError(err)
		}
		return verified(bin, o, rc)
	}()

	o.metricsCollector.RecordLoad(cr.n, time.Since(start), err)
	o.logger.LogLoad(ctx, "", cr.n, time.Since(start), err)
	return db, err
}

// Open loads the database stored as name in store. Stores that can map
// their blobs into memory are decoded without an intermediate copy.
func Open(ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (*Database, error) {
	o := applyOptions(opts)
	start := time.Now()

	var size int64
	db, err := func() (*Database, error) {
		b, err := store.Open(ctx, name)
		if err != nil {
			return nil, translateError(err)
		}
		defer func() { _ = b.Close() }()
		size = b.Size()

		data, err := blobstore.ReadAll(ctx, b)
		if err != nil {
			return nil, err
		}
		bin, err := blob.Unmarshal(data)
		if err != nil {
			return nil, translateError(err)
		}
		return verified(bin, o, resource.NewController(o.resources))
	}()

	o.metricsCollector.RecordLoad(size, time.Since(start), err)
	o.logger.LogLoad(ctx, name, size, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return db, nil
}

// OpenFile memory maps and loads the database file at path.
func OpenFile(ctx context.Context, path string, opts ...Option) (*Database, error) {
	return Open(ctx, blobstore.NewLocalStore(filepath.Dir(path)), filepath.Base(path), opts...)
}

func verified(bin *blob.Binary, o options, rc *resource.Controller) (*Database, error) {
	if err := bin.Verify(); err != nil {
		return nil, translateError(err)
	}
	return newDatabase(bin, o, rc)
}

func newDatabase(bin *blob.Binary, o options, rc *resource.Controller) (*Database, error) {
	db := &Database{
		bin:  bin,
		opts: o,
		rc:   rc,
		pose: make([]*fragment.PoseFactory, len(bin.Metrics)),
		traj: make([]*fragment.TrajectoryFactory, len(bin.Metrics)),
	}
	for i := range bin.Metrics {
		id := blob.MetricID(i)
		pf, err := fragment.NewPoseFactory(bin, id)
		if err != nil {
			return nil, fmt.Errorf("metric %d: %w", i, err)
		}
		tf, err := fragment.NewTrajectoryFactory(bin, id)
		if err != nil {
			return nil, fmt.Errorf("metric %d: %w", i, err)
		}
		db.pose[i], db.traj[i] = pf, tf
	}
	return db, nil
}

// Save writes the database to store under name. The blob is published only
// if the whole database was written; uploads are throttled by the IO limit
// of WithResourceConfig.
func (db *Database) Save(ctx context.Context, store blobstore.BlobStore, name string) error {
	if db.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	var n int64
	err := func() error {
		w, err := store.Create(ctx, name)
		if err != nil {
			return err
		}
		n, err = db.writeTo(resource.NewRateLimitedWriter(ctx, w, db.rc))
		if err != nil {
			if a, ok := w.(blobstore.Aborter); ok {
				_ = a.Abort()
			} else {
				_ = w.Close()
			}
			return err
		}
		return w.Close()
	}()

	db.opts.metricsCollector.RecordSave(n, time.Since(start), err)
	db.opts.logger.LogSave(ctx, name, n, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// WriteTo serializes the database to w.
func (db *Database) WriteTo(w io.Writer) (int64, error) {
	if db.closed.Load() {
		return 0, ErrClosed
	}
	return db.writeTo(w)
}

func (db *Database) writeTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := blob.Write(cw, db.bin, db.opts.compression)
	return cw.n, err
}

// Close marks the database closed. Subsequent Save and WriteTo calls fail
// with ErrClosed. Close is idempotent.
func (db *Database) Close() error {
	db.closed.Store(true)
	return nil
}

// Binary returns the underlying binary. It must not be modified.
func (db *Database) Binary() *blob.Binary { return db.bin }

// GetCodeBookAt returns the codebook covering t, or blob.InvalidCodeBookID.
func (db *Database) GetCodeBookAt(t blob.TimeIndex) blob.CodeBookID {
	return db.bin.GetCodeBookAt(t)
}

// Advance moves t by deltaTime seconds, crossing linked segment boundaries.
func (db *Database) Advance(t blob.SamplingTime, deltaTime float64) blob.AdvanceResult {
	return db.bin.Advance(t, deltaTime)
}

// ReconstructPoseFragment decodes the stored pose fragment of the frame of
// t. Times not covered by a codebook yield fragment.Invalid.
func (db *Database) ReconstructPoseFragment(t blob.SamplingTime) fragment.Fragment {
	return db.reconstruct(t, PoseFragment)
}

// ReconstructTrajectoryFragment decodes the stored trajectory fragment of
// the frame of t. Times not covered by a codebook yield fragment.Invalid.
func (db *Database) ReconstructTrajectoryFragment(t blob.SamplingTime) fragment.Fragment {
	return db.reconstruct(t, TrajectoryFragment)
}

func (db *Database) reconstruct(t blob.SamplingTime, kind FragmentKind) fragment.Fragment {
	if !db.bin.IsValidSamplingTime(t) {
		return fragment.Invalid
	}
	cb, idx, ok := db.bin.FragmentIndex(t.TimeIndex)
	if !ok {
		return fragment.Invalid
	}
	enc := db.encoding(cb, kind)
	if enc == nil {
		return fragment.Invalid
	}
	return fragment.Reconstruct(enc, idx)
}

// CreatePoseFragment samples the exact pose fragment at t with the metric
// of codebook cb.
func (db *Database) CreatePoseFragment(cb blob.CodeBookID, t blob.SamplingTime) fragment.Fragment {
	f := db.factory(cb, PoseFragment)
	if f == nil {
		return fragment.Invalid
	}
	return fragment.Create(f, db.bin, t)
}

// CreateTrajectoryFragment samples the exact trajectory fragment at t with
// the metric of codebook cb.
func (db *Database) CreateTrajectoryFragment(cb blob.CodeBookID, t blob.SamplingTime) fragment.Fragment {
	f := db.factory(cb, TrajectoryFragment)
	if f == nil {
		return fragment.Invalid
	}
	return fragment.Create(f, db.bin, t)
}

// CreatePoseFragmentFromBuffer samples a pose fragment from a live
// character history at time at, for use as a search query against
// codebook cb.
func (db *Database) CreatePoseFragmentFromBuffer(cb blob.CodeBookID, buf *fragment.TransformBuffer, at float64) fragment.Fragment {
	f := db.factory(cb, PoseFragment)
	if f == nil || buf == nil {
		return fragment.Invalid
	}
	return fragment.CreateFromBuffer(f, buf, at)
}

// CreateTrajectoryFragmentFromBuffer samples a trajectory fragment from a
// live character history at time at, for use as a search query against
// codebook cb.
func (db *Database) CreateTrajectoryFragmentFromBuffer(cb blob.CodeBookID, buf *fragment.TransformBuffer, at float64) fragment.Fragment {
	f := db.factory(cb, TrajectoryFragment)
	if f == nil || buf == nil {
		return fragment.Invalid
	}
	return fragment.CreateFromBuffer(f, buf, at)
}

// NewTransformBuffer creates a character history matching the rig and
// sample rate of the database.
func (db *Database) NewTransformBuffer(capacity int) *fragment.TransformBuffer {
	return fragment.NewTransformBufferFor(db.bin, capacity)
}

// FeatureDeviation compares two raw fragments of codebook cb. Identical
// fragments have a deviation of zero. Invalid fragments or codebooks yield
// +Inf.
func (db *Database) FeatureDeviation(cb blob.CodeBookID, kind FragmentKind, a, b fragment.Fragment) float64 {
	enc := db.encoding(cb, kind)
	if enc == nil || !a.IsValid() || !b.IsValid() {
		return math.Inf(1)
	}
	return enc.FeatureDeviation(a.Features, b.Features)
}

func (db *Database) encoding(cb blob.CodeBookID, kind FragmentKind) *blob.Encoding {
	c, ok := db.bin.CodeBook(cb)
	if !ok {
		return nil
	}
	switch kind {
	case PoseFragment:
		return &c.Pose
	case TrajectoryFragment:
		return &c.Trajectory
	default:
		return nil
	}
}

func (db *Database) factory(cb blob.CodeBookID, kind FragmentKind) fragment.Factory {
	c, ok := db.bin.CodeBook(cb)
	if !ok || int(c.Metric) >= len(db.pose) {
		return nil
	}
	switch kind {
	case PoseFragment:
		return db.pose[c.Metric]
	case TrajectoryFragment:
		return db.traj[c.Metric]
	default:
		return nil
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
