package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/trait"
	"github.com/hupe1980/motiondb/xform"
	"gonum.org/v1/gonum/spatial/r3"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Vec returns a vector with components uniform in [-scale, scale).
func (r *RNG) Vec(scale float64) r3.Vec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r3.Vec{
		X: (r.rand.Float64()*2 - 1) * scale,
		Y: (r.rand.Float64()*2 - 1) * scale,
		Z: (r.rand.Float64()*2 - 1) * scale,
	}
}

// GaussianPoints generates n points with standard normal components scaled
// per axis.
func (r *RNG) GaussianPoints(n int, scale r3.Vec) []r3.Vec {
	r.mu.Lock()
	defer r.mu.Unlock()

	points := make([]r3.Vec, n)
	for i := range points {
		points[i] = r3.Vec{
			X: r.rand.NormFloat64() * scale.X,
			Y: r.rand.NormFloat64() * scale.Y,
			Z: r.rand.NormFloat64() * scale.Z,
		}
	}
	return points
}

// Joint indices of Rig.
const (
	JointRoot = iota
	JointHips
	JointSpine
	JointLeftFoot
	JointRightFoot
)

// Rig returns a five joint rig: the trajectory joint, the hips, a spine and
// two feet below the hips.
func Rig() anim.Rig {
	return anim.Rig{Joints: []anim.Joint{
		{Name: "root", Parent: -1},
		{Name: "hips", Parent: JointRoot},
		{Name: "spine", Parent: JointHips},
		{Name: "leftFoot", Parent: JointHips},
		{Name: "rightFoot", Parent: JointHips},
	}}
}

// LocomotionType is a trait type with a single speed field.
var LocomotionType = trait.Type{
	Name:   "Locomotion",
	Fields: []trait.Field{{Name: "speed", Kind: trait.KindFloat32}},
}

// IdleType is a trait type without fields.
var IdleType = trait.Type{Name: "Idle"}

// Registry returns a registry holding LocomotionType and IdleType.
func Registry() *trait.Registry {
	r, err := trait.NewRegistry(LocomotionType, IdleType)
	if err != nil {
		panic(err)
	}
	return r
}

// Locomotion returns a LocomotionType value.
func Locomotion(speed float64) trait.Value {
	return trait.MustValue(LocomotionType, speed)
}

// Idle returns the IdleType value.
func Idle() trait.Value {
	return trait.MustValue(IdleType)
}

// ClipOptions controls WalkClip.
type ClipOptions struct {
	Name       string
	SampleRate float64 // defaults to 30
	NumFrames  int
	// Speed is the root speed in units per second along its heading.
	Speed float64
	// TurnRate is the yaw rate of the root in radians per second.
	TurnRate float64
	// Noise jitters the feet when RNG is set.
	Noise float64
	RNG   *RNG
}

// WalkClip generates a walk cycle: the root moves along its heading (+Z)
// while the feet swing and the hips bob.
func WalkClip(opts ClipOptions) anim.Clip {
	rate := opts.SampleRate
	if rate <= 0 {
		rate = 30
	}
	rig := Rig()
	numJoints := rig.NumJoints()

	clip := anim.Clip{
		Name:       opts.Name,
		SampleRate: rate,
		NumFrames:  opts.NumFrames,
		Frames:     make([]xform.Transform, 0, opts.NumFrames*numJoints),
	}

	var (
		pos r3.Vec
		yaw float64
	)
	up := r3.Vec{Y: 1}
	for f := range opts.NumFrames {
		t := float64(f) / rate
		phase := 2 * math.Pi * t

		root := xform.New(pos, xform.AxisAngle(up, yaw))
		swing := 0.3 * math.Sin(phase)
		left := r3.Vec{X: -0.1, Y: -0.9, Z: swing}
		right := r3.Vec{X: 0.1, Y: -0.9, Z: -swing}
		if opts.RNG != nil && opts.Noise > 0 {
			left = r3.Add(left, opts.RNG.Vec(opts.Noise))
			right = r3.Add(right, opts.RNG.Vec(opts.Noise))
		}

		clip.Frames = append(clip.Frames,
			root,
			xform.Translation(r3.Vec{Y: 1 + 0.02*math.Cos(2*phase)}),
			xform.Translation(r3.Vec{Y: 0.5}),
			xform.Translation(left),
			xform.Translation(right),
		)

		pos = r3.Add(pos, root.TransformDirection(r3.Vec{Z: opts.Speed / rate}))
		yaw += opts.TurnRate / rate
	}
	return clip
}

// TagAll tags the whole clip with v.
func TagAll(clip *anim.Clip, v trait.Value) {
	clip.Tags = append(clip.Tags, anim.Tag{Start: 0, Duration: clip.Duration(), Trait: v})
}

// TagFrames tags the source frames [first, end) of the clip with v.
func TagFrames(clip *anim.Clip, first, end int, v trait.Value) {
	clip.Tags = append(clip.Tags, anim.Tag{
		Start:    float64(first) / clip.SampleRate,
		Duration: float64(end-first) / clip.SampleRate,
		Trait:    v,
	})
}
