package motiondb

import (
	"context"
	"time"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/fragment"
	"github.com/hupe1980/motiondb/internal/queue"
	"gonum.org/v1/gonum/spatial/r3"
)

// Match is a search result.
type Match struct {
	// Time is the frame of the matched fragment.
	Time blob.TimeIndex
	// Fragment is the index of the fragment within its codebook.
	Fragment int
	// Cost is the weighted deviation between query and fragment.
	Cost float64
}

// Search creates a fluent search over the compressed fragments of codebook
// cb: the motion matching query. Candidates are reconstructed from their
// codes and ranked by weighted feature deviation.
//
// Example:
//
//	cb := db.GetCodeBookAt(now.TimeIndex)
//	matches, err := db.Search(cb).
//	    Pose(db.CreatePoseFragmentFromBuffer(cb, history, t)).
//	    Trajectory(db.CreateTrajectoryFragmentFromBuffer(cb, history, t)).
//	    KNN(5).
//	    Execute(ctx)
func (db *Database) Search(cb blob.CodeBookID) *SearchBuilder {
	return &SearchBuilder{
		db:         db,
		cb:         cb,
		k:          1,
		poseWeight: 1,
		trajWeight: 1,
	}
}

// SearchBuilder is a fluent builder for constructing search queries.
type SearchBuilder struct {
	db *Database
	cb blob.CodeBookID

	pose fragment.Fragment
	traj fragment.Fragment

	poseWeight float64
	trajWeight float64
	k          int
	filter     func(blob.TimeIndex) bool
}

// Pose sets the pose query fragment.
func (sb *SearchBuilder) Pose(f fragment.Fragment) *SearchBuilder {
	sb.pose = f
	return sb
}

// Trajectory sets the trajectory query fragment.
func (sb *SearchBuilder) Trajectory(f fragment.Fragment) *SearchBuilder {
	sb.traj = f
	return sb
}

// Weights scales the pose and trajectory deviations. Both default to 1.
func (sb *SearchBuilder) Weights(pose, trajectory float64) *SearchBuilder {
	sb.poseWeight, sb.trajWeight = pose, trajectory
	return sb
}

// KNN sets the number of matches to return. Default: 1.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// Filter restricts candidates to the frames for which fn returns true.
func (sb *SearchBuilder) Filter(fn func(blob.TimeIndex) bool) *SearchBuilder {
	sb.filter = fn
	return sb
}

// side is one scored fragment kind of a search.
type side struct {
	enc    *blob.Encoding
	query  []r3.Vec
	weight float64
	norm   []r3.Vec
	raw    []r3.Vec
}

func (s *side) cost(idx int) float64 {
	codes, _ := s.enc.FragmentCodes(idx)
	s.enc.DecodeFeatures(s.norm, codes)
	s.enc.InverseNormalize(s.raw, s.norm)
	return s.weight * s.enc.FeatureDeviation(s.query, s.raw)
}

func (sb *SearchBuilder) side(kind FragmentKind, f fragment.Fragment, weight float64) (*side, error) {
	if !f.IsValid() || weight == 0 {
		return nil, nil
	}
	enc := sb.db.encoding(sb.cb, kind)
	if n := enc.NumFeatures(); f.NumFeatures() != n {
		return nil, &ErrLayoutMismatch{Kind: kind, Expected: n, Actual: f.NumFeatures()}
	}
	n := enc.NumFeatures()
	return &side{
		enc:    enc,
		query:  f.Features,
		weight: weight,
		norm:   make([]r3.Vec, n),
		raw:    make([]r3.Vec, n),
	}, nil
}

// Execute runs the search and returns up to k matches, best first. Ties
// resolve to the lower fragment index.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]Match, error) {
	start := time.Now()
	matches, candidates, err := sb.execute(ctx)

	sb.db.opts.metricsCollector.RecordSearch(candidates, time.Since(start), err)
	sb.db.opts.logger.LogSearch(ctx, sb.k, candidates, len(matches), time.Since(start))
	return matches, err
}

func (sb *SearchBuilder) execute(ctx context.Context) ([]Match, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if sb.k <= 0 {
		return nil, 0, ErrInvalidK
	}
	if _, ok := sb.db.bin.CodeBook(sb.cb); !ok {
		return nil, 0, ErrInvalidCodeBook
	}

	var sides []*side
	for _, q := range []struct {
		kind   FragmentKind
		f      fragment.Fragment
		weight float64
	}{
		{PoseFragment, sb.pose, sb.poseWeight},
		{TrajectoryFragment, sb.traj, sb.trajWeight},
	} {
		s, err := sb.side(q.kind, q.f, q.weight)
		if err != nil {
			return nil, 0, err
		}
		if s != nil {
			sides = append(sides, s)
		}
	}
	if len(sides) == 0 {
		return nil, 0, ErrEmptyQuery
	}

	top := queue.NewTopK(sb.k)
	candidates := 0

	for _, id := range sb.db.bin.CodeBookIntervalsOf(sb.cb) {
		iv, _ := sb.db.bin.Interval(id)
		for f := uint32(0); f < iv.Range.NumFrames; f++ {
			ti := blob.TimeIndex{Segment: iv.Segment, Frame: iv.Range.First + f}
			if sb.filter != nil && !sb.filter(ti) {
				continue
			}

			candidates++
			if candidates%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, candidates, err
				}
			}

			idx := int(iv.FragmentOffset + f)
			var cost float64
			for _, s := range sides {
				cost += s.cost(idx)
			}
			top.Push(queue.Item{Fragment: idx, Cost: cost})
		}
	}

	items := top.Sorted()
	matches := make([]Match, len(items))
	for i, it := range items {
		matches[i] = Match{
			Time:     sb.db.bin.TimeIndexOfFragment(sb.cb, it.Fragment),
			Fragment: it.Fragment,
			Cost:     it.Cost,
		}
	}
	return matches, candidates, nil
}
