package builder

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/xform"
)

// sourceTag is a tag in source frames of its clip, [first, end).
type sourceTag struct {
	first, end int
	trait      blob.TraitID
}

type sourceMarker struct {
	frame int
	trait blob.TraitID
}

// clipSpan is a coalesced run of tagged source frames.
type clipSpan struct {
	first, end int
	tags       []sourceTag
	markers    []sourceMarker
}

// buildSegments coalesces the tags of every clip into segments, resamples
// their frames to the database rate and remaps tags and markers.
func (s *state) buildSegments(ctx context.Context) error {
	for ci := range s.in.Clips {
		if err := ctx.Err(); err != nil {
			return err
		}
		clip := &s.in.Clips[ci]

		tags, err := s.clipTags(clip)
		if err != nil {
			return err
		}
		spans := coalesce(tags)
		if err := s.attachMarkers(clip, spans); err != nil {
			return err
		}

		for i := range spans {
			s.clipSegments[ci] = append(s.clipSegments[ci], s.appendSegment(clip, &spans[i]))
		}
	}

	if s.bin.NumFrames() == 0 {
		return ErrEmptyDatabase
	}
	s.logger.Info("Segments built", "segments", len(s.bin.Segments), "frames", s.bin.NumFrames(), "tags", len(s.bin.Tags))
	return nil
}

// clipTags converts the tags of a clip to source frames, dropping the ones
// that do not overlap the clip.
func (s *state) clipTags(clip *anim.Clip) ([]sourceTag, error) {
	duration := clip.Duration()
	tags := make([]sourceTag, 0, len(clip.Tags))

	for i, tag := range clip.Tags {
		if !(tag.Duration > 0) {
			s.logger.Warn("Dropping tag with empty duration", "clip", clip.Name, "tag", i, "duration", tag.Duration)
			continue
		}
		start := math.Max(tag.Start, 0)
		end := math.Min(tag.Start+tag.Duration, duration)
		first := clampInt(roundInt(start*clip.SampleRate), 0, clip.NumFrames)
		last := clampInt(roundInt(end*clip.SampleRate), 0, clip.NumFrames)
		if end <= start || last <= first {
			s.logger.Warn("Dropping tag outside clip", "clip", clip.Name, "tag", i, "start", tag.Start, "duration", tag.Duration)
			continue
		}

		id, err := s.internTrait(tag.Trait)
		if err != nil {
			return nil, fmt.Errorf("clip %q tag %d: %w", clip.Name, i, err)
		}
		tags = append(tags, sourceTag{first: first, end: last, trait: id})
	}

	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].first != tags[j].first {
			return tags[i].first < tags[j].first
		}
		return tags[i].end < tags[j].end
	})
	return tags, nil
}

// coalesce merges overlapping or adjacent tags into spans. tags must be
// sorted by first frame.
func coalesce(tags []sourceTag) []clipSpan {
	var spans []clipSpan
	for _, t := range tags {
		if n := len(spans); n > 0 && t.first <= spans[n-1].end {
			spans[n-1].end = max(spans[n-1].end, t.end)
			spans[n-1].tags = append(spans[n-1].tags, t)
			continue
		}
		spans = append(spans, clipSpan{first: t.first, end: t.end, tags: []sourceTag{t}})
	}
	return spans
}

func (s *state) attachMarkers(clip *anim.Clip, spans []clipSpan) error {
	for i, m := range clip.Markers {
		frame := roundInt(m.Time * clip.SampleRate)
		k := sort.Search(len(spans), func(k int) bool { return spans[k].end > frame })
		if frame < 0 || k == len(spans) || frame < spans[k].first {
			s.logger.Warn("Dropping marker outside tagged frames", "clip", clip.Name, "marker", i, "time", m.Time)
			continue
		}
		id, err := s.internTrait(m.Trait)
		if err != nil {
			return fmt.Errorf("clip %q marker %d: %w", clip.Name, i, err)
		}
		spans[k].markers = append(spans[k].markers, sourceMarker{frame: frame, trait: id})
	}
	for k := range spans {
		sort.SliceStable(spans[k].markers, func(i, j int) bool {
			return spans[k].markers[i].frame < spans[k].markers[j].frame
		})
	}
	return nil
}

// appendSegment stores a span as a segment together with its tags, markers
// and resampled transforms.
func (s *state) appendSegment(clip *anim.Clip, span *clipSpan) blob.SegmentID {
	b := s.bin
	id := blob.SegmentID(len(b.Segments))
	ratio := b.SampleRate / clip.SampleRate
	srcFrames := span.end - span.first
	dstFrames := max(1, roundInt(float64(srcFrames)*ratio))
	remap := func(frame int) int {
		return clampInt(roundInt(float64(frame-span.first)*ratio), 0, dstFrames)
	}

	seg := blob.Segment{
		Clip:        s.intern(clip.Name),
		Source:      blob.Range{First: uint32(span.first), NumFrames: uint32(srcFrames)},
		Destination: blob.Range{First: uint32(b.NumFrames()), NumFrames: uint32(dstFrames)},
		TagStart:    blob.TagID(len(b.Tags)),
		NumTags:     uint32(len(span.tags)),
		MarkerStart: blob.MarkerID(len(b.Markers)),
		NumMarkers:  uint32(len(span.markers)),
		Prev:        blob.InvalidSegmentID,
		Next:        blob.InvalidSegmentID,
	}

	for _, t := range span.tags {
		first, end := remap(t.first), remap(t.end)
		if end <= first {
			end = min(first+1, dstFrames)
			first = end - 1
		}
		b.Tags = append(b.Tags, blob.Tag{
			Segment: id,
			Trait:   t.trait,
			Range:   blob.Range{First: uint32(first), NumFrames: uint32(end - first)},
		})
	}
	for _, m := range span.markers {
		b.Markers = append(b.Markers, blob.Marker{
			Segment: id,
			Trait:   m.trait,
			Frame:   uint32(min(remap(m.frame), dstFrames-1)),
		})
	}

	numJoints := len(b.Joints)
	pose := make([]xform.Transform, numJoints)
	for d := range dstFrames {
		clip.SamplePose(pose, float64(span.first)+float64(d)/ratio)
		b.Transforms = append(b.Transforms, pose...)
	}

	b.Segments = append(b.Segments, seg)
	return id
}

// linkBoundaries connects the first and last segments of clips to the
// segments of their boundary clips. A link is only made where both segments
// reach the clip boundary.
func (s *state) linkBoundaries() error {
	byName := make(map[string]int, len(s.in.Clips))
	for i := range s.in.Clips {
		byName[s.in.Clips[i].Name] = i
	}

	resolve := func(clip *anim.Clip, name, kind string) ([]blob.SegmentID, bool) {
		if name == "" {
			return nil, false
		}
		ci, ok := byName[name]
		if !ok {
			s.logger.Warn("Unknown boundary clip", "clip", clip.Name, "boundary", kind, "name", name)
			return nil, false
		}
		if len(s.clipSegments[ci]) == 0 {
			s.logger.Warn("Boundary clip has no segments", "clip", clip.Name, "boundary", kind, "name", name)
			return nil, false
		}
		return s.clipSegments[ci], true
	}

	links := 0
	for ci := range s.in.Clips {
		clip := &s.in.Clips[ci]
		segs := s.clipSegments[ci]
		if len(segs) == 0 {
			continue
		}

		if other, ok := resolve(clip, clip.PreBoundaryClip, "pre"); ok {
			first := segs[0]
			prev := other[len(other)-1]
			if s.startsClip(first) && s.endsClip(prev) {
				s.bin.Segments[first].Prev = prev
				links++
			} else {
				s.logger.Debug("Skipping pre boundary link", "clip", clip.Name, "name", clip.PreBoundaryClip)
			}
		}

		if other, ok := resolve(clip, clip.PostBoundaryClip, "post"); ok {
			last := segs[len(segs)-1]
			next := other[0]
			if s.endsClip(last) && s.startsClip(next) {
				s.bin.Segments[last].Next = next
				links++
			} else {
				s.logger.Debug("Skipping post boundary link", "clip", clip.Name, "name", clip.PostBoundaryClip)
			}
		}
	}

	s.logger.Debug("Boundary links resolved", "links", links)
	return nil
}

func (s *state) clipOf(id blob.SegmentID) *anim.Clip {
	for ci, segs := range s.clipSegments {
		for _, sid := range segs {
			if sid == id {
				return &s.in.Clips[ci]
			}
		}
	}
	return nil
}

func (s *state) startsClip(id blob.SegmentID) bool {
	return s.bin.Segments[id].Source.First == 0
}

func (s *state) endsClip(id blob.SegmentID) bool {
	clip := s.clipOf(id)
	return clip != nil && int(s.bin.Segments[id].Source.End()) == clip.NumFrames
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
