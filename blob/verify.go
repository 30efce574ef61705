package blob

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/motiondb/quantization"
)

// Verify checks the referential integrity of all tables. Every violation is
// reported; the result is a *multierror.Error of *IntegrityError values, or
// nil.
func (b *Binary) Verify() error {
	var result *multierror.Error
	add := func(err error) {
		result = multierror.Append(result, err)
	}

	b.verifyStrings(add)
	b.verifyTypes(add)
	b.verifySegments(add)
	b.verifyTags(add)
	b.verifyMarkers(add)
	b.verifyIntervals(add)
	b.verifyTagLists(add)
	b.verifyMetrics(add)
	b.verifyCodeBooks(add)

	return result.ErrorOrNil()
}

func (b *Binary) validString(id StringID) bool {
	return int64(id) < int64(len(b.Strings))
}

func (b *Binary) verifyStrings(add func(error)) {
	for i, j := range b.Joints {
		if !b.validString(j.Name) {
			add(integrityf("joints", i, "invalid name %s", j.Name))
		}
		if (i == 0) != (j.Parent < 0) || int(j.Parent) >= i {
			add(integrityf("joints", i, "invalid parent %d", j.Parent))
		}
	}
	if len(b.Joints) > 0 && len(b.Transforms)%len(b.Joints) != 0 {
		add(integrityf("transforms", len(b.Transforms), "not a multiple of %d joints", len(b.Joints)))
	}
}

func (b *Binary) verifyTypes(add func(error)) {
	for i, t := range b.Types {
		if !b.validString(t.Name) {
			add(integrityf("types", i, "invalid name %s", t.Name))
		}
		if uint64(t.FieldStart)+uint64(t.NumFields) > uint64(len(b.TypeFields)) {
			add(integrityf("types", i, "fields out of range"))
			continue
		}
		layout, _ := b.PayloadType(TypeID(i))
		if h := layout.Hash(); h != t.Hash {
			add(integrityf("types", i, "hash %016x does not match layout %016x", t.Hash, h))
		}
		if n := layout.NumBytes(); int64(n) != int64(t.NumBytes) {
			add(integrityf("types", i, "size %d does not match layout %d", t.NumBytes, n))
		}
	}
	for i, tr := range b.Traits {
		if _, _, ok := b.Trait(TraitID(i)); !ok {
			add(integrityf("traits", i, "invalid type %s or payload offset %d", tr.Type, tr.PayloadOffset))
		}
	}
}

func (b *Binary) verifySegments(add func(error)) {
	var next uint32
	for i, s := range b.Segments {
		if s.Destination.NumFrames == 0 {
			add(integrityf("segments", i, "empty destination range"))
		}
		if s.Destination.First != next {
			add(integrityf("segments", i, "destination starts at %d, want %d", s.Destination.First, next))
		}
		next = s.Destination.End()

		if !b.validString(s.Clip) {
			add(integrityf("segments", i, "invalid clip name %s", s.Clip))
		}
		if s.Prev.IsValid() && int64(s.Prev) >= int64(len(b.Segments)) {
			add(integrityf("segments", i, "invalid prev link %s", s.Prev))
		}
		if s.Next.IsValid() && int64(s.Next) >= int64(len(b.Segments)) {
			add(integrityf("segments", i, "invalid next link %s", s.Next))
		}
	}
	if int(next) != b.NumFrames() {
		add(integrityf("segments", len(b.Segments), "segments cover %d frames, transforms hold %d", next, b.NumFrames()))
	}
}

func (b *Binary) verifyTags(add func(error)) {
	owned := roaring.New()
	for i, s := range b.Segments {
		if uint64(s.TagStart)+uint64(s.NumTags) > uint64(len(b.Tags)) {
			add(integrityf("segments", i, "tags out of range"))
			continue
		}
		if s.NumTags > 0 {
			owned.AddRange(uint64(s.TagStart), uint64(s.TagStart)+uint64(s.NumTags))
		}
		for k := uint32(0); k < s.NumTags; k++ {
			id := int(uint32(s.TagStart) + k)
			t := b.Tags[id]
			if t.Segment != SegmentID(i) {
				add(integrityf("tags", id, "owned by segment %d but references %s", i, t.Segment))
			}
			if t.Range.NumFrames == 0 || t.Range.End() > s.NumFrames() {
				add(integrityf("tags", id, "range [%d,%d) outside segment of %d frames", t.Range.First, t.Range.End(), s.NumFrames()))
			}
			if int64(t.Trait) >= int64(len(b.Traits)) {
				add(integrityf("tags", id, "invalid trait %s", t.Trait))
			}
		}
	}
	if owned.GetCardinality() != uint64(len(b.Tags)) {
		add(integrityf("tags", len(b.Tags), "%d tags owned by segments", owned.GetCardinality()))
	}
}

func (b *Binary) verifyMarkers(add func(error)) {
	owned := roaring.New()
	for i, s := range b.Segments {
		if uint64(s.MarkerStart)+uint64(s.NumMarkers) > uint64(len(b.Markers)) {
			add(integrityf("segments", i, "markers out of range"))
			continue
		}
		if s.NumMarkers > 0 {
			owned.AddRange(uint64(s.MarkerStart), uint64(s.MarkerStart)+uint64(s.NumMarkers))
		}
		for k := uint32(0); k < s.NumMarkers; k++ {
			id := int(uint32(s.MarkerStart) + k)
			m := b.Markers[id]
			if m.Segment != SegmentID(i) || m.Frame >= s.NumFrames() {
				add(integrityf("markers", id, "frame %d outside segment %d", m.Frame, i))
			}
			if int64(m.Trait) >= int64(len(b.Traits)) {
				add(integrityf("markers", id, "invalid trait %s", m.Trait))
			}
		}
	}
	if owned.GetCardinality() != uint64(len(b.Markers)) {
		add(integrityf("markers", len(b.Markers), "%d markers owned by segments", owned.GetCardinality()))
	}
}

// verifyIntervals checks that the intervals of every segment partition its
// frames, using a bitmap of covered destination frames.
func (b *Binary) verifyIntervals(add func(error)) {
	covered := roaring.New()
	for i, s := range b.Segments {
		if uint64(s.IntervalStart)+uint64(s.NumIntervals) > uint64(len(b.Intervals)) {
			add(integrityf("segments", i, "intervals out of range"))
			continue
		}
		var next uint32
		for k := uint32(0); k < s.NumIntervals; k++ {
			id := int(uint32(s.IntervalStart) + k)
			iv := b.Intervals[id]
			if iv.Segment != SegmentID(i) {
				add(integrityf("intervals", id, "owned by segment %d but references %s", i, iv.Segment))
			}
			if iv.Range.First != next || iv.Range.NumFrames == 0 {
				add(integrityf("intervals", id, "range [%d,%d) leaves a gap or overlap at %d", iv.Range.First, iv.Range.End(), next))
			}
			next = iv.Range.End()

			lo := uint64(s.Destination.First) + uint64(iv.Range.First)
			hi := lo + uint64(iv.Range.NumFrames)
			frames := roaring.New()
			frames.AddRange(lo, hi)
			if covered.Intersects(frames) {
				add(integrityf("intervals", id, "overlaps another interval"))
			}
			covered.Or(frames)

			if int64(iv.TagList) >= int64(len(b.TagLists)) {
				add(integrityf("intervals", id, "invalid tag list %s", iv.TagList))
			}
		}
		if next != s.NumFrames() {
			add(integrityf("segments", i, "intervals cover %d of %d frames", next, s.NumFrames()))
		}
	}
	if covered.GetCardinality() != uint64(b.NumFrames()) {
		add(integrityf("intervals", len(b.Intervals), "cover %d of %d frames", covered.GetCardinality(), b.NumFrames()))
	}
}

func (b *Binary) verifyTagLists(add func(error)) {
	seen := make(map[string]int, len(b.TagLists))
	for i := range b.TagLists {
		tags, ok := b.TagList(TagListID(i))
		if !ok {
			add(integrityf("taglists", i, "indices out of range"))
			continue
		}
		key := make([]byte, 0, 4*len(tags))
		for k, t := range tags {
			if int64(t) >= int64(len(b.Tags)) {
				add(integrityf("taglists", i, "invalid tag %s", t))
			}
			if k > 0 && tags[k-1] >= t {
				add(integrityf("taglists", i, "tags not strictly ascending"))
			}
			key = append(key, byte(t), byte(t>>8), byte(t>>16), byte(t>>24))
		}
		if prev, ok := seen[string(key)]; ok {
			add(integrityf("taglists", i, "duplicates tag list %d", prev))
		}
		seen[string(key)] = i
	}
}

func (b *Binary) verifyMetrics(add func(error)) {
	for i, m := range b.Metrics {
		joints := b.MetricJointsOf(MetricID(i))
		if len(joints) == 0 {
			add(integrityf("metrics", i, "no joints"))
		}
		for _, j := range joints {
			if int(j.Index) >= len(b.Joints) || !b.validString(j.Name) {
				add(integrityf("metrics", i, "invalid joint %d", j.Index))
			}
		}
		if int64(m.TraitType) >= int64(len(b.Types)) {
			add(integrityf("metrics", i, "invalid trait type %s", m.TraitType))
		}
	}
}

// verifyCodeBooks checks that interval ownership is bidirectional and that
// encodings have the sizes implied by their feature counts.
func (b *Binary) verifyCodeBooks(add func(error)) {
	owned := roaring.New()
	for i, cb := range b.CodeBooks {
		id := CodeBookID(i)
		if int64(cb.Metric) >= int64(len(b.Metrics)) {
			add(integrityf("codebooks", i, "invalid metric %s", cb.Metric))
		}
		if int64(cb.Trait) >= int64(len(b.Traits)) {
			add(integrityf("codebooks", i, "invalid trait %s", cb.Trait))
		}
		if uint64(cb.IntervalStart)+uint64(cb.NumIntervals) > uint64(len(b.CodeBookIntervals)) {
			add(integrityf("codebooks", i, "intervals out of range"))
			continue
		}

		var fragments uint32
		for _, ivID := range b.CodeBookIntervalsOf(id) {
			iv, ok := b.Interval(ivID)
			if !ok {
				add(integrityf("codebooks", i, "invalid interval %s", ivID))
				continue
			}
			if iv.CodeBook != id {
				add(integrityf("codebooks", i, "owns interval %s which references codebook %s", ivID, iv.CodeBook))
			}
			if iv.FragmentOffset != fragments {
				add(integrityf("intervals", int(ivID), "fragment offset %d, want %d", iv.FragmentOffset, fragments))
			}
			if !b.TagListContains(iv.TagList, cb.Trait) {
				add(integrityf("intervals", int(ivID), "tag list lacks trait %s of codebook %d", cb.Trait, i))
			}
			fragments += iv.Range.NumFrames
			owned.Add(uint32(ivID))
		}
		if fragments != cb.NumFragments {
			add(integrityf("codebooks", i, "%d fragments, intervals cover %d", cb.NumFragments, fragments))
		}

		verifyEncoding(add, i, "pose", &cb.Pose, cb.NumFragments)
		verifyEncoding(add, i, "trajectory", &cb.Trajectory, cb.NumFragments)
	}

	for i, iv := range b.Intervals {
		if !iv.CodeBook.IsValid() {
			continue
		}
		if int64(iv.CodeBook) >= int64(len(b.CodeBooks)) {
			add(integrityf("intervals", i, "invalid codebook %s", iv.CodeBook))
			continue
		}
		if !owned.Contains(uint32(i)) {
			add(integrityf("intervals", i, "references codebook %s which does not own it", iv.CodeBook))
		}
	}
}

func verifyEncoding(add func(error), cb int, name string, e *Encoding, numFragments uint32) {
	table := "codebooks." + name
	if e.NumFragments != numFragments {
		add(integrityf(table, cb, "%d fragments, want %d", e.NumFragments, numFragments))
	}
	if len(e.Codes) != int(e.NumFragments)*e.NumFeaturesFlattened() {
		add(integrityf(table, cb, "%d codes, want %d", len(e.Codes), int(e.NumFragments)*e.NumFeaturesFlattened()))
	}
	if len(e.Centroids) != e.NumFeatures()*quantization.NumCentroids {
		add(integrityf(table, cb, "%d centroids, want %d", len(e.Centroids), e.NumFeatures()*quantization.NumCentroids))
	}
	if len(e.BoundingBoxes) != int(e.NumTransformed) {
		add(integrityf(table, cb, "%d bounding boxes, want %d", len(e.BoundingBoxes), e.NumTransformed))
	}
	if len(e.Quantizers) != int(e.NumQuantized) {
		add(integrityf(table, cb, "%d quantizers, want %d", len(e.Quantizers), e.NumQuantized))
	}
}
