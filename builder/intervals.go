package builder

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/motiondb/blob"
)

// tagEvent opens or closes a tag at a segment-relative frame.
type tagEvent struct {
	frame uint32
	tag   blob.TagID
	open  bool
}

// buildIntervals splits every segment into maximal runs of frames with a
// constant set of active tags.
func (s *state) buildIntervals(ctx context.Context) error {
	lists := make(map[string]blob.TagListID)

	for si := range s.bin.Segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		seg := &s.bin.Segments[si]
		seg.IntervalStart = blob.IntervalID(len(s.bin.Intervals))

		events := make([]tagEvent, 0, 2*seg.NumTags)
		for k := uint32(0); k < seg.NumTags; k++ {
			id := blob.TagID(uint32(seg.TagStart) + k)
			r := s.bin.Tags[id].Range
			events = append(events,
				tagEvent{frame: r.First, tag: id, open: true},
				tagEvent{frame: r.End(), tag: id})
		}
		slices.SortStableFunc(events, func(a, b tagEvent) int {
			if a.frame != b.frame {
				return int(a.frame) - int(b.frame)
			}
			// Closing before opening keeps adjacent tags from sharing a frame.
			switch {
			case a.open == b.open:
				return 0
			case !a.open:
				return -1
			default:
				return 1
			}
		})

		var (
			active []blob.TagID
			start  uint32
		)
		for _, ev := range events {
			if ev.frame > start {
				if len(active) == 0 {
					return fmt.Errorf("%w: segment %d has untagged frames [%d,%d)", ErrInternal, si, start, ev.frame)
				}
				s.bin.Intervals = append(s.bin.Intervals, blob.Interval{
					Segment:  blob.SegmentID(si),
					Range:    blob.Range{First: start, NumFrames: ev.frame - start},
					TagList:  s.tagList(lists, active),
					CodeBook: blob.InvalidCodeBookID,
				})
				start = ev.frame
			}
			if ev.open {
				active = append(active, ev.tag)
			} else {
				active = slices.DeleteFunc(active, func(t blob.TagID) bool { return t == ev.tag })
			}
		}

		if len(active) != 0 || start != seg.NumFrames() {
			return fmt.Errorf("%w: segment %d sweep ended at frame %d of %d with %d open tags",
				ErrInternal, si, start, seg.NumFrames(), len(active))
		}
		seg.NumIntervals = uint32(len(s.bin.Intervals)) - uint32(seg.IntervalStart)
	}

	s.logger.Info("Intervals built", "intervals", len(s.bin.Intervals), "tagLists", len(s.bin.TagLists))
	return nil
}

// tagList returns the id of the sorted set of tags, storing it on first use.
func (s *state) tagList(lists map[string]blob.TagListID, tags []blob.TagID) blob.TagListID {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	key := make([]byte, 0, 4*len(sorted))
	for _, t := range sorted {
		key = binary.LittleEndian.AppendUint32(key, uint32(t))
	}
	if id, ok := lists[string(key)]; ok {
		return id
	}

	id := blob.TagListID(len(s.bin.TagLists))
	s.bin.TagLists = append(s.bin.TagLists, blob.TagList{
		Start:   uint32(len(s.bin.TagIndices)),
		NumTags: uint32(len(sorted)),
	})
	s.bin.TagIndices = append(s.bin.TagIndices, sorted...)
	lists[string(key)] = id
	return id
}

// CheckTagsAreLongEnough reports every tag whose trait is of one of
// traitTypes and that spans fewer frames than the time horizon of b. Such
// tags cannot hold a full trajectory window.
func CheckTagsAreLongEnough(b *blob.Binary, traitTypes []blob.TypeID) error {
	required := int(math.Ceil(b.TimeHorizon*b.SampleRate - 1e-9))

	var result *multierror.Error
	for i, tag := range b.Tags {
		tr, _, ok := b.Trait(tag.Trait)
		if !ok || !slices.Contains(traitTypes, tr.Type) {
			continue
		}
		if int(tag.Range.NumFrames) >= required {
			continue
		}

		seg, _ := b.Segment(tag.Segment)
		typ, _ := b.Type(tr.Type)
		result = multierror.Append(result, &TagTooShortError{
			Clip:     b.StringOrEmpty(seg.Clip),
			Tag:      i,
			Type:     b.StringOrEmpty(typ.Name),
			Frames:   int(tag.Range.NumFrames),
			Required: required,
		})
	}
	return result.ErrorOrNil()
}
