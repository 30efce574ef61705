package builder

import (
	"context"

	"github.com/hupe1980/motiondb/blob"
)

// buildCodeBooks creates one codebook per metric and trait of the metric's
// trait type. A codebook owns every unclaimed interval whose tag list holds
// its trait; the first codebook to claim an interval keeps it.
func (s *state) buildCodeBooks(ctx context.Context) error {
	b := s.bin
	for mi, m := range b.Metrics {
		for ti, tr := range b.Traits {
			if err := ctx.Err(); err != nil {
				return err
			}
			if tr.Type != m.TraitType {
				continue
			}

			id := blob.CodeBookID(len(b.CodeBooks))
			cb := blob.CodeBook{
				Metric:        blob.MetricID(mi),
				Trait:         blob.TraitID(ti),
				IntervalStart: uint32(len(b.CodeBookIntervals)),
			}
			for ii := range b.Intervals {
				iv := &b.Intervals[ii]
				if iv.CodeBook.IsValid() || !b.TagListContains(iv.TagList, cb.Trait) {
					continue
				}
				iv.CodeBook = id
				iv.FragmentOffset = cb.NumFragments
				cb.NumFragments += iv.Range.NumFrames
				cb.NumIntervals++
				b.CodeBookIntervals = append(b.CodeBookIntervals, blob.IntervalID(ii))
			}
			if cb.NumIntervals == 0 {
				continue
			}
			b.CodeBooks = append(b.CodeBooks, cb)
		}
	}

	s.logger.Info("Codebooks assigned", "codeBooks", len(b.CodeBooks))
	return nil
}
