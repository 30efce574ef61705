package builder

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/motiondb/blob"
)

// buildMetrics resolves the metric joints against the rig and stores the
// metrics. Every unresolvable metric is reported.
func (s *state) buildMetrics() error {
	var result *multierror.Error

	for i, mc := range s.in.Metrics {
		if err := validateMetric(mc); err != nil {
			result = multierror.Append(result, fmt.Errorf("metric %d %q: %w", i, mc.Name, err))
			continue
		}

		typ, ok := s.types[mc.TraitType]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("metric %d %q: %w: unknown trait type %q", i, mc.Name, ErrInvalidMetric, mc.TraitType))
			continue
		}

		if len(mc.Joints) == 0 {
			result = multierror.Append(result, fmt.Errorf("metric %d %q: %w", i, mc.Name, ErrNoJoints))
			continue
		}
		indices := make([]int, len(mc.Joints))
		missing := false
		for k, name := range mc.Joints {
			indices[k] = s.in.Rig.JointIndex(name)
			if indices[k] < 0 {
				result = multierror.Append(result, fmt.Errorf("metric %d %q: %w: %q", i, mc.Name, ErrMissingJoint, name))
				missing = true
			}
		}
		if missing {
			continue
		}

		start := uint32(len(s.bin.MetricJoints))
		for k, name := range mc.Joints {
			s.bin.MetricJoints = append(s.bin.MetricJoints, blob.MetricJoint{Name: s.intern(name), Index: uint32(indices[k])})
		}
		s.bin.Metrics = append(s.bin.Metrics, blob.Metric{
			Name:                    s.intern(mc.Name),
			TraitType:               typ,
			JointStart:              start,
			NumJoints:               uint32(len(mc.Joints)),
			NumPoseSamples:          uint32(mc.NumPoseSamples),
			PoseTimeSpan:            mc.PoseTimeSpan,
			NumTrajectorySamples:    uint32(mc.NumTrajectorySamples),
			TrajectorySampleRange:   mc.TrajectorySampleRange,
			TrajectoryDisplacements: mc.TrajectoryDisplacements,
		})
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	s.logger.Debug("Metrics resolved", "metrics", len(s.bin.Metrics))
	return nil
}

func validateMetric(mc MetricConfig) error {
	switch {
	case mc.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidMetric)
	case mc.NumPoseSamples < 1:
		return fmt.Errorf("%w: %d pose samples", ErrInvalidMetric, mc.NumPoseSamples)
	case !(mc.PoseTimeSpan > 0) || math.IsInf(mc.PoseTimeSpan, 0):
		return fmt.Errorf("%w: pose time span %v", ErrInvalidMetric, mc.PoseTimeSpan)
	case mc.NumTrajectorySamples < 1:
		return fmt.Errorf("%w: %d trajectory samples", ErrInvalidMetric, mc.NumTrajectorySamples)
	case !(mc.TrajectorySampleRange >= 0 && mc.TrajectorySampleRange <= 1):
		return fmt.Errorf("%w: trajectory sample range %v", ErrInvalidMetric, mc.TrajectorySampleRange)
	}
	return nil
}

// metricTraitTypes returns the trait types claimed by at least one metric.
func (s *state) metricTraitTypes() []blob.TypeID {
	var types []blob.TypeID
	for _, m := range s.bin.Metrics {
		types = append(types, m.TraitType)
	}
	return types
}
