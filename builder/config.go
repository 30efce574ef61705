package builder

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/quantization"
	"github.com/hupe1980/motiondb/trait"
)

// Config holds the global build settings.
type Config struct {
	// SampleRate is the frame rate of the database in frames per second.
	SampleRate float64 `yaml:"sample_rate" json:"sampleRate"`
	// TimeHorizon is the length of the trajectory window in seconds.
	TimeHorizon float64 `yaml:"time_horizon" json:"timeHorizon"`
	// Training controls product quantizer training.
	Training quantization.TrainingSettings `yaml:"training" json:"training"`
}

// DefaultConfig returns a 30 fps, one second horizon configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:  30,
		TimeHorizon: 1,
		Training:    quantization.DefaultTrainingSettings(),
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch {
	case !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0):
		return fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, c.SampleRate)
	case !(c.TimeHorizon > 0) || math.IsInf(c.TimeHorizon, 0):
		return fmt.Errorf("%w: time horizon %v", ErrInvalidConfig, c.TimeHorizon)
	}
	return nil
}

// HorizonFrames returns the number of frames a tag claimed by a metric must
// span.
func (c Config) HorizonFrames() int {
	return int(math.Ceil(c.TimeHorizon*c.SampleRate - 1e-9))
}

// MetricConfig describes one similarity metric. A metric applies to the
// tags whose trait is of TraitType.
type MetricConfig struct {
	Name      string   `yaml:"name" json:"name"`
	TraitType string   `yaml:"trait_type" json:"traitType"`
	Joints    []string `yaml:"joints" json:"joints"`

	// NumPoseSamples velocities per joint, spread over PoseTimeSpan seconds
	// centered on the sampling time.
	NumPoseSamples int     `yaml:"num_pose_samples" json:"numPoseSamples"`
	PoseTimeSpan   float64 `yaml:"pose_time_span" json:"poseTimeSpan"`

	// NumTrajectorySamples intervals of the trajectory window; the window
	// holds one more sample. TrajectorySampleRange in [0,1] is the share of
	// the past.
	NumTrajectorySamples    int     `yaml:"num_trajectory_samples" json:"numTrajectorySamples"`
	TrajectorySampleRange   float64 `yaml:"trajectory_sample_range" json:"trajectorySampleRange"`
	TrajectoryDisplacements bool    `yaml:"trajectory_displacements" json:"trajectoryDisplacements"`
}

// DefaultMetricConfig returns a metric over joints with three pose samples
// and a four-interval trajectory.
func DefaultMetricConfig(name, traitType string, joints ...string) MetricConfig {
	return MetricConfig{
		Name:                  name,
		TraitType:             traitType,
		Joints:                joints,
		NumPoseSamples:        3,
		PoseTimeSpan:          0.2,
		NumTrajectorySamples:  4,
		TrajectorySampleRange: 0.5,
	}
}

// Input is everything a build consumes.
type Input struct {
	Rig     anim.Rig
	Clips   []anim.Clip
	Types   *trait.Registry
	Config  Config
	Metrics []MetricConfig
}

// Validate checks the input and reports every problem found.
func (in *Input) Validate() error {
	var result *multierror.Error

	if err := in.Config.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := in.Rig.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if in.Types == nil {
		result = multierror.Append(result, fmt.Errorf("%w: no trait registry", ErrInvalidConfig))
	}
	if len(in.Clips) == 0 {
		result = multierror.Append(result, ErrNoClips)
	}

	seen := make(map[string]bool, len(in.Clips))
	for i := range in.Clips {
		c := &in.Clips[i]
		if err := c.Validate(in.Rig); err != nil {
			result = multierror.Append(result, err)
		}
		if seen[c.Name] {
			result = multierror.Append(result, fmt.Errorf("%w: %q", ErrDuplicateClip, c.Name))
		}
		seen[c.Name] = true
	}

	return result.ErrorOrNil()
}
