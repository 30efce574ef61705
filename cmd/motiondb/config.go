package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/motiondb"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/builder"
	"github.com/hupe1980/motiondb/codec"
	"gopkg.in/yaml.v3"
)

// buildFile is the YAML description of a build.
//
//	output: s3://assets/characters/hero.mdb
//	compression: zstd
//	codec: go-json
//	clips:
//	  - clips/locomotion.json
//	config:
//	  sample_rate: 30
//	  time_horizon: 1
//	metrics:
//	  - name: locomotion
//	    trait_type: Locomotion
//	    joints: [hips, leftFoot, rightFoot]
type buildFile struct {
	Output      string                  `yaml:"output"`
	Compression string                  `yaml:"compression"`
	Codec       string                  `yaml:"codec"`
	Clips       []string                `yaml:"clips"`
	Config      builder.Config          `yaml:"config"`
	Metrics     []builder.MetricConfig  `yaml:"metrics"`
	Resources   motiondb.ResourceConfig `yaml:"resources"`
}

// loadBuildFile reads a build file. Unset settings keep their defaults;
// relative clip paths are resolved against the directory of the file.
func loadBuildFile(path string) (*buildFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	bf := &buildFile{
		Compression: "zstd",
		Codec:       "go-json",
		Config:      builder.DefaultConfig(),
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(bf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, m := range bf.Metrics {
		bf.Metrics[i] = withMetricDefaults(m)
	}

	dir := filepath.Dir(path)
	for i, c := range bf.Clips {
		if !filepath.IsAbs(c) {
			bf.Clips[i] = filepath.Join(dir, c)
		}
	}
	if bf.Output != "" && !strings.Contains(bf.Output, "://") && !filepath.IsAbs(bf.Output) {
		bf.Output = filepath.Join(dir, bf.Output)
	}
	return bf, bf.validate()
}

// withMetricDefaults fills the sampling settings a build file left at zero.
func withMetricDefaults(m builder.MetricConfig) builder.MetricConfig {
	d := builder.DefaultMetricConfig(m.Name, m.TraitType, m.Joints...)
	if m.NumPoseSamples == 0 {
		m.NumPoseSamples = d.NumPoseSamples
	}
	if m.PoseTimeSpan == 0 {
		m.PoseTimeSpan = d.PoseTimeSpan
	}
	if m.NumTrajectorySamples == 0 {
		m.NumTrajectorySamples = d.NumTrajectorySamples
	}
	if m.TrajectorySampleRange == 0 {
		m.TrajectorySampleRange = d.TrajectorySampleRange
	}
	return m
}

func (bf *buildFile) validate() error {
	var errs []error
	if bf.Output == "" {
		errs = append(errs, errors.New("output is required"))
	} else if _, err := parseLocation(bf.Output); err != nil {
		errs = append(errs, err)
	}
	if len(bf.Clips) == 0 {
		errs = append(errs, errors.New("at least one clip file is required"))
	}
	if _, err := blob.ParseCompression(bf.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, ok := codec.ByName(bf.Codec); !ok {
		errs = append(errs, fmt.Errorf("unknown codec %q", bf.Codec))
	}
	if err := bf.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
