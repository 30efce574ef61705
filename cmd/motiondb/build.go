package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/hupe1980/motiondb"
	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/builder"
	"github.com/hupe1980/motiondb/codec"
	"github.com/hupe1980/motiondb/trait"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newBuildCmd(g *globalFlags) *cobra.Command {
	var (
		file        string
		output      string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a database from clip files",
		Long: `Build reads a YAML build file, decodes the clip files it lists, runs the
builder pipeline and saves the database to the output location.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bf, err := loadBuildFile(file)
			if err != nil {
				return err
			}
			if output != "" {
				bf.Output = output
			}
			return runBuild(cmd, g, bf, metricsFile)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "build.yaml", "build file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output location, overrides the build file")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write build metrics in Prometheus text format to this file")
	return cmd
}

func runBuild(cmd *cobra.Command, g *globalFlags, bf *buildFile, metricsFile string) error {
	ctx := cmd.Context()

	logger, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c, _ := codec.ByName(bf.Codec)
	compression, err := blob.ParseCompression(bf.Compression)
	if err != nil {
		return err
	}
	loc, err := parseLocation(bf.Output)
	if err != nil {
		return err
	}

	rig, types, clips, err := loadClips(c, bf.Clips)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector, err := motiondb.NewPrometheusCollector(reg)
	if err != nil {
		return err
	}

	db, err := motiondb.Build(ctx, builder.Input{
		Rig:     rig,
		Clips:   clips,
		Types:   types,
		Config:  bf.Config,
		Metrics: bf.Metrics,
	},
		motiondb.WithLogger(logger),
		motiondb.WithMetricsCollector(collector),
		motiondb.WithCompression(compression),
		motiondb.WithResourceConfig(bf.Resources),
	)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store, err := loc.store(ctx)
	if err != nil {
		return err
	}
	if err := db.Save(ctx, store, loc.name); err != nil {
		return err
	}

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	bin := db.Binary()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d frames, %d segments, %d codebooks\n",
		bf.Output, bin.NumFrames(), len(bin.Segments), len(bin.CodeBooks))
	return err
}

// loadClips decodes clip files into one build input. All files must share
// the rig; their trait types are merged into one registry.
func loadClips(c codec.Codec, paths []string) (anim.Rig, *trait.Registry, []anim.Clip, error) {
	var (
		rig   anim.Rig
		clips []anim.Clip
	)
	types, err := trait.NewRegistry()
	if err != nil {
		return rig, nil, nil, err
	}

	for i, p := range paths {
		set, err := readClipFile(c, p)
		if err != nil {
			return rig, nil, nil, err
		}

		if i == 0 {
			rig = set.Rig
		} else if !slices.Equal(rig.Joints, set.Rig.Joints) {
			return rig, nil, nil, fmt.Errorf("%s: rig differs from %s", p, paths[0])
		}

		tt, err := set.TraitTypes()
		if err != nil {
			return rig, nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		for _, t := range tt {
			if _, err := types.Register(t); err != nil {
				return rig, nil, nil, fmt.Errorf("%s: %w", p, err)
			}
		}

		decoded, err := set.Decode(types)
		if err != nil {
			return rig, nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		clips = append(clips, decoded...)
	}
	return rig, types, clips, nil
}

func readClipFile(c codec.Codec, path string) (*codec.ClipSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	set, err := codec.ReadClipSet(c, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
