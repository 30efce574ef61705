package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/motiondb"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/codec"
	"github.com/spf13/cobra"
)

type report struct {
	Location    string           `json:"location"`
	BuildID     string           `json:"buildId"`
	SampleRate  float64          `json:"sampleRate"`
	TimeHorizon float64          `json:"timeHorizon"`
	Joints      int              `json:"joints"`
	Frames      int              `json:"frames"`
	Segments    int              `json:"segments"`
	Tags        int              `json:"tags"`
	Markers     int              `json:"markers"`
	Intervals   int              `json:"intervals"`
	TagLists    int              `json:"tagLists"`
	Traits      int              `json:"traits"`
	Types       int              `json:"types"`
	Metrics     int              `json:"metrics"`
	CodeBooks   []codeBookReport `json:"codeBooks"`
}

type codeBookReport struct {
	ID                 uint32 `json:"id"`
	Metric             string `json:"metric"`
	Trait              string `json:"trait"`
	Intervals          uint32 `json:"intervals"`
	Fragments          uint32 `json:"fragments"`
	PoseFeatures       int    `json:"poseFeatures"`
	TrajectoryFeatures int    `json:"trajectoryFeatures"`
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	var (
		debug  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <location>",
		Short: "Verify a database and print its statistics",
		Long: `Inspect loads a database, verifies its integrity and prints table
statistics. With --debug it writes the full debug document instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, g, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			out := cmd.OutOrStdout()
			switch strings.ToLower(debug) {
			case "":
			case "xml":
				return db.Binary().WriteDebugXML(out)
			case "yaml":
				return db.Binary().WriteDebugYAML(out)
			default:
				return fmt.Errorf("invalid debug format %q", debug)
			}

			r := newReport(args[0], db.Binary())
			if asJSON {
				data, err := codec.GoJSON{}.MarshalIndent(r, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			return r.write(out)
		},
	}
	cmd.Flags().StringVar(&debug, "debug", "", "write the debug document (xml, yaml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

// openDatabase loads and verifies the database at loc.
func openDatabase(cmd *cobra.Command, g *globalFlags, loc string) (*motiondb.Database, error) {
	ctx := cmd.Context()

	logger, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	l, err := parseLocation(loc)
	if err != nil {
		return nil, err
	}
	store, err := l.store(ctx)
	if err != nil {
		return nil, err
	}
	return motiondb.Open(ctx, store, l.name, motiondb.WithLogger(logger))
}

func newReport(loc string, bin *blob.Binary) report {
	r := report{
		Location:    loc,
		BuildID:     bin.BuildID.String(),
		SampleRate:  bin.SampleRate,
		TimeHorizon: bin.TimeHorizon,
		Joints:      bin.NumJoints(),
		Frames:      bin.NumFrames(),
		Segments:    len(bin.Segments),
		Tags:        len(bin.Tags),
		Markers:     len(bin.Markers),
		Intervals:   len(bin.Intervals),
		TagLists:    len(bin.TagLists),
		Traits:      len(bin.Traits),
		Types:       len(bin.Types),
		Metrics:     len(bin.Metrics),
		CodeBooks:   make([]codeBookReport, len(bin.CodeBooks)),
	}
	for i := range bin.CodeBooks {
		cb := &bin.CodeBooks[i]
		var metric string
		if m, ok := bin.Metric(cb.Metric); ok {
			metric = bin.StringOrEmpty(m.Name)
		}
		r.CodeBooks[i] = codeBookReport{
			ID:                 uint32(i),
			Metric:             metric,
			Trait:              describeTrait(bin, cb.Trait),
			Intervals:          cb.NumIntervals,
			Fragments:          cb.NumFragments,
			PoseFeatures:       cb.Pose.NumFeatures(),
			TrajectoryFeatures: cb.Trajectory.NumFeatures(),
		}
	}
	return r
}

func (r report) write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "location:     %s\n", r.Location)
	fmt.Fprintf(&b, "build id:     %s\n", r.BuildID)
	fmt.Fprintf(&b, "sample rate:  %g fps\n", r.SampleRate)
	fmt.Fprintf(&b, "time horizon: %g s\n", r.TimeHorizon)
	fmt.Fprintf(&b, "joints:       %d\n", r.Joints)
	fmt.Fprintf(&b, "frames:       %d\n", r.Frames)
	fmt.Fprintf(&b, "segments:     %d\n", r.Segments)
	fmt.Fprintf(&b, "tags:         %d\n", r.Tags)
	fmt.Fprintf(&b, "markers:      %d\n", r.Markers)
	fmt.Fprintf(&b, "intervals:    %d\n", r.Intervals)
	fmt.Fprintf(&b, "tag lists:    %d\n", r.TagLists)
	fmt.Fprintf(&b, "traits:       %d\n", r.Traits)
	fmt.Fprintf(&b, "types:        %d\n", r.Types)
	fmt.Fprintf(&b, "metrics:      %d\n", r.Metrics)
	fmt.Fprintf(&b, "codebooks:    %d\n", len(r.CodeBooks))
	for _, cb := range r.CodeBooks {
		fmt.Fprintf(&b, "  #%d %s %q: %d intervals, %d fragments, %d pose + %d trajectory features\n",
			cb.ID, cb.Metric, cb.Trait, cb.Intervals, cb.Fragments, cb.PoseFeatures, cb.TrajectoryFeatures)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// describeTrait renders a trait as "Type field=value ...".
func describeTrait(bin *blob.Binary, id blob.TraitID) string {
	tr, payload, ok := bin.Trait(id)
	if !ok {
		return ""
	}
	t, ok := bin.PayloadType(tr.Type)
	if !ok {
		return ""
	}
	fields, err := t.Format(payload)
	if err != nil || fields == "" {
		return t.Name
	}
	return t.Name + " " + fields
}
