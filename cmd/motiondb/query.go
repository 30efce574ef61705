package main

import (
	"errors"
	"fmt"

	"github.com/hupe1980/motiondb"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/codec"
	"github.com/spf13/cobra"
)

type queryFlags struct {
	segment    uint32
	frame      uint32
	advance    float64
	k          int
	poseWeight float64
	trajWeight float64
	asJSON     bool
}

type queryMatch struct {
	Rank     int     `json:"rank"`
	Clip     string  `json:"clip"`
	Segment  uint32  `json:"segment"`
	Frame    uint32  `json:"frame"`
	Fragment int     `json:"fragment"`
	Cost     float64 `json:"cost"`
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	q := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query <location>",
		Short: "Search a codebook with the fragments of a stored frame",
		Long: `Query samples the pose and trajectory fragments at a frame of the
database, optionally advanced by --advance seconds, and prints the k
closest fragments of the codebook covering that frame.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, g, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return runQuery(cmd, db, q)
		},
	}
	cmd.Flags().Uint32Var(&q.segment, "segment", 0, "segment of the query frame")
	cmd.Flags().Uint32Var(&q.frame, "frame", 0, "segment relative query frame")
	cmd.Flags().Float64Var(&q.advance, "advance", 0, "advance the query time by this many seconds")
	cmd.Flags().IntVarP(&q.k, "knn", "k", 5, "number of matches")
	cmd.Flags().Float64Var(&q.poseWeight, "pose-weight", 1, "weight of the pose deviation")
	cmd.Flags().Float64Var(&q.trajWeight, "trajectory-weight", 1, "weight of the trajectory deviation")
	cmd.Flags().BoolVar(&q.asJSON, "json", false, "print matches as JSON")
	return cmd
}

func runQuery(cmd *cobra.Command, db *motiondb.Database, q *queryFlags) error {
	bin := db.Binary()
	t := blob.SamplingTime{TimeIndex: blob.TimeIndex{Segment: blob.SegmentID(q.segment), Frame: q.frame}}
	if !bin.IsValidSamplingTime(t) {
		return fmt.Errorf("segment %d frame %d is not in the database", q.segment, q.frame)
	}
	if q.advance != 0 {
		t = db.Advance(t, q.advance).Time
	}

	cb := db.GetCodeBookAt(t.TimeIndex)
	if !cb.IsValid() {
		return errors.New("the query frame is not covered by a codebook")
	}

	matches, err := db.Search(cb).
		Pose(db.CreatePoseFragment(cb, t)).
		Trajectory(db.CreateTrajectoryFragment(cb, t)).
		Weights(q.poseWeight, q.trajWeight).
		KNN(q.k).
		Execute(cmd.Context())
	if err != nil {
		return err
	}

	out := make([]queryMatch, len(matches))
	for i, m := range matches {
		var clip string
		if s, ok := bin.Segment(m.Time.Segment); ok {
			clip = bin.StringOrEmpty(s.Clip)
		}
		out[i] = queryMatch{
			Rank:     i + 1,
			Clip:     clip,
			Segment:  uint32(m.Time.Segment),
			Frame:    m.Time.Frame,
			Fragment: m.Fragment,
			Cost:     m.Cost,
		}
	}

	w := cmd.OutOrStdout()
	if q.asJSON {
		data, err := codec.GoJSON{}.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "query: segment %d frame %d (theta %.3f), codebook %d\n", t.Segment, t.Frame, t.Theta, cb)
	for _, m := range out {
		fmt.Fprintf(w, "%3d  %-16s segment %-4d frame %-6d cost %.6f\n", m.Rank, m.Clip, m.Segment, m.Frame, m.Cost)
	}
	return nil
}
