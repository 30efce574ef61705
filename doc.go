// Package motiondb builds and queries compressed motion databases for
// motion matching.
//
// A library of annotated animation clips is reduced to a single relocatable
// binary blob. Every tagged frame becomes a pose fragment and a trajectory
// fragment, stored as one byte per feature through product quantization.
// At runtime a time cursor walks the database across clip boundaries, and
// fragments are reconstructed from their codes and compared against a
// query.
//
// # Quick Start
//
//	in := builder.Input{
//	    Rig:     rig,
//	    Clips:   clips,
//	    Types:   registry,
//	    Config:  builder.DefaultConfig(),
//	    Metrics: []builder.MetricConfig{
//	        builder.DefaultMetricConfig("locomotion", "Locomotion", "hips", "leftFoot", "rightFoot"),
//	    },
//	}
//
//	db, err := motiondb.Build(ctx, in, motiondb.WithLogLevel(slog.LevelInfo))
//	err = db.Save(ctx, blobstore.NewLocalStore("./data"), "hero.mdb")
//
//	db, err = motiondb.OpenFile(ctx, "./data/hero.mdb")
//
// # Runtime
//
//	t := blob.SamplingTime{TimeIndex: blob.TimeIndex{Segment: 0, Frame: 0}}
//	res := db.Advance(t, 1.0/60)
//	pose := db.ReconstructPoseFragment(res.Time)
//
//	cb := db.GetCodeBookAt(res.Time.TimeIndex)
//	matches, err := db.Search(cb).Pose(pose).KNN(5).Execute(ctx)
//
// # Storage
//
// Databases are published through a blobstore.BlobStore: the local
// filesystem (memory mapped on load), memory, Amazon S3 or MinIO.
package motiondb
