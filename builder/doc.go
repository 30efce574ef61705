// Package builder turns annotated animation clips into a motion database.
//
// A build runs as a sequence of resumable stages:
//
//	types      register trait types and intern their layouts
//	metrics    resolve metric joints against the rig
//	segments   coalesce tags into segments and resample their frames
//	links      connect segments across boundary clips
//	intervals  split segments where the set of active tags changes
//	tags       check that tags claimed by a metric span the time horizon
//	codebooks  assign intervals to (metric, trait) codebooks
//	encoding   sample, normalize, train and encode fragments
//	assemble   freeze and verify the binary
//
// The binary is built into staging memory and returned only after it passes
// blob.Binary.Verify. A cancelled or failed build returns no binary.
package builder
