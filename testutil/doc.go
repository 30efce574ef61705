// Package testutil provides testing utilities for motiondb.
//
// This package is intended for use in tests and benchmarks only. It provides
// a deterministic random number generator and synthetic rigs and clips.
//
// # Synthetic Clips
//
//	rng := testutil.NewRNG(seed)
//	clip := testutil.WalkClip(testutil.ClipOptions{Name: "walk", NumFrames: 90, Speed: 1.5, RNG: rng})
//	testutil.TagAll(&clip, testutil.Locomotion(1.5))
package testutil
