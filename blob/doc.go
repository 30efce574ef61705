// Package blob implements the motion database binary: a set of flat tables
// addressed by index newtypes, frozen after build and read-only at runtime.
//
// A Binary holds
//
//   - the rig joints and the local transforms of every destination frame,
//   - segments, tags, markers and intervals describing the annotated frames,
//   - interned strings, payload types and trait payloads,
//   - metrics and the codebooks with their product-quantized fragments.
//
// Tables reference each other only by index, so a Binary can be serialized
// as a single relocatable byte stream (see Write and Read). All accessors are
// bounds checked and report absence instead of panicking.
//
// # Time
//
// A TimeIndex addresses a destination frame of a segment. A SamplingTime adds
// a fractional offset towards the next frame. Advance moves a SamplingTime
// by a duration, following segment links across clip boundaries and
// reporting the root motion covered.
package blob
