// Package fragment builds the feature vectors that motion matching compares.
//
// A fragment is a short description of the motion around a sampling time,
// made of 3-vector features in three groups:
//
//   - quantized: velocities, stored as magnitude and direction
//   - normalized: pure directions such as the root forward axis
//   - transformed: positions, normalized by an oriented bounding box
//
// Features are always stored in that group order. All features are
// expressed in the frame of the trajectory joint at the sampling time.
//
// Two factories exist. A PoseFactory samples the character-space positions
// and velocities of the metric joints; a TrajectoryFactory samples the root
// motion at offsets produced by a TimeSampler. Both build fragments either
// from a blob.Binary, walking the timeline with Binary.Advance so that
// boundary links are followed, or from a caller-supplied TransformBuffer.
package fragment
