// Package quantization provides the feature compression primitives of the
// motion database.
//
// Three building blocks are combined by the encoder:
//
//   - Quantizer: 8-bit linear encoding of a scalar magnitude.
//   - BoundingBox: an oriented box fitted by principal component analysis,
//     used to map position-like features into a canonical unit cube.
//   - ProductQuantizer: one 256-entry centroid table per 3-vector feature,
//     trained by k-means, so that every feature compresses to a single byte.
//
// # Usage
//
//	q := quantization.NewQuantizer(magnitudes)
//	b := q.Encode(1.25)
//	v := q.Decode(b) // |v-1.25| <= q.Range/255
//
//	box := quantization.ComputeBoundingBox(points)
//	n := box.Normalize(points[0])
//	p := box.InverseNormalize(n)
//
//	pq := quantization.NewProductQuantizer(numFeatures, quantization.DefaultTrainingSettings())
//	for {
//	    done, err := pq.Step(ctx)
//	    ...
//	}
package quantization
