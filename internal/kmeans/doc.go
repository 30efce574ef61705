// Package kmeans implements k-means clustering of 3-vectors for codebook training.
//
// Used by the product quantizer to learn the 256 centroids of every feature.
package kmeans
