// Package blobstore stores built motion databases as named, write-once blobs.
//
// BlobStore is the interface used by motiondb.Save and motiondb.Open.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem; blobs are memory mapped on Open and
//     published by an atomic rename on Close
//   - MemoryStore: in-process map, for tests and tools
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs that can expose their bytes without copying implement Mappable;
// ReadAll uses it when present and falls back to a single ranged read.
package blobstore
