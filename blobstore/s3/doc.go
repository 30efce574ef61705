// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("characters/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = db.Save(ctx, store, "hero.mdb")
//
// # Features
//
//   - Range reads, so headers can be inspected without fetching the payload
//   - Multipart streaming uploads for large databases
//   - CRC32C integrity checks on uploads
//   - Configurable prefix for multi-tenant isolation
package s3
