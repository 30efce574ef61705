// Package fs abstracts the filesystem calls made by blobstore.LocalStore so
// tests can inject write, sync and rename failures.
//
//   - [LocalFS] forwards to the os package and is the [Default].
//   - [FaultyFS] wraps another FileSystem and fails matching files on demand.
//
// Example:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailAfterBytes: 1024})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
package fs
