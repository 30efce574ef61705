// Package resource accounts for the resources of a database build.
//
//   - Workers: the parallelism of fragment sampling and k-means batches
//   - Memory: transient buffers (raw fragments, training samples), fail-fast
//   - IO: throttling of blob uploads
//
// Every stage reserves its transient buffers and releases them on every exit
// path, so a cancelled build leaves the usage at zero:
//
//	res, err := rc.Reserve(int64(n) * 24)
//	if err != nil {
//	    return err
//	}
//	defer res.Release()
//
// All methods are safe for concurrent use and treat a nil *Controller as
// unlimited.
package resource
