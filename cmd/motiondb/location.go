package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/hupe1980/motiondb/blobstore"
	minioblob "github.com/hupe1980/motiondb/blobstore/minio"
	s3blob "github.com/hupe1980/motiondb/blobstore/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// location addresses a database in a blob store:
//
//	path/to/hero.mdb                      local file
//	s3://bucket/prefix/hero.mdb           Amazon S3 (?region=, ?endpoint=)
//	minio://host:9000/bucket/hero.mdb     MinIO (?secure=true), credentials from MINIO_ACCESS_KEY and MINIO_SECRET_KEY
type location struct {
	scheme   string
	host     string
	bucket   string
	dir      string
	name     string
	region   string
	endpoint string
	secure   bool
}

func parseLocation(s string) (location, error) {
	if s == "" {
		return location{}, errors.New("empty location")
	}
	if !strings.Contains(s, "://") {
		return location{scheme: "file", dir: filepath.Dir(s), name: filepath.Base(s)}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return location{}, fmt.Errorf("invalid location %q: %w", s, err)
	}
	q := u.Query()
	p := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "file":
		return location{scheme: "file", dir: filepath.Dir(u.Path), name: filepath.Base(u.Path)}, nil
	case "s3":
		if u.Host == "" || p == "" {
			return location{}, fmt.Errorf("invalid location %q: want s3://bucket/name", s)
		}
		dir, name := path.Split(p)
		return location{
			scheme:   "s3",
			bucket:   u.Host,
			dir:      strings.TrimSuffix(dir, "/"),
			name:     name,
			region:   q.Get("region"),
			endpoint: q.Get("endpoint"),
		}, nil
	case "minio":
		bucket, key, ok := strings.Cut(p, "/")
		if u.Host == "" || !ok || key == "" {
			return location{}, fmt.Errorf("invalid location %q: want minio://host/bucket/name", s)
		}
		dir, name := path.Split(key)
		return location{
			scheme: "minio",
			host:   u.Host,
			bucket: bucket,
			dir:    strings.TrimSuffix(dir, "/"),
			name:   name,
			secure: q.Get("secure") == "true",
		}, nil
	default:
		return location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
}

// store connects to the blob store holding the location.
func (l location) store(ctx context.Context) (blobstore.BlobStore, error) {
	switch l.scheme {
	case "file":
		return blobstore.NewLocalStore(l.dir), nil
	case "s3":
		opts := []s3blob.Option{s3blob.WithPrefix(l.dir)}
		if l.region != "" {
			opts = append(opts, s3blob.WithRegion(l.region))
		}
		if l.endpoint != "" {
			opts = append(opts, s3blob.WithEndpoint(l.endpoint))
		}
		return s3blob.New(ctx, l.bucket, opts...)
	case "minio":
		client, err := minio.New(l.host, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: l.secure,
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, l.bucket, l.dir), nil
	default:
		return nil, fmt.Errorf("unsupported location scheme %q", l.scheme)
	}
}
