package main

import (
	"context"
	"testing"

	"github.com/hupe1980/motiondb/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want location
	}{
		{"hero.mdb", location{scheme: "file", dir: ".", name: "hero.mdb"}},
		{"/data/dbs/hero.mdb", location{scheme: "file", dir: "/data/dbs", name: "hero.mdb"}},
		{"file:///data/hero.mdb", location{scheme: "file", dir: "/data", name: "hero.mdb"}},
		{"s3://assets/hero.mdb", location{scheme: "s3", bucket: "assets", name: "hero.mdb"}},
		{
			"s3://assets/characters/hero.mdb?region=eu-west-1&endpoint=http://localhost:4566",
			location{scheme: "s3", bucket: "assets", dir: "characters", name: "hero.mdb", region: "eu-west-1", endpoint: "http://localhost:4566"},
		},
		{
			"minio://localhost:9000/assets/characters/v2/hero.mdb?secure=true",
			location{scheme: "minio", host: "localhost:9000", bucket: "assets", dir: "characters/v2", name: "hero.mdb", secure: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLocation(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocation_Errors(t *testing.T) {
	for _, in := range []string{
		"",
		"s3://assets",
		"s3:///hero.mdb",
		"minio://localhost:9000/assets",
		"gs://bucket/hero.mdb",
	} {
		_, err := parseLocation(in)
		assert.Error(t, err, in)
	}
}

func TestLocation_LocalStore(t *testing.T) {
	l, err := parseLocation(t.TempDir() + "/hero.mdb")
	require.NoError(t, err)

	store, err := l.store(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)
}
