// Package storage defines the object store that holds remote datasets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const Scheme = "s3://"

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// Location is a parsed s3://bucket/key dataset reference.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return Scheme + l.Bucket + "/" + l.Key
}

// IsRemote reports whether raw names an object store location.
func IsRemote(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), Scheme)
}

func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, Scheme) {
		return Location{}, fmt.Errorf("location %q must start with %s", raw, Scheme)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(raw, Scheme), "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return Location{}, fmt.Errorf("location %q must be %sbucket/key", raw, Scheme)
	}
	return Location{Bucket: bucket, Key: key}, nil
}
