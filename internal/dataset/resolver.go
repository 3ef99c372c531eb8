// Package dataset turns a dataset location into a readable local file.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chatdf/chatdf/internal/observability"
	"github.com/chatdf/chatdf/internal/query"
	"github.com/chatdf/chatdf/internal/storage"
)

var ErrObjectStoreDisabled = errors.New("object store is not configured")

// Local is a dataset file on disk. Cleanup removes anything Resolve
// created and is safe to call more than once.
type Local struct {
	Path     string
	Location string
	Remote   bool
	Cleanup  func()
}

type Resolver struct {
	store   storage.ObjectStore
	tempDir string
	logger  *slog.Logger
}

// NewResolver builds a resolver; store may be nil, in which case only
// local paths resolve.
func NewResolver(store storage.ObjectStore, tempDir string, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, tempDir: tempDir, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, location string) (Local, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Local{}, fmt.Errorf("dataset location is required")
	}
	if storage.IsRemote(location) {
		return r.download(ctx, location)
	}

	info, err := os.Stat(location)
	if err != nil {
		return Local{}, query.DatasetError(location, err)
	}
	if info.IsDir() {
		return Local{}, query.DatasetError(location, fmt.Errorf("is a directory"))
	}
	return Local{Path: location, Location: location, Cleanup: func() {}}, nil
}

// download fetches the object into a private temp directory. Every call
// downloads afresh.
func (r *Resolver) download(ctx context.Context, raw string) (Local, error) {
	if r.store == nil {
		return Local{}, query.DatasetError(raw, ErrObjectStoreDisabled)
	}
	location, err := storage.ParseLocation(raw)
	if err != nil {
		return Local{}, query.DatasetError(raw, err)
	}
	if location.Bucket != r.store.Bucket() {
		return Local{}, query.DatasetError(raw, fmt.Errorf("bucket %q is not the configured bucket %q", location.Bucket, r.store.Bucket()))
	}

	body, err := r.store.Get(ctx, location.Key)
	if err != nil {
		return Local{}, query.DatasetError(raw, err)
	}
	defer func() { _ = body.Close() }()

	dir, err := os.MkdirTemp(r.tempDir, "chatdf-dataset-")
	if err != nil {
		return Local{}, query.DatasetError(raw, fmt.Errorf("create download dir: %w", err))
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil && r.logger != nil {
			r.logger.Warn("dataset cleanup failed", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}

	target := filepath.Join(dir, path.Base(location.Key))
	written, err := writeFile(target, body)
	if err != nil {
		cleanup()
		return Local{}, query.DatasetError(raw, err)
	}
	observability.LoggerWithTrace(ctx, r.logger).Debug(
		"dataset downloaded",
		slog.String("location", raw),
		slog.Int64("bytes", written),
	)
	return Local{Path: target, Location: raw, Remote: true, Cleanup: cleanup}, nil
}

func writeFile(target string, body io.Reader) (int64, error) {
	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}
	written, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr != nil {
		return written, fmt.Errorf("download: %w", copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("close %s: %w", target, closeErr)
	}
	return written, nil
}
