//go:build integration

package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chatdf/chatdf/internal/storage"
)

func TestStoreUploadAndDownloadAgainstMinIO(t *testing.T) {
	endpoint := envOr("CHATDF_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("CHATDF_TEST_S3_ENDPOINT is not set")
	}

	cfg := Config{
		Endpoint:         endpoint,
		Region:           envOr("CHATDF_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("CHATDF_TEST_S3_BUCKET", "chatdf-it"),
		AccessKeyID:      envOr("CHATDF_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("CHATDF_TEST_S3_SECRET_KEY", "miniostorage"),
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := "nyc/roundtrip.parquet"
	payload := []byte("PAR1-chatdf-integration")
	if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	stat, err := store.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Size != int64(len(payload)) {
		t.Fatalf("Stat().Size = %d, want %d", stat.Size, len(payload))
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	downloaded, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	if !bytes.Equal(downloaded, payload) {
		t.Fatalf("Get() payload = %q, want %q", downloaded, payload)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
