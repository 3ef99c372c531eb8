// Package querytest builds Parquet fixtures for engine tests.
package querytest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

type Trip struct {
	ID   int64   `parquet:"id"`
	Fare float64 `parquet:"fare"`
}

type Ride struct {
	ID      int64   `parquet:"id"`
	Borough string  `parquet:"borough"`
	Fare    float64 `parquet:"fare"`
	Tipped  bool    `parquet:"tipped"`
	Tip     *int32  `parquet:"tip,optional"`
}

// Trips are the three rows used throughout the engine tests.
func Trips() []Trip {
	return []Trip{{ID: 1, Fare: 10.0}, {ID: 2, Fare: 20.0}, {ID: 3, Fare: 30.0}}
}

func Rides() []Ride {
	tip := func(v int32) *int32 { return &v }
	return []Ride{
		{ID: 1, Borough: "Manhattan", Fare: 12.5, Tipped: true, Tip: tip(3)},
		{ID: 2, Borough: "Queens", Fare: 30.0, Tipped: false},
		{ID: 3, Borough: "Manhattan", Fare: 7.25, Tipped: true, Tip: tip(1)},
		{ID: 4, Borough: "Brooklyn", Fare: 18.0, Tipped: true, Tip: tip(4)},
		{ID: 5, Borough: "Queens", Fare: 44.75, Tipped: false},
	}
}

// WriteParquet writes rows to name inside a per-test temp dir and returns
// the file path.
func WriteParquet[T any](t testing.TB, name string, rows []T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create parquet fixture: %v", err)
	}
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write parquet rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close parquet file: %v", err)
	}
	return path
}

// WriteFile writes raw bytes, for malformed-dataset cases.
func WriteFile(t testing.TB, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
