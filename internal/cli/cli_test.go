package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chatdf/chatdf/internal/query/querytest"
)

func TestRejectsUnknownOutputFormat(t *testing.T) {
	_, stderr, code := run(t, nil, "history", "-o", "xml")
	if code != 1 || !strings.Contains(stderr, "unsupported output format") {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
}

func TestQuerySQLiteJSON(t *testing.T) {
	path := querytest.WriteParquet(t, "trips.parquet", querytest.Trips())

	stdout, stderr, code := run(t, nil, "query", "-o", "json", "--engine", "sqlite", "--dataset", path, "--sql", "SELECT AVG(fare) AS avg_fare FROM NYCTLC")
	if code != 0 {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	var body struct {
		Engine  string   `json:"engine"`
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	if err := json.Unmarshal([]byte(stdout), &body); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	if body.Engine != "sqlite" || len(body.Rows) != 1 || body.Rows[0][0] != 20.0 {
		t.Fatalf("output = %#v", body)
	}
}

func TestQueryDuckDBTable(t *testing.T) {
	path := querytest.WriteParquet(t, "trips.parquet", querytest.Trips())

	stdout, stderr, code := run(t, nil, "query", "--engine", "duckdb", "--dataset", path, "--alias", "trips", "--sql", "SELECT COUNT(*) AS n FROM trips")
	if code != 0 {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 2 || strings.TrimSpace(lines[0]) != "N" || strings.TrimSpace(lines[1]) != "3" {
		t.Fatalf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "1 row(s) via duckdb") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestQueryReportsUnreadableDataset(t *testing.T) {
	path := querytest.WriteFile(t, "broken.parquet", []byte("not parquet"))

	_, stderr, code := run(t, nil, "query", "--engine", "sqlite", "--dataset", path, "--sql", "SELECT 1")
	if code != 1 || !strings.Contains(stderr, "Error:") {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
}

func TestQueryRequiresSQL(t *testing.T) {
	_, stderr, code := run(t, nil, "query", "--engine", "sqlite")
	if code != 1 || !strings.Contains(stderr, "sql") {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
}

func TestModelsOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"gpt-4o","object":"model","owned_by":"openai"},
			{"id":"whisper-1","object":"model","owned_by":"openai"}
		]}`))
	}))
	t.Cleanup(server.Close)

	env := map[string]string{
		"CHATDF_OPENAI_BASE_URL": server.URL + "/v1",
		"OpenAI":                 "sk-test",
	}
	stdout, stderr, code := run(t, env, "models", "--provider", "openai", "-o", "json")
	if code != 0 {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	var body struct {
		Providers []struct {
			Provider string `json:"provider"`
			Models   []struct {
				Name string `json:"name"`
			} `json:"models"`
			Error string `json:"error"`
		} `json:"providers"`
	}
	if err := json.Unmarshal([]byte(stdout), &body); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	if len(body.Providers) != 1 || len(body.Providers[0].Models) != 1 || body.Providers[0].Models[0].Name != "gpt-4o" {
		t.Fatalf("output = %#v", body)
	}
}

func TestModelsMissingKeyFails(t *testing.T) {
	stdout, stderr, code := run(t, nil, "models", "--provider", "gemini")
	if code != 1 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stderr, "please check your API key") {
		t.Fatalf("stderr = %q", stderr)
	}
	if !strings.Contains(stdout, "PROVIDER") || !strings.Contains(stdout, "gemini") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestModelsUnknownProvider(t *testing.T) {
	_, stderr, code := run(t, nil, "models", "--provider", "anthropic")
	if code != 1 || !strings.Contains(stderr, "unknown provider") {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
}

func TestHistoryDisabledWithoutDSN(t *testing.T) {
	_, stderr, code := run(t, nil, "history")
	if code != 1 || !strings.Contains(stderr, "query history is not configured") {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
}

func TestDatasetUploadRequiresObjectStore(t *testing.T) {
	path := querytest.WriteParquet(t, "trips.parquet", querytest.Trips())
	_, stderr, code := run(t, nil, "dataset", "upload", path, "trips.parquet")
	if code != 1 || !strings.Contains(stderr, "object store is not configured") {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
}

func TestEnvFileSuppliesConfig(t *testing.T) {
	path := querytest.WriteParquet(t, "trips.parquet", querytest.Trips())
	envFile := querytest.WriteFile(t, "test.env", []byte("CHATDF_DEFAULT_ENGINE=sqlite\nCHATDF_DEFAULT_DATASET="+path+"\n"))

	stdout, stderr, code := runWithEnvFile(t, nil, envFile, "query", "--sql", "SELECT COUNT(*) AS n FROM NYCTLC")
	if code != 0 {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "3") || !strings.Contains(stderr, "via sqlite") {
		t.Fatalf("stdout = %q stderr = %q", stdout, stderr)
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	if err := printTable(&buf, []string{"a", "bb"}, [][]string{{"1", "2"}}); err != nil {
		t.Fatalf("printTable() error = %v", err)
	}
	if buf.String() != "A  BB\n1  2\n" {
		t.Fatalf("table = %q", buf.String())
	}

	buf.Reset()
	if err := printTable(&buf, nil, [][]string{{"x"}}); err != nil || buf.Len() != 0 {
		t.Fatalf("printTable(no columns) = %q, %v", buf.String(), err)
	}
}

func TestFormatCell(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"x", "x"},
		{[]byte("y"), "y"},
		{int64(7), "7"},
		{true, "true"},
	} {
		if got := formatCell(tc.in); got != tc.want {
			t.Fatalf("formatCell(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestServeShutsDownWhenContextEnds(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, slog.New(slog.NewTextHandler(io.Discard, nil))) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after cancel")
	}
}

func run(t *testing.T, env map[string]string, args ...string) (string, string, int) {
	t.Helper()
	return runWithEnvFile(t, env, filepath.Join(t.TempDir(), "missing.env"), args...)
}

func runWithEnvFile(t *testing.T, env map[string]string, envFile string, args ...string) (string, string, int) {
	t.Helper()
	values := map[string]string{"CHATDF_PROFILE": "test"}
	for key, value := range env {
		values[key] = value
	}
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), append([]string{"--env-file", envFile}, args...), Options{
		Stdout: &stdout,
		Stderr: &stderr,
		Lookup: func(key string) (string, bool) {
			value, ok := values[key]
			return value, ok
		},
	})
	return stdout.String(), stderr.String(), code
}
