package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Query         QueryConfig
	Providers     ProvidersConfig
	ObjectStore   ObjectStoreConfig
	History       HistoryConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type QueryConfig struct {
	DefaultEngine     string
	DefaultDataset    string
	DefaultTableAlias string
	SQLiteTableName   string
	RowLimit          int
	Timeout           time.Duration
}

// ProvidersConfig names the environment variables that carry provider
// credentials. The keys themselves are never stored in Config.
type ProvidersConfig struct {
	GeminiKeyEnv  string
	OpenAIKeyEnv  string
	OpenAIBaseURL string
	Timeout       time.Duration
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type HistoryConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("CHATDF_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid CHATDF_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "CHATDF_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "CHATDF_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "CHATDF_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "CHATDF_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "CHATDF_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "CHATDF_DEFAULT_ENGINE", &cfg.Query.DefaultEngine) },
		func() error { return applyString(lookup, "CHATDF_DEFAULT_DATASET", &cfg.Query.DefaultDataset) },
		func() error { return applyString(lookup, "CHATDF_DEFAULT_TABLE_ALIAS", &cfg.Query.DefaultTableAlias) },
		func() error { return applyString(lookup, "CHATDF_SQLITE_TABLE_NAME", &cfg.Query.SQLiteTableName) },
		func() error { return applyInt(lookup, "CHATDF_QUERY_ROW_LIMIT", &cfg.Query.RowLimit) },
		func() error { return applyDuration(lookup, "CHATDF_QUERY_TIMEOUT", &cfg.Query.Timeout) },
		func() error { return applyString(lookup, "CHATDF_GEMINI_KEY_ENV", &cfg.Providers.GeminiKeyEnv) },
		func() error { return applyString(lookup, "CHATDF_OPENAI_KEY_ENV", &cfg.Providers.OpenAIKeyEnv) },
		func() error { return applyString(lookup, "CHATDF_OPENAI_BASE_URL", &cfg.Providers.OpenAIBaseURL) },
		func() error { return applyDuration(lookup, "CHATDF_AI_TIMEOUT", &cfg.Providers.Timeout) },
		func() error { return applyString(lookup, "CHATDF_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "CHATDF_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "CHATDF_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "CHATDF_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "CHATDF_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "CHATDF_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "CHATDF_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyString(lookup, "CHATDF_HISTORY_DSN", &cfg.History.DSN) },
		func() error { return applyInt(lookup, "CHATDF_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns) },
		func() error { return applyInt(lookup, "CHATDF_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "CHATDF_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime)
		},
		func() error { return applyBool(lookup, "CHATDF_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "CHATDF_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "CHATDF_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "CHATDF_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Query.DefaultEngine {
	case "sqlite", "duckdb":
	default:
		return Config{}, fmt.Errorf("invalid CHATDF_DEFAULT_ENGINE: %q", cfg.Query.DefaultEngine)
	}
	if cfg.Query.RowLimit < 0 {
		return Config{}, fmt.Errorf("invalid CHATDF_QUERY_ROW_LIMIT: must be >= 0")
	}
	if cfg.Providers.GeminiKeyEnv == "" || cfg.Providers.OpenAIKeyEnv == "" {
		return Config{}, fmt.Errorf("provider key variable names are required")
	}
	return cfg, nil
}

// ObjectStoreEnabled reports whether s3:// dataset locations can be served.
func (c Config) ObjectStoreEnabled() bool {
	return c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket != ""
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "chatdf"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Query: QueryConfig{
			DefaultEngine:     "duckdb",
			DefaultDataset:    "",
			DefaultTableAlias: "df",
			SQLiteTableName:   "NYCTLC",
			RowLimit:          0,
			Timeout:           30 * time.Second,
		},
		Providers: ProvidersConfig{
			GeminiKeyEnv:  "API_KEY",
			OpenAIKeyEnv:  "OpenAI",
			OpenAIBaseURL: "https://api.openai.com/v1",
			Timeout:       15 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
			UseSSL: false,
		},
		History: HistoryConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.Query.RowLimit = 10000
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
