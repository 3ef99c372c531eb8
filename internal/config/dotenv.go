package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LayeredLookup resolves keys from base first and falls back to values
// parsed from a dotenv file. A missing file is not an error; the result is
// then just base.
func LayeredLookup(base LookupFunc, envFile string) (LookupFunc, error) {
	if base == nil {
		return nil, fmt.Errorf("lookup function is required")
	}
	if envFile == "" {
		return base, nil
	}
	values, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return nil, fmt.Errorf("read env file %q: %w", envFile, err)
	}
	return func(key string) (string, bool) {
		if value, ok := base(key); ok {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}, nil
}
