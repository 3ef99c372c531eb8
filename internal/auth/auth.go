// Package auth guards the HTTP API with statically configured API keys.
package auth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
)

// Identity names the client a key was issued to.
type Identity struct {
	Client string
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator holds digests of the configured keys, never the
// keys themselves.
type StaticAPIKeyValidator struct {
	keys map[[sha256.Size]byte]Identity
}

// NewStaticAPIKeyValidator parses "client:key[,client:key...]".
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[[sha256.Size]byte]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		client, key, ok := strings.Cut(strings.TrimSpace(entry), ":")
		client = strings.TrimSpace(client)
		key = strings.TrimSpace(key)
		if !ok || client == "" || key == "" {
			return nil, fmt.Errorf("invalid static key entry %q: expected client:key", entry)
		}
		digest := sha256.Sum256([]byte(key))
		if existing, dup := validator.keys[digest]; dup {
			return nil, fmt.Errorf("static key for %q duplicates the key for %q", client, existing.Client)
		}
		validator.keys[digest] = Identity{Client: client}
	}
	return validator, nil
}

func (v *StaticAPIKeyValidator) Len() int {
	return len(v.keys)
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[sha256.Sum256([]byte(apiKey))]
	return identity, ok
}
