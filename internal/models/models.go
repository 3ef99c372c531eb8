// Package models enumerates the text-generation models an LLM provider
// exposes to the configured API key.
package models

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatdf/chatdf/internal/credentials"
	"github.com/chatdf/chatdf/internal/observability"
)

// ErrInvalidCredential is the only error a catalog returns. Provider
// failures (bad key, network, timeout) are logged and collapsed into it.
var ErrInvalidCredential = errors.New("please check your API key")

const defaultListTimeout = 15 * time.Second

type Model struct {
	Provider                   credentials.ProviderName `json:"provider"`
	Name                       string                   `json:"name"`
	DisplayName                string                   `json:"display_name,omitempty"`
	Description                string                   `json:"description,omitempty"`
	InputTokenLimit            int32                    `json:"input_token_limit,omitempty"`
	OutputTokenLimit           int32                    `json:"output_token_limit,omitempty"`
	SupportedGenerationMethods []string                 `json:"supported_generation_methods,omitempty"`
}

type Catalog interface {
	Provider() credentials.ProviderName
	ListGenerationModels(ctx context.Context) ([]Model, error)
}

// KeySource yields the API key for a provider; "" means not configured.
type KeySource interface {
	Key(name credentials.ProviderName) string
}

// Listing is one catalog's outcome inside ListAll.
type Listing struct {
	Provider credentials.ProviderName `json:"provider"`
	Models   []Model                  `json:"models"`
	Err      error                    `json:"-"`
}

// ListAll enumerates every catalog concurrently. A failing catalog does not
// cancel the others; its error is reported on its Listing. The returned
// error is non-nil only when ctx ends first.
func ListAll(ctx context.Context, catalogs []Catalog) ([]Listing, error) {
	listings := make([]Listing, len(catalogs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, catalog := range catalogs {
		group.Go(func() error {
			found, err := catalog.ListGenerationModels(groupCtx)
			listings[i] = Listing{Provider: catalog.Provider(), Models: found, Err: err}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

// invalidCredential logs the provider's error at debug level and returns
// the flattened error kind.
func invalidCredential(ctx context.Context, logger *slog.Logger, provider credentials.ProviderName, cause error) error {
	observability.ObserveModelListing(string(provider), cause)
	observability.LoggerWithTrace(ctx, logger).Debug(
		"model enumeration failed",
		slog.String("provider", string(provider)),
		slog.String("cause", cause.Error()),
	)
	return ErrInvalidCredential
}

func sortModels(found []Model) {
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
}

func listContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultListTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

var errMissingKey = errors.New("api key is not set")
