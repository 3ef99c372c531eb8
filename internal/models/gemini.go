package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/chatdf/chatdf/internal/credentials"
	"github.com/chatdf/chatdf/internal/observability"
)

const generateContentMethod = "generateContent"

type modelIterator interface {
	Next() (*genai.ModelInfo, error)
}

// geminiLister opens a listing with apiKey; done releases the client.
type geminiLister func(ctx context.Context, apiKey string) (it modelIterator, done func(), err error)

type GeminiCatalog struct {
	keys    KeySource
	logger  *slog.Logger
	timeout time.Duration
	list    geminiLister
}

func NewGeminiCatalog(keys KeySource, logger *slog.Logger, timeout time.Duration) *GeminiCatalog {
	return &GeminiCatalog{keys: keys, logger: logger, timeout: timeout, list: listGeminiModels}
}

func (c *GeminiCatalog) Provider() credentials.ProviderName {
	return credentials.ProviderGemini
}

// ListGenerationModels returns the models that support generateContent.
func (c *GeminiCatalog) ListGenerationModels(ctx context.Context) ([]Model, error) {
	apiKey := strings.TrimSpace(c.keys.Key(credentials.ProviderGemini))
	if apiKey == "" {
		return nil, invalidCredential(ctx, c.logger, credentials.ProviderGemini, errMissingKey)
	}

	listCtx, cancel := listContext(ctx, c.timeout)
	defer cancel()

	it, done, err := c.list(listCtx, apiKey)
	if err != nil {
		return nil, invalidCredential(ctx, c.logger, credentials.ProviderGemini, fmt.Errorf("create gemini client: %w", err))
	}
	defer done()

	found := make([]Model, 0)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, invalidCredential(ctx, c.logger, credentials.ProviderGemini, fmt.Errorf("list gemini models: %w", err))
		}
		if !slices.Contains(info.SupportedGenerationMethods, generateContentMethod) {
			continue
		}
		found = append(found, Model{
			Provider:                   credentials.ProviderGemini,
			Name:                       info.Name,
			DisplayName:                info.DisplayName,
			Description:                info.Description,
			InputTokenLimit:            info.InputTokenLimit,
			OutputTokenLimit:           info.OutputTokenLimit,
			SupportedGenerationMethods: slices.Clone(info.SupportedGenerationMethods),
		})
	}
	sortModels(found)
	observability.ObserveModelListing(string(credentials.ProviderGemini), nil)
	return found, nil
}

func listGeminiModels(ctx context.Context, apiKey string) (modelIterator, func(), error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, err
	}
	return client.ListModels(ctx), func() { _ = client.Close() }, nil
}
