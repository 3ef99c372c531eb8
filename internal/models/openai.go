package models

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chatdf/chatdf/internal/credentials"
	"github.com/chatdf/chatdf/internal/observability"
)

// The models endpoint carries no capability list, so ids with these
// prefixes are treated as non-generative.
var nonGenerativePrefixes = []string{
	"text-embedding",
	"embedding",
	"text-moderation",
	"omni-moderation",
	"tts",
	"whisper",
	"dall-e",
	"gpt-image",
}

type OpenAICatalog struct {
	keys    KeySource
	logger  *slog.Logger
	baseURL string
	timeout time.Duration
}

func NewOpenAICatalog(keys KeySource, baseURL string, logger *slog.Logger, timeout time.Duration) *OpenAICatalog {
	return &OpenAICatalog{
		keys:    keys,
		logger:  logger,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: timeout,
	}
}

func (c *OpenAICatalog) Provider() credentials.ProviderName {
	return credentials.ProviderOpenAI
}

func (c *OpenAICatalog) ListGenerationModels(ctx context.Context) ([]Model, error) {
	apiKey := strings.TrimSpace(c.keys.Key(credentials.ProviderOpenAI))
	if apiKey == "" {
		return nil, invalidCredential(ctx, c.logger, credentials.ProviderOpenAI, errMissingKey)
	}

	listCtx, cancel := listContext(ctx, c.timeout)
	defer cancel()

	clientConfig := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		clientConfig.BaseURL = c.baseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	list, err := client.ListModels(listCtx)
	if err != nil {
		return nil, invalidCredential(ctx, c.logger, credentials.ProviderOpenAI, fmt.Errorf("list openai models: %w", err))
	}

	found := make([]Model, 0, len(list.Models))
	for _, model := range list.Models {
		if !generativeModelID(model.ID) {
			continue
		}
		found = append(found, Model{
			Provider:    credentials.ProviderOpenAI,
			Name:        model.ID,
			DisplayName: model.ID,
			Description: ownerDescription(model.OwnedBy),
		})
	}
	sortModels(found)
	observability.ObserveModelListing(string(credentials.ProviderOpenAI), nil)
	return found, nil
}

func generativeModelID(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return false
	}
	for _, prefix := range nonGenerativePrefixes {
		if strings.HasPrefix(id, prefix) {
			return false
		}
	}
	return true
}

func ownerDescription(owner string) string {
	if owner == "" {
		return ""
	}
	return "owned by " + owner
}
