package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chatdf/chatdf/internal/credentials"
	"github.com/chatdf/chatdf/internal/models"
)

type providerListing struct {
	Provider credentials.ProviderName `json:"provider"`
	Models   []models.Model           `json:"models"`
	Error    string                   `json:"error,omitempty"`
}

// handleModels lists generation models for ?provider=gemini|openai|all.
// A single provider's failure is an error response; with "all" each
// provider reports its own outcome.
func handleModels(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if len(deps.Catalogs) == 0 {
		writeError(r.Context(), w, http.StatusNotImplemented, "MODELS_NOT_CONFIGURED", "model catalogs are not configured", false, nil)
		return
	}

	selected := deps.Catalogs
	provider := strings.TrimSpace(r.URL.Query().Get("provider"))
	if provider != "" && !strings.EqualFold(provider, "all") {
		name, err := credentials.ParseProviderName(provider)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error(), false, nil)
			return
		}
		selected = nil
		for _, catalog := range deps.Catalogs {
			if catalog.Provider() == name {
				selected = append(selected, catalog)
			}
		}
		if len(selected) == 0 {
			writeError(r.Context(), w, http.StatusNotImplemented, "PROVIDER_NOT_CONFIGURED", "provider is not configured", false, map[string]any{"provider": name})
			return
		}
	}

	listings, err := models.ListAll(r.Context(), selected)
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "MODELS_UNAVAILABLE", "model listing was interrupted", true, map[string]any{"details": err.Error()})
		return
	}

	if len(selected) == 1 && listings[0].Err != nil {
		writeModelError(w, r, listings[0])
		return
	}

	payload := make([]providerListing, 0, len(listings))
	for _, listing := range listings {
		entry := providerListing{Provider: listing.Provider, Models: listing.Models}
		if entry.Models == nil {
			entry.Models = []models.Model{}
		}
		if listing.Err != nil {
			entry.Error = listing.Err.Error()
		}
		payload = append(payload, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": payload})
}

func writeModelError(w http.ResponseWriter, r *http.Request, listing models.Listing) {
	extra := map[string]any{"provider": listing.Provider}
	if errors.Is(listing.Err, models.ErrInvalidCredential) {
		writeError(r.Context(), w, http.StatusBadGateway, "INVALID_CREDENTIAL", listing.Err.Error(), false, extra)
		return
	}
	writeError(r.Context(), w, http.StatusBadGateway, "PROVIDER_ERROR", listing.Err.Error(), true, extra)
}
