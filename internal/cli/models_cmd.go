package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatdf/chatdf/internal/credentials"
	"github.com/chatdf/chatdf/internal/models"
)

func newModelsCmd(app *app) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the generation models each provider exposes to the configured key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalogs, err := selectCatalogs(app.catalogs(), provider)
			if err != nil {
				return err
			}
			listings, err := models.ListAll(cmd.Context(), catalogs)
			if err != nil {
				return err
			}
			if err := writeListings(app, listings); err != nil {
				return err
			}
			if len(listings) == 1 && listings[0].Err != nil {
				return fmt.Errorf("%s: %w", listings[0].Provider, listings[0].Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "all", "Provider to list (gemini, openai, all)")
	return cmd
}

func selectCatalogs(catalogs []models.Catalog, provider string) ([]models.Catalog, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" || strings.EqualFold(provider, "all") {
		return catalogs, nil
	}
	name, err := credentials.ParseProviderName(provider)
	if err != nil {
		return nil, err
	}
	for _, catalog := range catalogs {
		if catalog.Provider() == name {
			return []models.Catalog{catalog}, nil
		}
	}
	return nil, fmt.Errorf("provider %q is not configured", name)
}

type listingOutput struct {
	Provider credentials.ProviderName `json:"provider"`
	Models   []models.Model           `json:"models"`
	Error    string                   `json:"error,omitempty"`
}

func writeListings(app *app, listings []models.Listing) error {
	if app.output == "json" {
		payload := make([]listingOutput, 0, len(listings))
		for _, listing := range listings {
			entry := listingOutput{Provider: listing.Provider, Models: listing.Models}
			if entry.Models == nil {
				entry.Models = []models.Model{}
			}
			if listing.Err != nil {
				entry.Error = listing.Err.Error()
			}
			payload = append(payload, entry)
		}
		return printJSON(app.stdout, map[string]any{"providers": payload})
	}

	var rows [][]string
	for _, listing := range listings {
		if listing.Err != nil {
			rows = append(rows, []string{string(listing.Provider), "-", "", "", listing.Err.Error()})
			continue
		}
		for _, model := range listing.Models {
			rows = append(rows, []string{
				string(model.Provider),
				model.Name,
				strconv.Itoa(int(model.InputTokenLimit)),
				strconv.Itoa(int(model.OutputTokenLimit)),
				model.DisplayName,
			})
		}
	}
	return printTable(app.stdout, []string{"provider", "model", "input_tokens", "output_tokens", "display_name"}, rows)
}
