package cli

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatdf/chatdf/internal/executor"
	"github.com/chatdf/chatdf/internal/history"
)

func newHistoryCmd(app *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("--limit must be a positive integer")
			}
			repo, closeHistory, err := app.historyRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()
			if repo == nil {
				return executor.ErrHistoryDisabled
			}

			entries, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if app.output == "json" {
				return printJSON(app.stdout, map[string]any{"entries": entries})
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, historyRow(entry))
			}
			return printTable(app.stdout, []string{"created_at", "engine", "status", "rows", "duration_ms", "dataset", "sql"}, rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "Number of entries to show")
	return cmd
}

func historyRow(entry history.Entry) []string {
	status := entry.Status
	if entry.Error != "" {
		status += ": " + entry.Error
	}
	return []string{
		entry.CreatedAt.UTC().Format(time.RFC3339),
		entry.Engine,
		status,
		strconv.Itoa(entry.RowCount),
		strconv.FormatInt(entry.DurationMS, 10),
		entry.Dataset,
		entry.SQL,
	}
}
