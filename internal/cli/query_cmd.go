package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatdf/chatdf/internal/executor"
)

func newQueryCmd(app *app) *cobra.Command {
	var request executor.Request
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run SQL against a Parquet dataset with the sqlite or duckdb engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _, closeHistory, err := app.executor(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()

			response, err := service.Execute(cmd.Context(), request)
			if err != nil {
				return err
			}
			result := response.Result
			if app.output == "json" {
				return printJSON(app.stdout, map[string]any{
					"query_id":     response.ID,
					"engine":       result.Engine,
					"dataset":      response.Dataset,
					"columns":      result.Columns,
					"column_types": result.ColumnTypes,
					"rows":         result.Rows,
					"duration_ms":  result.Duration.Milliseconds(),
				})
			}

			rows := make([][]string, 0, len(result.Rows))
			for _, row := range result.Rows {
				cells := make([]string, len(row))
				for i, value := range row {
					cells[i] = formatCell(value)
				}
				rows = append(rows, cells)
			}
			if err := printTable(app.stdout, result.Columns, rows); err != nil {
				return err
			}
			_, err = fmt.Fprintf(app.stderr, "%d row(s) via %s in %s\n", result.RowCount(), result.Engine, result.Duration.Round(time.Microsecond))
			return err
		},
	}
	cmd.Flags().StringVar(&request.Engine, "engine", "", "Query engine (sqlite, duckdb); defaults to CHATDF_DEFAULT_ENGINE")
	cmd.Flags().StringVar(&request.Dataset, "dataset", "", "Parquet file path or s3://bucket/key; defaults to CHATDF_DEFAULT_DATASET")
	cmd.Flags().StringVar(&request.SQL, "sql", "", "SQL statement to run")
	cmd.Flags().StringVar(&request.TableAlias, "alias", "", "Table name the dataset is exposed as (duckdb only)")
	cmd.Flags().IntVar(&request.RowLimit, "row-limit", 0, "Maximum rows returned; 0 uses the configured default, negative disables the limit")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}
