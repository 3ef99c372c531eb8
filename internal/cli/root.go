// Package cli implements the chatdf command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatdf/chatdf/internal/config"
)

const serviceName = "chatdf"

type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// Lookup defaults to os.LookupEnv.
	Lookup config.LookupFunc
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	root := NewRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func NewRootCmd(opts Options) *cobra.Command {
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	app := &app{stdout: opts.Stdout, stderr: opts.Stderr}
	var envFile string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Query Parquet datasets with SQL and inspect LLM provider models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(app.output); err != nil {
				return err
			}
			lookup, err := config.LayeredLookup(opts.Lookup, envFile)
			if err != nil {
				return err
			}
			cfg, err := config.Load(serviceName, lookup)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return app.init(cfg, lookup)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file consulted after the process environment")
	root.PersistentFlags().StringVarP(&app.output, "output", "o", "table", "Output format (table, json)")

	root.AddCommand(
		newModelsCmd(app),
		newQueryCmd(app),
		newHistoryCmd(app),
		newDatasetCmd(app),
		newServeCmd(app),
	)
	return root
}

func validateOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}
