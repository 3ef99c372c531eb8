package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatdf/chatdf/internal/dataset"
	"github.com/chatdf/chatdf/internal/storage"
)

func newDatasetCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage datasets in the object store",
	}
	cmd.AddCommand(newDatasetUploadCmd(app))
	return cmd
}

func newDatasetUploadCmd(app *app) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "upload <file> <key>",
		Short: "Upload a local Parquet file so queries can reference it as s3://bucket/key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.objectStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			if store == nil {
				return dataset.ErrObjectStoreDisabled
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()
			stat, err := file.Stat()
			if err != nil {
				return err
			}
			if stat.IsDir() {
				return fmt.Errorf("%s is a directory", args[0])
			}

			info, err := store.Put(cmd.Context(), args[1], file, stat.Size(), storage.PutOptions{ContentType: contentType})
			if err != nil {
				return err
			}
			location := storage.Location{Bucket: store.Bucket(), Key: args[1]}
			if app.output == "json" {
				return printJSON(app.stdout, map[string]any{
					"location": location.String(),
					"size":     info.Size,
					"etag":     info.ETag,
				})
			}
			_, err = fmt.Fprintln(app.stdout, location.String())
			return err
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type stored with the object")
	return cmd
}
