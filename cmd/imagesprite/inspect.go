package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/imagestore"
	"github.com/lewtec/imagesprite/internal/keyscheme"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] [store]",
	Short: "Prints what an image store holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Store.Path
		if len(args) > 0 {
			path = args[0]
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		store, err := imagestore.Open(cmd.Context(), path, imagestore.Options{Logger: logger})
		if err != nil {
			return err
		}
		defer store.Close()
		out := cmd.OutOrStdout()

		count, err := store.Len(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "store\t%s\nimages\t%s\n", store.Path(), humanize.Comma(int64(count)))

		manifest, err := store.Manifest(cmd.Context())
		switch {
		case errors.Is(err, domain.ErrNotFound):
			fmt.Fprintln(out, "manifest\tmissing")
		case err != nil:
			return err
		default:
			fmt.Fprintf(out, "ingested\t%s\n", humanize.Time(manifest.IngestedAt))
			fmt.Fprintln(out, "batch\tfirst_id\tcount")
			for _, batch := range manifest.Batches {
				fmt.Fprintf(out, "%s\t%d\t%d\n", batch.Name, batch.FirstID, batch.Count)
			}
		}

		if listKeys, _ := cmd.Flags().GetBool("keys"); listKeys {
			return store.Keys(cmd.Context(), func(key string) error {
				id, err := keyscheme.Decode(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d\n", key, id)
				return nil
			})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolP("keys", "k", false, "List every key in order")
}
