package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/spf13/cobra"

	"github.com/lewtec/imagesprite/internal/ingest"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [flags] [batch files...]",
	Short: "Loads the training batches into the image store",
	Long: `Reads the batch files in order from the batch directory, assigns image
ids sequentially starting at zero and writes them to the image store.
Nothing is done when the store already holds images. Batch files ending in
.gz, .zst or .lz4 are decompressed while reading.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Path, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("max-size") {
			raw, _ := cmd.Flags().GetString("max-size")
			size, err := humanize.ParseBytes(raw)
			if err != nil {
				return fmt.Errorf("while parsing --max-size: %w", err)
			}
			cfg.Store.MaxSize = int64(size)
		}
		if cmd.Flags().Changed("dir") {
			cfg.Ingest.Dir, _ = cmd.Flags().GetString("dir")
		}
		if cmd.Flags().Changed("format") {
			cfg.Ingest.Format, _ = cmd.Flags().GetString("format")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Ingest.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if len(args) > 0 {
			cfg.Ingest.Batches = args
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		format, err := ingest.ParseFormat(cfg.Ingest.Format)
		if err != nil {
			return err
		}

		result, err := ingest.Run(cmd.Context(), ingest.Config{
			Path:    cfg.Store.Path,
			MaxSize: cfg.Store.MaxSize,
			Sources: ingest.FileSources(osfs.New(cfg.Ingest.Dir), cfg.Ingest.Batches),
			Format:  format,
			Workers: cfg.Ingest.Workers,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", cfg.Ingest.Dir, err)
		}
		if result.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already populated, nothing to do\n", cfg.Store.Path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d images from %d batches into %s in %s\n",
			result.Manifest.Total, len(result.Manifest.Batches), cfg.Store.Path, result.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("store", "s", "", "Image store path")
	ingestCmd.Flags().String("max-size", "", "Store capacity, for example 300MB")
	ingestCmd.Flags().StringP("dir", "d", "", "Directory holding the batch files")
	ingestCmd.Flags().StringP("format", "f", "", "Batch format (cifar, raw)")
	ingestCmd.Flags().IntP("workers", "w", 0, "Concurrent batch transposition workers")
}
