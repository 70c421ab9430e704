package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/repository"
)

// readLogCSV parses run_id,epoch_id,img_id,ground_truth,predicted rows. A
// leading header row is skipped.
func readLogCSV(r io.Reader) ([]domain.LogEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true
	var entries []domain.LogEntry
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("while reading log csv: %w", err)
		}
		var values [5]int
		for i, field := range record {
			values[i], err = strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				break
			}
		}
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("while parsing log csv line %d: %w", line, err)
		}
		entries = append(entries, domain.LogEntry{
			RunID:       values[0],
			EpochID:     values[1],
			ImageID:     values[2],
			GroundTruth: values[3],
			Predicted:   values[4],
		})
	}
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [flags] database",
	Short: "Queries the classification log database",
	Long: `Prints the image ids of one confusion matrix cell, or the accuracy of an
epoch with --ratio. With --load the rows of a CSV file are appended to the
database first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Metadata.Path
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return cmd.Help()
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		db, err := repository.OpenDatabase(cmd.Context(), path, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := repository.NewMetadataRepository(db)
		out := cmd.OutOrStdout()

		if load, _ := cmd.Flags().GetString("load"); load != "" {
			f, err := os.Open(load)
			if err != nil {
				return err
			}
			entries, err := readLogCSV(f)
			f.Close()
			if err != nil {
				return err
			}
			if err := repo.Insert(cmd.Context(), entries); err != nil {
				return err
			}
			logger.Info("query: loaded log entries", "file", load, "count", len(entries))
		}

		run, _ := cmd.Flags().GetInt("run")
		epoch, _ := cmd.Flags().GetInt("epoch")
		if showRatio, _ := cmd.Flags().GetBool("ratio"); showRatio {
			ratio, err := repo.AccuracyRatio(cmd.Context(), run, epoch)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "correct\ttotal\tratio")
			fmt.Fprintf(out, "%d\t%d\t%.4f\n", ratio.Correct, ratio.Total, ratio.Ratio)
			return nil
		}

		filter := domain.ImageFilter{
			RunID:   run,
			AnyRun:  !cmd.Flags().Changed("run"),
			EpochID: epoch,
		}
		filter.GroundTruth, _ = cmd.Flags().GetInt("truth")
		filter.Predicted, _ = cmd.Flags().GetInt("predicted")
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		if filter.Limit < 1 {
			return fmt.Errorf("--limit must be positive, got %d: %w", filter.Limit, domain.ErrOutOfRange)
		}
		ids, err := repo.ImageIDs(cmd.Context(), filter)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().IntP("run", "r", 0, "Run id, every run when unset")
	queryCmd.Flags().IntP("epoch", "e", 0, "Epoch id")
	queryCmd.Flags().IntP("truth", "t", 0, "Ground truth class")
	queryCmd.Flags().IntP("predicted", "p", 0, "Predicted class")
	queryCmd.Flags().IntP("limit", "n", domain.DefaultImageLimit, "Maximum number of ids")
	queryCmd.Flags().Bool("ratio", false, "Print the accuracy of the epoch instead")
	queryCmd.Flags().String("load", "", "CSV file of run_id,epoch_id,img_id,ground_truth,predicted rows to load first")
}
