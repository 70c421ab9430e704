package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lewtec/imagesprite/internal/repository"
	"github.com/lewtec/imagesprite/server"
)

// createSampleConfig writes the default configuration with paths relative
// to the config file.
func createSampleConfig(path string) error {
	cfg := server.DefaultConfig()
	cfg.Metadata.Path = "logs.db"
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [folder]",
	Short: "Initialize a new imagesprite project",
	Long: `Initialize a new project folder by creating:
- A sample configuration file (imagesprite.yaml)
- An empty classification log database (logs.db)

Example:
  imagesprite init ./cifar
  imagesprite ingest --config ./cifar/imagesprite.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		configFile := filepath.Join(dir, "imagesprite.yaml")
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			fmt.Fprintf(out, "Creating sample configuration file: %s\n", configFile)
			if err := createSampleConfig(configFile); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
		} else {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configFile)
		}

		cfg, err := server.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Metadata.Path == "" {
			return nil
		}
		fmt.Fprintf(out, "Creating database: %s\n", cfg.Metadata.Path)
		db, err := repository.OpenDatabase(cmd.Context(), cfg.Metadata.Path, nil)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		return db.Close()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
