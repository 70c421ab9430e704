package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lewtec/imagesprite/internal/imagestore"
	"github.com/lewtec/imagesprite/internal/repository"
	"github.com/lewtec/imagesprite/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves sprites from an ingested image store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Path, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("metadata") {
			cfg.Metadata.Path, _ = cmd.Flags().GetString("metadata")
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("rate-limit") {
			cfg.HTTP.RateLimit, _ = cmd.Flags().GetFloat64("rate-limit")
			cfg.HTTP.Burst = max(1, int(cfg.HTTP.RateLimit))
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := imagestore.Open(ctx, cfg.Store.Path, imagestore.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to open image store: %w", err)
		}
		defer store.Close()

		app := &server.SpriteApp{
			Store:  store,
			Config: cfg,
			Logger: logger,
		}
		if cfg.Metadata.Path != "" {
			db, err := repository.OpenDatabase(ctx, cfg.Metadata.Path, logger)
			if err != nil {
				return fmt.Errorf("failed to open metadata database: %w", err)
			}
			defer db.Close()
			app.Metadata = repository.NewMetadataRepository(db)
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           app.GetHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("serve: starting server", "addr", cfg.HTTP.Addr, "store", store.Path(), "metadata", cfg.Metadata.Path)
		return listenUntilDone(ctx, srv)
	},
}

// listenUntilDone serves until ctx is cancelled and then shuts srv down.
func listenUntilDone(ctx context.Context, srv *http.Server) error {
	if ctx == nil {
		ctx = context.Background()
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("store", "s", "", "Image store path")
	serveCmd.Flags().StringP("metadata", "m", "", "Classification log database path")
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to bind the webserver")
	serveCmd.Flags().Float64("rate-limit", 0, "Sprite requests per second, 0 for unlimited")
}
