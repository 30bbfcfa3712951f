package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapbinder/snapbinder/internal/blob"
	"github.com/snapbinder/snapbinder/internal/broker"
	"github.com/snapbinder/snapbinder/internal/capture"
	"github.com/snapbinder/snapbinder/internal/config"
	"github.com/snapbinder/snapbinder/internal/export"
	"github.com/snapbinder/snapbinder/internal/handlers"
	"github.com/snapbinder/snapbinder/internal/qr"
	"github.com/snapbinder/snapbinder/internal/recognition"
	"github.com/snapbinder/snapbinder/internal/session"
)

func newServeCmd() *cobra.Command {
	var port string
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the capture and upload server",
		Long: `Starts the SnapBinder server on the specified port.

The server hosts the capture-session API used by the controlling device and
the upload-broker API used by a second device to push images into the same
session.`,
		Example: `  # Start server on default port 8787
  snapbinder serve

  # Start server on custom port with a config file
  snapbinder serve --port 3000 --config snapbinder.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			engine, err := recognition.NewEngine(cfg.RecognitionProvider, cfg.RecognitionModel)
			if err != nil {
				return err
			}
			queue := recognition.NewQueue(engine, cfg.RecognitionTimeout, cfg.RecognitionMinDim)
			queue.Start(cmd.Context())
			defer queue.Close()

			store := session.NewStore(blob.New(), session.Limits{
				MaxImages:   cfg.MaxImages,
				MaxBytes:    cfg.MaxSessionBytes,
				WarnRatio:   cfg.MemoryWarnRatio,
				UndoTimeout: cfg.UndoTimeout,
			})
			exporter := export.New(export.Options{
				Margin:       cfg.PageMargin,
				MinPageW:     cfg.MinPageW,
				MinPageH:     cfg.MinPageH,
				MinWordBoxPt: cfg.MinWordBoxPt,
			})
			captureSvc := capture.New(store, queue, exporter, cfg.ThumbnailEdge)

			registry := broker.NewRegistry(broker.Options{
				MaxSessions:  cfg.BrokerMaxSessions,
				Retention:    cfg.BrokerRetention,
				UploadWindow: cfg.BrokerUploadWindow,
				SnippetRunes: cfg.SearchSnippetRunes,
			})

			handler := handlers.New(registry, captureSvc, queue, qr.Default{}, cfg.PublicBaseURL, cfg.PollInterval)
			defer handler.Shutdown()

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/upload-sessions", handler.HandleUploadSessions)
			mux.HandleFunc("/api/upload-sessions/", handler.HandleUploadSessionDetail)
			mux.HandleFunc("/api/capture/", handler.HandleCapture)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("SnapBinder server available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8787", "Port to listen on")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	return cmd
}
