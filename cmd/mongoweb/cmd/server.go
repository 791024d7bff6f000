package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/dkettner/mongoweb/api"
	"github.com/dkettner/mongoweb/config"
	"github.com/dkettner/mongoweb/db"
	"github.com/dkettner/mongoweb/userstorage"
)

var (
	port         int
	dataDir      string
	configPath   string
	storeKind    string
	alertWebhook string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the administration server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		storage := userstorage.NewManager(filepath.Join(dataDir, "userstorage"))

		var sessions api.SessionStore
		switch storeKind {
		case "memory":
			sessions = api.NewMemorySessionStore(
				api.WithMemoryEvictHook(evictHook(storage, logger)))
		case "bolt":
			store, err := api.NewBoltSessionStoreFromFile(
				filepath.Join(dataDir, "sessions.db"),
				api.WithBoltEvictHook(evictHook(storage, logger)),
				api.WithBoltLogger(logger))
			if err != nil {
				return fmt.Errorf("failed to open session storage: %w", err)
			}
			defer store.Close()
			sessions = store
		default:
			return fmt.Errorf("unknown session store %q (want memory or bolt)", storeKind)
		}

		opts := []api.Option{api.WithLogger(logger)}
		if alertWebhook != "" {
			alerter := api.NewWebhookAlerter(alertWebhook, logger)
			defer alerter.Close()
			opts = append(opts, api.WithAlertFunc(alerter.Alert))
		}

		connector := db.NewConnector(cfg, db.WithLogger(logger))
		a := api.New(cfg, sessions, connector, storage, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("mongoweb %s listening on port %d (data: %s, store: %s)\n",
			Version, port, dataDir, storeKind)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func evictHook(storage *userstorage.Manager, logger *slog.Logger) api.EvictHook {
	return func(id string) {
		if err := storage.Remove(id); err != nil {
			logger.Warn("user storage cleanup failed",
				slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&configPath, "config", "./config.yaml", "Path to the config file")
	serverCmd.Flags().StringVar(&storeKind, "session-store", "memory", "Session store backend (memory or bolt)")
	serverCmd.Flags().StringVar(&alertWebhook, "alert-webhook", "", "URL to POST login-failure spike alerts to")
}
