package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	draftwriter "github.com/MegaGrindStone/draft-writer"
	"github.com/MegaGrindStone/draft-writer/internal/generation"
	"github.com/MegaGrindStone/draft-writer/internal/handlers"
	"github.com/spf13/cobra"
)

const errLoggerKey = "err"

func newServeCmd(flags *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the drafting web page",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&flags.port, "port", "p", "", "port to listen on")
	return cmd
}

func serve(cfg config) error {
	logger := cfg.logger(os.Stderr)

	boltDB, err := cfg.openJournal()
	if err != nil {
		return err
	}
	defer boltDB.Close()

	llm := cfg.backend(logger)
	events := handlers.NewEvents(logger)
	generator := generation.NewGenerator(llm, events, boltDB, cfg.generationConfig(), logger)

	ping := func(ctx context.Context) (string, error) {
		return llm.Ping(ctx, cfg.Host)
	}
	settings := handlers.Settings{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		ServerURL: cfg.Host,
	}

	m, err := handlers.NewMain(generator, boltDB, events, ping, settings, logger)
	if err != nil {
		return fmt.Errorf("error creating handlers: %w", err)
	}

	// Serve static files
	staticFS, err := fs.Sub(draftwriter.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("GET /{$}", m.HandleHome)
	mux.HandleFunc("POST /drafts", m.HandleGenerate)
	mux.HandleFunc("POST /drafts/cancel", m.HandleCancel)
	mux.HandleFunc("POST /drafts/clear", m.HandleClear)
	mux.HandleFunc("GET /drafts/current", m.HandleCurrent)
	mux.HandleFunc("DELETE /drafts/{id}", m.HandleDeleteDraft)
	mux.HandleFunc("GET /sse", m.HandleSSE)
	mux.HandleFunc("GET /health", m.HandleHealth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("provider", cfg.Provider),
			slog.String("model", cfg.Model),
			slog.String("server", cfg.Host))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
			}
		}
	}

	// The journal is closed on return, so the active session must be recorded first.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := generator.Shutdown(ctx); err != nil {
		logger.Error("Failed to stop generation", slog.String(errLoggerKey, err.Error()))
	}

	return nil
}
