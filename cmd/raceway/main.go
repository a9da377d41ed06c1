package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"raceway/internal/api"
	"raceway/internal/config"
	"raceway/internal/engine"
	"raceway/internal/history"
	"raceway/internal/logging"
	ws "raceway/internal/websocket"
)

// Application wires the components in dependency order: history store,
// engine, transport registry and handler, API, HTTP server.
type Application struct {
	cfg        *config.Config
	results    *history.Store
	engine     *engine.Engine
	registry   *ws.Registry
	httpServer *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	results, err := history.NewStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	eng := engine.New(cfg.Match, results)

	registry := ws.NewRegistry()
	wsHandler := ws.NewHandler(registry, eng, cfg.HTTP, cfg.WebSocket)
	apiServer := api.NewServer(eng, results, cfg.HTTP.AllowedOrigins)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /normal_match/{playerId}", wsHandler.HandleRace)
	mux.Handle("/health", apiServer)
	mux.Handle("/api/", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		results:    results,
		engine:     eng,
		registry:   registry,
		httpServer: httpServer,
	}, nil
}

// Run serves until the context is cancelled, then drains the HTTP server and
// closes the history store. Queue and room state is deliberately ephemeral;
// nothing else needs flushing.
func (app *Application) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", app.httpServer.Addr).Msg("raceway listening")
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		_ = app.results.Close()
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown was not clean")
	}

	if err := app.results.Close(); err != nil {
		log.Warn().Err(err).Msg("history store close failed")
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Log)

	app, err := NewApplication(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("application exited with error")
	}
}
