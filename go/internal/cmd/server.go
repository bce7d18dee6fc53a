package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/quizhub/go/internal/adminrpc"
	"github.com/mcdev12/quizhub/go/internal/quiz/gateway"
)

const (
	shutdownTimeout    = 10 * time.Second
	healthCheckTimeout = 2 * time.Second
)

func serve(ctx context.Context, cfg *Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		return err
	}
	services.Start(ctx)

	srv, err := setupServer(cfg, services)
	if err != nil {
		stop()
		services.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("public_url", cfg.joinBaseURL()).Msg("quizhub listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("failed to shut down http server")
	}
	services.Close()

	log.Info().Msg("quizhub stopped")
	return err
}

func setupServer(cfg *Config, services *Services) (*http.Server, error) {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	if err := registerServices(mux, cfg, services); err != nil {
		return nil, err
	}

	// Setup reflection for grpcui/grpcurl
	if err := adminrpc.RegisterReflection(mux); err != nil {
		return nil, err
	}

	setupHealthCheck(mux, services)

	handler := c.Handler(mux)

	// HTTP/2 without TLS for Connect clients
	return &http.Server{
		Addr:              cfg.addr(),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func registerServices(mux *http.ServeMux, cfg *Config, services *Services) error {
	gateway.NewWebSocketHandler(services.Connections, services.Manager).RegisterRoutes(mux)

	var results gateway.ResultReader
	if services.History != nil {
		results = services.History
	}
	api := gateway.NewAPIHandler(
		gateway.APIConfig{PublicURL: cfg.joinBaseURL()},
		services.Catalog,
		services.Sessions,
		services.Manager,
		services.Connections,
		results,
	)
	api.RegisterRoutes(mux)

	adminPath, adminHandler, err := adminrpc.NewHandler(services.Admin)
	if err != nil {
		return fmt.Errorf("failed to build admin handler: %w", err)
	}
	mux.Handle(adminPath, adminHandler)
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Rooms  int               `json:"rooms"`
	Checks map[string]string `json:"checks,omitempty"`
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Rooms: services.Manager.Count(), Checks: map[string]string{}}
		code := http.StatusOK
		for name, err := range services.Health(ctx) {
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
