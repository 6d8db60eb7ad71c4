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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/valuation"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the valuation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sweeper := startCacheSweeper(ctx, e)
		defer sweeper.Stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(e),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes.
func newRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/providers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"providers": providerStatuses(e),
			"metrics":   e.Recorder.Snapshot(),
		})
	})

	r.Post("/v1/valuations", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ItemName     string `json:"item_name"`
			Set          string `json:"set,omitempty"`
			Number       string `json:"number,omitempty"`
			Condition    string `json:"condition,omitempty"`
			WindowDays   int    `json:"window_days,omitempty"`
			Identity     string `json:"identity,omitempty"`
			ForceRefresh bool   `json:"force_refresh,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		q := model.PriceQuery{
			ItemName:   req.ItemName,
			Set:        req.Set,
			Number:     req.Number,
			Condition:  req.Condition,
			WindowDays: req.WindowDays,
		}
		identity := req.Identity
		if identity == "" {
			identity = "api"
		}

		result, err := e.Service.FetchValuation(r.Context(), q, identity, req.ForceRefresh)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, result)
		case errors.Is(err, valuation.ErrNoProvidersAvailable):
			writeError(w, http.StatusServiceUnavailable, "no providers available")
		case errors.Is(err, valuation.ErrNoData):
			writeError(w, http.StatusNotFound, "no observations found for query")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
	})

	return r
}

// startCacheSweeper periodically evicts expired cache rows while serve runs.
func startCacheSweeper(ctx context.Context, e *env) *cron.Cron {
	c := cron.New()
	spec := fmt.Sprintf("@every %dm", cfg.Cache.SweepMinutes)
	_, err := c.AddFunc(spec, func() {
		n, err := e.Store.DeleteExpired(ctx)
		if err != nil {
			zap.L().Warn("cache sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("cache sweep", zap.Int("deleted", n))
		}
	})
	if err != nil {
		zap.L().Warn("cache sweeper not started", zap.Error(err))
		return c
	}
	c.Start()
	return c
}

func providerStatuses(e *env) []map[string]any {
	all := e.Registry.All()
	out := make([]map[string]any, 0, len(all))
	for _, p := range all {
		st := p.Status()
		out = append(out, map[string]any{
			"name":                 p.Name(),
			"available":            p.Available(),
			"state":                st.State,
			"consecutive_failures": st.ConsecutiveFailures,
			"window_used":          st.WindowUsed,
			"window_max":           st.WindowMax,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
