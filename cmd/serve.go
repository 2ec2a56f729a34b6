package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/planner"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/v1/search", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Query string `json:"query"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Query == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
				return
			}

			resp, err := env.Engine.Search(req.Context(), body.Query)
			if err != nil {
				zap.L().Error("search failed",
					zap.String("query", body.Query),
					zap.Error(err),
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/v1/capabilities", func(w http.ResponseWriter, req *http.Request) {
			avail, err := env.Source.Availability(req.Context())
			if err != nil {
				zap.L().Error("availability probe failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "availability probe failed"})
				return
			}
			writeJSON(w, http.StatusOK, capabilityReport(avail))
		})

		r.Get("/v1/stats", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Metrics.Collect())
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// capabilityEntry is one row of the capability report served at
// /v1/capabilities and printed by the capabilities command.
type capabilityEntry struct {
	ID        string  `json:"id"`
	Table     string  `json:"table"`
	Boost     float64 `json:"boost"`
	Available bool    `json:"available"`
}

func capabilityReport(avail map[string]bool) []capabilityEntry {
	catalog := planner.Catalog()
	entries := make([]capabilityEntry, 0, len(catalog))
	for _, c := range catalog {
		available := true
		if probed, ok := avail[c.Table]; ok {
			available = probed
		}
		entries = append(entries, capabilityEntry{
			ID:        c.ID,
			Table:     c.Table,
			Boost:     c.Boost,
			Available: available,
		})
	}
	return entries
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
