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
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/lifecycle"
	"github.com/sells-group/leadscout/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger and reporting API",
	Long:  "Serves the operational surface: trigger a worker batch, enqueue jobs, inspect pending/failed jobs, and manage lead lifecycle over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			if err := e.Store.Ping(req.Context()); err != nil {
				zap.L().Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/run", func(w http.ResponseWriter, req *http.Request) {
				report, err := e.Runner.RunBatch(req.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, report)
			})

			r.Get("/pending", func(w http.ResponseWriter, req *http.Request) {
				n, err := e.Queue.PendingCount(req.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]int{"pending": n})
			})

			r.Get("/failures", func(w http.ResponseWriter, req *http.Request) {
				jobs, err := e.Queue.Failures(req.Context(), 50)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, jobs)
			})

			r.Post("/{id}/retry", func(w http.ResponseWriter, req *http.Request) {
				ok, err := e.Queue.Retry(req.Context(), chi.URLParam(req, "id"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]bool{"requeued": ok})
			})
		})

		r.Route("/leads", func(r chi.Router) {
			r.Post("/", func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					Name    string `json:"name"`
					Website string `json:"website"`
					Enqueue bool   `json:"enqueue"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
					return
				}
				if body.Name == "" {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
					return
				}

				lead, err := e.Store.CreateLead(req.Context(), model.Lead{Name: body.Name, Website: body.Website})
				if err != nil {
					writeError(w, err)
					return
				}
				if body.Enqueue {
					for _, jt := range model.JobTypes {
						if _, err := e.Queue.Enqueue(req.Context(), lead.ID, jt); err != nil {
							writeError(w, err)
							return
						}
					}
				}
				writeJSON(w, http.StatusCreated, lead)
			})

			r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
				lead, err := e.Store.GetLead(req.Context(), chi.URLParam(req, "id"))
				if err != nil {
					writeError(w, err)
					return
				}
				if lead == nil {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
					return
				}
				writeJSON(w, http.StatusOK, lead)
			})

			r.Post("/{id}/enqueue", func(w http.ResponseWriter, req *http.Request) {
				leadID := chi.URLParam(req, "id")
				lead, err := e.Store.GetLead(req.Context(), leadID)
				if err != nil {
					writeError(w, err)
					return
				}
				if lead == nil {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
					return
				}

				var jobs []*model.EnrichmentJob
				for _, jt := range model.JobTypes {
					job, err := e.Queue.Enqueue(req.Context(), leadID, jt)
					if err != nil {
						writeError(w, err)
						return
					}
					jobs = append(jobs, job)
				}
				writeJSON(w, http.StatusAccepted, jobs)
			})

			r.Post("/{id}/status", func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					Status string `json:"status"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
					return
				}

				lead, err := e.Store.GetLead(req.Context(), chi.URLParam(req, "id"))
				if err != nil {
					writeError(w, err)
					return
				}
				if lead == nil {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
					return
				}

				to := model.LeadStatus(body.Status)
				if err := lifecycle.AssertTransition(lead.Status, to); err != nil {
					writeError(w, err)
					return
				}
				lead.Status = to
				if err := e.Store.UpdateLead(req.Context(), lead); err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, lead)
			})

			r.Post("/{id}/convert", func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					ConvertedBy string `json:"convertedBy"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
					return
				}

				lead, err := e.Store.GetLead(req.Context(), chi.URLParam(req, "id"))
				if err != nil {
					writeError(w, err)
					return
				}
				if lead == nil {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
					return
				}

				if err := lifecycle.Convert(lead, body.ConvertedBy, time.Now().UTC()); err != nil {
					writeError(w, err)
					return
				}
				if err := e.Store.UpdateLead(req.Context(), lead); err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, lead)
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
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
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps lifecycle violations to 400s so operators can tell a bad
// request from an internal fault.
func writeError(w http.ResponseWriter, err error) {
	var transitionErr *lifecycle.TransitionError
	var conversionErr *lifecycle.ConversionError
	if errors.As(err, &transitionErr) || errors.As(err, &conversionErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
