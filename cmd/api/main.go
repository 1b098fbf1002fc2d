package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okozyrev/extraction-review/internal/api/handlers"
	"github.com/okozyrev/extraction-review/internal/api/middleware"
	"github.com/okozyrev/extraction-review/internal/emailstore"
	"github.com/okozyrev/extraction-review/internal/engine"
	infraBQ "github.com/okozyrev/extraction-review/internal/infra/bigquery"
	"github.com/okozyrev/extraction-review/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		project = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID (or set GCP_PROJECT env)")
		dataset = flag.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset ID (or set BQ_DATASET env)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket with email previews (or set GCS_BUCKET env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *project == "" {
		log.Fatal().Msg("Error: --project is required")
	}

	ctx := context.Background()

	// Initialize repositories
	repo, err := infraBQ.NewRepository(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	eng := engine.New(repo, repo, repo, log)

	// Email previews are optional; the review UI degrades to ids only.
	var emails *emailstore.Store
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - email previews will be disabled")
	} else {
		emails, err = emailstore.NewStore(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create email store")
		}
		defer emails.Close()
	}

	// Initialize handlers
	runsHandler := handlers.NewRunsHandler(eng, log)
	compareHandler := handlers.NewCompareHandler(eng, log)
	decisionsHandler := handlers.NewDecisionsHandler(eng, log)
	synthesisHandler := handlers.NewSynthesisHandler(eng, log)
	emailsHandler := handlers.NewEmailsHandler(emails, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			runsHandler.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/compare", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			compareHandler.GetComparison(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/decisions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			decisionsHandler.SetDecision(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/decisions/bulk", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			decisionsHandler.BulkSetDecision(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/overrides", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			decisionsHandler.SetOverrides(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/synthesize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			synthesisHandler.Synthesize(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/emails/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			emailID := strings.TrimPrefix(r.URL.Path, "/api/emails/")
			if emailID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Email ID is required")
				return
			}
			emailsHandler.GetEmail(w, r, emailID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting review API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
