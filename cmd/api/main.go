package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/harborbank/demo/internal/api/handlers"
	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/backend/bq"
	"github.com/harborbank/demo/internal/backend/memory"
	"github.com/harborbank/demo/internal/feed"
	"github.com/harborbank/demo/internal/logger"
	"github.com/harborbank/demo/internal/session"
)

const (
	demoUserEmail    = "demo@harborbank.dev"
	demoUserPassword = "demo1234"
	adminEmail       = "admin@harborbank.dev"
	adminPassword    = "admin1234"
)

func main() {
	var (
		port        = flag.String("port", "8080", "HTTP server port")
		backendKind = flag.String("backend", "memory", "transaction store backend: memory or bigquery")
		projectID   = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project for the bigquery backend (or set GCP_PROJECT env)")
		datasetID   = flag.String("dataset", "banking", "BigQuery dataset for the bigquery backend")
		bucket      = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement exports (or set GCS_BUCKET env)")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "secret for signing session tokens (or set JWT_SECRET env)")
	)
	flag.Parse()

	log := logger.New()

	if *jwtSecret == "" {
		*jwtSecret = "harborbank-demo-secret"
		log.Warn().Msg("No JWT secret configured, using the demo default")
	}
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - statement exports will be disabled")
	}

	ctx := context.Background()

	// Change feed hub: the store layer publishes into it, per-session
	// subscribers consume from it.
	hub := feed.NewHub(logger.WithComponent(log, "feed"))
	defer hub.Close()

	// Session manager with the demo users.
	mgr := session.NewManager([]byte(*jwtSecret), 12*time.Hour, logger.WithComponent(log, "session"))
	demoUserID := mustRegister(mgr, log, demoUserEmail, demoUserPassword)
	mustRegister(mgr, log, adminEmail, adminPassword)

	// Transaction table.
	var table backend.TransactionTable
	switch *backendKind {
	case "memory":
		memTable := memory.NewTable(hub)
		memTable.Seed(demoRows(demoUserID))
		table = memTable
	case "bigquery":
		if *projectID == "" {
			log.Fatal().Msg("The bigquery backend requires -project or GCP_PROJECT")
		}
		bqTable, err := bq.NewTable(ctx, *projectID, *datasetID, hub)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery table")
		}
		defer bqTable.Close()
		table = bqTable
	default:
		log.Fatal().Str("backend", *backendKind).Msg("Unknown backend")
	}

	// One sync stack per live session, driven by session start/end.
	registry := handlers.NewRegistry(table, hub, 0, log)
	registry.Bind(mgr)

	authHandler := handlers.NewAuthHandler(mgr, logger.WithComponent(log, "auth"))
	transactionsHandler := handlers.NewTransactionsHandler(registry, logger.WithComponent(log, "transactions"))
	demoHandler := handlers.NewDemoHandler(logger.WithComponent(log, "demo"))
	adminHandler := handlers.NewAdminHandler(table, adminEmail, logger.WithComponent(log, "admin"))
	streamHandler := handlers.NewStreamHandler(registry, logger.WithComponent(log, "stream"))
	statementsHandler := handlers.NewStatementsHandler(registry, *bucket, logger.WithComponent(log, "statements"))

	// Authenticated API routes.
	api := http.NewServeMux()

	api.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.List(w, r)
		case http.MethodPost:
			transactionsHandler.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			demoHandler.Accounts(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/investments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			demoHandler.Investments(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/loans", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			demoHandler.ApplyLoan(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/admin/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			adminHandler.UpdateStatus(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/statements/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Export(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/stream", streamHandler.Serve)

	api.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authHandler.Logout(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Public routes plus the authenticated subtree.
	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Auth(mgr)(api))

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authHandler.Login(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

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

	// No per-connection write deadline: /api/stream holds websockets open
	// for the whole session.
	server := &http.Server{
		Addr:        ":" + *port,
		Handler:     handler,
		ReadTimeout: 0,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("backend", *backendKind).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// End sessions first so subscribers detach, then drain the hub.
	mgr.EndAll()
	hub.Close()

	log.Info().Msg("Server exited")
}

func mustRegister(mgr *session.Manager, log zerolog.Logger, email, password string) string {
	id, err := mgr.Register(email, password)
	if err != nil {
		log.Fatal().Err(err).Str("email", email).Msg("Failed to register user")
	}
	return id
}

// demoRows seeds the in-memory table with a little history for the demo
// user so the dashboard is not empty on first login.
func demoRows(userID string) []backend.Row {
	day := func(n int) *time.Time {
		d := time.Now().UTC().AddDate(0, 0, -n)
		return &d
	}
	str := func(s string) *string { return &s }

	return []backend.Row{
		{
			ID: "seed-1", UserID: userID, Date: day(9), Type: "deposit",
			Amount: decimal.NewFromFloat(1250.00), Status: "completed",
			AccountID: "A1", Description: str("Paycheck"),
		},
		{
			ID: "seed-2", UserID: userID, Date: day(6), Type: "withdrawal",
			Amount: decimal.NewFromFloat(84.15), Status: "completed",
			AccountID: "A1", Description: str("Groceries"),
		},
		{
			ID: "seed-3", UserID: userID, Date: day(3), Type: "transfer",
			Amount: decimal.NewFromFloat(500.00), Status: "completed",
			AccountID: "A1", FromAccount: str("A1"), ToAccount: str("A2"),
			Description: str("Savings top-up"),
		},
		{
			ID: "seed-4", UserID: userID, Date: day(1), Type: "withdrawal",
			Amount: decimal.NewFromFloat(32.40), Status: "pending",
			AccountID: "A1", Description: str("Card authorization"),
		},
	}
}
