package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomkit/xenbridge/handler"
	"github.com/ecomkit/xenbridge/infra/config"
	"github.com/ecomkit/xenbridge/infra/logger"
	"github.com/ecomkit/xenbridge/infra/middle"
	"github.com/ecomkit/xenbridge/infra/opensearch"
	"github.com/ecomkit/xenbridge/infra/response"
	"github.com/ecomkit/xenbridge/order"
	"github.com/ecomkit/xenbridge/router"
	"github.com/ecomkit/xenbridge/xendit"
)

const version = "1.0.0"

var (
	appConfig        *config.AppConfig
	openSearchLogger *opensearch.Logger
)

func init() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	appConfig = config.LoadAppConfig()

	// Initialize OpenSearch client and logger
	if appConfig.EnableLogging {
		osClient, err := opensearch.NewClient(appConfig)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	logger.InitGlobalLogger(openSearchLogger)
}

func main() {
	xenditConfig, err := config.LoadXenditConfig()
	if err != nil {
		logger.Fatal("Invalid Xendit configuration", err)
	}

	store, err := order.NewSQLiteStore(appConfig.LedgerDBPath)
	if err != nil {
		logger.Fatal("Failed to open order store", err)
	}
	defer store.Close()

	ledger, err := xendit.NewSQLiteLedger(store.DB())
	if err != nil {
		logger.Fatal("Failed to open notification ledger", err)
	}

	verifier := xendit.NewVerifier(xenditConfig.CallbackToken)
	if !verifier.Enabled() {
		logger.Warn("XENDIT_CALLBACK_TOKEN is not set, webhook verification is disabled")
	}

	reconciler := xendit.NewReconciler(verifier, store, store, order.NewContextFactory(), ledger)
	invoiceClient := xendit.NewClient(xenditConfig)

	handlers := router.Handlers{
		Webhook: handler.NewWebhookHandler(reconciler, openSearchLogger),
		Invoice: handler.NewInvoiceHandler(invoiceClient),
		Health:  handler.NewHealthHandler(version),
		APIKey:  appConfig.APIKey,
	}

	// Chi Define Routes
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300, // Preflight cache time (second)
	}))

	r.Handle("/metrics", promhttp.Handler())

	router.Routes(r, handlers)

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{Success: false, Message: "Not Found"})
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", appConfig.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", err)
		}
	}()

	logger.Info("API is running on " + appConfig.Port)

	// Block until a signal is received
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err)
	}
}
