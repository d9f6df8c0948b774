package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/username/smartledger/backend/src/config"
	"github.com/username/smartledger/backend/src/handlers"
	"github.com/username/smartledger/backend/src/logger"
	"github.com/username/smartledger/backend/src/security"
	"github.com/username/smartledger/backend/src/services"
	"github.com/username/smartledger/backend/src/store"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("SmartLedger backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing document store...", "path", config.Cfg.DatabasePath)
	documentStore, err := store.NewSQLiteStore(config.Cfg.DatabasePath)
	if err != nil {
		logger.L.Error("Failed to initialize document store", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Document store initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	emailService := services.NewEmailService(config.Cfg)
	priceService := services.NewPriceService(config.Cfg.QuoteCacheTTL)

	userService := services.NewUserService(documentStore)
	expenseService := services.NewExpenseService(documentStore)
	ledgerService := services.NewLedgerService(documentStore, emailService)
	summaryService := services.NewSummaryService(documentStore, expenseService, userService)
	assetService := services.NewAssetService(documentStore, priceService, userService)
	suggestionService := services.NewSuggestionService(context.Background(), config.Cfg.GeminiModel)

	userHandler := handlers.NewUserHandler(authService, userService)
	expenseHandler := handlers.NewExpenseHandler(expenseService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	summaryHandler := handlers.NewSummaryHandler(summaryService, config.Cfg.SummaryCacheTTL)
	assetHandler := handlers.NewAssetHandler(assetService)
	suggestionHandler := handlers.NewSuggestionHandler(suggestionService, expenseService, userService)

	handlers.InitializeGoogleOAuthConfig()

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	// Public routes
	apiRouter.HandleFunc("GET /api/auth/google/login", userHandler.HandleGoogleLogin)
	apiRouter.HandleFunc("GET /api/auth/google/callback", userHandler.HandleGoogleCallback)

	// Scheduled-job route, guarded by a shared secret instead of a user token
	apiRouter.HandleFunc("POST /api/internal/refreshStocks", assetHandler.HandleRefreshCatalog)

	auth := userHandler.AuthMiddleware

	// User and taxonomy
	apiRouter.HandleFunc("POST /api/createUserProfile", auth(userHandler.HandleCreateProfile))
	apiRouter.HandleFunc("GET /api/user/profile", auth(userHandler.HandleGetProfile))
	apiRouter.HandleFunc("GET /api/options", auth(userHandler.HandleGetOptions))
	apiRouter.HandleFunc("PUT /api/options", auth(userHandler.HandleUpdateOptions))
	apiRouter.HandleFunc("GET /api/relationship", auth(userHandler.HandleGetRelationship))
	apiRouter.HandleFunc("PUT /api/relationship", auth(userHandler.HandleUpdateRelationship))

	// Expense records
	apiRouter.HandleFunc("POST /api/submitAccount", auth(expenseHandler.HandleSubmitExpense))
	apiRouter.HandleFunc("GET /api/getRecords", auth(expenseHandler.HandleGetRecords))
	apiRouter.HandleFunc("GET /api/recordsByDateRange", auth(expenseHandler.HandleRecordsByDateRange))
	apiRouter.HandleFunc("PUT /api/record/{id}", auth(expenseHandler.HandleUpdateRecord))
	apiRouter.HandleFunc("DELETE /api/record/{id}", auth(expenseHandler.HandleDeleteRecord))
	apiRouter.HandleFunc("GET /api/records/export", auth(expenseHandler.HandleExportCSV))
	apiRouter.HandleFunc("POST /api/records/import", auth(expenseHandler.HandleImportCSV))

	// Aggregation
	apiRouter.HandleFunc("GET /api/totals", auth(summaryHandler.HandleGetTotals))
	apiRouter.HandleFunc("GET /api/ledgersSummary", auth(summaryHandler.HandleAllLedgersSummary))
	apiRouter.HandleFunc("GET /api/getSummaryData", auth(summaryHandler.HandleGetSummaryData))
	apiRouter.HandleFunc("GET /api/aiSuggestion", auth(suggestionHandler.HandleAISuggestion))

	// Ledger lifecycle
	apiRouter.HandleFunc("GET /api/ledgers", auth(ledgerHandler.HandleGetLedgers))
	apiRouter.HandleFunc("POST /api/ledgers", auth(ledgerHandler.HandleCreateLedger))
	apiRouter.HandleFunc("POST /api/ledgers/join", auth(ledgerHandler.HandleJoinLedger))
	apiRouter.HandleFunc("POST /api/ledgers/delete", auth(ledgerHandler.HandleDeleteLedger))
	apiRouter.HandleFunc("GET /api/split_group/{code}/members", auth(ledgerHandler.HandleLedgerMembers))

	// Assets and stocks
	apiRouter.HandleFunc("GET /api/home", auth(assetHandler.HandleHome))
	apiRouter.HandleFunc("GET /api/assets", auth(assetHandler.HandleGetAssets))
	apiRouter.HandleFunc("POST /api/submitStock", auth(assetHandler.HandleSubmitStock))
	apiRouter.HandleFunc("POST /api/stock/transaction", auth(assetHandler.HandleStockTrade))
	apiRouter.HandleFunc("PUT /api/asset/{id}", auth(assetHandler.HandleUpdateAsset))
	apiRouter.HandleFunc("DELETE /api/asset/{id}", auth(assetHandler.HandleDeleteAsset))
	apiRouter.HandleFunc("GET /api/stocks", auth(assetHandler.HandleGetStockCatalog))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "SmartLedger Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
