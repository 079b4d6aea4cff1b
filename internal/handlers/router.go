package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"commission-service/internal/config"
	"commission-service/internal/repositories"
	"commission-service/internal/services"
)

func SetupRouter(db *sql.DB, cfg *config.Config, logger *logrus.Logger) *mux.Router {
	customerRepo := repositories.NewCustomerRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	lineItemRepo := repositories.NewLineItemRepository(db)
	spiffRepo := repositories.NewSpiffRepository(db)
	commissionRepo := repositories.NewCommissionRepository(db)
	importRunRepo := repositories.NewImportRunRepository(db)
	summaryRepo := repositories.NewSummaryRepository(db)

	importStore := repositories.NewImportStore(db, customerRepo, orderRepo, lineItemRepo)
	importService := services.NewImportService(cfg, logger, importRunRepo, importStore, summaryRepo)
	commissionService := services.NewCommissionService(logger, commissionRepo, lineItemRepo, spiffRepo,
		orderRepo, summaryRepo, decimal.NewFromFloat(cfg.Commission.DefaultRate))

	// A run left in processing by a crash would otherwise be stuck there
	// and rejected by the re-entrancy guard forever.
	if err := importService.RecoverStalledRuns(context.Background()); err != nil {
		logger.WithError(err).Warn("failed to reset interrupted import runs")
	}

	importHandler := NewImportHandler(importService)
	commissionHandler := NewCommissionHandler(commissionService)
	spiffHandler := NewSpiffHandler(spiffRepo)
	orderHandler := NewOrderHandler(orderRepo)

	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()

	api.Use(loggingMiddleware(logger))
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/imports", importHandler.UploadImport).Methods(http.MethodPost)
	api.HandleFunc("/imports/{import_id}/process", importHandler.ProcessImport).Methods(http.MethodPost)
	api.HandleFunc("/imports/{import_id}/progress", importHandler.GetImportProgress).Methods(http.MethodGet)

	api.HandleFunc("/adjustments", commissionHandler.ApplyAdjustment).Methods(http.MethodPost)
	api.HandleFunc("/adjustments/clear", commissionHandler.ClearOverride).Methods(http.MethodPost)
	api.HandleFunc("/commissions/recalculate", commissionHandler.RecalculateMonth).Methods(http.MethodPost)

	api.HandleFunc("/spiffs", spiffHandler.ListSpiffs).Methods(http.MethodGet)
	api.HandleFunc("/spiffs", spiffHandler.CreateSpiff).Methods(http.MethodPost)

	api.HandleFunc("/orders/{so_number}", orderHandler.GetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{so_number}/manual-link", orderHandler.MarkManuallyLinked).Methods(http.MethodPost)

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	return router
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("request handled")
		})
	}
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "healthy",
	}
	respondWithJSON(w, http.StatusOK, response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
