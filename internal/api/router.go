package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kaizumaki/kabuscan/internal/api/handlers"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// NewRouter wires all endpoints and middleware.
func NewRouter(scanHandler *handlers.ScanHandler, alertHandler *handlers.AlertHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Batch scanning
	api.HandleFunc("/scan/batches", scanHandler.ListBatches).Methods("GET")
	api.HandleFunc("/scan/batches/{n:[0-9]+}", scanHandler.DescribeBatch).Methods("GET")
	api.HandleFunc("/scan/batches/{n:[0-9]+}/run", scanHandler.RunBatch).Methods("POST")
	api.HandleFunc("/scan/batches/{n:[0-9]+}/progress", scanHandler.BatchProgress).Methods("GET")

	// Ranked candidates from the latest persisted scan
	api.HandleFunc("/candidates", scanHandler.GetCandidates).Methods("GET")

	// Alert lifecycle
	api.HandleFunc("/alerts", alertHandler.List).Methods("GET")
	api.HandleFunc("/alerts", alertHandler.Create).Methods("POST")
	api.HandleFunc("/alerts/{id}", alertHandler.Get).Methods("GET")
	api.HandleFunc("/alerts/{id}", alertHandler.Delete).Methods("DELETE")
	api.HandleFunc("/alerts/{id}/toggle", alertHandler.Toggle).Methods("POST")
	api.HandleFunc("/alerts/{id}/status", alertHandler.SetStatus).Methods("PUT")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "kabuscan-api",
	})
}

// loggingMiddleware logs every request with timing.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware turns panics into 500 responses.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
