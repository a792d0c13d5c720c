package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/knownrelays"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/models"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/relayclient"
)

// Relayer relays transactions and reports whether it is initialized
type Relayer interface {
	IsInitialized() bool
	RelayTransaction(ctx context.Context, details *models.TransactionDetails) (*relayclient.RelayingResult, error)
}

// RelayDirectory exposes the failure bookkeeping of the known relays
type RelayDirectory interface {
	Statuses() []knownrelays.RelayStatus
	ResetFailures(relayURL string) bool
}

// RelayResponse is the answer of the /relay endpoint
type RelayResponse struct {
	TxHash         string            `json:"txHash,omitempty"`
	RawTx          string            `json:"rawTx,omitempty"`
	PingErrors     map[string]string `json:"pingErrors"`
	RelayingErrors map[string]string `json:"relayingErrors"`
	Error          string            `json:"error,omitempty"`
}

// Server represents a health check HTTP server
type Server struct {
	port          string
	relayer       Relayer
	directory     RelayDirectory
	metricsAPIKey string
	logger        logger.Logger
	httpServer    *http.Server
}

// NewServer creates a new health check server
func NewServer(port, metricsAPIKey string, relayer Relayer, directory RelayDirectory, log logger.Logger) *Server {
	s := &Server{
		port:          port,
		relayer:       relayer,
		directory:     directory,
		metricsAPIKey: metricsAPIKey,
		logger:        log,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// authMiddleware is a middleware that checks for a valid API key
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Get API key from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		// Check if the header has the correct format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		// Validate API key
		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness check
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.relayer.IsInitialized() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Relay client not initialized"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	// Relay failure status endpoint
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"initialized": s.relayer.IsInitialized(),
			"relays":      s.directory.Statuses(),
		}
		s.writeJSON(w, http.StatusOK, status)
	})

	// Relay failure admin control endpoint
	mux.Handle("/relays/reset", s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		relayURL := r.URL.Query().Get("url")
		if relayURL == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Missing url parameter"))
			return
		}

		if !s.directory.ResetFailures(relayURL) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(fmt.Sprintf("No failures recorded for relay %s", relayURL)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf("Failures of relay %s reset", relayURL)))
	})))

	mux.Handle("/relay", s.authMiddleware(http.HandlerFunc(s.handleRelay)))

	// Expose Prometheus metrics with API key authentication
	mux.Handle("/metrics", s.authMiddleware(promhttp.Handler()))

	return mux
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var details models.TransactionDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		s.writeJSON(w, http.StatusBadRequest, RelayResponse{Error: fmt.Sprintf("invalid transaction details: %v", err)})
		return
	}

	result, err := s.relayer.RelayTransaction(r.Context(), &details)
	response := RelayResponse{
		PingErrors:     map[string]string{},
		RelayingErrors: map[string]string{},
	}
	if result != nil {
		response.PingErrors = errorMessages(result.PingErrors)
		response.RelayingErrors = errorMessages(result.RelayingErrors)
	}

	switch {
	case errors.Is(err, relayclient.ErrNoRegisteredRelayers):
		response.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, response)
	case err != nil:
		response.Error = err.Error()
		s.writeJSON(w, http.StatusInternalServerError, response)
	case result.Transaction == nil:
		response.Error = "all relays failed"
		s.writeJSON(w, http.StatusBadGateway, response)
	default:
		raw, err := result.Transaction.MarshalBinary()
		if err != nil {
			response.Error = err.Error()
			s.writeJSON(w, http.StatusInternalServerError, response)
			return
		}
		response.TxHash = result.Transaction.Hash().Hex()
		response.RawTx = hexutil.Encode(raw)
		s.writeJSON(w, http.StatusOK, response)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Error encoding JSON response: %v", err)
	}
}

func errorMessages(errs map[string]error) map[string]string {
	messages := make(map[string]string, len(errs))
	for url, err := range errs {
		if err != nil {
			messages[url] = err.Error()
		}
	}
	return messages
}

// Start starts the health check server and blocks until it stops
func (s *Server) Start() {
	s.logger.Info("Starting health and metrics server on port %s", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Health server error: %v", err)
	}
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
