package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/collection-sorter/pkg/adapters/metrics"
	"github.com/wadjakorntonsri/collection-sorter/pkg/config"
	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

// NewRouter creates and configures the save service router. recorder may be nil;
// gatherer defaults to the Prometheus default registry.
func NewRouter(cfg *config.Config, service ports.OrderService, logger *zap.Logger, recorder *metrics.Recorder, gatherer prometheus.Gatherer) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	var observer HTTPObserver
	var saveMetrics ports.Metrics = ports.NopMetrics{}
	if recorder != nil {
		observer = recorder
		saveMetrics = recorder
	}

	// Initialize Handlers
	oh := NewOrderHandler(service, logger, saveMetrics)

	// Initialize Middleware
	mw := NewMiddleware(cfg, logger, observer)

	// Setup Router
	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Protected Routes
	mux.Handle("POST /api/collections/{id}/save", mw.AuthMiddleware(http.HandlerFunc(oh.SaveOrder)))
	mux.Handle("GET /api/collections/{id}/positions", mw.AuthMiddleware(http.HandlerFunc(oh.GetPositions)))
	mux.Handle("GET /api/collections/{id}/saves", mw.AuthMiddleware(http.HandlerFunc(oh.ListSaves)))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	})

	return c.Handler(mw.RequestID(mw.Observe(mux)))
}
