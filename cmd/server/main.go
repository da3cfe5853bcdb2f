// Package main is the entry point for the Route Optimizer External Adapter,
// a Chainlink-style adapter that recommends cross-chain transfer routes over
// a catalog of chains and bridges.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yourorg/route-optimizer-ea/internal/analytics"
	"github.com/yourorg/route-optimizer-ea/internal/config"
	"github.com/yourorg/route-optimizer-ea/internal/gas"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/otel"
	"github.com/yourorg/route-optimizer-ea/internal/routing"
	"github.com/yourorg/route-optimizer-ea/internal/security"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// batchConcurrency bounds how many batch items are routed at once.
const batchConcurrency = 4

// Server is the External Adapter instance: one optimizer, one gas
// pipeline and the ambient services around them.
type Server struct {
	cfg       config.Config
	optimizer *routing.Optimizer
	gas       *gas.Manager
	server    *http.Server

	metrics   *serverMetrics
	collector *analytics.Collector
	exporter  *analytics.Exporter
	signer    *security.QuoteSigner
	limiter   *rate.Limiter
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	routeCost       prometheus.Histogram
	routeHops       prometheus.Histogram
	bridgeUsage     *prometheus.CounterVec
	gasPrice        *prometheus.GaugeVec
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routeopt_requests_total",
				Help: "Total number of route requests processed",
			},
			[]string{"status", "objective"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "routeopt_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		routeCost: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "routeopt_route_cost_usd",
				Help:    "Total cost of recommended routes in USD",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
			},
		),
		routeHops: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "routeopt_route_hops",
				Help:    "Hop count of recommended routes",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		bridgeUsage: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routeopt_bridge_usage_total",
				Help: "How often each bridge appears in a recommended route",
			},
			[]string{"bridge"},
		),
		gasPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "routeopt_gas_price_usd",
				Help: "Most recent per-chain gas price in USD",
			},
			[]string{"chain"},
		),
	}

	// Register all metrics
	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.routeCost,
		m.routeHops,
		m.bridgeUsage,
		m.gasPrice,
	)

	return m
}

// main is the entry point for the application
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}

	setupLogging(cfg)

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	server, err := NewServer(cfg)
	if err != nil {
		logrus.Fatalf("Server setup failed: %v", err)
	}
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging(cfg config.Config) {
	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch cfg.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// NewServer wires the catalog, gas pipeline and optimizer together with
// the ambient services around them.
func NewServer(cfg config.Config) (*Server, error) {
	catalog, err := routing.NewCatalog(routing.Settings{
		Chains:            cfg.Chains,
		Bridges:           cfg.Bridges,
		Objective:         cfg.Objective,
		MaxHops:           cfg.MaxHops,
		SlippageTolerance: cfg.SlippageTolerance,
		GasMultiplier:     cfg.GasMultiplier,
		BalanceCostWeight: cfg.BalanceCostWeight,
		ReferenceCost:     cfg.ReferenceCost,
		ReferenceTime:     cfg.ReferenceTime,
	})
	if err != nil {
		return nil, fmt.Errorf("build route catalog: %w", err)
	}

	manager, err := gas.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build gas pipeline: %w", err)
	}

	optimizer, err := routing.NewOptimizer(catalog, manager)
	if err != nil {
		return nil, err
	}

	var metrics *serverMetrics
	if cfg.EnableMetrics {
		metrics = registerMetrics()
	}

	server := &Server{
		cfg:       cfg,
		optimizer: optimizer,
		gas:       manager,
		metrics:   metrics,
		collector: analytics.NewCollector(),
		exporter: analytics.NewExporter(analytics.ExporterConfig{
			Enabled:    cfg.ExportEnabled,
			BatchSize:  cfg.ExportBatchSize,
			Interval:   cfg.ExportInterval,
			WebhookURL: cfg.WebhookURL,
			APIKey:     cfg.WebhookAPIKey,
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}

	if cfg.SignQuotes {
		signer, err := security.NewQuoteSigner(cfg.SignatureValidity)
		if err != nil {
			logrus.Warnf("Failed to initialize quote signer: %v", err)
		} else {
			server.signer = signer
		}
	}

	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"objective":   cfg.Objective,
		"max_hops":    cfg.MaxHops,
		"chains":      len(catalog.Chains()),
		"bridges":     len(catalog.Bridges()),
		"gas_sources": cfg.GasSources,
		"breaker":     cfg.EnableBreaker,
		"metrics":     cfg.EnableMetrics,
		"signing":     server.signer != nil,
	}).Info("Server initialized")

	return server, nil
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoute)        // Main adapter endpoint
	mux.HandleFunc("/batch", s.handleBatch)   // Concurrent multi-request endpoint
	mux.HandleFunc("/health", s.handleHealth) // Health check endpoint
	mux.HandleFunc("/stats", s.handleStats)   // Analytics snapshot endpoint
	mux.HandleFunc("/gas", s.handleGas)       // Gas pipeline status endpoint
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	s.exporter.Stop()
	if err := s.gas.Close(); err != nil {
		logrus.Warnf("Gas pipeline close failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// handleRoute processes a single recommendation request in the adapter
// envelope format.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		s.errorResponse(w, "", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	var request RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.errorResponse(w, "", http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.ID == "" {
		request.ID = uuid.NewString()
	}

	ctx, span := otel.Tracer().Start(r.Context(), "route.recommend")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	source, destination, amount, err := request.Data.normalized()
	if err != nil {
		s.errorResponse(w, request.JobRunID, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.optimizer.FindOptimalRoute(ctx, source, destination, amount)
	if err != nil {
		otel.RecordError(ctx, err)
		s.errorResponse(w, request.JobRunID, routeErrorStatus(err), fmt.Sprintf("Routing failed: %v", err))
		return
	}

	s.collector.Record(rec)
	s.exporter.Add(rec)
	s.recordRouteMetrics(rec)
	if s.metrics != nil {
		s.metrics.requestDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	}

	response := s.successEnvelope(&request, rec)

	// Echo caller metadata enriched with performance figures
	meta := request.Meta
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["latencyMs"] = time.Since(start).Milliseconds()
	meta["candidates"] = rec.CandidatesConsidered
	meta["objective"] = rec.Objective
	if s.signer != nil {
		meta["publicKey"] = s.signer.PublicKey()
	}
	response.Data["meta"] = meta

	logrus.WithFields(logrus.Fields{
		"id":          request.ID,
		"source":      source,
		"destination": destination,
		"amount":      amount,
		"hops":        rec.TotalHops,
		"latency_ms":  time.Since(start).Milliseconds(),
	}).Debug("Request handled")

	writeJSON(w, http.StatusOK, response)
}

// handleBatch processes a JSON array of requests and answers in input
// order. Items fail independently; the batch itself only fails on
// malformed input or when the size limit is exceeded.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		s.errorResponse(w, "", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	var requests []RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&requests); err != nil {
		s.errorResponse(w, "", http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(requests) == 0 {
		s.errorResponse(w, "", http.StatusBadRequest, "Batch contains no requests")
		return
	}
	if len(requests) > s.cfg.BatchLimit {
		s.errorResponse(w, "", http.StatusBadRequest,
			fmt.Sprintf("Batch size %d exceeds limit %d", len(requests), s.cfg.BatchLimit))
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "route.batch")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	responses := make([]RouteResponse, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i := range requests {
		i := i // per-iteration copy; module now builds pre-1.22
		g.Go(func() error {
			responses[i] = s.routeOne(gctx, &requests[i])
			return nil
		})
	}
	_ = g.Wait() // item errors surface per response, never here

	if s.metrics != nil {
		s.metrics.requestDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	}

	logrus.WithFields(logrus.Fields{
		"batch":      len(requests),
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Batch handled")

	writeJSON(w, http.StatusOK, responses)
}

// routeOne serves one batch item and shapes its envelope.
func (s *Server) routeOne(ctx context.Context, request *RouteRequest) RouteResponse {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}

	source, destination, amount, err := request.Data.normalized()
	if err != nil {
		return errorEnvelope(request.JobRunID, http.StatusBadRequest, err.Error())
	}

	rec, err := s.optimizer.FindOptimalRoute(ctx, source, destination, amount)
	if err != nil {
		if s.metrics != nil {
			s.metrics.requestCounter.WithLabelValues("error", s.cfg.Objective).Inc()
		}
		return errorEnvelope(request.JobRunID, routeErrorStatus(err), fmt.Sprintf("Routing failed: %v", err))
	}

	s.collector.Record(rec)
	s.exporter.Add(rec)
	s.recordRouteMetrics(rec)

	return s.successEnvelope(request, rec)
}

// successEnvelope shapes the adapter response for one recommendation.
// The signed quote is attached when signing is enabled.
func (s *Server) successEnvelope(request *RouteRequest, rec *model.RouteRecommendation) RouteResponse {
	data := map[string]interface{}{
		"id":             request.ID,
		"result":         rec.Score,
		"recommendation": rec,
		"timestamp":      time.Now().Unix(),
	}

	if s.signer != nil {
		if sq, err := s.signer.SignQuote(rec); err != nil {
			logrus.Warnf("Failed to sign quote: %v", err)
		} else {
			data["signed_quote"] = sq
		}
	}

	return RouteResponse{
		JobRunID:   request.JobRunID,
		StatusCode: http.StatusOK,
		Status:     "success",
		Data:       data,
	}
}

// recordRouteMetrics tracks one served recommendation in Prometheus
func (s *Server) recordRouteMetrics(rec *model.RouteRecommendation) {
	if s.metrics == nil {
		return
	}

	s.metrics.requestCounter.WithLabelValues("success", rec.Objective).Inc()
	s.metrics.routeCost.Observe(rec.TotalCost)
	s.metrics.routeHops.Observe(float64(rec.TotalHops))
	for _, edge := range rec.Path {
		s.metrics.bridgeUsage.WithLabelValues(string(edge.Bridge)).Inc()
	}

	if reading := s.optimizer.LastGasReading(); reading != nil {
		for chain, price := range reading.Prices {
			s.metrics.gasPrice.WithLabelValues(string(chain)).Set(price)
		}
	}
}

// errorResponse returns a formatted error response for adapter callers
func (s *Server) errorResponse(w http.ResponseWriter, jobRunID string, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)

	if s.metrics != nil {
		s.metrics.requestCounter.WithLabelValues("error", s.cfg.Objective).Inc()
	}

	writeJSON(w, statusCode, errorEnvelope(jobRunID, statusCode, errorMsg))
}

// handleHealth is a simple health check endpoint with a catalog summary
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	catalog := s.optimizer.Catalog()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
		"chains":    len(catalog.Chains()),
		"bridges":   len(catalog.Bridges()),
		"gas":       s.gas.Status(),
	})
}

// handleStats provides the analytics snapshot and service configuration
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "operational",
		"uptime": time.Since(startTime).String(),
		"configuration": map[string]interface{}{
			"objective":    s.cfg.Objective,
			"max_hops":     s.cfg.MaxHops,
			"gas_strategy": s.cfg.GasStrategy,
		},
		"analytics": s.collector.Snapshot(),
		"exporter":  s.exporter.Status(),
	})
}

// handleGas exposes the most recent gas reading used by a routing call
func (s *Server) handleGas(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": s.gas.Status(),
	}

	if reading := s.optimizer.LastGasReading(); reading != nil {
		response["prices"] = reading.Prices
		response["collected_at"] = reading.CollectedAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

// handleMetrics exposes Prometheus metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnableMetrics {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}

	promhttp.Handler().ServeHTTP(w, r)
}
