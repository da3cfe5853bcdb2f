package analytics

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/route-optimizer-ea/internal/model"
)

// Exporter batches served recommendations and pushes them to a webhook
// endpoint, either when the batch fills up or on a timer.
type Exporter struct {
	config       ExporterConfig
	httpClient   *http.Client
	mutex        sync.RWMutex
	batch        []*model.RouteRecommendation
	lastExport   time.Time
	exportCtx    context.Context
	exportCancel context.CancelFunc
}

// ExporterConfig holds configuration for recommendation exporting
type ExporterConfig struct {
	Enabled    bool          `json:"enabled"`
	BatchSize  int           `json:"batch_size"`
	Interval   time.Duration `json:"interval"`
	WebhookURL string        `json:"webhook_url"`
	APIKey     string        `json:"api_key,omitempty"`
}

// NewExporter creates a new recommendation exporter. A disabled exporter
// accepts calls but never exports anything.
func NewExporter(config ExporterConfig) *Exporter {
	if !config.Enabled {
		return &Exporter{config: config}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Interval <= 0 {
		config.Interval = 1 * time.Minute
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			IdleConnTimeout: 90 * time.Second,
		},
	}

	exporter := &Exporter{
		config:     config,
		httpClient: httpClient,
		batch:      make([]*model.RouteRecommendation, 0, config.BatchSize),
	}

	// Start background task for periodic exports
	exporter.exportCtx, exporter.exportCancel = context.WithCancel(context.Background())
	go exporter.periodicExport()

	logrus.Info("Recommendation exporter initialized")
	return exporter
}

// Add queues a recommendation for export
func (e *Exporter) Add(rec *model.RouteRecommendation) {
	if !e.config.Enabled || rec == nil {
		return
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.batch = append(e.batch, rec)

	// If we've reached batch size, export immediately
	if len(e.batch) >= e.config.BatchSize {
		go e.export()
	}
}

// periodicExport runs a background task to periodically export recommendations
func (e *Exporter) periodicExport() {
	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.export()
		case <-e.exportCtx.Done():
			return
		}
	}
}

// export drains the current batch and pushes it to the webhook. Failed
// batches are logged and dropped.
func (e *Exporter) export() {
	e.mutex.Lock()

	// If there is nothing to export, return
	if len(e.batch) == 0 {
		e.mutex.Unlock()
		return
	}

	// Copy the batch and reset for new inputs
	routes := make([]*model.RouteRecommendation, len(e.batch))
	copy(routes, e.batch)
	e.batch = make([]*model.RouteRecommendation, 0, e.config.BatchSize)
	e.lastExport = time.Now()

	e.mutex.Unlock()

	if err := e.exportToWebhook(routes); err != nil {
		logrus.Errorf("Failed to export recommendations: %v", err)
		return
	}

	logrus.Infof("Exported %d recommendations", len(routes))
}

// exportToWebhook pushes one batch to the webhook endpoint
func (e *Exporter) exportToWebhook(routes []*model.RouteRecommendation) error {
	if e.config.WebhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	// Prepare export data
	exportData := struct {
		Routes     []*model.RouteRecommendation `json:"routes"`
		ExportTime string                       `json:"export_time"`
		Count      int                          `json:"count"`
	}{
		Routes:     routes,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(routes),
	}

	// Convert to JSON
	jsonData, err := json.Marshal(exportData)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	// Create request
	req, err := http.NewRequest("POST", e.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	// Add headers
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	// Send request
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	return nil
}

// Stop cleanly stops the exporter, flushing any queued recommendations
func (e *Exporter) Stop() {
	if e.exportCancel != nil {
		e.exportCancel()
	}

	// Export any remaining recommendations
	e.export()
}

// Status returns the current status of the exporter
func (e *Exporter) Status() map[string]interface{} {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	status := map[string]interface{}{
		"enabled":       e.config.Enabled,
		"batch_size":    e.config.BatchSize,
		"interval":      e.config.Interval.String(),
		"current_batch": len(e.batch),
	}

	if !e.lastExport.IsZero() {
		status["last_export"] = e.lastExport.Format(time.RFC3339)
		status["next_export_in"] = (e.config.Interval - time.Since(e.lastExport)).String()
	}

	return status
}
