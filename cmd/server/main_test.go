package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/yourorg/route-optimizer-ea/internal/analytics"
	"github.com/yourorg/route-optimizer-ea/internal/config"
	"github.com/yourorg/route-optimizer-ea/internal/gas"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/security"
)

// newTestServer builds a server on the static gas source so every route
// request sees the exact catalog baselines. Prometheus registration is
// off because the default registry rejects duplicates across tests.
func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	cfg := config.Defaults()
	cfg.EnableMetrics = false
	cfg.GasSources = []string{"static"}
	cfg.SignQuotes = true
	cfg.RateLimitRPS = 10000
	cfg.RateLimitBurst = 10000
	for _, m := range mutate {
		m(&cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.exporter.Stop)
	return srv
}

func postJSON(handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

type decodedResponse struct {
	JobRunID   string `json:"jobRunId"`
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	Data       struct {
		ID             string                    `json:"id"`
		Result         float64                   `json:"result"`
		Recommendation model.RouteRecommendation `json:"recommendation"`
		SignedQuote    *security.SignedQuote     `json:"signed_quote"`
		Meta           map[string]interface{}    `json:"meta"`
	} `json:"data"`
}

func TestHandleRoute_Success(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv.handleRoute, "/",
		`{"id":"req-1","jobRunId":"job-9","data":{"source_chain":"solana","destination_chain":"ethereum","amount":1000}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "job-9", resp.JobRunID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "req-1", resp.Data.ID)

	rec := resp.Data.Recommendation
	assert.Equal(t, "solana", string(rec.SourceChain))
	assert.Equal(t, "ethereum", string(rec.DestinationChain))
	assert.GreaterOrEqual(t, rec.TotalHops, 1)
	assert.Greater(t, rec.TotalCost, 0.0)
	assert.Greater(t, rec.SuccessProbability, 0.0)
	assert.LessOrEqual(t, rec.SuccessProbability, 1.0)
	assert.Equal(t, rec.Score, resp.Data.Result)
	assert.Equal(t, "balance", resp.Data.Meta["objective"])

	require.NotNil(t, resp.Data.SignedQuote)
	assert.NoError(t, srv.signer.VerifyQuote(resp.Data.SignedQuote))
}

func TestHandleRoute_SameChain(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv.handleRoute, "/",
		`{"data":{"source_chain":"ethereum","destination_chain":"ethereum","amount":500}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	rec := resp.Data.Recommendation
	assert.Equal(t, 0, rec.TotalHops)
	assert.Zero(t, rec.TotalCost)
	assert.Equal(t, 1.0, rec.SuccessProbability)
	assert.NotEmpty(t, resp.Data.ID) // generated when the caller omits one
}

func TestHandleRoute_AliasParams(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv.handleRoute, "/",
		`{"data":{"from":"Base","to":"ARBITRUM","amount":2000}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "base", string(resp.Data.Recommendation.SourceChain))
	assert.Equal(t, "arbitrum", string(resp.Data.Recommendation.DestinationChain))
}

func TestHandleRoute_UnsupportedChain(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv.handleRoute, "/",
		`{"data":{"source_chain":"dogecoin","destination_chain":"ethereum","amount":1000}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "unsupported chain")
}

func TestHandleRoute_NoRouteForTinyAmount(t *testing.T) {
	srv := newTestServer(t)

	// Every bridge out of solana has a minimum far above one dollar.
	w := postJSON(srv.handleRoute, "/",
		`{"data":{"source_chain":"solana","destination_chain":"ethereum","amount":1}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "no route found")
}

func TestHandleRoute_InvalidBody(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv.handleRoute, "/", `{"data":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRoute_MissingParams(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv.handleRoute, "/", `{"data":{}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "required")
}

func TestHandleRoute_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.handleRoute(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleRoute_RateLimited(t *testing.T) {
	srv := newTestServer(t)
	srv.limiter = rate.NewLimiter(rate.Limit(0.0001), 1)

	body := `{"data":{"source_chain":"solana","destination_chain":"ethereum","amount":1000}}`

	first := postJSON(srv.handleRoute, "/", body)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postJSON(srv.handleRoute, "/", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHandleBatch_Success(t *testing.T) {
	srv := newTestServer(t)

	payload := []RouteRequest{
		{ID: "a", JobRunID: "j1", Data: RouteParams{SourceChain: "solana", DestinationChain: "ethereum", Amount: 1000}},
		{ID: "b", JobRunID: "j2", Data: RouteParams{SourceChain: "base", DestinationChain: "arbitrum", Amount: 2000}},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleBatch(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var responses []decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responses))
	require.Len(t, responses, 2)

	// Responses come back in input order
	assert.Equal(t, "j1", responses[0].JobRunID)
	assert.Equal(t, "solana", string(responses[0].Data.Recommendation.SourceChain))
	assert.Equal(t, "j2", responses[1].JobRunID)
	assert.Equal(t, "base", string(responses[1].Data.Recommendation.SourceChain))
	for _, resp := range responses {
		assert.Equal(t, "success", resp.Status)
	}
}

func TestHandleBatch_PartialFailure(t *testing.T) {
	srv := newTestServer(t)

	payload := []RouteRequest{
		{Data: RouteParams{SourceChain: "solana", DestinationChain: "ethereum", Amount: 1000}},
		{Data: RouteParams{SourceChain: "dogecoin", DestinationChain: "ethereum", Amount: 1000}},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleBatch(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var responses []decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responses))
	require.Len(t, responses, 2)

	assert.Equal(t, "success", responses[0].Status)
	assert.Equal(t, "error", responses[1].Status)
	assert.Equal(t, http.StatusBadRequest, responses[1].StatusCode)
	assert.Contains(t, responses[1].Error, "unsupported chain")
}

func TestHandleBatch_ExceedsLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) { cfg.BatchLimit = 2 })

	payload := make([]RouteRequest, 3)
	for i := range payload {
		payload[i] = RouteRequest{Data: RouteParams{SourceChain: "solana", DestinationChain: "ethereum", Amount: 1000}}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleBatch(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "exceeds limit")
}

func TestHandleBatch_Empty(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv.handleBatch, "/batch", `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var health struct {
		Status  string     `json:"status"`
		Chains  int        `json:"chains"`
		Bridges int        `json:"bridges"`
		Gas     gas.Status `json:"gas"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))

	assert.Equal(t, "OK", health.Status)
	assert.Equal(t, 7, health.Chains)
	assert.Equal(t, 6, health.Bridges)
	assert.Equal(t, 1, health.Gas.Feeders)
	assert.Equal(t, "weighted", health.Gas.Strategy)
	assert.Equal(t, "closed", health.Gas.BreakerState)
}

func TestHandleStats(t *testing.T) {
	srv := newTestServer(t)

	postJSON(srv.handleRoute, "/",
		`{"data":{"source_chain":"solana","destination_chain":"ethereum","amount":1000}}`)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	srv.handleStats(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Status        string          `json:"status"`
		Analytics     analytics.Stats `json:"analytics"`
		Configuration struct {
			Objective string `json:"objective"`
			MaxHops   int    `json:"max_hops"`
		} `json:"configuration"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))

	assert.Equal(t, "operational", stats.Status)
	assert.Equal(t, "balance", stats.Configuration.Objective)
	assert.Equal(t, 3, stats.Configuration.MaxHops)
	assert.Equal(t, int64(1), stats.Analytics.TotalRoutes)
	assert.Equal(t, int64(1), stats.Analytics.PairUsage["solana->ethereum"])
}

func TestHandleGas(t *testing.T) {
	srv := newTestServer(t)

	// Before the first routing call there is no reading to report.
	req := httptest.NewRequest(http.MethodGet, "/gas", nil)
	w := httptest.NewRecorder()
	srv.handleGas(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var before map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))
	assert.NotContains(t, before, "prices")

	postJSON(srv.handleRoute, "/",
		`{"data":{"source_chain":"solana","destination_chain":"ethereum","amount":1000}}`)

	w = httptest.NewRecorder()
	srv.handleGas(w, httptest.NewRequest(http.MethodGet, "/gas", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var after struct {
		Prices map[string]float64 `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	require.NotNil(t, after.Prices)
	assert.Equal(t, 2.50, after.Prices["ethereum"]) // static feeder serves the baseline
	assert.Equal(t, 0.02, after.Prices["solana"])
}

func TestHandleMetrics_Disabled(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.handleMetrics(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
