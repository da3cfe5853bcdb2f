package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/route-optimizer-ea/internal/routing"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// RouteRequest matches the standard External Adapter request format
type RouteRequest struct {
	ID       string                 `json:"id"`
	JobRunID string                 `json:"jobRunId"`
	Data     RouteParams            `json:"data"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// RouteParams carries the routing parameters of a request. from/to are
// accepted as aliases for the chain fields.
type RouteParams struct {
	SourceChain      string  `json:"source_chain"`
	DestinationChain string  `json:"destination_chain"`
	Amount           float64 `json:"amount"`
	From             string  `json:"from,omitempty"`
	To               string  `json:"to,omitempty"`
}

// RouteResponse matches the standard External Adapter response format
type RouteResponse struct {
	JobRunID   string                 `json:"jobRunId,omitempty"`
	StatusCode int                    `json:"statusCode"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data"`
	Error      string                 `json:"error,omitempty"`
}

// normalized validates the parameters and folds the aliases into
// canonical chain names.
func (p RouteParams) normalized() (types.Chain, types.Chain, float64, error) {
	source := chainName(p.SourceChain, p.From)
	destination := chainName(p.DestinationChain, p.To)

	if source == "" || destination == "" {
		return "", "", 0, errors.New("source_chain and destination_chain are required")
	}
	if p.Amount <= 0 {
		return "", "", 0, fmt.Errorf("amount must be positive, got %g", p.Amount)
	}

	return types.Chain(source), types.Chain(destination), p.Amount, nil
}

// chainName picks the first non-empty candidate, trimmed and lowercased
func chainName(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			return c
		}
	}
	return ""
}

// routeErrorStatus maps routing failures onto HTTP status codes. Catalog
// and feasibility problems are client errors, everything else is a 500.
func routeErrorStatus(err error) int {
	switch {
	case errors.Is(err, routing.ErrUnsupportedChain), errors.Is(err, routing.ErrNoRouteFound):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorEnvelope shapes the adapter error response format
func errorEnvelope(jobRunID string, statusCode int, errorMsg string) RouteResponse {
	return RouteResponse{
		JobRunID:   jobRunID,
		StatusCode: statusCode,
		Status:     "error",
		Error:      errorMsg,
		Data:       map[string]interface{}{"error": errorMsg},
	}
}

// writeJSON writes v as the response body with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}
