// Package gas collects gas prices for the supported chains from multiple
// sources and aggregates them into a single reading per refresh.
package gas

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yourorg/route-optimizer-ea/internal/config"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Feeder defines the interface that all gas price sources must implement
type Feeder interface {
	// Fetch retrieves gas price samples for the requested chains
	Fetch(ctx context.Context, chains []types.Chain) ([]model.GasSample, error)
}

// NewFeeder creates a gas price source based on the provided configuration and source name
func NewFeeder(cfg config.Config, source string) (Feeder, error) {
	switch source {
	case "simulated":
		return NewSimulated(baselinePrices(cfg.Chains), cfg.GasJitter), nil
	case "static":
		return NewStatic(baselinePrices(cfg.Chains)), nil
	case "http":
		return NewHTTPSource(cfg.Chains), nil
	case "rpc":
		return NewRPCSource(cfg.Chains), nil
	default:
		return nil, fmt.Errorf("unknown gas source %q", source)
	}
}

// baselinePrices extracts the configured baseline price per enabled chain
func baselinePrices(chains map[types.Chain]types.ChainSettings) map[types.Chain]float64 {
	prices := make(map[types.Chain]float64, len(chains))
	for chain, cs := range chains {
		if cs.Enabled && cs.GasBaseline > 0 {
			prices[chain] = cs.GasBaseline
		}
	}
	return prices
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}
