package gas

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Static serves fixed gas prices from a configured table. It is meant for
// deterministic operation in tests and offline environments.
type Static struct {
	prices map[types.Chain]float64
}

// NewStatic creates a feeder that always reports the given prices
func NewStatic(prices map[types.Chain]float64) *Static {
	copied := make(map[types.Chain]float64, len(prices))
	for chain, p := range prices {
		copied[chain] = p
	}
	return &Static{prices: copied}
}

// Fetch returns one sample per requested chain. A chain without a configured
// price is an error rather than a guess.
func (s *Static) Fetch(ctx context.Context, chains []types.Chain) ([]model.GasSample, error) {
	now := time.Now().Unix()
	samples := make([]model.GasSample, 0, len(chains))
	for _, chain := range chains {
		price, ok := s.prices[chain]
		if !ok {
			return nil, fmt.Errorf("static feeder: no price for chain %s", chain)
		}
		samples = append(samples, model.GasSample{
			Chain:       chain,
			PriceUSD:    price,
			Source:      "static",
			Weight:      1.0,
			Confidence:  1.0,
			CollectedAt: now,
		})
	}
	return samples, nil
}
