package gas

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Simulated produces gas prices by jittering configured baselines. It stands
// in for live sources during development and fills gaps when a live source
// does not cover a chain.
type Simulated struct {
	baselines map[types.Chain]float64
	jitter    float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a feeder that reports baseline prices with up to
// jitter relative deviation in either direction. A jitter of 0 reports the
// baselines exactly.
func NewSimulated(baselines map[types.Chain]float64, jitter float64) *Simulated {
	copied := make(map[types.Chain]float64, len(baselines))
	for chain, p := range baselines {
		copied[chain] = p
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Simulated{
		baselines: copied,
		jitter:    jitter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch returns one sample per requested chain. A chain without a baseline
// is an error rather than an invented price.
func (s *Simulated) Fetch(ctx context.Context, chains []types.Chain) ([]model.GasSample, error) {
	now := time.Now().Unix()
	samples := make([]model.GasSample, 0, len(chains))
	for _, chain := range chains {
		base, ok := s.baselines[chain]
		if !ok {
			return nil, fmt.Errorf("simulated feeder: no baseline for chain %s", chain)
		}
		samples = append(samples, model.GasSample{
			Chain:       chain,
			PriceUSD:    s.jittered(base),
			Source:      "simulated",
			Weight:      1.0,
			Confidence:  0.9,
			CollectedAt: now,
		})
	}
	return samples, nil
}

// Refresh returns a complete reading for the requested chains so that a
// Simulated feeder can also serve as a gas source on its own.
func (s *Simulated) Refresh(ctx context.Context, chains []types.Chain) (model.GasPriceReading, error) {
	samples, err := s.Fetch(ctx, chains)
	if err != nil {
		return model.GasPriceReading{}, err
	}

	prices := make(map[types.Chain]float64, len(samples))
	for _, sample := range samples {
		prices[sample.Chain] = sample.PriceUSD
	}
	return model.GasPriceReading{Prices: prices, CollectedAt: time.Now()}, nil
}

// jittered applies a uniform relative deviation to the baseline.
// rand.Rand is not safe for concurrent use, hence the lock.
func (s *Simulated) jittered(base float64) float64 {
	if s.jitter == 0 {
		return base
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return base * (1 + s.jitter*(2*s.rng.Float64()-1))
}
