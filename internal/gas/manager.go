package gas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/route-optimizer-ea/internal/aggregate"
	"github.com/yourorg/route-optimizer-ea/internal/circuitbreaker"
	"github.com/yourorg/route-optimizer-ea/internal/config"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
	"github.com/yourorg/route-optimizer-ea/internal/validation"
)

// Manager runs the full gas price pipeline: it fans out to the configured
// feeders, validates and aggregates their samples per chain, guards the
// result with a circuit breaker and optionally shares readings through a
// Redis cache. Chains no live feeder covers are filled from the fallback.
type Manager struct {
	feeders     []Feeder
	fallback    *Simulated
	cache       *Cache
	breaker     *circuitbreaker.CircuitBreaker
	strategy    string
	trimPercent float64
	valOpts     validation.Options
	log         *logrus.Entry
}

// NewManager creates a manager with the given fallback feeder and
// aggregation strategy (weighted, median or trimmed_mean)
func NewManager(fallback *Simulated, strategy string) *Manager {
	return &Manager{
		fallback:    fallback,
		strategy:    strategy,
		trimPercent: 0.1,
		valOpts:     validation.DefaultOptions(),
		log:         logrus.WithField("component", "gas-manager"),
	}
}

// WithFeeder registers an additional gas price source
func (m *Manager) WithFeeder(f Feeder) *Manager {
	m.feeders = append(m.feeders, f)
	return m
}

// WithCache attaches a shared Redis cache
func (m *Manager) WithCache(c *Cache) *Manager {
	m.cache = c
	return m
}

// WithBreaker attaches a circuit breaker that guards the pipeline
func (m *Manager) WithBreaker(b *circuitbreaker.CircuitBreaker) *Manager {
	m.breaker = b
	return m
}

// WithValidationOptions overrides the sample validation options
func (m *Manager) WithValidationOptions(opts validation.Options) *Manager {
	m.valOpts = opts
	return m
}

// WithTrimPercent sets the trim fraction used by the trimmed_mean strategy
func (m *Manager) WithTrimPercent(p float64) *Manager {
	m.trimPercent = p
	return m
}

// NewFromConfig assembles the full pipeline described by the configuration
func NewFromConfig(cfg config.Config) (*Manager, error) {
	fallback := NewSimulated(baselinePrices(cfg.Chains), cfg.GasJitter)

	m := NewManager(fallback, cfg.GasStrategy).WithTrimPercent(cfg.GasTrimPercent)

	for _, source := range cfg.GasSources {
		feeder, err := NewFeeder(cfg, source)
		if err != nil {
			return nil, fmt.Errorf("configure gas source: %w", err)
		}
		m.WithFeeder(feeder)
	}

	opts := validation.DefaultOptions()
	opts.MaxPrice = cfg.MaxGasPrice
	m.WithValidationOptions(opts)

	if cfg.RedisAddr != "" {
		m.WithCache(NewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.GasCacheTTL))
	}

	if cfg.EnableBreaker {
		breaker := circuitbreaker.New(circuitbreaker.Thresholds{
			MaxPrice:       cfg.MaxGasPrice,
			MaxChangeRatio: cfg.MaxGasChange,
			MinSources:     cfg.MinGasSources,
		}).WithResetDelay(cfg.BreakerResetDelay)
		m.WithBreaker(breaker)
	}

	return m, nil
}

// Refresh produces a fresh reading with one price per requested chain. Live
// samples flow through validation, the circuit breaker and per-chain
// aggregation; any chain left uncovered is filled from the fallback feeder.
func (m *Manager) Refresh(ctx context.Context, chains []types.Chain) (model.GasPriceReading, error) {
	if m.cache != nil {
		if reading, ok := m.cache.Reading(ctx, chains); ok {
			m.log.Debug("Serving gas reading from cache")
			return *reading, nil
		}
	}

	samples, fetchErrs := m.collect(ctx, chains)

	valid := validation.FilterWithOptions(samples, m.valOpts)
	if len(valid) == 0 {
		// Every live source failed or produced garbage; run entirely on the fallback
		m.log.WithField("fetch_errors", len(fetchErrs)).Warn("No valid gas samples from live sources, using fallback")
		fallbackSamples, err := m.fallback.Fetch(ctx, chains)
		if err != nil {
			return model.GasPriceReading{}, fmt.Errorf("all gas sources failed: %w", errors.Join(append(fetchErrs, err)...))
		}
		valid = fallbackSamples
	}

	if m.breaker != nil {
		if err := m.breaker.Check(valid); err != nil {
			if last := m.breaker.LastGoodReading(); last != nil && covers(last, chains) {
				m.log.WithError(err).Warn("Gas reading rejected, serving last good reading")
				return *last, nil
			}
			return model.GasPriceReading{}, fmt.Errorf("gas reading rejected: %w", err)
		}
	}

	grouped := aggregate.ByChain(valid)

	prices := make(map[types.Chain]float64, len(chains))
	var missing []types.Chain
	for _, chain := range chains {
		group, ok := grouped[chain]
		if !ok {
			missing = append(missing, chain)
			continue
		}
		prices[chain] = m.aggregateChain(group).PriceUSD
	}

	if len(missing) > 0 {
		fallbackSamples, err := m.fallback.Fetch(ctx, missing)
		if err != nil {
			return model.GasPriceReading{}, fmt.Errorf("gap fill from fallback failed: %w", err)
		}
		for _, s := range fallbackSamples {
			prices[s.Chain] = s.PriceUSD
		}
		m.log.WithField("chains", len(missing)).Debug("Gap-filled chains from fallback feeder")
	}

	reading := model.GasPriceReading{Prices: prices, CollectedAt: time.Now()}

	if m.cache != nil {
		if err := m.cache.Store(ctx, reading); err != nil {
			m.log.WithError(err).Warn("Failed to cache gas reading")
		}
	}

	return reading, nil
}

// collect fans out to every feeder in parallel and merges their samples
func (m *Manager) collect(ctx context.Context, chains []types.Chain) ([]model.GasSample, []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	samples := make([]model.GasSample, 0, len(chains)*len(m.feeders))
	var fetchErrs []error

	for _, feeder := range m.feeders {
		wg.Add(1)
		go func(f Feeder) {
			defer wg.Done()

			fetched, err := f.Fetch(ctx, chains)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetchErrs = append(fetchErrs, err)
				return
			}
			samples = append(samples, fetched...)
		}(feeder)
	}

	wg.Wait()
	return samples, fetchErrs
}

// aggregateChain reduces one chain's samples to a single price
func (m *Manager) aggregateChain(samples []model.GasSample) model.GasSample {
	switch m.strategy {
	case "median":
		return aggregate.MedianAggregation(samples)
	case "trimmed_mean":
		return aggregate.TrimmedMeanAggregation(samples, m.trimPercent)
	default:
		return aggregate.Weighted(samples)
	}
}

// Status describes the pipeline for health reporting
type Status struct {
	Feeders      int    `json:"feeders"`
	Strategy     string `json:"strategy"`
	CacheEnabled bool   `json:"cache_enabled"`
	BreakerState string `json:"breaker_state,omitempty"`
}

// Status reports the current pipeline configuration and breaker state
func (m *Manager) Status() Status {
	s := Status{
		Feeders:      len(m.feeders),
		Strategy:     m.strategy,
		CacheEnabled: m.cache != nil,
	}
	if m.breaker != nil {
		s.BreakerState = m.breaker.GetState().String()
	}
	return s
}

// Close releases any held resources
func (m *Manager) Close() error {
	if m.cache != nil {
		return m.cache.Close()
	}
	return nil
}

// covers reports whether the reading has a price for every requested chain
func covers(reading *model.GasPriceReading, chains []types.Chain) bool {
	for _, chain := range chains {
		if _, ok := reading.Prices[chain]; !ok {
			return false
		}
	}
	return true
}
