// Package circuitbreaker guards the gas price pipeline against extreme
// readings and degraded source coverage.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, no new readings accepted
	StateHalfOpen              // Testing if sources have recovered
)

// String returns a human readable state name
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker implements the circuit breaker pattern for the gas price
// pipeline. Readings that violate the thresholds trip the circuit; while the
// circuit is open the manager falls back to the last known good reading.
type CircuitBreaker struct {
	// Configuration thresholds for triggering the circuit breaker
	thresholds Thresholds

	// Current state of the circuit breaker (Closed, Open, HalfOpen)
	state State

	// Timestamp of the last circuit trip
	lastTrip time.Time

	// Duration before auto-reset attempt
	resetDelay time.Duration

	// Mutex for thread safety
	mu sync.RWMutex

	// Historical readings used for comparison and fallback
	readingHistory []model.GasPriceReading

	// Count of consecutive successful checks in HalfOpen state
	successCount int

	// Number of successful checks required to close the circuit
	successThreshold int

	// Event callback for monitoring/alerting
	onTripCallback func(reason string, samples []model.GasSample)
}

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// Maximum allowed gas price in USD per bridge transaction
	MaxPrice float64 `json:"max_price"`

	// Maximum allowed relative change of a chain's price between
	// consecutive readings (e.g. 3.0 for 300%)
	MaxChangeRatio float64 `json:"max_change_ratio"`

	// Minimum number of distinct sources required for a valid reading
	MinSources int `json:"min_sources"`

	// Maximum allowed spread of same-chain prices as multiple of their mean
	MaxSpreadRatio float64 `json:"max_spread_ratio,omitempty"`
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful checks needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string, samples []model.GasSample)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Check evaluates the samples against defined thresholds and determines if the
// reading should be accepted. If the circuit is open, it blocks new readings
// and returns an error. If the samples violate thresholds, it trips the
// circuit and returns an error.
func (cb *CircuitBreaker) Check(samples []model.GasSample) error {
	// Acquire a read lock initially to check state
	cb.mu.RLock()
	state := cb.state
	lastTripTime := cb.lastTrip
	cb.mu.RUnlock()

	// If circuit is open, check if it's time for a reset attempt
	if state == StateOpen {
		if time.Since(lastTripTime) > cb.resetDelay {
			cb.transitionToHalfOpen()
		} else {
			return errors.New("circuit breaker open: gas price protection engaged")
		}
	}

	// Now get a write lock for the actual check and potential state modification
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Early exit for empty samples
	if len(samples) == 0 {
		return errors.New("no gas samples provided to circuit breaker")
	}

	// Check if we have enough distinct sources
	if n := countSources(samples); n < cb.thresholds.MinSources {
		reason := fmt.Sprintf("insufficient source count: got %d, need %d",
			n, cb.thresholds.MinSources)
		cb.trip(reason, samples)
		return errors.New(reason)
	}

	// Check each sample for a price threshold violation
	for _, s := range samples {
		if s.PriceUSD > cb.thresholds.MaxPrice {
			reason := fmt.Sprintf("gas price on %s exceeds maximum threshold: %f > %f",
				s.Chain, s.PriceUSD, cb.thresholds.MaxPrice)
			cb.trip(reason, samples)
			return errors.New(reason)
		}
	}

	current := averageByChain(samples)

	// Check for drastic price jumps if we have history
	if len(cb.readingHistory) > 0 {
		lastReading := cb.readingHistory[len(cb.readingHistory)-1]
		for _, chain := range sortedChains(current) {
			lastPrice, ok := lastReading.Prices[chain]
			if !ok || lastPrice <= 0.0001 {
				continue // No usable baseline for this chain
			}
			changeRatio := math.Abs(current[chain]-lastPrice) / lastPrice
			if changeRatio > cb.thresholds.MaxChangeRatio {
				reason := fmt.Sprintf("gas price change on %s too drastic: %.2f%% (threshold: %.2f%%)",
					chain, changeRatio*100, cb.thresholds.MaxChangeRatio*100)
				cb.trip(reason, samples)
				return errors.New(reason)
			}
		}
	}

	// Check for excessive disagreement between sources if threshold is set
	if cb.thresholds.MaxSpreadRatio > 0 {
		if chain, spread, ok := widestSpread(samples); ok && spread > cb.thresholds.MaxSpreadRatio {
			reason := fmt.Sprintf("gas price spread on %s too high: %.2f x mean (threshold: %.2f)",
				chain, spread, cb.thresholds.MaxSpreadRatio)
			cb.trip(reason, samples)
			return errors.New(reason)
		}
	}

	// All checks passed, record the reading and update state
	logrus.Debug("Circuit breaker checks passed")

	// Store this reading for future comparison and fallback
	cb.addToHistory(current)

	// If we're in half-open state, increment success count and check if we can close
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: gas sources have recovered")
		}
	}

	return nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGoodReading returns the most recent reading that passed all checks
func (cb *CircuitBreaker) LastGoodReading() *model.GasPriceReading {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if len(cb.readingHistory) == 0 {
		return nil
	}

	// Return a copy of the latest reading to prevent external modification
	last := cb.readingHistory[len(cb.readingHistory)-1]
	prices := make(map[types.Chain]float64, len(last.Prices))
	for chain, p := range last.Prices {
		prices[chain] = p
	}
	return &model.GasPriceReading{Prices: prices, CollectedAt: last.CollectedAt}
}

// transitionToHalfOpen changes the circuit state to half-open for testing recovery
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing gas source recovery")
	}
}

// trip sets the circuit breaker to open state with the current time
func (cb *CircuitBreaker) trip(reason string, samples []model.GasSample) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	// Call the callback if registered
	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason, samples)
	}
}

// addToHistory appends a reading to the history, maintaining a bounded size
func (cb *CircuitBreaker) addToHistory(prices map[types.Chain]float64) {
	cb.readingHistory = append(cb.readingHistory, model.GasPriceReading{
		Prices:      prices,
		CollectedAt: time.Now(),
	})

	// Keep history bounded to avoid memory growth
	const maxHistorySize = 100
	if len(cb.readingHistory) > maxHistorySize {
		cb.readingHistory = cb.readingHistory[len(cb.readingHistory)-maxHistorySize:]
	}
}

// countSources returns the number of distinct sources across the samples
func countSources(samples []model.GasSample) int {
	seen := make(map[string]struct{})
	for _, s := range samples {
		if s.Source != "" {
			seen[s.Source] = struct{}{}
		}
	}
	return len(seen)
}

// averageByChain returns the weighted average price per chain
func averageByChain(samples []model.GasSample) map[types.Chain]float64 {
	type accum struct {
		weighted float64
		weight   float64
	}
	sums := make(map[types.Chain]*accum)
	for _, s := range samples {
		w := s.Weight
		if w <= 0 {
			w = 1.0
		}
		a, ok := sums[s.Chain]
		if !ok {
			a = &accum{}
			sums[s.Chain] = a
		}
		a.weighted += s.PriceUSD * w
		a.weight += w
	}

	prices := make(map[types.Chain]float64, len(sums))
	for chain, a := range sums {
		if a.weight > 0 {
			prices[chain] = a.weighted / a.weight
		}
	}
	return prices
}

// sortedChains returns the map keys in a stable order so trip reasons are deterministic
func sortedChains(prices map[types.Chain]float64) []types.Chain {
	chains := make([]types.Chain, 0, len(prices))
	for chain := range prices {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// widestSpread returns the chain with the largest (max-min)/mean price spread
// among chains reported by more than one source
func widestSpread(samples []model.GasSample) (types.Chain, float64, bool) {
	grouped := make(map[types.Chain][]float64)
	for _, s := range samples {
		grouped[s.Chain] = append(grouped[s.Chain], s.PriceUSD)
	}

	var (
		worstChain  types.Chain
		worstSpread float64
		found       bool
	)
	for _, chain := range sortedSampleChains(grouped) {
		prices := grouped[chain]
		if len(prices) < 2 {
			continue
		}
		minP, maxP, sum := prices[0], prices[0], 0.0
		for _, p := range prices {
			if p < minP {
				minP = p
			}
			if p > maxP {
				maxP = p
			}
			sum += p
		}
		mean := sum / float64(len(prices))
		if mean <= 0 {
			continue
		}
		spread := (maxP - minP) / mean
		if !found || spread > worstSpread {
			worstChain = chain
			worstSpread = spread
			found = true
		}
	}
	return worstChain, worstSpread, found
}

func sortedSampleChains(grouped map[types.Chain][]float64) []types.Chain {
	chains := make([]types.Chain, 0, len(grouped))
	for chain := range grouped {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}
