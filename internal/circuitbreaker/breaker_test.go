package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

func TestCircuitBreaker_BasicFunctionality(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0, // $100 max gas price
		MaxChangeRatio: 3.0,   // 300% max price jump
		MinSources:     2,     // Min 2 sources
		MaxSpreadRatio: 1.0,   // Spread shouldn't exceed 1x mean
	}

	cb := New(thresholds).WithResetDelay(50 * time.Millisecond)
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit breaker should start closed")

	// Valid samples should pass
	validSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.4, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 2.6, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(validSamples)
	assert.NoError(t, err, "Valid samples should pass checks")
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should remain closed for valid samples")
}

func TestCircuitBreaker_PriceThreshold(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	cb := New(thresholds)

	// Samples with an excessive price should trip the circuit
	invalidSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.5, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 150.0, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()}, // Exceeds MaxPrice
	}

	err := cb.Check(invalidSamples)
	assert.Error(t, err, "Excessive price should trip the circuit")
	assert.Equal(t, StateOpen, cb.GetState(), "Circuit should be open after trip")
	assert.Contains(t, err.Error(), "exceeds maximum threshold", "Error should mention the price threshold")
}

func TestCircuitBreaker_PriceJump(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	cb := New(thresholds)

	// First reading to establish a baseline
	baselineSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.4, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 2.6, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(baselineSamples)
	require.NoError(t, err, "Baseline samples should pass")

	// Second reading with a drastic price jump (2.5 -> 12.5, 400%)
	jumpedSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 12.4, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 12.6, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err = cb.Check(jumpedSamples)
	assert.Error(t, err, "Drastic price jump should trip the circuit")
	assert.Contains(t, err.Error(), "too drastic", "Error should mention the price change")
}

func TestCircuitBreaker_InsufficientSources(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	cb := New(thresholds)

	// Only one source (should be minimum 2)
	insufficientSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.5, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainPolygon, PriceUSD: 0.05, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(insufficientSamples)
	assert.Error(t, err, "Insufficient source count should trip the circuit")
	assert.Contains(t, err.Error(), "insufficient source count", "Error should mention the source count")
}

func TestCircuitBreaker_Recovery(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	cb := New(thresholds).
		WithResetDelay(50 * time.Millisecond).
		WithSuccessThreshold(1)

	// Trip the circuit
	invalidSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 150.0, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()}, // Exceeds MaxPrice
		{Chain: types.ChainEthereum, PriceUSD: 2.5, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(invalidSamples)
	require.Error(t, err, "Should trip circuit with invalid samples")
	assert.Equal(t, StateOpen, cb.GetState(), "Circuit should be open after trip")

	// Wait for reset delay
	time.Sleep(60 * time.Millisecond)

	// Valid samples after the reset delay should transition to half-open
	validSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.4, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 2.6, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err = cb.Check(validSamples)
	assert.NoError(t, err, "Valid samples should pass in half-open state")
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should close after successful check in half-open state")
}

func TestCircuitBreaker_LastGoodReading(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	cb := New(thresholds)

	// No readings yet
	assert.Nil(t, cb.LastGoodReading(), "LastGoodReading should return nil if no reading exists")

	// Add valid samples
	validSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.4, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 2.6, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainSolana, PriceUSD: 0.02, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(validSamples)
	require.NoError(t, err, "Valid samples should pass")

	lastGood := cb.LastGoodReading()
	require.NotNil(t, lastGood, "LastGoodReading should return a reading after a successful check")
	assert.InDelta(t, 2.5, lastGood.Prices[types.ChainEthereum], 1e-9, "Reading should hold the weighted ethereum price")
	assert.InDelta(t, 0.02, lastGood.Prices[types.ChainSolana], 1e-9, "Reading should hold the solana price")
}

func TestCircuitBreaker_CallbackExecution(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	reasonCh := make(chan string, 1)
	cb := New(thresholds).WithTripCallback(func(reason string, samples []model.GasSample) {
		reasonCh <- reason
	})

	// Trip the circuit
	invalidSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 150.0, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()}, // Exceeds MaxPrice
		{Chain: types.ChainEthereum, PriceUSD: 2.5, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(invalidSamples)
	require.Error(t, err, "Should trip circuit with invalid samples")

	// The callback executes in a goroutine
	select {
	case reason := <-reasonCh:
		assert.Contains(t, reason, "exceeds maximum threshold", "Callback reason should explain the trip")
	case <-time.After(time.Second):
		t.Fatal("trip callback was not executed")
	}
}

func TestCircuitBreaker_ManualReset(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	cb := New(thresholds)

	// Trip the circuit
	invalidSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 150.0, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()}, // Exceeds MaxPrice
		{Chain: types.ChainEthereum, PriceUSD: 2.5, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(invalidSamples)
	require.Error(t, err, "Should trip circuit with invalid samples")
	assert.Equal(t, StateOpen, cb.GetState(), "Circuit should be open after trip")

	// Manually reset
	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should be closed after manual reset")

	// Should accept valid samples now
	validSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.4, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 2.6, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
	}

	err = cb.Check(validSamples)
	assert.NoError(t, err, "Valid samples should pass after manual reset")
}

func TestCircuitBreaker_SpreadCheck(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
		MaxSpreadRatio: 0.5, // Spread shouldn't exceed 0.5x mean
	}

	cb := New(thresholds)

	// Agreeing sources should pass
	consistentSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 2.4, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 2.5, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 2.6, Weight: 1, Source: "source3", CollectedAt: time.Now().Unix()},
	}

	err := cb.Check(consistentSamples)
	assert.NoError(t, err, "Agreeing sources should pass the spread check")

	// Highly divergent sources should trip the circuit
	divergentSamples := []model.GasSample{
		{Chain: types.ChainEthereum, PriceUSD: 1.0, Weight: 1, Source: "source1", CollectedAt: time.Now().Unix()},
		{Chain: types.ChainEthereum, PriceUSD: 5.0, Weight: 1, Source: "source2", CollectedAt: time.Now().Unix()}, // Big disagreement
		{Chain: types.ChainEthereum, PriceUSD: 1.2, Weight: 1, Source: "source3", CollectedAt: time.Now().Unix()},
	}

	cb.Reset() // Reset from previous tests
	err = cb.Check(divergentSamples)
	assert.Error(t, err, "Divergent sources should trip the circuit")
	assert.Contains(t, err.Error(), "spread", "Error should mention the price spread")
}

func TestCircuitBreaker_EmptySamples(t *testing.T) {
	thresholds := Thresholds{
		MaxPrice:       100.0,
		MaxChangeRatio: 3.0,
		MinSources:     2,
	}

	cb := New(thresholds)

	// Empty samples should error
	err := cb.Check([]model.GasSample{})
	assert.Error(t, err, "Empty samples should cause error")
	assert.Contains(t, err.Error(), "no gas samples provided", "Error should mention the lack of samples")
}
