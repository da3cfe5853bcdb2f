package routing

import (
	"math"
	"testing"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

func TestFeasibleEdgesFeeFormula(t *testing.T) {
	c := mustCatalog(t, DefaultSettings())
	reading := testReading()

	edges := c.feasibleEdges(types.ChainSolana, types.ChainEthereum, 1000, reading)
	if len(edges) != 2 {
		t.Fatalf("want 2 edges (axelar, wormhole), got %d", len(edges))
	}

	// bridges come back in name order
	axelar, wormhole := edges[0], edges[1]
	if axelar.Bridge != types.BridgeAxelar || wormhole.Bridge != types.BridgeWormhole {
		t.Fatalf("unexpected bridge order: %s, %s", axelar.Bridge, wormhole.Bridge)
	}

	// 0.90 base + 0.1% of 1000 + solana gas
	if want := 0.90 + 1.0 + 0.02; math.Abs(axelar.CostUSD-want) > 1e-9 {
		t.Errorf("axelar cost = %v, want %v", axelar.CostUSD, want)
	}
	// 0.60 base + 0.25% of 1000 + solana gas
	if want := 0.60 + 2.5 + 0.02; math.Abs(wormhole.CostUSD-want) > 1e-9 {
		t.Errorf("wormhole cost = %v, want %v", wormhole.CostUSD, want)
	}

	if math.Abs(wormhole.GasEstimate-0.02) > 1e-9 {
		t.Errorf("gas estimate = %v, want 0.02", wormhole.GasEstimate)
	}
	if wormhole.Time != 5*time.Minute {
		t.Errorf("wormhole time = %v, want 5m", wormhole.Time)
	}
	if wormhole.Reliability != 0.98 {
		t.Errorf("wormhole reliability = %v, want 0.98", wormhole.Reliability)
	}
}

func TestFeasibleEdgesMinimumAmount(t *testing.T) {
	c := mustCatalog(t, DefaultSettings())
	reading := testReading()

	tests := []struct {
		name   string
		amount float64
		want   int
	}{
		{"well above minimums", 1000, 2},
		{"exactly at wormhole minimum", 10, 1},
		{"just below every minimum", 9.99, 0},
		{"between wormhole and axelar minimums", 15, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges := c.feasibleEdges(types.ChainSolana, types.ChainEthereum, tt.amount, reading)
			if len(edges) != tt.want {
				t.Errorf("amount %v: got %d edges, want %d", tt.amount, len(edges), tt.want)
			}
		})
	}
}

func TestGasEstimateMultipliers(t *testing.T) {
	s := DefaultSettings()
	s.GasMultiplier = 2.0
	cs := s.Chains[types.ChainSolana]
	cs.GasMultiplier = 1.5
	s.Chains[types.ChainSolana] = cs
	c := mustCatalog(t, s)

	got := c.gasEstimate(types.ChainSolana, testReading())
	if want := 0.02 * 2.0 * 1.5; math.Abs(got-want) > 1e-12 {
		t.Errorf("gas estimate = %v, want %v", got, want)
	}

	// chains without an explicit multiplier scale by 1.0
	got = c.gasEstimate(types.ChainEthereum, testReading())
	if want := 2.50 * 2.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("gas estimate = %v, want %v", got, want)
	}
}

func TestGasEstimateBaselineFallback(t *testing.T) {
	c := mustCatalog(t, DefaultSettings())

	// a reading that is missing solana falls back to the baseline
	reading := model.GasPriceReading{Prices: map[types.Chain]float64{
		types.ChainEthereum: 3.0,
	}}
	if got := c.gasEstimate(types.ChainSolana, reading); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("fallback gas estimate = %v, want baseline 0.02", got)
	}
	if got := c.gasEstimate(types.ChainEthereum, reading); math.Abs(got-3.0) > 1e-12 {
		t.Errorf("gas estimate = %v, want reading value 3.0", got)
	}
}

func TestEdgesUsePerChainGasOfSender(t *testing.T) {
	c := mustCatalog(t, DefaultSettings())
	reading := testReading()

	// ethereum -> solana pays ethereum gas, not solana gas
	edges := c.feasibleEdges(types.ChainEthereum, types.ChainSolana, 1000, reading)
	if len(edges) == 0 {
		t.Fatal("expected feasible edges")
	}
	for _, e := range edges {
		if math.Abs(e.GasEstimate-2.50) > 1e-9 {
			t.Errorf("%s gas estimate = %v, want sender-side 2.50", e.Bridge, e.GasEstimate)
		}
	}
}
