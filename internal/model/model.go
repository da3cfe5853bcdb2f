// Package model defines the core data structures for the route-optimizer-ea.
package model

import (
	"strings"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// GasSample represents a single gas price observation for one chain.
// This is the raw data point that flows through the gas pipeline
// before aggregation.
type GasSample struct {
	// Chain is the network this observation belongs to
	Chain types.Chain `json:"chain"`

	// PriceUSD is the estimated cost of one bridge transaction on the
	// chain, in US dollars
	PriceUSD float64 `json:"price_usd"`

	// Source is the unique identifier of the feeder that produced it
	Source string `json:"source"`

	// CollectedAt is the Unix timestamp when this sample was collected
	CollectedAt int64 `json:"collected_at"`

	// Weight for aggregation across sources
	Weight float64 `json:"weight,omitempty"`

	// Confidence interval or data quality score
	Confidence float64 `json:"confidence,omitempty"`

	// Any error message associated with this sample
	Error string `json:"error,omitempty"`
}

// NewGasSample creates a sample with the current timestamp
func NewGasSample(chain types.Chain, priceUSD float64, source string) GasSample {
	return GasSample{
		Chain:       chain,
		PriceUSD:    priceUSD,
		Source:      source,
		CollectedAt: time.Now().Unix(),
		Weight:      1.0,
	}
}

// IsValid performs basic validation on this sample
func (s GasSample) IsValid() bool {
	return s.PriceUSD > 0 &&
		s.Chain != "" &&
		s.Source != "" &&
		time.Since(time.Unix(s.CollectedAt, 0)) < 24*time.Hour
}

// WithConfidence adds a confidence score to the sample
func (s GasSample) WithConfidence(confidence float64) GasSample {
	s.Confidence = confidence
	return s
}

// GasPriceReading is one aggregated gas price per chain, taken at a
// single point in time. Routing calls price every edge against one
// reading so a route is costed consistently.
type GasPriceReading struct {
	Prices      map[types.Chain]float64 `json:"prices"`
	CollectedAt time.Time               `json:"collected_at"`
}

// Price returns the reading for a chain, reporting whether one exists
func (r GasPriceReading) Price(chain types.Chain) (float64, bool) {
	p, ok := r.Prices[chain]
	return p, ok
}

// Edge is a single bridge transfer between two chains, priced for a
// specific amount and gas reading.
type Edge struct {
	FromChain   types.Chain   `json:"from_chain"`
	ToChain     types.Chain   `json:"to_chain"`
	Bridge      types.Bridge  `json:"bridge"`
	CostUSD     float64       `json:"cost_usd"`
	GasEstimate float64       `json:"gas_estimate_usd"` // gas portion of CostUSD
	Time        time.Duration `json:"time_ns"`
	Reliability float64       `json:"reliability"`
}

// Path is an ordered sequence of edges from a source chain to a
// destination chain. An empty path is a same-chain transfer.
type Path []Edge

// Hops returns the number of bridge transfers in the path
func (p Path) Hops() int {
	return len(p)
}

// TotalCost sums the edge costs in path order
func (p Path) TotalCost() float64 {
	var total float64
	for _, e := range p {
		total += e.CostUSD
	}
	return total
}

// TotalTime sums the edge transfer times
func (p Path) TotalTime() time.Duration {
	var total time.Duration
	for _, e := range p {
		total += e.Time
	}
	return total
}

// SuccessProbability is the product of edge reliabilities, 1.0 for an
// empty path. Adding an edge never increases it.
func (p Path) SuccessProbability() float64 {
	prob := 1.0
	for _, e := range p {
		prob *= e.Reliability
	}
	return prob
}

// Chains returns the chain sequence from source to destination.
// Empty for a same-chain path.
func (p Path) Chains() []types.Chain {
	if len(p) == 0 {
		return nil
	}
	chains := make([]types.Chain, 0, len(p)+1)
	chains = append(chains, p[0].FromChain)
	for _, e := range p {
		chains = append(chains, e.ToChain)
	}
	return chains
}

// Bridges returns the bridge used at each hop
func (p Path) Bridges() []types.Bridge {
	if len(p) == 0 {
		return nil
	}
	bridges := make([]types.Bridge, 0, len(p))
	for _, e := range p {
		bridges = append(bridges, e.Bridge)
	}
	return bridges
}

// String renders the chain sequence as "a -> b -> c"
func (p Path) String() string {
	chains := p.Chains()
	parts := make([]string, len(chains))
	for i, c := range chains {
		parts[i] = string(c)
	}
	return strings.Join(parts, " -> ")
}

// ScoringFactor records one component of a route score so callers can
// see how a recommendation was ranked.
type ScoringFactor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// RouteRecommendation is the full answer to a routing request: the
// chosen path plus its aggregate estimates and scoring breakdown.
type RouteRecommendation struct {
	RequestID            string          `json:"request_id"`
	SourceChain          types.Chain     `json:"source_chain"`
	DestinationChain     types.Chain     `json:"destination_chain"`
	Amount               float64         `json:"amount"`
	Path                 Path            `json:"path"`
	TotalCost            float64         `json:"total_cost_usd"`
	TotalTime            time.Duration   `json:"total_time_ns"`
	TotalHops            int             `json:"total_hops"`
	SuccessProbability   float64         `json:"success_probability"`
	Score                float64         `json:"score"`
	Objective            string          `json:"objective"`
	Recommendation       string          `json:"recommendation"`
	ScoringFactors       []ScoringFactor `json:"scoring_factors,omitempty"`
	CandidatesConsidered int             `json:"candidates_considered"`
	CostSavings          float64         `json:"cost_savings_usd"`
	MinimumReceived      float64         `json:"minimum_received"`
	CalculatedAt         int64           `json:"calculated_at"`
}
