package routing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// scoredPath couples a candidate with its score during selection
type scoredPath struct {
	path    model.Path
	score   float64
	factors []model.ScoringFactor
}

// selectBest scores every candidate and picks the lowest. Exact score
// ties resolve to fewer hops, then higher success probability, then
// the first-discovered candidate. Also reports the worst candidate
// cost so savings can be quoted. Candidates must be non-empty.
func (c *Catalog) selectBest(candidates []model.Path) (scoredPath, float64) {
	var best scoredPath
	var worstCost float64

	for i, p := range candidates {
		score, factors := c.Score(p)
		cand := scoredPath{path: p, score: score, factors: factors}
		if i == 0 {
			best = cand
			worstCost = p.TotalCost()
			continue
		}
		if cost := p.TotalCost(); cost > worstCost {
			worstCost = cost
		}
		if betterThan(cand, best) {
			best = cand
		}
	}
	return best, worstCost
}

// betterThan implements the deterministic candidate ordering. It
// returns false on a full tie, which keeps the earlier candidate.
func betterThan(a, b scoredPath) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.path.Hops() != b.path.Hops() {
		return a.path.Hops() < b.path.Hops()
	}
	if pa, pb := a.path.SuccessProbability(), b.path.SuccessProbability(); pa != pb {
		return pa > pb
	}
	return false
}

// buildRecommendation assembles the final result for the winning path
func (c *Catalog) buildRecommendation(source, destination types.Chain, amount float64, best scoredPath, candidates int, worstCost float64) *model.RouteRecommendation {
	p := best.path
	hops := p.Hops()

	rec := &model.RouteRecommendation{
		RequestID:            uuid.NewString(),
		SourceChain:          source,
		DestinationChain:     destination,
		Amount:               amount,
		Path:                 p,
		TotalCost:            p.TotalCost(),
		TotalTime:            p.TotalTime(),
		TotalHops:            hops,
		SuccessProbability:   p.SuccessProbability(),
		Score:                best.score,
		Objective:            c.objective.String(),
		Recommendation:       c.describe(source, destination, p),
		ScoringFactors:       best.factors,
		CandidatesConsidered: candidates,
		MinimumReceived:      amount * math.Pow(1-c.slippage, float64(hops)),
		CalculatedAt:         time.Now().Unix(),
	}
	if candidates > 1 {
		rec.CostSavings = worstCost - rec.TotalCost
	}
	return rec
}

// describe renders the human-readable rationale. Any path that crosses
// chains mentions bridging; a same-chain transfer never does.
func (c *Catalog) describe(source, destination types.Chain, p model.Path) string {
	switch p.Hops() {
	case 0:
		return fmt.Sprintf("Direct transfer on %s, no cross-chain hop required.", source)
	case 1:
		e := p[0]
		return fmt.Sprintf("Send %s to %s over the %s bridge: $%.2f total fee, about %s, %.1f%% success odds.",
			source, destination, e.Bridge, p.TotalCost(), p.TotalTime(), p.SuccessProbability()*100)
	default:
		return fmt.Sprintf("Route %s using %d bridge hops (%s): $%.2f total fee, about %s, %.1f%% success odds.",
			p.String(), p.Hops(), joinBridges(p.Bridges()), p.TotalCost(), p.TotalTime(), p.SuccessProbability()*100)
	}
}

func joinBridges(bridges []types.Bridge) string {
	parts := make([]string, len(bridges))
	for i, b := range bridges {
		parts[i] = string(b)
	}
	return strings.Join(parts, ", ")
}
