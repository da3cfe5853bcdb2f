package routing

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/model"
)

// Objective selects the metric used to rank candidate paths. The set
// is closed: adding an objective means adding a variant here and a
// handler in Score.
type Objective uint8

const (
	// ObjectiveCost ranks purely by total USD cost
	ObjectiveCost Objective = iota
	// ObjectiveSpeed ranks purely by total transfer time
	ObjectiveSpeed
	// ObjectiveBalance combines normalized cost and time
	ObjectiveBalance
)

// ParseObjective maps a configuration string onto an Objective
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cost":
		return ObjectiveCost, nil
	case "speed":
		return ObjectiveSpeed, nil
	case "balance", "balanced":
		return ObjectiveBalance, nil
	default:
		return ObjectiveCost, fmt.Errorf("unknown objective %q", s)
	}
}

// String returns the configuration spelling of the objective
func (o Objective) String() string {
	switch o {
	case ObjectiveSpeed:
		return "speed"
	case ObjectiveBalance:
		return "balance"
	default:
		return "cost"
	}
}

// Score evaluates a candidate path under the catalog's objective.
// Lower is better. The returned factors record how the score was
// assembled so callers can explain a ranking.
func (c *Catalog) Score(p model.Path) (float64, []model.ScoringFactor) {
	switch c.objective {
	case ObjectiveSpeed:
		return scoreSpeed(p)
	case ObjectiveBalance:
		return scoreBalance(p, c.balanceCostWeight, c.referenceCost, c.referenceTime)
	default:
		return scoreCost(p)
	}
}

// scoreCost is the total path cost in USD
func scoreCost(p model.Path) (float64, []model.ScoringFactor) {
	cost := p.TotalCost()
	return cost, []model.ScoringFactor{
		{Name: "total_cost_usd", Value: cost, Weight: 1, Contribution: cost},
	}
}

// scoreSpeed is the total transfer time in seconds
func scoreSpeed(p model.Path) (float64, []model.ScoringFactor) {
	seconds := p.TotalTime().Seconds()
	return seconds, []model.ScoringFactor{
		{Name: "total_time_seconds", Value: seconds, Weight: 1, Contribution: seconds},
	}
}

// scoreBalance combines cost and time, each normalized against a fixed
// reference scale so both contribute on the same order of magnitude.
// With the default weights a path costing the reference cost and
// taking the reference time scores exactly 1.0. The normalization is
// fixed per catalog, never per request, so equal inputs always produce
// equal scores.
func scoreBalance(p model.Path, costWeight, referenceCost float64, referenceTime time.Duration) (float64, []model.ScoringFactor) {
	normCost := p.TotalCost() / referenceCost
	normTime := p.TotalTime().Seconds() / referenceTime.Seconds()
	timeWeight := 1 - costWeight

	score := costWeight*normCost + timeWeight*normTime
	return score, []model.ScoringFactor{
		{Name: "normalized_cost", Value: normCost, Weight: costWeight, Contribution: costWeight * normCost},
		{Name: "normalized_time", Value: normTime, Weight: timeWeight, Contribution: timeWeight * normTime},
	}
}
