// Package analytics accumulates statistics over served route recommendations
// and ships batches of them to external sinks.
package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/model"
)

// Collector keeps running totals over every recommendation the service has
// served. Snapshot is cheap enough to call from a request handler.
type Collector struct {
	mu sync.RWMutex

	totalRoutes  int64
	totalHops    int64
	totalCost    float64
	totalSavings float64
	totalTime    time.Duration

	byObjective map[string]int64
	bridgeUsage map[string]int64
	pairUsage   map[string]int64

	startedAt time.Time
}

// Stats is a point-in-time view of the collector
type Stats struct {
	TotalRoutes        int64            `json:"total_routes"`
	AverageCostUSD     float64          `json:"average_cost_usd"`
	AverageHops        float64          `json:"average_hops"`
	AverageTimeSeconds float64          `json:"average_time_seconds"`
	TotalSavingsUSD    float64          `json:"total_savings_usd"`
	ByObjective        map[string]int64 `json:"by_objective"`
	BridgeUsage        map[string]int64 `json:"bridge_usage"`
	PairUsage          map[string]int64 `json:"pair_usage"`
	UptimeSeconds      float64          `json:"uptime_seconds"`
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		byObjective: make(map[string]int64),
		bridgeUsage: make(map[string]int64),
		pairUsage:   make(map[string]int64),
		startedAt:   time.Now(),
	}
}

// Record folds one recommendation into the running totals
func (c *Collector) Record(rec *model.RouteRecommendation) {
	if rec == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRoutes++
	c.totalHops += int64(rec.TotalHops)
	c.totalCost += rec.TotalCost
	c.totalSavings += rec.CostSavings
	c.totalTime += rec.TotalTime

	c.byObjective[rec.Objective]++
	c.pairUsage[fmt.Sprintf("%s->%s", rec.SourceChain, rec.DestinationChain)]++
	for _, edge := range rec.Path {
		c.bridgeUsage[string(edge.Bridge)]++
	}
}

// Snapshot returns a copy of the current totals
func (c *Collector) Snapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		TotalRoutes:     c.totalRoutes,
		TotalSavingsUSD: c.totalSavings,
		ByObjective:     copyCounts(c.byObjective),
		BridgeUsage:     copyCounts(c.bridgeUsage),
		PairUsage:       copyCounts(c.pairUsage),
		UptimeSeconds:   time.Since(c.startedAt).Seconds(),
	}

	if c.totalRoutes > 0 {
		n := float64(c.totalRoutes)
		stats.AverageCostUSD = c.totalCost / n
		stats.AverageHops = float64(c.totalHops) / n
		stats.AverageTimeSeconds = c.totalTime.Seconds() / n
	}

	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
