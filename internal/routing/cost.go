package routing

import (
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// feasibleEdges prices every bridge serving the directed pair for the
// given amount. Bridges whose minimum transfer exceeds the amount are
// excluded, so infeasible hops never reach the enumerator.
func (c *Catalog) feasibleEdges(from, to types.Chain, amount float64, reading model.GasPriceReading) []model.Edge {
	bridges := c.byPair[chainPair{from: from, to: to}]
	if len(bridges) == 0 {
		return nil
	}
	var edges []model.Edge
	for _, bridge := range bridges {
		bs := c.bridgeSettings[bridge]
		if amount < bs.MinAmount {
			continue
		}
		gas := c.gasEstimate(from, reading)
		edges = append(edges, model.Edge{
			FromChain:   from,
			ToChain:     to,
			Bridge:      bridge,
			CostUSD:     bs.BaseFee + bs.FeePercent*amount + gas,
			GasEstimate: gas,
			Time:        bs.BaseTime.Duration,
			Reliability: bs.Reliability,
		})
	}
	return edges
}

// gasEstimate converts the gas reading for the submitting chain into
// the USD gas portion of an edge cost. The sending side pays gas, so
// the from chain's price applies. A chain missing from the reading
// falls back to its configured baseline.
func (c *Catalog) gasEstimate(from types.Chain, reading model.GasPriceReading) float64 {
	cs := c.chainSettings[from]
	price, ok := reading.Price(from)
	if !ok {
		price = cs.GasBaseline
	}
	mult := cs.GasMultiplier
	if mult == 0 {
		mult = 1.0
	}
	return price * c.gasMultiplier * mult
}
