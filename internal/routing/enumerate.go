package routing

import (
	"fmt"

	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// EnumeratePaths produces every simple path from source to destination
// within the hop bound, with edges priced for the given amount and gas
// reading. A same-chain request yields exactly one empty path. Both
// chains must be in the catalog, and at least one path must survive
// the feasibility checks, otherwise an error is returned.
func (c *Catalog) EnumeratePaths(source, destination types.Chain, amount float64, reading model.GasPriceReading) ([]model.Path, error) {
	if !c.HasChain(source) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, source)
	}
	if !c.HasChain(destination) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, destination)
	}
	if source == destination {
		return []model.Path{{}}, nil
	}

	var paths []model.Path
	visited := map[types.Chain]bool{source: true}
	c.walk(source, destination, amount, reading, visited, nil, &paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s to %s for amount %g", ErrNoRouteFound, source, destination, amount)
	}
	return paths, nil
}

// walk extends the trail depth-first, one feasible edge at a time.
// Chains are tried in ascending order and bridges per pair in name
// order, so discovery order is deterministic for a fixed catalog.
func (c *Catalog) walk(current, destination types.Chain, amount float64, reading model.GasPriceReading, visited map[types.Chain]bool, trail model.Path, out *[]model.Path) {
	if len(trail) >= c.maxHops {
		return
	}
	for _, next := range c.chains {
		if visited[next] {
			continue
		}
		for _, edge := range c.feasibleEdges(current, next, amount, reading) {
			extended := make(model.Path, len(trail)+1)
			copy(extended, trail)
			extended[len(trail)] = edge

			if next == destination {
				*out = append(*out, extended)
				continue
			}
			visited[next] = true
			c.walk(next, destination, amount, reading, visited, extended, out)
			delete(visited, next)
		}
	}
}
