package routing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// GasSource supplies the per-chain gas prices a routing call uses to
// cost its edges. Refresh is called once at the start of every call
// and must return a price for each requested chain.
type GasSource interface {
	Refresh(ctx context.Context, chains []types.Chain) (model.GasPriceReading, error)
}

// Optimizer runs one routing request end to end: gas refresh, path
// enumeration, scoring and selection. Safe for concurrent use; each
// call works on its own gas reading and candidate set.
type Optimizer struct {
	catalog *Catalog
	gas     GasSource
	log     *logrus.Entry

	lastReading atomic.Pointer[model.GasPriceReading]
}

// NewOptimizer wires a catalog to a gas source
func NewOptimizer(catalog *Catalog, gas GasSource) (*Optimizer, error) {
	if catalog == nil {
		return nil, errors.New("catalog must not be nil")
	}
	if gas == nil {
		return nil, errors.New("gas source must not be nil")
	}
	return &Optimizer{
		catalog: catalog,
		gas:     gas,
		log:     logrus.WithField("component", "optimizer"),
	}, nil
}

// Catalog returns the catalog the optimizer routes against
func (o *Optimizer) Catalog() *Catalog {
	return o.catalog
}

// LastGasReading returns the reading used by the most recent routing
// call, or nil before the first call.
func (o *Optimizer) LastGasReading() *model.GasPriceReading {
	return o.lastReading.Load()
}

// FindOptimalRoute recommends the best path for moving amount from
// source to destination. Gas prices are refreshed once per call and
// every candidate is priced against that single reading, so one
// recommendation is internally consistent even while prices move.
func (o *Optimizer) FindOptimalRoute(ctx context.Context, source, destination types.Chain, amount float64) (*model.RouteRecommendation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %g", amount)
	}

	reading, err := o.gas.Refresh(ctx, o.catalog.Chains())
	if err != nil {
		return nil, fmt.Errorf("refresh gas prices: %w", err)
	}
	o.lastReading.Store(&reading)

	candidates, err := o.catalog.EnumeratePaths(source, destination, amount, reading)
	if err != nil {
		return nil, err
	}

	best, worstCost := o.catalog.selectBest(candidates)
	rec := o.catalog.buildRecommendation(source, destination, amount, best, len(candidates), worstCost)

	o.log.WithFields(logrus.Fields{
		"request_id":  rec.RequestID,
		"source":      source,
		"destination": destination,
		"amount":      amount,
		"candidates":  rec.CandidatesConsidered,
		"hops":        rec.TotalHops,
		"total_cost":  rec.TotalCost,
		"score":       rec.Score,
	}).Debug("Route selected")

	return rec, nil
}
