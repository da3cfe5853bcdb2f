// Package routing models the network of chains and bridges as a
// weighted graph, enumerates feasible multi-hop paths and recommends
// the best route for a transfer under a configurable objective.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Settings is the construction-time configuration of a Catalog.
// Zero values for GasMultiplier, BalanceCostWeight, ReferenceCost and
// ReferenceTime fall back to the package defaults.
type Settings struct {
	Chains  map[types.Chain]types.ChainSettings
	Bridges map[types.Bridge]types.BridgeSettings

	Objective         string
	MaxHops           int
	SlippageTolerance float64
	GasMultiplier     float64

	BalanceCostWeight float64
	ReferenceCost     float64
	ReferenceTime     time.Duration
}

// Defaults for the balance-objective normalization. Documented and
// fixed so that scores are reproducible for a given input.
const (
	DefaultBalanceCostWeight = 0.5
	DefaultReferenceCost     = 10.0
	DefaultReferenceTime     = 10 * time.Minute
)

// DefaultSettings returns a Settings populated with the built-in
// chain and bridge catalogs.
func DefaultSettings() Settings {
	return Settings{
		Chains:            types.DefaultChainSettings(),
		Bridges:           types.DefaultBridgeSettings(),
		Objective:         "balance",
		MaxHops:           3,
		SlippageTolerance: 0.005,
		GasMultiplier:     1.0,
		BalanceCostWeight: DefaultBalanceCostWeight,
		ReferenceCost:     DefaultReferenceCost,
		ReferenceTime:     DefaultReferenceTime,
	}
}

type chainPair struct {
	from types.Chain
	to   types.Chain
}

// Catalog is the immutable chain/bridge graph a routing request runs
// against. Constructed once, validated eagerly, never mutated.
type Catalog struct {
	objective         Objective
	maxHops           int
	slippage          float64
	gasMultiplier     float64
	balanceCostWeight float64
	referenceCost     float64
	referenceTime     time.Duration

	chains        []types.Chain
	chainSettings map[types.Chain]types.ChainSettings

	bridges        []types.Bridge
	bridgeSettings map[types.Bridge]types.BridgeSettings

	byPair map[chainPair][]types.Bridge
}

// NewCatalog validates the settings and builds the routing graph.
// Every configuration problem is reported, not just the first.
func NewCatalog(s Settings) (*Catalog, error) {
	var errs []error

	if s.MaxHops < 1 {
		errs = append(errs, fmt.Errorf("max hops must be at least 1, got %d", s.MaxHops))
	}
	if s.SlippageTolerance < 0 || s.SlippageTolerance >= 1 {
		errs = append(errs, fmt.Errorf("slippage tolerance must be in [0,1), got %g", s.SlippageTolerance))
	}
	if s.GasMultiplier < 0 {
		errs = append(errs, fmt.Errorf("gas multiplier must not be negative, got %g", s.GasMultiplier))
	}
	if s.BalanceCostWeight < 0 || s.BalanceCostWeight > 1 {
		errs = append(errs, fmt.Errorf("balance cost weight must be in [0,1], got %g", s.BalanceCostWeight))
	}

	objective, err := ParseObjective(s.Objective)
	if err != nil {
		errs = append(errs, err)
	}

	chainSettings := make(map[types.Chain]types.ChainSettings, len(s.Chains))
	var chains []types.Chain
	for chain, cs := range s.Chains {
		if !cs.Enabled {
			continue
		}
		if cs.GasBaseline <= 0 {
			errs = append(errs, fmt.Errorf("chain %s: gas baseline must be positive, got %g", chain, cs.GasBaseline))
		}
		chainSettings[chain] = cs
		chains = append(chains, chain)
	}
	if len(chains) == 0 {
		errs = append(errs, errors.New("chain set is empty"))
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	bridgeSettings := make(map[types.Bridge]types.BridgeSettings, len(s.Bridges))
	var bridges []types.Bridge
	for bridge, bs := range s.Bridges {
		if bs.Reliability <= 0 || bs.Reliability > 1 {
			errs = append(errs, fmt.Errorf("bridge %s: reliability must be in (0,1], got %g", bridge, bs.Reliability))
		}
		if bs.BaseFee < 0 {
			errs = append(errs, fmt.Errorf("bridge %s: base fee must not be negative, got %g", bridge, bs.BaseFee))
		}
		if bs.FeePercent < 0 || bs.FeePercent >= 1 {
			errs = append(errs, fmt.Errorf("bridge %s: fee percent must be in [0,1), got %g", bridge, bs.FeePercent))
		}
		if bs.MinAmount < 0 {
			errs = append(errs, fmt.Errorf("bridge %s: min amount must not be negative, got %g", bridge, bs.MinAmount))
		}
		if bs.BaseTime.Duration <= 0 {
			errs = append(errs, fmt.Errorf("bridge %s: base time must be positive, got %s", bridge, bs.BaseTime.Duration))
		}
		if len(bs.Chains) < 2 {
			errs = append(errs, fmt.Errorf("bridge %s: must list at least two chains", bridge))
		}
		for _, chain := range bs.Chains {
			if _, known := s.Chains[chain]; !known {
				errs = append(errs, fmt.Errorf("bridge %s: references unknown chain %s", bridge, chain))
			}
		}
		bridgeSettings[bridge] = bs
		bridges = append(bridges, bridge)
	}
	if len(bridges) == 0 {
		errs = append(errs, errors.New("bridge set is empty"))
	}
	sort.Slice(bridges, func(i, j int) bool { return bridges[i] < bridges[j] })

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c := &Catalog{
		objective:         objective,
		maxHops:           s.MaxHops,
		slippage:          s.SlippageTolerance,
		gasMultiplier:     s.GasMultiplier,
		balanceCostWeight: s.BalanceCostWeight,
		referenceCost:     s.ReferenceCost,
		referenceTime:     s.ReferenceTime,
		chains:            chains,
		chainSettings:     chainSettings,
		bridges:           bridges,
		bridgeSettings:    bridgeSettings,
		byPair:            make(map[chainPair][]types.Bridge),
	}
	if c.gasMultiplier == 0 {
		c.gasMultiplier = 1.0
	}
	if c.balanceCostWeight == 0 {
		c.balanceCostWeight = DefaultBalanceCostWeight
	}
	if c.referenceCost == 0 {
		c.referenceCost = DefaultReferenceCost
	}
	if c.referenceTime == 0 {
		c.referenceTime = DefaultReferenceTime
	}

	// Adjacency index: for every ordered pair a bridge serves, record
	// it under that pair. Disabled chains drop out here, and lists are
	// sorted so enumeration order is stable.
	for _, bridge := range c.bridges {
		bs := c.bridgeSettings[bridge]
		for _, from := range bs.Chains {
			if _, ok := c.chainSettings[from]; !ok {
				continue
			}
			for _, to := range bs.Chains {
				if from == to {
					continue
				}
				if _, ok := c.chainSettings[to]; !ok {
					continue
				}
				pair := chainPair{from: from, to: to}
				c.byPair[pair] = append(c.byPair[pair], bridge)
			}
		}
	}
	for pair := range c.byPair {
		list := c.byPair[pair]
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	}

	return c, nil
}

// Chains returns the enabled chains in ascending order
func (c *Catalog) Chains() []types.Chain {
	out := make([]types.Chain, len(c.chains))
	copy(out, c.chains)
	return out
}

// Bridges returns the configured bridges in ascending order
func (c *Catalog) Bridges() []types.Bridge {
	out := make([]types.Bridge, len(c.bridges))
	copy(out, c.bridges)
	return out
}

// HasChain reports whether the chain is enabled in the catalog
func (c *Catalog) HasChain(chain types.Chain) bool {
	_, ok := c.chainSettings[chain]
	return ok
}

// ChainSettings returns the settings for a chain and whether it exists
func (c *Catalog) ChainSettings(chain types.Chain) (types.ChainSettings, bool) {
	cs, ok := c.chainSettings[chain]
	return cs, ok
}

// BridgeSettings returns the settings for a bridge and whether it exists
func (c *Catalog) BridgeSettings(bridge types.Bridge) (types.BridgeSettings, bool) {
	bs, ok := c.bridgeSettings[bridge]
	return bs, ok
}

// BridgesBetween returns the bridges serving the directed pair, in
// ascending name order.
func (c *Catalog) BridgesBetween(from, to types.Chain) []types.Bridge {
	list := c.byPair[chainPair{from: from, to: to}]
	if len(list) == 0 {
		return nil
	}
	out := make([]types.Bridge, len(list))
	copy(out, list)
	return out
}

// Objective returns the configured optimization objective
func (c *Catalog) Objective() Objective {
	return c.objective
}

// MaxHops returns the configured hop bound
func (c *Catalog) MaxHops() int {
	return c.maxHops
}

// SlippageTolerance returns the per-hop slippage fraction
func (c *Catalog) SlippageTolerance() float64 {
	return c.slippage
}

// GasMultiplier returns the global gas-price scaling factor
func (c *Catalog) GasMultiplier() float64 {
	return c.gasMultiplier
}
