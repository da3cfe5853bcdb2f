// Package types contains shared type definitions used across multiple packages
package types

import "time"

// Chain represents a blockchain network that can appear in a route
type Chain string

// Supported blockchain networks
const (
	ChainSolana    Chain = "solana"
	ChainEthereum  Chain = "ethereum"
	ChainPolygon   Chain = "polygon"
	ChainArbitrum  Chain = "arbitrum"
	ChainOptimism  Chain = "optimism"
	ChainBase      Chain = "base"
	ChainAvalanche Chain = "avalanche"
)

// Bridge represents a cross-chain bridge protocol
type Bridge string

// Supported bridge protocols
const (
	BridgeWormhole Bridge = "wormhole"
	BridgeStargate Bridge = "stargate"
	BridgeAcross   Bridge = "across"
	BridgeHop      Bridge = "hop"
	BridgeAxelar   Bridge = "axelar"
	BridgeCBridge  Bridge = "cbridge"
)

// Duration wraps time.Duration so bridge settings can be written as
// strings like "90s" or "5m" in TOML files
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ChainSettings holds configuration for a specific blockchain network
type ChainSettings struct {
	Enabled           bool    `toml:"enabled" json:"enabled"`
	RPCEndpoint       string  `toml:"rpc_endpoint" json:"rpc_endpoint,omitempty"`
	GasOracleEndpoint string  `toml:"gas_oracle_endpoint" json:"gas_oracle_endpoint,omitempty"`
	APIKeyEnv         string  `toml:"api_key_env" json:"api_key_env,omitempty"`
	GasBaseline       float64 `toml:"gas_baseline" json:"gas_baseline"`           // USD per bridge transaction
	GasUnits          float64 `toml:"gas_units" json:"gas_units,omitempty"`       // gas units per bridge transaction
	NativeTokenUSD    float64 `toml:"native_token_usd" json:"native_token_usd,omitempty"`
	GasMultiplier     float64 `toml:"gas_multiplier" json:"gas_multiplier,omitempty"` // per-chain gas scaling, 0 means 1.0
}

// BridgeSettings holds the fee schedule and operational profile of one
// bridge. A bridge serves every ordered pair of the chains it lists.
type BridgeSettings struct {
	BaseFee     float64  `toml:"base_fee" json:"base_fee"`       // flat USD fee
	FeePercent  float64  `toml:"fee_percent" json:"fee_percent"` // fraction of transferred amount
	BaseTime    Duration `toml:"base_time" json:"base_time"`
	Reliability float64  `toml:"reliability" json:"reliability"` // per-hop success probability in (0,1]
	MinAmount   float64  `toml:"min_amount" json:"min_amount"`
	Chains      []Chain  `toml:"chains" json:"chains"`
}

// Serves reports whether the bridge connects both given chains
func (b BridgeSettings) Serves(from, to Chain) bool {
	if from == to {
		return false
	}
	var hasFrom, hasTo bool
	for _, c := range b.Chains {
		if c == from {
			hasFrom = true
		}
		if c == to {
			hasTo = true
		}
	}
	return hasFrom && hasTo
}

// DefaultChainSettings returns the built-in chain catalog
func DefaultChainSettings() map[Chain]ChainSettings {
	return map[Chain]ChainSettings{
		ChainSolana: {
			Enabled:     true,
			GasBaseline: 0.02,
		},
		ChainEthereum: {
			Enabled:        true,
			GasBaseline:    2.50,
			GasUnits:       150000,
			NativeTokenUSD: 3000,
		},
		ChainPolygon: {
			Enabled:        true,
			GasBaseline:    0.05,
			GasUnits:       150000,
			NativeTokenUSD: 0.50,
		},
		ChainArbitrum: {
			Enabled:        true,
			GasBaseline:    0.12,
			GasUnits:       150000,
			NativeTokenUSD: 3000,
		},
		ChainOptimism: {
			Enabled:        true,
			GasBaseline:    0.10,
			GasUnits:       150000,
			NativeTokenUSD: 3000,
		},
		ChainBase: {
			Enabled:        true,
			GasBaseline:    0.08,
			GasUnits:       150000,
			NativeTokenUSD: 3000,
		},
		ChainAvalanche: {
			Enabled:        true,
			GasBaseline:    0.15,
			GasUnits:       150000,
			NativeTokenUSD: 30,
		},
	}
}

// DefaultBridgeSettings returns the built-in bridge catalog. Fees are
// USD, fee percentages are fractions of the transferred amount.
func DefaultBridgeSettings() map[Bridge]BridgeSettings {
	return map[Bridge]BridgeSettings{
		BridgeWormhole: {
			BaseFee:     0.60,
			FeePercent:  0.0025,
			BaseTime:    Duration{5 * time.Minute},
			Reliability: 0.98,
			MinAmount:   10,
			Chains: []Chain{
				ChainSolana, ChainEthereum, ChainPolygon, ChainArbitrum,
				ChainOptimism, ChainBase, ChainAvalanche,
			},
		},
		BridgeStargate: {
			BaseFee:     0.40,
			FeePercent:  0.0006,
			BaseTime:    Duration{2 * time.Minute},
			Reliability: 0.995,
			MinAmount:   12,
			Chains: []Chain{
				ChainEthereum, ChainPolygon, ChainArbitrum,
				ChainOptimism, ChainBase, ChainAvalanche,
			},
		},
		BridgeAcross: {
			BaseFee:     0.25,
			FeePercent:  0.0012,
			BaseTime:    Duration{90 * time.Second},
			Reliability: 0.993,
			MinAmount:   10,
			Chains: []Chain{
				ChainEthereum, ChainPolygon, ChainArbitrum,
				ChainOptimism, ChainBase,
			},
		},
		BridgeHop: {
			BaseFee:     0.30,
			FeePercent:  0.0015,
			BaseTime:    Duration{4 * time.Minute},
			Reliability: 0.99,
			MinAmount:   15,
			Chains: []Chain{
				ChainEthereum, ChainPolygon, ChainArbitrum,
				ChainOptimism, ChainBase,
			},
		},
		BridgeAxelar: {
			BaseFee:     0.90,
			FeePercent:  0.0010,
			BaseTime:    Duration{8 * time.Minute},
			Reliability: 0.985,
			MinAmount:   20,
			Chains: []Chain{
				ChainSolana, ChainEthereum, ChainPolygon, ChainArbitrum,
				ChainOptimism, ChainBase, ChainAvalanche,
			},
		},
		BridgeCBridge: {
			BaseFee:     0.35,
			FeePercent:  0.0008,
			BaseTime:    Duration{3 * time.Minute},
			Reliability: 0.99,
			MinAmount:   25,
			Chains: []Chain{
				ChainEthereum, ChainPolygon, ChainArbitrum,
				ChainOptimism, ChainAvalanche,
			},
		},
	}
}
