package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

func TestStaticFetch(t *testing.T) {
	static := NewStatic(map[types.Chain]float64{
		types.ChainEthereum: 2.5,
		types.ChainSolana:   0.02,
	})

	samples, err := static.Fetch(context.Background(), []types.Chain{types.ChainEthereum, types.ChainSolana})
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, types.ChainEthereum, samples[0].Chain)
	assert.Equal(t, 2.5, samples[0].PriceUSD)
	assert.Equal(t, "static", samples[0].Source)
	assert.Equal(t, 0.02, samples[1].PriceUSD)
}

func TestStaticFetch_UnknownChain(t *testing.T) {
	static := NewStatic(map[types.Chain]float64{types.ChainEthereum: 2.5})

	_, err := static.Fetch(context.Background(), []types.Chain{types.ChainSolana})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no price for chain solana")
}

func TestSimulatedFetch_JitterBounds(t *testing.T) {
	baselines := map[types.Chain]float64{
		types.ChainEthereum: 2.5,
		types.ChainPolygon:  0.05,
	}
	sim := NewSimulated(baselines, 0.1)

	for i := 0; i < 50; i++ {
		samples, err := sim.Fetch(context.Background(), []types.Chain{types.ChainEthereum, types.ChainPolygon})
		require.NoError(t, err)
		for _, s := range samples {
			base := baselines[s.Chain]
			assert.GreaterOrEqual(t, s.PriceUSD, base*0.9, "price should stay within jitter range")
			assert.LessOrEqual(t, s.PriceUSD, base*1.1, "price should stay within jitter range")
		}
	}
}

func TestSimulatedFetch_ZeroJitterIsExact(t *testing.T) {
	sim := NewSimulated(map[types.Chain]float64{types.ChainEthereum: 2.5}, 0)

	samples, err := sim.Fetch(context.Background(), []types.Chain{types.ChainEthereum})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 2.5, samples[0].PriceUSD)
}

func TestSimulatedRefresh(t *testing.T) {
	sim := NewSimulated(map[types.Chain]float64{
		types.ChainEthereum: 2.5,
		types.ChainSolana:   0.02,
	}, 0)

	reading, err := sim.Refresh(context.Background(), []types.Chain{types.ChainEthereum, types.ChainSolana})
	require.NoError(t, err)
	assert.Equal(t, 2.5, reading.Prices[types.ChainEthereum])
	assert.Equal(t, 0.02, reading.Prices[types.ChainSolana])
	assert.False(t, reading.CollectedAt.IsZero())
}

func TestSimulatedFetch_MissingBaseline(t *testing.T) {
	sim := NewSimulated(map[types.Chain]float64{types.ChainEthereum: 2.5}, 0)

	_, err := sim.Fetch(context.Background(), []types.Chain{types.ChainBase})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no baseline for chain base")
}

func TestHTTPSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, `{"data":{"price_usd":2.41,"collected_at":1724572800}}`)
	}))
	defer server.Close()

	source := NewHTTPSource(map[types.Chain]types.ChainSettings{
		types.ChainEthereum: {Enabled: true, GasOracleEndpoint: server.URL},
	})

	samples, err := source.Fetch(context.Background(), []types.Chain{types.ChainEthereum})
	require.NoError(t, err)
	require.Len(t, samples, 1)

	assert.Equal(t, types.ChainEthereum, samples[0].Chain)
	assert.Equal(t, 2.41, samples[0].PriceUSD)
	assert.Equal(t, "oracle", samples[0].Source)
	assert.Equal(t, int64(1724572800), samples[0].CollectedAt)
}

func TestHTTPSourceFetch_SkipsUnconfiguredChains(t *testing.T) {
	source := NewHTTPSource(map[types.Chain]types.ChainSettings{
		types.ChainEthereum: {Enabled: true}, // no oracle endpoint
	})

	samples, err := source.Fetch(context.Background(), []types.Chain{types.ChainEthereum, types.ChainSolana})
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestHTTPSourceFetch_PartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"price_usd":0.05}}`)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer bad.Close()

	source := NewHTTPSource(map[types.Chain]types.ChainSettings{
		types.ChainPolygon:  {Enabled: true, GasOracleEndpoint: good.URL},
		types.ChainEthereum: {Enabled: true, GasOracleEndpoint: bad.URL},
	})

	samples, err := source.Fetch(context.Background(), []types.Chain{types.ChainPolygon, types.ChainEthereum})
	require.NoError(t, err, "one healthy chain should keep the fetch alive")
	require.Len(t, samples, 1)
	assert.Equal(t, types.ChainPolygon, samples[0].Chain)
	assert.Equal(t, 0.05, samples[0].PriceUSD)
}

func TestHTTPSourceFetch_AllFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer bad.Close()

	source := NewHTTPSource(map[types.Chain]types.ChainSettings{
		types.ChainEthereum: {Enabled: true, GasOracleEndpoint: bad.URL},
	})

	_, err := source.Fetch(context.Background(), []types.Chain{types.ChainEthereum})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gas oracle fetch failed")
}

func TestHTTPSourceFetch_APIKeyHeader(t *testing.T) {
	t.Setenv("TEST_ORACLE_KEY", "secret-key")

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{"price_usd":2.5}}`)
	}))
	defer server.Close()

	source := NewHTTPSource(map[types.Chain]types.ChainSettings{
		types.ChainEthereum: {Enabled: true, GasOracleEndpoint: server.URL, APIKeyEnv: "TEST_ORACLE_KEY"},
	})

	_, err := source.Fetch(context.Background(), []types.Chain{types.ChainEthereum})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestRPCSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth_gasPrice", req.Method)

		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x3b9aca00"}`) // 1 gwei
	}))
	defer server.Close()

	source := NewRPCSource(map[types.Chain]types.ChainSettings{
		types.ChainEthereum: {
			Enabled:        true,
			RPCEndpoint:    server.URL,
			GasUnits:       150000,
			NativeTokenUSD: 3000,
		},
	})

	samples, err := source.Fetch(context.Background(), []types.Chain{types.ChainEthereum})
	require.NoError(t, err)
	require.Len(t, samples, 1)

	// 1 gwei * 150000 gas * $3000/ETH = $0.45
	assert.InDelta(t, 0.45, samples[0].PriceUSD, 1e-9)
	assert.Equal(t, "rpc", samples[0].Source)
}

func TestRPCSourceFetch_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)
	}))
	defer server.Close()

	source := NewRPCSource(map[types.Chain]types.ChainSettings{
		types.ChainEthereum: {
			Enabled:        true,
			RPCEndpoint:    server.URL,
			GasUnits:       150000,
			NativeTokenUSD: 3000,
		},
	})

	_, err := source.Fetch(context.Background(), []types.Chain{types.ChainEthereum})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestRPCSourceFetch_SkipsUnconfiguredChains(t *testing.T) {
	source := NewRPCSource(map[types.Chain]types.ChainSettings{
		types.ChainEthereum: {Enabled: true, RPCEndpoint: "http://localhost:8545"}, // no conversion parameters
		types.ChainSolana:   {Enabled: true},
	})

	samples, err := source.Fetch(context.Background(), []types.Chain{types.ChainEthereum, types.ChainSolana})
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestWeiToUSD(t *testing.T) {
	tests := []struct {
		name      string
		weiPerGas *big.Int
		gasUnits  float64
		tokenUSD  float64
		want      float64
	}{
		{name: "one gwei on mainnet", weiPerGas: big.NewInt(1_000_000_000), gasUnits: 150000, tokenUSD: 3000, want: 0.45},
		{name: "thirty gwei", weiPerGas: big.NewInt(30_000_000_000), gasUnits: 150000, tokenUSD: 3000, want: 13.5},
		{name: "zero price", weiPerGas: big.NewInt(0), gasUnits: 150000, tokenUSD: 3000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, weiToUSD(tt.weiPerGas, tt.gasUnits, tt.tokenUSD), 1e-9)
		})
	}
}
