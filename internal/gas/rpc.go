package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// RPCSource reads gas prices straight from chain RPC nodes via eth_gasPrice
// and converts them to USD per bridge transaction using the configured gas
// units and native token price.
type RPCSource struct {
	chains map[types.Chain]types.ChainSettings
	client *retryablehttp.Client
}

// NewRPCSource creates an RPC client for every chain that has an RPC
// endpoint and conversion parameters configured
func NewRPCSource(chains map[types.Chain]types.ChainSettings) *RPCSource {
	copied := make(map[types.Chain]types.ChainSettings, len(chains))
	for chain, cs := range chains {
		copied[chain] = cs
	}
	return &RPCSource{
		chains: copied,
		client: newRetryClient(),
	}
}

// Fetch retrieves gas prices for the requested chains in parallel. Chains
// without an RPC endpoint or conversion parameters are skipped.
func (r *RPCSource) Fetch(ctx context.Context, chains []types.Chain) ([]model.GasSample, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	samples := make([]model.GasSample, 0, len(chains))
	fetchErrors := make(map[types.Chain]error)

	for _, chain := range chains {
		cs, ok := r.chains[chain]
		if !ok || cs.RPCEndpoint == "" || cs.GasUnits <= 0 || cs.NativeTokenUSD <= 0 {
			logrus.Debugf("Chain %s not configured for RPC gas readings, skipping", chain)
			continue
		}

		wg.Add(1)
		go func(chain types.Chain, cs types.ChainSettings) {
			defer wg.Done()

			sample, err := r.fetchChain(ctx, chain, cs)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetchErrors[chain] = err
				logrus.Warnf("Error reading gas price over RPC for chain %s: %v", chain, err)
				return
			}
			samples = append(samples, sample)
		}(chain, cs)
	}

	wg.Wait()

	if len(samples) == 0 && len(fetchErrors) > 0 {
		// If all chains failed, return the first error
		for _, err := range fetchErrors {
			return nil, fmt.Errorf("rpc gas fetch failed: %w", err)
		}
	}

	logrus.Debugf("Fetched gas prices for %d/%d chains over RPC", len(samples), len(chains))

	return samples, nil
}

// fetchChain issues an eth_gasPrice call against the chain's RPC endpoint
func (r *RPCSource) fetchChain(ctx context.Context, chain types.Chain, cs types.ChainSettings) (model.GasSample, error) {
	payload := []byte(`{"jsonrpc":"2.0","method":"eth_gasPrice","params":[],"id":1}`)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, cs.RPCEndpoint, payload)
	if err != nil {
		return model.GasSample{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return model.GasSample{}, fmt.Errorf("error calling %s rpc: %w", chain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.GasSample{}, fmt.Errorf("%s rpc error: status %d, body: %s", chain, resp.StatusCode, string(body))
	}

	var response struct {
		Result string `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return model.GasSample{}, fmt.Errorf("error decoding response: %w", err)
	}

	if response.Error != nil {
		return model.GasSample{}, fmt.Errorf("%s rpc error %d: %s", chain, response.Error.Code, response.Error.Message)
	}
	if response.Result == "" {
		return model.GasSample{}, fmt.Errorf("empty eth_gasPrice result from %s", chain)
	}

	weiPerGas, err := hexutil.DecodeBig(response.Result)
	if err != nil {
		return model.GasSample{}, fmt.Errorf("error decoding eth_gasPrice result %q: %w", response.Result, err)
	}

	return model.GasSample{
		Chain:       chain,
		PriceUSD:    weiToUSD(weiPerGas, cs.GasUnits, cs.NativeTokenUSD),
		Source:      "rpc",
		Weight:      1.0,
		CollectedAt: time.Now().Unix(),
	}, nil
}

// weiToUSD converts a wei-per-gas-unit price into USD for one bridge
// transaction of gasUnits units
func weiToUSD(weiPerGas *big.Int, gasUnits, nativeTokenUSD float64) float64 {
	wei, _ := new(big.Float).SetInt(weiPerGas).Float64()
	return wei * gasUnits * nativeTokenUSD / 1e18
}
