package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// HTTPSource fetches gas prices from per-chain oracle endpoints over HTTP.
type HTTPSource struct {
	chains     map[types.Chain]types.ChainSettings
	httpClient *http.Client
}

// NewHTTPSource creates an oracle client for every chain that has a gas
// oracle endpoint configured
func NewHTTPSource(chains map[types.Chain]types.ChainSettings) *HTTPSource {
	copied := make(map[types.Chain]types.ChainSettings, len(chains))
	for chain, cs := range chains {
		copied[chain] = cs
	}
	return &HTTPSource{
		chains:     copied,
		httpClient: StandardClient(newRetryClient()),
	}
}

// Fetch retrieves gas prices for the requested chains in parallel. Chains
// without an oracle endpoint are skipped; the manager fills those gaps from
// its fallback feeder.
func (h *HTTPSource) Fetch(ctx context.Context, chains []types.Chain) ([]model.GasSample, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	samples := make([]model.GasSample, 0, len(chains))
	fetchErrors := make(map[types.Chain]error)

	for _, chain := range chains {
		cs, ok := h.chains[chain]
		if !ok || cs.GasOracleEndpoint == "" {
			logrus.Debugf("No gas oracle endpoint for chain %s, skipping", chain)
			continue
		}

		wg.Add(1)
		go func(chain types.Chain, cs types.ChainSettings) {
			defer wg.Done()

			sample, err := h.fetchChain(ctx, chain, cs)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetchErrors[chain] = err
				logrus.Warnf("Error fetching gas price for chain %s: %v", chain, err)
				return
			}
			samples = append(samples, sample)
		}(chain, cs)
	}

	wg.Wait()

	if len(samples) == 0 && len(fetchErrors) > 0 {
		// If all chains failed, return the first error
		for _, err := range fetchErrors {
			return nil, fmt.Errorf("gas oracle fetch failed: %w", err)
		}
	}

	logrus.Debugf("Fetched gas prices for %d/%d chains from oracle endpoints",
		len(samples), len(chains))

	return samples, nil
}

// fetchChain retrieves the gas price for a single chain from its oracle
func (h *HTTPSource) fetchChain(ctx context.Context, chain types.Chain, cs types.ChainSettings) (model.GasSample, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", cs.GasOracleEndpoint, nil)
	if err != nil {
		return model.GasSample{}, fmt.Errorf("error creating request: %w", err)
	}

	if cs.APIKeyEnv != "" {
		if key := os.Getenv(cs.APIKeyEnv); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return model.GasSample{}, fmt.Errorf("error fetching gas price for %s: %w", chain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.GasSample{}, fmt.Errorf("gas oracle error for %s: status %d, body: %s", chain, resp.StatusCode, string(body))
	}

	// Define the structure matching the oracle response
	var response struct {
		Data struct {
			PriceUSD    float64 `json:"price_usd"`
			CollectedAt int64   `json:"collected_at"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return model.GasSample{}, fmt.Errorf("error decoding response: %w", err)
	}

	if response.Data.PriceUSD <= 0 {
		return model.GasSample{}, fmt.Errorf("no usable price returned for %s", chain)
	}

	collectedAt := response.Data.CollectedAt
	if collectedAt == 0 {
		collectedAt = time.Now().Unix()
	}

	return model.GasSample{
		Chain:       chain,
		PriceUSD:    response.Data.PriceUSD,
		Source:      "oracle",
		Weight:      1.0,
		CollectedAt: collectedAt,
	}, nil
}
