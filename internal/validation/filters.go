// Package validation provides filtering and plausibility checks for gas price samples.
package validation

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Options holds configuration for the validation process
type Options struct {
	// MaxAge defines how recent samples must be to be considered valid
	MaxAge time.Duration

	// MinPrice defines the minimum plausible gas price in USD
	MinPrice float64

	// MaxPrice defines the maximum plausible gas price in USD
	MaxPrice float64

	// RequireSource determines if samples must name the source that produced them
	RequireSource bool

	// EnableOutlierDetection enables statistical outlier detection
	EnableOutlierDetection bool

	// OutlierIQRMultiplier defines sensitivity for outlier detection (1.5 is standard)
	OutlierIQRMultiplier float64
}

// DefaultOptions returns sensible defaults for validation
func DefaultOptions() Options {
	return Options{
		MaxAge:                 24 * time.Hour,
		MinPrice:               0.0001,
		MaxPrice:               500.0,
		RequireSource:          true,
		EnableOutlierDetection: true,
		OutlierIQRMultiplier:   1.5,
	}
}

// Filter removes samples that fail basic validation criteria.
// This is the main entrypoint for the validation package.
func Filter(samples []model.GasSample) []model.GasSample {
	return FilterWithOptions(samples, DefaultOptions())
}

// FilterWithOptions removes samples with custom validation options.
func FilterWithOptions(samples []model.GasSample, opts Options) []model.GasSample {
	// First apply basic filters
	valid := filterBasicCriteria(samples, opts)

	// Then apply statistical filters if enabled
	if opts.EnableOutlierDetection && len(valid) > 3 {
		return filterOutliers(valid, opts.OutlierIQRMultiplier)
	}

	return valid
}

// FilterConcurrently performs validation in parallel for large datasets.
func FilterConcurrently(samples []model.GasSample, opts Options) []model.GasSample {
	if len(samples) < 100 {
		// For small datasets, parallel processing overhead isn't worth it
		return FilterWithOptions(samples, opts)
	}

	workerCount := 4
	chunkSize := (len(samples) + workerCount - 1) / workerCount
	wg := sync.WaitGroup{}
	resultChan := make(chan []model.GasSample, workerCount)

	// Process in chunks
	for i := 0; i < workerCount; i++ {
		start := i * chunkSize
		end := (i + 1) * chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		if start >= len(samples) {
			break
		}

		chunk := samples[start:end]
		wg.Add(1)
		go func(chunk []model.GasSample) {
			defer wg.Done()
			validChunk := filterBasicCriteria(chunk, opts)
			resultChan <- validChunk
		}(chunk)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results
	var validSamples []model.GasSample
	for chunk := range resultChan {
		validSamples = append(validSamples, chunk...)
	}

	// Apply outlier detection on the combined result
	if opts.EnableOutlierDetection && len(validSamples) > 3 {
		return filterOutliers(validSamples, opts.OutlierIQRMultiplier)
	}

	return validSamples
}

// filterBasicCriteria applies fundamental validation rules to each sample
func filterBasicCriteria(samples []model.GasSample, opts Options) []model.GasSample {
	valid := make([]model.GasSample, 0, len(samples))
	for _, s := range samples {
		if isValidSample(s, opts) {
			valid = append(valid, s)
		} else {
			logrus.WithFields(logrus.Fields{
				"chain":  s.Chain,
				"price":  s.PriceUSD,
				"source": s.Source,
			}).Debug("Filtered invalid gas sample")
		}
	}
	return valid
}

// isValidSample checks if a single sample meets all validation criteria
func isValidSample(s model.GasSample, opts Options) bool {
	// Samples that carry a fetch error never enter aggregation
	if s.Error != "" {
		return false
	}

	// Check for a positive, plausible price
	if s.PriceUSD <= 0 {
		return false
	}
	if s.PriceUSD < opts.MinPrice || s.PriceUSD > opts.MaxPrice {
		return false
	}

	// Check for a valid chain identifier
	if s.Chain == "" {
		return false
	}

	// Check if the sample is recent enough
	collectedAt := time.Unix(s.CollectedAt, 0)
	if time.Since(collectedAt) > opts.MaxAge {
		return false
	}

	// Optionally require a source identifier
	if opts.RequireSource && s.Source == "" {
		return false
	}

	return true
}

// filterOutliers removes statistical outliers using the IQR method.
// Bounds are computed per chain so that cheap and expensive chains
// never distort each other's quartiles.
func filterOutliers(samples []model.GasSample, iqrMultiplier float64) []model.GasSample {
	prices := make(map[types.Chain][]float64)
	for _, s := range samples {
		prices[s.Chain] = append(prices[s.Chain], s.PriceUSD)
	}

	type priceBounds struct {
		lower, upper float64
	}
	perChain := make(map[types.Chain]priceBounds, len(prices))
	for chain, ps := range prices {
		if len(ps) <= 3 {
			continue // Need at least 4 points for meaningful outlier detection
		}

		// Calculate Q1, Q3, and IQR
		sort.Float64s(ps)
		q1 := ps[len(ps)/4]
		q3 := ps[len(ps)*3/4]
		iqr := q3 - q1

		lower := q1 - iqrMultiplier*iqr
		upper := q3 + iqrMultiplier*iqr

		// If bounds are too strict, widen them around the mean so that
		// closely agreeing sources don't get filtered over rounding noise
		if upper-lower < 0.005 {
			mean := calculateMean(ps)
			lower = mean * 0.5
			upper = mean * 2.0
		}

		perChain[chain] = priceBounds{lower: lower, upper: upper}
	}

	// Filter outliers; chains without bounds keep all their samples
	valid := make([]model.GasSample, 0, len(samples))
	for _, s := range samples {
		b, ok := perChain[s.Chain]
		if !ok || (s.PriceUSD >= b.lower && s.PriceUSD <= b.upper) {
			valid = append(valid, s)
		} else {
			logrus.WithFields(logrus.Fields{
				"chain":  s.Chain,
				"price":  s.PriceUSD,
				"source": s.Source,
				"bounds": []float64{b.lower, b.upper},
			}).Info("Filtered outlier gas sample")
		}
	}

	// Log summary
	logrus.WithFields(logrus.Fields{
		"total":    len(samples),
		"filtered": len(samples) - len(valid),
	}).Debug("Outlier filtering complete")

	return valid
}

// calculateMean computes the arithmetic mean of a slice of float64
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ConfidenceScores assigns a confidence score (0-1) to each sample based on
// its agreement with the other sources reporting the same chain.
// Chains with a single reporting source are returned unchanged.
func ConfidenceScores(samples []model.GasSample) []model.GasSample {
	if len(samples) <= 1 {
		return samples // Can't calculate confidence with fewer than 2 samples
	}

	// Calculate a weighted average per chain as our reference point
	type accum struct {
		weighted float64
		weight   float64
		count    int
	}
	refs := make(map[types.Chain]*accum)
	for _, s := range samples {
		w := s.Weight
		if w <= 0 {
			w = 1.0
		}
		a, ok := refs[s.Chain]
		if !ok {
			a = &accum{}
			refs[s.Chain] = a
		}
		a.weighted += s.PriceUSD * w
		a.weight += w
		a.count++
	}

	// Calculate score based on distance from the chain's reference
	result := make([]model.GasSample, len(samples))
	for i, s := range samples {
		scored := s

		if a := refs[s.Chain]; a.count > 1 {
			ref := a.weighted / a.weight

			// Calculate relative distance from consensus
			relativeDist := math.Abs(s.PriceUSD-ref) / ref
			if ref == 0 {
				relativeDist = math.Abs(s.PriceUSD)
			}

			// Convert to confidence score (1 = perfect agreement, 0 = no confidence)
			scored.Confidence = 1.0 / (1.0 + relativeDist*5)
		}

		result[i] = scored
	}

	return result
}
