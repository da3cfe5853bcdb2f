package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Weighted berechnet den gewichteten Durchschnittspreis über mehrere Gas-Samples
// Gibt ein aggregiertes Sample mit dem neuesten Timestamp zurück
func Weighted(samples []model.GasSample) model.GasSample {
	if len(samples) == 0 {
		return model.GasSample{Source: "aggregated"}
	}

	var totalWeight, weightedPrice float64
	var chain types.Chain
	validSamples := 0
	latestTimestamp := int64(0)

	for _, s := range samples {
		if s.PriceUSD > 0 {
			w := s.Weight
			if w <= 0 {
				w = 1.0
			}
			totalWeight += w
			weightedPrice += s.PriceUSD * w
			validSamples++

			if chain == "" {
				chain = s.Chain
			}
			if s.CollectedAt > latestTimestamp {
				latestTimestamp = s.CollectedAt
			}
		}
	}

	if validSamples == 0 || totalWeight <= 0 || math.IsNaN(weightedPrice) {
		return model.GasSample{Source: "aggregated"}
	}

	return model.GasSample{
		Chain:       chain,
		PriceUSD:    weightedPrice / totalWeight,
		Source:      "aggregated",
		CollectedAt: latestTimestamp,
		Weight:      totalWeight,
	}
}

// WeightedParallel berechnet den gewichteten Durchschnittspreis mit paralleler Verarbeitung
// für bessere Performance bei großen Sample-Sammlungen
func WeightedParallel(ctx context.Context, samples []model.GasSample) model.GasSample {
	if len(samples) == 0 {
		return model.GasSample{Source: "aggregated"}
	}

	var (
		mu              sync.Mutex
		wg              sync.WaitGroup
		totalWeight     float64
		weightedPrice   float64
		chain           types.Chain
		validSamples    int
		latestTimestamp int64
	)

	// Verarbeite Samples parallel für bessere Performance
	for i := range samples {
		wg.Add(1)
		go func(s model.GasSample) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			default:
				if s.PriceUSD > 0 {
					w := s.Weight
					if w <= 0 {
						w = 1.0
					}
					mu.Lock()
					totalWeight += w
					weightedPrice += s.PriceUSD * w
					validSamples++
					if chain == "" {
						chain = s.Chain
					}
					if s.CollectedAt > latestTimestamp {
						latestTimestamp = s.CollectedAt
					}
					mu.Unlock()
				}
			}
		}(samples[i])
	}

	wg.Wait()

	if validSamples == 0 || totalWeight <= 0 || math.IsNaN(weightedPrice) {
		return model.GasSample{Source: "aggregated"}
	}

	return model.GasSample{
		Chain:       chain,
		PriceUSD:    weightedPrice / totalWeight,
		Source:      "aggregated",
		CollectedAt: latestTimestamp,
		Weight:      totalWeight,
	}
}

// Median berechnet den Medianwert für eine bestimmte Sample-Eigenschaft
// Nützlich für robuste Statistiken, die weniger anfällig für Ausreißer sind
func Median(samples []model.GasSample, selector func(model.GasSample) float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.PriceUSD > 0 {
			values = append(values, selector(s))
		}
	}

	if len(values) == 0 {
		return 0
	}

	sort.Float64s(values)
	n := len(values)

	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

// ValidateSample prüft, ob ein Sample plausible Werte enthält
// Gibt einen Fehler zurück, wenn das Sample ungültige Werte enthält
func ValidateSample(s model.GasSample) error {
	if s.PriceUSD <= 0 {
		return fmt.Errorf("invalid gas price: %f", s.PriceUSD)
	}

	if s.PriceUSD > 1000 {
		return fmt.Errorf("unplausible gas price (>1000 USD): %f", s.PriceUSD)
	}

	if s.Chain == "" {
		return fmt.Errorf("missing chain")
	}

	if s.CollectedAt <= 0 {
		return fmt.Errorf("invalid timestamp: %d", s.CollectedAt)
	}

	maxAge := time.Now().Add(-24 * time.Hour).Unix()
	if s.CollectedAt < maxAge {
		return fmt.Errorf("sample data too old: %d", s.CollectedAt)
	}

	return nil
}

// FilterOutliers entfernt Ausreißer aus den Samples basierend auf statistischen Methoden
// Verwendet den IQR (Interquartile Range) zur Erkennung von Ausreißern
func FilterOutliers(samples []model.GasSample) []model.GasSample {
	if len(samples) < 4 {
		return samples
	}

	// Extrahiere Preiswerte
	prices := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.PriceUSD > 0 {
			prices = append(prices, s.PriceUSD)
		}
	}

	if len(prices) < 4 {
		return samples
	}

	sort.Float64s(prices)
	n := len(prices)

	// Berechne Q1 (25. Perzentil) und Q3 (75. Perzentil)
	q1Index := n / 4
	q3Index := n * 3 / 4
	q1 := prices[q1Index]
	q3 := prices[q3Index]

	// Berechne IQR und Grenzen für Ausreißer
	iqr := q3 - q1
	lowerBound := q1 - 1.5*iqr
	upperBound := q3 + 1.5*iqr

	// Filtere Ausreißer
	filtered := make([]model.GasSample, 0, len(samples))
	for _, s := range samples {
		if s.PriceUSD >= lowerBound && s.PriceUSD <= upperBound {
			filtered = append(filtered, s)
		}
	}

	return filtered
}

// ValidateAndFilterSamples kombiniert Validierung und Ausreißererkennung
// Gibt nur gültige Samples zurück, die keine Ausreißer sind
func ValidateAndFilterSamples(samples []model.GasSample) []model.GasSample {
	validSamples := make([]model.GasSample, 0, len(samples))

	for _, s := range samples {
		if err := ValidateSample(s); err == nil {
			validSamples = append(validSamples, s)
		}
	}

	return FilterOutliers(validSamples)
}

// WeightedWithValidation kombiniert Validierung, Ausreißererkennung und gewichtete Aggregation
// Bietet eine robuste Methode zur Aggregation von Samples mit Qualitätssicherung
func WeightedWithValidation(samples []model.GasSample) model.GasSample {
	validSamples := ValidateAndFilterSamples(samples)
	return Weighted(validSamples)
}

// WeightedParallelWithValidation kombiniert Validierung, Ausreißererkennung und parallele gewichtete Aggregation
// Optimiert für große Datensätze mit Qualitätssicherung
func WeightedParallelWithValidation(ctx context.Context, samples []model.GasSample) model.GasSample {
	validSamples := ValidateAndFilterSamples(samples)
	return WeightedParallel(ctx, validSamples)
}

// AverageSamples berechnet einfache (nicht gewichtete) Durchschnittspreise
// Nützlich, wenn Quellgewichte nicht zuverlässig sind oder gleich gewichtet werden sollen
func AverageSamples(samples []model.GasSample) model.GasSample {
	if len(samples) == 0 {
		return model.GasSample{Source: "aggregated"}
	}

	var totalPrice float64
	var chain types.Chain
	validSamples := 0
	latestTimestamp := int64(0)

	for _, s := range samples {
		if s.PriceUSD > 0 {
			totalPrice += s.PriceUSD
			validSamples++

			if chain == "" {
				chain = s.Chain
			}
			if s.CollectedAt > latestTimestamp {
				latestTimestamp = s.CollectedAt
			}
		}
	}

	if validSamples == 0 {
		return model.GasSample{Source: "aggregated"}
	}

	return model.GasSample{
		Chain:       chain,
		PriceUSD:    totalPrice / float64(validSamples),
		Source:      "aggregated",
		CollectedAt: latestTimestamp,
	}
}

// MedianAggregation berechnet den Medianpreis über alle Samples
// Besonders robust gegen Ausreißer, ideal für unzuverlässige Datenquellen
func MedianAggregation(samples []model.GasSample) model.GasSample {
	if len(samples) == 0 {
		return model.GasSample{Source: "aggregated"}
	}

	priceMedian := Median(samples, func(s model.GasSample) float64 { return s.PriceUSD })

	// Finde den neuesten Zeitstempel und die Chain
	var chain types.Chain
	latestTimestamp := int64(0)
	for _, s := range samples {
		if chain == "" && s.Chain != "" {
			chain = s.Chain
		}
		if s.CollectedAt > latestTimestamp {
			latestTimestamp = s.CollectedAt
		}
	}

	return model.GasSample{
		Chain:       chain,
		PriceUSD:    priceMedian,
		Source:      "aggregated",
		CollectedAt: latestTimestamp,
	}
}

// TrimmedMeanAggregation berechnet getrimmte Mittelwerte (ohne extreme Werte)
// Entfernt einen bestimmten Prozentsatz der höchsten und niedrigsten Preise vor der Mittelwertbildung
func TrimmedMeanAggregation(samples []model.GasSample, trimPercent float64) model.GasSample {
	if len(samples) < 3 || trimPercent <= 0 || trimPercent >= 0.5 {
		return Weighted(samples) // Fallback auf gewichteten Durchschnitt
	}

	// Sortiere Samples nach Preis
	validSamples := make([]model.GasSample, 0, len(samples))
	for _, s := range samples {
		if s.PriceUSD > 0 {
			validSamples = append(validSamples, s)
		}
	}

	if len(validSamples) < 3 {
		return Weighted(samples) // Fallback auf gewichteten Durchschnitt
	}

	sort.Slice(validSamples, func(i, j int) bool {
		return validSamples[i].PriceUSD < validSamples[j].PriceUSD
	})

	// Berechne Anzahl der zu trimmenden Elemente
	trimCount := int(float64(len(validSamples)) * trimPercent)

	// Trimme die Samples
	trimmedSamples := validSamples[trimCount : len(validSamples)-trimCount]

	// Berechne gewichteten Durchschnitt der getrimmten Samples
	return Weighted(trimmedSamples)
}

// ByChain gruppiert Samples nach ihrer Chain
// Grundlage für die chainweise Aggregation im Gas-Manager
func ByChain(samples []model.GasSample) map[types.Chain][]model.GasSample {
	grouped := make(map[types.Chain][]model.GasSample)
	for _, s := range samples {
		if s.Chain == "" {
			continue
		}
		grouped[s.Chain] = append(grouped[s.Chain], s)
	}
	return grouped
}
