package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// pricingTable holds nursery and hardscape price ranges per category and size,
// used to ground estimates when the plant catalog has no better match.
var pricingTable = map[string]map[string]string{
	"tree": {
		"15-gallon":   "$80 - $150",
		"24-inch box": "$250 - $500",
		"mature":      "$800+",
	},
	"shrub": {
		"1-gallon": "$10 - $20",
		"5-gallon": "$30 - $55",
	},
	"bush": {
		"1-gallon": "$10 - $20",
		"5-gallon": "$30 - $55",
	},
	"grass": {
		"1-gallon": "$8 - $15",
		"plug":     "$2 - $5",
	},
	"palm": {
		"15-gallon": "$100 - $200",
		"mature":    "$100 - $300",
	},
	"bamboo": {
		"5-gallon":  "$40 - $80",
		"15-gallon": "$120 - $200",
	},
	"hedge": {
		"5-gallon":        "$35 - $60",
		"per linear foot": "$40 - $100",
	},
	"flower": {
		"4-inch pot": "$3 - $6",
		"1-gallon":   "$10 - $15",
	},
	"perennial": {
		"1-gallon": "$12 - $18",
	},
	"topiary": {
		"shaped 5-gallon": "$60 - $120",
		"mature shaped":   "$300+",
	},
	"paver": {
		"concrete": "$5 - $10",
		"brick":    "$8 - $15",
		"stone":    "$15 - $30",
	},
	"gravel": {
		"pea gravel":      "$40 - $60",
		"decorative rock": "$100 - $300",
		"bag":             "$5 - $10",
	},
	"stone": {
		"flagstone": "$300 - $600",
		"boulder":   "$100 - $500",
	},
	"mulch": {
		"bulk": "$30 - $50",
		"bag":  "$4 - $8",
	},
	"edging": {
		"plastic": "$1 - $3",
		"metal":   "$3 - $8",
		"stone":   "$5 - $15",
	},
	"retaining wall": {
		"block":         "$15 - $25",
		"natural stone": "$30 - $60",
	},
}

// Estimator turns the analyzer's plant/material list into an itemized budget.
// When a plant catalog is wired and RAG is requested, each item's unit price is
// upgraded to a catalog match before falling back to the static table.
type Estimator struct {
	catalog ports.PlantCatalog
	logger  zerolog.Logger
}

func NewEstimator(catalog ports.PlantCatalog, logger zerolog.Logger) *Estimator {
	return &Estimator{catalog: catalog, logger: logger}
}

// Estimate computes the cost estimate for the given items. Catalog failures
// degrade to table pricing; the estimate itself never fails.
func (e *Estimator) Estimate(ctx context.Context, items []ports.AnalysisItem, useRAG bool) domain.CostEstimate {
	estimate := domain.CostEstimate{Currency: "USD"}

	for _, item := range items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		unitPrice := e.lookupPrice(ctx, item, useRAG)
		low, high := parsePriceRange(unitPrice)

		line := domain.EstimateItem{
			Name:      item.Name,
			Category:  item.Category,
			Size:      item.Size,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			TotalLow:  low * float64(quantity),
			TotalHigh: high * float64(quantity),
		}
		estimate.TotalLow += line.TotalLow
		estimate.TotalHigh += line.TotalHigh
		estimate.Items = append(estimate.Items, line)
	}

	return estimate
}

func (e *Estimator) lookupPrice(ctx context.Context, item ports.AnalysisItem, useRAG bool) string {
	if useRAG && e.catalog != nil {
		plants, err := e.catalog.FindPlants(ctx, item.Name, 1)
		if err != nil {
			e.logger.Warn().Err(err).Str("item", item.Name).Msg("catalog lookup failed, using table pricing")
		} else if len(plants) > 0 && plants[0].PriceEstimate != "" {
			return plants[0].PriceEstimate
		}
	}
	return tablePrice(item)
}

// tablePrice finds a category match (substring on category or name) and then a
// fuzzy size match, defaulting to the category's cheapest listed size.
func tablePrice(item ports.AnalysisItem) string {
	category := strings.ToLower(item.Category)
	name := strings.ToLower(item.Name)

	var sizes map[string]string
	for tableCategory, tableSizes := range pricingTable {
		if strings.Contains(category, tableCategory) || strings.Contains(name, tableCategory) {
			sizes = tableSizes
			break
		}
	}
	if sizes == nil {
		return "$0 - $0"
	}

	size := strings.ToLower(item.Size)
	for tableSize, price := range sizes {
		if size != "" && strings.Contains(size, tableSize) {
			return price
		}
	}

	// No size match: pick the cheapest listed option so the estimate stays
	// deterministic regardless of map order.
	best := ""
	bestLow := 0.0
	for _, price := range sizes {
		low, _ := parsePriceRange(price)
		if best == "" || low < bestLow {
			best = price
			bestLow = low
		}
	}
	return best
}

// parsePriceRange extracts low and high from strings like "$10 - $20" or
// "$800+". Unparseable input yields (0, 0).
func parsePriceRange(priceRange string) (float64, float64) {
	clean := strings.NewReplacer("$", "", ",", "", "+", "").Replace(priceRange)
	parts := strings.Split(clean, "-")

	switch len(parts) {
	case 2:
		low, errLow := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		high, errHigh := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLow == nil && errHigh == nil {
			return low, high
		}
	case 1:
		if v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err == nil {
			return v, v
		}
	}
	return 0, 0
}

// FormatRange renders a low/high pair the way the pricing table writes them.
func FormatRange(low, high float64) string {
	return fmt.Sprintf("$%.2f - $%.2f", low, high)
}
