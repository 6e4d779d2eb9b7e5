// Package aggregation sums enriched positions into portfolio totals and
// builds the allocation breakdown.
package aggregation

import (
	"sort"

	"github.com/hsnsmii/finport/internal/domain"
)

// Palette is the cyclic color palette for allocation slices. It is
// configuration data, injected at construction.
type Palette []string

// Color returns the palette color for a slice rank.
func (p Palette) Color(rank int) string {
	return p[rank%len(p)]
}

// Aggregate derives a portfolio snapshot from an enriched position list.
//
// Positions whose market value is nil contribute 0 to both totals and are
// excluded from the allocation, but they stay in the caller's position list
// as "data unavailable". The function is deterministic: identical input
// yields an identical snapshot.
func Aggregate(enriched []domain.EnrichedPosition, palette Palette) domain.PortfolioSnapshot {
	snapshot := domain.PortfolioSnapshot{
		Allocation: []domain.AllocationSlice{},
	}

	for _, pos := range enriched {
		if pos.MarketValue != nil {
			snapshot.TotalMarketValue += *pos.MarketValue
		}
		if pos.ProfitLoss != nil {
			snapshot.TotalProfitLoss += *pos.ProfitLoss
		}
	}

	// Only positively valued positions participate in the allocation.
	participants := make([]domain.EnrichedPosition, 0, len(enriched))
	for _, pos := range enriched {
		if pos.MarketValue != nil && *pos.MarketValue > 0 {
			participants = append(participants, pos)
		}
	}

	// Descending by market value; ties keep input order.
	sort.SliceStable(participants, func(i, j int) bool {
		return *participants[i].MarketValue > *participants[j].MarketValue
	})

	for rank, pos := range participants {
		snapshot.Allocation = append(snapshot.Allocation, domain.AllocationSlice{
			Symbol:     pos.Symbol,
			Value:      *pos.MarketValue,
			ColorIndex: rank % len(palette),
			Color:      palette.Color(rank),
		})
	}

	return snapshot
}
