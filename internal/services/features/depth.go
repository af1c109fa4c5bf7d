package features

import (
	"math"
	"sort"

	"MarketRadar/internal/domain/models"
)

// DetectOrderBookWalls flags levels whose notional is at least multiple times the
// mean notional of their side.
func DetectOrderBookWalls(book *models.OrderBook, multiple float64) []models.InstitutionalOrder {
	walls := []models.InstitutionalOrder{}
	if book == nil || multiple <= 0 {
		return walls
	}
	walls = append(walls, sideWalls(book.Bids, multiple, "bid_wall", models.DirectionBuy)...)
	walls = append(walls, sideWalls(book.Asks, multiple, "ask_wall", models.DirectionSell)...)

	sort.SliceStable(walls, func(i, j int) bool {
		if walls[i].Confidence != walls[j].Confidence {
			return walls[i].Confidence > walls[j].Confidence
		}
		return walls[i].Price < walls[j].Price
	})
	return walls
}

func sideWalls(levels []models.BookLevel, multiple float64, kind, dir string) []models.InstitutionalOrder {
	if len(levels) < 2 {
		return nil
	}
	total := 0.0
	for _, l := range levels {
		total += l.Notional()
	}
	mean := total / float64(len(levels))
	if mean <= 0 {
		return nil
	}

	var out []models.InstitutionalOrder
	for _, l := range levels {
		n := l.Notional()
		if n < mean*multiple {
			continue
		}
		out = append(out, models.InstitutionalOrder{
			Type:       kind,
			Direction:  dir,
			Price:      l.Price,
			Size:       l.Size,
			Confidence: math.Min(n/(mean*multiple*2), 0.95),
		})
	}
	return out
}
