// Package book derives the price-leveled order book and the NBBO quote from
// order snapshots. Everything here is pure: the same snapshot always produces
// the same book, which is what makes the refresh path safe to re-run after a
// change-feed gap.
package book

import (
	"sort"
	"time"

	"github.com/paddockhq/marketsync/internal/domain"
)

// DefaultDepth is the number of levels kept per side when no depth is
// configured.
const DefaultDepth = 10

// Aggregator folds a full snapshot of open orders into an OrderBook.
type Aggregator struct {
	depth int
}

// NewAggregator creates an Aggregator keeping at most depth levels per side.
func NewAggregator(depth int) *Aggregator {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Aggregator{depth: depth}
}

// Build re-derives the book from the current snapshot. Orders that are filled,
// cancelled, or have no available quantity are excluded. Two orders at the
// same price merge into one level. The input slice is not mutated and the
// result is independent of input order.
func (a *Aggregator) Build(listingID string, orders []domain.Order, asOf time.Time) domain.OrderBook {
	bidLevels := make(map[int64]*domain.PriceLevel)
	askLevels := make(map[int64]*domain.PriceLevel)

	for _, o := range orders {
		if !o.InBook() {
			continue
		}
		levels := bidLevels
		if o.Side == domain.SideSell {
			levels = askLevels
		}
		lvl, ok := levels[o.PriceCents]
		if !ok {
			lvl = &domain.PriceLevel{PriceCents: o.PriceCents}
			levels[o.PriceCents] = lvl
		}
		lvl.Quantity += o.Available()
		lvl.Orders++
	}

	bids := flatten(bidLevels)
	asks := flatten(askLevels)

	// Bids descending, asks ascending.
	sort.Slice(bids, func(i, j int) bool { return bids[i].PriceCents > bids[j].PriceCents })
	sort.Slice(asks, func(i, j int) bool { return asks[i].PriceCents < asks[j].PriceCents })

	book := domain.OrderBook{
		ListingID: listingID,
		Bids:      truncate(bids, a.depth),
		Asks:      truncate(asks, a.depth),
		AsOf:      asOf,
	}

	// A crossed or locked market is surfaced to the caller, not resolved.
	if bb, ba := book.BestBid(), book.BestAsk(); bb != nil && ba != nil && bb.PriceCents >= ba.PriceCents {
		book.Crossed = true
	}

	return book
}

func flatten(m map[int64]*domain.PriceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(m))
	for _, lvl := range m {
		out = append(out, *lvl)
	}
	return out
}

func truncate(levels []domain.PriceLevel, depth int) []domain.PriceLevel {
	if len(levels) > depth {
		return levels[:depth]
	}
	return levels
}
