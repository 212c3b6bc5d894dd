package book

import (
	"time"

	"github.com/paddockhq/marketsync/internal/domain"
)

// ComputeQuote derives the NBBO quote for a listing. Precedence: a cached
// quote record, when present, is authoritative for the bid/ask fields; only
// without one are they taken from the top of the book. Spread and mid are set
// only when both sides are present. The last-trade fields come from last and
// update regardless of book state.
func ComputeQuote(b domain.OrderBook, cached *domain.QuoteRecord, last *domain.Trade, now time.Time) domain.Quote {
	q := domain.Quote{
		ListingID: b.ListingID,
		UpdatedAt: now,
	}

	if cached != nil {
		q.BidCents = cloneInt64(cached.BidCents)
		q.BidSize = cloneInt64(cached.BidSize)
		q.AskCents = cloneInt64(cached.AskCents)
		q.AskSize = cloneInt64(cached.AskSize)
	} else {
		if bb := b.BestBid(); bb != nil {
			q.BidCents = ptrInt64(bb.PriceCents)
			q.BidSize = ptrInt64(bb.Quantity)
		}
		if ba := b.BestAsk(); ba != nil {
			q.AskCents = ptrInt64(ba.PriceCents)
			q.AskSize = ptrInt64(ba.Quantity)
		}
	}

	if q.BidCents != nil && q.AskCents != nil {
		spread := *q.AskCents - *q.BidCents
		mid := float64(*q.BidCents+*q.AskCents) / 2
		q.SpreadCents = &spread
		q.MidCents = &mid
	}

	if last != nil {
		q.LastCents = ptrInt64(last.PriceCents)
		q.LastSize = ptrInt64(last.Quantity)
		at := last.ExecutedAt
		q.LastTradeAt = &at
	}

	return q
}

func ptrInt64(v int64) *int64 { return &v }

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
