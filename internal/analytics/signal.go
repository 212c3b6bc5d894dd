package analytics

import (
	"fmt"
	"time"

	"github.com/paddockhq/marketsync/internal/domain"
)

// Scoring weights and thresholds for the signal rules.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
	rsiWeight     = 3

	momentumBound  = 5.0
	momentumWeight = 1

	vwapDiscount = 0.98
	vwapPremium  = 1.02
	vwapWeight   = 2

	buyThreshold    = 3
	strongThreshold = 5
)

// Derive computes the buy/sell/hold signal from one analytics snapshot. Pure
// and deterministic: no side effects, no network, no state. Absent metrics
// simply never trigger their rule. Rules are evaluated RSI, momentum, VWAP,
// and each triggered rule appends a human-readable reason.
func Derive(snap domain.AnalyticsSnapshot, now time.Time) domain.TradeSignal {
	var buy, sell int
	var reasons []string

	if rsi := snap.Momentum.RSI; rsi != nil {
		switch {
		case *rsi < rsiOversold:
			buy += rsiWeight
			reasons = append(reasons, fmt.Sprintf("RSI %.1f is oversold (below %.0f)", *rsi, rsiOversold))
		case *rsi > rsiOverbought:
			sell += rsiWeight
			reasons = append(reasons, fmt.Sprintf("RSI %.1f is overbought (above %.0f)", *rsi, rsiOverbought))
		}
	}

	if m := snap.Momentum.MomentumPct; m != nil {
		switch {
		case *m < -momentumBound:
			buy += momentumWeight
			reasons = append(reasons, fmt.Sprintf("momentum %.1f%% shows a pullback", *m))
		case *m > momentumBound:
			sell += momentumWeight
			reasons = append(reasons, fmt.Sprintf("momentum %.1f%% shows a run-up", *m))
		}
	}

	if cur, vwap := snap.Price.CurrentCents, snap.Price.VWAPCents; cur != nil && vwap != nil && *vwap > 0 {
		price := float64(*cur)
		ref := float64(*vwap)
		switch {
		case price < vwapDiscount*ref:
			buy += vwapWeight
			reasons = append(reasons, fmt.Sprintf("price %.1f%% below VWAP", (1-price/ref)*100))
		case price > vwapPremium*ref:
			sell += vwapWeight
			reasons = append(reasons, fmt.Sprintf("price %.1f%% above VWAP", (price/ref-1)*100))
		}
	}

	net := buy - sell
	sig := domain.TradeSignal{
		ListingID:   snap.ListingID,
		Timeframe:   snap.Timeframe,
		Action:      domain.SignalHold,
		Strength:    domain.StrengthWeak,
		BuyScore:    buy,
		SellScore:   sell,
		NetScore:    net,
		Reasons:     reasons,
		GeneratedAt: now,
	}

	switch {
	case net >= buyThreshold:
		sig.Action = domain.SignalBuy
		sig.Strength = domain.StrengthModerate
		if net >= strongThreshold {
			sig.Strength = domain.StrengthStrong
		}
	case net <= -buyThreshold:
		sig.Action = domain.SignalSell
		sig.Strength = domain.StrengthModerate
		if net <= -strongThreshold {
			sig.Strength = domain.StrengthStrong
		}
	}

	if len(sig.Reasons) == 0 {
		sig.Reasons = []string{"no strong signals"}
	}
	return sig
}
