package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddockhq/marketsync/internal/domain"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func snapshot(current, vwap *int64, rsi, momentum *float64) domain.AnalyticsSnapshot {
	return domain.AnalyticsSnapshot{
		ListingID: "lst-1",
		Timeframe: domain.Timeframe1D,
		Price:     domain.PriceMetrics{CurrentCents: current, VWAPCents: vwap},
		Momentum:  domain.MomentumMetrics{RSI: rsi, MomentumPct: momentum},
	}
}

func TestDeriveStrongBuy(t *testing.T) {
	// RSI 25 (+3), momentum -6% (+1), price at 0.95x VWAP (+2): net 6.
	snap := snapshot(i64(9500), i64(10000), f64(25), f64(-6))

	sig := Derive(snap, time.Now())

	assert.Equal(t, domain.SignalBuy, sig.Action)
	assert.Equal(t, domain.StrengthStrong, sig.Strength)
	assert.Equal(t, 6, sig.BuyScore)
	assert.Equal(t, 0, sig.SellScore)
	assert.Equal(t, 6, sig.NetScore)

	// Reasons in evaluation order: RSI, momentum, VWAP.
	require.Len(t, sig.Reasons, 3)
	assert.Contains(t, sig.Reasons[0], "RSI")
	assert.Contains(t, sig.Reasons[1], "momentum")
	assert.Contains(t, sig.Reasons[2], "VWAP")
}

func TestDeriveStrongSell(t *testing.T) {
	// RSI 80 (+3 sell), momentum +8% (+1), price at 1.05x VWAP (+2): net -6.
	snap := snapshot(i64(10500), i64(10000), f64(80), f64(8))

	sig := Derive(snap, time.Now())

	assert.Equal(t, domain.SignalSell, sig.Action)
	assert.Equal(t, domain.StrengthStrong, sig.Strength)
	assert.Equal(t, -6, sig.NetScore)
}

func TestDeriveModerateBuy(t *testing.T) {
	// RSI 25 alone: net 3, moderate.
	snap := snapshot(nil, nil, f64(25), nil)

	sig := Derive(snap, time.Now())

	assert.Equal(t, domain.SignalBuy, sig.Action)
	assert.Equal(t, domain.StrengthModerate, sig.Strength)
}

func TestDeriveHoldWhenNothingTriggers(t *testing.T) {
	snap := snapshot(i64(10000), i64(10000), f64(50), f64(1))

	sig := Derive(snap, time.Now())

	assert.Equal(t, domain.SignalHold, sig.Action)
	assert.Equal(t, domain.StrengthWeak, sig.Strength)
	assert.Equal(t, []string{"no strong signals"}, sig.Reasons)
}

func TestDeriveHoldOnWeakNet(t *testing.T) {
	// Only momentum triggers: net 1, below the buy threshold.
	snap := snapshot(nil, nil, nil, f64(-6))

	sig := Derive(snap, time.Now())

	assert.Equal(t, domain.SignalHold, sig.Action)
	require.Len(t, sig.Reasons, 1)
	assert.Contains(t, sig.Reasons[0], "momentum")
}

func TestDeriveSkipsAbsentMetrics(t *testing.T) {
	// Missing VWAP means the price rule never fires, even with a price.
	snap := snapshot(i64(100), nil, nil, nil)

	sig := Derive(snap, time.Now())

	assert.Equal(t, domain.SignalHold, sig.Action)
	assert.Equal(t, []string{"no strong signals"}, sig.Reasons)
}

func TestDeriveThresholdBoundaries(t *testing.T) {
	// Exactly at the 2% VWAP band edges nothing triggers.
	snap := snapshot(i64(9800), i64(10000), nil, nil)
	assert.Equal(t, domain.SignalHold, Derive(snap, time.Now()).Action)

	snap = snapshot(i64(10200), i64(10000), nil, nil)
	assert.Equal(t, domain.SignalHold, Derive(snap, time.Now()).Action)

	// RSI exactly 30 or 70 does not trigger.
	snap = snapshot(nil, nil, f64(30), nil)
	assert.Equal(t, []string{"no strong signals"}, Derive(snap, time.Now()).Reasons)
	snap = snapshot(nil, nil, f64(70), nil)
	assert.Equal(t, []string{"no strong signals"}, Derive(snap, time.Now()).Reasons)
}

func TestDeriveIsDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := snapshot(i64(9500), i64(10000), f64(25), f64(-6))

	first := Derive(snap, now)
	second := Derive(snap, now)
	assert.Equal(t, first, second)
}
