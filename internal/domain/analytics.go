package domain

import "time"

// Timeframe selects the analytics aggregation window.
type Timeframe string

const (
	Timeframe1H  Timeframe = "1h"
	Timeframe4H  Timeframe = "4h"
	Timeframe1D  Timeframe = "1d"
	Timeframe7D  Timeframe = "7d"
	Timeframe30D Timeframe = "30d"
)

// Valid reports whether t is a supported timeframe.
func (t Timeframe) Valid() bool {
	switch t {
	case Timeframe1H, Timeframe4H, Timeframe1D, Timeframe7D, Timeframe30D:
		return true
	}
	return false
}

// PriceMetrics holds price benchmarks for the window. Fields are pointers
// because the analytics source omits metrics it cannot compute; an absent
// field simply never triggers a signal rule.
type PriceMetrics struct {
	CurrentCents *int64
	VWAPCents    *int64
	TWAPCents    *int64
	HighCents    *int64
	LowCents     *int64
	ChangePct    *float64
}

// VolumeMetrics holds traded volume for the window.
type VolumeMetrics struct {
	TotalQuantity int64
	TradeCount    int
}

// RiskMetrics holds risk measures for the window.
type RiskMetrics struct {
	Volatility *float64
}

// MomentumMetrics holds momentum indicators for the window.
type MomentumMetrics struct {
	MomentumPct *float64
	RSI         *float64
}

// ImpactTier is the estimated market impact of a hypothetical order of the
// given size.
type ImpactTier struct {
	Quantity  int64
	ImpactBps float64
}

// LiquidityMetrics holds liquidity measures for the window.
type LiquidityMetrics struct {
	SpreadCents *int64
	Depth       int64
	Impact      [3]ImpactTier
}

// AnalyticsSnapshot is an opaque, timestamped, immutable value per
// (listing, timeframe) fetch.
type AnalyticsSnapshot struct {
	ListingID string
	Timeframe Timeframe
	Price     PriceMetrics
	Volume    VolumeMetrics
	Risk      RiskMetrics
	Momentum  MomentumMetrics
	Liquidity LiquidityMetrics
	AsOf      time.Time
}
