package domain

import "time"

// SignalAction is the derived trading recommendation.
type SignalAction string

const (
	SignalBuy  SignalAction = "buy"
	SignalSell SignalAction = "sell"
	SignalHold SignalAction = "hold"
)

// SignalStrength qualifies how decisive the score was.
type SignalStrength string

const (
	StrengthStrong   SignalStrength = "strong"
	StrengthModerate SignalStrength = "moderate"
	StrengthWeak     SignalStrength = "weak"
)

// TradeSignal is the deterministic output of the signal engine for one
// analytics snapshot. Reasons list every triggered rule in evaluation order.
type TradeSignal struct {
	ListingID   string
	Timeframe   Timeframe
	Action      SignalAction
	Strength    SignalStrength
	BuyScore    int
	SellScore   int
	NetScore    int
	Reasons     []string
	GeneratedAt time.Time
}
