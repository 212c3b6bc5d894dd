package domain

import "time"

// Side indicates whether an order is a buy or a sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusActive          OrderStatus = "active"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order is an open order row as read from the snapshot query. Orders are
// immutable facts: the book is always re-derived from a fresh snapshot,
// never by mutating an Order in place.
type Order struct {
	ID         string
	ListingID  string
	Side       Side
	PriceCents int64 // limit price in integer minor units
	Quantity   int64 // requested quantity
	Filled     int64 // filled quantity
	Status     OrderStatus
	CreatedAt  time.Time
}

// Available returns the unfilled remainder of the order.
func (o Order) Available() int64 {
	return o.Quantity - o.Filled
}

// InBook reports whether the order contributes to the order book.
func (o Order) InBook() bool {
	if o.Available() <= 0 {
		return false
	}
	return o.Status == OrderStatusActive || o.Status == OrderStatusPartiallyFilled
}
