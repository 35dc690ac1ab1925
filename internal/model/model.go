// Package model defines the core domain types shared across the exchange
// backend. All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order types.
const (
	OrderTypeLimit  = "Limit"
	OrderTypeMarket = "Market"
)

// Terminal trade statuses. There is no resting/open state: the unfilled
// remainder of a Market or IOC order is discarded, never parked on a book.
const (
	StatusFilled          = "Filled"
	StatusPartiallyFilled = "Partially Filled"
	StatusCanceled        = "Canceled"
)

// Level is one price level of an order book side.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BookSnapshot is a one-shot capture of upstream liquidity: asks ascending
// by price, bids descending. Immutable once fetched; the caller accepts the
// race with the live book.
type BookSnapshot struct {
	Market       string    `json:"market"`
	Bids         []Level   `json:"bids"`
	Asks         []Level   `json:"asks"`
	LastUpdateID string    `json:"last_update_id"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// FillResult is the outcome of walking a book snapshot for one order.
type FillResult struct {
	FilledQuantity   decimal.Decimal `json:"filled_quantity"`
	UnfilledQuantity decimal.Decimal `json:"unfilled_quantity"`
	AveragePrice     decimal.Decimal `json:"average_price"` // volume-weighted, zero if nothing filled
	Status           string          `json:"status"`
}

// OrderRequest is the ephemeral input to trade submission. Not persisted
// unless it produces a fill.
type OrderRequest struct {
	Market    string          `json:"market"` // e.g. "BTC_USDC"
	OrderType string          `json:"orderType"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"` // required for Limit
	Quantity  decimal.Decimal `json:"quantity"`
	PostOnly  bool            `json:"postOnly"`
	IOC       bool            `json:"ioc"`
}

// Trade is an immutable record of a settled order. One row per order that
// achieved a fill; never amended afterward.
type Trade struct {
	OrderID          string          `json:"orderId" db:"order_id"`
	UserID           string          `json:"userId" db:"user_id"`
	Market           string          `json:"market" db:"market"`
	OrderType        string          `json:"orderType" db:"order_type"`
	Side             string          `json:"side" db:"side"`
	Price            decimal.Decimal `json:"price" db:"price"` // requested price
	Quantity         decimal.Decimal `json:"quantity" db:"quantity"`
	FilledQuantity   decimal.Decimal `json:"filledQuantity" db:"filled_quantity"`
	UnfilledQuantity decimal.Decimal `json:"unfilledQuantity" db:"unfilled_quantity"`
	AveragePrice     decimal.Decimal `json:"averagePrice" db:"average_price"`
	Status           string          `json:"status" db:"status"`
	Timestamp        time.Time       `json:"timestamp" db:"timestamp"`
	PostOnly         bool            `json:"postOnly" db:"post_only"`
	IOC              bool            `json:"ioc" db:"ioc"`
}

// Balance is one row per (user, asset). Rows are created lazily on first
// reference, possibly with a negative available amount when the first
// event is a debit, and never deleted. Locked is tracked but settlement
// never moves it.
type Balance struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Asset     string          `json:"asset" db:"asset"`
	Available decimal.Decimal `json:"available" db:"available"`
	Locked    decimal.Decimal `json:"locked" db:"locked"`
}

// Position is one row per (user, market): accumulated base-asset quantity
// and average entry price. Created on first BUY fill, deleted when quantity
// drops to zero or below.
type Position struct {
	ID       string          `json:"id" db:"id"`
	UserID   string          `json:"user_id" db:"user_id"`
	Market   string          `json:"market" db:"market"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`
	AvgEntry decimal.Decimal `json:"avg_entry" db:"avg_entry"`
}

// User is a registered account. The password is stored as an argon2id hash.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SplitMarket derives base and quote assets from a market identifier,
// e.g. "BTC_USDC" → ("BTC", "USDC").
func SplitMarket(market string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(market, "_")
	if !ok || base == "" || quote == "" {
		return "", "", fmt.Errorf("market %q has no base_quote separator", market)
	}
	return base, quote, nil
}
