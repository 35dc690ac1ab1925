// Package store defines the persistence interface for the exchange backend.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("store: email already registered")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// ApplySettlement is the only writer of trades, balances, and positions and
// must be all-or-nothing: a failed trade insert leaves no balance or
// portfolio mutation behind, and vice versa.
type Store interface {
	// --- Users ---

	// CreateUser persists a new user and seeds an initial quote-asset
	// balance in the same atomic unit.
	CreateUser(ctx context.Context, u *model.User, seedAsset string, seedAmount decimal.Decimal) error

	// GetUserByEmail retrieves a user by email, ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// --- Settlement ---

	// ApplySettlement atomically inserts the trade record, applies the
	// base/quote balance deltas implied by its side and fill, and advances
	// the (user, market) portfolio position.
	ApplySettlement(ctx context.Context, trade *model.Trade) error

	// --- Trade history ---

	// ListTrades returns a user's trades newest first, optionally filtered
	// by status.
	ListTrades(ctx context.Context, userID, status string) ([]model.Trade, error)

	// --- Balances ---

	// GetBalance retrieves one (user, asset) balance, ErrNotFound if absent.
	GetBalance(ctx context.Context, userID, asset string) (*model.Balance, error)

	// EnsureBalance retrieves one (user, asset) balance, lazily creating a
	// zero row if none exists.
	EnsureBalance(ctx context.Context, userID, asset string) (*model.Balance, error)

	// ListBalances returns all balances for a user.
	ListBalances(ctx context.Context, userID string) ([]model.Balance, error)

	// --- Portfolio ---

	// GetPosition retrieves one (user, market) position, ErrNotFound if absent.
	GetPosition(ctx context.Context, userID, market string) (*model.Position, error)

	// ListPositions returns all open positions for a user.
	ListPositions(ctx context.Context, userID string) ([]model.Position, error)
}

// settlementDeltas derives the balance mutations implied by a settled trade:
// BUY debits the quote asset by filled×avg and credits the base asset by
// filled; SELL is the reverse.
func settlementDeltas(trade *model.Trade) (base, quote string, baseDelta, quoteDelta decimal.Decimal, err error) {
	base, quote, err = model.SplitMarket(trade.Market)
	if err != nil {
		return "", "", decimal.Zero, decimal.Zero, err
	}

	totalValue := trade.FilledQuantity.Mul(trade.AveragePrice)
	if trade.Side == model.SideBuy {
		return base, quote, trade.FilledQuantity, totalValue.Neg(), nil
	}
	return base, quote, trade.FilledQuantity.Neg(), totalValue, nil
}
