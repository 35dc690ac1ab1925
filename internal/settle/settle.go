// Package settle orchestrates order settlement: fetch a book snapshot,
// simulate the fill, and atomically persist the trade, balances, and
// portfolio position. Each order is an independent request; concurrency
// safety for shared rows is the store's job, not this package's.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/fill"
	"github.com/udday123/PleaseGod/internal/metrics"
	"github.com/udday123/PleaseGod/internal/model"
	"github.com/udday123/PleaseGod/internal/store"
)

// Snapshotter fetches a one-shot order book snapshot for a market.
type Snapshotter interface {
	Depth(ctx context.Context, market string) (*model.BookSnapshot, error)
}

// Coordinator runs the settlement pipeline for submitted orders. The store
// handle is injected; the coordinator holds no ambient global state.
type Coordinator struct {
	books Snapshotter
	store store.Store
}

// NewCoordinator creates a settlement coordinator.
func NewCoordinator(books Snapshotter, st store.Store) *Coordinator {
	return &Coordinator{books: books, store: st}
}

// Result is the outcome of one order submission: the trade (persisted when
// a fill happened, an unpersisted echo otherwise) and a human-readable
// message for the client.
type Result struct {
	Trade   model.Trade
	Message string
}

// Settle processes one order end to end. It returns a tagged error from
// the closed set in errors.go; a zero-fill cancel is a successful Result,
// not an error, and persists nothing.
func (c *Coordinator) Settle(ctx context.Context, userID string, req model.OrderRequest) (*Result, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.SettlementLatency.WithLabelValues(req.Side).Observe(time.Since(start).Seconds())
	}()

	snapshot, err := c.books.Depth(ctx, req.Market)
	if err != nil {
		metrics.UpstreamFetchFailures.Inc()
		slog.Error("snapshot fetch failed", "market", req.Market, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, req.Market)
	}

	side := fill.SideFor(snapshot, req.Side)
	if side == nil {
		metrics.UpstreamFetchFailures.Inc()
		return nil, fmt.Errorf("%w: no %s side for %s", ErrUpstreamUnavailable, req.Side, req.Market)
	}

	var limit *decimal.Decimal
	if req.OrderType == model.OrderTypeLimit {
		limit = &req.Price
	}
	result := fill.Simulate(side, req.Side, req.Quantity, limit)

	trade := model.Trade{
		OrderID:          uuid.New().String(),
		UserID:           userID,
		Market:           req.Market,
		OrderType:        req.OrderType,
		Side:             req.Side,
		Price:            req.Price,
		Quantity:         req.Quantity,
		FilledQuantity:   result.FilledQuantity,
		UnfilledQuantity: result.UnfilledQuantity,
		AveragePrice:     result.AveragePrice,
		Status:           result.Status,
		Timestamp:        time.Now().UTC(),
		PostOnly:         req.PostOnly,
		IOC:              req.IOC,
	}

	message := describeFill(req, result)

	if result.FilledQuantity.IsPositive() {
		if err := c.store.ApplySettlement(ctx, &trade); err != nil {
			metrics.SettlementFailures.Inc()
			slog.Error("settlement failed",
				"order_id", trade.OrderID,
				"user", userID,
				"market", req.Market,
				"err", err,
			)
			return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, trade.OrderID)
		}
		message += " Trade saved to history and portfolio updated."
	} else {
		message += " No fill, trade not saved to history."
	}

	metrics.TradesTotal.WithLabelValues(trade.Side, trade.Status).Inc()
	slog.Info("order processed",
		"order_id", trade.OrderID,
		"user", userID,
		"market", req.Market,
		"type", req.OrderType,
		"side", req.Side,
		"qty", req.Quantity.String(),
		"filled", trade.FilledQuantity.String(),
		"avg_price", trade.AveragePrice.String(),
		"status", trade.Status,
	)

	return &Result{Trade: trade, Message: message}, nil
}

// validate rejects malformed requests before any network or store work.
// Limit orders must be immediate-or-cancel: there is no resting book to
// park a remainder on.
func validate(req model.OrderRequest) error {
	if req.Market == "" {
		return invalid("market", "market is required")
	}
	if _, _, err := model.SplitMarket(req.Market); err != nil {
		return invalid("market", "market must be BASE_QUOTE")
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return invalid("side", "side must be BUY or SELL")
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return invalid("quantity", "quantity must be positive")
	}

	switch req.OrderType {
	case model.OrderTypeMarket:
	case model.OrderTypeLimit:
		if req.Price.LessThanOrEqual(decimal.Zero) {
			return invalid("price", "price is required for limit orders")
		}
		if !req.IOC {
			return invalid("ioc", "limit orders must be immediate-or-cancel")
		}
	default:
		return invalid("orderType", "orderType must be Limit or Market")
	}

	return nil
}

func describeFill(req model.OrderRequest, result model.FillResult) string {
	if req.OrderType == model.OrderTypeLimit {
		switch result.Status {
		case model.StatusCanceled:
			return fmt.Sprintf("IOC %s order could not be filled and was canceled.", req.Side)
		default:
			return fmt.Sprintf("IOC %s order %s.", req.Side, lower(result.Status))
		}
	}
	if result.Status == model.StatusCanceled {
		return "Market order canceled due to insufficient liquidity."
	}
	return "Market order executed."
}

func lower(status string) string {
	switch status {
	case model.StatusFilled:
		return "filled"
	case model.StatusPartiallyFilled:
		return "partially filled"
	default:
		return "canceled"
	}
}
