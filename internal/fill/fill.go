// Package fill computes simulated fills against an order book snapshot.
//
// A submitted Market or IOC-Limit order is matched against one side of a
// fetched snapshot: BUY consumes asks (ascending by price), SELL consumes
// bids (descending). The walk is identical for both order types; a limit
// price only adds a stop condition. All arithmetic uses shopspring/decimal,
// never float64 for money.
package fill

import (
	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/model"
)

// SideFor returns the book side an order consumes: BUY takes asks,
// SELL takes bids.
func SideFor(snapshot *model.BookSnapshot, side string) []model.Level {
	if side == model.SideBuy {
		return snapshot.Asks
	}
	return snapshot.Bids
}

// Simulate walks the given book levels best price first and computes the
// filled quantity, unfilled remainder, and volume-weighted average price
// for an order of requestedQty on the given side.
//
// The levels must already be ordered best price first (asks ascending,
// bids descending), which is how the upstream depth endpoint returns them.
// A non-nil limit stops the walk once a level is worse than the limit:
// for BUY when the level price exceeds it, for SELL when the level price
// drops below it. Market orders pass limit == nil.
//
// Callers are responsible for rejecting requestedQty <= 0 before calling.
func Simulate(levels []model.Level, side string, requestedQty decimal.Decimal, limit *decimal.Decimal) model.FillResult {
	remaining := requestedQty
	totalValue := decimal.Zero
	totalFilled := decimal.Zero

	for _, level := range levels {
		if remaining.IsZero() {
			break
		}
		if limit != nil {
			if side == model.SideBuy && level.Price.GreaterThan(*limit) {
				break
			}
			if side == model.SideSell && level.Price.LessThan(*limit) {
				break
			}
		}

		tradeQty := decimal.Min(level.Quantity, remaining)
		totalValue = totalValue.Add(level.Price.Mul(tradeQty))
		totalFilled = totalFilled.Add(tradeQty)
		remaining = remaining.Sub(tradeQty)
	}

	result := model.FillResult{
		FilledQuantity:   totalFilled,
		UnfilledQuantity: remaining,
		AveragePrice:     decimal.Zero,
	}

	switch {
	case totalFilled.IsZero():
		result.Status = model.StatusCanceled
	case remaining.IsZero():
		result.AveragePrice = totalValue.Div(totalFilled)
		result.Status = model.StatusFilled
	default:
		result.AveragePrice = totalValue.Div(totalFilled)
		result.Status = model.StatusPartiallyFilled
	}

	return result
}
