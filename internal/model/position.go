package model

import "github.com/shopspring/decimal"

// PositionChange describes what a settled fill does to a portfolio row.
type PositionChange int

const (
	// PositionNoop leaves the portfolio untouched (SELL with no open position).
	PositionNoop PositionChange = iota
	// PositionUpsert writes the returned quantity and average entry.
	PositionUpsert
	// PositionDelete removes the row: quantity dropped to zero or below.
	PositionDelete
)

// AdvancePosition computes the portfolio row resulting from a settled fill.
//
// BUY with no prior row opens a position at the fill price. Subsequent BUYs
// blend a cost-weighted average entry. SELL reduces quantity and draws the
// total cost down at the current average entry. The entry price does not
// move on a sale; this is not a realized-PnL computation. A SELL that takes
// quantity to zero or below deletes the row: short positions are never
// retained.
func AdvancePosition(prev *Position, side string, filledQty, avgPrice decimal.Decimal) (Position, PositionChange) {
	if prev == nil {
		if side != SideBuy {
			return Position{}, PositionNoop
		}
		return Position{Quantity: filledQty, AvgEntry: avgPrice}, PositionUpsert
	}

	if side == SideBuy {
		newQty := prev.Quantity.Add(filledQty)
		totalCost := prev.AvgEntry.Mul(prev.Quantity).Add(avgPrice.Mul(filledQty))
		return Position{
			UserID:   prev.UserID,
			Market:   prev.Market,
			Quantity: newQty,
			AvgEntry: totalCost.Div(newQty),
		}, PositionUpsert
	}

	newQty := prev.Quantity.Sub(filledQty)
	if newQty.LessThanOrEqual(decimal.Zero) {
		return Position{}, PositionDelete
	}
	return Position{
		UserID:   prev.UserID,
		Market:   prev.Market,
		Quantity: newQty,
		AvgEntry: prev.AvgEntry,
	}, PositionUpsert
}
