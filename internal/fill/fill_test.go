package fill_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/fill"
	"github.com/udday123/PleaseGod/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func lvl(price, qty float64) model.Level {
	return model.Level{Price: d(price), Quantity: d(qty)}
}

func limit(f float64) *decimal.Decimal {
	p := d(f)
	return &p
}

func TestSimulate_MarketBuyAcrossLevels(t *testing.T) {
	asks := []model.Level{lvl(100, 1.0), lvl(101, 1.0)}

	res := fill.Simulate(asks, model.SideBuy, d(1.5), nil)

	if res.Status != model.StatusFilled {
		t.Fatalf("expected Filled, got %s", res.Status)
	}
	if !res.FilledQuantity.Equal(d(1.5)) {
		t.Errorf("expected filled 1.5, got %s", res.FilledQuantity)
	}
	if !res.UnfilledQuantity.IsZero() {
		t.Errorf("expected unfilled 0, got %s", res.UnfilledQuantity)
	}
	// (100×1.0 + 101×0.5) / 1.5
	want := d(100).Mul(d(1.0)).Add(d(101).Mul(d(0.5))).Div(d(1.5))
	if !res.AveragePrice.Equal(want) {
		t.Errorf("expected avg %s, got %s", want, res.AveragePrice)
	}
}

func TestSimulate_IOCBuyLimitUnreachable(t *testing.T) {
	asks := []model.Level{lvl(101, 5.0)}

	res := fill.Simulate(asks, model.SideBuy, d(2), limit(100))

	if res.Status != model.StatusCanceled {
		t.Fatalf("expected Canceled, got %s", res.Status)
	}
	if !res.FilledQuantity.IsZero() {
		t.Errorf("expected zero fill, got %s", res.FilledQuantity)
	}
	if !res.UnfilledQuantity.Equal(d(2)) {
		t.Errorf("expected unfilled 2, got %s", res.UnfilledQuantity)
	}
	if !res.AveragePrice.IsZero() {
		t.Errorf("expected zero avg price, got %s", res.AveragePrice)
	}
}

func TestSimulate_SellAgainstBids(t *testing.T) {
	bids := []model.Level{lvl(50, 1.0), lvl(49, 3.0)}

	res := fill.Simulate(bids, model.SideSell, d(2.0), nil)

	if res.Status != model.StatusFilled {
		t.Fatalf("expected Filled, got %s", res.Status)
	}
	if !res.AveragePrice.Equal(d(49.5)) {
		t.Errorf("expected avg 49.5, got %s", res.AveragePrice)
	}
}

func TestSimulate_PartialFill(t *testing.T) {
	asks := []model.Level{lvl(100, 1.0)}

	res := fill.Simulate(asks, model.SideBuy, d(3), nil)

	if res.Status != model.StatusPartiallyFilled {
		t.Fatalf("expected Partially Filled, got %s", res.Status)
	}
	if !res.FilledQuantity.Equal(d(1)) {
		t.Errorf("expected filled 1, got %s", res.FilledQuantity)
	}
	if !res.UnfilledQuantity.Equal(d(2)) {
		t.Errorf("expected unfilled 2, got %s", res.UnfilledQuantity)
	}
	if !res.AveragePrice.Equal(d(100)) {
		t.Errorf("expected avg 100, got %s", res.AveragePrice)
	}
}

func TestSimulate_EmptyBookSide(t *testing.T) {
	res := fill.Simulate(nil, model.SideBuy, d(1), nil)

	if res.Status != model.StatusCanceled {
		t.Fatalf("expected Canceled on empty side, got %s", res.Status)
	}
	if !res.UnfilledQuantity.Equal(d(1)) {
		t.Errorf("expected unfilled 1, got %s", res.UnfilledQuantity)
	}
}

func TestSimulate_SellLimitStopsAtWorsePrice(t *testing.T) {
	bids := []model.Level{lvl(50, 1.0), lvl(48, 5.0)}

	res := fill.Simulate(bids, model.SideSell, d(3), limit(49))

	// Only the 50 level is acceptable; 48 < 49 stops the walk.
	if res.Status != model.StatusPartiallyFilled {
		t.Fatalf("expected Partially Filled, got %s", res.Status)
	}
	if !res.FilledQuantity.Equal(d(1)) {
		t.Errorf("expected filled 1, got %s", res.FilledQuantity)
	}
	if !res.AveragePrice.Equal(d(50)) {
		t.Errorf("expected avg 50, got %s", res.AveragePrice)
	}
}

func TestSimulate_BuyLimitConsumesUpToLimit(t *testing.T) {
	asks := []model.Level{lvl(100, 1.0), lvl(100.5, 1.0), lvl(102, 4.0)}

	res := fill.Simulate(asks, model.SideBuy, d(5), limit(101))

	if !res.FilledQuantity.Equal(d(2)) {
		t.Errorf("expected filled 2, got %s", res.FilledQuantity)
	}
	if !res.UnfilledQuantity.Equal(d(3)) {
		t.Errorf("expected unfilled 3, got %s", res.UnfilledQuantity)
	}
	if !res.AveragePrice.Equal(d(100.25)) {
		t.Errorf("expected avg 100.25, got %s", res.AveragePrice)
	}
}

// Conservation: filled + unfilled always equals the requested quantity.
func TestSimulate_Conservation(t *testing.T) {
	asks := []model.Level{lvl(100, 0.3), lvl(100.1, 0.7), lvl(100.2, 2.5)}

	for _, qty := range []decimal.Decimal{d(0.1), d(0.3), d(1), d(3.5), d(10)} {
		res := fill.Simulate(asks, model.SideBuy, qty, nil)
		if !res.FilledQuantity.Add(res.UnfilledQuantity).Equal(qty) {
			t.Errorf("qty %s: filled %s + unfilled %s != requested",
				qty, res.FilledQuantity, res.UnfilledQuantity)
		}
	}
}

// VWAP stays decimal-exact: 0.1-style quantities must not drift.
func TestSimulate_ExactDecimalArithmetic(t *testing.T) {
	one := decimal.RequireFromString("0.1")
	asks := []model.Level{
		{Price: decimal.RequireFromString("100.01"), Quantity: one},
		{Price: decimal.RequireFromString("100.02"), Quantity: one},
		{Price: decimal.RequireFromString("100.03"), Quantity: one},
	}

	res := fill.Simulate(asks, model.SideBuy, decimal.RequireFromString("0.3"), nil)

	if res.Status != model.StatusFilled {
		t.Fatalf("expected Filled, got %s", res.Status)
	}
	if !res.AveragePrice.Equal(decimal.RequireFromString("100.02")) {
		t.Errorf("expected exact avg 100.02, got %s", res.AveragePrice)
	}
}

func TestSideFor(t *testing.T) {
	snap := &model.BookSnapshot{
		Bids: []model.Level{lvl(99, 1)},
		Asks: []model.Level{lvl(101, 1)},
	}

	if got := fill.SideFor(snap, model.SideBuy); !got[0].Price.Equal(d(101)) {
		t.Errorf("BUY should consume asks, got price %s", got[0].Price)
	}
	if got := fill.SideFor(snap, model.SideSell); !got[0].Price.Equal(d(99)) {
		t.Errorf("SELL should consume bids, got price %s", got[0].Price)
	}
}

// marginalPrices fills increasing quantities against the same levels and
// derives the price of each successive slice of liquidity from the change
// in total cost. The sequence reconstructs the order levels were consumed in.
func marginalPrices(t *testing.T, levels []model.Level, side string, steps []float64) []decimal.Decimal {
	t.Helper()
	var out []decimal.Decimal
	prevCost := decimal.Zero
	prevFilled := decimal.Zero
	for _, q := range steps {
		res := fill.Simulate(levels, side, d(q), nil)
		cost := res.AveragePrice.Mul(res.FilledQuantity)
		dq := res.FilledQuantity.Sub(prevFilled)
		if dq.IsZero() {
			continue
		}
		out = append(out, cost.Sub(prevCost).Div(dq))
		prevCost = cost
		prevFilled = res.FilledQuantity
	}
	return out
}

func TestSimulate_ConsumesBestPricesFirst(t *testing.T) {
	asks := []model.Level{lvl(99, 1), lvl(102, 2), lvl(105, 1)}

	prices := marginalPrices(t, asks, model.SideBuy, []float64{0.5, 1, 2, 3, 4, 5})
	if len(prices) < 3 {
		t.Fatalf("expected at least 3 slices, got %d", len(prices))
	}
	for i := 1; i < len(prices); i++ {
		if prices[i].LessThan(prices[i-1]) {
			t.Errorf("BUY slice %d at %s is cheaper than earlier slice at %s", i, prices[i], prices[i-1])
		}
	}
	// The first slice comes from the best ask, the last from the worst.
	if !prices[0].Equal(d(99)) {
		t.Errorf("first slice price = %s, want 99", prices[0])
	}
	if !prices[len(prices)-1].Equal(d(105)) {
		t.Errorf("last slice price = %s, want 105", prices[len(prices)-1])
	}

	bids := []model.Level{lvl(50, 1), lvl(48, 3), lvl(45, 2)}
	prices = marginalPrices(t, bids, model.SideSell, []float64{0.5, 1, 2, 4, 5})
	for i := 1; i < len(prices); i++ {
		if prices[i].GreaterThan(prices[i-1]) {
			t.Errorf("SELL slice %d at %s is richer than earlier slice at %s", i, prices[i], prices[i-1])
		}
	}
	if !prices[0].Equal(d(50)) {
		t.Errorf("first slice price = %s, want 50", prices[0])
	}
	if !prices[len(prices)-1].Equal(d(45)) {
		t.Errorf("last slice price = %s, want 45", prices[len(prices)-1])
	}
}
