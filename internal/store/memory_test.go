package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/model"
	"github.com/udday123/PleaseGod/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedUser(t *testing.T, s *store.MemoryStore) string {
	t.Helper()
	u := &model.User{
		ID:        uuid.New().String(),
		Email:     uuid.New().String() + "@example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), u, "USD", d(10_000_000)); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func mkTrade(userID, side string, qty, filled, avg float64, at time.Time) *model.Trade {
	return &model.Trade{
		OrderID:          uuid.New().String(),
		UserID:           userID,
		Market:           "BTC_USDC",
		OrderType:        model.OrderTypeMarket,
		Side:             side,
		Quantity:         d(qty),
		FilledQuantity:   d(filled),
		UnfilledQuantity: d(qty - filled),
		AveragePrice:     d(avg),
		Status:           model.StatusFilled,
		Timestamp:        at,
	}
}

func TestCreateUser_EmailTaken(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	u := &model.User{ID: uuid.New().String(), Email: "dup@example.com"}
	if err := s.CreateUser(ctx, u, "USD", d(100)); err != nil {
		t.Fatal(err)
	}
	again := &model.User{ID: uuid.New().String(), Email: "dup@example.com"}
	if err := s.CreateUser(ctx, again, "USD", d(100)); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestApplySettlement_BalanceDeltas(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	uid := seedUser(t, s)

	// BUY 2 @ avg 100: base +2, quote -200. USDC has no row yet so the
	// debit creates it with a negative available amount.
	if err := s.ApplySettlement(ctx, mkTrade(uid, model.SideBuy, 2, 2, 100, time.Now())); err != nil {
		t.Fatal(err)
	}

	btc, err := s.GetBalance(ctx, uid, "BTC")
	if err != nil {
		t.Fatal(err)
	}
	if !btc.Available.Equal(d(2)) {
		t.Fatalf("BTC available = %s, want 2", btc.Available)
	}
	usdc, err := s.GetBalance(ctx, uid, "USDC")
	if err != nil {
		t.Fatal(err)
	}
	if !usdc.Available.Equal(d(-200)) {
		t.Fatalf("USDC available = %s, want -200", usdc.Available)
	}

	// SELL 1 @ avg 110 reverses the flow.
	if err := s.ApplySettlement(ctx, mkTrade(uid, model.SideSell, 1, 1, 110, time.Now())); err != nil {
		t.Fatal(err)
	}
	btc, _ = s.GetBalance(ctx, uid, "BTC")
	usdc, _ = s.GetBalance(ctx, uid, "USDC")
	if !btc.Available.Equal(d(1)) {
		t.Fatalf("BTC available = %s, want 1", btc.Available)
	}
	if !usdc.Available.Equal(d(-90)) {
		t.Fatalf("USDC available = %s, want -90", usdc.Available)
	}
}

func TestApplySettlement_PositionLifecycle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	uid := seedUser(t, s)

	if err := s.ApplySettlement(ctx, mkTrade(uid, model.SideBuy, 1, 1, 100, time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplySettlement(ctx, mkTrade(uid, model.SideBuy, 1, 1, 110, time.Now())); err != nil {
		t.Fatal(err)
	}

	pos, err := s.GetPosition(ctx, uid, "BTC_USDC")
	if err != nil {
		t.Fatal(err)
	}
	if !pos.Quantity.Equal(d(2)) || !pos.AvgEntry.Equal(d(105)) {
		t.Fatalf("position = qty %s entry %s, want 2 @ 105", pos.Quantity, pos.AvgEntry)
	}

	// Selling part of the position keeps the entry price.
	if err := s.ApplySettlement(ctx, mkTrade(uid, model.SideSell, 0.5, 0.5, 120, time.Now())); err != nil {
		t.Fatal(err)
	}
	pos, _ = s.GetPosition(ctx, uid, "BTC_USDC")
	if !pos.Quantity.Equal(d(1.5)) || !pos.AvgEntry.Equal(d(105)) {
		t.Fatalf("after partial sell = qty %s entry %s", pos.Quantity, pos.AvgEntry)
	}

	// Selling the rest removes the row.
	if err := s.ApplySettlement(ctx, mkTrade(uid, model.SideSell, 1.5, 1.5, 120, time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPosition(ctx, uid, "BTC_USDC"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListTrades_NewestFirstAndFiltered(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	uid := seedUser(t, s)
	other := seedUser(t, s)

	base := time.Now().UTC()
	first := mkTrade(uid, model.SideBuy, 1, 1, 100, base)
	second := mkTrade(uid, model.SideBuy, 1, 0.5, 100, base.Add(time.Minute))
	second.Status = model.StatusPartiallyFilled
	theirs := mkTrade(other, model.SideBuy, 1, 1, 100, base.Add(2*time.Minute))

	for _, tr := range []*model.Trade{first, second, theirs} {
		if err := s.ApplySettlement(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	trades, err := s.ListTrades(ctx, uid, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	if trades[0].OrderID != second.OrderID {
		t.Fatal("expected newest trade first")
	}

	filtered, err := s.ListTrades(ctx, uid, model.StatusPartiallyFilled)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].OrderID != second.OrderID {
		t.Fatalf("filtered = %+v", filtered)
	}
}

func TestEnsureBalance_LazyCreate(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	uid := seedUser(t, s)

	if _, err := s.GetBalance(ctx, uid, "ETH"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	b, err := s.EnsureBalance(ctx, uid, "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if !b.Available.IsZero() || !b.Locked.IsZero() {
		t.Fatalf("ensured balance = %+v, want zeroes", b)
	}

	// Second call returns the same row, not a fresh one.
	again, err := s.EnsureBalance(ctx, uid, "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != b.ID {
		t.Fatal("EnsureBalance created a duplicate row")
	}
}

func TestListBalancesAndPositions_ScopedToUser(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	uid := seedUser(t, s)
	other := seedUser(t, s)

	if err := s.ApplySettlement(ctx, mkTrade(uid, model.SideBuy, 1, 1, 100, time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplySettlement(ctx, mkTrade(other, model.SideBuy, 5, 5, 100, time.Now())); err != nil {
		t.Fatal(err)
	}

	balances, err := s.ListBalances(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	// USD seed, BTC credit, USDC debit.
	if len(balances) != 3 {
		t.Fatalf("got %d balances, want 3", len(balances))
	}

	positions, err := s.ListPositions(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 || !positions[0].Quantity.Equal(d(1)) {
		t.Fatalf("positions = %+v", positions)
	}
}
