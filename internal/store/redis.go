package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot dashboard reads: balances, positions, and trade
// history. Settlement writes go to the primary store and invalidate every
// key the trade touched; reads check Redis first then fall back.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write paths (write to primary, invalidate cache) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User, seedAsset string, seedAmount decimal.Decimal) error {
	return s.primary.CreateUser(ctx, u, seedAsset, seedAmount)
}

func (s *CachedStore) ApplySettlement(ctx context.Context, trade *model.Trade) error {
	if err := s.primary.ApplySettlement(ctx, trade); err != nil {
		return err
	}

	// Invalidate everything the settlement touched; next read repopulates.
	keys := []string{
		tradesKey(trade.UserID),
		positionsKey(trade.UserID),
	}
	if base, quote, err := model.SplitMarket(trade.Market); err == nil {
		keys = append(keys, cacheBalanceKey(trade.UserID, base), cacheBalanceKey(trade.UserID, quote))
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

func (s *CachedStore) EnsureBalance(ctx context.Context, userID, asset string) (*model.Balance, error) {
	b, err := s.primary.EnsureBalance(ctx, userID, asset)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheBalanceKey(userID, asset), b)
	return b, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetBalance(ctx context.Context, userID, asset string) (*model.Balance, error) {
	var b model.Balance
	if s.cacheGet(ctx, cacheBalanceKey(userID, asset), &b) {
		return &b, nil
	}

	fresh, err := s.primary.GetBalance(ctx, userID, asset)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheBalanceKey(userID, asset), fresh)
	return fresh, nil
}

func (s *CachedStore) ListPositions(ctx context.Context, userID string) ([]model.Position, error) {
	var positions []model.Position
	if s.cacheGet(ctx, positionsKey(userID), &positions) {
		return positions, nil
	}

	positions, err := s.primary.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, positionsKey(userID), positions)
	return positions, nil
}

func (s *CachedStore) ListTrades(ctx context.Context, userID, status string) ([]model.Trade, error) {
	// Only the unfiltered list is cached; status filters go to the primary.
	if status != "" {
		return s.primary.ListTrades(ctx, userID, status)
	}

	var trades []model.Trade
	if s.cacheGet(ctx, tradesKey(userID), &trades) {
		return trades, nil
	}

	trades, err := s.primary.ListTrades(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, tradesKey(userID), trades)
	return trades, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.primary.GetUserByEmail(ctx, email)
}

func (s *CachedStore) ListBalances(ctx context.Context, userID string) ([]model.Balance, error) {
	return s.primary.ListBalances(ctx, userID)
}

func (s *CachedStore) GetPosition(ctx context.Context, userID, market string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, userID, market)
}

// --- Cache helpers ---

func (s *CachedStore) cacheGet(ctx context.Context, key string, out interface{}) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (s *CachedStore) cacheSet(ctx context.Context, key string, v interface{}) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func cacheBalanceKey(uid, asset string) string { return fmt.Sprintf("balance:%s:%s", uid, asset) }
func positionsKey(uid string) string           { return fmt.Sprintf("positions:%s", uid) }
func tradesKey(uid string) string              { return fmt.Sprintf("trades:%s", uid) }
