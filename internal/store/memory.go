package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// The single mutex gives the same all-or-nothing settlement guarantee the
// PostgreSQL transaction provides.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*model.User     // by id
	emails    map[string]string          // email → user id
	trades    []model.Trade              // append-only
	balances  map[string]*model.Balance  // userID|asset
	positions map[string]*model.Position // userID|market
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*model.User),
		emails:    make(map[string]string),
		balances:  make(map[string]*model.Balance),
		positions: make(map[string]*model.Position),
	}
}

func balanceKey(userID, asset string) string   { return userID + "|" + asset }
func positionKey(userID, market string) string { return userID + "|" + market }

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User, seedAsset string, seedAmount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[u.Email]; taken {
		return ErrEmailTaken
	}

	cp := *u
	s.users[u.ID] = &cp
	s.emails[u.Email] = u.ID
	s.balances[balanceKey(u.ID, seedAsset)] = &model.Balance{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Asset:     seedAsset,
		Available: seedAmount,
		Locked:    decimal.Zero,
	}
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// ApplySettlement mirrors the PostgreSQL transaction: nothing is mutated
// until every step has been validated, so a failure leaves no partial state.
func (s *MemoryStore) ApplySettlement(_ context.Context, trade *model.Trade) error {
	base, quote, baseDelta, quoteDelta, err := settlementDeltas(trade)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *model.Position
	if p, ok := s.positions[positionKey(trade.UserID, trade.Market)]; ok {
		cp := *p
		prev = &cp
	}
	next, change := model.AdvancePosition(prev, trade.Side, trade.FilledQuantity, trade.AveragePrice)

	s.trades = append(s.trades, *trade)
	s.applyBalanceDelta(trade.UserID, base, baseDelta)
	s.applyBalanceDelta(trade.UserID, quote, quoteDelta)

	switch change {
	case model.PositionUpsert:
		key := positionKey(trade.UserID, trade.Market)
		if p, ok := s.positions[key]; ok {
			p.Quantity = next.Quantity
			p.AvgEntry = next.AvgEntry
		} else {
			s.positions[key] = &model.Position{
				ID:       uuid.New().String(),
				UserID:   trade.UserID,
				Market:   trade.Market,
				Quantity: next.Quantity,
				AvgEntry: next.AvgEntry,
			}
		}
	case model.PositionDelete:
		delete(s.positions, positionKey(trade.UserID, trade.Market))
	}

	return nil
}

// applyBalanceDelta increments a balance row, lazily creating it, possibly
// with a negative available amount when the first event is a debit.
func (s *MemoryStore) applyBalanceDelta(userID, asset string, delta decimal.Decimal) {
	key := balanceKey(userID, asset)
	if b, ok := s.balances[key]; ok {
		b.Available = b.Available.Add(delta)
		return
	}
	s.balances[key] = &model.Balance{
		ID:        uuid.New().String(),
		UserID:    userID,
		Asset:     asset,
		Available: delta,
		Locked:    decimal.Zero,
	}
}

func (s *MemoryStore) ListTrades(_ context.Context, userID, status string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	for _, t := range s.trades {
		if t.UserID != userID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, t)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

func (s *MemoryStore) GetBalance(_ context.Context, userID, asset string) (*model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[balanceKey(userID, asset)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) EnsureBalance(_ context.Context, userID, asset string) (*model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey(userID, asset)
	if b, ok := s.balances[key]; ok {
		cp := *b
		return &cp, nil
	}
	b := &model.Balance{
		ID:        uuid.New().String(),
		UserID:    userID,
		Asset:     asset,
		Available: decimal.Zero,
		Locked:    decimal.Zero,
	}
	s.balances[key] = b
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) ListBalances(_ context.Context, userID string) ([]model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Balance
	for _, b := range s.balances {
		if b.UserID == userID {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	return result, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID, market string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey(userID, market)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Market < result[j].Market })
	return result, nil
}
