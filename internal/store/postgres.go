package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Settlement runs in a single transaction; concurrent settlements touching
// the same (user, asset) or (user, market) rows serialize through row-level
// locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User, seedAsset string, seedAmount decimal.Decimal) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, u.Email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO balances (id, user_id, asset, available, locked)
		 VALUES ($1, $2, $3, $4::NUMERIC, 0)`,
		uuid.New().String(), u.ID, seedAsset, seedAmount.String(),
	); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// ApplySettlement persists the full outcome of one fill inside a single
// transaction: the immutable trade row, both balance deltas, and the
// portfolio position. Any failure rolls the whole thing back.
func (s *PostgresStore) ApplySettlement(ctx context.Context, trade *model.Trade) error {
	base, quote, baseDelta, quoteDelta, err := settlementDeltas(trade)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx,
		`INSERT INTO trades (order_id, user_id, market, order_type, side,
		                     price, quantity, filled_quantity, unfilled_quantity,
		                     average_price, status, timestamp, post_only, ioc)
		 VALUES ($1, $2, $3, $4, $5,
		         $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
		         $10::NUMERIC, $11, $12, $13, $14)`,
		trade.OrderID, trade.UserID, trade.Market, trade.OrderType, trade.Side,
		trade.Price.String(), trade.Quantity.String(),
		trade.FilledQuantity.String(), trade.UnfilledQuantity.String(),
		trade.AveragePrice.String(), trade.Status, trade.Timestamp,
		trade.PostOnly, trade.IOC,
	); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if err := upsertBalance(ctx, tx, trade.UserID, base, baseDelta); err != nil {
		return fmt.Errorf("base balance: %w", err)
	}
	if err := upsertBalance(ctx, tx, trade.UserID, quote, quoteDelta); err != nil {
		return fmt.Errorf("quote balance: %w", err)
	}

	if err := advancePosition(ctx, tx, trade); err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// upsertBalance applies a signed delta to (user, asset), creating the row
// lazily, with a negative available amount if the first event is a debit.
func upsertBalance(ctx context.Context, tx pgx.Tx, userID, asset string, delta decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO balances (id, user_id, asset, available, locked)
		 VALUES ($1, $2, $3, $4::NUMERIC, 0)
		 ON CONFLICT (user_id, asset)
		 DO UPDATE SET available = balances.available + EXCLUDED.available`,
		uuid.New().String(), userID, asset, delta.String(),
	)
	return err
}

// advancePosition reads the current (user, market) row under FOR UPDATE,
// applies the fill, and writes back the result.
func advancePosition(ctx context.Context, tx pgx.Tx, trade *model.Trade) error {
	var prev *model.Position
	var p model.Position
	var qtyS, avgS string

	err := tx.QueryRow(ctx,
		`SELECT id, quantity::TEXT, avg_entry::TEXT
		 FROM portfolios WHERE user_id = $1 AND market = $2
		 FOR UPDATE`,
		trade.UserID, trade.Market).
		Scan(&p.ID, &qtyS, &avgS)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		prev = nil
	case err != nil:
		return err
	default:
		p.UserID = trade.UserID
		p.Market = trade.Market
		p.Quantity, _ = decimal.NewFromString(qtyS)
		p.AvgEntry, _ = decimal.NewFromString(avgS)
		prev = &p
	}

	next, change := model.AdvancePosition(prev, trade.Side, trade.FilledQuantity, trade.AveragePrice)

	switch change {
	case model.PositionUpsert:
		if prev == nil {
			_, err = tx.Exec(ctx,
				`INSERT INTO portfolios (id, user_id, market, quantity, avg_entry)
				 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)`,
				uuid.New().String(), trade.UserID, trade.Market,
				next.Quantity.String(), next.AvgEntry.String())
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE portfolios
				 SET quantity = $2::NUMERIC, avg_entry = $3::NUMERIC
				 WHERE id = $1`,
				prev.ID, next.Quantity.String(), next.AvgEntry.String())
		}
		return err
	case model.PositionDelete:
		_, err = tx.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, prev.ID)
		return err
	}
	return nil
}

func (s *PostgresStore) ListTrades(ctx context.Context, userID, status string) ([]model.Trade, error) {
	query := `SELECT order_id, user_id, market, order_type, side,
	                 price::TEXT, quantity::TEXT, filled_quantity::TEXT,
	                 unfilled_quantity::TEXT, average_price::TEXT,
	                 status, timestamp, post_only, ioc
	          FROM trades WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var priceS, qtyS, filledS, unfilledS, avgS string
		if err := rows.Scan(&t.OrderID, &t.UserID, &t.Market, &t.OrderType, &t.Side,
			&priceS, &qtyS, &filledS, &unfilledS, &avgS,
			&t.Status, &t.Timestamp, &t.PostOnly, &t.IOC); err != nil {
			return nil, err
		}
		t.Price, _ = decimal.NewFromString(priceS)
		t.Quantity, _ = decimal.NewFromString(qtyS)
		t.FilledQuantity, _ = decimal.NewFromString(filledS)
		t.UnfilledQuantity, _ = decimal.NewFromString(unfilledS)
		t.AveragePrice, _ = decimal.NewFromString(avgS)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID, asset string) (*model.Balance, error) {
	var b model.Balance
	var availS, lockedS string

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, asset, available::TEXT, locked::TEXT
		 FROM balances WHERE user_id = $1 AND asset = $2`,
		userID, asset).
		Scan(&b.ID, &b.UserID, &b.Asset, &availS, &lockedS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get balance %s/%s: %w", userID, asset, err)
	}

	b.Available, _ = decimal.NewFromString(availS)
	b.Locked, _ = decimal.NewFromString(lockedS)
	return &b, nil
}

func (s *PostgresStore) EnsureBalance(ctx context.Context, userID, asset string) (*model.Balance, error) {
	b, err := s.GetBalance(ctx, userID, asset)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id := uuid.New().String()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO balances (id, user_id, asset, available, locked)
		 VALUES ($1, $2, $3, 0, 0)
		 ON CONFLICT (user_id, asset) DO NOTHING`,
		id, userID, asset,
	); err != nil {
		return nil, err
	}
	return s.GetBalance(ctx, userID, asset)
}

func (s *PostgresStore) ListBalances(ctx context.Context, userID string) ([]model.Balance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, asset, available::TEXT, locked::TEXT
		 FROM balances WHERE user_id = $1 ORDER BY asset`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []model.Balance
	for rows.Next() {
		var b model.Balance
		var availS, lockedS string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Asset, &availS, &lockedS); err != nil {
			return nil, err
		}
		b.Available, _ = decimal.NewFromString(availS)
		b.Locked, _ = decimal.NewFromString(lockedS)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID, market string) (*model.Position, error) {
	var p model.Position
	var qtyS, avgS string

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, market, quantity::TEXT, avg_entry::TEXT
		 FROM portfolios WHERE user_id = $1 AND market = $2`,
		userID, market).
		Scan(&p.ID, &p.UserID, &p.Market, &qtyS, &avgS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s/%s: %w", userID, market, err)
	}

	p.Quantity, _ = decimal.NewFromString(qtyS)
	p.AvgEntry, _ = decimal.NewFromString(avgS)
	return &p, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, market, quantity::TEXT, avg_entry::TEXT
		 FROM portfolios WHERE user_id = $1 ORDER BY market`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var qtyS, avgS string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Market, &qtyS, &avgS); err != nil {
			return nil, err
		}
		p.Quantity, _ = decimal.NewFromString(qtyS)
		p.AvgEntry, _ = decimal.NewFromString(avgS)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
