// Package trade exposes the exchange HTTP API: account registration and
// login, order submission, trade history, balances, holdings, portfolio,
// and market-data proxies to the upstream exchange.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/auth"
	"github.com/udday123/PleaseGod/internal/book"
	"github.com/udday123/PleaseGod/internal/model"
	"github.com/udday123/PleaseGod/internal/settle"
	"github.com/udday123/PleaseGod/internal/store"
)

// QuoteAsset is the asset registered accounts are seeded with and the asset
// reported by the balance endpoint.
const QuoteAsset = "USD"

// SeedAmount is credited to every new account at registration.
var SeedAmount = decimal.NewFromInt(10_000_000)

// MarketData is the slice of the upstream exchange client the service needs.
type MarketData interface {
	Depth(ctx context.Context, market string) (*model.BookSnapshot, error)
	GetTicker(ctx context.Context, market string) (*book.Ticker, error)
	GetKlines(ctx context.Context, market, interval string, start, end int64) ([]book.KLine, error)
}

// Service wires the HTTP handlers to the settlement coordinator, the store,
// and the upstream market-data client.
type Service struct {
	store       store.Store
	books       MarketData
	coordinator *settle.Coordinator
	hub         *WSHub
	jwtSecret   []byte
	tokenTTL    time.Duration
}

// NewService creates the API service. hub may be nil when WebSocket
// streaming is not wanted (tests).
func NewService(st store.Store, books MarketData, hub *WSHub, jwtSecret []byte) *Service {
	return &Service{
		store:       st,
		books:       books,
		coordinator: settle.NewCoordinator(books, st),
		hub:         hub,
		jwtSecret:   jwtSecret,
		tokenTTL:    24 * time.Hour,
	}
}

// Routes returns the /api/v1 router.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)

	r.Get("/depth", s.handleDepth)
	r.Get("/ticker", s.handleTicker)
	r.Get("/klines", s.handleKlines)

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.jwtSecret))
		r.Post("/trade", s.handleTrade)
		r.Get("/orders", s.handleListOrders)
		r.Get("/balance", s.handleBalance)
		r.Get("/holdings", s.handleHoldings)
		r.Get("/portfolio", s.handlePortfolio)
	})

	return r
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password, auth.DefaultArgon2Params)
	if err != nil {
		slog.Error("password hash failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user, QuoteAsset, SeedAmount); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		slog.Error("create user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, err := auth.IssueToken(user.ID, user.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		slog.Error("token issue failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		slog.Error("login lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := auth.IssueToken(user.ID, user.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		slog.Error("token issue failed", "err", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type tradeResponse struct {
	Order   model.Trade `json:"order"`
	Message string      `json:"message"`
}

func (s *Service) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.coordinator.Settle(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		var ve *settle.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Error())
		case errors.Is(err, settle.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "authentication required")
		case errors.Is(err, settle.ErrUpstreamUnavailable):
			slog.Error("order book fetch failed", "market", req.Market, "err", err)
			writeError(w, http.StatusInternalServerError, "order book unavailable, try again later")
		default:
			slog.Error("trade settlement failed", "market", req.Market, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to process trade")
		}
		return
	}

	if s.hub != nil && result.Trade.FilledQuantity.IsPositive() {
		s.hub.Broadcast(WSMessage{
			Type:           "trade_executed",
			Market:         result.Trade.Market,
			Side:           result.Trade.Side,
			Quantity:       result.Trade.Quantity.String(),
			FilledQuantity: result.Trade.FilledQuantity.String(),
			AveragePrice:   result.Trade.AveragePrice.String(),
			Status:         result.Trade.Status,
		})
	}

	writeJSON(w, http.StatusOK, tradeResponse{Order: result.Trade, Message: result.Message})
}

func (s *Service) handleListOrders(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		slog.Error("list trades failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": trades})
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.store.EnsureBalance(r.Context(), auth.UserID(r.Context()), QuoteAsset)
	if err != nil {
		slog.Error("fetch balance failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": bal.Available,
		"locked":  bal.Locked,
	})
}

func (s *Service) handleHoldings(w http.ResponseWriter, r *http.Request) {
	asset := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("asset")))
	userID := auth.UserID(r.Context())

	if asset == "" {
		balances, err := s.store.ListBalances(r.Context(), userID)
		if err != nil {
			slog.Error("list balances failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to fetch holdings")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"holdings": balances})
		return
	}

	bal, err := s.store.GetBalance(r.Context(), userID, asset)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{
				"holding": nil,
				"message": "no holdings for this asset",
			})
			return
		}
		slog.Error("fetch holding failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch holdings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holding": bal})
}

func (s *Service) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListPositions(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		slog.Error("list positions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch portfolio")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"portfolio": positions})
}

func (s *Service) handleDepth(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("symbol")
	if market == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}
	snap, err := s.books.Depth(r.Context(), market)
	if err != nil {
		slog.Error("depth fetch failed", "market", market, "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch order book")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleTicker(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("symbol")
	if market == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}
	ticker, err := s.books.GetTicker(r.Context(), market)
	if err != nil {
		slog.Error("ticker fetch failed", "market", market, "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch ticker")
		return
	}
	writeJSON(w, http.StatusOK, ticker)
}

func (s *Service) handleKlines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	market := q.Get("symbol")
	if market == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}
	interval := q.Get("interval")
	if interval == "" {
		interval = "1h"
	}
	start, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
	end, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)

	klines, err := s.books.GetKlines(r.Context(), market, interval, start, end)
	if err != nil {
		slog.Error("klines fetch failed", "market", market, "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch klines")
		return
	}
	writeJSON(w, http.StatusOK, klines)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
