// Package book talks to the upstream public exchange API for market data:
// order book depth, tickers, and klines. The depth endpoint is the snapshot
// source for simulated fills; ticker and klines back the dashboard views.
package book

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/udday123/PleaseGod/internal/model"
)

// Client is a one-shot REST client for the upstream exchange. No retries,
// no caching: a failed call surfaces to the caller as-is and the order it
// was fetched for fails over to an upstream-unavailable result.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client against the given base URL,
// e.g. "https://api.backpack.exchange/api/v1".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// depthResponse mirrors the upstream depth payload: price/quantity string
// pairs, asks ascending and bids descending.
type depthResponse struct {
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
	LastUpdateID string      `json:"lastUpdateId"`
}

// Ticker is the upstream 24h ticker payload, passed through to the UI.
type Ticker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	FirstPrice         string `json:"firstPrice"`
	High               string `json:"high"`
	Low                string `json:"low"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	Trades             string `json:"trades"`
}

// KLine is one upstream candlestick, passed through to the chart.
type KLine struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Open        string `json:"open"`
	High        string `json:"high"`
	Low         string `json:"low"`
	Close       string `json:"close"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
	Trades      string `json:"trades"`
}

// Depth fetches a one-shot bids/asks snapshot for a market. The upstream
// symbol uses the same BASE_QUOTE form as the market identifier.
func (c *Client) Depth(ctx context.Context, market string) (*model.BookSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", market)

	var raw depthResponse
	if err := c.get(ctx, "/depth", params, &raw); err != nil {
		return nil, err
	}

	// Sides stay nil when the upstream omits them entirely; an explicitly
	// empty side comes back as an empty slice. Settlement treats the former
	// as upstream-unavailable and the latter as a no-fill cancel.
	snap := &model.BookSnapshot{
		Market:       market,
		LastUpdateID: raw.LastUpdateID,
		FetchedAt:    time.Now().UTC(),
	}

	if raw.Bids != nil {
		snap.Bids = make([]model.Level, 0, len(raw.Bids))
		for _, pair := range raw.Bids {
			lvl, err := parseLevel(pair)
			if err != nil {
				return nil, fmt.Errorf("depth %s: bad bid level: %w", market, err)
			}
			snap.Bids = append(snap.Bids, lvl)
		}
	}
	if raw.Asks != nil {
		snap.Asks = make([]model.Level, 0, len(raw.Asks))
		for _, pair := range raw.Asks {
			lvl, err := parseLevel(pair)
			if err != nil {
				return nil, fmt.Errorf("depth %s: bad ask level: %w", market, err)
			}
			snap.Asks = append(snap.Asks, lvl)
		}
	}

	return snap, nil
}

// GetTicker fetches the 24h ticker for one market.
func (c *Client) GetTicker(ctx context.Context, market string) (*Ticker, error) {
	params := url.Values{}
	params.Set("symbol", market)

	var t Ticker
	if err := c.get(ctx, "/ticker", params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetKlines fetches candlesticks for one market over [start, end].
func (c *Client) GetKlines(ctx context.Context, market, interval string, start, end int64) ([]KLine, error) {
	params := url.Values{}
	params.Set("symbol", market)
	params.Set("interval", interval)
	params.Set("startTime", fmt.Sprintf("%d", start))
	if end > 0 {
		params.Set("endTime", fmt.Sprintf("%d", end))
	}

	var klines []KLine
	if err := c.get(ctx, "/klines", params, &klines); err != nil {
		return nil, err
	}
	return klines, nil
}

func parseLevel(pair [2]string) (model.Level, error) {
	price, err := decimal.NewFromString(pair[0])
	if err != nil {
		return model.Level{}, fmt.Errorf("price %q: %w", pair[0], err)
	}
	qty, err := decimal.NewFromString(pair[1])
	if err != nil {
		return model.Level{}, fmt.Errorf("quantity %q: %w", pair[1], err)
	}
	return model.Level{Price: price, Quantity: qty}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("upstream request", "method", req.Method, "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		slog.Error("upstream API error", "status", resp.StatusCode, "path", path)
		return fmt.Errorf("upstream API error %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
