package brokerage

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"helios/internal/domain/portfolio"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

// Config configures the brokerage REST client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the brokerage REST API. It only reads account and
// position snapshots and issues bulk cancels; order routing lives in a
// separate system.
type Client struct {
	http *resty.Client
	log  *logger.Logger
}

// NewClient creates a brokerage client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "brokerage base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &Client{
		http: http,
		log:  logger.Get().With("component", "brokerage"),
	}, nil
}

type accountResponse struct {
	RealizedPnL    string `json:"realized_pnl"`
	UnrealizedPnL  string `json:"unrealized_pnl"`
	NetLiquidation string `json:"net_liquidation"`
	BuyingPower    string `json:"buying_power"`
}

type positionResponse struct {
	Symbol        string `json:"symbol"`
	Quantity      int64  `json:"quantity"`
	EntryPrice    string `json:"entry_price"`
	CurrentPrice  string `json:"current_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
}

type cancelResponse struct {
	Cancelled int `json:"cancelled"`
}

// statusErr maps an error response to the matching sentinel
func statusErr(resp *resty.Response, endpoint string) error {
	if resp.StatusCode() == http.StatusTooManyRequests {
		return errors.Wrapf(errors.ErrRateLimitExceeded, "%s endpoint", endpoint)
	}
	return errors.Wrapf(errors.ErrBrokerUnavailable, "%s endpoint returned %s", endpoint, resp.Status())
}

// Account returns the current account snapshot
func (c *Client) Account(ctx context.Context) (*portfolio.AccountSnapshot, error) {
	var body accountResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&body).Get("/v1/account")
	if err != nil {
		return nil, errors.Wrap(errors.ErrBrokerUnavailable, err.Error())
	}
	if resp.IsError() {
		return nil, statusErr(resp, "account")
	}

	snapshot := &portfolio.AccountSnapshot{Timestamp: time.Now()}
	fields := []struct {
		raw  string
		dest *decimal.Decimal
		name string
	}{
		{body.RealizedPnL, &snapshot.RealizedPnL, "realized_pnl"},
		{body.UnrealizedPnL, &snapshot.UnrealizedPnL, "unrealized_pnl"},
		{body.NetLiquidation, &snapshot.NetLiquidation, "net_liquidation"},
		{body.BuyingPower, &snapshot.BuyingPower, "buying_power"},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInternal, "unparseable %s %q", f.name, f.raw)
		}
		*f.dest = v
	}
	return snapshot, nil
}

// OpenPositions returns all open positions
func (c *Client) OpenPositions(ctx context.Context) ([]portfolio.Position, error) {
	var body []positionResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&body).Get("/v1/positions")
	if err != nil {
		return nil, errors.Wrap(errors.ErrBrokerUnavailable, err.Error())
	}
	if resp.IsError() {
		return nil, statusErr(resp, "positions")
	}

	positions := make([]portfolio.Position, 0, len(body))
	for _, p := range body {
		entry, err := decimal.NewFromString(p.EntryPrice)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInternal, "unparseable entry price %q for %s", p.EntryPrice, p.Symbol)
		}
		current, err := decimal.NewFromString(p.CurrentPrice)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInternal, "unparseable current price %q for %s", p.CurrentPrice, p.Symbol)
		}
		pnl, err := decimal.NewFromString(p.UnrealizedPnL)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInternal, "unparseable pnl %q for %s", p.UnrealizedPnL, p.Symbol)
		}
		positions = append(positions, portfolio.Position{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			EntryPrice:    entry,
			CurrentPrice:  current,
			UnrealizedPnL: pnl,
		})
	}
	return positions, nil
}

// CancelAllOrders cancels every working order and returns the count
func (c *Client) CancelAllOrders(ctx context.Context) (int, error) {
	var body cancelResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&body).Delete("/v1/orders")
	if err != nil {
		return 0, errors.Wrap(errors.ErrBrokerUnavailable, err.Error())
	}
	if resp.IsError() {
		return 0, statusErr(resp, "cancel")
	}

	c.log.Warnw("Cancelled all working orders", "count", body.Cancelled)
	return body.Cancelled, nil
}
