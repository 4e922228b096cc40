package portfolio

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"helios/internal/domain/signal"
)

// AccountSnapshot is the brokerage account view used for risk decisions
type AccountSnapshot struct {
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	NetLiquidation decimal.Decimal `json:"net_liquidation"`
	BuyingPower    decimal.Decimal `json:"buying_power"`
	Timestamp      time.Time       `json:"timestamp"`
}

// DailyPnL returns realized plus unrealized P&L for the session
func (s AccountSnapshot) DailyPnL() decimal.Decimal {
	return s.RealizedPnL.Add(s.UnrealizedPnL)
}

// Position is an open brokerage position
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Exposure returns the current market value of the position
func (p Position) Exposure() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity)).Abs()
}

// Broker is the brokerage collaborator contract.
// The core only reads snapshots and issues bulk cancels; order routing
// itself lives outside this repository.
type Broker interface {
	Account(ctx context.Context) (*AccountSnapshot, error)
	OpenPositions(ctx context.Context) ([]Position, error)

	// CancelAllOrders cancels every open order and returns the count cancelled
	CancelAllOrders(ctx context.Context) (int, error)
}

// FlowSnapshot aggregates recent option flow for one symbol
type FlowSnapshot struct {
	CallPremium float64 `json:"call_premium"`
	PutPremium  float64 `json:"put_premium"`
	CallVolume  int64   `json:"call_volume"`
	PutVolume   int64   `json:"put_volume"`

	// GEX profile fields as supplied by the flow feed
	GEX       float64 `json:"gex"`
	FlipPoint float64 `json:"flip_point"`
}

// Sentiment returns normalized flow sentiment in [-1, 1]:
// (call premium - put premium) / total premium
func (f FlowSnapshot) Sentiment() float64 {
	total := f.CallPremium + f.PutPremium
	if total == 0 {
		return 0
	}
	return (f.CallPremium - f.PutPremium) / total
}

// TotalVolume returns combined call and put contract volume
func (f FlowSnapshot) TotalVolume() int64 {
	return f.CallVolume + f.PutVolume
}

// MarketData is the market data collaborator contract for the agent panel
type MarketData interface {
	// Flow returns aggregated option flow for symbol, nil when none exists
	Flow(ctx context.Context, symbol string) (*FlowSnapshot, error)

	// RecentSignals returns up to limit trading signals for symbol,
	// newest last
	RecentSignals(ctx context.Context, symbol string, limit int) ([]signal.TradingSignal, error)
}
