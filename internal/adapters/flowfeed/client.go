package flowfeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"helios/internal/domain/alert"
	"helios/internal/domain/portfolio"
	"helios/internal/domain/signal"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

const (
	defaultQueueSize   = 1024
	defaultMessageRate = 200 // messages per second before shedding
	defaultBatchMax    = 500

	signalsPerSymbol = 100

	minBackoff = 2 * time.Second
	maxBackoff = 2 * time.Minute

	readDeadline = 60 * time.Second
	pingPeriod   = 25 * time.Second
)

// Config configures the flow feed connection
type Config struct {
	URL      string
	APIKey   string
	Channels []string

	QueueSize   int
	MessageRate float64

	// BatchMax caps how many alerts a single Poll may return
	BatchMax int
}

// Client consumes the options-flow websocket stream. It buffers alerts
// for the pipeline's Poll and keeps per-symbol flow aggregates and
// signal history for the agent panel.
type Client struct {
	cfg     Config
	limiter *rate.Limiter

	queue chan alert.RawAlert

	mu      sync.RWMutex
	flows   map[string]portfolio.FlowSnapshot
	signals map[string][]signal.TradingSignal

	connMu sync.Mutex
	conn   *websocket.Conn

	stop chan struct{}
	wg   sync.WaitGroup

	log *logger.Logger
}

// wireMessage is the feed's framing envelope
type wireMessage struct {
	Type   string                  `json:"type"` // alert | flow | signal
	Alert  *alert.RawAlert         `json:"alert,omitempty"`
	Symbol string                  `json:"symbol,omitempty"`
	Flow   *portfolio.FlowSnapshot `json:"flow,omitempty"`
	Signal *signal.TradingSignal   `json:"signal,omitempty"`
}

// NewClient creates a flow feed client
func NewClient(cfg Config) *Client {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = defaultMessageRate
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = defaultBatchMax
	}

	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.MessageRate), int(cfg.MessageRate)),
		queue:   make(chan alert.RawAlert, cfg.QueueSize),
		flows:   make(map[string]portfolio.FlowSnapshot),
		signals: make(map[string][]signal.TradingSignal),
		stop:    make(chan struct{}),
		log:     logger.Get().With("component", "flow_feed"),
	}
}

// Start connects and launches the read loop. The loop reconnects with
// exponential backoff until Stop or context cancellation.
func (c *Client) Start(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		// Startup survives a down feed, the read loop keeps retrying
		c.log.Errorw("Initial flow feed connection failed", "error", err)
	}

	c.wg.Add(1)
	go c.readLoop(ctx)
	return nil
}

// Stop closes the connection and waits for the read loop
func (c *Client) Stop() {
	close(c.stop)
	c.closeConn()
	c.wg.Wait()
}

// Poll drains the alerts buffered since the last call, up to BatchMax
func (c *Client) Poll(_ context.Context) ([]alert.RawAlert, error) {
	var out []alert.RawAlert
	for len(out) < c.cfg.BatchMax {
		select {
		case a := <-c.queue:
			out = append(out, a)
		default:
			return out, nil
		}
	}
	return out, nil
}

// Flow returns the latest flow aggregate for symbol, nil when none seen
func (c *Client) Flow(_ context.Context, symbol string) (*portfolio.FlowSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.flows[symbol]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// RecentSignals returns up to limit signals for symbol, newest last
func (c *Client) RecentSignals(_ context.Context, symbol string, limit int) ([]signal.TradingSignal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.signals[symbol]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]signal.TradingSignal, len(history))
	copy(out, history)
	return out, nil
}

// Reset drops the accumulated flow aggregates and signal history so a
// new session starts without yesterday's bias
func (c *Client) Reset() {
	c.mu.Lock()
	flows, signals := len(c.flows), len(c.signals)
	c.flows = make(map[string]portfolio.FlowSnapshot)
	c.signals = make(map[string][]signal.TradingSignal)
	c.mu.Unlock()

	c.log.Infow("Session caches cleared", "flows", flows, "symbols", signals)
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return errors.Wrapf(err, "dial flow feed %s", c.cfg.URL)
	}

	sub := map[string]interface{}{
		"action":   "subscribe",
		"api_key":  c.cfg.APIKey,
		"channels": c.cfg.Channels,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return errors.Wrap(err, "subscribe")
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.log.Infow("Flow feed connected", "url", c.cfg.URL, "channels", c.cfg.Channels)
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()

	backoff := minBackoff
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.sleep(ctx, backoff) {
				return
			}
			if err := c.connect(ctx); err != nil {
				c.log.Errorw("Flow feed reconnect failed", "error", err, "backoff", backoff)
				backoff = nextBackoff(backoff)
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stop:
				return
			default:
			}
			c.log.Warnw("Flow feed read failed, reconnecting", "error", err)
			c.closeConn()
			continue
		}
		backoff = minBackoff

		if !c.limiter.Allow() {
			continue // shed load, the feed bursts on market open
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warnw("Dropping undecodable feed message", "error", err)
		return
	}

	switch msg.Type {
	case "alert":
		if msg.Alert == nil {
			return
		}
		select {
		case c.queue <- *msg.Alert:
		default:
			c.log.Warnw("Alert queue full, dropping alert", "ticker", msg.Alert.Ticker)
		}

	case "flow":
		if msg.Flow == nil || msg.Symbol == "" {
			return
		}
		c.mu.Lock()
		c.flows[msg.Symbol] = *msg.Flow
		c.mu.Unlock()

	case "signal":
		if msg.Signal == nil {
			return
		}
		c.mu.Lock()
		history := append(c.signals[msg.Signal.Ticker], *msg.Signal)
		if len(history) > signalsPerSymbol {
			history = history[len(history)-signalsPerSymbol:]
		}
		c.signals[msg.Signal.Ticker] = history
		c.mu.Unlock()

	default:
		c.log.Debugw("Ignoring feed message", "type", msg.Type)
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
