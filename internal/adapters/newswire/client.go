package newswire

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"helios/internal/domain/sentiment"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

const lookbackDays = 3

// Client fetches company news headlines for the sentiment agent
type Client struct {
	http   *resty.Client
	apiKey string
	now    func() time.Time
	log    *logger.Logger
}

// Config configures the news client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a news client
func NewClient(cfg Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &Client{
		http:   http,
		apiKey: cfg.APIKey,
		now:    time.Now,
		log:    logger.Get().With("component", "newswire"),
	}
}

// article is the provider's wire format
type article struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	DateTime int64  `json:"datetime"` // unix seconds
}

// Latest returns up to limit recent headlines for symbol, newest first
func (c *Client) Latest(ctx context.Context, symbol string, limit int) ([]sentiment.Headline, error) {
	if c.apiKey == "" {
		return nil, errors.Wrapf(errors.ErrUnavailable, "news api key not configured")
	}

	now := c.now()
	var articles []article
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"from":   now.AddDate(0, 0, -lookbackDays).Format("2006-01-02"),
			"to":     now.Format("2006-01-02"),
			"token":  c.apiKey,
		}).
		SetResult(&articles).
		Get("/company-news")
	if err != nil {
		return nil, errors.Wrapf(err, "fetch news for %s", symbol)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusTooManyRequests {
			return nil, errors.Wrapf(errors.ErrRateLimitExceeded, "news api throttled %s", symbol)
		}
		return nil, errors.Wrapf(errors.ErrUnavailable, "news api returned %s", resp.Status())
	}

	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	headlines := make([]sentiment.Headline, 0, len(articles))
	for _, a := range articles {
		if a.Headline == "" {
			continue
		}
		headlines = append(headlines, sentiment.Headline{
			Title:       a.Headline,
			Summary:     a.Summary,
			PublishedAt: time.Unix(a.DateTime, 0),
		})
	}

	c.log.Debugw("Fetched headlines", "symbol", symbol, "count", len(headlines))
	return headlines, nil
}
