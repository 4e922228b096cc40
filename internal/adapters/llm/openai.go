package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"helios/internal/domain/sentiment"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

const maxHeadlines = 15

// OpenAIScorer rates news sentiment with a chat completion. It is a
// best-effort collaborator: callers degrade to a keyword heuristic
// when it errors.
type OpenAIScorer struct {
	client  openai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

// NewOpenAIScorer creates the scorer
func NewOpenAIScorer(apiKey, model string, timeout time.Duration) (*OpenAIScorer, error) {
	if apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "openai API key is required")
	}
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	return &OpenAIScorer{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		log:     logger.Get().With("component", "llm_scorer", "model", model),
	}, nil
}

// Score rates the headlines in [-1, 1], negative is bearish
func (s *OpenAIScorer) Score(ctx context.Context, symbol string, headlines []sentiment.Headline) (float64, error) {
	if len(headlines) == 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "no headlines to score")
	}
	if len(headlines) > maxHeadlines {
		headlines = headlines[:maxHeadlines]
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You rate the aggregate market sentiment of news headlines. " +
				"Reply with a single number between -1.0 (strongly bearish) and 1.0 (strongly bullish). " +
				"No other text."),
			openai.UserMessage(s.prompt(symbol, headlines)),
		},
		Model: openai.ChatModel(s.model),
	})
	if err != nil {
		return 0, errors.Wrap(err, "openai API call failed")
	}
	if len(resp.Choices) == 0 {
		return 0, errors.Wrapf(errors.ErrInternal, "no completion returned")
	}

	score, err := parseScore(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, err
	}

	s.log.Debugw("Headlines scored", "symbol", symbol, "headlines", len(headlines), "score", score)
	return score, nil
}

func (s *OpenAIScorer) prompt(symbol string, headlines []sentiment.Headline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Headlines for %s:\n", symbol)
	for _, h := range headlines {
		fmt.Fprintf(&b, "- %s", h.Title)
		if h.Summary != "" {
			fmt.Fprintf(&b, " (%s)", h.Summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func parseScore(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInternal, "unparseable sentiment score %q", raw)
	}
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	return v, nil
}
