package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"helios/internal/events"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

const sendQueueSize = 64

// Notifier pushes human-facing alerts to a Telegram chat: emergency
// state changes and decisions waiting on approval. Sends are queued so
// the pipeline never blocks on the Telegram API.
type Notifier struct {
	events.BaseObserver

	bot    *tgbotapi.BotAPI
	chatID int64

	queue chan string
	done  chan struct{}

	log *logger.Logger
}

// NewNotifier creates the notifier and starts its send loop
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}

	n := &Notifier{
		bot:    bot,
		chatID: chatID,
		queue:  make(chan string, sendQueueSize),
		done:   make(chan struct{}),
		log:    logger.Get().With("component", "telegram"),
	}
	go n.sendLoop()
	return n, nil
}

// Close drains and stops the send loop
func (n *Notifier) Close() {
	close(n.queue)
	<-n.done
}

func (n *Notifier) OnDecisionMade(_ context.Context, ev events.DecisionEvent) {
	if !ev.Decision.HumanApprovalRequired {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ *Approval required: %s %s*\n", ev.Decision.Symbol, ev.Decision.Action)
	fmt.Fprintf(&b, "Consensus score: %.2f\n", ev.Decision.Score)
	fmt.Fprintf(&b, "Risk approved: %v", ev.Decision.RiskApproved)
	if ev.Decision.RiskReason != "" {
		fmt.Fprintf(&b, " (%s)", ev.Decision.RiskReason)
	}
	b.WriteString("\n")
	for _, reason := range ev.Decision.ApprovalReasons {
		fmt.Fprintf(&b, "• %s\n", reason)
	}

	n.enqueue(b.String())
}

func (n *Notifier) OnEmergencyChanged(_ context.Context, ev events.EmergencyEvent) {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *Emergency level: %s*\n", ev.Level)
	if ev.State.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", ev.State.Reason)
	}
	if ev.State.MaxDrawdownReached {
		b.WriteString("Max daily drawdown reached\n")
	}

	n.enqueue(b.String())
}

func (n *Notifier) enqueue(text string) {
	select {
	case n.queue <- text:
	default:
		n.log.Warn("Telegram queue full, dropping notification")
	}
}

func (n *Notifier) sendLoop() {
	defer close(n.done)

	for text := range n.queue {
		msg := tgbotapi.NewMessage(n.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.bot.Send(msg); err != nil {
			n.log.Errorw("Failed to send telegram notification", "error", err)
		}
	}
}
