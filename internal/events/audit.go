package events

import (
	"context"

	"helios/pkg/logger"
)

// AuditLogger writes every pipeline event to the structured log so a
// decision trail exists even without Kafka
type AuditLogger struct {
	BaseObserver
	log *logger.Logger
}

// NewAuditLogger creates the logging observer
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{log: logger.Get().With("component", "audit")}
}

func (a *AuditLogger) OnBatchProcessed(_ context.Context, ev BatchEvent) {
	a.log.Infow("Alert batch processed",
		"received", ev.Received,
		"accepted", ev.Accepted,
		"malformed", ev.Malformed,
		"proposals", ev.Proposals,
	)
}

func (a *AuditLogger) OnOpinionRecorded(_ context.Context, ev OpinionEvent) {
	a.log.Infow("Agent opinion",
		"agent", ev.Opinion.Agent,
		"symbol", ev.Opinion.Symbol,
		"action", ev.Opinion.Action,
		"confidence", ev.Opinion.Confidence,
		"risk_score", ev.Opinion.Risk.RiskScore,
	)
}

func (a *AuditLogger) OnDecisionMade(_ context.Context, ev DecisionEvent) {
	a.log.Infow("Consensus decision",
		"decision_id", ev.Decision.ID,
		"symbol", ev.Decision.Symbol,
		"action", ev.Decision.Action,
		"score", ev.Decision.Score,
		"risk_approved", ev.Decision.RiskApproved,
		"human_approval", ev.Decision.HumanApprovalRequired,
	)
}

func (a *AuditLogger) OnEmergencyChanged(_ context.Context, ev EmergencyEvent) {
	a.log.Warnw("Emergency state changed",
		"level", ev.Level,
		"reason", ev.State.Reason,
	)
}
