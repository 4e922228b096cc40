package emergency

import (
	"context"
	"time"
)

// Level orders emergency severities from least to most severe
type Level int

const (
	LevelNormal Level = iota
	LevelCircuitBreaker
	LevelEmergencyStop
	LevelKillSwitch
)

// String returns the level name for logs and alerts
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelCircuitBreaker:
		return "CIRCUIT_BREAKER"
	case LevelEmergencyStop:
		return "EMERGENCY_STOP"
	case LevelKillSwitch:
		return "KILL_SWITCH"
	default:
		return "UNKNOWN"
	}
}

// State is the published emergency state. Written only by the emergency
// controller; every other component treats it as read-only.
type State struct {
	CircuitBreakerTriggered bool `json:"circuit_breaker_triggered"`
	EmergencyStopActive     bool `json:"emergency_stop_active"`
	KillSwitchActive        bool `json:"kill_switch_active"`
	MaxDrawdownReached      bool `json:"max_drawdown_reached"`

	Reason      string    `json:"reason,omitempty"`
	TriggeredAt time.Time `json:"triggered_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Level returns the most severe active control
func (s State) Level() Level {
	switch {
	case s.KillSwitchActive:
		return LevelKillSwitch
	case s.EmergencyStopActive:
		return LevelEmergencyStop
	case s.CircuitBreakerTriggered:
		return LevelCircuitBreaker
	default:
		return LevelNormal
	}
}

// TradingHalted reports whether any control currently blocks new entries
func (s State) TradingHalted() bool {
	return s.KillSwitchActive || s.EmergencyStopActive || s.CircuitBreakerTriggered
}

// HardHalt reports whether the state forbids risk approval outright.
// Circuit breaker alone is a soft pause and clears on its own.
func (s State) HardHalt() bool {
	return s.KillSwitchActive || s.EmergencyStopActive
}

// StaleAfter reports whether the snapshot is older than the given interval
func (s State) StaleAfter(interval time.Duration, now time.Time) bool {
	if s.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(s.UpdatedAt) > interval
}

// Store persists emergency state so an active halt survives a restart
type Store interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context) (*State, error)
	Clear(ctx context.Context) error
}
