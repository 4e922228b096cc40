package redis

import (
	"context"
	"time"

	"helios/internal/domain/emergency"
	"helios/pkg/errors"
)

const (
	emergencyStateKey = "helios:emergency:state"
	emergencyStateTTL = 24 * time.Hour
)

// EmergencyStore persists the emergency state so an active halt
// survives a process restart
type EmergencyStore struct {
	client *Client
}

// NewEmergencyStore creates the store
func NewEmergencyStore(client *Client) *EmergencyStore {
	return &EmergencyStore{client: client}
}

// Save writes the state with a 24h TTL
func (s *EmergencyStore) Save(ctx context.Context, state emergency.State) error {
	if err := s.client.Set(ctx, emergencyStateKey, state, emergencyStateTTL); err != nil {
		return errors.Wrap(err, "persist emergency state")
	}
	return nil
}

// Load returns the persisted state, nil when none exists
func (s *EmergencyStore) Load(ctx context.Context) (*emergency.State, error) {
	var state emergency.State
	err := s.client.Get(ctx, emergencyStateKey, &state)
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load emergency state")
	}
	return &state, nil
}

// Clear removes the persisted state
func (s *EmergencyStore) Clear(ctx context.Context) error {
	if err := s.client.Delete(ctx, emergencyStateKey); err != nil {
		return errors.Wrap(err, "clear emergency state")
	}
	return nil
}
