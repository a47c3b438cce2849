package memory

import (
	"context"
	"sync"

	"trivia-match/internal/domain"
)

// LocalStates keeps per-device memberships for clients that have no disk of
// their own, such as browser tabs behind the websocket gateway.
type LocalStates struct {
	mu      sync.Mutex
	devices map[string]domain.Membership
}

func NewLocalStates() *LocalStates {
	return &LocalStates{devices: make(map[string]domain.Membership)}
}

// Device returns the state slot of one device.
func (s *LocalStates) Device(deviceID string) *DeviceState {
	return &DeviceState{parent: s, id: deviceID}
}

// DeviceState is the local state of one device.
type DeviceState struct {
	parent *LocalStates
	id     string
}

func (d *DeviceState) Load(_ context.Context) (domain.Membership, bool, error) {
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	m, ok := d.parent.devices[d.id]
	return m, ok, nil
}

func (d *DeviceState) Save(_ context.Context, m domain.Membership) error {
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	d.parent.devices[d.id] = m
	return nil
}

func (d *DeviceState) Clear(_ context.Context) error {
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	delete(d.parent.devices, d.id)
	return nil
}
