package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu             sync.RWMutex
	balanceEvents  []*BalanceEvent
	deliveryEvents []*DeliveryEvent
	publishError   error
	closed         bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// SetPublishError makes every publish call return err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// PublishBalance records the event and returns any configured error.
func (m *MockPublisher) PublishBalance(ctx context.Context, event *BalanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.balanceEvents = append(m.balanceEvents, event)
	return nil
}

// PublishDelivery records the event and returns any configured error.
func (m *MockPublisher) PublishDelivery(ctx context.Context, event *DeliveryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.deliveryEvents = append(m.deliveryEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// BalanceEvents returns a copy of the recorded balance events.
func (m *MockPublisher) BalanceEvents() []*BalanceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*BalanceEvent, len(m.balanceEvents))
	copy(out, m.balanceEvents)
	return out
}

// DeliveryEvents returns a copy of the recorded delivery events.
func (m *MockPublisher) DeliveryEvents() []*DeliveryEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*DeliveryEvent, len(m.deliveryEvents))
	copy(out, m.deliveryEvents)
	return out
}
