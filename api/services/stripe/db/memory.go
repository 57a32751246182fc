package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository used by tests and local runs
// without a database. It has the same conflict semantics as the Postgres one.
type MemoryRepository struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID int64
	users  map[int64]User
	subs   map[string]LocalSubscription
	events map[string]WebhookEvent
}

// NewMemory returns an empty MemoryRepository.
func NewMemory(opts ...Option) *MemoryRepository {
	return &MemoryRepository{
		now:    buildOptions(opts).now,
		users:  make(map[int64]User),
		subs:   make(map[string]LocalSubscription),
		events: make(map[string]WebhookEvent),
	}
}

func (m *MemoryRepository) CreateUser(_ context.Context, email, customerID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if customerID != "" {
		for _, u := range m.users {
			if u.StripeCustomerID == customerID {
				return User{}, fmt.Errorf("stripe customer %s already linked to user %d", customerID, u.ID)
			}
		}
	}
	m.nextID++
	u := User{ID: m.nextID, Email: email, StripeCustomerID: customerID}
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryRepository) GetUser(_ context.Context, userID int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryRepository) LoadBySubscriptionID(_ context.Context, id string) (LocalSubscription, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	return s, ok, nil
}

func (m *MemoryRepository) Create(_ context.Context, s LocalSubscription) (LocalSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subs[s.SubscriptionID]; ok {
		return existing, nil
	}
	if _, ok := m.users[s.UserID]; !ok {
		return LocalSubscription{}, fmt.Errorf("user %d: %w", s.UserID, ErrNotFound)
	}
	now := m.now().Unix()
	s.CreatedAt, s.UpdatedAt = now, now
	m.subs[s.SubscriptionID] = s
	return s, nil
}

func (m *MemoryRepository) Update(_ context.Context, s LocalSubscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.subs[s.SubscriptionID]
	if !ok {
		return false, nil
	}
	existing.PlanName = s.PlanName
	existing.Status = s.Status
	existing.CurrentPeriodStart = s.CurrentPeriodStart
	existing.CurrentPeriodEnd = s.CurrentPeriodEnd
	existing.CancelAtPeriodEnd = s.CancelAtPeriodEnd
	existing.RemoteUpdatedAt = s.RemoteUpdatedAt
	existing.UpdatedAt = m.now().Unix()
	m.subs[s.SubscriptionID] = existing
	return true, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return false, nil
	}
	delete(m.subs, id)
	return true, nil
}

func (m *MemoryRepository) ListByUser(_ context.Context, userID int64) ([]LocalSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LocalSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sortSubscriptions(out)
	return out, nil
}

func (m *MemoryRepository) ListAll(_ context.Context) ([]LocalSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LocalSubscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	sortSubscriptions(out)
	return out, nil
}

func (m *MemoryRepository) RecordWebhookEvent(_ context.Context, e WebhookEvent) (bool, WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.events[e.EventID]; ok {
		return false, stored, nil
	}
	e.ReceivedAt = m.now().Unix()
	e.ProcessedAt = 0
	e.ProcessingError = ""
	m.events[e.EventID] = e
	return true, e, nil
}

func (m *MemoryRepository) MarkWebhookEventProcessed(_ context.Context, eventID, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return fmt.Errorf("webhook event %s: %w", eventID, ErrNotFound)
	}
	e.ProcessedAt = m.now().Unix()
	e.ProcessingError = processingError
	m.events[eventID] = e
	return nil
}

func (m *MemoryRepository) PruneWebhookEvents(_ context.Context, receivedBefore int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.events {
		if e.ReceivedAt < receivedBefore {
			delete(m.events, id)
			n++
		}
	}
	return n, nil
}

func sortSubscriptions(subs []LocalSubscription) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubscriptionID < subs[j].SubscriptionID })
}
