package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go"
	stripedb "github.com/tbeaudouin05/stripe-registration/api/services/stripe/db"
	"github.com/tbeaudouin05/stripe-registration/api/services/stripe/gateway/mock"
)

var (
	testNow         = time.Unix(1760000000, 0)
	periodStart     = testNow.Add(-10 * 24 * time.Hour).Unix()
	periodEnd       = testNow.Add(20 * 24 * time.Hour).Unix()
	errStoreBroken  = errors.New("store broken")
	errStripeBroken = errors.New("stripe: 503 service unavailable")
)

// failingStore wraps the memory repository and fails selected writes.
type failingStore struct {
	*stripedb.MemoryRepository
	createErr error
	updateErr error
	deleteErr error
	loadErr   error
	pruneErr  error
}

func (f *failingStore) PruneWebhookEvents(ctx context.Context, receivedBefore int64) (int64, error) {
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	return f.MemoryRepository.PruneWebhookEvents(ctx, receivedBefore)
}

func (f *failingStore) LoadBySubscriptionID(ctx context.Context, id string) (stripedb.LocalSubscription, bool, error) {
	if f.loadErr != nil {
		return stripedb.LocalSubscription{}, false, f.loadErr
	}
	return f.MemoryRepository.LoadBySubscriptionID(ctx, id)
}

func (f *failingStore) Create(ctx context.Context, s stripedb.LocalSubscription) (stripedb.LocalSubscription, error) {
	if f.createErr != nil {
		return stripedb.LocalSubscription{}, f.createErr
	}
	return f.MemoryRepository.Create(ctx, s)
}

func (f *failingStore) Update(ctx context.Context, s stripedb.LocalSubscription) (bool, error) {
	if f.updateErr != nil {
		return false, f.updateErr
	}
	return f.MemoryRepository.Update(ctx, s)
}

func (f *failingStore) Delete(ctx context.Context, id string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.MemoryRepository.Delete(ctx, id)
}

type fixture struct {
	svc   Service
	gw    *mock.MockStripeGateway
	store *failingStore
	user  stripedb.User
}

// newFixture wires a service over a gomock gateway and an in-memory store
// holding one user linked to cus_1.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	g := mock.NewMockStripeGateway(ctrl)
	clock := func() time.Time { return testNow }
	store := &failingStore{MemoryRepository: stripedb.NewMemory(stripedb.WithClock(clock))}
	user, err := store.CreateUser(context.Background(), "owner@example.com", "cus_1")
	require.NoError(t, err)
	svc := NewService(g, store, WithClock(clock), WithSubscribePath("/subscribe"))
	return fixture{svc: svc, gw: g, store: store, user: user}
}

func (f fixture) seedMirror(t *testing.T, s stripedb.LocalSubscription) stripedb.LocalSubscription {
	t.Helper()
	if s.UserID == 0 {
		s.UserID = f.user.ID
	}
	stored, err := f.store.MemoryRepository.Create(context.Background(), s)
	require.NoError(t, err)
	return stored
}

func (f fixture) mirror(t *testing.T, id string) (stripedb.LocalSubscription, bool) {
	t.Helper()
	s, ok, err := f.store.MemoryRepository.LoadBySubscriptionID(context.Background(), id)
	require.NoError(t, err)
	return s, ok
}

func remoteSub(id string, status stripe.SubscriptionStatus) stripe.Subscription {
	return stripe.Subscription{
		ID:                 id,
		Status:             status,
		Plan:               &stripe.Plan{ID: "plan_gold", Nickname: "Gold"},
		Customer:           &stripe.Customer{ID: "cus_1"},
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
	}
}

func canceledAtPeriodEnd(s stripe.Subscription) stripe.Subscription {
	s.CancelAtPeriodEnd = true
	s.CancelAt = s.CurrentPeriodEnd
	return s
}

func localSub(id, plan string) stripedb.LocalSubscription {
	return stripedb.LocalSubscription{
		SubscriptionID:     id,
		PlanName:           plan,
		Status:             string(stripe.SubscriptionStatusActive),
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
	}
}
