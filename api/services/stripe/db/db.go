package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// foreign_key_violation
const pqForeignKeyViolation = "23503"

const subscriptionColumns = `subscription_id, user_id, plan_name, status, current_period_start,
	current_period_end, cancel_at_period_end, remote_updated_at, created_at, updated_at`

// Repository persists users, subscription mirrors and webhook deliveries in Postgres.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a repository.
type Option func(*repoOptions)

type repoOptions struct {
	now func() time.Time
}

// WithClock replaces the wall clock used to stamp local writes.
func WithClock(now func() time.Time) Option {
	return func(o *repoOptions) { o.now = now }
}

func buildOptions(opts []Option) repoOptions {
	o := repoOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns a Repository backed by conn.
func New(conn *sql.DB, opts ...Option) *Repository {
	return &Repository{db: conn, now: buildOptions(opts).now}
}

// CreateUser inserts a user. customerID may be empty for users not linked to Stripe.
func (r *Repository) CreateUser(ctx context.Context, email, customerID string) (User, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, stripe_customer_id) VALUES ($1, $2) RETURNING id`,
		email, nullIfEmpty(customerID),
	).Scan(&id)
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Email: email, StripeCustomerID: customerID}, nil
}

// GetUser loads a user by id.
func (r *Repository) GetUser(ctx context.Context, userID int64) (User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, stripe_customer_id FROM users WHERE id = $1`, userID))
}

func (r *Repository) scanUser(row *sql.Row) (User, error) {
	var u User
	var cust sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &cust); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.StripeCustomerID = cust.String
	return u, nil
}

// LoadBySubscriptionID returns the mirror for id; ok is false when none exists.
func (r *Repository) LoadBySubscriptionID(ctx context.Context, id string) (LocalSubscription, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM stripe_subscription WHERE subscription_id = $1`, id)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LocalSubscription{}, false, nil
	}
	if err != nil {
		return LocalSubscription{}, false, err
	}
	return s, true, nil
}

// Create inserts a mirror and returns the stored row. When a row with the same
// subscription id already exists the insert is ignored and the existing row is
// returned, so concurrent creators converge on a single row.
func (r *Repository) Create(ctx context.Context, s LocalSubscription) (LocalSubscription, error) {
	now := r.now().Unix()
	_, err := r.db.ExecContext(ctx, `INSERT INTO stripe_subscription (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (subscription_id) DO NOTHING`,
		s.SubscriptionID, s.UserID, s.PlanName, s.Status,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CancelAtPeriodEnd, s.RemoteUpdatedAt, now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return LocalSubscription{}, fmt.Errorf("user %d: %w", s.UserID, ErrNotFound)
		}
		return LocalSubscription{}, err
	}
	stored, ok, err := r.LoadBySubscriptionID(ctx, s.SubscriptionID)
	if err != nil {
		return LocalSubscription{}, err
	}
	if !ok {
		// deleted between insert and read
		return LocalSubscription{}, fmt.Errorf("subscription %s: %w", s.SubscriptionID, ErrNotFound)
	}
	return stored, nil
}

// Update overwrites the cached remote fields of an existing mirror. It reports
// false when the row no longer exists; it never recreates a deleted row.
func (r *Repository) Update(ctx context.Context, s LocalSubscription) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE stripe_subscription
		SET plan_name = $2, status = $3, current_period_start = $4, current_period_end = $5,
			cancel_at_period_end = $6, remote_updated_at = $7, updated_at = $8
		WHERE subscription_id = $1`,
		s.SubscriptionID, s.PlanName, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd, s.RemoteUpdatedAt, r.now().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the mirror for id and reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stripe_subscription WHERE subscription_id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByUser returns the mirrors owned by userID ordered by subscription id.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]LocalSubscription, error) {
	return r.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM stripe_subscription WHERE user_id = $1 ORDER BY subscription_id`, userID)
}

// ListAll returns every mirror ordered by subscription id.
func (r *Repository) ListAll(ctx context.Context) ([]LocalSubscription, error) {
	return r.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM stripe_subscription ORDER BY subscription_id`)
}

func (r *Repository) querySubscriptions(ctx context.Context, query string, args ...any) ([]LocalSubscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LocalSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordWebhookEvent stores a delivery if its event id is new. It returns
// whether this call created the record along with the stored record.
func (r *Repository) RecordWebhookEvent(ctx context.Context, e WebhookEvent) (bool, WebhookEvent, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO stripe_webhook_event (event_id, event_type, subscription_id, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.EventType, e.SubscriptionID, r.now().Unix(),
	)
	if err != nil {
		return false, WebhookEvent{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, WebhookEvent{}, err
	}

	var stored WebhookEvent
	var processedAt sql.NullInt64
	err = r.db.QueryRowContext(ctx, `SELECT event_id, event_type, subscription_id, received_at, processed_at, processing_error
		FROM stripe_webhook_event WHERE event_id = $1`, e.EventID,
	).Scan(&stored.EventID, &stored.EventType, &stored.SubscriptionID, &stored.ReceivedAt, &processedAt, &stored.ProcessingError)
	if err != nil {
		return false, WebhookEvent{}, err
	}
	stored.ProcessedAt = processedAt.Int64
	return n > 0, stored, nil
}

// MarkWebhookEventProcessed stamps a delivery as processed with an optional error text.
func (r *Repository) MarkWebhookEventProcessed(ctx context.Context, eventID, processingError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE stripe_webhook_event SET processed_at = $2, processing_error = $3 WHERE event_id = $1`,
		eventID, r.now().Unix(), processingError,
	)
	return err
}

// PruneWebhookEvents deletes deliveries received before receivedBefore and
// returns how many were removed.
func (r *Repository) PruneWebhookEvents(ctx context.Context, receivedBefore int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stripe_webhook_event WHERE received_at < $1`, receivedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (LocalSubscription, error) {
	var s LocalSubscription
	err := row.Scan(&s.SubscriptionID, &s.UserID, &s.PlanName, &s.Status, &s.CurrentPeriodStart,
		&s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.RemoteUpdatedAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
