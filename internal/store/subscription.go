package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rosevale/habitloop/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Plan, &sub.Status, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

const subscriptionCols = `id, user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at, updated_at`

// Upsert replaces a user's subscription record.
func (s *SubscriptionStore) Upsert(userID int64, customerID, subscriptionID, plan, status string, periodEnd time.Time) (*model.Subscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(user_id) DO UPDATE SET
		   stripe_customer_id = excluded.stripe_customer_id,
		   stripe_subscription_id = excluded.stripe_subscription_id,
		   plan = excluded.plan,
		   status = excluded.status,
		   current_period_end = excluded.current_period_end,
		   updated_at = excluded.updated_at`,
		userID, customerID, subscriptionID, plan, status, periodEnd.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return s.GetByUser(userID)
}

func (s *SubscriptionStore) GetByUser(userID int64) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id = ?`, userID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by user: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByCustomerID(customerID string) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE stripe_customer_id = ?`, customerID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by customer: %w", err)
	}
	return sub, nil
}

// PlanForUser returns the user's effective plan: premium only while the
// subscription is active.
func (s *SubscriptionStore) PlanForUser(userID int64) (string, error) {
	sub, err := s.GetByUser(userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.Status != model.SubStatusActive {
		return model.PlanFree, nil
	}
	return sub.Plan, nil
}
