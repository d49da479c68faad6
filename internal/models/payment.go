package models

import (
	"encoding/json"
	"time"
)

// PaymentStatus is the lifecycle state of a payment record. Transitions
// are one-way: pending -> completed/failed/canceled, driven by gateway
// notifications only.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

// Payment is a payment-intent record. order_id is the natural idempotency
// key: at most one record per order, enforced by a unique constraint.
type Payment struct {
	ID         string          `json:"id" db:"id"`
	OrderID    string          `json:"order_id" db:"order_id"`
	UserID     *string         `json:"user_id,omitempty" db:"user_id"` // nil for guest checkout
	Amount     float64         `json:"amount" db:"amount"`
	Currency   string          `json:"currency" db:"currency"`
	Status     PaymentStatus   `json:"status" db:"status"`
	FirstName  string          `json:"first_name" db:"first_name"`
	LastName   string          `json:"last_name" db:"last_name"`
	Email      string          `json:"email" db:"email"`
	Phone      string          `json:"phone" db:"phone"`
	Address    string          `json:"address" db:"address"`
	City       string          `json:"city" db:"city"`
	Country    string          `json:"country" db:"country"`
	Items      string          `json:"items" db:"items"`
	MerchantID string          `json:"merchant_id" db:"merchant_id"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// PaymentQuery filters payment listings.
type PaymentQuery struct {
	Status    *PaymentStatus
	UserID    *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}
