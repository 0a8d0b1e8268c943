package orders

import (
	"context"
	"errors"
	"time"
)

// Status is the customer-facing order lifecycle
type Status string

const (
	StatusLead      Status = "lead"
	StatusInquiry   Status = "inquiry"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CommissionStatus is the ledger state of an order's commission
type CommissionStatus string

const (
	CommissionPending    CommissionStatus = "pending"
	CommissionCalculated CommissionStatus = "calculated"
	CommissionAvailable  CommissionStatus = "available"
	CommissionPaid       CommissionStatus = "paid"
	CommissionVoid       CommissionStatus = "void"
)

// Currency is the only settlement currency
const Currency = "JPY"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrAlreadyAttributed = errors.New("order already attributed to another reseller")
	ErrInvalidOrder      = errors.New("invalid order")
)

// Commission is the ledger sub-record carried on each order. RateBPS and
// Tier are the snapshot taken when the amount was calculated.
type Commission struct {
	Status          CommissionStatus `json:"status"`
	RateBPS         *int             `json:"rate_bps,omitempty"`
	Tier            string           `json:"tier,omitempty"`
	Amount          *int64           `json:"amount,omitempty"`
	CalculatedAt    *time.Time       `json:"calculated_at,omitempty"`
	AvailableAt     *time.Time       `json:"available_at,omitempty"`
	ReleasedAt      *time.Time       `json:"released_at,omitempty"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	PayoutReference string           `json:"payout_reference,omitempty"`
	NeedsReview     bool             `json:"needs_review"`
	ReviewReason    string           `json:"review_reason,omitempty"`
}

// Order is an attributable purchase. Amounts are integer yen.
type Order struct {
	ID          string     `json:"id"`
	ResellerID  *string    `json:"reseller_id,omitempty"`
	CustomerRef string     `json:"customer_ref"`
	OrderType   string     `json:"order_type"`
	SpendAmount *int64     `json:"spend_amount,omitempty"`
	Currency    string     `json:"currency"`
	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Commission  Commission `json:"commission"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Store persists orders
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)

	// BindReseller sets the attributing reseller once. Binding the same
	// reseller again is a no-op; a different one is ErrAlreadyAttributed.
	BindReseller(ctx context.Context, orderID, resellerID string) error

	// UpdateStatus applies a forward transition. spend, when non-nil,
	// records the final amount alongside the transition.
	UpdateStatus(ctx context.Context, id string, to Status, spend *int64, at time.Time) (*Order, error)
}
