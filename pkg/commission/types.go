package commission

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/guidepost/pkg/orders"
)

var (
	ErrMissingSpend    = errors.New("spend amount missing or not positive")
	ErrInvalidSpend    = errors.New("spend amount must be positive")
	ErrOrderNotReady   = errors.New("order is not completed")
	ErrNotFound        = errors.New("commission record not found")
	ErrInvalidState    = errors.New("commission is not in the required state")
	ErrAlreadyPaid     = errors.New("commission already paid")
	ErrNoReseller      = errors.New("order has no attributed reseller")
	ErrPayoutReference = errors.New("payout reference is required")
)

// RewardStatus is the ledger state of a referral reward
type RewardStatus string

const (
	RewardPending   RewardStatus = "pending"
	RewardAvailable RewardStatus = "available"
	RewardPaid      RewardStatus = "paid"
	RewardVoid      RewardStatus = "void"
)

// ReferralReward is the referrer's share of a qualifying order. At most one
// exists per source order.
type ReferralReward struct {
	ID               string       `json:"id"`
	ReferrerID       string       `json:"referrer_id"`
	SourceOrderID    string       `json:"source_order_id"`
	SourceResellerID string       `json:"source_reseller_id"`
	Amount           int64        `json:"amount"`
	Status           RewardStatus `json:"status"`
	AvailableAt      time.Time    `json:"available_at"`
	PaidAt           *time.Time   `json:"paid_at,omitempty"`
	PayoutReference  string       `json:"payout_reference,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Calculation is everything written when a commission is calculated
type Calculation struct {
	OrderID      string
	ResellerID   string
	RateBPS      int
	Tier         string
	Amount       int64
	CalculatedAt time.Time
	AvailableAt  time.Time
	Reward       *ReferralReward
}

// ReleaseSummary reports what one reseller's release moved
type ReleaseSummary struct {
	ResellerID  string `json:"reseller_id"`
	Commissions int    `json:"commissions"`
	Rewards     int    `json:"rewards"`
	Amount      int64  `json:"amount"`
}

// ReleaseReport aggregates a release run
type ReleaseReport struct {
	Resellers   int   `json:"resellers"`
	Commissions int   `json:"commissions"`
	Rewards     int   `json:"rewards"`
	Amount      int64 `json:"amount"`
	Failures    int   `json:"failures"`
}

// VoidSummary reports what a void changed
type VoidSummary struct {
	PreviousStatus orders.CommissionStatus `json:"previous_status"`
	Debited        int64                   `json:"debited"`
	RewardVoided   bool                    `json:"reward_voided"`
}

// ResetReport aggregates a quarterly tier reset
type ResetReport struct {
	Resellers int `json:"resellers"`
	Changed   int `json:"changed"`
	Failures  int `json:"failures"`
}

// Balance is a reseller's ledger position
type Balance struct {
	ResellerID string `json:"reseller_id"`
	Available  int64  `json:"available"`
	Paid       int64  `json:"paid"`
}

// Store is the ledger persistence contract. Every mutating method is a
// single transaction and only moves rows still in their source state.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)

	// ApplyCalculation moves a pending commission to calculated and, when
	// c.Reward is set, inserts the referral reward in the same transaction.
	// applied is false when the commission was no longer pending.
	ApplyCalculation(ctx context.Context, c Calculation) (applied bool, err error)

	FlagForReview(ctx context.Context, orderID, reason string) error

	// RecordSpend sets the spend of a completed order with a pending
	// commission and clears its review flag
	RecordSpend(ctx context.Context, orderID string, amount int64) error

	// DueBeneficiaries lists resellers owed a release at now
	DueBeneficiaries(ctx context.Context, now time.Time) ([]string, error)
	ReleaseForReseller(ctx context.Context, resellerID string, now time.Time) (ReleaseSummary, error)

	MarkPaid(ctx context.Context, orderID, payoutRef string, at time.Time) (int64, error)
	MarkRewardPaid(ctx context.Context, rewardID, payoutRef string, at time.Time) (int64, error)
	Void(ctx context.Context, orderID, reason string, at time.Time) (VoidSummary, error)

	// PendingCompleted lists completed orders whose commission is still
	// pending and not flagged for review
	PendingCompleted(ctx context.Context, limit int) ([]string, error)

	TrailingSales(ctx context.Context, resellerID string, from, to time.Time) (int64, error)
	GetReward(ctx context.Context, sourceOrderID string) (*ReferralReward, error)
	GetBalance(ctx context.Context, resellerID string) (*Balance, error)
}
