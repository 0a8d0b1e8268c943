package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Ledger events
	EventTypeCommissionCalculated EventType = "commission.calculated"
	EventTypeCommissionFlagged    EventType = "commission.flagged"
	EventTypeCommissionSpendSet   EventType = "commission.spend_recorded"
	EventTypeCommissionReleased   EventType = "commission.released"
	EventTypeCommissionPaid       EventType = "commission.paid"
	EventTypeCommissionVoided     EventType = "commission.voided"
	EventTypeReferralRewardPaid   EventType = "commission.referral_paid"
	EventTypeTierReset            EventType = "commission.tier_reset"

	// Reseller events
	EventTypeSubscriptionSynced  EventType = "reseller.subscription_synced"
	EventTypeStorefrontUpdated   EventType = "reseller.storefront_updated"
	EventTypeAttributionRejected EventType = "reseller.attribution_rejected"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeOrder      ResourceType = "order"
	ResourceTypeReward     ResourceType = "referral_reward"
	ResourceTypeReseller   ResourceType = "reseller"
	ResourceTypeStorefront ResourceType = "storefront"
)

// AuditEvent is one operator-facing audit record
type AuditEvent struct {
	ID           int64                  `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    EventType              `json:"event_type"`
	Status       EventStatus            `json:"status"`
	Actor        string                 `json:"actor,omitempty"`
	ResellerID   string                 `json:"reseller_id,omitempty"`
	ResourceType ResourceType           `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for searching audit events
type SearchFilter struct {
	StartTime  *time.Time
	EndTime    *time.Time
	ResellerID string
	EventTypes []EventType
	ResourceID string
	Limit      int
	Offset     int
}
