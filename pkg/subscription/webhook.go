package subscription

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignatureHeader carries the provider's webhook signature
const SignatureHeader = "Provider-Signature"

// Sign computes the signature header value for payload at t
func Sign(payload []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(ts, payload, secret)
}

func computeSignature(ts string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against payload. Any v1 entry may match,
// which lets the provider sign with old and new secrets during rotation.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	var (
		ts         string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if ts == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}

	expected := []byte(computeSignature(ts, payload, secret))
	matched := false
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}
	return nil
}

// Event is the webhook body. Only the reseller id is used; state always
// comes from a fresh provider read.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ResellerID string `json:"resellerId"`
	} `json:"data"`
}

// ParseEvent decodes and checks a webhook body
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", ErrMalformedEvent)
	}
	return &evt, nil
}

// triggersSync reports whether an event type can change subscription state
func triggersSync(eventType string) bool {
	switch eventType {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"invoice.paid",
		"invoice.payment_failed":
		return true
	}
	return false
}

// EventStore deduplicates webhook deliveries
type EventStore interface {
	// Begin records the event and reports whether it was already processed
	Begin(ctx context.Context, evt *Event) (processed bool, err error)
	// Finish marks the event processed, or stores the failure for a redelivery
	Finish(ctx context.Context, eventID string, procErr error) error
}

// PostgresEventStore keeps webhook events in subscription_webhook_events
type PostgresEventStore struct {
	db *sql.DB
}

// NewPostgresEventStore creates a new PostgresEventStore
func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

// Begin inserts the event, or returns the processed flag of the earlier row
func (s *PostgresEventStore) Begin(ctx context.Context, evt *Event) (bool, error) {
	var processed bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subscription_webhook_events (provider_event_id, event_type, reseller_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_event_id) DO UPDATE SET event_type = EXCLUDED.event_type
		RETURNING processed_at IS NOT NULL
	`, evt.ID, evt.Type, nullUUID(evt.Data.ResellerID)).Scan(&processed)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return processed, nil
}

// Finish records the processing outcome
func (s *PostgresEventStore) Finish(ctx context.Context, eventID string, procErr error) error {
	var err error
	if procErr == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE subscription_webhook_events SET processed_at = NOW(), last_error = ''
			WHERE provider_event_id = $1
		`, eventID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE subscription_webhook_events SET last_error = $2 WHERE provider_event_id = $1`,
			eventID, procErr.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to finish webhook event: %w", err)
	}
	return nil
}

func nullUUID(id string) sql.NullString {
	if _, err := uuid.Parse(id); err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id, Valid: true}
}
