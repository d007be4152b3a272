package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is written in the same database transaction as the ledger
// movements it describes, then published asynchronously by the outbox
// processor.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
}

type PaymentEventPayload struct {
	BookingID          uuid.UUID `json:"booking_id"`
	HospitalAccountID  uuid.UUID `json:"hospital_account_id"`
	AdminAccountID     uuid.UUID `json:"admin_account_id"`
	TotalAmount        int64     `json:"total_amount"`
	HospitalShare      int64     `json:"hospital_share"`
	ServiceChargeShare int64     `json:"service_charge_share"`
}

type DiscrepancyEventPayload struct {
	AccountID       uuid.UUID `json:"account_id"`
	ComputedBalance int64     `json:"computed_balance"`
	StoredBalance   int64     `json:"stored_balance"`
	Discrepancy     int64     `json:"discrepancy"`
}
