package models

import "time"

// Side-effect task types consumed by the outbox worker.
const (
	TaskRenderDocument = "render_document"
	TaskNotify         = "notify"
	TaskFeeLedger      = "fee_ledger"
)

// Effect task processing statuses.
const (
	EffectStatusPending = "pending"
	EffectStatusRetry   = "retry"
	EffectStatusDone    = "done"
	EffectStatusFailed  = "failed"
)

// EffectTask is a persisted best-effort side-effect job (outbox row).
type EffectTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	BookingID   int64      `json:"booking_id"`
	InvoiceID   int64      `json:"invoice_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"` // pending, retry, done, failed
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}
