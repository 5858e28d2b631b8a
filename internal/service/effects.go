package service

import (
	"context"
	"encoding/json"
	"fmt"

	"pawsit/internal/domain"
	"pawsit/internal/models"
)

// EffectQueue persists side-effect jobs into the effect_tasks outbox. The
// worker daemon drains them with its own retry policy, independent of the
// transaction that enqueued them.
type EffectQueue struct {
	repo domain.Repository
}

func NewEffectQueue(repo domain.Repository) *EffectQueue {
	return &EffectQueue{repo: repo}
}

func (q *EffectQueue) EnqueueEffect(ctx context.Context, taskType string, bookingID, invoiceID int64, payload interface{}) error {
	raw := "{}"
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal effect payload: %w", err)
		}
		raw = string(data)
	}

	task := &models.EffectTask{
		TaskType:  taskType,
		BookingID: bookingID,
		InvoiceID: invoiceID,
		Payload:   raw,
		Status:    models.EffectStatusPending,
	}
	return q.repo.CreateEffectTask(ctx, task)
}
