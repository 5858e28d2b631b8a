package database

import (
	"context"
	"fmt"
	"time"

	"pawsit/internal/models"
)

// CreateEffectTask appends a side-effect job to the outbox.
func (db *DB) CreateEffectTask(ctx context.Context, task *models.EffectTask) error {
	query := `INSERT INTO effect_tasks (task_type, booking_id, invoice_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.BookingID,
		task.InvoiceID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create effect task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingEffectTasks returns due pending/retry tasks, oldest first.
func (db *DB) GetPendingEffectTasks(ctx context.Context, limit int) ([]models.EffectTask, error) {
	query := `SELECT id, task_type, booking_id, invoice_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM effect_tasks
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending effect tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.EffectTask
	for rows.Next() {
		var t models.EffectTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.InvoiceID, &t.Payload,
			&t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt,
			&t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan effect task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkEffectTaskDone stamps a task as successfully processed.
func (db *DB) MarkEffectTaskDone(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE effect_tasks SET status = 'done', processed_at = ? WHERE id = ?`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark effect task done: %w", err)
	}
	return nil
}

// MarkEffectTaskRetry schedules another attempt after a backoff delay.
func (db *DB) MarkEffectTaskRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE effect_tasks SET status = 'retry', retry_count = ?, last_error = ?, next_retry_at = ? WHERE id = ?`,
		retryCount, lastError, nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark effect task retry: %w", err)
	}
	return nil
}

// MarkEffectTaskFailed parks a task that exhausted its retries.
func (db *DB) MarkEffectTaskFailed(ctx context.Context, id int64, lastError string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE effect_tasks SET status = 'failed', last_error = ?, processed_at = ? WHERE id = ?`,
		lastError, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark effect task failed: %w", err)
	}
	return nil
}
