package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"pawsit/internal/database"
	"pawsit/internal/domain"
	"pawsit/internal/metrics"
	"pawsit/internal/models"
	"pawsit/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EffectsWorker drains the effect_tasks outbox and executes the side effects
// deferred by the services: invoice document rendering, notifications and the
// external fee ledger mirror. Tasks that exhaust their retries are parked as
// failed and copied to a redis dead-letter list for inspection.
type EffectsWorker struct {
	db            *database.DB
	renderer      domain.DocumentRenderer
	notifier      domain.NotificationDispatcher
	ledger        domain.LedgerWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	pollInterval  time.Duration
	batchSize     int
	exportPath    string
	deadLetterKey string
	logger        *zerolog.Logger
}

// NewEffectsWorker builds a worker with sane defaults.
func NewEffectsWorker(
	db *database.DB,
	renderer domain.DocumentRenderer,
	notifier domain.NotificationDispatcher,
	ledger domain.LedgerWriter,
	redisClient *redis.Client,
	retry RetryPolicy,
	exportPath string,
	logger *zerolog.Logger,
) *EffectsWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if exportPath == "" {
		exportPath = "exports"
	}

	return &EffectsWorker{
		db:            db,
		renderer:      renderer,
		notifier:      notifier,
		ledger:        ledger,
		redis:         redisClient,
		retryPolicy:   retry,
		pollInterval:  2 * time.Second,
		batchSize:     20,
		exportPath:    exportPath,
		deadLetterKey: "effects:deadletter",
		logger:        logger,
	}
}

// SetPollInterval overrides the poll interval, used by daemons with tighter
// configuration.
func (w *EffectsWorker) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// SetBatchSize overrides how many due tasks one poll picks up.
func (w *EffectsWorker) SetBatchSize(n int) {
	if n > 0 {
		w.batchSize = n
	}
}

// Start launches the polling loop; stops when ctx is done.
func (w *EffectsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("effects worker started")
	defer w.logger.Info().Msg("effects worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tasks, err := w.db.GetPendingEffectTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending effect tasks failed")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

// RunOverdueSweep periodically flips sent and partially paid invoices past
// their due date to overdue.
func (w *EffectsWorker) RunOverdueSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.sweepOverdue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepOverdue(ctx)
		}
	}
}

func (w *EffectsWorker) sweepOverdue(ctx context.Context) {
	n, err := w.db.MarkOverdueInvoices(ctx, time.Now())
	if err != nil {
		w.logger.Error().Err(err).Msg("overdue sweep failed")
		return
	}
	if n > 0 {
		w.logger.Info().Int64("count", n).Msg("invoices marked overdue")
	}
}

func (w *EffectsWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *EffectsWorker) processTask(ctx context.Context, task *models.EffectTask) {
	if err := w.handleTask(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.MarkEffectTaskDone(ctx, task.ID); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark effect task done failed")
		return
	}
	metrics.IncEffectProcessed(task.TaskType)
}

func (w *EffectsWorker) handleTask(ctx context.Context, task *models.EffectTask) error {
	switch task.TaskType {
	case models.TaskRenderDocument:
		return w.handleRender(ctx, task)
	case models.TaskNotify:
		return w.handleNotify(ctx, task)
	case models.TaskFeeLedger:
		return w.handleFeeLedger(ctx, task)
	default:
		return fmt.Errorf("unknown task type: %s", task.TaskType)
	}
}

func (w *EffectsWorker) handleRender(ctx context.Context, task *models.EffectTask) error {
	if w.renderer == nil {
		return errors.New("document renderer not configured")
	}
	invoice, err := w.db.GetInvoice(ctx, task.InvoiceID)
	if err != nil {
		return fmt.Errorf("load invoice %d: %w", task.InvoiceID, err)
	}
	booking, err := w.db.GetBooking(ctx, task.BookingID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("load booking %d: %w", task.BookingID, err)
	}

	data, filename, err := w.renderer.RenderInvoice(invoice, booking)
	if err != nil {
		return fmt.Errorf("render invoice %s: %w", invoice.InvoiceNumber, err)
	}

	if err := os.MkdirAll(w.exportPath, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(w.exportPath, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write invoice document: %w", err)
	}

	w.logger.Info().Str("path", path).Str("invoice_number", invoice.InvoiceNumber).Msg("invoice document rendered")
	return nil
}

func (w *EffectsWorker) handleNotify(ctx context.Context, task *models.EffectTask) error {
	if w.notifier == nil {
		return errors.New("notification dispatcher not configured")
	}
	vars, err := decodeVars(task.Payload)
	if err != nil {
		return fmt.Errorf("decode notify payload: %w", err)
	}
	booking, err := w.db.GetBooking(ctx, task.BookingID)
	if err != nil {
		return fmt.Errorf("load booking %d: %w", task.BookingID, err)
	}

	templateKey := vars["template"]
	if templateKey == "" {
		templateKey = notify.TplInvoiceNotification
	}
	return w.notifier.Send(ctx, booking.CreatedByUserID, templateKey, vars)
}

func (w *EffectsWorker) handleFeeLedger(ctx context.Context, task *models.EffectTask) error {
	if w.ledger == nil {
		// The DB fee record is authoritative; without a configured
		// ledger mirror the task is acknowledged, not retried.
		w.logger.Debug().Int64("task_id", task.ID).Int64("invoice_id", task.InvoiceID).
			Msg("no ledger configured, skipping fee mirror")
		return nil
	}
	vars, err := decodeVars(task.Payload)
	if err != nil {
		return fmt.Errorf("decode ledger payload: %w", err)
	}
	fees, err := w.db.GetPlatformFeesByInvoice(ctx, task.InvoiceID)
	if err != nil {
		return fmt.Errorf("load platform fees for invoice %d: %w", task.InvoiceID, err)
	}
	if len(fees) == 0 {
		return fmt.Errorf("no platform fee recorded for invoice %d", task.InvoiceID)
	}

	fee := fees[len(fees)-1]
	if raw := vars["fee_id"]; raw != "" {
		wanted, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("bad fee_id %q: %w", raw, err)
		}
		for _, f := range fees {
			if f.ID == wanted {
				fee = f
				break
			}
		}
	}

	return w.ledger.AppendFeeEntry(ctx, fee, vars["invoice_number"])
}

func (w *EffectsWorker) retryOrFail(ctx context.Context, task *models.EffectTask, cause error) {
	metrics.IncEffectFailure(task.TaskType)

	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		if err := w.db.MarkEffectTaskFailed(ctx, task.ID, cause.Error()); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark effect task failed errored")
		}
		w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("task", task.TaskType).Msg("effect task exhausted retries")
		w.pushDeadLetter(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.MarkEffectTaskRetry(ctx, task.ID, attempt, cause.Error(), nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark effect task retry errored")
		return
	}
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Str("task", task.TaskType).
		Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("effect task scheduled for retry")
}

func (w *EffectsWorker) pushDeadLetter(ctx context.Context, task *models.EffectTask, cause error) {
	if w.redis == nil {
		return
	}
	entry := struct {
		Task  *models.EffectTask `json:"task"`
		Error string             `json:"error"`
	}{Task: task, Error: cause.Error()}

	data, err := json.Marshal(entry)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode dead letter failed")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push failed")
	}
}

func decodeVars(raw string) (map[string]string, error) {
	vars := map[string]string{}
	if raw == "" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, err
	}
	return vars, nil
}
