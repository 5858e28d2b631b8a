package database

import (
	"context"
	"fmt"
	"time"

	"pawsit/internal/models"
)

func (db *DB) CreatePayment(ctx context.Context, payment *models.Payment) error {
	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO payments (id, invoice_id, amount_cents, status, reference, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.InvoiceID, payment.AmountCents,
		payment.Status, payment.Reference, now)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	payment.CreatedAt = now
	return nil
}

func (db *DB) GetPaymentsByInvoice(ctx context.Context, invoiceID int64) ([]models.Payment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, invoice_id, amount_cents, status, reference, created_at
         FROM payments WHERE invoice_id = ? ORDER BY created_at ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AmountCents, &p.Status,
			&p.Reference, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SumSucceededPayments totals settled amounts for an invoice.
func (db *DB) SumSucceededPayments(ctx context.Context, invoiceID int64) (int64, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments
         WHERE invoice_id = ? AND status = ?`,
		invoiceID, models.PaymentSucceeded).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total, nil
}
