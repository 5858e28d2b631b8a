package database

import (
	"context"
	"fmt"
	"time"

	"pawsit/internal/models"
)

// CreatePlatformFee appends an immutable commission ledger entry.
func (db *DB) CreatePlatformFee(ctx context.Context, fee *models.PlatformFee) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO platform_fees (booking_id, invoice_id, base_cents, percent_bps, fee_cents, net_cents, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fee.BookingID, fee.InvoiceID, fee.BaseCents, fee.PercentBps,
		fee.FeeCents, fee.NetCents, now)
	if err != nil {
		return fmt.Errorf("failed to create platform fee: %w", err)
	}
	fee.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	fee.CreatedAt = now
	return nil
}

func (db *DB) GetPlatformFeesByInvoice(ctx context.Context, invoiceID int64) ([]*models.PlatformFee, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, booking_id, invoice_id, base_cents, percent_bps, fee_cents, net_cents, created_at
         FROM platform_fees WHERE invoice_id = ? ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform fees: %w", err)
	}
	defer rows.Close()

	var fees []*models.PlatformFee
	for rows.Next() {
		f := &models.PlatformFee{}
		if err := rows.Scan(&f.ID, &f.BookingID, &f.InvoiceID, &f.BaseCents,
			&f.PercentBps, &f.FeeCents, &f.NetCents, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan platform fee: %w", err)
		}
		fees = append(fees, f)
	}
	return fees, rows.Err()
}

// GetPlatformFeesSince returns ledger entries created at or after a cutoff,
// used by the finance spreadsheet mirror.
func (db *DB) GetPlatformFeesSince(ctx context.Context, since time.Time) ([]*models.PlatformFee, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, booking_id, invoice_id, base_cents, percent_bps, fee_cents, net_cents, created_at
         FROM platform_fees WHERE created_at >= ? ORDER BY id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform fees: %w", err)
	}
	defer rows.Close()

	var fees []*models.PlatformFee
	for rows.Next() {
		f := &models.PlatformFee{}
		if err := rows.Scan(&f.ID, &f.BookingID, &f.InvoiceID, &f.BaseCents,
			&f.PercentBps, &f.FeeCents, &f.NetCents, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan platform fee: %w", err)
		}
		fees = append(fees, f)
	}
	return fees, rows.Err()
}
