package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pawsit/internal/models"

	"github.com/mattn/go-sqlite3"
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// NextInvoiceNumber reserves the next sequence for the year inside tx.
func nextInvoiceNumber(ctx context.Context, tx *sql.Tx, prefix string, issue time.Time) (string, error) {
	year := issue.Year()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO invoice_counters (year, last_seq) VALUES (?, 1)
         ON CONFLICT(year) DO UPDATE SET last_seq = last_seq + 1`, year)
	if err != nil {
		return "", fmt.Errorf("failed to bump invoice counter: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT last_seq FROM invoice_counters WHERE year = ?`, year).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to read invoice counter: %w", err)
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq), nil
}

// CreateInvoiceWithItems persists the invoice aggregate in one transaction:
// duplicate guard, number assignment, the invoice row, and its items.
// The unique index on booking_id backs the in-tx duplicate check.
func (db *DB) CreateInvoiceWithItems(ctx context.Context, invoice *models.Invoice, numberPrefix string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM invoices WHERE booking_id = ?`, invoice.BookingID).Scan(&existing)
		if err != nil {
			return fmt.Errorf("failed to check existing invoice: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateInvoice
		}

		number, err := nextInvoiceNumber(ctx, tx, numberPrefix, invoice.IssueDate)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		now := time.Now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO invoices (
                account_id, booking_id, invoice_number, issue_date, due_date,
                subtotal_cents, platform_fee_cents, total_cents, status, notes,
                created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			invoice.AccountID, invoice.BookingID, invoice.InvoiceNumber,
			invoice.IssueDate, invoice.DueDate,
			invoice.SubtotalCents, invoice.PlatformFeeCents, invoice.TotalCents,
			invoice.Status, invoice.Notes, now, now, 1)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateInvoice
			}
			return fmt.Errorf("failed to insert invoice: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		invoice.ID = id
		invoice.CreatedAt = now
		invoice.UpdatedAt = now
		invoice.Version = 1

		for i := range invoice.Items {
			item := &invoice.Items[i]
			item.InvoiceID = id
			res, err := tx.ExecContext(ctx,
				`INSERT INTO invoice_items (invoice_id, description, quantity, unit_price_cents, total_cents)
                 VALUES (?, ?, ?, ?, ?)`,
				item.InvoiceID, item.Description, item.Quantity, item.UnitPriceCents, item.TotalCents)
			if err != nil {
				return fmt.Errorf("failed to insert invoice item: %w", err)
			}
			item.ID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get item insert id: %w", err)
			}
		}
		return nil
	})
}

const invoiceColumns = `id, account_id, booking_id, invoice_number, issue_date, due_date,
       subtotal_cents, platform_fee_cents, total_cents, status, notes,
       created_at, updated_at, version`

func scanInvoice(row interface{ Scan(...any) error }) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var notes sql.NullString
	err := row.Scan(
		&inv.ID, &inv.AccountID, &inv.BookingID, &inv.InvoiceNumber,
		&inv.IssueDate, &inv.DueDate,
		&inv.SubtotalCents, &inv.PlatformFeeCents, &inv.TotalCents,
		&inv.Status, &notes, &inv.CreatedAt, &inv.UpdatedAt, &inv.Version,
	)
	if err != nil {
		return nil, err
	}
	inv.Notes = notes.String
	return inv, nil
}

func (db *DB) loadInvoiceChildren(ctx context.Context, inv *models.Invoice) error {
	rows, err := db.QueryContext(ctx,
		`SELECT id, invoice_id, description, quantity, unit_price_cents, total_cents
         FROM invoice_items WHERE invoice_id = ? ORDER BY id ASC`, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoice items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it models.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description,
			&it.Quantity, &it.UnitPriceCents, &it.TotalCents); err != nil {
			return fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payments, err := db.GetPaymentsByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	inv.Payments = payments
	return nil
}

func (db *DB) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if err := db.loadInvoiceChildren(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (db *DB) GetInvoiceByBooking(ctx context.Context, bookingID int64) (*models.Invoice, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE booking_id = ?`, bookingID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice by booking: %w", err)
	}
	if err := db.loadInvoiceChildren(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (db *DB) GetInvoicesByAccount(ctx context.Context, accountID int64) ([]*models.Invoice, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE account_id = ? ORDER BY issue_date DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// UpdateInvoiceStatusWithVersion sets the status and optionally appends to
// notes, guarded by the version column.
func (db *DB) UpdateInvoiceStatusWithVersion(ctx context.Context, id, fromVersion int64, status, appendNotes string) error {
	var query string
	var args []any
	now := time.Now()
	if strings.TrimSpace(appendNotes) != "" {
		query = `UPDATE invoices
                 SET status = ?, notes = TRIM(COALESCE(notes, '') || ' ' || ?),
                     version = version + 1, updated_at = ?
                 WHERE id = ? AND version = ?`
		args = []any{status, appendNotes, now, id, fromVersion}
	} else {
		query = `UPDATE invoices SET status = ?, version = version + 1, updated_at = ?
                 WHERE id = ? AND version = ?`
		args = []any{status, now, id, fromVersion}
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// UpdateInvoiceFinancialsWithVersion applies an administrative correction.
func (db *DB) UpdateInvoiceFinancialsWithVersion(ctx context.Context, id, fromVersion int64, subtotal, fee, total int64, notes string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE invoices SET subtotal_cents = ?, platform_fee_cents = ?, total_cents = ?,
                notes = COALESCE(NULLIF(?, ''), notes),
                version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		subtotal, fee, total, notes, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update invoice financials: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// MarkOverdueInvoices stores the derived overdue view for payable invoices
// past their due date. Returns the number of rows flipped.
func (db *DB) MarkOverdueInvoices(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE invoices SET status = ?, version = version + 1, updated_at = ?
         WHERE status IN (?, ?) AND due_date < ?`,
		models.InvoiceOverdue, now,
		models.InvoiceSent, models.InvoicePartiallyPaid, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	return result.RowsAffected()
}
