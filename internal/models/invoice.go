package models

import "time"

type Invoice struct {
	ID               int64         `json:"id"`
	AccountID        int64         `json:"account_id"`
	BookingID        int64         `json:"booking_id"`
	InvoiceNumber    string        `json:"invoice_number"`
	IssueDate        time.Time     `json:"issue_date"`
	DueDate          time.Time     `json:"due_date"`
	SubtotalCents    int64         `json:"subtotal_cents"`
	PlatformFeeCents int64         `json:"platform_fee_cents"`
	TotalCents       int64         `json:"total_cents"`
	Status           string        `json:"status"` // draft, sent, paid, partially_paid, overdue, cancelled, refunded
	Notes            string        `json:"notes"`
	Items            []InvoiceItem `json:"items"`
	Payments         []Payment     `json:"payments,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Version          int64         `json:"version"`
}

// TotalsConsistent verifies subtotal + fee == total exactly.
func (i *Invoice) TotalsConsistent() bool {
	return i.SubtotalCents+i.PlatformFeeCents == i.TotalCents
}

// IsOverdue reports the derived overdue view: still payable but past due.
func (i *Invoice) IsOverdue(now time.Time) bool {
	if i.Status == InvoiceOverdue {
		return true
	}
	return IsPayableInvoiceStatus(i.Status) && now.After(i.DueDate)
}

// PaidCents sums succeeded payments.
func (i *Invoice) PaidCents() int64 {
	var total int64
	for _, p := range i.Payments {
		if p.Status == PaymentSucceeded {
			total += p.AmountCents
		}
	}
	return total
}

type InvoiceItem struct {
	ID             int64  `json:"id"`
	InvoiceID      int64  `json:"invoice_id"`
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// LineTotalConsistent verifies total == quantity × unit price.
func (it *InvoiceItem) LineTotalConsistent() bool {
	return it.TotalCents == it.Quantity*it.UnitPriceCents
}

// InvoiceItemRequest is a caller-supplied custom line for generation.
type InvoiceItemRequest struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// InvoicePatch carries an administrative correction of financial fields.
type InvoicePatch struct {
	SubtotalCents    *int64  `json:"subtotal_cents,omitempty"`
	PlatformFeeCents *int64  `json:"platform_fee_cents,omitempty"`
	TotalCents       *int64  `json:"total_cents,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// PlatformFee is the immutable audit record of a commission taken.
type PlatformFee struct {
	ID          int64     `json:"id"`
	BookingID   int64     `json:"booking_id"`
	InvoiceID   int64     `json:"invoice_id"`
	BaseCents   int64     `json:"base_cents"`
	PercentBps  int64     `json:"percent_bps"` // basis points: 1000 == 10%
	FeeCents    int64     `json:"fee_cents"`
	NetCents    int64     `json:"net_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

type Payment struct {
	ID          string    `json:"id"` // uuid
	InvoiceID   int64     `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"` // pending, succeeded, failed
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
