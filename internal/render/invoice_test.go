package render

import (
	"bytes"
	"testing"
	"time"

	"pawsit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleInvoice() *models.Invoice {
	issue := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return &models.Invoice{
		ID: 7, AccountID: 10, BookingID: 5,
		InvoiceNumber: "INV-2026-000001",
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, 15),
		SubtotalCents: 5000, PlatformFeeCents: 500, TotalCents: 5500,
		Status: models.InvoiceSent,
		Items: []models.InvoiceItem{
			{Description: "Dog walk", Quantity: 1, UnitPriceCents: 5000, TotalCents: 5000},
		},
	}
}

func TestRenderInvoice(t *testing.T) {
	logger := zerolog.Nop()
	r := NewExcelRenderer(&logger)

	booking := &models.Booking{
		ID: 5, StartTime: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		EndTime: time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC),
	}

	data, name, err := r.RenderInvoice(sampleInvoice(), booking)
	require.NoError(t, err)
	assert.Equal(t, "invoice_INV-2026-000001.xlsx", name)
	assert.NotEmpty(t, data)

	// The document must be a readable workbook with the totals in place.
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Invoice", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice INV-2026-000001", title)

	desc, err := f.GetCellValue("Invoice", "A9")
	require.NoError(t, err)
	assert.Equal(t, "Dog walk", desc)

	rows, err := f.GetRows("Invoice")
	require.NoError(t, err)

	var sawTotal bool
	for _, row := range rows {
		for i, cell := range row {
			if cell == "Total" && i+1 < len(row) {
				sawTotal = true
				assert.Equal(t, "55.00", row[i+1])
			}
		}
	}
	assert.True(t, sawTotal, "total line missing from document")
}

func TestRenderInvoiceWithoutBooking(t *testing.T) {
	logger := zerolog.Nop()
	r := NewExcelRenderer(&logger)

	data, _, err := r.RenderInvoice(sampleInvoice(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
