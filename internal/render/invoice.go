// Package render turns priced invoices into printable documents.
package render

import (
	"fmt"

	"pawsit/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Invoice"

// ExcelRenderer produces an xlsx document for an invoice.
type ExcelRenderer struct {
	logger *zerolog.Logger
}

func NewExcelRenderer(logger *zerolog.Logger) *ExcelRenderer {
	return &ExcelRenderer{logger: logger}
}

// RenderInvoice builds the document in memory and returns its bytes and a
// suggested file name.
func (r *ExcelRenderer) RenderInvoice(invoice *models.Invoice, booking *models.Booking) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Invoice %s", invoice.InvoiceNumber))
	_ = f.MergeCell(sheetName, "A1", "D1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.SetCellValue(sheetName, "A3", "Issue date")
	_ = f.SetCellValue(sheetName, "B3", invoice.IssueDate.Format("2006-01-02"))
	_ = f.SetCellValue(sheetName, "A4", "Due date")
	_ = f.SetCellValue(sheetName, "B4", invoice.DueDate.Format("2006-01-02"))
	_ = f.SetCellValue(sheetName, "A5", "Account")
	_ = f.SetCellValue(sheetName, "B5", invoice.AccountID)
	if booking != nil {
		_ = f.SetCellValue(sheetName, "A6", "Service window")
		_ = f.SetCellValue(sheetName, "B6", fmt.Sprintf("%s - %s",
			booking.StartTime.Format("2006-01-02 15:04"),
			booking.EndTime.Format("15:04")))
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 8
	headers := []string{"Description", "Quantity", "Unit price", "Line total"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for _, item := range invoice.Items {
		row++
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), item.Description)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), item.Quantity)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), models.FormatCents(item.UnitPriceCents))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), models.FormatCents(item.TotalCents))
	}

	row += 2
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	lines := []struct {
		label string
		cents int64
	}{
		{"Subtotal", invoice.SubtotalCents},
		{"Platform fee", invoice.PlatformFeeCents},
		{"Total", invoice.TotalCents},
	}
	for _, line := range lines {
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), line.label)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), models.FormatCents(line.cents))
		if line.label == "Total" {
			_ = f.SetCellStyle(sheetName, fmt.Sprintf("C%d", row), fmt.Sprintf("D%d", row), totalStyle)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 35)
	_ = f.SetColWidth(sheetName, "B", "D", 15)
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("error writing document: %v", err)
	}

	fileName := fmt.Sprintf("invoice_%s.xlsx", invoice.InvoiceNumber)
	r.logger.Debug().Str("file_name", fileName).Int("size", buf.Len()).Msg("invoice document rendered")
	return buf.Bytes(), fileName, nil
}
