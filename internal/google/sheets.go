package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"pawsit/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsLedger mirrors platform fee entries into a Google Sheets finance
// spreadsheet. It is the external counterpart of the platform_fees table;
// the spreadsheet is append-only.
type SheetsLedger struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsLedger builds a ledger backed by a service account credentials
// file.
func NewSheetsLedger(credentialsFile, spreadsheetID, sheetName string) (*SheetsLedger, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	if sheetName == "" {
		sheetName = "Fees"
	}

	return &SheetsLedger{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// TestConnection reads the header cell to verify access.
func (s *SheetsLedger) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail returns the service account email, used to tell
// operators whom to share the spreadsheet with.
func (s *SheetsLedger) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// AppendFeeEntry appends one commission row to the ledger sheet.
func (s *SheetsLedger) AppendFeeEntry(ctx context.Context, fee *models.PlatformFee, invoiceNumber string) error {
	values := &sheets.ValueRange{
		Values: [][]interface{}{feeRowValues(fee, invoiceNumber)},
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A:H", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append fee entry: %v", err)
	}
	return nil
}

// EnsureHeader writes the header row when the sheet is empty.
func (s *SheetsLedger) EnsureHeader(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1:H1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %v", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	header := &sheets.ValueRange{
		Values: [][]interface{}{{
			"Fee ID", "Invoice", "Booking ID", "Base", "Percent (bps)", "Fee", "Net", "Recorded At",
		}},
	}
	_, err = s.service.Spreadsheets.Values.
		Update(s.spreadsheetID, s.sheetName+"!A1:H1", header).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write header: %v", err)
	}
	return nil
}

func feeRowValues(fee *models.PlatformFee, invoiceNumber string) []interface{} {
	return []interface{}{
		fee.ID,
		invoiceNumber,
		fee.BookingID,
		models.FormatCents(fee.BaseCents),
		fee.PercentBps,
		models.FormatCents(fee.FeeCents),
		models.FormatCents(fee.NetCents),
		fee.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
