// Package google appends budget expenses to a Google Sheet with the Sheets
// v4 API and a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"blockbudget/internal/core"
	"blockbudget/internal/ports"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the client. Endpoint is only set by tests.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
	Endpoint        string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.ExpenseRowWriter = (*Client)(nil)

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Expenses"
	}

	var clientOpts []goption.ClientOption
	switch {
	case opts.Endpoint != "":
		clientOpts = append(clientOpts, goption.WithEndpoint(opts.Endpoint), goption.WithoutAuthentication())
	case len(opts.CredentialsJSON) > 0:
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(opts.CredentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", opts.SpreadsheetID,
		"sheet", sheetName)

	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, sheetName: sheetName}, nil
}

// LoadCredentials returns the inline service account JSON, or reads it from
// file when no inline value is set.
func LoadCredentials(inlineJSON, file string) ([]byte, error) {
	if s := strings.TrimSpace(inlineJSON); s != "" {
		return []byte(s), nil
	}
	if file = strings.TrimSpace(file); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// AppendExpense appends date, category, amount and note after the last row
// of the sheet.
func (c *Client) AppendExpense(ctx context.Context, row ports.ExpenseRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:D", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	slog.DebugContext(ctx, "Appended expense row", "range", updated, "date", row.Date)
	return nil
}

func rowValues(row ports.ExpenseRow) []any {
	return []any{row.Date, row.Category, core.FormatAmount(row.Amount), row.Note}
}
