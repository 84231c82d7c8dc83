package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	applog "invoicer/internal/log"
	ports "invoicer/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var ErrMissingCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")

// Config selects the spreadsheet and the service account.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *applog.Logger

	// serializes the read-then-write of row lookups
	mu      sync.Mutex
	sheetID *int64
}

// Ensure interface conformance
var _ ports.LedgerWriter = (*Client)(nil)

// New creates a ledger client authenticated with a service account.
// Extra options are appended after the credentials.
func New(ctx context.Context, cfg Config, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentLedger)
	}

	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *applog.Logger) *Client {
	if sheet == "" {
		sheet = "Invoices"
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentLedger)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(applog.ComponentLedger),
	}
}

// loadCredentials reads inline JSON, then the file, then GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, cfg Config, logger *applog.Logger) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, ErrMissingCredentials
	}
}

func (c *Client) column(ctx context.Context) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(c.sheet, "A:A")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ledger sheet %s: %w", c.sheet, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRow(ctx context.Context, row int, values []interface{}) error {
	rng := a1(c.sheet, fmt.Sprintf("A%d:G%d", row, row))
	vr := &gsheet.ValueRange{Values: [][]interface{}{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// Upsert writes the row in place when the invoice number is already listed,
// otherwise below the last used row. An empty sheet gets the header first.
func (c *Client) Upsert(ctx context.Context, row ports.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.column(ctx)
	if err != nil {
		return "", err
	}

	if !hasHeader(values, ports.Header) {
		if len(values) > 0 {
			return "", fmt.Errorf("ledger sheet %s has no %q header", c.sheet, ports.Header[0])
		}
		header := make([]interface{}, len(ports.Header))
		for i, h := range ports.Header {
			header[i] = h
		}
		if err := c.writeRow(ctx, 1, header); err != nil {
			return "", err
		}
		values = [][]interface{}{header}
	}

	target := findRow(values, row.Number)
	if target == 0 {
		target = len(values) + 1
	}
	if err := c.writeRow(ctx, target, row.Values()); err != nil {
		return "", err
	}

	ref := a1(c.sheet, fmt.Sprintf("A%d:G%d", target, target))
	c.logger.InfoContext(ctx, "Ledger row written",
		applog.FieldInvoiceNumber, row.Number,
		applog.FieldVersion, row.Version,
		applog.FieldLedgerRef, ref)
	return ref, nil
}

// Delete removes the invoice's row, shifting the rows below it up.
func (c *Client) Delete(ctx context.Context, number string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.column(ctx)
	if err != nil {
		return err
	}
	row := findRow(values, number)
	if row == 0 {
		c.logger.DebugContext(ctx, "Ledger row already absent", applog.FieldInvoiceNumber, number)
		return nil
	}

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete ledger row %d: %w", row, err)
	}
	c.logger.InfoContext(ctx, "Ledger row deleted", applog.FieldInvoiceNumber, number, "row", row)
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}
