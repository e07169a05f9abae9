// Package google mirrors ledger deltas into a Google Sheets spreadsheet, one
// sheet per year named "<year> <base>".
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgerq/internal/config"
	"ledgerq/internal/core"
	"ledgerq/internal/log"
	ports "ledgerq/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.Mirror    = (*Client)(nil)
	_ ports.RowLister = (*Client)(nil)
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 60 * time.Second
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger

	attempts   uint
	retryDelay time.Duration
}

// New builds a client from configuration using service account
// credentials, inline JSON first, then the file.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	raw, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	svc, err := gsheet.NewService(ctx, goption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        logger.WithComponent(log.ComponentSheets),
		attempts:      defaultAttempts,
		retryDelay:    defaultRetryDelay,
	}
}

func credentials(cfg *config.Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.GoogleServiceAccountJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.GoogleServiceAccountFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Apply appends an added record unless its id is already mirrored, and
// blanks the row of a deleted one.
func (c *Client) Apply(ctx context.Context, d core.LedgerDelta) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.sheetBase, d.Record.Date.Year())
	ids, err := c.readIDs(ctx, sheet)
	if err != nil {
		return err
	}
	row := slices.Index(ids, d.Record.ID)

	switch d.Op {
	case core.DeltaAdded:
		if row >= 0 {
			c.logger.DebugContext(ctx, "Record already mirrored", log.FieldExpenseID, d.Record.ID)
			return nil
		}
		values := [][]any{ports.Row(d.Record)}
		if len(ids) == 0 {
			values = [][]any{ports.Header, ports.Row(d.Record)}
		}
		return c.append(ctx, sheet, values)
	case core.DeltaDeleted:
		if row < 0 {
			return nil
		}
		// sheet rows are 1-based
		return c.clear(ctx, fmt.Sprintf("%s!A%d:F%d", sheet, row+1, row+1))
	}
	return fmt.Errorf("unknown delta op %q", d.Op)
}

// IDs returns the mirrored ids of year's sheet, header excluded.
func (c *Client) IDs(ctx context.Context, year int) ([]string, error) {
	ids, err := c.readIDs(ctx, yearPrefixedName(c.sheetBase, year))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for i, id := range ids {
		if i == 0 && id == ports.Header[0] {
			continue
		}
		if id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// readIDs returns column A row by row; cleared rows come back empty.
func (c *Client) readIDs(ctx context.Context, sheet string) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	var resp *gsheet.ValueRange
	err := c.retry(ctx, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

func (c *Client) append(ctx context.Context, sheet string, values [][]any) error {
	rng := fmt.Sprintf("%s!A:F", sheet)
	vr := &gsheet.ValueRange{Values: values}
	err := c.retry(ctx, func() error {
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	c.logger.InfoContext(ctx, "Mirrored record", log.FieldOperation, log.OpMirror, "sheet", sheet, "rows", len(values))
	return nil
}

func (c *Client) clear(ctx context.Context, rng string) error {
	err := c.retry(ctx, func() error {
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Cleared mirrored record", log.FieldOperation, log.OpMirror, "range", rng)
	return nil
}

// retry repeats fn while Sheets answers 429.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.RetryIf(func(err error) bool {
			if isRateLimited(err) {
				c.logger.WarnContext(ctx, "Rate limited by Sheets, will retry", log.FieldError, err)
				return true
			}
			return false
		}),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return strconv.Itoa(year)
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
