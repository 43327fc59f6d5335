package dataprocessing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apperrors "revforecast/internal/errors"
)

// SheetsContainer reads the tables of a Google spreadsheet
type SheetsContainer struct {
	srv           *sheets.Service
	spreadsheetID string
}

// NewSheetsContainer connects with read-only scope. credentialsFile may be
// empty when opts already carry credentials.
func NewSheetsContainer(ctx context.Context, spreadsheetID, credentialsFile string, opts ...option.ClientOption) (*SheetsContainer, error) {
	if spreadsheetID == "" {
		return nil, apperrors.NewSourceError("spreadsheet ID is required", nil)
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, apperrors.NewSourceError("failed to create sheets client", err)
	}
	return &SheetsContainer{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func (c *SheetsContainer) SheetNames(ctx context.Context) ([]string, error) {
	resp, err := c.srv.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewSourceError("failed to list sheets", err).
			WithContext("spreadsheet_id", c.spreadsheetID)
	}

	names := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			names = append(names, s.Properties.Title)
		}
	}
	return names, nil
}

// Rows fetches unformatted values, so numbers arrive as numbers rather than
// their display text.
func (c *SheetsContainer) Rows(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, sheetRange(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewSourceError("failed to read sheet", err).
			WithContext("spreadsheet_id", c.spreadsheetID).
			WithContext("sheet", sheet)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellText(v)
		}
		rows[i] = cells
	}
	return rows, nil
}

func (c *SheetsContainer) Close() error {
	return nil
}

// sheetRange quotes a sheet title as an A1 range covering the whole sheet
func sheetRange(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strings.ToUpper(strconv.FormatBool(t))
	default:
		return fmt.Sprint(t)
	}
}
