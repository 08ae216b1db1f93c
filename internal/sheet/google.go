// ABOUTME: Google Sheets implementation of Backend over the Sheets v4 REST API
// ABOUTME: Uses service account credentials and RAW value input

package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleBackend talks to one spreadsheet document.
type GoogleBackend struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewGoogleBackend creates a backend for spreadsheetID. An empty
// credentialsFile falls back to application default credentials.
func NewGoogleBackend(ctx context.Context, spreadsheetID, credentialsFile string) (*GoogleBackend, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	return &GoogleBackend{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        slog.Default().With("component", "sheet.google"),
	}, nil
}

// ListTabs implements Backend.
func (g *GoogleBackend) ListTabs(ctx context.Context) ([]Tab, error) {
	doc, err := g.svc.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	tabs := make([]Tab, 0, len(doc.Sheets))
	for _, s := range doc.Sheets {
		if s.Properties == nil {
			continue
		}
		tabs = append(tabs, Tab{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return tabs, nil
}

// GetValues implements Backend.
func (g *GoogleBackend) GetValues(ctx context.Context, tab string, rng Range) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng.A1(tab)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out, nil
}

// UpdateValues implements Backend.
func (g *GoogleBackend) UpdateValues(ctx context.Context, tab string, rng Range, rows [][]string) error {
	end := rng.EndRow
	if end == 0 {
		end = rng.StartRow + len(rows) - 1
	}
	target := Range{StartRow: rng.StartRow, EndRow: end}

	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, target.A1(tab), &sheets.ValueRange{
		Values: toInterfaces(rows),
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// AppendRow implements Backend.
func (g *GoogleBackend) AppendRow(ctx context.Context, tab string, row []string) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, AllRows().A1(tab), &sheets.ValueRange{
		Values: toInterfaces([][]string{row}),
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

// DeleteRowRange implements Backend.
func (g *GoogleBackend) DeleteRowRange(ctx context.Context, tabID int64, start, end int64) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    tabID,
					Dimension:  "ROWS",
					StartIndex: start,
					EndIndex:   end,
					// StartIndex 0 is a legal value the JSON encoder would drop.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
	if err == nil {
		g.logger.Debug("rows deleted", "sheet_id", tabID, "start", start, "end", end)
	}
	return err
}

// EnsureTab adds a sheet named title and writes its header row, unless a
// sheet with that title already exists.
func (g *GoogleBackend) EnsureTab(ctx context.Context, title string, headers []string) (Tab, error) {
	tabs, err := g.ListTabs(ctx)
	if err != nil {
		return Tab{}, err
	}
	for _, t := range tabs {
		if strings.EqualFold(t.Title, title) {
			return t, nil
		}
	}

	resp, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return Tab{}, fmt.Errorf("adding sheet %q: %w", title, err)
	}

	tab := Tab{Title: title}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		tab.ID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	if len(headers) > 0 {
		if err := g.UpdateValues(ctx, title, Row(1), [][]string{headers}); err != nil {
			return Tab{}, fmt.Errorf("writing headers of %q: %w", title, err)
		}
	}
	g.logger.Info("sheet added", "title", title, "sheet_id", tab.ID)
	return tab, nil
}

func toInterfaces(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		out[i] = cells
	}
	return out
}
