// ABOUTME: Backend interface for the spreadsheet system of record and its error taxonomy
// ABOUTME: Defines Tab, Range, TabNotFoundError and RemoteError

package sheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTabNotFound is returned when no candidate tab exists for a table.
	ErrTabNotFound = errors.New("tab not found")

	// ErrHeaderMissing is returned when a tab has no header row.
	ErrHeaderMissing = errors.New("header row missing")

	// ErrRemoteTimeout is returned when a backend call exceeds its deadline.
	ErrRemoteTimeout = errors.New("remote call timed out")

	// ErrRemoteFailure is returned when a backend call fails for any other reason.
	ErrRemoteFailure = errors.New("remote call failed")
)

// LastColumn bounds every row range. Tabs wider than this are truncated.
const LastColumn = "ZZ"

// Tab is one physical sheet in the backing document.
type Tab struct {
	ID    int64
	Title string
}

// Provisioner is implemented by backends that can create tabs.
type Provisioner interface {
	EnsureTab(ctx context.Context, title string, headers []string) (Tab, error)
}

// Range selects whole rows of a tab by 1-based sheet row number.
// EndRow 0 leaves the range open to the bottom of the tab.
type Range struct {
	StartRow int
	EndRow   int
}

// AllRows selects the header and every data row.
func AllRows() Range {
	return Range{StartRow: 1}
}

// Row selects exactly one sheet row.
func Row(n int) Range {
	return Range{StartRow: n, EndRow: n}
}

// A1 renders the range in A1 notation, quoting the tab title.
func (r Range) A1(tab string) string {
	start := r.StartRow
	if start < 1 {
		start = 1
	}
	if r.EndRow > 0 {
		return fmt.Sprintf("%s!A%d:%s%d", QuoteTitle(tab), start, LastColumn, r.EndRow)
	}
	if start == 1 {
		return fmt.Sprintf("%s!A1:%s", QuoteTitle(tab), LastColumn)
	}
	return fmt.Sprintf("%s!A%d:%s", QuoteTitle(tab), start, LastColumn)
}

// Contains reports whether the 1-based sheet row n falls inside the range.
func (r Range) Contains(n int) bool {
	if n < r.StartRow {
		return false
	}
	return r.EndRow == 0 || n <= r.EndRow
}

// QuoteTitle quotes a tab title for use in A1 notation.
func QuoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// Backend is the remote spreadsheet document.
type Backend interface {
	// ListTabs returns the live tab list in document order.
	ListTabs(ctx context.Context) ([]Tab, error)

	// GetValues returns the cells in the range. Trailing empty rows and
	// cells may be omitted.
	GetValues(ctx context.Context, tab string, rng Range) ([][]string, error)

	// UpdateValues overwrites rows starting at rng.StartRow.
	UpdateValues(ctx context.Context, tab string, rng Range, rows [][]string) error

	// AppendRow writes row after the last non-empty row of the tab.
	AppendRow(ctx context.Context, tab string, row []string) error

	// DeleteRowRange structurally removes rows [start, end) (0-based, header
	// is 0) and shifts later rows up.
	DeleteRowRange(ctx context.Context, tabID int64, start, end int64) error
}

// TabNotFoundError lists the candidates that were tried.
type TabNotFoundError struct {
	Table      string
	Candidates []string
}

func (e *TabNotFoundError) Error() string {
	return fmt.Sprintf("tab not found for table %q (tried %s)", e.Table, strings.Join(e.Candidates, ", "))
}

func (e *TabNotFoundError) Unwrap() error {
	return ErrTabNotFound
}

// RemoteError wraps a failed backend call.
type RemoteError struct {
	Op      string
	Tab     string
	Timeout bool
	Err     error
}

func (e *RemoteError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	if e.Tab != "" {
		return fmt.Sprintf("%s %q %s: %v", e.Op, e.Tab, kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, kind, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	if e.Timeout {
		return []error{ErrRemoteTimeout, e.Err}
	}
	return []error{ErrRemoteFailure, e.Err}
}

// IsRemote reports whether err came from the backend.
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemoteTimeout) || errors.Is(err, ErrRemoteFailure)
}
