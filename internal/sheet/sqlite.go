// ABOUTME: SQLite-backed Backend that stores tabs as ordered JSON rows
// ABOUTME: Supports the modernc (pure Go) and mattn (cgo) drivers

package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteBackend keeps a workbook in a local SQLite file.
// Row numbers are 0-based with the header at row 0.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteBackend opens (creating if needed) a workbook database at path.
// An empty driver selects the pure Go driver.
func NewSQLiteBackend(path, driver string) (*SQLiteBackend, error) {
	logger := slog.Default().With("component", "sheet.sqlite")

	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	b := &SQLiteBackend{db: db, logger: logger}
	if err := b.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite workbook initialized", "path", path, "driver", driver)
	return b, nil
}

func (b *SQLiteBackend) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tabs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL UNIQUE COLLATE NOCASE
		);

		CREATE TABLE IF NOT EXISTS tab_rows (
			tab_id INTEGER NOT NULL,
			row_num INTEGER NOT NULL,
			cells TEXT NOT NULL,
			PRIMARY KEY (tab_id, row_num),
			FOREIGN KEY (tab_id) REFERENCES tabs(id)
		);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// EnsureTab creates title with the given header row if it does not exist.
func (b *SQLiteBackend) EnsureTab(ctx context.Context, title string, headers []string) (Tab, error) {
	if id, err := b.tabID(ctx, title); err == nil {
		return Tab{ID: id, Title: title}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Tab{}, err
	}

	res, err := b.db.ExecContext(ctx, `INSERT INTO tabs (title) VALUES (?)`, title)
	if err != nil {
		return Tab{}, fmt.Errorf("creating tab %q: %w", title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Tab{}, fmt.Errorf("reading tab id: %w", err)
	}
	if len(headers) > 0 {
		if err := b.putRow(ctx, b.db, id, 0, headers); err != nil {
			return Tab{}, err
		}
	}
	b.logger.Info("tab created", "title", title)
	return Tab{ID: id, Title: title}, nil
}

func (b *SQLiteBackend) tabID(ctx context.Context, title string) (int64, error) {
	var id int64
	err := b.db.QueryRowContext(ctx, `SELECT id FROM tabs WHERE title = ?`, title).Scan(&id)
	return id, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (b *SQLiteBackend) putRow(ctx context.Context, db execer, tabID, rowNum int64, cells []string) error {
	if cells == nil {
		cells = []string{}
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO tab_rows (tab_id, row_num, cells) VALUES (?, ?, ?)
		ON CONFLICT(tab_id, row_num) DO UPDATE SET cells = excluded.cells
	`, tabID, rowNum, string(data))
	if err != nil {
		return fmt.Errorf("writing row %d: %w", rowNum, err)
	}
	return nil
}

// ListTabs implements Backend.
func (b *SQLiteBackend) ListTabs(ctx context.Context) ([]Tab, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, title FROM tabs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tabs: %w", err)
	}
	defer rows.Close()

	var tabs []Tab
	for rows.Next() {
		var t Tab
		if err := rows.Scan(&t.ID, &t.Title); err != nil {
			return nil, fmt.Errorf("scanning tab: %w", err)
		}
		tabs = append(tabs, t)
	}
	return tabs, rows.Err()
}

// GetValues implements Backend.
func (b *SQLiteBackend) GetValues(ctx context.Context, tab string, rng Range) ([][]string, error) {
	id, err := b.tabID(ctx, tab)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unable to parse range: %s", rng.A1(tab))
	}
	if err != nil {
		return nil, fmt.Errorf("looking up tab: %w", err)
	}

	start := int64(rng.StartRow - 1)
	end := int64(-1)
	if rng.EndRow > 0 {
		end = int64(rng.EndRow - 1)
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT row_num, cells FROM tab_rows
		WHERE tab_id = ? AND row_num >= ? AND (? < 0 OR row_num <= ?)
		ORDER BY row_num
	`, id, start, end, end)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	next := start
	for rows.Next() {
		var num int64
		var data string
		if err := rows.Scan(&num, &data); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for ; next < num; next++ {
			out = append(out, []string{})
		}
		var cells []string
		if err := json.Unmarshal([]byte(data), &cells); err != nil {
			return nil, fmt.Errorf("decoding row %d: %w", num, err)
		}
		out = append(out, cells)
		next = num + 1
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for len(out) > 0 && isBlank(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out, nil
}

// UpdateValues implements Backend.
func (b *SQLiteBackend) UpdateValues(ctx context.Context, tab string, rng Range, rows [][]string) error {
	id, err := b.tabID(ctx, tab)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("unable to parse range: %s", rng.A1(tab))
	}
	if err != nil {
		return fmt.Errorf("looking up tab: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		if err := b.putRow(ctx, tx, id, int64(rng.StartRow-1+i), row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendRow implements Backend.
func (b *SQLiteBackend) AppendRow(ctx context.Context, tab string, row []string) error {
	values, err := b.GetValues(ctx, tab, AllRows())
	if err != nil {
		return err
	}
	id, err := b.tabID(ctx, tab)
	if err != nil {
		return fmt.Errorf("looking up tab: %w", err)
	}
	return b.putRow(ctx, b.db, id, int64(len(values)), row)
}

// DeleteRowRange implements Backend.
func (b *SQLiteBackend) DeleteRowRange(ctx context.Context, tabID int64, start, end int64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("invalid row range [%d, %d)", start, end)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tab_rows WHERE tab_id = ? AND row_num >= ? AND row_num < ?`,
		tabID, start, end); err != nil {
		return fmt.Errorf("deleting rows: %w", err)
	}

	// Shift through negative numbers so the primary key never collides mid-update.
	if _, err := tx.ExecContext(ctx,
		`UPDATE tab_rows SET row_num = -(row_num - ?) - 1 WHERE tab_id = ? AND row_num >= ?`,
		end-start, tabID, end); err != nil {
		return fmt.Errorf("shifting rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tab_rows SET row_num = -(row_num + 1) WHERE tab_id = ? AND row_num < 0`,
		tabID); err != nil {
		return fmt.Errorf("shifting rows: %w", err)
	}

	return tx.Commit()
}
