package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/vogtb/go-spreadsheet/formula"
)

// SchemaVersion is the current database layout
const SchemaVersion = "1"

// SQLite is a SQLite-backed workbook store
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens or creates a workbook database at path
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sheets (
			position INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS cells (
			sheet TEXT NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			kind INTEGER NOT NULL,
			number REAL NOT NULL DEFAULT 0,
			text TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (sheet, row, col)
		);
		CREATE TABLE IF NOT EXISTS hidden_rows (
			sheet TEXT NOT NULL,
			row INTEGER NOT NULL,
			PRIMARY KEY (sheet, row)
		);
		CREATE TABLE IF NOT EXISTS names (
			name TEXT PRIMARY KEY,
			sheet TEXT NOT NULL,
			start_row INTEGER NOT NULL,
			start_col INTEGER NOT NULL,
			end_row INTEGER NOT NULL,
			end_col INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLite{db: db}
	version, err := s.metadata(context.Background(), "schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := s.setMetadata(context.Background(), "schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) metadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read metadata %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) setMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write metadata %s: %w", key, err)
	}
	return nil
}

// SaveWorkbook replaces the stored workbook in one transaction
func (s *SQLite) SaveWorkbook(ctx context.Context, wb *formula.Workbook) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"sheets", "cells", "hidden_rows", "names"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertCell, err := tx.PrepareContext(ctx, "INSERT INTO cells (sheet, row, col, kind, number, text) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare cells: %w", err)
	}
	defer insertCell.Close()

	for position, sheet := range wb.Worksheets() {
		if _, err = tx.ExecContext(ctx, "INSERT INTO sheets (position, name) VALUES (?, ?)", position, sheet); err != nil {
			return fmt.Errorf("save sheet %s: %w", sheet, err)
		}
		for addr, v := range wb.Cells(sheet) {
			number, text := encodeCell(v)
			if _, err = insertCell.ExecContext(ctx, sheet, addr.Row, addr.Column, int(v.Kind()), number, text); err != nil {
				return fmt.Errorf("save cell %s: %w", addr, err)
			}
		}
		for _, row := range wb.HiddenRows(sheet) {
			if _, err = tx.ExecContext(ctx, "INSERT INTO hidden_rows (sheet, row) VALUES (?, ?)", sheet, row); err != nil {
				return fmt.Errorf("save hidden row %d of %s: %w", row, sheet, err)
			}
		}
	}

	for name, addr := range wb.Names() {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO names (name, sheet, start_row, start_col, end_row, end_col) VALUES (?, ?, ?, ?, ?, ?)",
			name, addr.Sheet, addr.StartRow, addr.StartColumn, addr.EndRow, addr.EndColumn)
		if err != nil {
			return fmt.Errorf("save name %s: %w", name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// encodeCell splits a value into the number and text columns. errors
// keep their code in number and their message in text.
func encodeCell(v formula.CellValue) (float64, string) {
	switch v.Kind() {
	case formula.CellValueTypeString:
		return 0, v.Text()
	case formula.CellValueTypeError:
		return float64(v.ErrorCode()), v.Message()
	}
	return v.Number(), ""
}

func decodeCell(kind int, number float64, text string) (formula.CellValue, error) {
	switch formula.CellType(kind) {
	case formula.CellValueTypeNumber:
		return formula.NewNumber(number), nil
	case formula.CellValueTypeDate:
		return formula.NewDateSerial(number), nil
	case formula.CellValueTypeBoolean:
		return formula.NewBoolean(number != 0), nil
	case formula.CellValueTypeString:
		return formula.NewString(text), nil
	case formula.CellValueTypeError:
		return formula.NewErrorWithMessage(formula.ErrorCode(number), text), nil
	}
	return formula.CellValue{}, fmt.Errorf("unknown cell kind %d", kind)
}

// LoadWorkbook reads the stored workbook
func (s *SQLite) LoadWorkbook(ctx context.Context) (*formula.Workbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wb := formula.NewWorkbook()

	sheets, err := s.db.QueryContext(ctx, "SELECT name FROM sheets ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("load sheets: %w", err)
	}
	defer sheets.Close()
	for sheets.Next() {
		var name string
		if err := sheets.Scan(&name); err != nil {
			return nil, fmt.Errorf("load sheets: %w", err)
		}
		if err := wb.AddWorksheet(name); err != nil {
			return nil, fmt.Errorf("load sheet %s: %w", name, err)
		}
	}
	if err := sheets.Err(); err != nil {
		return nil, fmt.Errorf("load sheets: %w", err)
	}

	cells, err := s.db.QueryContext(ctx, "SELECT sheet, row, col, kind, number, text FROM cells")
	if err != nil {
		return nil, fmt.Errorf("load cells: %w", err)
	}
	defer cells.Close()
	for cells.Next() {
		var (
			addr   formula.CellAddress
			kind   int
			number float64
			text   string
		)
		if err := cells.Scan(&addr.Sheet, &addr.Row, &addr.Column, &kind, &number, &text); err != nil {
			return nil, fmt.Errorf("load cells: %w", err)
		}
		v, err := decodeCell(kind, number, text)
		if err != nil {
			return nil, fmt.Errorf("load cell %s: %w", addr, err)
		}
		if err := wb.SetValue(addr, v); err != nil {
			return nil, fmt.Errorf("load cell %s: %w", addr, err)
		}
	}
	if err := cells.Err(); err != nil {
		return nil, fmt.Errorf("load cells: %w", err)
	}

	hidden, err := s.db.QueryContext(ctx, "SELECT sheet, row FROM hidden_rows")
	if err != nil {
		return nil, fmt.Errorf("load hidden rows: %w", err)
	}
	defer hidden.Close()
	for hidden.Next() {
		var (
			sheet string
			row   int
		)
		if err := hidden.Scan(&sheet, &row); err != nil {
			return nil, fmt.Errorf("load hidden rows: %w", err)
		}
		if err := wb.HideRow(sheet, row, true); err != nil {
			return nil, fmt.Errorf("load hidden row %d of %s: %w", row, sheet, err)
		}
	}
	if err := hidden.Err(); err != nil {
		return nil, fmt.Errorf("load hidden rows: %w", err)
	}

	names, err := s.db.QueryContext(ctx, "SELECT name, sheet, start_row, start_col, end_row, end_col FROM names")
	if err != nil {
		return nil, fmt.Errorf("load names: %w", err)
	}
	defer names.Close()
	for names.Next() {
		var (
			name string
			addr formula.RangeAddress
		)
		if err := names.Scan(&name, &addr.Sheet, &addr.StartRow, &addr.StartColumn, &addr.EndRow, &addr.EndColumn); err != nil {
			return nil, fmt.Errorf("load names: %w", err)
		}
		if err := wb.DefineName(name, addr.String()); err != nil {
			return nil, fmt.Errorf("load name %s: %w", name, err)
		}
	}
	if err := names.Err(); err != nil {
		return nil, fmt.Errorf("load names: %w", err)
	}

	return wb, nil
}
