// Package store persists formula workbooks.
package store

import (
	"context"

	"github.com/vogtb/go-spreadsheet/formula"
)

// Store saves and restores whole workbooks
type Store interface {
	// SaveWorkbook replaces the stored workbook with wb
	SaveWorkbook(ctx context.Context, wb *formula.Workbook) error
	// LoadWorkbook reads the stored workbook. an empty store yields an
	// empty workbook.
	LoadWorkbook(ctx context.Context) (*formula.Workbook, error)
	// Close releases resources
	Close() error
}
