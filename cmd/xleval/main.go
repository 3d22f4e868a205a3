// Command xleval evaluates spreadsheet formulas against a workbook loaded
// from a YAML fixture or a SQLite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/vogtb/go-spreadsheet/formula"
	"github.com/vogtb/go-spreadsheet/formula/internal/store"
)

const defaultSheet = "Sheet1"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("xleval", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dataPath = fs.String("data", "", "YAML workbook fixture to load")
		dbPath   = fs.String("db", "", "SQLite workbook database")
		save     = fs.Bool("save", false, "save the workbook to -db before exiting")
		sheet    = fs.String("sheet", "", "sheet formulas are evaluated on (default: first sheet)")
		at       = fs.String("at", "A1", "cell formulas are evaluated in")
		verbose  = fs.Bool("v", false, "log evaluation diagnostics")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if *save && *dbPath == "" {
		fmt.Fprintln(stderr, "xleval: -save requires -db")
		return 2
	}

	ctx := context.Background()
	var db *store.SQLite
	if *dbPath != "" {
		var err error
		if db, err = store.NewSQLite(*dbPath); err != nil {
			fmt.Fprintf(stderr, "xleval: %v\n", err)
			return 1
		}
		defer db.Close()
	}

	wb, err := loadWorkbook(ctx, *dataPath, db)
	if err != nil {
		fmt.Fprintf(stderr, "xleval: %v\n", err)
		return 1
	}
	logger.Debug("workbook loaded", slog.Any("sheets", wb.Worksheets()), slog.Int("names", len(wb.Names())))

	s, err := newSession(wb, formula.NewEngine(formula.WithLogger(logger)), *sheet, *at, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "xleval: %v\n", err)
		return 1
	}
	s.db = db

	switch {
	case fs.NArg() > 0:
		for _, text := range fs.Args() {
			s.eval(text)
		}
	case isTerminal(stdin):
		runREPL(s)
	default:
		runBasic(s, stdin)
	}

	if *save {
		if err := s.save(ctx); err != nil {
			fmt.Fprintf(stderr, "xleval: %v\n", err)
			return 1
		}
	}
	return 0
}

// loadWorkbook prefers the fixture, then the database, then an empty
// workbook with one sheet
func loadWorkbook(ctx context.Context, dataPath string, db *store.SQLite) (*formula.Workbook, error) {
	var (
		wb  *formula.Workbook
		err error
	)
	switch {
	case dataPath != "":
		wb, err = store.LoadYAMLFile(dataPath)
	case db != nil:
		wb, err = db.LoadWorkbook(ctx)
	default:
		wb = formula.NewWorkbook()
	}
	if err != nil {
		return nil, err
	}
	if len(wb.Worksheets()) == 0 {
		if err := wb.AddWorksheet(defaultSheet); err != nil {
			return nil, err
		}
	}
	return wb, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
