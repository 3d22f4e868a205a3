package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/vogtb/go-spreadsheet/formula"
	"github.com/vogtb/go-spreadsheet/formula/internal/store"
)

const (
	historyFile = ".xleval_history"
	prompt      = "xl> "
)

const helpText = `formulas are evaluated in the current cell; the leading '=' is optional.

commands:
  :set <cell> <value>    store a value, or the result of a formula starting with '='
  :clear <cell>          remove a cell
  :hide <row> / :show <row>
                         hide or show a 1-based row of the current sheet
  :name <name> <range>   define a named range
  :sheet [name]          show or switch the current sheet, adding it if missing
  :at <cell>             move the current cell
  :hint <formula>        describe the argument at the end of a partial formula
  :refs <formula>        list the cells, ranges and names a formula reads
  :functions [prefix]    list functions
  :save                  save the workbook to the -db database
  :quit                  exit
`

// session is the state shared by one-shot, piped and interactive use
type session struct {
	wb     *formula.Workbook
	engine *formula.Engine
	db     *store.SQLite
	at     formula.CellAddress
	out    io.Writer
}

func newSession(wb *formula.Workbook, engine *formula.Engine, sheet, at string, out io.Writer) (*session, error) {
	s := &session{wb: wb, engine: engine, out: out}
	if sheet == "" {
		sheet = wb.Worksheets()[0]
	}
	if _, ok := wb.Worksheet(sheet); !ok {
		return nil, fmt.Errorf("unknown sheet %q", sheet)
	}
	s.at.Sheet = sheet
	if err := s.moveTo(at); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) moveTo(ref string) error {
	addr, err := formula.ParseReference(ref)
	if err != nil || addr.Rows() != 1 || addr.Columns() != 1 {
		return fmt.Errorf("%q is not a cell", ref)
	}
	s.at.Row, s.at.Column = addr.StartRow, addr.StartColumn
	return nil
}

// cell resolves a reference typed at the prompt against the current sheet
func (s *session) cell(ref string) (formula.CellAddress, error) {
	addr, err := formula.ParseReference(ref)
	if err != nil || addr.Rows() != 1 || addr.Columns() != 1 {
		return formula.CellAddress{}, fmt.Errorf("%q is not a cell", ref)
	}
	if addr.Sheet == "" {
		addr.Sheet = s.at.Sheet
	}
	return formula.CellAddress{Sheet: addr.Sheet, Row: addr.StartRow, Column: addr.StartColumn}, nil
}

func (s *session) evaluate(text string) formula.CellValue {
	if !strings.HasPrefix(text, "=") {
		text = "=" + text
	}
	return s.engine.Evaluate(text, s.wb, s.at)
}

func (s *session) eval(text string) {
	fmt.Fprintln(s.out, display(s.evaluate(strings.TrimSpace(text))))
}

func display(v formula.CellValue) string {
	if v.IsError() && v.Message() != "" && v.Message() != v.String() {
		return v.String() + " (" + v.Message() + ")"
	}
	return v.String()
}

// entry interprets typed cell input the way a spreadsheet does
func (s *session) entry(text string) formula.CellValue {
	switch {
	case strings.HasPrefix(text, "="):
		return s.evaluate(text)
	case strings.EqualFold(text, "TRUE"):
		return formula.NewBoolean(true)
	case strings.EqualFold(text, "FALSE"):
		return formula.NewBoolean(false)
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return formula.NewNumber(n)
	}
	if code, ok := formula.ParseErrorCode(text); ok {
		return formula.NewError(code)
	}
	return formula.NewString(strings.Trim(text, `"`))
}

func (s *session) save(ctx context.Context) error {
	if s.db == nil {
		return errors.New("no database, start with -db")
	}
	return s.db.SaveWorkbook(ctx, s.wb)
}

// command runs one ':' command and reports whether the session should end
func (s *session) command(line string) (exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	var err error
	switch strings.ToLower(fields[0]) {
	case ":help":
		fmt.Fprint(s.out, helpText)

	case ":quit", ":exit":
		return true

	case ":set":
		if len(fields) < 3 {
			fmt.Fprintln(s.out, "usage: :set <cell> <value>")
			return false
		}
		var addr formula.CellAddress
		if addr, err = s.cell(fields[1]); err == nil {
			value := s.entry(strings.TrimSpace(strings.TrimPrefix(rest, fields[1])))
			if err = s.wb.SetValue(addr, value); err == nil {
				fmt.Fprintf(s.out, "%s = %s\n", addr, display(value))
			}
		}

	case ":clear":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: :clear <cell>")
			return false
		}
		var addr formula.CellAddress
		if addr, err = s.cell(fields[1]); err == nil {
			err = s.wb.SetValue(addr, formula.EmptyValue())
		}

	case ":hide", ":show":
		var row int
		if len(fields) != 2 {
			fmt.Fprintf(s.out, "usage: %s <row>\n", fields[0])
			return false
		}
		if row, err = strconv.Atoi(fields[1]); err == nil {
			err = s.wb.HideRow(s.at.Sheet, row-1, strings.EqualFold(fields[0], ":hide"))
		}

	case ":name":
		if len(fields) != 3 {
			fmt.Fprintln(s.out, "usage: :name <name> <range>")
			return false
		}
		ref := fields[2]
		// unqualified ranges belong to the current sheet
		if addr, perr := formula.ParseReference(ref); perr == nil && addr.Sheet == "" {
			addr.Sheet = s.at.Sheet
			ref = addr.String()
		}
		err = s.wb.DefineName(fields[1], ref)

	case ":sheet":
		if rest == "" {
			fmt.Fprintf(s.out, "%s (of %s)\n", s.at.Sheet, strings.Join(s.wb.Worksheets(), ", "))
			return false
		}
		if _, ok := s.wb.Worksheet(rest); !ok {
			err = s.wb.AddWorksheet(rest)
		}
		if err == nil {
			ws, _ := s.wb.Worksheet(rest)
			s.at.Sheet = ws.Name()
		}

	case ":at":
		if rest == "" {
			fmt.Fprintln(s.out, s.at)
			return false
		}
		err = s.moveTo(rest)

	case ":hint":
		s.hint(rest)

	case ":refs":
		err = s.refs(rest)

	case ":functions":
		for _, name := range s.engine.Registry().FunctionsForPrefix(rest) {
			fmt.Fprintln(s.out, name)
		}

	case ":save":
		if err = s.save(context.Background()); err == nil {
			fmt.Fprintln(s.out, "saved")
		}

	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for help.")
	}

	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

// hint prints the signature of the call around the end of text with the
// current argument in angle brackets
func (s *session) hint(text string) {
	h, ok := s.engine.Registry().HintAt(text, len([]rune(text)))
	if !ok {
		fmt.Fprintln(s.out, "no function call here")
		return
	}
	params := h.Function.Parameters()
	current := min(h.ArgumentIndex, len(params)-1)

	names := make([]string, len(params))
	for i, p := range params {
		name := p.Name
		if p.Arity == formula.AritySequence {
			name += ", ..."
		}
		if !p.Required {
			name = "[" + name + "]"
		}
		if i == current {
			name = "<" + name + ">"
		}
		names[i] = name
	}
	fmt.Fprintf(s.out, "%s(%s)\n", h.Function.Name(), strings.Join(names, ", "))
}

// refs prints the precedents of a formula evaluated in the current cell
func (s *session) refs(text string) error {
	if !strings.HasPrefix(text, "=") {
		text = "=" + text
	}
	f, err := s.engine.Compile(text)
	if err != nil {
		return err
	}
	p := f.Precedents(s.at)

	var parts []string
	for _, c := range p.Cells {
		parts = append(parts, c.String())
	}
	for _, r := range p.Ranges {
		parts = append(parts, r.String())
	}
	parts = append(parts, p.Names...)
	if len(parts) == 0 {
		parts = append(parts, "no references")
	}
	if p.Volatile {
		parts = append(parts, "(volatile)")
	}
	fmt.Fprintln(s.out, strings.Join(parts, " "))
	return nil
}

// handle runs one line of input and reports whether the session should end
func (s *session) handle(line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, ":"):
		return s.command(line)
	}
	s.eval(line)
	return false
}

// runBasic reads lines from piped input without prompting
func runBasic(s *session, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if s.handle(scanner.Text()) {
			return
		}
	}
}

// runREPL is the interactive loop with history and function completion
func runREPL(s *session) {
	fmt.Fprintln(s.out, "xleval (Ctrl+D to exit, :help for commands)")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetWordCompleter(s.complete)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			break
		}
		if err != nil {
			// Ctrl+C drops the current line
			continue
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if s.handle(line) {
			break
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
}

// complete offers function names for the identifier under the cursor
func (s *session) complete(line string, pos int) (head string, completions []string, tail string) {
	runes := []rune(line)
	pos = min(pos, len(runes))
	start := pos
	for start > 0 && isNameRune(runes[start-1]) {
		start--
	}
	prefix := string(runes[start:pos])
	if prefix == "" {
		return line, nil, ""
	}
	for _, name := range s.engine.Registry().FunctionsForPrefix(prefix) {
		completions = append(completions, name+"(")
	}
	return string(runes[:start]), completions, string(runes[pos:])
}

func isNameRune(r rune) bool {
	return r == '.' || r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
}
