package formula

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// DataProvider gives the engine read access to cell storage. rows and
// columns are 0-based.
type DataProvider interface {
	CellAt(sheet string, row, col int) CellValue
	IsRowHidden(sheet string, row int) bool
	HasSheet(sheet string) bool
}

// NameResolver is implemented by providers that support named ranges
type NameResolver interface {
	ResolveName(name string) (RangeAddress, bool)
}

// Engine compiles and evaluates formulas. it is immutable after
// construction and safe for concurrent use.
type Engine struct {
	registry *Registry
	clock    Clock
	rng      RandomGenerator
	logger   *slog.Logger
	cache    *FormulaCache
}

// Option configures an Engine
type Option func(*Engine)

// WithRegistry sets the function registry. defaults to NewRegistry().
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithRandom(r RandomGenerator) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLogger sets the logger for evaluation diagnostics, logged at debug
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCacheSize sets how many compiled formulas the engine keeps. zero or
// less disables the cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cache = nil
		if n > 0 {
			e.cache = NewFormulaCache(n)
		}
	}
}

// NewEngine creates an engine with the built-in functions
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:  &WallClock{},
		rng:    &DefaultRandomGenerator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  NewFormulaCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }

// Cache returns the compiled formula cache, nil when disabled
func (e *Engine) Cache() *FormulaCache { return e.cache }

// Formula is a parsed formula, reusable across evaluations
type Formula struct {
	text   string
	root   ASTNode
	engine *Engine
}

// Compile parses formula text. trees are shared through the engine's
// cache, so node positions may refer to an equivalent earlier text.
func (e *Engine) Compile(text string) (*Formula, error) {
	if e.cache != nil {
		if root, ok := e.cache.Get(text); ok {
			return &Formula{text: text, root: root, engine: e}, nil
		}
	}
	root, err := Parse(text)
	if err != nil {
		e.logger.Debug("formula parse failed", slog.String("formula", text), slog.Any("error", err))
		return nil, err
	}
	if e.cache != nil {
		root = e.cache.Put(text, root)
	}
	return &Formula{text: text, root: root, engine: e}, nil
}

func (f *Formula) Text() string { return f.text }
func (f *Formula) Root() ASTNode { return f.root }

// Evaluate evaluates the formula as if it lived in cell at. the result is
// always a single value: an empty result reads as 0 and a multi-cell
// reference is #VALUE!.
func (f *Formula) Evaluate(provider DataProvider, at CellAddress) CellValue {
	ctx := &evalContext{
		engine:   f.engine,
		provider: provider,
		at:       at,
	}
	if names, ok := provider.(NameResolver); ok {
		ctx.names = names
	}

	result := f.root.Eval(ctx)
	if result.ref != nil && !result.ref.IsSingleCell() {
		return NewErrorWithMessage(ErrorCodeValue, "formula result is a range")
	}
	value := result.scalar()
	if value.IsEmpty() {
		return NewNumber(0)
	}
	return value
}

// Evaluate parses and evaluates formula text in one step. syntax errors
// are returned as error values.
func (e *Engine) Evaluate(text string, provider DataProvider, at CellAddress) CellValue {
	f, err := e.Compile(text)
	if err != nil {
		if se, ok := err.(*SpreadsheetError); ok {
			return NewErrorWithMessage(se.ErrorCode, se.Message)
		}
		return NewErrorWithMessage(ErrorCodeValue, err.Error())
	}
	return f.Evaluate(provider, at)
}

// evalContext carries the per-evaluation state through the tree walk
type evalContext struct {
	engine   *Engine
	provider DataProvider
	names    NameResolver
	at       CellAddress
}

// materialize snapshots a range from the provider
func (ctx *evalContext) materialize(addr RangeAddress) operand {
	if addr.Sheet == "" {
		addr.Sheet = ctx.at.Sheet
	}
	if !ctx.provider.HasSheet(addr.Sheet) {
		return scalarOperand(NewErrorWithMessage(ErrorCodeRef, "unknown sheet "+addr.Sheet))
	}
	addr = addr.normalized()
	rows, columns := addr.Rows(), addr.Columns()
	if rows*columns > maxRangeCells {
		return scalarOperand(NewErrorWithMessage(ErrorCodeRef, "range "+addr.String()+" is too large"))
	}

	values := make([]CellValue, 0, rows*columns)
	hidden := make([]bool, rows)
	for r := 0; r < rows; r++ {
		hidden[r] = ctx.provider.IsRowHidden(addr.Sheet, addr.StartRow+r)
		for c := 0; c < columns; c++ {
			values = append(values, ctx.provider.CellAt(addr.Sheet, addr.StartRow+r, addr.StartColumn+c))
		}
	}
	return refOperand(NewRangeView(addr.Sheet, addr.StartRow, addr.StartColumn, rows, columns, values, hidden))
}

// call binds and dispatches a function call node
func (ctx *evalContext) call(n *FunctionCallNode) operand {
	e := ctx.engine
	fn := e.registry.Get(n.Name)
	if unknown, ok := fn.(*ErrorFunction); ok {
		e.logger.Debug("unknown function", slog.String("function", n.Name), slog.String("suggestion", unknown.Suggestion()))
	}

	ops := make([]operand, len(n.Args))
	for i, arg := range n.Args {
		ops[i] = arg.Eval(ctx)
	}

	args, failed, ok := bindArguments(fn, ops, ctx.at, e.clock, e.rng)
	if !ok {
		e.logFailure(args, failed)
		return scalarOperand(failed)
	}

	if rf, isRef := fn.(ReferenceFunction); isRef {
		view, errValue := rf.EvaluateReference(args)
		if view == nil {
			e.logFailure(args, errValue)
			return scalarOperand(errValue)
		}
		return refOperand(view)
	}

	result := fn.Evaluate(args)
	e.logFailure(args, result)
	return scalarOperand(result)
}

func (e *Engine) logFailure(args *Arguments, result CellValue) {
	if args.diagnostic == "" || !result.IsError() {
		return
	}
	e.logDiagnostic(args.function, result)
}

func (e *Engine) logDiagnostic(function string, result CellValue) {
	e.logger.LogAttrs(context.Background(), slog.LevelDebug, "function failed",
		slog.String("function", function),
		slog.String("error", result.ErrorCode().String()),
		slog.String("detail", result.Message()),
	)
}
