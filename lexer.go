package formula

import (
	"strings"
	"unicode"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorValue
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenSemicolon
	TokenLeftParen
	TokenRightParen
	TokenLeftBrace
	TokenRightBrace
	TokenIdentifier
	TokenWhitespace
	TokenError
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenEquals:
		return "Equals"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenBoolean:
		return "Boolean"
	case TokenErrorValue:
		return "ErrorValue"
	case TokenCell:
		return "Cell"
	case TokenRange:
		return "Range"
	case TokenFunction:
		return "Function"
	case TokenUnaryPrefixOp:
		return "UnaryPrefixOp"
	case TokenUnaryPostfixOp:
		return "UnaryPostfixOp"
	case TokenBinaryOp:
		return "BinaryOp"
	case TokenComma:
		return "Comma"
	case TokenSemicolon:
		return "Semicolon"
	case TokenLeftParen:
		return "LeftParen"
	case TokenRightParen:
		return "RightParen"
	case TokenLeftBrace:
		return "LeftBrace"
	case TokenRightBrace:
		return "RightBrace"
	case TokenIdentifier:
		return "Identifier"
	case TokenWhitespace:
		return "Whitespace"
	}
	return "Error"
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charLBrace     = '{'
	charRBrace     = '}'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charSemicolon  = ';'
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charDollar     = '$'
	charHash       = '#'
)

// values that may start an operand
var operandTokens = map[TokenType]bool{
	TokenNumber:        true,
	TokenString:        true,
	TokenBoolean:       true,
	TokenErrorValue:    true,
	TokenCell:          true,
	TokenRange:         true,
	TokenFunction:      true,
	TokenIdentifier:    true,
	TokenLeftParen:     true,
	TokenLeftBrace:     true,
	TokenUnaryPrefixOp: true,
}

func withOperands(extra ...TokenType) map[TokenType]bool {
	m := make(map[TokenType]bool, len(operandTokens)+len(extra))
	for t := range operandTokens {
		m[t] = true
	}
	for _, t := range extra {
		m[t] = true
	}
	return m
}

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart:         withOperands(TokenEquals),
	StateAfterEquals:   withOperands(),
	StateAfterOperator: withOperands(),
	StateAfterValue: { // after number, string, cell, range, closing brace
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true,
		TokenRightBrace:     true,
		TokenComma:          true, // function argument or array column
		TokenSemicolon:      true, // array row
		TokenEOF:            true,
		// whitespace is significant - no consecutive values
	},
	// empty arguments: F(,1) and F(1,)
	StateAfterLeftParen: withOperands(TokenRightParen, TokenComma),
	StateAfterComma:     withOperands(TokenRightParen, TokenComma),
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true, // if nested
		TokenComma:          true, // if in function
		TokenRightBrace:     true,
		TokenSemicolon:      true,
		TokenEOF:            true,
	},
	StateAfterFunction: {
		TokenLeftParen: true,
	},
	StateAfterLeftBrace: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenErrorValue:    true,
		TokenUnaryPrefixOp: true,
	},
}

// Token represents a lexical token with position information. positions
// are rune offsets into the input, End is exclusive.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterFunction
	StateAfterLeftBrace
)

// Lexer tokenizes spreadsheet formula expressions
type Lexer struct {
	input      string
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	braceDepth int
	tokens     []Token
	error      string
	context    *LexerContext
}

// LexerContext defines the context for lexing
type LexerContext struct {
	InitialState   TokenState
	ExpectedTokens map[TokenType]bool
	AllowEOF       bool

	// Lenient skips transition and balance validation, so incomplete
	// formulas still tokenize. used for cursor hints.
	Lenient bool
}

// NewLexer creates a new lexer for a full formula, which must start with
// '='
func NewLexer(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState: StateStart,
	})
}

// NewLexerWithContext creates a new lexer with specific context
func NewLexerWithContext(input string, context *LexerContext) *Lexer {
	return &Lexer{
		input:   input,
		runes:   []rune(input), // runes for UTF-8 support. could do without but a real pain
		state:   context.InitialState,
		tokens:  []Token{},
		context: context,
	}
}

// NewLexerForReference creates a lexer specifically for parsing cell
// references or ranges
func NewLexerForReference(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState: StateStart,
		ExpectedTokens: map[TokenType]bool{
			TokenCell:  true,
			TokenRange: true,
		},
		AllowEOF: true,
	})
}

func newLenientLexer(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState: StateStart,
		AllowEOF:     true,
		Lenient:      true,
	})
}

// Tokenize tokenizes the entire input and returns tokens and any error
func (l *Lexer) Tokenize() ([]Token, []string) {
	// full formula lexers must see the = prefix, specialized ones never do
	if l.context.ExpectedTokens == nil && (len(l.runes) == 0 || l.runes[0] != charEqual) {
		l.error = "formula must start with '='"
		return nil, []string{l.error}
	}

	for l.pos < len(l.runes) {
		tok := l.nextToken()
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenError {
			l.error = tok.Value
			return nil, []string{l.error}
		}
		if tok.Type != TokenWhitespace {
			if !l.validateTransition(tok.Type) {
				l.error = "unexpected token: " + tok.Value
				return nil, []string{l.error}
			}
			l.tokens = append(l.tokens, tok)
			l.updateState(tok.Type)
		}
	}

	if !l.context.Lenient {
		switch {
		case l.parenDepth > 0:
			l.error = "unbalanced parentheses: missing closing parenthesis"
		case l.braceDepth > 0:
			l.error = "unbalanced braces: missing closing brace"
		case !l.context.AllowEOF && !l.validateTransition(TokenEOF):
			l.error = "unexpected end of formula"
		}
		if l.error != "" {
			return nil, []string{l.error}
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: len(l.runes), End: len(l.runes)})
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	// specialized lexers accept exactly their expected tokens
	if len(l.context.ExpectedTokens) > 0 {
		return l.context.ExpectedTokens[tokenType]
	}
	if l.context.Lenient {
		return true
	}
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenErrorValue, TokenCell, TokenRange, TokenIdentifier, TokenRightBrace:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators don't change state
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma, TokenSemicolon:
		if l.braceDepth > 0 {
			l.state = StateAfterLeftBrace
		} else {
			l.state = StateAfterComma
		}
	case TokenLeftBrace:
		l.state = StateAfterLeftBrace
	case TokenFunction:
		l.state = StateAfterFunction
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos, End: l.pos}
	}

	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}

	if ch == charApostrophe {
		return l.scanQuotedWorksheetRef()
	}

	if ch == charHash {
		return l.scanErrorValue()
	}

	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return l.token(TokenLeftParen, "(", startPos)
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 && !l.context.Lenient {
			return l.token(TokenError, "unexpected closing parenthesis", startPos)
		}
		return l.token(TokenRightParen, ")", startPos)
	case charLBrace:
		l.pos++
		l.braceDepth++
		return l.token(TokenLeftBrace, "{", startPos)
	case charRBrace:
		l.pos++
		l.braceDepth--
		if l.braceDepth < 0 && !l.context.Lenient {
			return l.token(TokenError, "unexpected closing brace", startPos)
		}
		return l.token(TokenRightBrace, "}", startPos)
	case charComma:
		l.pos++
		return l.token(TokenComma, ",", startPos)
	case charSemicolon:
		l.pos++
		return l.token(TokenSemicolon, ";", startPos)
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp()
	case charAsterisk, charSlash, charCaret, charAmpersand, charLess, charGreater, charExclaim:
		return l.scanBinaryOp()
	case charPercent:
		l.pos++
		return l.token(TokenUnaryPostfixOp, "%", startPos)
	case charEqual:
		l.pos++
		// the first character is the formula prefix, any other = compares
		if startPos == 0 && l.context.ExpectedTokens == nil {
			return l.token(TokenEquals, "=", startPos)
		}
		return l.token(TokenBinaryOp, "=", startPos)
	}

	if l.isNameStart(ch) || ch == charDollar {
		return l.scanIdentifierOrCell()
	}

	l.pos++
	return l.token(TokenError, "unexpected character: "+string(ch), startPos)
}

func (l *Lexer) token(t TokenType, value string, start int) Token {
	return Token{Type: t, Value: value, Pos: start, End: l.pos}
}

// helper methods for character navigation and classification

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isNameStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == charUnderscore
}

// isNamePart accepts the characters of names, functions (STDEV.S, LOG10)
// and absolute references ($A$1)
func (l *Lexer) isNamePart(ch rune) bool {
	return unicode.IsLetter(ch) || l.isDigit(ch) || ch == charUnderscore || ch == charPeriod || ch == charDollar
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod {
		l.pos++
		for l.isDigit(l.current()) {
			l.pos++
		}
	}

	// scientific notation, only when digits follow the e
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !l.isDigit(l.current()) {
			l.pos = savedPos
		} else {
			for l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return l.token(TokenNumber, l.substring(startPos, l.pos), startPos)
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			return l.token(TokenString, string(result), startPos)
		}
		result = append(result, ch)
		l.pos++
	}

	if l.context.Lenient {
		return l.token(TokenString, string(result), startPos)
	}
	return l.token(TokenError, "unclosed string literal", startPos)
}

// scanErrorValue scans error literals such as #N/A or #DIV/0!
func (l *Lexer) scanErrorValue() Token {
	startPos := l.pos
	rest := strings.ToUpper(l.substring(l.pos, min(l.pos+8, len(l.runes))))
	best := ""
	for _, text := range ErrorMapper {
		if strings.HasPrefix(rest, text) && len(text) > len(best) {
			best = text
		}
	}
	if best == "" {
		l.pos++
		return l.token(TokenError, "unknown error literal", startPos)
	}
	l.pos += len([]rune(best))
	return l.token(TokenErrorValue, best, startPos)
}

// scanRun consumes name characters and returns them
func (l *Lexer) scanRun() string {
	start := l.pos
	for l.pos < len(l.runes) && l.isNamePart(l.current()) {
		l.pos++
	}
	return l.substring(start, l.pos)
}

// scanIdentifierOrCell scans identifiers, functions, cells, ranges, and
// booleans
func (l *Lexer) scanIdentifierOrCell() Token {
	startPos := l.pos
	value := l.scanRun()
	upperValue := strings.ToUpper(value)
	absolute := strings.ContainsRune(value, charDollar)

	// worksheet reference (identifier followed by !)
	if l.current() == charExclaim && l.peek(1) != charEqual && !absolute {
		return l.scanCellOrRange(startPos)
	}

	// a name directly followed by ( is a function call, even TRUE() or LOG10()
	if l.current() == charLParen && !absolute {
		return l.token(TokenFunction, upperValue, startPos)
	}

	if upperValue == "TRUE" || upperValue == "FALSE" {
		return l.token(TokenBoolean, upperValue, startPos)
	}

	if isCellReference(value) {
		return l.scanRangeTail(startPos, value)
	}

	if absolute {
		return l.token(TokenError, "invalid cell reference: "+value, startPos)
	}

	// possibly a named range
	return l.token(TokenIdentifier, value, startPos)
}

// scanRangeTail extends a scanned cell to a range when ':' and a second
// cell follow
func (l *Lexer) scanRangeTail(startPos int, first string) Token {
	if l.current() != charColon {
		return l.token(TokenCell, l.substring(startPos, l.pos), startPos)
	}
	savedPos := l.pos
	l.pos++ // consume ':'
	second := l.scanRun()
	if !isCellReference(second) {
		l.pos = savedPos
		return l.token(TokenCell, l.substring(startPos, l.pos), startPos)
	}
	return l.token(TokenRange, l.substring(startPos, l.pos), startPos)
}

// scanCellOrRange scans "!A1" or "!A1:B2" after a sheet name
func (l *Lexer) scanCellOrRange(startPos int) Token {
	if l.current() != charExclaim {
		return l.token(TokenError, "expected ! after worksheet name", startPos)
	}
	l.pos++ // consume !

	cellRef := l.scanRun()
	if !isCellReference(cellRef) {
		return l.token(TokenError, "invalid cell reference after worksheet", startPos)
	}
	return l.scanRangeTail(startPos, cellRef)
}

// scanQuotedWorksheetRef scans 'Sheet Name'!A1. a doubled apostrophe
// inside the name stands for one.
func (l *Lexer) scanQuotedWorksheetRef() Token {
	startPos := l.pos
	l.pos++ // consume opening single quote

	for {
		if l.pos >= len(l.runes) {
			return l.token(TokenError, "unclosed worksheet name", startPos)
		}
		if l.current() == charApostrophe {
			if l.peek(1) == charApostrophe {
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		l.pos++
	}

	if l.current() != charExclaim {
		return l.token(TokenError, "not a worksheet reference", startPos)
	}
	return l.scanCellOrRange(startPos)
}

// isCellReference checks for A1 style references with optional $ markers
// on either part (A1, $B$12, AB$3)
func isCellReference(s string) bool {
	i := 0
	if i < len(s) && s[i] == charDollar {
		i++
	}
	letters := 0
	for i < len(s) && (s[i] >= 'A' && s[i] <= 'Z' || s[i] >= 'a' && s[i] <= 'z') {
		i++
		letters++
	}
	if letters == 0 || letters > 3 {
		return false
	}
	if i < len(s) && s[i] == charDollar {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	return digits > 0 && i == len(s)
}

// scanUnaryPrefixOrBinaryOp scans + and - which can be either unary
// prefix or binary
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return l.token(TokenUnaryPrefixOp, string(ch), startPos)
	}
	return l.token(TokenBinaryOp, string(ch), startPos)
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	switch ch {
	case charLess:
		switch l.current() {
		case charEqual:
			l.pos++
			return l.token(TokenBinaryOp, "<=", startPos)
		case charGreater:
			l.pos++
			return l.token(TokenBinaryOp, "<>", startPos)
		}
		return l.token(TokenBinaryOp, "<", startPos)
	case charGreater:
		if l.current() == charEqual {
			l.pos++
			return l.token(TokenBinaryOp, ">=", startPos)
		}
		return l.token(TokenBinaryOp, ">", startPos)
	case charExclaim:
		if l.current() == charEqual {
			l.pos++
			return l.token(TokenBinaryOp, "!=", startPos)
		}
		return l.token(TokenError, "unexpected '!'", startPos)
	case charAsterisk, charSlash, charCaret, charAmpersand:
		return l.token(TokenBinaryOp, string(ch), startPos)
	}

	return l.token(TokenError, "unknown operator", startPos)
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	switch l.state {
	case StateStart, StateAfterEquals, StateAfterOperator, StateAfterLeftParen, StateAfterComma, StateAfterLeftBrace:
		return true
	default:
		return false
	}
}
