package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is a positioned syntax tree node. positions are rune offsets
// into the formula text; evaluation walks the tree depth-first.
type ASTNode interface {
	Eval(ctx *evalContext) operand
	GetPosition() NodePosition
	ToString() string
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int

	// lenient turns missing operands into EmptyArgNodes instead of errors
	lenient bool
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(*evalContext) operand {
	return scalarOperand(NewString(n.Value))
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	return `"` + strings.ReplaceAll(n.Value, `"`, `""`) + `"`
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(*evalContext) operand {
	return scalarOperand(NewNumber(n.Value))
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return formatGeneral(n.Value)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(*evalContext) operand {
	return scalarOperand(NewBoolean(n.Value))
}

func (n *BooleanNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// ErrorNode represents an error literal such as #N/A
type ErrorNode struct {
	Code     ErrorCode
	Position NodePosition
}

func (n *ErrorNode) Eval(*evalContext) operand {
	return scalarOperand(NewError(n.Code))
}

func (n *ErrorNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ErrorNode) ToString() string {
	return n.Code.String()
}

// EmptyArgNode is an omitted argument, as in IF(A1,,1)
type EmptyArgNode struct {
	Position NodePosition
}

func (n *EmptyArgNode) Eval(*evalContext) operand {
	return operand{missing: true}
}

func (n *EmptyArgNode) GetPosition() NodePosition {
	return n.Position
}

func (n *EmptyArgNode) ToString() string {
	return ""
}

// CellRefNode represents a reference to one cell. coordinates are
// absolute and 0-based; an empty Sheet means the formula's own sheet.
type CellRefNode struct {
	Sheet     string
	Row       int
	Column    int
	AbsRow    bool
	AbsColumn bool
	Position  NodePosition
}

func (n *CellRefNode) Eval(ctx *evalContext) operand {
	return ctx.materialize(RangeAddress{
		Sheet:       n.Sheet,
		StartRow:    n.Row,
		StartColumn: n.Column,
		EndRow:      n.Row,
		EndColumn:   n.Column,
	})
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return sheetPrefix(n.Sheet) + cellText(n.Row, n.Column, n.AbsRow, n.AbsColumn)
}

// RangeNode represents a rectangular range of cells
type RangeNode struct {
	Sheet    string
	Start    CellRefNode
	End      CellRefNode
	Position NodePosition
}

// Address returns the normalized address of the range
func (n *RangeNode) Address() RangeAddress {
	return RangeAddress{
		Sheet:       n.Sheet,
		StartRow:    n.Start.Row,
		StartColumn: n.Start.Column,
		EndRow:      n.End.Row,
		EndColumn:   n.End.Column,
	}.normalized()
}

func (n *RangeNode) Eval(ctx *evalContext) operand {
	return ctx.materialize(n.Address())
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) ToString() string {
	return sheetPrefix(n.Sheet) +
		cellText(n.Start.Row, n.Start.Column, n.Start.AbsRow, n.Start.AbsColumn) + ":" +
		cellText(n.End.Row, n.End.Column, n.End.AbsRow, n.End.AbsColumn)
}

// NamedRangeNode represents a named range reference
type NamedRangeNode struct {
	Name     string
	Position NodePosition
}

func (n *NamedRangeNode) Eval(ctx *evalContext) operand {
	if ctx.names == nil {
		return scalarOperand(NewErrorWithMessage(ErrorCodeName, fmt.Sprintf("named range '%s' not found", n.Name)))
	}
	addr, ok := ctx.names.ResolveName(n.Name)
	if !ok {
		return scalarOperand(NewErrorWithMessage(ErrorCodeName, fmt.Sprintf("named range '%s' not found", n.Name)))
	}
	return ctx.materialize(addr)
}

func (n *NamedRangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NamedRangeNode) ToString() string {
	return n.Name
}

// ArrayNode represents an array constant such as {1,2;3,4}
type ArrayNode struct {
	Rows     [][]ASTNode
	Position NodePosition
}

func (n *ArrayNode) Eval(ctx *evalContext) operand {
	rows := make([][]CellValue, len(n.Rows))
	for i, row := range n.Rows {
		rows[i] = make([]CellValue, len(row))
		for j, element := range row {
			rows[i][j] = element.Eval(ctx).scalar()
		}
	}
	return refOperand(ArrayView(rows))
}

func (n *ArrayNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ArrayNode) ToString() string {
	rows := make([]string, len(n.Rows))
	for i, row := range n.Rows {
		elements := make([]string, len(row))
		for j, element := range row {
			elements[j] = element.ToString()
		}
		rows[i] = strings.Join(elements, ",")
	}
	return "{" + strings.Join(rows, ";") + "}"
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ctx *evalContext) operand {
	left := n.Left.Eval(ctx).scalar()
	right := n.Right.Eval(ctx).scalar()

	// propagate errors, left first
	if left.IsError() {
		return scalarOperand(left)
	}
	if right.IsError() {
		return scalarOperand(right)
	}

	switch n.Op {
	case BinOpConcat:
		l, _ := left.TryCoerceToString()
		r, _ := right.TryCoerceToString()
		return scalarOperand(NewString(l + r))
	case BinOpEqual:
		return scalarOperand(NewBoolean(left.Compare(right) == 0))
	case BinOpNotEqual:
		return scalarOperand(NewBoolean(left.Compare(right) != 0))
	case BinOpLess:
		return scalarOperand(NewBoolean(left.Compare(right) < 0))
	case BinOpLessEqual:
		return scalarOperand(NewBoolean(left.Compare(right) <= 0))
	case BinOpGreater:
		return scalarOperand(NewBoolean(left.Compare(right) > 0))
	case BinOpGreaterEqual:
		return scalarOperand(NewBoolean(left.Compare(right) >= 0))
	}

	leftNum, leftOk := left.TryCoerceToNumber(true, false)
	rightNum, rightOk := right.TryCoerceToNumber(true, false)
	if !leftOk || !rightOk {
		return scalarOperand(NewErrorWithMessage(ErrorCodeValue, fmt.Sprintf("operator %s requires numeric values", binaryOpText(n.Op))))
	}

	var result float64
	switch n.Op {
	case BinOpAdd:
		result = leftNum + rightNum
	case BinOpSubtract:
		result = leftNum - rightNum
	case BinOpMultiply:
		result = leftNum * rightNum
	case BinOpDivide:
		if rightNum == 0 {
			return scalarOperand(NewErrorWithMessage(ErrorCodeDiv0, "division by zero"))
		}
		result = leftNum / rightNum
	case BinOpPower:
		if leftNum == 0 && rightNum < 0 {
			return scalarOperand(NewErrorWithMessage(ErrorCodeDiv0, "zero raised to a negative power"))
		}
		result = math.Pow(leftNum, rightNum)
	default:
		return scalarOperand(NewErrorWithMessage(ErrorCodeValue, "unknown operator"))
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return scalarOperand(NewErrorWithMessage(ErrorCodeNum, "result is not a finite number"))
	}

	// date arithmetic: date ± number stays a date, date - date is a number
	leftDate := left.Kind() == CellValueTypeDate
	rightDate := right.Kind() == CellValueTypeDate
	switch {
	case n.Op == BinOpAdd && leftDate != rightDate,
		n.Op == BinOpSubtract && leftDate && !rightDate:
		return scalarOperand(NewDateSerial(result))
	}
	return scalarOperand(NewNumber(result))
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), binaryOpText(n.Op), n.Right.ToString())
}

func binaryOpText(op BinaryOp) string {
	switch op {
	case BinOpAdd:
		return "+"
	case BinOpSubtract:
		return "-"
	case BinOpMultiply:
		return "*"
	case BinOpDivide:
		return "/"
	case BinOpPower:
		return "^"
	case BinOpConcat:
		return "&"
	case BinOpEqual:
		return "="
	case BinOpNotEqual:
		return "<>"
	case BinOpLess:
		return "<"
	case BinOpLessEqual:
		return "<="
	case BinOpGreater:
		return ">"
	case BinOpGreaterEqual:
		return ">="
	}
	return "?"
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ctx *evalContext) operand {
	value := n.Operand.Eval(ctx).scalar()
	if value.IsError() {
		return scalarOperand(value)
	}

	num, ok := value.TryCoerceToNumber(true, false)
	if !ok {
		return scalarOperand(NewErrorWithMessage(ErrorCodeValue, "unary operator requires a numeric value"))
	}

	switch n.Op {
	case UnaryOpMinus:
		return scalarOperand(NewNumber(-num))
	case UnaryOpPercent:
		return scalarOperand(NewNumber(num / 100))
	}
	if value.Kind() == CellValueTypeDate {
		return scalarOperand(value)
	}
	return scalarOperand(NewNumber(num))
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.ToString()
	case UnaryOpPercent:
		return fmt.Sprintf("(%s%%)", n.Operand.ToString())
	}
	return "+" + n.Operand.ToString()
}

// FunctionCallNode represents a function call. OpenParen, Separators and
// CloseParen record the rune offsets of the call's punctuation; in a
// lenient parse CloseParen may be -1 when the call never closed.
type FunctionCallNode struct {
	Name       string
	Args       []ASTNode
	Position   NodePosition
	OpenParen  int
	Separators []int
	CloseParen int
}

func (n *FunctionCallNode) Eval(ctx *evalContext) operand {
	return ctx.call(n)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// ArgumentIndexAt returns the index of the argument a cursor sits in,
// counted as the separators before it
func (n *FunctionCallNode) ArgumentIndexAt(cursor int) int {
	index := 0
	for _, sep := range n.Separators {
		if sep < cursor {
			index++
		}
	}
	return index
}

// Contains reports whether cursor lies between the name and the closing
// parenthesis, both inclusive
func (n *FunctionCallNode) Contains(cursor int) bool {
	end := n.CloseParen
	if end < 0 {
		end = n.Position.End
	}
	return n.Position.Start <= cursor && cursor <= end
}

// Walk visits node and its descendants depth-first. returning false from
// visit skips the children of that node.
func Walk(node ASTNode, visit func(ASTNode) bool) {
	if node == nil || !visit(node) {
		return
	}
	switch n := node.(type) {
	case *BinaryOpNode:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *UnaryOpNode:
		Walk(n.Operand, visit)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			Walk(arg, visit)
		}
	case *ArrayNode:
		for _, row := range n.Rows {
			for _, element := range row {
				Walk(element, visit)
			}
		}
	}
}

// Parse tokenizes and parses a formula. the text must start with '='.
func Parse(text string) (ASTNode, error) {
	tokens, errs := NewLexer(text).Tokenize()
	if len(errs) > 0 {
		return nil, NewSpreadsheetError(ErrorCodeValue, errs[0])
	}
	return NewParser(tokens).Parse()
}

// parseLenient parses an incomplete formula, as typed in an editor
func parseLenient(text string) (ASTNode, error) {
	tokens, errs := newLenientLexer(text).Tokenize()
	if len(errs) > 0 {
		return nil, NewSpreadsheetError(ErrorCodeValue, errs[0])
	}
	p := NewParser(tokens)
	p.lenient = true
	return p.Parse()
}

// ParseReference parses a cell or range reference such as "B2",
// "Sheet1!A1:C3" or "'My Sheet'!$A$1"
func ParseReference(text string) (RangeAddress, error) {
	tokens, errs := NewLexerForReference(strings.TrimSpace(text)).Tokenize()
	if len(errs) > 0 {
		return RangeAddress{}, NewSpreadsheetError(ErrorCodeRef, errs[0])
	}
	if len(tokens) != 2 {
		return RangeAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid reference: %s", text))
	}

	p := NewParser(tokens)
	switch tok := tokens[0]; tok.Type {
	case TokenCell:
		node, err := p.parseCellReference(tok)
		if err != nil {
			return RangeAddress{}, err
		}
		return RangeAddress{Sheet: node.Sheet, StartRow: node.Row, StartColumn: node.Column, EndRow: node.Row, EndColumn: node.Column}, nil
	case TokenRange:
		node, err := p.parseRange(tok)
		if err != nil {
			return RangeAddress{}, err
		}
		return node.Address(), nil
	}
	return RangeAddress{}, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid reference: %s", text))
}

// NewParser creates a new parser with the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeValue, "no tokens to parse")
	}

	if p.peek().Type != TokenEquals {
		return nil, NewSpreadsheetError(ErrorCodeValue, "formula must start with '='")
	}
	p.pos++

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("unexpected token after expression: %s", tok.Value))
	}
	return node, nil
}

func span(left, right ASTNode) NodePosition {
	return NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End}
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			return left, nil
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>", "!=":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (ASTNode, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			return left, nil
		}

		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: BinOpConcat, Left: left, Right: right, Position: span(left, right)}
	}
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || (tok.Value != "+" && tok.Value != "-") {
			return left, nil
		}
		op := BinOpAdd
		if tok.Value == "-" {
			op = BinOpSubtract
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || (tok.Value != "*" && tok.Value != "/") {
			return left, nil
		}
		op := BinOpMultiply
		if tok.Value == "/" {
			op = BinOpDivide
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}
}

// parsePower handles exponentiation. left-associative, so 2^3^2 is 64.
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || tok.Value != "^" {
			return left, nil
		}

		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: BinOpPower, Left: left, Right: right, Position: span(left, right)}
	}
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (ASTNode, error) {
	tok := p.peek()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePostfix()
	}

	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}

	p.pos++
	operand, err := p.parseUnary() // chained unary operators
	if err != nil {
		return nil, err
	}
	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePostfix handles postfix operators (percent)
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenUnaryPostfixOp {
		tok := p.peek()
		p.pos++
		node = &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: tok.End},
		}
	}
	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses, arrays)
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.peek()
	position := NodePosition{Start: tok.Pos, End: tok.End}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{Value: val, Position: position}, nil

	case TokenString:
		p.pos++
		return &StringNode{Value: tok.Value, Position: position}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE", Position: position}, nil

	case TokenErrorValue:
		p.pos++
		code, _ := ParseErrorCode(tok.Value)
		return &ErrorNode{Code: code, Position: position}, nil

	case TokenCell:
		p.pos++
		return p.parseCellReference(tok)

	case TokenRange:
		p.pos++
		return p.parseRange(tok)

	case TokenIdentifier:
		p.pos++
		return &NamedRangeNode{Name: tok.Value, Position: position}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftBrace:
		return p.parseArray()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			return nil, NewSpreadsheetError(ErrorCodeValue, "expected closing parenthesis")
		}
		p.pos++
		return node, nil
	}

	if p.lenient {
		// a hole left by an unfinished expression, do not consume
		return &EmptyArgNode{Position: NodePosition{Start: tok.Pos, End: tok.Pos}}, nil
	}
	if tok.Type == TokenEOF {
		return nil, NewSpreadsheetError(ErrorCodeValue, "unexpected end of expression")
	}
	return nil, NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("unexpected token: %s", tok.Value))
}

// parseFunctionCall parses a function call, including empty argument
// slots
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.peek()
	p.pos++

	if p.peek().Type != TokenLeftParen {
		return nil, NewSpreadsheetError(ErrorCodeValue, "expected '(' after function name")
	}
	call := &FunctionCallNode{
		Name:       funcTok.Value,
		Args:       []ASTNode{},
		OpenParen:  p.peek().Pos,
		CloseParen: -1,
	}
	p.pos++

	// no arguments at all
	if tok := p.peek(); tok.Type == TokenRightParen {
		p.pos++
		call.CloseParen = tok.Pos
		call.Position = NodePosition{Start: funcTok.Pos, End: tok.End}
		return call, nil
	}

	for {
		tok := p.peek()
		var arg ASTNode
		if tok.Type == TokenComma || tok.Type == TokenRightParen {
			arg = &EmptyArgNode{Position: NodePosition{Start: tok.Pos, End: tok.Pos}}
		} else {
			var err error
			arg, err = p.parseComparison()
			if err != nil {
				return nil, err
			}
		}
		call.Args = append(call.Args, arg)

		tok = p.peek()
		switch tok.Type {
		case TokenRightParen:
			p.pos++
			call.CloseParen = tok.Pos
			call.Position = NodePosition{Start: funcTok.Pos, End: tok.End}
			return call, nil
		case TokenComma:
			p.pos++
			call.Separators = append(call.Separators, tok.Pos)
		case TokenEOF:
			if p.lenient {
				call.Position = NodePosition{Start: funcTok.Pos, End: tok.Pos}
				return call, nil
			}
			return nil, NewSpreadsheetError(ErrorCodeValue, "unexpected end in function arguments")
		default:
			return nil, NewSpreadsheetError(ErrorCodeValue, "expected ',' or ')' in function arguments")
		}
	}
}

// parseArray parses {a,b;c,d}. commas separate columns, semicolons rows.
func (p *Parser) parseArray() (ASTNode, error) {
	open := p.peek()
	p.pos++

	rows := [][]ASTNode{{}}
	for {
		element, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch element.(type) {
		case *NumberNode, *StringNode, *BooleanNode, *ErrorNode, *UnaryOpNode:
		default:
			return nil, NewSpreadsheetError(ErrorCodeValue, "array constants may only contain literals")
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], element)

		tok := p.peek()
		p.pos++
		switch tok.Type {
		case TokenComma:
		case TokenSemicolon:
			rows = append(rows, []ASTNode{})
		case TokenRightBrace:
			return &ArrayNode{Rows: rows, Position: NodePosition{Start: open.Pos, End: tok.End}}, nil
		default:
			return nil, NewSpreadsheetError(ErrorCodeValue, "expected ',', ';' or '}' in array constant")
		}
	}
}

// parseCellReference parses a cell reference token into a CellRefNode
func (p *Parser) parseCellReference(tok Token) (*CellRefNode, error) {
	sheet, cell := splitSheet(tok.Value)
	node, err := parseCellAddress(cell)
	if err != nil {
		return nil, err
	}
	node.Sheet = sheet
	node.Position = NodePosition{Start: tok.Pos, End: tok.End}
	return node, nil
}

// parseRange parses a range token into a RangeNode
func (p *Parser) parseRange(tok Token) (*RangeNode, error) {
	sheet, rangeStr := splitSheet(tok.Value)

	parts := strings.Split(rangeStr, ":")
	if len(parts) != 2 {
		return nil, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid range format: %s", rangeStr))
	}
	start, err := parseCellAddress(parts[0])
	if err != nil {
		return nil, err
	}
	end, err := parseCellAddress(parts[1])
	if err != nil {
		return nil, err
	}
	return &RangeNode{
		Sheet:    sheet,
		Start:    *start,
		End:      *end,
		Position: NodePosition{Start: tok.Pos, End: tok.End},
	}, nil
}

// splitSheet separates an optional sheet prefix from a reference,
// unquoting 'Sheet Name' and its doubled apostrophes
func splitSheet(ref string) (sheet, rest string) {
	idx := strings.LastIndex(ref, "!")
	if idx < 0 {
		return "", ref
	}
	sheet, rest = ref[:idx], ref[idx+1:]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, rest
}

// parseCellAddress parses "A1" or "$A$1" into 0-based coordinates
func parseCellAddress(cell string) (*CellRefNode, error) {
	node := &CellRefNode{}
	s := cell
	if strings.HasPrefix(s, "$") {
		node.AbsColumn = true
		s = s[1:]
	}

	letterEnd := 0
	for letterEnd < len(s) && (s[letterEnd] >= 'A' && s[letterEnd] <= 'Z' || s[letterEnd] >= 'a' && s[letterEnd] <= 'z') {
		letterEnd++
	}
	col, ok := columnIndex(s[:letterEnd])
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid cell reference: %s", cell))
	}

	rowStr := s[letterEnd:]
	if strings.HasPrefix(rowStr, "$") {
		node.AbsRow = true
		rowStr = rowStr[1:]
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil || row < 1 || row > MaxRows {
		return nil, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid cell reference: %s", cell))
	}

	node.Row = row - 1
	node.Column = col
	return node, nil
}

func sheetPrefix(sheet string) string {
	if sheet == "" {
		return ""
	}
	return quoteSheetName(sheet) + "!"
}

func cellText(row, col int, absRow, absCol bool) string {
	var b strings.Builder
	if absCol {
		b.WriteByte('$')
	}
	b.WriteString(ColumnName(col))
	if absRow {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(row + 1))
	return b.String()
}
