package formula

import (
	"slices"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Registry maps function names to their shared instances. it is filled
// during initialization and read-only afterwards; Add is not safe to call
// concurrently with lookups.
type Registry struct {
	functions map[string]Function // folded name -> function
}

// NewRegistry creates a registry holding every built-in function
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, family := range [][]Function{
		aggregateFunctions(),
		lookupFunctions(),
		textFunctions(),
		dateFunctions(),
		logicalFunctions(),
		mathFunctions(),
	} {
		for _, fn := range family {
			if err := r.Add(fn); err != nil {
				panic(err)
			}
		}
	}
	return r
}

// NewEmptyRegistry creates a registry without any functions
func NewEmptyRegistry() *Registry {
	return &Registry{functions: make(map[string]Function)}
}

// Add registers a function under its name
func (r *Registry) Add(fn Function) error {
	key := foldCase(fn.Name())
	if _, exists := r.functions[key]; exists {
		return appErrorf(AlreadyExists, "function %s already registered", fn.Name())
	}
	r.functions[key] = fn
	return nil
}

// Lookup returns the function registered under name, ignoring case
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.functions[foldCase(name)]
	return fn, ok
}

// Get returns the function registered under name. unknown names yield an
// ErrorFunction that evaluates to #NAME?.
func (r *Registry) Get(name string) Function {
	if fn, ok := r.Lookup(name); ok {
		return fn
	}
	return NewErrorFunction(strings.ToUpper(name), r.Suggest(name))
}

// Names returns every registered name in alphabetical order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.functions))
	for _, fn := range r.functions {
		names = append(names, fn.Name())
	}
	slices.Sort(names)
	return names
}

// FunctionsForPrefix returns the names starting with prefix, ignoring
// case, in alphabetical order
func (r *Registry) FunctionsForPrefix(prefix string) []string {
	folded := foldCase(prefix)
	var names []string
	for key, fn := range r.functions {
		if strings.HasPrefix(key, folded) {
			names = append(names, fn.Name())
		}
	}
	slices.Sort(names)
	return names
}

// Suggest returns the registered name closest to an unknown one, or ""
func (r *Registry) Suggest(name string) string {
	if name == "" || len(r.functions) == 0 {
		return ""
	}
	names := r.Names()

	// names containing the typed letters in order, closest first
	ranks := fuzzy.RankFindFold(name, names)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	// otherwise a small edit distance
	best, bestDistance := "", 3
	folded := foldCase(name)
	for _, candidate := range names {
		if d := fuzzy.LevenshteinDistance(folded, foldCase(candidate)); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}

// Hint describes the function call surrounding an editor cursor
type Hint struct {
	Function      Function
	ArgumentIndex int
}

// HintAt finds the innermost function call around cursor, a zero-based
// rune offset into text, and the argument the cursor is in. text may be
// incomplete: the leading '=' is optional and open strings and
// parentheses are closed before parsing.
func (r *Registry) HintAt(text string, cursor int) (Hint, bool) {
	cursor = max(0, min(cursor, len([]rune(text))))
	if !strings.HasPrefix(text, "=") {
		text = "=" + text
		cursor++
	}

	root, err := parseLenient(balance(text))
	if err != nil {
		return Hint{}, false
	}

	var found *FunctionCallNode
	Walk(root, func(node ASTNode) bool {
		call, ok := node.(*FunctionCallNode)
		if ok && call.Contains(cursor) && (found == nil || call.Position.Start >= found.Position.Start) {
			found = call
		}
		return true
	})
	if found == nil {
		return Hint{}, false
	}

	fn := r.Get(found.Name)
	if _, unknown := fn.(*ErrorFunction); unknown {
		return Hint{}, false
	}
	return Hint{Function: fn, ArgumentIndex: found.ArgumentIndexAt(cursor)}, true
}

// balance closes an unterminated string or sheet name and any open
// parentheses and braces, innermost first
func balance(text string) string {
	var (
		open     []rune
		inString bool
		inSheet  bool
	)
	for _, ch := range text {
		switch {
		case inString:
			if ch == charQuote {
				inString = false
			}
		case inSheet:
			if ch == charApostrophe {
				inSheet = false
			}
		case ch == charQuote:
			inString = true
		case ch == charApostrophe:
			inSheet = true
		case ch == charLParen || ch == charLBrace:
			open = append(open, ch)
		case ch == charRParen || ch == charRBrace:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteRune(charQuote)
	}
	if inSheet {
		b.WriteRune(charApostrophe)
	}
	for i := len(open) - 1; i >= 0; i-- {
		if open[i] == charLParen {
			b.WriteRune(charRParen)
		} else {
			b.WriteRune(charRBrace)
		}
	}
	return b.String()
}
