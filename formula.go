package formula

import (
	"sync"
)

// DefaultCacheSize is the number of compiled formulas an Engine keeps
const DefaultCacheSize = 1024

// formulaKey is the normalized form of a parsed formula. two formulas with
// the same structure (ignoring whitespace) have the same key.
type formulaKey string

// FormulaCache stores compiled formulas centrally so repeated evaluations
// of the same text parse once. texts that normalize to the same AST share
// one tree. it is safe for concurrent use.
type FormulaCache struct {
	mu sync.Mutex

	byText   map[string]uint32     // source text -> formula ID
	byKey    map[formulaKey]uint32 // normalized AST -> formula ID
	formulas map[uint32]*cachedFormula

	capacity int
	clock    uint64 // bumped on every access, orders entries for eviction
	nextID   uint32

	hits   uint64
	misses uint64
}

type cachedFormula struct {
	root    ASTNode
	key     formulaKey
	texts   []string
	lastUse uint64
}

// NewFormulaCache creates a cache holding at most capacity distinct
// formulas. the least recently used formula is dropped when it is full.
func NewFormulaCache(capacity int) *FormulaCache {
	return &FormulaCache{
		byText:   make(map[string]uint32),
		byKey:    make(map[formulaKey]uint32),
		formulas: make(map[uint32]*cachedFormula),
		capacity: max(capacity, 1),
		nextID:   1, // reserve 0 for no formula
	}
}

func normalizeAST(root ASTNode) formulaKey {
	if root == nil {
		return ""
	}
	return formulaKey(root.ToString())
}

// Get returns the tree compiled for text
func (fc *FormulaCache) Get(text string) (ASTNode, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	id, exists := fc.byText[text]
	if !exists {
		fc.misses++
		return nil, false
	}
	fc.hits++
	f := fc.formulas[id]
	fc.clock++
	f.lastUse = fc.clock
	return f.root, true
}

// Put records the tree parsed from text and returns the tree to use: an
// existing structurally identical tree if there is one, root otherwise
func (fc *FormulaCache) Put(text string, root ASTNode) ASTNode {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.clock++

	if id, exists := fc.byText[text]; exists {
		f := fc.formulas[id]
		f.lastUse = fc.clock
		return f.root
	}

	key := normalizeAST(root)
	if id, exists := fc.byKey[key]; exists {
		f := fc.formulas[id]
		f.texts = append(f.texts, text)
		f.lastUse = fc.clock
		fc.byText[text] = id
		return f.root
	}

	if len(fc.formulas) >= fc.capacity {
		fc.evictOldest()
	}
	id := fc.nextID
	fc.nextID++
	fc.formulas[id] = &cachedFormula{root: root, key: key, texts: []string{text}, lastUse: fc.clock}
	fc.byKey[key] = id
	fc.byText[text] = id
	return root
}

// evictOldest drops the least recently used formula and every text
// mapped to it
func (fc *FormulaCache) evictOldest() {
	var oldest uint32
	for id, f := range fc.formulas {
		if oldest == 0 || f.lastUse < fc.formulas[oldest].lastUse {
			oldest = id
		}
	}
	if oldest == 0 {
		return
	}
	f := fc.formulas[oldest]
	for _, text := range f.texts {
		delete(fc.byText, text)
	}
	delete(fc.byKey, f.key)
	delete(fc.formulas, oldest)
}

// Len returns the number of distinct formulas held
func (fc *FormulaCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.formulas)
}

// Stats returns the lookup hit and miss counts
func (fc *FormulaCache) Stats() (hits, misses uint64) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.hits, fc.misses
}

// Clear drops every formula
func (fc *FormulaCache) Clear() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	clear(fc.byText)
	clear(fc.byKey)
	clear(fc.formulas)
}
