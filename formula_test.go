package formula

import (
	"sync"
	"testing"
)

func TestFormulaCache(t *testing.T) {
	fc := NewFormulaCache(2)

	if _, ok := fc.Get("=1+2"); ok {
		t.Fatalf("expected a miss on an empty cache")
	}

	a, _ := Parse("=SUM(A1, 2)")
	if got := fc.Put("=SUM(A1, 2)", a); got != a {
		t.Errorf("expected the first tree to be kept")
	}
	b, _ := Parse("=SUM(A1,2)")
	if got := fc.Put("=SUM(A1,2)", b); got != a {
		t.Errorf("expected texts differing in spacing to share a tree")
	}
	if fc.Len() != 1 {
		t.Errorf("expected 1 distinct formula, got %d", fc.Len())
	}
	if root, ok := fc.Get("=SUM(A1,2)"); !ok || root != a {
		t.Errorf("expected a hit for the second text")
	}

	c, _ := Parse("=A1*2")
	fc.Put("=A1*2", c)
	fc.Get("=SUM(A1, 2)") // SUM is now the most recently used
	d, _ := Parse("=B1")
	fc.Put("=B1", d)

	if fc.Len() != 2 {
		t.Errorf("expected the cache to stay at capacity, got %d", fc.Len())
	}
	if _, ok := fc.Get("=A1*2"); ok {
		t.Errorf("expected the least recently used formula to be evicted")
	}
	if _, ok := fc.Get("=SUM(A1,2)"); !ok {
		t.Errorf("expected the recently used formula to survive")
	}

	hits, misses := fc.Stats()
	if hits != 3 || misses != 2 {
		t.Errorf("expected 3 hits and 2 misses, got %d and %d", hits, misses)
	}

	fc.Clear()
	if fc.Len() != 0 {
		t.Errorf("expected an empty cache after Clear")
	}
}

func TestEngineCompileUsesCache(t *testing.T) {
	engine := NewEngine()
	wb := NewWorkbook("Sheet1")
	wb.Set("A1", 4)
	at := CellAddress{Sheet: "Sheet1", Row: 1}

	for range 3 {
		if v := engine.Evaluate("=A1*2", wb, at); v.Number() != 8 {
			t.Fatalf("expected 8, got %v", v)
		}
	}
	if hits, misses := engine.Cache().Stats(); hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits and 1 miss, got %d and %d", hits, misses)
	}

	// parse failures are not cached
	engine.Evaluate("=1+", wb, at)
	engine.Evaluate("=1+", wb, at)
	if engine.Cache().Len() != 1 {
		t.Errorf("expected only the valid formula cached, got %d", engine.Cache().Len())
	}

	if NewEngine(WithCacheSize(0)).Cache() != nil {
		t.Errorf("expected a zero size to disable the cache")
	}
}

func TestFormulaCacheConcurrent(t *testing.T) {
	engine := NewEngine(WithCacheSize(8))
	wb := NewWorkbook("Sheet1")
	for i := range 10 {
		wb.SetValue(CellAddress{Sheet: "Sheet1", Row: i}, NewNumber(float64(i)))
	}

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				text := []string{"=SUM(A1:A10)", "=AVERAGE(A1:A10)", "=MAX(A1:A10)"}[(w+i)%3]
				if v := engine.Evaluate(text, wb, CellAddress{Sheet: "Sheet1", Column: 3}); v.IsError() {
					t.Errorf("%s evaluated to %v", text, v)
					return
				}
			}
		}()
	}
	wg.Wait()

	if engine.Cache().Len() != 3 {
		t.Errorf("expected 3 cached formulas, got %d", engine.Cache().Len())
	}
}
