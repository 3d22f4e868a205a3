package formula

// StringTable interns the text of String and Error cells so repeated
// values share one copy. entries are reference counted and their slots
// reused once released.
type StringTable struct {
	ids     map[string]uint32 // text -> ID
	entries []stringEntry     // ID -> entry, slot 0 unused
	free    []uint32          // released IDs ready for reuse
}

type stringEntry struct {
	text string
	refs int
}

// NewStringTable creates an empty string table
func NewStringTable() *StringTable {
	return &StringTable{
		ids:     make(map[string]uint32),
		entries: make([]stringEntry, 1), // reserve 0 for no string
	}
}

// Intern adds a reference to s and returns its ID
func (st *StringTable) Intern(s string) uint32 {
	if id, exists := st.ids[s]; exists {
		st.entries[id].refs++
		return id
	}

	var id uint32
	if n := len(st.free); n > 0 {
		id = st.free[n-1]
		st.free = st.free[:n-1]
		st.entries[id] = stringEntry{text: s, refs: 1}
	} else {
		id = uint32(len(st.entries))
		st.entries = append(st.entries, stringEntry{text: s, refs: 1})
	}
	st.ids[s] = id
	return id
}

// Lookup returns the text stored under id
func (st *StringTable) Lookup(id uint32) (string, bool) {
	if id == 0 || int(id) >= len(st.entries) || st.entries[id].refs == 0 {
		return "", false
	}
	return st.entries[id].text, true
}

// Release drops one reference to id. the entry is freed when its count
// reaches zero; returns true in that case.
func (st *StringTable) Release(id uint32) bool {
	if id == 0 || int(id) >= len(st.entries) || st.entries[id].refs == 0 {
		return false
	}
	entry := &st.entries[id]
	entry.refs--
	if entry.refs > 0 {
		return false
	}
	delete(st.ids, entry.text)
	*entry = stringEntry{}
	st.free = append(st.free, id)
	return true
}

// References returns the reference count of id
func (st *StringTable) References(id uint32) int {
	if int(id) >= len(st.entries) {
		return 0
	}
	return st.entries[id].refs
}

// Len returns the number of distinct strings held
func (st *StringTable) Len() int {
	return len(st.ids)
}
