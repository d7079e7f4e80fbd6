package columnar

import "sync"

// Placeholder is written for cells a row does not have.
const Placeholder = ""

// RowSource reads the rows of a ColumnStore once, front to back. The end of
// the store is re-read on every call, so rows appended while draining are
// picked up.
type RowSource struct {
	store  *ColumnStore
	mu     sync.Mutex
	cursor int
}

// NewRowSource creates a row source positioned at the first row.
func (s *ColumnStore) NewRowSource() *RowSource {
	return &RowSource{store: s}
}

// HasMore reports whether Next would return a row.
func (r *RowSource) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor < r.store.RowCount()
}

// Next returns the row at the cursor and advances it.
func (r *RowSource) Next() ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.store.Row(r.cursor)
	if !ok {
		return nil, false
	}
	r.cursor++
	return row, true
}

// Header returns the current column names.
func (r *RowSource) Header() []string {
	return r.store.ColumnNames()
}

// Cursor returns the number of rows returned so far.
func (r *RowSource) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}
