package columnar

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/item"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/logger"
)

// ColumnStore provides columnar storage for items of one schema. Columns keep
// the order in which they were declared and can be widened once.
type ColumnStore struct {
	mu      sync.RWMutex
	columns map[string]Column
	order   []string
	widened bool
	logger  *zap.Logger
}

// NewColumnStore creates a new column store. A nil logger uses the global one.
func NewColumnStore(l *zap.Logger) *ColumnStore {
	return &ColumnStore{
		columns: make(map[string]Column),
		logger:  logger.Or(l).Named("columnar"),
	}
}

// NewColumnStoreWithSchema creates a store with one column per storable field of s.
func NewColumnStoreWithSchema(s *item.Schema, l *zap.Logger) *ColumnStore {
	store := NewColumnStore(l)
	if err := store.CreateColumns(s.Fields()); err != nil {
		store.logger.Warn("some fields will not be stored", zap.Error(err))
	}
	return store
}

// CreateColumns adds one column per field. Fields of unsupported kinds and
// names already present are skipped; the returned schema error lists them.
func (s *ColumnStore) CreateColumns(specs []item.FieldSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped []string
	for _, spec := range specs {
		if _, exists := s.columns[spec.Name]; exists {
			s.logger.Warn("column already exists", zap.String("column", spec.Name))
			skipped = append(skipped, spec.Name)
			continue
		}
		col := newColumn(spec.Kind)
		if col == nil {
			s.logger.Warn("field type cannot be stored, skipping",
				zap.String("field", spec.Name),
				zap.Stringer("kind", spec.Kind))
			skipped = append(skipped, spec.Name)
			continue
		}
		// Rows already stored read as null in the new column.
		for i := 0; i < s.rowCountLocked(); i++ {
			col.AppendNull()
		}
		s.columns[spec.Name] = col
		s.order = append(s.order, spec.Name)
	}

	if len(skipped) > 0 {
		return kscraperrors.New(kscraperrors.ErrorTypeSchema, "fields skipped").
			WithDetail("fields", strings.Join(skipped, ","))
	}
	return nil
}

// AppendRow appends one row. Every column receives a value: the parsed entry
// of values, or null when the entry is missing or cannot be parsed.
func (s *ColumnStore) AppendRow(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		col := s.columns[name]
		raw, ok := values[name]
		if !ok {
			col.AppendNull()
			continue
		}
		if err := col.Append(raw); err != nil {
			s.logger.Warn("unparseable value stored as null",
				zap.String("column", name),
				zap.String("value", raw),
				zap.Error(err))
			col.AppendNull()
		}
	}
}

// Widen replaces the column set with specs, copying every stored value. It
// succeeds at most once per store and only when every current column is
// present in specs with the same or a compatible kind. On failure the store
// is left untouched.
func (s *ColumnStore) Widen(specs []item.FieldSpec) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.widened {
		s.logger.Warn("store was already widened")
		return false
	}

	target := make(map[string]item.Kind, len(specs))
	for _, spec := range specs {
		target[spec.Name] = spec.Kind
	}
	for _, name := range s.order {
		kind, ok := target[name]
		if !ok {
			s.logger.Warn("widening drops an existing column", zap.String("column", name))
			return false
		}
		if !Compatible(s.columns[name].Kind(), kind) {
			s.logger.Warn("widening changes a column to an incompatible kind",
				zap.String("column", name),
				zap.Stringer("from", s.columns[name].Kind()),
				zap.Stringer("to", kind))
			return false
		}
	}

	// Stored columns keep their positions and new ones follow in the given order.
	rows := s.rowCountLocked()
	staged := make(map[string]Column, len(specs))
	order := make([]string, 0, len(specs))
	for _, name := range s.order {
		if !s.stage(staged, name, target[name], rows) {
			return false
		}
		order = append(order, name)
	}
	for _, spec := range specs {
		if _, done := staged[spec.Name]; done {
			continue
		}
		col := newColumn(spec.Kind)
		if col == nil {
			s.logger.Warn("field type cannot be stored, skipping",
				zap.String("field", spec.Name),
				zap.Stringer("kind", spec.Kind))
			continue
		}
		for i := 0; i < rows; i++ {
			col.AppendNull()
		}
		staged[spec.Name] = col
		order = append(order, spec.Name)
	}

	s.columns = staged
	s.order = order
	s.widened = true
	return true
}

// stage copies the stored column name into a new column of kind.
func (s *ColumnStore) stage(staged map[string]Column, name string, kind item.Kind, rows int) bool {
	old := s.columns[name]
	col := newColumn(kind)
	if col == nil {
		return false
	}
	for i := 0; i < rows; i++ {
		if old.IsNull(i) {
			col.AppendNull()
			continue
		}
		if err := col.Append(old.Get(i)); err != nil {
			s.logger.Warn("value could not be converted while widening",
				zap.String("column", name),
				zap.Int("row", i),
				zap.Error(err))
			return false
		}
	}
	staged[name] = col
	return true
}

// Compatible reports whether values of kind from can be carried into a column of kind to.
func Compatible(from, to item.Kind) bool {
	switch {
	case from == to:
		return true
	case to == item.KindString:
		return from.Supported()
	case from == item.KindInt32 && to == item.KindInt64:
		return true
	case (from == item.KindInt32 || from == item.KindFloat32) && to == item.KindFloat64:
		return true
	default:
		return false
	}
}

// Widened reports whether the one allowed widening has happened.
func (s *ColumnStore) Widened() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.widened
}

// RowCount returns the length of the longest column.
func (s *ColumnStore) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowCountLocked()
}

func (s *ColumnStore) rowCountLocked() int {
	n := 0
	for _, col := range s.columns {
		if col.Len() > n {
			n = col.Len()
		}
	}
	return n
}

// MinRowCount returns the length of the shortest column.
func (s *ColumnStore) MinRowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return 0
	}
	n := -1
	for _, col := range s.columns {
		if n < 0 || col.Len() < n {
			n = col.Len()
		}
	}
	return n
}

// ColumnCount returns the number of columns
func (s *ColumnStore) ColumnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// ColumnNames returns the column names in declaration order.
func (s *ColumnStore) ColumnNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Fields returns the column definitions in declaration order.
func (s *ColumnStore) Fields() []item.FieldSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]item.FieldSpec, len(s.order))
	for i, name := range s.order {
		out[i] = item.FieldSpec{Name: name, Kind: s.columns[name].Kind()}
	}
	return out
}

// Row renders row i in column order. The second result is false once i is
// past the longest column.
func (s *ColumnStore) Row(i int) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= s.rowCountLocked() {
		return nil, false
	}
	row := make([]string, len(s.order))
	for j, name := range s.order {
		row[j] = s.columns[name].Get(i)
	}
	return row, true
}

// Records rebuilds the stored rows as items of schema. Null cells leave the
// item field at its zero value.
func (s *ColumnStore) Records(schema *item.Schema) ([]item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rowCountLocked()
	out := make([]item.Item, 0, rows)
	for i := 0; i < rows; i++ {
		it := schema.New()
		for _, name := range s.order {
			col := s.columns[name]
			if col.IsNull(i) {
				continue
			}
			if err := it.Set(name, col.Get(i)); err != nil {
				return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeData, "failed to rebuild stored row").
					WithDetail("row", i).
					WithDetail("column", name)
			}
		}
		out = append(out, it)
	}
	return out, nil
}

// Clear removes all rows but keeps the column definitions.
func (s *ColumnStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, col := range s.columns {
		col.Clear()
	}
}

// Discard removes the first n rows.
func (s *ColumnStore) Discard(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, col := range s.columns {
		col.Discard(n)
	}
}

// MemoryUsage returns the approximate memory usage in bytes
func (s *ColumnStore) MemoryUsage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, col := range s.columns {
		total += col.MemoryUsage()
	}
	return total
}
