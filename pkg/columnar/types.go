package columnar

import (
	"github.com/kscrap/kscrap/pkg/item"
)

// Column is a typed, nullable sequence of values. Values are appended in
// textual form and parsed according to the column kind.
type Column interface {
	Kind() item.Kind
	Len() int
	IsNull(i int) bool
	// Get renders row i, or Placeholder when the row is null or out of range.
	Get(i int) string
	Append(raw string) error
	AppendNull()
	Clear()
	// Discard drops the first n values.
	Discard(n int)
	MemoryUsage() int64
}

// newColumn creates an empty column of the given kind. It returns nil for
// kinds that cannot be stored.
func newColumn(kind item.Kind) Column {
	switch kind {
	case item.KindBool:
		return NewBoolColumn()
	case item.KindInt32:
		return newNumericColumn[int32](kind)
	case item.KindInt64:
		return newNumericColumn[int64](kind)
	case item.KindFloat32:
		return newNumericColumn[float32](kind)
	case item.KindFloat64:
		return newNumericColumn[float64](kind)
	case item.KindString:
		return NewStringColumn()
	default:
		return nil
	}
}

// bitmap is a bit-packed bool sequence: 64 bools per uint64.
type bitmap struct {
	words []uint64
	count int
}

func (b *bitmap) append(v bool) {
	wordIndex := b.count / 64
	bitIndex := b.count % 64

	// Grow if needed
	if wordIndex >= len(b.words) {
		b.words = append(b.words, 0)
	}

	if v {
		b.words[wordIndex] |= 1 << bitIndex
	}
	b.count++
}

func (b *bitmap) get(i int) bool {
	return b.words[i/64]&(1<<(i%64)) != 0
}

func (b *bitmap) clear() {
	b.words = b.words[:0]
	b.count = 0
}

func (b *bitmap) discard(n int) {
	if n <= 0 {
		return
	}
	if n >= b.count {
		b.clear()
		return
	}
	if n%64 == 0 {
		b.words = append([]uint64(nil), b.words[n/64:]...)
		b.count -= n
		return
	}
	next := bitmap{words: make([]uint64, 0, (b.count-n)/64+1)}
	for i := n; i < b.count; i++ {
		next.append(b.get(i))
	}
	*b = next
}

func (b *bitmap) memoryUsage() int64 {
	return int64(len(b.words) * 8)
}

// number is the set of Go types backing numeric columns.
type number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// NumericColumn stores int32, int64, float32 or float64 values.
type NumericColumn[T number] struct {
	kind   item.Kind
	values []T
	valid  bitmap
}

func newNumericColumn[T number](kind item.Kind) *NumericColumn[T] {
	return &NumericColumn[T]{
		kind:   kind,
		values: make([]T, 0, 1024),
	}
}

func (c *NumericColumn[T]) Kind() item.Kind { return c.kind }
func (c *NumericColumn[T]) Len() int        { return len(c.values) }

func (c *NumericColumn[T]) IsNull(i int) bool {
	return i < 0 || i >= len(c.values) || !c.valid.get(i)
}

func (c *NumericColumn[T]) Get(i int) string {
	if c.IsNull(i) {
		return Placeholder
	}
	return item.Format(c.values[i])
}

func (c *NumericColumn[T]) Append(raw string) error {
	v, err := item.Parse(c.kind, raw)
	if err != nil {
		return err
	}
	c.values = append(c.values, v.(T))
	c.valid.append(true)
	return nil
}

func (c *NumericColumn[T]) AppendNull() {
	var zero T
	c.values = append(c.values, zero)
	c.valid.append(false)
}

func (c *NumericColumn[T]) Clear() {
	c.values = c.values[:0]
	c.valid.clear()
}

func (c *NumericColumn[T]) Discard(n int) {
	if n >= len(c.values) {
		c.Clear()
		return
	}
	c.values = append(make([]T, 0, cap(c.values)), c.values[n:]...)
	c.valid.discard(n)
}

func (c *NumericColumn[T]) MemoryUsage() int64 {
	var zero T
	return int64(cap(c.values))*int64(sizeOf(zero)) + c.valid.memoryUsage()
}

func sizeOf(v interface{}) int {
	switch v.(type) {
	case int32, float32:
		return 4
	default:
		return 8
	}
}

// BoolColumn stores boolean values bit-packed.
type BoolColumn struct {
	values bitmap
	valid  bitmap
}

// NewBoolColumn creates a new boolean column
func NewBoolColumn() *BoolColumn {
	return &BoolColumn{
		values: bitmap{words: make([]uint64, 0, 16)},
	}
}

func (c *BoolColumn) Kind() item.Kind { return item.KindBool }
func (c *BoolColumn) Len() int        { return c.values.count }

func (c *BoolColumn) IsNull(i int) bool {
	return i < 0 || i >= c.values.count || !c.valid.get(i)
}

func (c *BoolColumn) Get(i int) string {
	if c.IsNull(i) {
		return Placeholder
	}
	return item.FormatBool(c.values.get(i))
}

func (c *BoolColumn) Append(raw string) error {
	v, err := item.Parse(item.KindBool, raw)
	if err != nil {
		return err
	}
	c.values.append(v.(bool))
	c.valid.append(true)
	return nil
}

func (c *BoolColumn) AppendNull() {
	c.values.append(false)
	c.valid.append(false)
}

func (c *BoolColumn) Clear() {
	c.values.clear()
	c.valid.clear()
}

func (c *BoolColumn) Discard(n int) {
	c.values.discard(n)
	c.valid.discard(n)
}

func (c *BoolColumn) MemoryUsage() int64 {
	return c.values.memoryUsage() + c.valid.memoryUsage()
}

// StringColumn stores strings dictionary-encoded: every distinct value is
// kept once and rows hold a code into the dictionary.
type StringColumn struct {
	codes   []uint32
	dict    map[string]uint32
	entries []string
	valid   bitmap
}

// NewStringColumn creates a new string column
func NewStringColumn() *StringColumn {
	return &StringColumn{
		codes: make([]uint32, 0, 1024),
		dict:  make(map[string]uint32),
	}
}

func (c *StringColumn) Kind() item.Kind { return item.KindString }
func (c *StringColumn) Len() int        { return len(c.codes) }

func (c *StringColumn) IsNull(i int) bool {
	return i < 0 || i >= len(c.codes) || !c.valid.get(i)
}

func (c *StringColumn) Get(i int) string {
	if c.IsNull(i) {
		return Placeholder
	}
	return c.entries[c.codes[i]]
}

func (c *StringColumn) Append(raw string) error {
	code, ok := c.dict[raw]
	if !ok {
		code = uint32(len(c.entries))
		c.entries = append(c.entries, raw)
		c.dict[raw] = code
	}
	c.codes = append(c.codes, code)
	c.valid.append(true)
	return nil
}

func (c *StringColumn) AppendNull() {
	c.codes = append(c.codes, 0)
	c.valid.append(false)
}

func (c *StringColumn) Clear() {
	c.codes = c.codes[:0]
	c.dict = make(map[string]uint32)
	c.entries = c.entries[:0]
	c.valid.clear()
}

// Discard keeps the dictionary; entries no longer referenced are dropped on
// the next Clear.
func (c *StringColumn) Discard(n int) {
	if n >= len(c.codes) {
		c.Clear()
		return
	}
	c.codes = append(make([]uint32, 0, cap(c.codes)), c.codes[n:]...)
	c.valid.discard(n)
}

func (c *StringColumn) MemoryUsage() int64 {
	size := int64(cap(c.codes) * 4)
	for _, e := range c.entries {
		size += int64(len(e)) + 16
	}
	return size + c.valid.memoryUsage()
}
