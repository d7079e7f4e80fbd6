package item

import (
	"reflect"
	"strings"
	"sync"

	"github.com/kscrap/kscrap/pkg/kscraperrors"
)

// TagName is the struct tag that renames or skips a field.
const TagName = "kscrap"

// FieldSpec names a field and its storage kind.
type FieldSpec struct {
	Name string `yaml:"name" json:"name"`
	Kind Kind   `yaml:"kind" json:"kind"`
}

// Schema is the capability table of one item type: its ordered fields, how
// to build an empty instance and, for struct-backed types, where each field
// lives inside the struct.
type Schema struct {
	name   string
	fields []FieldSpec
	index  map[string]int
	rtype  reflect.Type
	paths  map[string][]int
}

var schemaCache sync.Map // reflect.Type -> *Schema

// Define builds a reflection-free schema. Items of the type are created with
// NewRecord.
func Define(name string, fields ...FieldSpec) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "schema name cannot be empty")
	}
	s := &Schema{name: name, index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "field name cannot be empty").
				WithDetail("schema", name)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "duplicate field").
				WithDetail("schema", name).
				WithDetail("field", f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustDefine is like Define but panics on error.
func MustDefine(name string, fields ...FieldSpec) *Schema {
	s, err := Define(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// SchemaFor returns the cached schema of struct type T (or *T).
func SchemaFor[T any]() (*Schema, error) {
	return schemaForType(reflect.TypeOf((*T)(nil)).Elem())
}

// SchemaOf returns the cached schema of the dynamic type of v.
func SchemaOf(v interface{}) (*Schema, error) {
	if it, ok := v.(Item); ok {
		return it.Schema(), nil
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "cannot build a schema for nil")
	}
	return schemaForType(t)
}

func schemaForType(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*Schema), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, kscraperrors.Newf(kscraperrors.ErrorTypeValidation,
			"cannot build a schema for non-struct type %s", t)
	}

	s := &Schema{
		name:  t.String(),
		index: make(map[string]int),
		rtype: t,
		paths: make(map[string][]int),
	}
	s.walk(t, nil)

	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// walk collects the fields of embedded structs first, base before derived,
// then the direct fields in declaration order. A field closer to the root
// shadows a promoted one with the same name but keeps the position of the
// first occurrence.
func (s *Schema) walk(t reflect.Type, prefix []int) {
	var direct []int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		if f.Anonymous && tag == "" && f.Type.Kind() == reflect.Struct {
			s.walk(f.Type, fieldPath(prefix, i))
			continue
		}
		if f.IsExported() {
			direct = append(direct, i)
		}
	}

	for _, i := range direct {
		f := t.Field(i)
		path := fieldPath(prefix, i)
		name := f.Name
		if tag := f.Tag.Get(TagName); tag != "" {
			name = tag
		}
		spec := FieldSpec{Name: name, Kind: KindOf(f.Type)}

		if pos, dup := s.index[name]; dup {
			if len(s.paths[name]) > len(path) {
				s.fields[pos] = spec
				s.paths[name] = path
			}
			continue
		}
		s.index[name] = len(s.fields)
		s.fields = append(s.fields, spec)
		s.paths[name] = path
	}
}

func fieldPath(prefix []int, i int) []int {
	return append(append(make([]int, 0, len(prefix)+1), prefix...), i)
}

// Name is the type identity of the schema.
func (s *Schema) Name() string { return s.name }

// Fields returns every declared field, including unsupported ones, in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// SupportedFields returns the fields that can be stored in columns.
func (s *Schema) SupportedFields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.fields))
	for _, f := range s.fields {
		if f.Kind.Supported() {
			out = append(out, f)
		}
	}
	return out
}

// SkippedFields returns the fields whose Go type cannot be stored.
func (s *Schema) SkippedFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.fields {
		if !f.Kind.Supported() {
			out = append(out, f)
		}
	}
	return out
}

// Names returns the names of all declared fields.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Field looks a field up by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	pos, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[pos], true
}

// Covers reports whether s declares every field name of base.
func (s *Schema) Covers(base *Schema) bool {
	if base == nil {
		return false
	}
	for _, f := range base.fields {
		if _, ok := s.index[f.Name]; !ok {
			return false
		}
	}
	return true
}

// New builds an empty item of the schema's type.
func (s *Schema) New() Item {
	if s.rtype != nil {
		return &reflected{schema: s, v: reflect.New(s.rtype).Elem()}
	}
	return s.NewRecord()
}

// SameType reports whether a and b describe the same item type.
func SameType(a, b *Schema) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.rtype != nil || b.rtype != nil {
		return a.rtype == b.rtype
	}
	if a.name != b.name || len(a.fields) != len(b.fields) {
		return false
	}
	for i := range a.fields {
		if a.fields[i] != b.fields[i] {
			return false
		}
	}
	return true
}
