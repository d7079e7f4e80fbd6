package item

import "github.com/kscrap/kscrap/pkg/kscraperrors"

// Record is an item of a schema built with Define. Unset fields read as the
// zero value of their kind.
type Record struct {
	schema *Schema
	values map[string]string
}

// NewRecord builds an empty record of the schema.
func (s *Schema) NewRecord() *Record {
	return &Record{schema: s, values: make(map[string]string, len(s.fields))}
}

// Schema implements Item
func (r *Record) Schema() *Schema { return r.schema }

// Get implements Item
func (r *Record) Get(name string) (string, bool) {
	f, ok := r.schema.Field(name)
	if !ok || !f.Kind.Supported() {
		return "", false
	}
	if v, set := r.values[name]; set {
		return v, true
	}
	return zeroValue(f.Kind), true
}

// Set implements Item. The value is stored in canonical form.
func (r *Record) Set(name, value string) error {
	f, ok := r.schema.Field(name)
	if !ok {
		return nil
	}
	if !f.Kind.Supported() {
		return kscraperrors.New(kscraperrors.ErrorTypeSchema, "field cannot be set from text").
			WithDetail("field", name)
	}
	canonical, err := Canonical(f.Kind, value)
	if err != nil {
		return err
	}
	r.values[name] = canonical
	return nil
}

// SetAll sets every entry of values, stopping at the first error.
func (r *Record) SetAll(values map[string]string) error {
	for _, f := range r.schema.fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := r.Set(f.Name, v); err != nil {
			return err
		}
	}
	return nil
}

func zeroValue(k Kind) string {
	switch k {
	case KindBool:
		return "false"
	case KindInt32, KindInt64:
		return "0"
	case KindFloat32, KindFloat64:
		return "0.0"
	default:
		return ""
	}
}
