// Package item describes the records a repository stores: their schema
// (ordered, typed fields) and uniform by-name access to field values.
//
// Struct types are adapted through reflection:
//
//	type Listing struct {
//	    Street string  `kscrap:"calle"`
//	    Price  float64 `kscrap:"precio"`
//	    Photos []string // unsupported, never stored
//	}
//
//	it, err := item.Reflect(&Listing{Street: "Sol"})
//
// Types known only at runtime are declared with Define and populated through
// Record.
package item

import (
	"reflect"

	"github.com/kscrap/kscrap/pkg/kscraperrors"
)

// Item is a record with a fixed schema whose fields are read and written by name.
type Item interface {
	Schema() *Schema
	// Get renders the named field. The second result is false when the field
	// does not exist or cannot be stored.
	Get(name string) (string, bool)
	// Set parses value into the named field. Unknown fields are ignored.
	Set(name, value string) error
}

// IsWideningCandidateOf reports whether it declares at least every field of base.
func IsWideningCandidateOf(it Item, base *Schema) bool {
	if it == nil {
		return false
	}
	return it.Schema().Covers(base)
}

// Values renders every storable field of it.
func Values(it Item) map[string]string {
	s := it.Schema()
	out := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		if !f.Kind.Supported() {
			continue
		}
		if v, ok := it.Get(f.Name); ok {
			out[f.Name] = v
		}
	}
	return out
}

// TypedValues returns the storable fields of it as typed Go values.
func TypedValues(it Item) map[string]interface{} {
	s := it.Schema()
	out := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		if !f.Kind.Supported() {
			continue
		}
		raw, ok := it.Get(f.Name)
		if !ok {
			continue
		}
		v, err := Parse(f.Kind, raw)
		if err != nil {
			continue
		}
		out[f.Name] = v
	}
	return out
}

// Reflect adapts v to an Item. v may already be an Item, a pointer to a
// struct (read and written in place) or a struct value (copied).
func Reflect(v interface{}) (Item, error) {
	if it, ok := v.(Item); ok {
		return it, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "cannot adapt nil to an item")
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, kscraperrors.Newf(kscraperrors.ErrorTypeValidation, "cannot adapt nil %s to an item", rv.Type())
		}
		rv = rv.Elem()
	}
	if !rv.CanAddr() {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p.Elem()
	}
	s, err := schemaForType(rv.Type())
	if err != nil {
		return nil, err
	}
	return &reflected{schema: s, v: rv}, nil
}

// Unwrap returns the struct behind an item built by Reflect or Schema.New, or
// nil for records.
func Unwrap(it Item) interface{} {
	if r, ok := it.(*reflected); ok {
		return r.v.Addr().Interface()
	}
	return nil
}

type reflected struct {
	schema *Schema
	v      reflect.Value
}

func (r *reflected) Schema() *Schema { return r.schema }

func (r *reflected) Get(name string) (string, bool) {
	f, ok := r.schema.Field(name)
	if !ok || !f.Kind.Supported() {
		return "", false
	}
	return formatValue(f.Kind, r.v.FieldByIndex(r.schema.paths[name])), true
}

func (r *reflected) Set(name, value string) error {
	f, ok := r.schema.Field(name)
	if !ok {
		return nil
	}
	if !f.Kind.Supported() {
		return kscraperrors.New(kscraperrors.ErrorTypeSchema, "field cannot be set from text").
			WithDetail("field", name)
	}
	fv := r.v.FieldByIndex(r.schema.paths[name])
	if !fv.CanSet() {
		return kscraperrors.New(kscraperrors.ErrorTypeSchema, "field is not settable").
			WithDetail("field", name)
	}

	parsed, err := Parse(f.Kind, value)
	if err != nil {
		return err
	}
	switch x := parsed.(type) {
	case bool:
		fv.SetBool(x)
	case int32:
		return setInt(fv, name, int64(x))
	case int64:
		return setInt(fv, name, x)
	case float32:
		fv.SetFloat(float64(x))
	case float64:
		fv.SetFloat(x)
	case string:
		fv.SetString(x)
	}
	return nil
}

func setInt(fv reflect.Value, name string, x int64) error {
	if fv.CanInt() {
		if fv.OverflowInt(x) {
			return overflow(name, x)
		}
		fv.SetInt(x)
		return nil
	}
	if x < 0 || fv.OverflowUint(uint64(x)) {
		return overflow(name, x)
	}
	fv.SetUint(uint64(x))
	return nil
}

func overflow(name string, x int64) error {
	return kscraperrors.New(kscraperrors.ErrorTypeData, "value out of range").
		WithDetail("field", name).
		WithDetail("value", x)
}
