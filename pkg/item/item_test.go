package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kscrap/kscrap/pkg/kscraperrors"
)

type address struct {
	Street string `kscrap:"calle"`
}

type base struct {
	Kind   string `kscrap:"tipo"`
	Street string `kscrap:"calle"`
}

type derived struct {
	base
	Price float64 `kscrap:"precio"`
	Rooms int32   `kscrap:"numHab"`
}

type withUnsupported struct {
	Name    string   `kscrap:"nombre"`
	Home    address  `kscrap:"hogar"`
	Tags    []string `kscrap:"tags"`
	Created time.Time
	secret  string
	Ignored int `kscrap:"-"`
	Small   uint8
}

type shadowing struct {
	base
	Street int64 `kscrap:"calle"`
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor[derived]()
	require.NoError(t, err)

	assert.Equal(t, []string{"tipo", "calle", "precio", "numHab"}, s.Names())
	assert.Equal(t, []FieldSpec{
		{Name: "tipo", Kind: KindString},
		{Name: "calle", Kind: KindString},
		{Name: "precio", Kind: KindFloat64},
		{Name: "numHab", Kind: KindInt32},
	}, s.SupportedFields())

	again, err := SchemaOf(&derived{})
	require.NoError(t, err)
	assert.Same(t, s, again)

	ptr, err := SchemaFor[*derived]()
	require.NoError(t, err)
	assert.Same(t, s, ptr)
}

type embeddedLast struct {
	Extra string `kscrap:"extra"`
	derived
	Floor int32 `kscrap:"planta"`
}

func TestSchemaForEmbeddedFirst(t *testing.T) {
	s, err := SchemaFor[embeddedLast]()
	require.NoError(t, err)

	assert.Equal(t, []string{"tipo", "calle", "precio", "numHab", "extra", "planta"}, s.Names())

	it, err := Reflect(embeddedLast{Extra: "x", derived: derived{base: base{Street: "Sol"}}})
	require.NoError(t, err)
	v, ok := it.Get("calle")
	require.True(t, ok)
	assert.Equal(t, "Sol", v)
	v, ok = it.Get("extra")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestSchemaForUnsupportedFields(t *testing.T) {
	s, err := SchemaFor[withUnsupported]()
	require.NoError(t, err)

	assert.Equal(t, []string{"nombre", "hogar", "tags", "Created", "Small"}, s.Names())
	assert.Equal(t, []FieldSpec{
		{Name: "nombre", Kind: KindString},
		{Name: "Small", Kind: KindInt32},
	}, s.SupportedFields())
	assert.Len(t, s.SkippedFields(), 3)

	it, err := Reflect(withUnsupported{Name: "x", Home: address{Street: "Sol"}, Small: 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nombre": "x", "Small": "7"}, Values(it))
	_, ok := it.Get("hogar")
	assert.False(t, ok)
	assert.Error(t, it.Set("hogar", "Sol"))
}

func TestSchemaForShadowing(t *testing.T) {
	s, err := SchemaFor[shadowing]()
	require.NoError(t, err)

	assert.Equal(t, []FieldSpec{
		{Name: "tipo", Kind: KindString},
		{Name: "calle", Kind: KindInt64},
	}, s.Fields())
}

func TestSchemaForNonStruct(t *testing.T) {
	_, err := SchemaFor[int]()
	require.Error(t, err)
	assert.True(t, kscraperrors.IsType(err, kscraperrors.ErrorTypeValidation))

	_, err = SchemaOf(nil)
	assert.Error(t, err)
}

func TestCovers(t *testing.T) {
	b, _ := SchemaFor[base]()
	d, _ := SchemaFor[derived]()
	other := MustDefine("other", FieldSpec{Name: "calle", Kind: KindString}, FieldSpec{Name: "precio", Kind: KindFloat64})

	assert.True(t, d.Covers(b))
	assert.True(t, b.Covers(b))
	assert.False(t, b.Covers(d))
	assert.False(t, other.Covers(b))
	assert.False(t, b.Covers(nil))

	it, err := Reflect(&derived{})
	require.NoError(t, err)
	assert.True(t, IsWideningCandidateOf(it, b))
	assert.False(t, IsWideningCandidateOf(other.New(), b))
}

func TestReflectGetSet(t *testing.T) {
	d := &derived{base: base{Kind: "piso", Street: "Sol"}, Price: 300000}
	it, err := Reflect(d)
	require.NoError(t, err)

	v, ok := it.Get("precio")
	require.True(t, ok)
	assert.Equal(t, "300000.0", v)

	require.NoError(t, it.Set("numHab", "3"))
	require.NoError(t, it.Set("calle", "Luna"))
	require.NoError(t, it.Set("missing", "whatever"))
	assert.Equal(t, int32(3), d.Rooms)
	assert.Equal(t, "Luna", d.Street)

	err = it.Set("numHab", "three")
	require.Error(t, err)
	assert.True(t, kscraperrors.IsType(err, kscraperrors.ErrorTypeData))

	assert.Same(t, d, Unwrap(it))
}

func TestReflectCopiesStructValues(t *testing.T) {
	d := derived{Price: 1}
	it, err := Reflect(d)
	require.NoError(t, err)
	require.NoError(t, it.Set("precio", "2"))
	assert.Equal(t, 1.0, d.Price)

	_, err = Reflect((*derived)(nil))
	assert.Error(t, err)
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name string
		f    float64
		bits int
		want string
	}{
		{name: "integral", f: 300000, bits: 64, want: "300000.0"},
		{name: "fraction", f: 1.5, bits: 64, want: "1.5"},
		{name: "float32 shortest", f: float64(float32(0.1)), bits: 32, want: "0.1"},
		{name: "large", f: 1e21, bits: 64, want: "1000000000000000000000.0"},
		{name: "negative zero", f: -0.0, bits: 64, want: "0.0"},
		{name: "nan", f: nan(), bits: 64, want: "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFloat(tt.f, tt.bits))
		})
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Double")
	require.NoError(t, err)
	assert.Equal(t, KindFloat64, k)

	var fromText Kind
	require.NoError(t, fromText.UnmarshalText([]byte("int")))
	assert.Equal(t, KindInt32, fromText)

	_, err = ParseKind("decimal")
	assert.Error(t, err)
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		kind    Kind
		in      string
		want    string
		wantErr bool
	}{
		{kind: KindFloat64, in: "1e3", want: "1000.0"},
		{kind: KindBool, in: "TRUE", want: "true"},
		{kind: KindInt32, in: " 42 ", want: "42"},
		{kind: KindInt32, in: "4294967296", wantErr: true},
		{kind: KindString, in: "a,b", want: "a,b"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.in, func(t *testing.T) {
			got, err := Canonical(tt.kind, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord(t *testing.T) {
	s, err := Define("listing",
		FieldSpec{Name: "calle", Kind: KindString},
		FieldSpec{Name: "m2", Kind: KindInt32},
		FieldSpec{Name: "precio", Kind: KindFloat64},
	)
	require.NoError(t, err)

	r := s.NewRecord()
	require.NoError(t, r.SetAll(map[string]string{"calle": "Sol", "precio": "300000", "extra": "x"}))

	assert.Equal(t, map[string]string{"calle": "Sol", "m2": "0", "precio": "300000.0"}, Values(r))
	assert.Equal(t, map[string]interface{}{"calle": "Sol", "m2": int32(0), "precio": 300000.0}, TypedValues(r))
	assert.Error(t, r.Set("m2", "big"))

	assert.True(t, SameType(s, r.Schema()))
	assert.False(t, SameType(s, MustDefine("listing", FieldSpec{Name: "calle", Kind: KindString})))
}

func TestDefineValidation(t *testing.T) {
	_, err := Define("")
	assert.Error(t, err)

	_, err = Define("x", FieldSpec{Name: "a"}, FieldSpec{Name: "a"})
	assert.Error(t, err)

	assert.Panics(t, func() { MustDefine("x", FieldSpec{}) })
}

func TestSchemaNew(t *testing.T) {
	s, _ := SchemaFor[derived]()
	it := s.New()
	require.NoError(t, it.Set("precio", "2.5"))
	d, ok := Unwrap(it).(*derived)
	require.True(t, ok)
	assert.Equal(t, 2.5, d.Price)
}
