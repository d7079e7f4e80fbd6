package item

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/kscrap/kscrap/pkg/kscraperrors"
)

// Kind is the storage kind of a field. Only the scalar kinds below can back a
// column; everything else maps to KindUnsupported.
type Kind int

const (
	KindUnsupported Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
)

var kindNames = map[Kind]string{
	KindUnsupported: "unsupported",
	KindBool:        "bool",
	KindInt32:       "int32",
	KindInt64:       "int64",
	KindFloat32:     "float32",
	KindFloat64:     "float64",
	KindString:      "string",
}

var kindAliases = map[string]Kind{
	"bool":    KindBool,
	"boolean": KindBool,
	"int32":   KindInt32,
	"int":     KindInt32,
	"int64":   KindInt64,
	"long":    KindInt64,
	"float32": KindFloat32,
	"float":   KindFloat32,
	"float64": KindFloat64,
	"double":  KindFloat64,
	"string":  KindString,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unsupported"
}

// Supported reports whether values of this kind can be stored in a column.
func (k Kind) Supported() bool {
	return k >= KindBool && k <= KindString
}

// ParseKind resolves a kind name as written in configuration files.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return KindUnsupported, kscraperrors.Newf(kscraperrors.ErrorTypeSchema, "unknown field kind %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindOf maps a Go type to its storage kind.
func KindOf(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return KindInt32
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return KindInt64
	case reflect.Float32:
		return KindFloat32
	case reflect.Float64:
		return KindFloat64
	case reflect.String:
		return KindString
	default:
		return KindUnsupported
	}
}

// Parse converts the textual form of a value into its typed Go value:
// bool, int32, int64, float32, float64 or string.
func Parse(k Kind, s string) (interface{}, error) {
	switch k {
	case KindBool:
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, parseError(k, s, err)
		}
		return v, nil
	case KindInt32:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, parseError(k, s, err)
		}
		return int32(v), nil
	case KindInt64:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, parseError(k, s, err)
		}
		return v, nil
	case KindFloat32:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return nil, parseError(k, s, err)
		}
		return float32(v), nil
	case KindFloat64:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, parseError(k, s, err)
		}
		return v, nil
	case KindString:
		return s, nil
	default:
		return nil, kscraperrors.Newf(kscraperrors.ErrorTypeSchema, "kind %s cannot hold values", k)
	}
}

func parseError(k Kind, s string, err error) error {
	return kscraperrors.Wrap(err, kscraperrors.ErrorTypeData, "unparseable value").
		WithDetail("kind", k.String()).
		WithDetail("value", s)
}

// Format renders a typed value produced by Parse (or any Go value of a
// matching kind) in its canonical textual form.
func Format(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return FormatBool(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float32:
		return FormatFloat(float64(x), 32)
	case float64:
		return FormatFloat(x, 64)
	case string:
		return x
	default:
		rv := reflect.ValueOf(v)
		return formatValue(KindOf(rv.Type()), rv)
	}
}

// FormatBool renders true or false.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// FormatFloat renders the shortest representation that round-trips at the
// given bit size. Integral values keep a trailing ".0" (300000 renders as
// 300000.0) and exponents are never used.
func FormatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatValue(k Kind, v reflect.Value) string {
	switch k {
	case KindBool:
		return FormatBool(v.Bool())
	case KindInt32, KindInt64:
		if v.CanInt() {
			return strconv.FormatInt(v.Int(), 10)
		}
		return strconv.FormatUint(v.Uint(), 10)
	case KindFloat32:
		return FormatFloat(v.Float(), 32)
	case KindFloat64:
		return FormatFloat(v.Float(), 64)
	case KindString:
		return v.String()
	default:
		return ""
	}
}

// Canonical parses s as kind k and renders it back, normalizing values such
// as "1e3" for a float column into "1000.0".
func Canonical(k Kind, s string) (string, error) {
	v, err := Parse(k, s)
	if err != nil {
		return "", err
	}
	return Format(v), nil
}
