package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedLiteral is returned for values that cannot be written as a
// Cypher literal without a serializer (structs, funcs, channels).
var ErrUnsupportedLiteral = errors.New("value: unsupported literal type")

// Entry is one key/value pair of an ordered object.
type Entry struct {
	Key   string
	Value any
}

// Object is an object whose key order is significant.
// Serializers produce Objects so field order is kept in literal output.
type Object []Entry

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Map converts the object to an unordered map.
func (o Object) Map() map[string]any {
	m := make(map[string]any, len(o))
	for _, e := range o {
		m[e.Key] = e.Value
	}
	return m
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent returns name unchanged when it is a plain identifier and
// backtick-quoted otherwise.
func QuoteIdent(name string) string {
	if identRe.MatchString(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Literal renders v as Cypher literal text.
//
// Supported: nil, bool, all integer and float kinds, string, json.Number,
// time.Time, time.Duration, Object, maps with string keys, slices and arrays.
// Pointers are dereferenced. Anything else returns ErrUnsupportedLiteral.
func Literal(v any) (string, error) {
	var sb strings.Builder
	if err := writeLiteral(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// FormatFloat renders f so that it always reads back as a float:
// 2 becomes "2.0", 0.5 stays "0.5".
func FormatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("value: non-finite float %v has no literal form", f)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.Abs(f) >= 1e21 {
		s = strconv.FormatFloat(f, 'e', -1, 64)
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, nil
}

// QuoteString renders s as a double-quoted Cypher string literal.
func QuoteString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func writeLiteral(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
		return nil
	case string:
		sb.WriteString(QuoteString(val))
		return nil
	case bool:
		sb.WriteString(strconv.FormatBool(val))
		return nil
	case json.Number:
		sb.WriteString(val.String())
		return nil
	case float64:
		s, err := FormatFloat(val)
		if err != nil {
			return err
		}
		sb.WriteString(s)
		return nil
	case float32:
		s, err := FormatFloat(float64(val))
		if err != nil {
			return err
		}
		sb.WriteString(s)
		return nil
	case time.Time:
		sb.WriteString("datetime(")
		sb.WriteString(QuoteString(val.Format(time.RFC3339Nano)))
		sb.WriteString(")")
		return nil
	case time.Duration:
		sb.WriteString("duration({ seconds: ")
		s, _ := FormatFloat(val.Seconds())
		sb.WriteString(s)
		sb.WriteString(" })")
		return nil
	case Object:
		return writeObject(sb, val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return compareKeysRFC8785(keys[i], keys[j]) < 0 })
		obj := make(Object, len(keys))
		for i, k := range keys {
			obj[i] = Entry{Key: k, Value: val[k]}
		}
		return writeObject(sb, obj)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			sb.WriteString("null")
			return nil
		}
		return writeLiteral(sb, rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sb.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sb.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32, reflect.Float64:
		return writeLiteral(sb, rv.Float())
	case reflect.String:
		return writeLiteral(sb, rv.String())
	case reflect.Bool:
		return writeLiteral(sb, rv.Bool())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			sb.WriteString("null")
			return nil
		}
		sb.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := writeLiteral(sb, rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		sb.WriteByte(']')
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key %s", ErrUnsupportedLiteral, rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return writeLiteral(sb, m)
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedLiteral, v)
}

func writeObject(sb *strings.Builder, obj Object) error {
	if len(obj) == 0 {
		sb.WriteString("{}")
		return nil
	}
	sb.WriteString("{ ")
	for i, e := range obj {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(QuoteIdent(e.Key))
		sb.WriteString(": ")
		if err := writeLiteral(sb, e.Value); err != nil {
			return fmt.Errorf("%s: %w", e.Key, err)
		}
	}
	sb.WriteString(" }")
	return nil
}

// IsScalar reports whether v renders without a serializer.
// Structs other than time.Time are not scalar.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number, time.Time, time.Duration, Object, map[string]any:
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsScalar(rv.Elem().Interface())
	case reflect.Struct, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !IsScalar(rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return false
		}
		iter := rv.MapRange()
		for iter.Next() {
			if !IsScalar(iter.Value().Interface()) {
				return false
			}
		}
		return true
	}
	return true
}
