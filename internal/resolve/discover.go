package resolve

import (
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	"github.com/roach88/cypherq/internal/schema"
	"github.com/roach88/cypherq/internal/value"
)

const (
	sentinelInt    = 7_000_000
	sentinelFloat  = 70_000.25
	sentinelSecond = 1_700_000_000
	maxFillDepth   = 8
)

var timeType = reflect.TypeOf(time.Time{})

// sentinels fills an instance with distinct values and remembers which
// top-level member each value was written under.
type sentinels struct {
	next  int
	owner map[string]string
}

func (s *sentinels) claim(key, member string) {
	s.owner[key] = member
}

func (s *sentinels) fill(v reflect.Value, member string, depth int) {
	if !v.CanSet() || depth > maxFillDepth {
		return
	}
	s.next++
	n := s.next

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		s.fill(v.Elem(), member, depth+1)
	case reflect.Struct:
		if v.Type() == timeType {
			t := time.Unix(int64(sentinelSecond+n), 0).UTC()
			v.Set(reflect.ValueOf(t))
			s.claim(timeKey(t), member)
			s.claim(stringKey(t.Format(time.RFC3339Nano)), member)
			return
		}
		for i := 0; i < v.NumField(); i++ {
			s.fill(v.Field(i), member, depth+1)
		}
	case reflect.String:
		str := "\x00cq" + strconv.Itoa(n)
		v.SetString(str)
		s.claim(stringKey(str), member)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := int64(sentinelInt + n)
		if v.OverflowInt(i) {
			return
		}
		v.SetInt(i)
		s.claim(numberKey(float64(i)), member)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := uint64(sentinelInt + n)
		if v.OverflowUint(u) {
			return
		}
		v.SetUint(u)
		s.claim(numberKey(float64(u)), member)
	case reflect.Float32, reflect.Float64:
		v.SetFloat(sentinelFloat + float64(n))
		s.claim(numberKey(v.Float()), member)
	case reflect.Bool:
		v.SetBool(true)
	case reflect.Slice:
		v.Set(reflect.MakeSlice(v.Type(), 1, 1))
		s.fill(v.Index(0), member, depth+1)
	case reflect.Array:
		if v.Len() > 0 {
			s.fill(v.Index(0), member, depth+1)
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return
		}
		m := reflect.MakeMapWithSize(v.Type(), 1)
		elem := reflect.New(v.Type().Elem()).Elem()
		s.fill(elem, member, depth+1)
		m.SetMapIndex(reflect.ValueOf("cq").Convert(v.Type().Key()), elem)
		v.Set(m)
	case reflect.Interface:
		if v.NumMethod() == 0 {
			str := "\x00cq" + strconv.Itoa(n)
			v.Set(reflect.ValueOf(str))
			s.claim(stringKey(str), member)
		}
	}
}

func stringKey(s string) string { return "s" + s }
func numberKey(f float64) string { return "n" + strconv.FormatFloat(f, 'f', -1, 64) }
func timeKey(t time.Time) string { return "t" + strconv.FormatInt(t.Unix(), 10) }

// firstOwned returns the first member owning a sentinel found in v.
func (s *sentinels) firstOwned(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		m, ok := s.owner[stringKey(t)]
		return m, ok
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return "", false
		}
		m, ok := s.owner[numberKey(f)]
		return m, ok
	case time.Time:
		m, ok := s.owner[timeKey(t)]
		return m, ok
	case value.Object:
		for _, e := range t {
			if m, ok := s.firstOwned(e.Value); ok {
				return m, true
			}
		}
		return "", false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		m, ok := s.owner[numberKey(float64(rv.Int()))]
		return m, ok
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		m, ok := s.owner[numberKey(float64(rv.Uint()))]
		return m, ok
	case reflect.Float32, reflect.Float64:
		m, ok := s.owner[numberKey(rv.Float())]
		return m, ok
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if m, ok := s.firstOwned(rv.Index(i).Interface()); ok {
				return m, true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if m, ok := s.firstOwned(iter.Value().Interface()); ok {
				return m, true
			}
		}
	}
	return "", false
}

// discover returns the wire name of each top-level member of info as the
// serializer emits it. Members whose field could not be told apart are
// left out; the caller falls back to the member name for them.
func discover(ser Serializer, info *schema.EntityTypeInfo) (map[string]string, error) {
	names := make(map[string]string)
	if info.GoType == nil || info.GoType.Kind() != reflect.Struct {
		return names, nil
	}

	inst := reflect.New(info.GoType)
	s := &sentinels{owner: make(map[string]string)}
	var members []string
	for _, m := range info.Members {
		if m.Index == nil {
			continue
		}
		field, ok := fieldByIndex(inst.Elem(), m.Index, true)
		if !ok {
			continue
		}
		members = append(members, m.Name)
		if !m.Navigation {
			s.fill(field, m.Name, 0)
		}
	}

	data, err := ser.Serialize(inst.Interface())
	if err != nil {
		return nil, err
	}
	fields, err := ser.Fields(data)
	if err != nil {
		return nil, err
	}

	var unmatched []string
	for _, f := range fields {
		member, ok := s.firstOwned(f.Value)
		if !ok {
			unmatched = append(unmatched, f.Key)
			continue
		}
		if _, taken := names[member]; !taken {
			names[member] = f.Key
		}
	}

	// Fields without a sentinel (bools, nil navigations) are paired with
	// the remaining members in order, but only when nothing is ambiguous.
	var remaining []string
	for _, m := range members {
		if _, ok := names[m]; !ok {
			remaining = append(remaining, m)
		}
	}
	if len(remaining) == len(unmatched) {
		for i, m := range remaining {
			names[m] = unmatched[i]
		}
	}
	return names, nil
}

// fieldByIndex is reflect.Value.FieldByIndex that allocates nil embedded
// pointers when alloc is set and reports them otherwise.
func fieldByIndex(v reflect.Value, index []int, alloc bool) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !alloc || !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
