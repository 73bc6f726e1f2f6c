package expr

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// hostFunc folds a call whose operands are already evaluated.
type hostFunc func(args []any) (any, error)

type hostKey struct {
	owner  string
	method string
	arity  int
}

var hostFuncs = map[hostKey]hostFunc{}

func host(owner, method string, arity int, fn hostFunc) {
	hostFuncs[hostKey{owner, method, arity}] = fn
}

func lookupHostFunc(owner, method string, arity int) (hostFunc, bool) {
	fn, ok := hostFuncs[hostKey{owner, method, arity}]
	return fn, ok
}

func str(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", notEvaluable("expected string, got %T", v)
	}
	return s, nil
}

func integer(v any) (int64, error) {
	i, ok := normalize(v).(int64)
	if !ok {
		return 0, notEvaluable("expected int, got %T", v)
	}
	return i, nil
}

func closure(v any) (*Closure, error) {
	c, ok := v.(*Closure)
	if !ok {
		return nil, notEvaluable("expected lambda, got %T", v)
	}
	return c, nil
}

func truthy(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, notEvaluable("predicate returned %T, not bool", v)
	}
	return b, nil
}

func stringFunc(method string, fn func(string) string) {
	host(OwnerStrings, method, 1, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	})
}

func stringPredicate(method string, fn func(string, string) bool) {
	host(OwnerStrings, method, 2, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		sub, err := str(args[1])
		if err != nil {
			return nil, err
		}
		return fn(s, sub), nil
	})
}

func mathFunc(method string, fn func(float64) float64) {
	host(OwnerMath, method, 1, func(args []any) (any, error) {
		f, ok := toFloat(args[0])
		if !ok {
			return nil, notEvaluable("math.%s needs a number, got %T", method, args[0])
		}
		return fn(f), nil
	})
}

func substring(s string, start, length int64) (string, error) {
	runes := []rune(s)
	if start < 0 || start > int64(len(runes)) {
		return "", notEvaluable("substring start %d out of range", start)
	}
	end := int64(len(runes))
	if length >= 0 && start+length < end {
		end = start + length
	}
	return string(runes[start:end]), nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func init() {
	stringFunc("ToUpper", strings.ToUpper)
	stringFunc("ToLower", strings.ToLower)
	stringFunc("TrimSpace", strings.TrimSpace)
	stringFunc("Trim", strings.TrimSpace)
	stringFunc("TrimStart", func(s string) string { return strings.TrimLeft(s, " \t\r\n") })
	stringFunc("TrimEnd", func(s string) string { return strings.TrimRight(s, " \t\r\n") })
	stringFunc("Reverse", reverseString)
	stringPredicate("Contains", strings.Contains)
	stringPredicate("HasPrefix", strings.HasPrefix)
	stringPredicate("HasSuffix", strings.HasSuffix)
	host(OwnerStrings, "Len", 1, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		return int64(utf8.RuneCountInString(s)), nil
	})
	host(OwnerStrings, "Replace", 3, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		old, err := str(args[1])
		if err != nil {
			return nil, err
		}
		repl, err := str(args[2])
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, old, repl), nil
	})
	host(OwnerStrings, "Split", 2, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		sep, err := str(args[1])
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	})
	host(OwnerStrings, "Substring", 2, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		start, err := integer(args[1])
		if err != nil {
			return nil, err
		}
		return substring(s, start, -1)
	})
	host(OwnerStrings, "Substring", 3, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		start, err := integer(args[1])
		if err != nil {
			return nil, err
		}
		length, err := integer(args[2])
		if err != nil {
			return nil, err
		}
		return substring(s, start, length)
	})
	host(OwnerStrings, "Left", 2, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		n, err := integer(args[1])
		if err != nil {
			return nil, err
		}
		return substring(s, 0, n)
	})
	host(OwnerStrings, "Right", 2, func(args []any) (any, error) {
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		n, err := integer(args[1])
		if err != nil {
			return nil, err
		}
		runes := int64(utf8.RuneCountInString(s))
		return substring(s, max(runes-n, 0), -1)
	})

	mathFunc("Abs", math.Abs)
	mathFunc("Sqrt", math.Sqrt)
	mathFunc("Floor", math.Floor)
	mathFunc("Ceil", math.Ceil)
	mathFunc("Round", math.Round)
	mathFunc("Exp", math.Exp)
	mathFunc("Log", math.Log)
	mathFunc("Log10", math.Log10)
	mathFunc("Sin", math.Sin)
	mathFunc("Cos", math.Cos)
	mathFunc("Tan", math.Tan)
	mathFunc("Asin", math.Asin)
	mathFunc("Acos", math.Acos)
	mathFunc("Atan", math.Atan)
	mathFunc("Sign", func(f float64) float64 {
		switch {
		case f > 0:
			return 1
		case f < 0:
			return -1
		}
		return 0
	})
	host(OwnerMath, "Pow", 2, func(args []any) (any, error) {
		return Apply(OpPower, args[0], args[1])
	})
	host(OwnerMath, "Min", 2, func(args []any) (any, error) {
		c, err := compare(args[0], args[1])
		if err != nil {
			return nil, err
		}
		if c <= 0 {
			return args[0], nil
		}
		return args[1], nil
	})
	host(OwnerMath, "Max", 2, func(args []any) (any, error) {
		c, err := compare(args[0], args[1])
		if err != nil {
			return nil, err
		}
		if c >= 0 {
			return args[0], nil
		}
		return args[1], nil
	})

	host(OwnerConv, "ToString", 1, func(args []any) (any, error) { return Convert(args[0], "string") })
	host(OwnerConv, "ToInteger", 1, func(args []any) (any, error) { return Convert(args[0], "int") })
	host(OwnerConv, "ToFloat", 1, func(args []any) (any, error) { return Convert(args[0], "float") })
	host(OwnerConv, "ToBoolean", 1, func(args []any) (any, error) { return Convert(args[0], "bool") })

	registerSeqFuncs()
}

func registerSeqFuncs() {
	host(OwnerSeq, "Where", 2, func(args []any) (any, error) {
		return filterList(args[0], args[1])
	})
	host(OwnerSeq, "Select", 2, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		fn, err := closure(args[1])
		if err != nil {
			return nil, err
		}
		out := make([]any, len(list))
		for i, e := range list {
			if out[i], err = fn.Invoke(e); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
	host(OwnerSeq, "Aggregate", 3, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		fn, err := closure(args[2])
		if err != nil {
			return nil, err
		}
		acc := args[1]
		for _, e := range list {
			if acc, err = fn.Invoke(acc, e); err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
	host(OwnerSeq, "Any", 1, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		return len(list) > 0, nil
	})
	quantifier := func(method string, decide func(matches, total int) bool) {
		host(OwnerSeq, method, 2, func(args []any) (any, error) {
			list, err := listOf(args[0])
			if err != nil {
				return nil, err
			}
			matched, err := filterList(list, args[1])
			if err != nil {
				return nil, err
			}
			return decide(len(matched.([]any)), len(list)), nil
		})
	}
	quantifier("Any", func(m, _ int) bool { return m > 0 })
	quantifier("All", func(m, n int) bool { return m == n })
	quantifier("None", func(m, _ int) bool { return m == 0 })
	quantifier("Single", func(m, _ int) bool { return m == 1 })
	host(OwnerSeq, "Contains", 2, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			if equal(e, args[1]) {
				return true, nil
			}
		}
		return false, nil
	})
	count := func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		return int64(len(list)), nil
	}
	host(OwnerSeq, "Count", 1, count)
	host(OwnerSeq, "Len", 1, count)
	host(OwnerSeq, "Count", 2, func(args []any) (any, error) {
		matched, err := filterList(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return int64(len(matched.([]any))), nil
	})
	host(OwnerSeq, "Sum", 1, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		var acc any = int64(0)
		for _, e := range list {
			if acc, err = Apply(OpAdd, acc, e); err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
	host(OwnerSeq, "First", 1, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list[0], nil
	})
	host(OwnerSeq, "Last", 1, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list[len(list)-1], nil
	})
	host(OwnerSeq, "Reverse", 1, func(args []any) (any, error) {
		list, err := listOf(args[0])
		if err != nil {
			return nil, err
		}
		out := make([]any, len(list))
		for i, e := range list {
			out[len(list)-1-i] = e
		}
		return out, nil
	})
	host(OwnerSeq, "Range", 2, func(args []any) (any, error) {
		from, err := integer(args[0])
		if err != nil {
			return nil, err
		}
		to, err := integer(args[1])
		if err != nil {
			return nil, err
		}
		if to-from > 1<<16 {
			return nil, notEvaluable("range %d..%d too large to fold", from, to)
		}
		var out []any
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out, nil
	})
}

// filterList keeps the elements of src for which pred returns true.
func filterList(src, pred any) (any, error) {
	list, err := listOf(src)
	if err != nil {
		return nil, err
	}
	fn, err := closure(pred)
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, e := range list {
		r, err := fn.Invoke(e)
		if err != nil {
			return nil, err
		}
		ok, err := truthy(r)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}
