package pattern

import (
	"strconv"
	"strings"

	"github.com/roach88/cypherq/internal/builderr"
)

// Unbounded marks an open end of a hop range.
const Unbounded = -1

// Hops is a variable-length range. Either bound may be Unbounded.
type Hops struct {
	Min int
	Max int
}

// AnyLength matches paths of any length: *.
func AnyLength() Hops { return Hops{Min: Unbounded, Max: Unbounded} }

// Exactly matches n hops: *n.
func Exactly(n int) Hops { return Hops{Min: n, Max: n} }

// Between matches min to max hops: *min..max.
func Between(min, max int) Hops { return Hops{Min: min, Max: max} }

// AtMost matches up to max hops: *..max.
func AtMost(max int) Hops { return Hops{Min: Unbounded, Max: max} }

// AtLeast matches min or more hops: *min..
func AtLeast(min int) Hops { return Hops{Min: min, Max: Unbounded} }

func (h Hops) String() string {
	switch {
	case h.Min == Unbounded && h.Max == Unbounded:
		return "*"
	case h.Min == h.Max:
		return "*" + strconv.Itoa(h.Min)
	case h.Min == Unbounded:
		return "*.." + strconv.Itoa(h.Max)
	case h.Max == Unbounded:
		return "*" + strconv.Itoa(h.Min) + ".."
	}
	return "*" + strconv.Itoa(h.Min) + ".." + strconv.Itoa(h.Max)
}

// Validate rejects negative bounds other than Unbounded and inverted
// ranges.
func (h Hops) Validate() error {
	if h.Min < Unbounded || h.Max < Unbounded {
		return builderr.New(builderr.CodeInvalidConstraint, "negative hop bound in %d..%d", h.Min, h.Max)
	}
	if h.Min != Unbounded && h.Max != Unbounded && h.Min > h.Max {
		return builderr.New(builderr.CodeInvalidConstraint, "hop range %d..%d is inverted", h.Min, h.Max)
	}
	return nil
}

// ParseHops reads a range written as String writes it, with or without
// the leading star: "*", "2", "1..3", "..3", "2..".
func ParseHops(s string) (Hops, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "*")
	if s == "" {
		return AnyLength(), nil
	}
	lo, hi, ranged := strings.Cut(s, "..")
	from, err := hopBound(lo, s)
	if err != nil {
		return Hops{}, err
	}
	if !ranged {
		return Exactly(from), nil
	}
	to, err := hopBound(hi, s)
	if err != nil {
		return Hops{}, err
	}
	h := Hops{Min: from, Max: to}
	return h, h.Validate()
}

func hopBound(s, whole string) (int, error) {
	if s == "" {
		return Unbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, builderr.New(builderr.CodeInvalidConstraint, "bad hop bound %q in %q", s, whole)
	}
	return n, nil
}
