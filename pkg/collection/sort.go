package collection

import (
	"cmp"
	"strings"
	"time"
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortSpec selects a registered sort key and a direction. The zero value
// means "keep input order".
type SortSpec struct {
	Key       string
	Direction Direction
}

// IsZero reports whether no sort is selected.
func (s SortSpec) IsZero() bool {
	return s.Key == ""
}

func (s SortSpec) String() string {
	if s.IsZero() {
		return ""
	}
	dir := s.Direction
	if dir != Desc {
		dir = Asc
	}
	return s.Key + ":" + string(dir)
}

// ParseSort reads "key", "key:asc" or "key:desc". Anything else yields the
// zero SortSpec.
func ParseSort(raw string) SortSpec {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SortSpec{}
	}
	key, dir, found := strings.Cut(raw, ":")
	key = strings.TrimSpace(key)
	if key == "" {
		return SortSpec{}
	}
	if !found {
		return SortSpec{Key: key, Direction: Asc}
	}
	switch Direction(strings.ToLower(strings.TrimSpace(dir))) {
	case Asc:
		return SortSpec{Key: key, Direction: Asc}
	case Desc:
		return SortSpec{Key: key, Direction: Desc}
	default:
		return SortSpec{}
	}
}

// Comparator orders two records: negative when a sorts before b, zero on a
// tie. It must define a strict weak ordering.
type Comparator[T any] func(a, b T) int

// ByString compares a string field case-insensitively.
func ByString[T any](field func(T) string) Comparator[T] {
	return func(a, b T) int {
		return strings.Compare(strings.ToLower(field(a)), strings.ToLower(field(b)))
	}
}

// ByTime compares a time field. Zero times sort first.
func ByTime[T any](field func(T) time.Time) Comparator[T] {
	return func(a, b T) int {
		return field(a).Compare(field(b))
	}
}

// ByFloat compares a float field.
func ByFloat[T any](field func(T) float64) Comparator[T] {
	return func(a, b T) int {
		return cmp.Compare(field(a), field(b))
	}
}

// ByInt compares an int field.
func ByInt[T any](field func(T) int) Comparator[T] {
	return func(a, b T) int {
		return cmp.Compare(field(a), field(b))
	}
}

func reverse[T any](c Comparator[T]) Comparator[T] {
	return func(a, b T) int {
		return c(b, a)
	}
}
