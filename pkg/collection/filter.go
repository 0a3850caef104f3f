package collection

import "strings"

// All is the filter value meaning "no constraint".
const All = "all"

// Filters maps a registered filter name to its current value.
type Filters map[string]string

// Predicate reports whether record passes a filter set to value. It must be
// pure and must not panic.
type Predicate[T any] func(record T, value string) bool

// TextField selects a searchable string from a record.
type TextField[T any] func(T) string

type filter[T any] struct {
	name  string
	match Predicate[T]
}

func inactive(value string) bool {
	return value == "" || value == All
}

// searchPredicate ORs a case-insensitive substring test across fields.
func searchPredicate[T any](fields []TextField[T]) Predicate[T] {
	return func(record T, value string) bool {
		needle := strings.ToLower(value)
		for _, field := range fields {
			if field == nil {
				continue
			}
			if strings.Contains(strings.ToLower(field(record)), needle) {
				return true
			}
		}
		return false
	}
}

func equalsPredicate[T any](field func(T) string) Predicate[T] {
	return func(record T, value string) bool {
		return field(record) == value
	}
}
