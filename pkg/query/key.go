package query

import "strings"

// Key identifies a cached collection, e.g. "accommodations" or
// "accommodations:category:7". Segments are separated by colons; a key
// covers every key that extends it.
type Key string

// NewKey returns the key of a whole collection.
func NewKey(collection string) Key {
	return Key(strings.TrimSpace(collection))
}

// With narrows k by a field/value pair. Empty values leave k unchanged.
func (k Key) With(field, value string) Key {
	if field == "" || value == "" {
		return k
	}
	return Key(string(k) + ":" + field + ":" + value)
}

// Item returns the key of a single record's detail view.
func (k Key) Item(id string) Key {
	if id == "" {
		return k
	}
	return Key(string(k) + ":" + id)
}

// Collection returns the first segment.
func (k Key) Collection() string {
	head, _, _ := strings.Cut(string(k), ":")
	return head
}

// Covers reports whether invalidating k must also invalidate other.
func (k Key) Covers(other Key) bool {
	if k == other {
		return true
	}
	return k != "" && strings.HasPrefix(string(other), string(k)+":")
}

func (k Key) String() string { return string(k) }
