package collection

import "slices"

// View is a declarative, reusable list configuration. It holds no per-call
// state, so a single View may serve concurrent Apply calls.
type View[T any] struct {
	filters  []filter[T]
	sorts    map[string]Comparator[T]
	pageSize int
}

// Option configures a View.
type Option[T any] func(*View[T])

// NewView builds a View from opts.
func NewView[T any](opts ...Option[T]) *View[T] {
	v := &View[T]{
		sorts:    make(map[string]Comparator[T]),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// WithSearch registers a text search named name over fields.
func WithSearch[T any](name string, fields ...TextField[T]) Option[T] {
	return WithFilter(name, searchPredicate(fields))
}

// WithEquals registers an equality filter on a foreign key or status field.
func WithEquals[T any](name string, field func(T) string) Option[T] {
	return WithFilter(name, equalsPredicate(field))
}

// WithFilter registers a custom predicate. Registering a name twice
// replaces the earlier predicate.
func WithFilter[T any](name string, match Predicate[T]) Option[T] {
	return func(v *View[T]) {
		if match == nil {
			return
		}
		for i := range v.filters {
			if v.filters[i].name == name {
				v.filters[i].match = match
				return
			}
		}
		v.filters = append(v.filters, filter[T]{name: name, match: match})
	}
}

// WithSort registers a sort key.
func WithSort[T any](key string, c Comparator[T]) Option[T] {
	return func(v *View[T]) {
		if c != nil {
			v.sorts[key] = c
		}
	}
}

// WithPageSize sets the page size used when Apply receives a non-positive one.
func WithPageSize[T any](n int) Option[T] {
	return func(v *View[T]) {
		if n > 0 {
			v.pageSize = n
		}
	}
}

// PageSize returns the default page size.
func (v *View[T]) PageSize() int { return v.pageSize }

// SortKeys lists the registered sort keys in sorted order.
func (v *View[T]) SortKeys() []string {
	keys := make([]string, 0, len(v.sorts))
	for k := range v.sorts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FilterNames lists the registered filters in registration order.
func (v *View[T]) FilterNames() []string {
	names := make([]string, 0, len(v.filters))
	for _, f := range v.filters {
		names = append(names, f.name)
	}
	return names
}

// Apply filters, sorts and paginates records.
//
// Unregistered filter names and unknown sort keys are ignored. pageIndex is
// clamped into [1, TotalPages]. The returned Items never aliases records.
func (v *View[T]) Apply(records []T, filters Filters, sort SortSpec, pageIndex, pageSize int) Result[T] {
	if pageSize <= 0 {
		pageSize = v.pageSize
	}

	active := make([]filter[T], 0, len(v.filters))
	for _, f := range v.filters {
		if value := filters[f.name]; !inactive(value) {
			active = append(active, f)
		}
	}

	matched := make([]T, 0, len(records))
	for _, record := range records {
		if passes(record, active, filters) {
			matched = append(matched, record)
		}
	}

	if c, ok := v.comparator(sort); ok {
		slices.SortStableFunc(matched, c)
	}

	window := newPageWindow(len(matched), pageIndex, pageSize)
	start := min(window.Offset(), len(matched))
	end := start + min(pageSize, len(matched)-start)

	items := make([]T, end-start)
	copy(items, matched[start:end])

	return Result[T]{Items: items, Window: window}
}

func passes[T any](record T, active []filter[T], values Filters) bool {
	for _, f := range active {
		if !f.match(record, values[f.name]) {
			return false
		}
	}
	return true
}

func (v *View[T]) comparator(sort SortSpec) (Comparator[T], bool) {
	if sort.IsZero() {
		return nil, false
	}
	c, ok := v.sorts[sort.Key]
	if !ok {
		return nil, false
	}
	if sort.Direction == Desc {
		return reverse(c), true
	}
	return c, true
}
