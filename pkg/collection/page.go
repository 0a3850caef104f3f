package collection

import "fmt"

// DefaultPageSize is used when neither the view nor the caller sets one.
const DefaultPageSize = 10

// PageWindow describes the page that Apply returned. It is derived from the
// filtered count and is never set by callers.
type PageWindow struct {
	PageIndex  int `json:"page_index"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

func newPageWindow(totalItems, pageIndex, pageSize int) PageWindow {
	totalPages := 1
	if totalItems > 0 {
		// Written to stay clear of overflow for page sizes near math.MaxInt.
		totalPages = (totalItems-1)/pageSize + 1
	}
	pageIndex = max(1, min(pageIndex, totalPages))
	return PageWindow{
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Offset is the index of the first item of the page in the filtered list.
func (w PageWindow) Offset() int {
	return (w.PageIndex - 1) * w.PageSize
}

// HasPrev reports whether a previous page exists.
func (w PageWindow) HasPrev() bool { return w.PageIndex > 1 }

// HasNext reports whether a following page exists.
func (w PageWindow) HasNext() bool { return w.PageIndex < w.TotalPages }

// Result is the output of View.Apply.
type Result[T any] struct {
	Items  []T        `json:"items"`
	Window PageWindow `json:"window"`
}

// Empty reports whether no record passed the filters.
func (r Result[T]) Empty() bool {
	return r.Window.TotalItems == 0
}

// Summary renders the post-filter count, e.g. "12 results".
func (r Result[T]) Summary() string {
	if r.Window.TotalItems == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", r.Window.TotalItems)
}
