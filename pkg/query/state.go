package query

import "time"

// Status summarizes a State.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// State is a snapshot of one cached collection.
//
// HasData is false until the first successful fetch; absent data means
// "unknown", not "empty". After a failed refetch IsError is set and Data
// keeps its last successful value.
type State[T any] struct {
	Data      []T
	HasData   bool
	IsLoading bool
	IsError   bool
	Err       error
	Stale     bool
	UpdatedAt time.Time
}

// Items returns Data, or an empty slice while no data has arrived.
func (s State[T]) Items() []T {
	if !s.HasData || s.Data == nil {
		return []T{}
	}
	return s.Data
}

// Status derives the summary status.
func (s State[T]) Status() Status {
	switch {
	case s.IsLoading:
		return StatusLoading
	case s.IsError:
		return StatusError
	case s.HasData:
		return StatusSuccess
	default:
		return StatusIdle
	}
}
