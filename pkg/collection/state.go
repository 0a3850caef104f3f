package collection

// ViewState is what a list screen renders in place of, or around, the page.
type ViewState int

const (
	// StateLoading shows a skeleton: the first fetch is still in flight.
	StateLoading ViewState = iota
	// StateError shows an error panel: nothing was ever loaded.
	StateError
	// StateEmpty shows the "no results" message.
	StateEmpty
	// StateReady renders the page.
	StateReady
)

func (s ViewState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Derive picks the ViewState. hasData is false until the first successful
// fetch. A failed refetch over existing data still renders that data.
func Derive(isLoading, isError, hasData bool, totalItems int) ViewState {
	switch {
	case !hasData && isLoading:
		return StateLoading
	case !hasData && isError:
		return StateError
	case totalItems == 0:
		return StateEmpty
	default:
		return StateReady
	}
}
