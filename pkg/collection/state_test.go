package collection

import "testing"

func TestDerive(t *testing.T) {
	tests := []struct {
		name      string
		isLoading bool
		isError   bool
		hasData   bool
		total     int
		want      ViewState
	}{
		{name: "first load", isLoading: true, want: StateLoading},
		{name: "first load failed", isError: true, want: StateError},
		{name: "loaded empty", hasData: true, want: StateEmpty},
		{name: "loaded", hasData: true, total: 4, want: StateReady},
		{name: "refetching keeps page", isLoading: true, hasData: true, total: 4, want: StateReady},
		{name: "stale while error", isError: true, hasData: true, total: 4, want: StateReady},
		{name: "filtered to nothing", hasData: true, total: 0, want: StateEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.isLoading, tt.isError, tt.hasData, tt.total); got != tt.want {
				t.Errorf("Derive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImageFailures(t *testing.T) {
	f := NewImageFailures(1)
	if f.ShouldFallback("7") {
		t.Error("unknown id should not fall back")
	}
	if n := f.MarkFailed("7"); n != 1 {
		t.Errorf("MarkFailed() = %d", n)
	}
	if f.ShouldFallback("7") {
		t.Error("one failure is within a retry budget of 1")
	}
	f.MarkFailed("7")
	if !f.ShouldFallback("7") || f.Retries("7") != 2 {
		t.Errorf("expected fallback after 2 failures, retries = %d", f.Retries("7"))
	}
	f.MarkFailed("8")
	if f.Len() != 2 {
		t.Errorf("Len() = %d", f.Len())
	}
	f.Reset("7")
	if f.ShouldFallback("7") || f.Retries("7") != 0 {
		t.Error("Reset should forget the id")
	}

	strict := NewImageFailures(0)
	strict.MarkFailed("1")
	if !strict.ShouldFallback("1") {
		t.Error("zero budget falls back after first failure")
	}
}
