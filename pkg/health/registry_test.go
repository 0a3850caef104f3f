package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type checkable struct{ err error }

func (c checkable) HealthCheck(context.Context) error { return c.err }

type slowCheckable struct{}

func (slowCheckable) HealthCheck(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRegistry_Aggregate(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{name: "empty", want: StatusHealthy},
		{
			name:     "all healthy",
			checkers: []Checker{NewAdapterChecker("db", checkable{}, 0), NewAdapterChecker("cache", checkable{}, 0)},
			want:     StatusHealthy,
		},
		{
			name: "degraded wins over healthy",
			checkers: []Checker{
				NewAdapterChecker("db", checkable{}, 0),
				NewCustomChecker("schema", func(context.Context) (Status, string, error) { return StatusDegraded, "1 pending", nil }),
			},
			want: StatusDegraded,
		},
		{
			name: "unhealthy wins over degraded",
			checkers: []Checker{
				NewAdapterChecker("db", checkable{err: errors.New("closed")}, 0),
				NewCustomChecker("schema", func(context.Context) (Status, string, error) { return StatusDegraded, "", nil }),
			},
			want: StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, c := range tt.checkers {
				r.Register(c)
			}
			got := r.Check(context.Background())
			if got.Status != tt.want {
				t.Fatalf("status = %s, want %s", got.Status, tt.want)
			}
			if len(got.Checks) != len(tt.checkers) {
				t.Fatalf("checks = %d, want %d", len(got.Checks), len(tt.checkers))
			}
			for i := 1; i < len(got.Checks); i++ {
				if got.Checks[i-1].Name > got.Checks[i].Name {
					t.Fatalf("checks not sorted: %v", got.Checks)
				}
			}
		})
	}
}

func TestRegistry_RegisterReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.Register(NewAdapterChecker("db", checkable{err: errors.New("down")}, 0))
	r.Register(NewAdapterChecker("db", checkable{}, 0))
	if names := r.List(); len(names) != 1 || names[0] != "db" {
		t.Fatalf("List() = %v", names)
	}
	if !r.Check(context.Background()).IsHealthy() {
		t.Fatal("replacement checker should be healthy")
	}
}

func TestAdapterChecker_Timeout(t *testing.T) {
	c := NewAdapterChecker("slow", slowCheckable{}, 20*time.Millisecond)
	res := c.Check(context.Background())
	if res.Status != StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy", res.Status)
	}
	if res.Error == "" {
		t.Fatal("expected timeout error text")
	}
}

func TestCustomChecker_ErrorIsUnhealthy(t *testing.T) {
	c := NewCustomChecker("x", func(context.Context) (Status, string, error) {
		return StatusHealthy, "looks fine", errors.New("but is not")
	})
	res := c.Check(context.Background())
	if res.Status != StatusUnhealthy || res.Error != "but is not" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCustomChecker("schema", func(context.Context) (Status, string, error) { return StatusDegraded, "", nil }))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded code = %d, want 200", rec.Code)
	}
	var body Report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != StatusDegraded || len(body.Checks) != 1 {
		t.Fatalf("body = %+v", body)
	}

	r.Register(NewAdapterChecker("db", checkable{err: errors.New("closed")}, 0))
	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy code = %d, want 503", rec.Code)
	}
}
