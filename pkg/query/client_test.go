package query

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type record struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type fakeSource struct {
	calls atomic.Int32
	mu    sync.Mutex
	data  []record
	err   error
}

func (f *fakeSource) fetch(ctx context.Context) ([]record, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]record(nil), f.data...), nil
}

func (f *fakeSource) set(data []record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	f.err = err
}

func TestQuery_StateBeforeFirstLoad(t *testing.T) {
	c := NewClient()
	q := NewQuery(c, NewKey("stores"), (&fakeSource{}).fetch)

	st := q.State()
	if st.HasData || st.Status() != StatusIdle {
		t.Fatalf("expected idle state without data, got %+v", st)
	}
	if items := st.Items(); items == nil || len(items) != 0 {
		t.Errorf("Items() = %#v, want empty non-nil", items)
	}
}

func TestQuery_LoadCachesUntilInvalidated(t *testing.T) {
	c := NewClient()
	src := &fakeSource{data: []record{{ID: 1, Name: "Savanna Inn"}}}
	q := NewQuery(c, NewKey("accommodations"), src.fetch)
	ctx := context.Background()

	st := q.Load(ctx)
	if !st.HasData || st.Status() != StatusSuccess || len(st.Items()) != 1 {
		t.Fatalf("unexpected state after first load: %+v", st)
	}
	q.Load(ctx)
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("fresh entry refetched: calls = %d", got)
	}

	src.set([]record{{ID: 1}, {ID: 2}}, nil)
	c.Invalidate(NewKey("accommodations"))
	if !q.State().Stale {
		t.Error("expected entry to be stale after invalidate")
	}
	if len(q.State().Items()) != 1 {
		t.Error("invalidate must not drop cached records")
	}

	st = q.Load(ctx)
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
	if len(st.Items()) != 2 || st.Stale {
		t.Errorf("unexpected state after refetch: %+v", st)
	}
}

func TestClient_InvalidateCoversNarrowerKeys(t *testing.T) {
	c := NewClient()
	ctx := context.Background()
	base := NewKey("accommodations")
	narrow := NewQuery(c, base.With("category", "7"), (&fakeSource{}).fetch)
	other := NewQuery(c, NewKey("accommodations_archive"), (&fakeSource{}).fetch)
	narrow.Load(ctx)
	other.Load(ctx)

	c.Invalidate(base)

	if !narrow.State().Stale {
		t.Error("accommodations:category:7 should be stale")
	}
	if other.State().Stale {
		t.Error("accommodations_archive must not be touched")
	}
}

func TestQuery_StaleWhileError(t *testing.T) {
	c := NewClient()
	src := &fakeSource{data: []record{{ID: 1}}}
	q := NewQuery(c, NewKey("events"), src.fetch)
	ctx := context.Background()

	q.Load(ctx)
	boom := errors.New("bad gateway")
	src.set(nil, boom)
	c.Invalidate(q.Key())

	st := q.Load(ctx)
	if !st.IsError || !errors.Is(st.Err, boom) {
		t.Fatalf("expected error state, got %+v", st)
	}
	if !st.HasData || !reflect.DeepEqual(st.Items(), []record{{ID: 1}}) {
		t.Errorf("previous data should survive a failed refetch, got %+v", st.Items())
	}

	src.set([]record{{ID: 3}}, nil)
	st = q.Load(ctx)
	if st.IsError || st.Err != nil {
		t.Errorf("error should clear after success: %+v", st)
	}
}

func TestQuery_FirstLoadError(t *testing.T) {
	c := NewClient()
	src := &fakeSource{err: errors.New("offline")}
	q := NewQuery(c, NewKey("bookings"), src.fetch)

	st := q.Load(context.Background())
	if st.HasData || !st.IsError || st.Status() != StatusError {
		t.Errorf("unexpected state: %+v", st)
	}
	if len(st.Items()) != 0 {
		t.Error("absent data must normalize to empty")
	}
}

func TestQuery_ScopeCloseCancelsFetch(t *testing.T) {
	c := NewClient()
	started := make(chan struct{})
	q := NewQuery(c, NewKey("rooms"), func(ctx context.Context) ([]record, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	scope := NewScope(context.Background())
	done := make(chan State[record], 1)
	go func() { done <- q.Load(scope.Context()) }()

	<-started
	scope.Close()
	scope.Close()

	select {
	case st := <-done:
		if st.IsError || st.HasData || st.IsLoading {
			t.Errorf("cancelled fetch must leave state untouched, got %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return after scope close")
	}
}

func TestQuery_ConcurrentLoadsShareFetch(t *testing.T) {
	c := NewClient()
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQuery(c, NewKey("products"), func(ctx context.Context) ([]record, error) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return []record{{ID: 9}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Load(context.Background())
		}()
	}
	<-started
	if !q.State().IsLoading {
		t.Error("expected loading state while fetch is in flight")
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestQuery_InvalidateDuringFetchKeepsStale(t *testing.T) {
	c := NewClient()
	key := NewKey("categories")
	q := NewQuery(c, key, func(ctx context.Context) ([]record, error) {
		c.Invalidate(key)
		return []record{{ID: 1}}, nil
	})

	st := q.Load(context.Background())
	if !st.HasData || !st.Stale {
		t.Errorf("data fetched before an invalidation must stay stale: %+v", st)
	}
}

func TestClient_Subscribe(t *testing.T) {
	c := NewClient()
	var got []Key
	unsubscribe := c.Subscribe(NewKey("categories").Item("7"), func(k Key) { got = append(got, k) })

	c.Invalidate(NewKey("stores"))
	c.Invalidate(NewKey("categories"))
	unsubscribe()
	c.Invalidate(NewKey("categories"))

	if !reflect.DeepEqual(got, []Key{"categories:7"}) {
		t.Errorf("notifications = %v", got)
	}
}

func TestClient_SnapshotRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	key := NewKey("stores")

	first := NewClient(WithStore(store, time.Minute))
	NewQuery(first, key, (&fakeSource{data: []record{{ID: 4, Name: "Gift Shop"}}}).fetch).Load(ctx)

	raw, err := store.Get(ctx, string(key))
	if err != nil {
		t.Fatalf("snapshot not saved: %v", err)
	}
	var saved []record
	if err := json.Unmarshal(raw, &saved); err != nil || len(saved) != 1 {
		t.Fatalf("snapshot = %s, err = %v", raw, err)
	}

	second := NewClient(WithStore(store, time.Minute))
	offline := &fakeSource{err: errors.New("offline")}
	st := NewQuery(second, key, offline.fetch).Load(ctx)
	if offline.calls.Load() != 1 {
		t.Error("warm-started data must still be refetched")
	}
	if !st.HasData || st.Items()[0].Name != "Gift Shop" || !st.IsError {
		t.Errorf("expected snapshot data with error, got %+v", st)
	}

	second.Invalidate(key)
	if _, err := store.Get(ctx, string(key)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("invalidate should drop the snapshot, got %v", err)
	}
}

func TestQuery_LoadAfterInvalidateDoesNotJoinOlderFetch(t *testing.T) {
	c := NewClient()
	key := NewKey("categories")
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQuery(c, key, func(ctx context.Context) ([]record, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return []record{{ID: 1, Name: "before"}}, nil
		}
		return []record{{ID: 1, Name: "after"}}, nil
	})

	first := make(chan State[record], 1)
	go func() { first <- q.Load(context.Background()) }()
	<-started

	c.Invalidate(key)
	st := q.Load(context.Background())
	if got := calls.Load(); got != 2 {
		t.Fatalf("fetch calls = %d, want a second fetch after invalidation", got)
	}
	if len(st.Data) != 1 || st.Data[0].Name != "after" || st.Stale {
		t.Fatalf("load after invalidation = %+v, want fresh data", st)
	}

	close(release)
	<-first
	st = q.State()
	if len(st.Data) != 1 || st.Data[0].Name != "after" || st.Stale {
		t.Errorf("older fetch overwrote newer data: %+v", st)
	}
}
