package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nimburion/providerdesk/pkg/collection"
	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/i18n"
	"github.com/nimburion/providerdesk/pkg/mutation"
	"github.com/nimburion/providerdesk/pkg/query"
)

type fakeLister struct {
	mu     sync.Mutex
	bodies map[dataservice.Resource]string
	err    error
	calls  []dataservice.Params
}

func (f *fakeLister) List(_ context.Context, res dataservice.Resource, p dataservice.Params) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.bodies[res]), nil
}

func (f *fakeLister) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

const accommodationsBody = `{"data":[
	{"id":1,"name":"Savanna Inn","category_id":"4","price":"80.00","created_at":"2024-01-01"},
	{"id":2,"name":"Lake House","category_id":"4","price":120,"created_at":"2024-03-01T09:00:00Z"}
]}`

func TestScreenLoad_SortsNewestFirst(t *testing.T) {
	ds := &fakeLister{bodies: map[dataservice.Resource]string{"accommodations": accommodationsBody}}
	qc := query.NewClient()

	page, err := Accommodations().Load(context.Background(), qc, ds, ListRequest{
		Sort: collection.ParseSort("created_at:desc"),
		Page: 1,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if page.State != collection.StateReady {
		t.Fatalf("State = %v, want ready", page.State)
	}
	var ids []ID
	for _, a := range page.Items {
		ids = append(ids, a.ID)
	}
	if len(ids) != 2 || ids[0] != "2" || ids[1] != "1" {
		t.Fatalf("ids = %v, want [2 1]", ids)
	}
	if page.Window.TotalItems != 2 || page.Window.TotalPages != 1 {
		t.Fatalf("window = %+v", page.Window)
	}
	if got := page.Notice("accommodations"); got.Code != i18n.CodeListSummary || got.Params["count"] != 2 {
		t.Fatalf("Notice = %+v", got)
	}
}

func TestScreenLoad_ParentFilterNarrowsKeyAndParams(t *testing.T) {
	ds := &fakeLister{bodies: map[dataservice.Resource]string{"rooms": `[{"id":5,"accommodation_id":3,"name":"Twin","capacity":2}]`}}
	screen := Rooms()
	filters := collection.Filters{"accommodation": "3"}

	if got := screen.Key(filters); got != "rooms:accommodation:3" {
		t.Fatalf("Key = %q", got)
	}
	if got := screen.Key(collection.Filters{"accommodation": collection.All}); got != "rooms" {
		t.Fatalf("Key(all) = %q", got)
	}

	_, err := screen.Load(context.Background(), query.NewClient(), ds, ListRequest{Filters: filters})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.calls) != 1 || ds.calls[0].Extra.Get("accommodation_id") != "3" {
		t.Fatalf("params = %+v", ds.calls)
	}
}

func TestScreenLoad_CategoryParamUsesCategoryID(t *testing.T) {
	p := Accommodations().Params(collection.Filters{"category": "4"})
	if p.CategoryID != "4" || p.Extra != nil {
		t.Fatalf("Params = %+v", p)
	}
}

func TestScreenLoad_StaleWhileError(t *testing.T) {
	ds := &fakeLister{bodies: map[dataservice.Resource]string{"accommodations": accommodationsBody}}
	qc := query.NewClient()
	screen := Accommodations()

	if _, err := screen.Load(context.Background(), qc, ds, ListRequest{}); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	qc.Invalidate(screen.Key(nil))
	ds.fail(&dataservice.TransportError{Op: "GET", Resource: "accommodations", Err: errors.New("offline")})

	page, err := screen.Load(context.Background(), qc, ds, ListRequest{})
	if err != nil {
		t.Fatalf("stale Load returned error: %v", err)
	}
	if !page.Stale() || len(page.Items) != 2 {
		t.Fatalf("page = %+v, want two stale rows", page)
	}
	if got := page.Notice("accommodations").Code; got != i18n.CodeListStale {
		t.Fatalf("Notice code = %q", got)
	}
}

func TestScreenLoad_FirstLoadError(t *testing.T) {
	ds := &fakeLister{err: &dataservice.ServerError{Status: 500}}
	page, err := Events().Load(context.Background(), query.NewClient(), ds, ListRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if page.State != collection.StateError {
		t.Fatalf("State = %v", page.State)
	}
	if page.Items == nil {
		t.Fatal("Items must be non-nil")
	}
}

func TestScreenRoute(t *testing.T) {
	req := Rooms().NewRequest(map[string]any{"accommodation_id": "3", "name": "Twin"}, nil)
	if req.Route.Resource != "rooms" || req.Route.Collection != "rooms" || req.Route.Parent != "accommodations:3" {
		t.Fatalf("Route = %+v", req.Route)
	}

	cat := Categories().NewRequest(map[string]any{"name": "Snorkeling", "parent_id": "7"}, nil)
	if cat.Route.Resource != "subcategories" {
		t.Fatalf("category with parent routed to %q", cat.Route.Resource)
	}
	if cat.Route.Collection != "subcategories" || cat.Route.Parent != "categories" {
		t.Fatalf("sub-category route = %+v, want whole subcategories and categories collections", cat.Route)
	}
	sub := SubCategories().NewRequest(map[string]any{"category_id": "7", "name": "Diving"}, nil)
	if sub.Route.Collection != "subcategories" || sub.Route.Parent != "categories" {
		t.Fatalf("embedded child route = %+v, want parent collection categories", sub.Route)
	}
	top := Categories().NewRequest(map[string]any{"name": "Beach", "parent_id": "none"}, nil)
	if top.Route.Resource != "categories" || top.Route.Parent != "" {
		t.Fatalf("top-level category route = %+v", top.Route)
	}
}

func TestScreenImageURL(t *testing.T) {
	media, err := dataservice.NewMediaResolver("https://cdn.example.com/media/")
	if err != nil {
		t.Fatalf("NewMediaResolver: %v", err)
	}
	screen := Accommodations()
	failures := collection.NewImageFailures(1)
	rec := Accommodation{ID: "1", Thumbnail: "thumbs/1.png"}

	if got := screen.ImageURL(rec, media, failures); !strings.HasPrefix(got, "https://cdn.example.com/") {
		t.Fatalf("ImageURL = %q", got)
	}
	failures.MarkFailed("1")
	failures.MarkFailed("1")
	if got := screen.ImageURL(rec, media, failures); got != PlaceholderImage {
		t.Fatalf("ImageURL after failures = %q", got)
	}
	if got := Rooms().ImageURL(Room{ID: "1"}, media, failures); got != "" {
		t.Fatalf("screen without images returned %q", got)
	}
}

func TestRegistry(t *testing.T) {
	names := Names()
	want := []string{"accommodations", "bookings", "categories", "events", "products", "rooms", "stores", "subcategories"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("Names = %v", names)
	}
	if _, err := Lookup(" Rooms "); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := Lookup("villas"); err == nil {
		t.Fatal("expected unknown entity error")
	}
}

func TestRegisterSchemas(t *testing.T) {
	v := mutation.NewJSONSchemaValidator()
	if err := RegisterSchemas(v); err != nil {
		t.Fatalf("RegisterSchemas: %v", err)
	}

	tests := []struct {
		name       string
		res        dataservice.Resource
		instance   map[string]any
		wantFields []string
	}{
		{
			name:     "valid accommodation",
			res:      "accommodations",
			instance: map[string]any{"name": "Ocean View", "category_id": "4", "price": 90.0},
		},
		{
			name:       "missing required",
			res:        "accommodations",
			instance:   map[string]any{"price": 90.0},
			wantFields: []string{"category_id", "name"},
		},
		{
			name:       "rating out of range",
			res:        "accommodations",
			instance:   map[string]any{"name": "Ocean View", "category_id": "4", "price": 90.0, "rating": 7.0},
			wantFields: []string{"rating"},
		},
		{
			name: "unsupported image type",
			res:  "stores",
			instance: map[string]any{
				"name": "Dive Shop",
				"logo": map[string]any{"name": "logo.gif", "content_type": "image/gif", "size": 10.0},
			},
			wantFields: []string{"logo"},
		},
		{
			name:       "unknown event status",
			res:        "events",
			instance:   map[string]any{"title": "Regatta", "starts_at": "2024-07-01", "status": "maybe"},
			wantFields: []string{"status"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.res, tt.instance)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			var verr *mutation.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate error = %v, want ValidationError", err)
			}
			if got := strings.Join(verr.FieldNames(), ","); got != strings.Join(tt.wantFields, ",") {
				t.Fatalf("fields = %s, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestCoerceFields(t *testing.T) {
	got, err := CoerceFields(roomForm(), map[string]string{
		"name":     "Twin",
		"capacity": "2",
		"price":    "79.5",
		"note":     "ground floor",
	})
	if err != nil {
		t.Fatalf("CoerceFields: %v", err)
	}
	if got["capacity"] != int64(2) || got["price"] != 79.5 || got["name"] != "Twin" || got["note"] != "ground floor" {
		t.Fatalf("CoerceFields = %#v", got)
	}

	if _, err := CoerceFields(roomForm(), map[string]string{"capacity": "two"}); err == nil {
		t.Fatal("expected error for non-integer capacity")
	}
}
