package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nimburion/providerdesk/pkg/collection"
	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/i18n"
	"github.com/nimburion/providerdesk/pkg/mutation"
	"github.com/nimburion/providerdesk/pkg/query"
)

func createdAt[T any](field func(T) Timestamp) collection.Comparator[T] {
	return collection.ByTime(func(r T) time.Time { return field(r).Time })
}

// Accommodations is the accommodation list screen.
func Accommodations() *Screen[Accommodation] {
	return &Screen[Accommodation]{
		name:   "accommodations",
		entity: "Accommodation",
		res:    "accommodations",
		schema: accommodationForm(),
		id:     func(a Accommodation) string { return string(a.ID) },
		image:  func(a Accommodation) string { return a.Thumbnail },
		parent: &Parent{Filter: "category", Param: "category_id", Field: "category_id", Collection: "categories"},
		view: collection.NewView(
			collection.WithSearch[Accommodation]("search",
				func(a Accommodation) string { return a.Name },
				func(a Accommodation) string { return a.Description },
			),
			collection.WithEquals[Accommodation]("category", func(a Accommodation) string { return string(a.CategoryID) }),
			collection.WithSort("created_at", createdAt(func(a Accommodation) Timestamp { return a.CreatedAt })),
			collection.WithSort("name", collection.ByString(func(a Accommodation) string { return a.Name })),
			collection.WithSort("price", collection.ByFloat(func(a Accommodation) float64 { return a.Price.Float() })),
			collection.WithSort("rating", collection.ByFloat(func(a Accommodation) float64 { return a.Rating.Float() })),
		),
	}
}

// Rooms is the room list screen, usually narrowed to one accommodation.
func Rooms() *Screen[Room] {
	return &Screen[Room]{
		name:   "rooms",
		entity: "Room",
		res:    "rooms",
		schema: roomForm(),
		id:     func(r Room) string { return string(r.ID) },
		parent: &Parent{Filter: "accommodation", Param: "accommodation_id", Field: "accommodation_id", Collection: "accommodations"},
		view: collection.NewView(
			collection.WithSearch[Room]("search", func(r Room) string { return r.Name }),
			collection.WithEquals[Room]("accommodation", func(r Room) string { return string(r.AccommodationID) }),
			collection.WithFilter[Room]("min_capacity", func(r Room, value string) bool {
				var n int
				if _, err := fmt.Sscan(value, &n); err != nil {
					return true
				}
				return r.Capacity >= n
			}),
			collection.WithSort("created_at", createdAt(func(r Room) Timestamp { return r.CreatedAt })),
			collection.WithSort("name", collection.ByString(func(r Room) string { return r.Name })),
			collection.WithSort("capacity", collection.ByInt(func(r Room) int { return r.Capacity })),
			collection.WithSort("price", collection.ByFloat(func(r Room) float64 { return r.Price.Float() })),
		),
	}
}

// Stores is the store list screen.
func Stores() *Screen[Store] {
	return &Screen[Store]{
		name:   "stores",
		entity: "Store",
		res:    "stores",
		schema: storeForm(),
		id:     func(s Store) string { return string(s.ID) },
		image:  func(s Store) string { return s.Logo },
		view: collection.NewView(
			collection.WithSearch[Store]("search",
				func(s Store) string { return s.Name },
				func(s Store) string { return s.Description },
			),
			collection.WithSort("created_at", createdAt(func(s Store) Timestamp { return s.CreatedAt })),
			collection.WithSort("name", collection.ByString(func(s Store) string { return s.Name })),
		),
	}
}

// Products is the product list screen.
func Products() *Screen[Product] {
	return &Screen[Product]{
		name:   "products",
		entity: "Product",
		res:    "products",
		schema: productForm(),
		id:     func(p Product) string { return string(p.ID) },
		image:  func(p Product) string { return p.Thumbnail },
		parent: &Parent{Filter: "store", Param: "store_id", Field: "store_id", Collection: "stores"},
		view: collection.NewView(
			collection.WithSearch[Product]("search",
				func(p Product) string { return p.Name },
				func(p Product) string { return p.Description },
			),
			collection.WithEquals[Product]("store", func(p Product) string { return string(p.StoreID) }),
			collection.WithEquals[Product]("category", func(p Product) string { return string(p.CategoryID) }),
			collection.WithFilter[Product]("stock", func(p Product, value string) bool {
				switch value {
				case "in":
					return p.Stock > 0
				case "out":
					return p.Stock <= 0
				default:
					return true
				}
			}),
			collection.WithSort("created_at", createdAt(func(p Product) Timestamp { return p.CreatedAt })),
			collection.WithSort("name", collection.ByString(func(p Product) string { return p.Name })),
			collection.WithSort("price", collection.ByFloat(func(p Product) float64 { return p.Price.Float() })),
			collection.WithSort("stock", collection.ByInt(func(p Product) int { return p.Stock })),
		),
	}
}

// Categories is the category list screen. Creating from it resolves the
// parent into a category or sub-category creation.
func Categories() *Screen[Category] {
	return &Screen[Category]{
		name:   "categories",
		entity: "Category",
		res:    "categories",
		schema: categoryForm(),
		id:     func(c Category) string { return string(c.ID) },
		view: collection.NewView(
			collection.WithSearch[Category]("search",
				func(c Category) string { return c.Name },
				func(c Category) string { return c.Description },
			),
			collection.WithFilter[Category]("kind", func(c Category, value string) bool {
				switch value {
				case "top":
					return c.ParentID == ""
				case "sub":
					return c.ParentID != ""
				default:
					return true
				}
			}),
			collection.WithSort("created_at", createdAt(func(c Category) Timestamp { return c.CreatedAt })),
			collection.WithSort("name", collection.ByString(func(c Category) string { return c.Name })),
			collection.WithSort("subcategories", collection.ByInt(func(c Category) int { return len(c.Subcategories) })),
		),
		request: func(fields map[string]any, attachments []mutation.Attachment) mutation.Request {
			draft := mutation.CategoryDraft{
				Name:        stringField(fields, "name"),
				Description: stringField(fields, "description"),
				ParentID:    stringField(fields, "parent_id"),
			}
			return mutation.NewCategoryRequest(draft, attachments...)
		},
	}
}

// SubCategories lists the children of one category.
func SubCategories() *Screen[SubCategory] {
	return &Screen[SubCategory]{
		name:   "subcategories",
		entity: "Sub-category",
		res:    "subcategories",
		schema: subCategoryForm(),
		id:     func(s SubCategory) string { return string(s.ID) },
		parent: &Parent{Filter: "category", Param: "category_id", Field: "category_id", Collection: "categories", Embeds: true},
		view: collection.NewView(
			collection.WithSearch[SubCategory]("search", func(s SubCategory) string { return s.Name }),
			collection.WithEquals[SubCategory]("category", func(s SubCategory) string { return string(s.CategoryID) }),
			collection.WithSort("created_at", createdAt(func(s SubCategory) Timestamp { return s.CreatedAt })),
			collection.WithSort("name", collection.ByString(func(s SubCategory) string { return s.Name })),
		),
	}
}

// Events is the event list screen.
func Events() *Screen[Event] {
	return &Screen[Event]{
		name:   "events",
		entity: "Event",
		res:    "events",
		schema: eventForm(),
		id:     func(e Event) string { return string(e.ID) },
		image:  func(e Event) string { return e.Thumbnail },
		view: collection.NewView(
			collection.WithSearch[Event]("search",
				func(e Event) string { return e.Title },
				func(e Event) string { return e.Location },
			),
			collection.WithEquals[Event]("status", func(e Event) string { return e.Status }),
			collection.WithSort("created_at", createdAt(func(e Event) Timestamp { return e.CreatedAt })),
			collection.WithSort("starts_at", createdAt(func(e Event) Timestamp { return e.StartsAt })),
			collection.WithSort("title", collection.ByString(func(e Event) string { return e.Title })),
		),
	}
}

// Bookings is the booking list screen.
func Bookings() *Screen[Booking] {
	return &Screen[Booking]{
		name:   "bookings",
		entity: "Booking",
		res:    "bookings",
		schema: bookingForm(),
		id:     func(b Booking) string { return string(b.ID) },
		parent: &Parent{Filter: "accommodation", Param: "accommodation_id", Field: "accommodation_id", Collection: "accommodations"},
		view: collection.NewView(
			collection.WithSearch[Booking]("search",
				func(b Booking) string { return b.Reference },
				func(b Booking) string { return b.GuestName },
			),
			collection.WithEquals[Booking]("status", func(b Booking) string { return b.Status }),
			collection.WithEquals[Booking]("accommodation", func(b Booking) string { return string(b.AccommodationID) }),
			collection.WithSort("created_at", createdAt(func(b Booking) Timestamp { return b.CreatedAt })),
			collection.WithSort("check_in", createdAt(func(b Booking) Timestamp { return b.CheckIn })),
			collection.WithSort("total", collection.ByFloat(func(b Booking) float64 { return b.Total.Float() })),
		),
	}
}

func stringField(fields map[string]any, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Rows is a type-erased Page used by generic consumers such as the CLI.
type Rows struct {
	Records []any
	Window  collection.PageWindow
	State   collection.ViewState
	Err     error
	Stale   bool
	IDs     []string
}

// Notice returns the message shown under the list.
func (r Rows) Notice(entity string) i18n.Message {
	return notice(entity, r.State, r.Stale, r.Err, r.Window.TotalItems)
}

// Entry is a Screen with its record type erased.
type Entry interface {
	Name() string
	Entity() string
	Resource() dataservice.Resource
	FormSchema() *jsonschema.Schema
	SortKeys() []string
	FilterNames() []string
	ListParams() []string
	NewRequest(fields map[string]any, attachments []mutation.Attachment) mutation.Request
	LoadRows(ctx context.Context, qc *query.Client, ds Lister, req ListRequest) (Rows, error)
	RowImage(record any, media *dataservice.MediaResolver, failures *collection.ImageFailures) string
}

// SortKeys lists the registered sort keys.
func (s *Screen[T]) SortKeys() []string { return s.view.SortKeys() }

// FilterNames lists the registered filters.
func (s *Screen[T]) FilterNames() []string { return s.view.FilterNames() }

// ListParams lists the query parameters the screen sends when listing.
func (s *Screen[T]) ListParams() []string {
	if s.parent == nil {
		return nil
	}
	return []string{s.parent.Param}
}

// LoadRows is Load with the record type erased.
func (s *Screen[T]) LoadRows(ctx context.Context, qc *query.Client, ds Lister, req ListRequest) (Rows, error) {
	page, err := s.Load(ctx, qc, ds, req)
	rows := Rows{
		Records: make([]any, len(page.Items)),
		IDs:     make([]string, len(page.Items)),
		Window:  page.Window,
		State:   page.State,
		Err:     page.Err,
		Stale:   page.Stale(),
	}
	for i, item := range page.Items {
		rows.Records[i] = item
		rows.IDs[i] = s.id(item)
	}
	return rows, err
}

// RowImage is ImageURL for a record returned by LoadRows.
func (s *Screen[T]) RowImage(record any, media *dataservice.MediaResolver, failures *collection.ImageFailures) string {
	r, ok := record.(T)
	if !ok {
		return ""
	}
	return s.ImageURL(r, media, failures)
}

// Registry returns every screen keyed by collection name.
func Registry() map[string]Entry {
	entries := []Entry{
		Accommodations(),
		Rooms(),
		Stores(),
		Products(),
		Categories(),
		SubCategories(),
		Events(),
		Bookings(),
	}
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.Name()] = e
	}
	return out
}

// Lookup returns the screen for name.
func Lookup(name string) (Entry, error) {
	reg := Registry()
	if e, ok := reg[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("unknown entity %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Names lists the registered collection names in sorted order.
func Names() []string {
	reg := Registry()
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RegisterSchemas binds every screen's form schema to v.
func RegisterSchemas(v *mutation.JSONSchemaValidator) error {
	for _, e := range Registry() {
		if err := v.Register(e.Resource(), e.FormSchema()); err != nil {
			return err
		}
	}
	return nil
}
