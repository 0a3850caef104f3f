// Package dashboard declares the provider dashboard's entities and list
// screens: which collection each screen reads, how its view filters and
// sorts, and which form schema guards its mutations.
package dashboard

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nimburion/providerdesk/pkg/collection"
	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/i18n"
	"github.com/nimburion/providerdesk/pkg/mutation"
	"github.com/nimburion/providerdesk/pkg/query"
)

// PlaceholderImage is shown once an image has failed too often.
const PlaceholderImage = "/static/placeholder.png"

// Lister is the read half of the data service contract.
type Lister interface {
	List(ctx context.Context, res dataservice.Resource, p dataservice.Params) ([]byte, error)
}

// ListRequest is a screen's current filter, sort and page state.
type ListRequest struct {
	Filters  collection.Filters
	Sort     collection.SortSpec
	Page     int
	PageSize int
}

// Page is what a list screen renders.
type Page[T any] struct {
	collection.Result[T]
	State collection.ViewState
	// Err is the last fetch error. With State ready it means the rows are
	// from an earlier successful fetch.
	Err error
}

// Stale reports whether the rows survived a failed refetch.
func (p Page[T]) Stale() bool {
	return p.Err != nil && (p.State == collection.StateReady || p.State == collection.StateEmpty)
}

// Notice returns the message shown under the list.
func (p Page[T]) Notice(entity string) i18n.Message {
	return notice(entity, p.State, p.Stale(), p.Err, p.Window.TotalItems)
}

func notice(entity string, state collection.ViewState, stale bool, err error, total int) i18n.Message {
	switch {
	case state == collection.StateError:
		return i18n.NewMessage(i18n.CodeListFailed, i18n.Params{"entity": entity})
	case stale:
		return i18n.NewMessage(i18n.CodeListStale, i18n.Params{"entity": entity, "error": err.Error()})
	case state == collection.StateEmpty:
		return i18n.NewMessage(i18n.CodeListEmpty, i18n.Params{"entity": entity})
	default:
		return i18n.NewMessage(i18n.CodeListSummary, i18n.Params{"count": total})
	}
}

// Parent links a screen's records to the collection they belong to, e.g.
// rooms to accommodations.
type Parent struct {
	// Filter is the view filter whose value selects the parent, e.g.
	// "accommodation".
	Filter string
	// Param is the list query parameter carrying the parent id.
	Param string
	// Field is the form field carrying the parent id.
	Field string
	// Collection is the parent screen's collection name.
	Collection string
	// Embeds is set when parent records carry their children inline, as
	// categories do with sub-categories. Mutations then invalidate the whole
	// parent collection instead of the single parent record.
	Embeds bool
}

// Screen is the declarative configuration of one list screen.
type Screen[T any] struct {
	name   string
	entity string
	res    dataservice.Resource
	view   *collection.View[T]
	schema *jsonschema.Schema
	id     func(T) string
	image  func(T) string
	parent *Parent
	// request overrides the default mutation request builder.
	request func(fields map[string]any, attachments []mutation.Attachment) mutation.Request
}

// Name returns the collection name, e.g. "rooms".
func (s *Screen[T]) Name() string { return s.name }

// Entity returns the singular display label, e.g. "Room".
func (s *Screen[T]) Entity() string { return s.entity }

// Resource returns the data service path segment.
func (s *Screen[T]) Resource() dataservice.Resource { return s.res }

// View returns the screen's collection view.
func (s *Screen[T]) View() *collection.View[T] { return s.view }

// FormSchema returns the create/update form schema.
func (s *Screen[T]) FormSchema() *jsonschema.Schema { return s.schema }

// ID returns the identity of record.
func (s *Screen[T]) ID(record T) string { return s.id(record) }

// Key is the cache key of the list the screen shows for filters. A
// selected parent narrows the key so sibling lists are cached apart.
func (s *Screen[T]) Key(filters collection.Filters) query.Key {
	key := query.NewKey(s.name)
	if s.parent != nil {
		if v := filters[s.parent.Filter]; v != "" && v != collection.All {
			key = key.With(s.parent.Filter, v)
		}
	}
	return key
}

// Params maps filters onto list query parameters.
func (s *Screen[T]) Params(filters collection.Filters) dataservice.Params {
	var p dataservice.Params
	if s.parent == nil {
		return p
	}
	v := filters[s.parent.Filter]
	if v == "" || v == collection.All {
		return p
	}
	if s.parent.Param == "category_id" {
		p.CategoryID = v
		return p
	}
	p.Extra = url.Values{s.parent.Param: {v}}
	return p
}

// Route returns where mutations of this screen go. The whole collection is
// invalidated, which covers every filtered list of it, plus the parent
// record when parentID is set, or the whole parent collection when the
// parent embeds its children.
func (s *Screen[T]) Route(parentID string) mutation.Route {
	r := mutation.Route{Resource: s.res, Collection: query.NewKey(s.name)}
	switch {
	case s.parent == nil:
	case s.parent.Embeds:
		r.Parent = query.NewKey(s.parent.Collection)
	case parentID != "":
		r.Parent = query.NewKey(s.parent.Collection).Item(parentID)
	}
	return r
}

// NewRequest builds a mutation request from form fields.
func (s *Screen[T]) NewRequest(fields map[string]any, attachments []mutation.Attachment) mutation.Request {
	if s.request != nil {
		return s.request(fields, attachments)
	}
	var parentID string
	if s.parent != nil {
		if v, ok := fields[s.parent.Field]; ok && v != nil {
			parentID = fmt.Sprint(v)
		}
	}
	return mutation.Request{
		Entity:      s.entity,
		Route:       s.Route(parentID),
		Fields:      fields,
		Attachments: attachments,
	}
}

// Query returns the cached query backing the list for filters.
func (s *Screen[T]) Query(qc *query.Client, ds Lister, filters collection.Filters) *query.Query[T] {
	params := s.Params(filters)
	return query.NewQuery[T](qc, s.Key(filters), func(ctx context.Context) ([]T, error) {
		raw, err := ds.List(ctx, s.res, params)
		if err != nil {
			return nil, err
		}
		return dataservice.DecodeList[T](raw)
	})
}

// Load reads the list through the query cache and applies the view. It
// fails only when there is nothing to show.
func (s *Screen[T]) Load(ctx context.Context, qc *query.Client, ds Lister, req ListRequest) (Page[T], error) {
	st := s.Query(qc, ds, req.Filters).Load(ctx)
	result := s.view.Apply(st.Items(), req.Filters, req.Sort, req.Page, req.PageSize)
	page := Page[T]{
		Result: result,
		State:  collection.Derive(st.IsLoading, st.IsError, st.HasData, result.Window.TotalItems),
		Err:    st.Err,
	}
	if page.State == collection.StateError {
		return page, fmt.Errorf("load %s: %w", s.name, st.Err)
	}
	return page, nil
}

// ImageURL resolves record's image against media. Records whose image has
// failed more than the allowed retries get PlaceholderImage.
func (s *Screen[T]) ImageURL(record T, media *dataservice.MediaResolver, failures *collection.ImageFailures) string {
	if s.image == nil {
		return ""
	}
	path := s.image(record)
	if path == "" || (failures != nil && failures.ShouldFallback(s.id(record))) {
		return PlaceholderImage
	}
	if media == nil {
		return path
	}
	return media.Resolve(path)
}
