package mutation

import (
	"strings"

	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/query"
)

// NoParent is the legacy parent_id value meaning "top-level category".
const NoParent = "none"

const (
	categoriesResource    dataservice.Resource = "categories"
	subcategoriesResource dataservice.Resource = "subcategories"
)

// CategoryDraft is the category form as the user filled it in. ParentID may
// be empty or NoParent for a top-level category.
type CategoryDraft struct {
	Name        string
	Description string
	ParentID    string
}

// CategoryVariant is a category creation that already knows its endpoint.
type CategoryVariant interface {
	Route() Route
	Fields() map[string]any
	isCategoryVariant()
}

// CreateCategory creates a top-level category.
type CreateCategory struct {
	Name        string
	Description string
}

// CreateSubCategory creates a category under ParentID.
type CreateSubCategory struct {
	ParentID    string
	Name        string
	Description string
}

// Variant resolves the draft into exactly one creation variant.
func (d CategoryDraft) Variant() CategoryVariant {
	parent := strings.TrimSpace(d.ParentID)
	if parent == "" || strings.EqualFold(parent, NoParent) {
		return CreateCategory{Name: d.Name, Description: d.Description}
	}
	return CreateSubCategory{ParentID: parent, Name: d.Name, Description: d.Description}
}

func (CreateCategory) isCategoryVariant() {}

func (v CreateCategory) Route() Route {
	return Route{Resource: categoriesResource, Collection: query.NewKey(string(categoriesResource))}
}

func (v CreateCategory) Fields() map[string]any {
	return map[string]any{"name": v.Name, "description": v.Description}
}

func (CreateSubCategory) isCategoryVariant() {}

// Route targets the child endpoint. Every sub-category list is invalidated,
// and so is the whole categories collection: category records embed their
// sub-categories, so the list the form was submitted from changes too.
func (v CreateSubCategory) Route() Route {
	return Route{
		Resource:   subcategoriesResource,
		Collection: query.NewKey(string(subcategoriesResource)),
		Parent:     query.NewKey(string(categoriesResource)),
	}
}

func (v CreateSubCategory) Fields() map[string]any {
	return map[string]any{"name": v.Name, "description": v.Description, "category_id": v.ParentID}
}

// NewCategoryRequest resolves draft once and returns a create request whose
// route is fixed for the rest of the submission.
func NewCategoryRequest(draft CategoryDraft, attachments ...Attachment) Request {
	v := draft.Variant()
	entity := "Category"
	if _, ok := v.(CreateSubCategory); ok {
		entity = "Sub-category"
	}
	return Request{
		Entity:      entity,
		Route:       v.Route(),
		Fields:      v.Fields(),
		Attachments: attachments,
	}
}
