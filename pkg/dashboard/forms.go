package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Upload limits for image fields.
const (
	MaxImageBytes = 5 << 20
)

// ImageContentTypes are the accepted image uploads.
var ImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

func imageSchema() *jsonschema.Schema {
	types := make([]any, len(ImageContentTypes))
	for i, ct := range ImageContentTypes {
		types[i] = ct
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":         {Type: "string"},
			"content_type": {Type: "string", Enum: types},
			"size":         {Type: "integer", Minimum: jsonschema.Ptr(1.0), Maximum: jsonschema.Ptr(float64(MaxImageBytes))},
		},
		Required: []string{"content_type", "size"},
	}
}

func text(maxLen int) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", MaxLength: jsonschema.Ptr(maxLen)}
}

func idField() *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{"string", "integer"}}
}

func money() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Minimum: jsonschema.Ptr(0.0)}
}

func oneOf(values ...string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

func form(title string, required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:      title,
		Type:       "object",
		Required:   required,
		Properties: props,
	}
}

// Event and booking statuses accepted by the forms.
var (
	EventStatuses   = []string{"draft", "published", "cancelled"}
	BookingStatuses = []string{"pending", "confirmed", "cancelled", "completed"}
)

func accommodationForm() *jsonschema.Schema {
	return form("Accommodation", []string{"name", "category_id", "price"}, map[string]*jsonschema.Schema{
		"name":        text(120),
		"description": text(2000),
		"category_id": idField(),
		"price":       money(),
		"rating":      {Type: "number", Minimum: jsonschema.Ptr(0.0), Maximum: jsonschema.Ptr(5.0)},
		"thumbnail":   imageSchema(),
	})
}

func roomForm() *jsonschema.Schema {
	return form("Room", []string{"accommodation_id", "name", "capacity"}, map[string]*jsonschema.Schema{
		"accommodation_id": idField(),
		"name":             text(120),
		"capacity":         {Type: "integer", Minimum: jsonschema.Ptr(1.0), Maximum: jsonschema.Ptr(50.0)},
		"price":            money(),
	})
}

func storeForm() *jsonschema.Schema {
	return form("Store", []string{"name"}, map[string]*jsonschema.Schema{
		"name":        text(120),
		"description": text(2000),
		"logo":        imageSchema(),
	})
}

func productForm() *jsonschema.Schema {
	return form("Product", []string{"store_id", "name", "price"}, map[string]*jsonschema.Schema{
		"store_id":    idField(),
		"category_id": idField(),
		"name":        text(120),
		"description": text(2000),
		"price":       money(),
		"stock":       {Type: "integer", Minimum: jsonschema.Ptr(0.0)},
		"thumbnail":   imageSchema(),
	})
}

func categoryForm() *jsonschema.Schema {
	return form("Category", []string{"name"}, map[string]*jsonschema.Schema{
		"name":        text(80),
		"description": text(500),
	})
}

func subCategoryForm() *jsonschema.Schema {
	return form("Sub-category", []string{"name", "category_id"}, map[string]*jsonschema.Schema{
		"name":        text(80),
		"description": text(500),
		"category_id": idField(),
	})
}

func eventForm() *jsonschema.Schema {
	return form("Event", []string{"title", "starts_at"}, map[string]*jsonschema.Schema{
		"title":       text(160),
		"description": text(4000),
		"location":    text(200),
		"status":      oneOf(EventStatuses...),
		"starts_at":   {Type: "string", MinLength: jsonschema.Ptr(len(dateOnly))},
		"thumbnail":   imageSchema(),
	})
}

func bookingForm() *jsonschema.Schema {
	return form("Booking", []string{"reference", "guest_name", "accommodation_id", "check_in", "check_out"}, map[string]*jsonschema.Schema{
		"reference":        text(40),
		"guest_name":       text(120),
		"accommodation_id": idField(),
		"status":           oneOf(BookingStatuses...),
		"check_in":         {Type: "string", MinLength: jsonschema.Ptr(len(dateOnly))},
		"check_out":        {Type: "string", MinLength: jsonschema.Ptr(len(dateOnly))},
		"total":            money(),
	})
}

// CoerceFields converts raw string form values into the JSON types schema
// declares for each property. Unknown properties stay strings.
func CoerceFields(schema *jsonschema.Schema, raw map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		prop := schema.Properties[name]
		if prop == nil {
			out[name] = value
			continue
		}
		coerced, err := coerce(prop, strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = coerced
	}
	return out, nil
}

func coerce(prop *jsonschema.Schema, value string) (any, error) {
	switch prop.Type {
	case "number":
		if value == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", value)
		}
		return f, nil
	case "integer":
		if value == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", value)
		}
		return n, nil
	case "boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
		return b, nil
	default:
		return value, nil
	}
}
