package mutation

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nimburion/providerdesk/pkg/dataservice"
)

// SchemaValidator checks a request instance before it is dispatched. It
// returns a *ValidationError for bad input.
type SchemaValidator interface {
	Validate(res dataservice.Resource, instance map[string]any) error
}

type compiledSchema struct {
	root       *jsonschema.Resolved
	required   []string
	properties map[string]*jsonschema.Resolved
}

// JSONSchemaValidator validates instances against per-resource JSON Schemas.
// Resources without a registered schema pass.
type JSONSchemaValidator struct {
	mu      sync.RWMutex
	schemas map[dataservice.Resource]*compiledSchema
}

// NewJSONSchemaValidator returns an empty validator.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{schemas: make(map[dataservice.Resource]*compiledSchema)}
}

// Register resolves schema and binds it to res, replacing any earlier one.
func (v *JSONSchemaValidator) Register(res dataservice.Resource, schema *jsonschema.Schema) error {
	root, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %s: %w", res, err)
	}
	compiled := &compiledSchema{
		root:       root,
		required:   slices.Clone(schema.Required),
		properties: make(map[string]*jsonschema.Resolved, len(schema.Properties)),
	}
	for name, prop := range schema.Properties {
		resolved, err := prop.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolve schema for %s.%s: %w", res, name, err)
		}
		compiled.properties[name] = resolved
	}

	v.mu.Lock()
	v.schemas[res] = compiled
	v.mu.Unlock()
	return nil
}

// Validate reports every failing field at once rather than the first one.
func (v *JSONSchemaValidator) Validate(res dataservice.Resource, instance map[string]any) error {
	v.mu.RLock()
	compiled, ok := v.schemas[res]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	verr := &ValidationError{}
	for _, name := range compiled.required {
		if isBlank(instance[name]) {
			verr.add(name, "required")
		}
	}
	for name, resolved := range compiled.properties {
		value, present := instance[name]
		if !present || value == nil {
			continue
		}
		if err := resolved.Validate(value); err != nil {
			verr.add(name, reason(err))
		}
	}
	if len(verr.Fields) == 0 {
		if err := compiled.root.Validate(instance); err != nil {
			verr.add("_", reason(err))
		}
	}
	return verr.orNil()
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

// reason drops the "validating <path>: " prefixes the schema library stacks
// on nested failures.
func reason(err error) string {
	msg := err.Error()
	for strings.HasPrefix(msg, "validating ") {
		_, rest, found := strings.Cut(msg, ": ")
		if !found {
			break
		}
		msg = rest
	}
	return msg
}

// instance builds the JSON value a schema sees: the form fields after a JSON
// round trip plus metadata for uploaded and removed attachments.
func instance(req Request) (map[string]any, error) {
	raw, err := json.Marshal(req.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	for _, a := range req.Attachments {
		switch a.Change {
		case AttachmentReplace:
			out[a.Field] = map[string]any{
				"name":         a.File.Name,
				"content_type": a.File.ContentType,
				"size":         float64(len(a.File.Data)),
			}
		case AttachmentRemove:
			out[RemoveField(a.Field)] = true
		}
	}
	return out, nil
}

// checkAttachments rejects uploads with no content. An empty file never
// means "remove".
func checkAttachments(req Request) *ValidationError {
	verr := &ValidationError{}
	for _, a := range req.Attachments {
		if a.Field == "" {
			verr.add("attachment", "field name is required")
			continue
		}
		if a.Change == AttachmentReplace && len(a.File.Data) == 0 {
			verr.add(a.Field, "file is empty")
		}
	}
	return verr
}
