package sandbox

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/jsonschema-go/jsonschema"
)

// Resource describes one collection served by the sandbox.
type Resource struct {
	Name   string
	Entity string
	// Form is the create/update payload schema. Optional.
	Form *jsonschema.Schema
	// Filters are the list query parameters the resource accepts.
	Filters []string
}

// BuildOpenAPI describes the data service contract for resources under
// /{scope}.
func BuildOpenAPI(scope, version string, resources []Resource) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "providerdesk sandbox data service",
			Description: "Local stand-in for the provider data service.",
			Version:     version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			SecuritySchemes: map[string]*openapi3.SecuritySchemeRef{
				"bearer": &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		},
		Security: openapi3.SecurityRequirements{openapi3.NewSecurityRequirement().Authenticate("bearer")},
	}

	errorSchema := openapi3.NewObjectSchema().WithProperty("message", openapi3.NewStringSchema())
	for _, res := range resources {
		form, err := formSchema(res.Form)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", res.Name, err)
		}
		record := openapi3.NewObjectSchema().WithAnyAdditionalProperties()
		listBody := openapi3.NewObjectSchema().WithProperty("data", openapi3.NewArraySchema().WithItems(record))
		recordBody := openapi3.NewObjectSchema().WithProperty("data", record)

		collectionPath := fmt.Sprintf("/%s/%s", scope, res.Name)
		itemPath := collectionPath + "/{id}"

		list := operation(res.Entity, "list"+res.Name, "List "+res.Name)
		for _, f := range res.Filters {
			list.AddParameter(openapi3.NewQueryParameter(f).WithSchema(openapi3.NewStringSchema()))
		}
		list.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Records").WithJSONSchema(listBody))
		doc.AddOperation(collectionPath, http.MethodGet, list)

		create := operation(res.Entity, "create"+res.Name, "Create a "+res.Entity)
		create.RequestBody = &openapi3.RequestBodyRef{Value: writeBody(form)}
		create.AddResponse(http.StatusCreated, openapi3.NewResponse().WithDescription("Created").WithJSONSchema(recordBody))
		create.AddResponse(http.StatusBadRequest, openapi3.NewResponse().WithDescription("Malformed body").WithJSONSchema(errorSchema))
		doc.AddOperation(collectionPath, http.MethodPost, create)

		get := operation(res.Entity, "get"+res.Name, "Get a "+res.Entity)
		get.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
		get.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Record").WithJSONSchema(recordBody))
		get.AddResponse(http.StatusNotFound, openapi3.NewResponse().WithDescription("Not found").WithJSONSchema(errorSchema))
		doc.AddOperation(itemPath, http.MethodGet, get)

		update := operation(res.Entity, "update"+res.Name, "Update a "+res.Entity)
		update.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
		update.RequestBody = &openapi3.RequestBodyRef{Value: writeBody(form)}
		update.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Updated").WithJSONSchema(recordBody))
		update.AddResponse(http.StatusNotFound, openapi3.NewResponse().WithDescription("Not found").WithJSONSchema(errorSchema))
		doc.AddOperation(itemPath, http.MethodPost, update)

		remove := operation(res.Entity, "delete"+res.Name, "Delete a "+res.Entity)
		remove.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
		remove.AddResponse(http.StatusNoContent, openapi3.NewResponse().WithDescription("Deleted"))
		remove.AddResponse(http.StatusNotFound, openapi3.NewResponse().WithDescription("Not found").WithJSONSchema(errorSchema))
		doc.AddOperation(itemPath, http.MethodDelete, remove)
	}
	return doc, nil
}

func operation(tag, id, summary string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.Tags = []string{tag}
	op.OperationID = id
	op.Summary = summary
	return op
}

func writeBody(form *openapi3.Schema) *openapi3.RequestBody {
	content := openapi3.NewContentWithJSONSchema(form)
	for k, v := range openapi3.NewContentWithFormDataSchema(form) {
		content[k] = v
	}
	return openapi3.NewRequestBody().WithRequired(true).WithContent(content)
}

// formSchema converts a JSON Schema form into its OpenAPI equivalent.
func formSchema(form *jsonschema.Schema) (*openapi3.Schema, error) {
	if form == nil {
		return openapi3.NewObjectSchema().WithAnyAdditionalProperties(), nil
	}
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	out := &openapi3.Schema{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
