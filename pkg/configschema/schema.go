// Package configschema describes the providerdesk configuration file as a
// JSON Schema and renders configuration values under their file keys.
package configschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nimburion/providerdesk/pkg/config"
)

var durationType = reflect.TypeOf(time.Duration(0))

// enums constrains string settings that only accept a fixed set of values.
var enums = map[string][]any{
	"cache.backend": {config.CacheBackendMemory, config.CacheBackendRedis},
	"log.level":     {"debug", "info", "warn", "error"},
	"log.format":    {"json", "text"},
}

// Build returns the schema of config.Config with the defaults of
// config.DefaultConfig. Property names are the keys a config file uses.
func Build() (*jsonschema.Schema, error) {
	t := reflect.TypeOf(config.Config{})
	schema, err := jsonschema.ForType(t, &jsonschema.ForOptions{
		IgnoreInvalidTypes: true,
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			durationType: {Type: "string", Description: `Go duration, e.g. "15s" or "10m"`},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build config schema: %w", err)
	}
	applyFieldNames(schema, t)
	injectDefaults(schema, reflect.ValueOf(config.DefaultConfig()))
	pruneRequiredWithDefaults(schema)
	for path, values := range enums {
		if prop := lookup(schema, path); prop != nil {
			prop.Enum = values
		}
	}

	schema.Title = "providerdesk configuration"
	schema.Schema = "https://json-schema.org/draft/2020-12/schema"
	return schema, nil
}

// Values renders a config struct as nested maps keyed like the config
// file. Durations become strings such as "15s".
func Values(cfg any) map[string]any {
	v := reflect.ValueOf(cfg)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return map[string]any{}
		}
		v = v.Elem()
	}
	out, ok := values(v).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return out
}

func values(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}
	if v.Kind() != reflect.Struct {
		return v.Interface()
	}
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		out[fieldKeyName(field)] = values(v.Field(i))
	}
	return out
}

func lookup(schema *jsonschema.Schema, path string) *jsonschema.Schema {
	for _, part := range strings.Split(path, ".") {
		if schema == nil {
			return nil
		}
		schema = schema.Properties[part]
	}
	return schema
}

// applyFieldNames renames properties from Go field names to their
// mapstructure keys, recursively.
func applyFieldNames(schema *jsonschema.Schema, t reflect.Type) {
	if schema == nil || t.Kind() != reflect.Struct || len(schema.Properties) == 0 {
		return
	}
	renamed := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		from, to := jsonFieldName(field), fieldKeyName(field)
		prop, ok := schema.Properties[from]
		if !ok {
			continue
		}
		delete(schema.Properties, from)
		schema.Properties[to] = prop
		renamed[from] = to
		applyFieldNames(prop, field.Type)
	}
	schema.Required = rename(schema.Required, renamed)
	schema.PropertyOrder = rename(schema.PropertyOrder, renamed)
}

func rename(names []string, renamed map[string]string) []string {
	if len(names) == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if to, ok := renamed[n]; ok {
			n = to
		}
		out = append(out, n)
	}
	return out
}

func injectDefaults(schema *jsonschema.Schema, v reflect.Value) {
	if schema == nil || !v.IsValid() {
		return
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || v.Type() == durationType {
		if schema.Default == nil {
			if raw, err := json.Marshal(values(v)); err == nil {
				schema.Default = raw
			}
		}
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		injectDefaults(schema.Properties[fieldKeyName(field)], v.Field(i))
	}
}

// pruneRequiredWithDefaults drops required entries that have a default, so
// a partial config file stays valid.
func pruneRequiredWithDefaults(schema *jsonschema.Schema) {
	if schema == nil {
		return
	}
	for _, prop := range schema.Properties {
		pruneRequiredWithDefaults(prop)
	}
	kept := schema.Required[:0]
	for _, name := range schema.Required {
		if prop := schema.Properties[name]; prop == nil || prop.Default == nil {
			kept = append(kept, name)
		}
	}
	schema.Required = kept
}

func fieldKeyName(field reflect.StructField) string {
	if tag, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ","); tag != "" && tag != "-" {
		return tag
	}
	return toSnakeCase(field.Name)
}

func jsonFieldName(field reflect.StructField) string {
	if tag, _, _ := strings.Cut(field.Tag.Get("json"), ","); tag != "" && tag != "-" {
		return tag
	}
	return field.Name
}

func toSnakeCase(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 8)
	for i, r := range value {
		if i > 0 && isWordBoundary(value, i, r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isWordBoundary(value string, index int, r rune) bool {
	if !unicode.IsUpper(r) {
		return false
	}
	prev := rune(value[index-1])
	if unicode.IsUpper(prev) {
		if index+1 < len(value) {
			return unicode.IsLower(rune(value[index+1]))
		}
		return false
	}
	return true
}
