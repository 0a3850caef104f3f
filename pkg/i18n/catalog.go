package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Fallback modes for NewCatalog.
const (
	// FallbackBase tries the base language (it-ch -> it) before the default.
	FallbackBase = "base"
	// FallbackDefault goes straight from the requested locale to the default.
	FallbackDefault = "default"
)

// Catalog maps locale -> message code -> template. Templates use {{param}}
// placeholders; {param} is accepted too.
type Catalog struct {
	defaultLocale string
	withBase      bool
	messages      map[string]map[string]string
}

// NewCatalog creates an empty translation catalog. An empty fallbackMode
// means FallbackBase.
func NewCatalog(defaultLocale, fallbackMode string) *Catalog {
	mode := strings.ToLower(strings.TrimSpace(fallbackMode))
	return &Catalog{
		defaultLocale: normalizeLocale(defaultLocale),
		withBase:      mode == "" || mode == FallbackBase,
		messages:      make(map[string]map[string]string),
	}
}

//go:embed locales/*.yaml
var builtinLocales embed.FS

// Default returns the built-in catalog (en, it) with English as fallback.
func Default() *Catalog {
	catalog, err := LoadCatalogFS(builtinLocales, "locales", "en", FallbackBase)
	if err != nil {
		panic(fmt.Sprintf("i18n: built-in catalog is invalid: %v", err))
	}
	return catalog
}

// LoadCatalogDir loads every <locale>.json, <locale>.yaml or <locale>.yml
// file in dir.
func LoadCatalogDir(dir, defaultLocale, fallbackMode string) (*Catalog, error) {
	if strings.TrimSpace(dir) == "" {
		return NewCatalog(defaultLocale, fallbackMode), nil
	}
	return LoadCatalogFS(os.DirFS(dir), ".", defaultLocale, fallbackMode)
}

var decoders = map[string]func([]byte, any) error{
	".json": json.Unmarshal,
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
}

// LoadCatalogFS is LoadCatalogDir over an fs.FS.
func LoadCatalogFS(fsys fs.FS, dir, defaultLocale, fallbackMode string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read i18n catalog dir: %w", err)
	}

	catalog := NewCatalog(defaultLocale, fallbackMode)
	for _, entry := range entries {
		name := entry.Name()
		ext := path.Ext(name)
		decode, ok := decoders[strings.ToLower(ext)]
		locale := strings.TrimSuffix(name, ext)
		if entry.IsDir() || !ok || strings.TrimSpace(locale) == "" {
			continue
		}

		file := path.Join(dir, name)
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read i18n catalog %s: %w", file, err)
		}
		var tree map[string]any
		if err := decode(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode i18n catalog %s: %w", file, err)
		}
		flat := make(map[string]string)
		flatten(tree, "", flat)
		catalog.Add(locale, flat)
	}
	return catalog, nil
}

// Add merges templates into locale. Later calls win on duplicate codes.
func (c *Catalog) Add(locale string, entries map[string]string) {
	locale = normalizeLocale(locale)
	if locale == "" {
		return
	}
	table, ok := c.messages[locale]
	if !ok {
		table = make(map[string]string, len(entries))
		c.messages[locale] = table
	}
	for code, tmpl := range entries {
		if code = strings.TrimSpace(code); code != "" {
			table[code] = tmpl
		}
	}
}

// ForLocale returns a Translator bound to locale.
func (c *Catalog) ForLocale(locale string) Translator {
	return translator{catalog: c, chain: c.chain(normalizeLocale(locale))}
}

// chain lists the locales consulted for locale, most specific first,
// without duplicates.
func (c *Catalog) chain(locale string) []string {
	candidates := []string{locale}
	if c.withBase {
		candidates = append(candidates, baseLocale(locale))
	}
	candidates = append(candidates, c.defaultLocale)
	if c.withBase {
		candidates = append(candidates, baseLocale(c.defaultLocale))
	}

	out := candidates[:0]
	for _, loc := range candidates {
		if loc == "" || contains(out, loc) {
			continue
		}
		out = append(out, loc)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

type translator struct {
	catalog *Catalog
	chain   []string
}

// T resolves code along the locale chain and interpolates args. args is
// either a single Params (or map[string]any) or alternating name, value
// pairs. Unknown codes come back unchanged.
func (t translator) T(code string, args ...interface{}) string {
	code = strings.TrimSpace(code)
	if code == "" || t.catalog == nil {
		return code
	}
	for _, loc := range t.chain {
		if tmpl, ok := t.catalog.messages[loc][code]; ok {
			return interpolate(tmpl, toParams(args))
		}
	}
	return code
}

func toParams(args []interface{}) Params {
	if len(args) == 1 {
		switch v := args[0].(type) {
		case Params:
			return v
		case map[string]interface{}:
			return Params(v)
		}
	}
	params := make(Params, len(args)/2)
	for i := 1; i < len(args); i += 2 {
		if name, ok := args[i-1].(string); ok {
			params[name] = args[i]
		}
	}
	return params
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}|\{([A-Za-z0-9_.]+)\}`)

// interpolate substitutes known params and leaves unknown placeholders in
// place.
func interpolate(tmpl string, params Params) string {
	if len(params) == 0 {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if value, ok := params[name]; ok {
			return fmt.Sprint(value)
		}
		return match
	})
}

// flatten turns nested catalog trees into dotted codes.
func flatten(tree map[string]any, prefix string, out map[string]string) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(v, key, out)
		case string:
			out[key] = v
		}
	}
}

var localeJunk = regexp.MustCompile(`[^a-z0-9-]`)

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	return localeJunk.ReplaceAllString(strings.ReplaceAll(locale, "_", "-"), "")
}

func baseLocale(locale string) string {
	base, _, _ := strings.Cut(locale, "-")
	return base
}
