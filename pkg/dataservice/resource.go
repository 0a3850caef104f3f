package dataservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Resource is an entity path segment, e.g. "accommodations".
type Resource string

// Params narrows a list request.
type Params struct {
	CategoryID string
	Status     string
	// Extra is merged into the query string as-is.
	Extra url.Values
}

func (p Params) values() url.Values {
	v := url.Values{}
	for key, vals := range p.Extra {
		for _, val := range vals {
			v.Add(key, val)
		}
	}
	if p.CategoryID != "" {
		v.Set("category_id", p.CategoryID)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	return v
}

// Body is an encoded request body.
type Body struct {
	ContentType string
	Data        []byte
}

// JSONBody encodes v as a JSON Body.
func JSONBody(v any) (Body, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Body{}, fmt.Errorf("encode json body: %w", err)
	}
	return Body{ContentType: "application/json", Data: raw}, nil
}

func (b Body) reader() *bytes.Reader {
	return bytes.NewReader(b.Data)
}

// MediaResolver turns stored image paths into absolute URLs.
type MediaResolver struct {
	base *url.URL
}

// NewMediaResolver parses base. An empty base resolves paths unchanged.
func NewMediaResolver(base string) (*MediaResolver, error) {
	if strings.TrimSpace(base) == "" {
		return &MediaResolver{}, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse media base url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("media base url must be absolute: %q", base)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &MediaResolver{base: u}, nil
}

// Resolve returns the absolute URL of path. Empty paths stay empty and
// absolute URLs pass through.
func (r *MediaResolver) Resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || r == nil || r.base == nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	if ref.IsAbs() {
		return path
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return r.base.ResolveReference(ref).String()
}
