package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// unwrap returns the "data" member of an envelope response, or raw itself.
func unwrap(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 {
		return trimmed
	}
	return env.Data
}

// DecodeList decodes a bare JSON array or {"data": [...]}. An empty or
// null body yields an empty list.
func DecodeList[T any](raw []byte) ([]T, error) {
	data := unwrap(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// DecodeRecord decodes a bare JSON object or {"data": {...}} into v.
func DecodeRecord(raw []byte, v any) error {
	data := unwrap(raw)
	if len(data) == 0 {
		return fmt.Errorf("decode record: empty body")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// ListInto fetches and decodes a collection.
func ListInto[T any](ctx context.Context, c *Client, res Resource, p Params) ([]T, error) {
	raw, err := c.List(ctx, res, p)
	if err != nil {
		return nil, err
	}
	return DecodeList[T](raw)
}
