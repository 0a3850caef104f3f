// Package i18n holds user-facing message codes, their localized templates
// and the AppError carrier that maps failures onto them.
package i18n

import (
	"maps"
	"slices"
)

// Translator resolves a message code into localized text. Unknown codes are
// returned unchanged.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Params carries the values interpolated into a message template.
type Params map[string]interface{}

// Names returns the param names in sorted order.
func (p Params) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// Message is a user-facing notification: a stable code plus params. Screens
// render it through a Translator instead of building strings themselves.
type Message struct {
	Code   string `json:"code"`
	Params Params `json:"params,omitempty"`
}

// NewMessage creates a Message. params is copied.
func NewMessage(code string, params Params) Message {
	return Message{Code: code, Params: copyParams(params)}
}

// Localize renders m with tr.
func (m Message) Localize(tr Translator) string {
	return tr.T(m.Code, m.Params)
}

// CanonicalParams returns the param names in sorted order.
func CanonicalParams(params Params) []string {
	return params.Names()
}

func copyParams(params Params) Params {
	if len(params) == 0 {
		return nil
	}
	return maps.Clone(params)
}
