package mutation

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/i18n"
	"github.com/nimburion/providerdesk/pkg/resilience"
)

// ValidationError is a local, pre-dispatch rejection. Fields maps form field
// names to a human reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, name := range e.FieldNames() {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldNames returns the invalid field names in sorted order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = reason
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ErrConfirmationRequired is returned by SubmitDelete when the request is not
// confirmed. Nothing is dispatched.
var ErrConfirmationRequired = &ValidationError{Fields: map[string]string{"confirmed": "confirmation required"}}

// Kind is the class of a mutation failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTransport
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Classify reports which class err belongs to.
func Classify(err error) Kind {
	var (
		validationErr *ValidationError
		transportErr  *dataservice.TransportError
		serverErr     *dataservice.ServerError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &serverErr):
		return KindServer
	default:
		return KindUnknown
	}
}

// ToAppError maps err onto a localizable AppError. entity and id fill the
// message params where the code uses them.
func ToAppError(err error, entity, id string) *i18n.AppError {
	if err == nil {
		return nil
	}
	var appErr *i18n.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	params := i18n.Params{"entity": entity, "id": id}
	if errors.Is(err, ErrConfirmationRequired) {
		return i18n.NewError(i18n.CodeConfirmationRequired, params, err).
			WithMessage("confirmation required").
			WithHTTPStatus(http.StatusPreconditionRequired)
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		details := make(map[string]interface{}, len(validationErr.Fields))
		for name, reason := range validationErr.Fields {
			details[name] = reason
		}
		return i18n.NewError(i18n.CodeValidation, params, err).
			WithMessage("validation failed").
			WithHTTPStatus(http.StatusUnprocessableEntity).
			WithDetails(details)
	}

	var serverErr *dataservice.ServerError
	if errors.As(err, &serverErr) {
		switch serverErr.Status {
		case http.StatusUnauthorized:
			return i18n.NewError(i18n.CodeUnauthorized, params, err).
				WithMessage("unauthorized").
				WithHTTPStatus(http.StatusUnauthorized)
		case http.StatusNotFound:
			return i18n.NewError(i18n.CodeNotFound, params, err).
				WithMessage("not found").
				WithHTTPStatus(http.StatusNotFound)
		}
		params["status"] = serverErr.Status
		params["message"] = serverErr.Message
		if serverErr.Message == "" {
			params["message"] = http.StatusText(serverErr.Status)
		}
		return i18n.NewError(i18n.CodeServer, params, err).
			WithMessage("server error").
			WithHTTPStatus(serverErr.Status)
	}

	var transportErr *dataservice.TransportError
	if errors.As(err, &transportErr) || errors.Is(err, resilience.ErrTimeout) {
		return i18n.NewError(i18n.CodeTransport, params, err).
			WithMessage("transport error").
			WithHTTPStatus(http.StatusServiceUnavailable)
	}

	return i18n.NewError(i18n.CodeServer, i18n.Params{"status": 0, "message": err.Error()}, err).
		WithMessage("unexpected error").
		WithHTTPStatus(http.StatusInternalServerError)
}
