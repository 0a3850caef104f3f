package i18n

// AppError is a failure with a stable message code. Cause keeps the
// underlying error for errors.Is and errors.As.
type AppError struct {
	Code            string
	FallbackMessage string
	Params          Params
	Details         map[string]interface{}
	HTTPStatus      int
	Cause           error
}

// NewError creates an AppError. params is copied.
func NewError(code string, params Params, cause error) *AppError {
	return &AppError{Code: code, Params: copyParams(params), Cause: cause}
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	text := e.FallbackMessage
	if text == "" {
		text = e.Code
	}
	if e.Cause == nil {
		return text
	}
	return text + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Message returns the notification for e.
func (e *AppError) Message() Message {
	if e == nil {
		return Message{}
	}
	return NewMessage(e.Code, e.Params)
}

// Localize renders e with tr. A code the catalog does not know falls back to
// FallbackMessage so users never see a bare code.
func (e *AppError) Localize(tr Translator) string {
	if e == nil {
		return ""
	}
	if text := tr.T(e.Code, e.Params); text != e.Code || e.FallbackMessage == "" {
		return text
	}
	return e.FallbackMessage
}

// The With* setters mutate e and return it for chaining. They are no-ops on
// a nil receiver.

func (e *AppError) WithMessage(message string) *AppError {
	return e.with(func(e *AppError) { e.FallbackMessage = message })
}

func (e *AppError) WithHTTPStatus(status int) *AppError {
	return e.with(func(e *AppError) { e.HTTPStatus = status })
}

// WithDetails attaches structured details, e.g. per-field messages.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	return e.with(func(e *AppError) { e.Details = details })
}

func (e *AppError) with(set func(*AppError)) *AppError {
	if e != nil {
		set(e)
	}
	return e
}
