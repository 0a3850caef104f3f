package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/i18n"
	"github.com/nimburion/providerdesk/pkg/observability/logger"
	"github.com/nimburion/providerdesk/pkg/observability/metrics"
	"github.com/nimburion/providerdesk/pkg/query"
	"github.com/nimburion/providerdesk/pkg/resilience"
)

// DefaultTimeout bounds a dispatched mutation once it is detached from the
// caller.
const DefaultTimeout = 30 * time.Second

// DataService is the mutate half of the data service contract.
type DataService interface {
	Create(ctx context.Context, res dataservice.Resource, body dataservice.Body) ([]byte, error)
	Update(ctx context.Context, res dataservice.Resource, id string, body dataservice.Body) ([]byte, error)
	Delete(ctx context.Context, res dataservice.Resource, id string) error
}

// Invalidator marks cached collections stale. *query.Client implements it.
type Invalidator interface {
	Invalidate(keys ...query.Key)
}

// Notifier receives the success message of each mutation.
type Notifier interface {
	Notify(ctx context.Context, msg i18n.Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg i18n.Message)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, msg i18n.Message) { f(ctx, msg) }

// Outcome is the result of a successful submission.
type Outcome struct {
	Record      json.RawMessage
	Route       Route
	Invalidated []query.Key
	Message     i18n.Message
}

// Coordinator runs submissions: validate, encode, dispatch, notify and
// invalidate, in that order. It holds no per-request state.
type Coordinator struct {
	service   DataService
	cache     Invalidator
	validator SchemaValidator
	notifier  Notifier
	authHook  func(context.Context, error)
	log       logger.Logger
	timeout   time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithValidator sets the schema validator run before dispatch.
func WithValidator(v SchemaValidator) Option {
	return func(c *Coordinator) {
		c.validator = v
	}
}

// WithAuthHook sets the function called on a 401. The error is still
// returned to the caller.
func WithAuthHook(hook func(context.Context, error)) Option {
	return func(c *Coordinator) {
		c.authHook = hook
	}
}

// WithNotifier sets the success notification sink.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTimeout bounds each dispatch. Non-positive values disable the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// NewCoordinator creates a Coordinator over service and cache.
func NewCoordinator(service DataService, cache Invalidator, opts ...Option) *Coordinator {
	c := &Coordinator{
		service: service,
		cache:   cache,
		log:     logger.NewNop(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitCreate validates and creates req.
func (c *Coordinator) SubmitCreate(ctx context.Context, req Request) (Outcome, error) {
	req.operation = OpCreate
	return c.submit(ctx, req)
}

// SubmitUpdate validates req and updates record id.
func (c *Coordinator) SubmitUpdate(ctx context.Context, id string, req Request) (Outcome, error) {
	req.operation, req.targetID = OpUpdate, id
	return c.submit(ctx, req)
}

// SubmitDelete deletes record id. req.Confirmed must be true.
func (c *Coordinator) SubmitDelete(ctx context.Context, id string, req Request) (Outcome, error) {
	req.operation, req.targetID = OpDelete, id
	return c.submit(ctx, req)
}

func (c *Coordinator) submit(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{Route: req.Route}
	log := c.log.WithContext(ctx).With(
		"operation", string(req.operation),
		"resource", string(req.Route.Resource),
		"id", req.targetID,
	)

	if err := c.check(req); err != nil {
		c.fail(ctx, log, req, err)
		return out, err
	}

	var body dataservice.Body
	if req.operation != OpDelete {
		var err error
		if body, err = Encode(req); err != nil {
			c.fail(ctx, log, req, err)
			return out, err
		}
	}

	// The caller's cancellation must not abort a submitted mutation.
	dispatchCtx := context.WithoutCancel(ctx)
	var record []byte
	err := resilience.WithTimeout(dispatchCtx, c.timeout, func(ctx context.Context) error {
		var dispatchErr error
		record, dispatchErr = c.dispatch(ctx, req, body)
		return dispatchErr
	})
	if errors.Is(err, resilience.ErrTimeout) {
		err = &dataservice.TransportError{Op: string(req.operation), Resource: string(req.Route.Resource), Err: err}
	}
	if err != nil {
		c.fail(ctx, log, req, err)
		return out, err
	}

	out.Record = json.RawMessage(record)
	out.Message = successMessage(req)
	if c.notifier != nil {
		c.notifier.Notify(ctx, out.Message)
	}
	out.Invalidated = req.Route.Keys()
	if c.cache != nil {
		c.cache.Invalidate(out.Invalidated...)
	}
	metrics.RecordMutation(string(req.operation), "success")
	log.Info("mutation succeeded", "invalidated", len(out.Invalidated))
	return out, nil
}

// check runs every local precondition. Nothing here touches the network.
func (c *Coordinator) check(req Request) error {
	if req.operation == OpDelete && !req.Confirmed {
		return ErrConfirmationRequired
	}

	verr := &ValidationError{}
	if req.Route.Resource == "" || req.Route.Collection == "" {
		verr.add("route", "resource and collection are required")
	}
	if req.operation != OpCreate && req.targetID == "" {
		verr.add("id", "required")
	}
	if req.operation == OpDelete {
		return verr.orNil()
	}

	for field, reason := range checkAttachments(req).Fields {
		verr.add(field, reason)
	}
	if c.validator != nil {
		inst, err := instance(req)
		if err != nil {
			return err
		}
		if err := c.validator.Validate(req.Route.Resource, inst); err != nil {
			var schemaErr *ValidationError
			if !errors.As(err, &schemaErr) {
				return err
			}
			for field, reason := range schemaErr.Fields {
				verr.add(field, reason)
			}
		}
	}
	return verr.orNil()
}

func (c *Coordinator) dispatch(ctx context.Context, req Request, body dataservice.Body) ([]byte, error) {
	switch req.operation {
	case OpCreate:
		return c.service.Create(ctx, req.Route.Resource, body)
	case OpUpdate:
		return c.service.Update(ctx, req.Route.Resource, req.targetID, body)
	default:
		return nil, c.service.Delete(ctx, req.Route.Resource, req.targetID)
	}
}

func (c *Coordinator) fail(ctx context.Context, log logger.Logger, req Request, err error) {
	kind := Classify(err)
	metrics.RecordMutation(string(req.operation), kind.String())
	if dataservice.IsUnauthorized(err) && c.authHook != nil {
		c.authHook(ctx, err)
	}
	if kind == KindValidation {
		log.Debug("mutation rejected", "error", err)
		return
	}
	log.Warn("mutation failed", "kind", kind.String(), "error", err)
}

func successMessage(req Request) i18n.Message {
	params := i18n.Params{"entity": req.Entity, "id": req.targetID}
	switch req.operation {
	case OpUpdate:
		return i18n.NewMessage(i18n.CodeUpdated, params)
	case OpDelete:
		return i18n.NewMessage(i18n.CodeDeleted, params)
	default:
		return i18n.NewMessage(i18n.CodeCreated, params)
	}
}
