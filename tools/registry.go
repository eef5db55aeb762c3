// Package tools registers function declarations for the live session and
// dispatches model-initiated tool calls to their handlers.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/geminilive/telemetry"
)

// Declaration describes a function the model may call.
type Declaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Handler runs a tool call and returns the response mapping sent back to the model.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Call is one inbound tool-call request.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Result is the outcome of dispatching a Call.
type Result struct {
	// Handled is false when no handler is registered under the call's name.
	Handled bool

	// Response is the mapping to send back. Nil when Handled is false.
	Response map[string]any

	// Err is the handler or validation failure, already folded into Response.
	Err error
}

// Registry holds declarations in registration order and their handlers.
// Declarations are append-only.
type Registry struct {
	mu        sync.RWMutex
	decls     []Declaration
	handlers  map[string]Handler
	validator *SchemaValidator
	tracer    trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers:  make(map[string]Handler),
		validator: NewSchemaValidator(),
		tracer:    telemetry.Tracer(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends decl and binds handler to its name. A nil handler declares
// the function without dispatching it; the caller then answers such calls itself.
func (r *Registry) Register(decl Declaration, handler Handler) error {
	if decl.Name == "" {
		return fmt.Errorf("tool declaration requires a name")
	}
	if len(decl.Parameters) > 0 {
		if _, err := r.validator.getSchema(decl.Parameters); err != nil {
			return fmt.Errorf("invalid parameter schema for tool %s: %w", decl.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.decls {
		if d.Name == decl.Name {
			return fmt.Errorf("tool %q already registered", decl.Name)
		}
	}
	r.decls = append(r.decls, decl)
	if handler != nil {
		r.handlers[decl.Name] = handler
	}
	return nil
}

// Declarations returns a snapshot of the registered declarations.
func (r *Registry) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Declaration, len(r.decls))
	copy(out, r.decls)
	return out
}

// Len returns the number of declarations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decls)
}

func (r *Registry) lookup(name string) (Declaration, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return Declaration{}, nil, false
	}
	for _, d := range r.decls {
		if d.Name == name {
			return d, h, true
		}
	}
	return Declaration{Name: name}, h, true
}

// Dispatch runs the handler registered for call.Name synchronously.
// Handler and validation failures become an {"error": message} response so the
// model always gets an answer for a call it made to a known tool.
func (r *Registry) Dispatch(ctx context.Context, call Call) Result {
	ctx, span := r.tracer.Start(ctx, telemetry.SpanToolDispatch,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		),
	)
	defer span.End()

	decl, handler, ok := r.lookup(call.Name)
	if !ok {
		span.SetAttributes(attribute.Bool("tool.handled", false))
		return Result{}
	}
	span.SetAttributes(attribute.Bool("tool.handled", true))

	if err := r.validator.ValidateArgs(decl, call.Args); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{Handled: true, Response: ErrorResponse(err), Err: err}
	}

	resp, err := handler(ctx, call.Args)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{Handled: true, Response: ErrorResponse(err), Err: err}
	}
	if resp == nil {
		resp = map[string]any{}
	}
	span.SetStatus(codes.Ok, "")
	return Result{Handled: true, Response: resp}
}

// ErrorResponse is the response mapping used to report a failed call.
func ErrorResponse(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}
