package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AltairaLabs/geminilive/telemetry"
)

const weatherSchema = `{
	"type": "OBJECT",
	"properties": {
		"city": {"type": "STRING"},
		"days": {"type": "INTEGER"}
	},
	"required": ["city"]
}`

func echoHandler(_ context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{"echo": args}, nil
}

func TestRegister_AppendOnlyOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{Name: "a"}, echoHandler))
	require.NoError(t, r.Register(Declaration{Name: "b", Description: "second"}, nil))

	decls := r.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "a", decls[0].Name)
	assert.Equal(t, "b", decls[1].Name)
	assert.Equal(t, 2, r.Len())

	decls[0].Name = "mutated"
	assert.Equal(t, "a", r.Declarations()[0].Name)
}

func TestRegister_Rejects(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Declaration{}, echoHandler))

	require.NoError(t, r.Register(Declaration{Name: "dup"}, echoHandler))
	assert.Error(t, r.Register(Declaration{Name: "dup"}, echoHandler))

	err := r.Register(Declaration{Name: "bad", Parameters: json.RawMessage(`{"type": 5}`)}, echoHandler)
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestDispatch_RoundTrip(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{Name: "f"}, func(_ context.Context, args map[string]any) (map[string]any, error) {
		assert.Equal(t, float64(1), args["x"])
		return map[string]any{"y": 2}, nil
	}))

	res := r.Dispatch(context.Background(), Call{ID: "id-1", Name: "f", Args: map[string]any{"x": float64(1)}})

	assert.True(t, res.Handled)
	assert.NoError(t, res.Err)
	assert.Equal(t, map[string]any{"y": 2}, res.Response)
}

func TestDispatch_Unknown(t *testing.T) {
	r := NewRegistry()

	res := r.Dispatch(context.Background(), Call{ID: "1", Name: "missing"})

	assert.False(t, res.Handled)
	assert.Nil(t, res.Response)
}

func TestDispatch_DeclaredWithoutHandlerIsUnhandled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{Name: "manual"}, nil))

	res := r.Dispatch(context.Background(), Call{ID: "1", Name: "manual"})

	assert.False(t, res.Handled)
}

func TestDispatch_HandlerError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{Name: "f"}, func(context.Context, map[string]any) (map[string]any, error) {
		return nil, errors.New("backend down")
	}))

	res := r.Dispatch(context.Background(), Call{ID: "1", Name: "f"})

	assert.True(t, res.Handled)
	assert.EqualError(t, res.Err, "backend down")
	assert.Equal(t, map[string]any{"error": "backend down"}, res.Response)
}

func TestDispatch_NilResponseBecomesEmpty(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{Name: "f"}, func(context.Context, map[string]any) (map[string]any, error) {
		return nil, nil
	}))

	res := r.Dispatch(context.Background(), Call{ID: "1", Name: "f"})

	assert.Equal(t, map[string]any{}, res.Response)
}

func TestDispatch_ValidatesArgs(t *testing.T) {
	r := NewRegistry()
	called := false
	require.NoError(t, r.Register(
		Declaration{Name: "weather", Parameters: json.RawMessage(weatherSchema)},
		func(context.Context, map[string]any) (map[string]any, error) {
			called = true
			return map[string]any{"temp": 21}, nil
		},
	))

	bad := r.Dispatch(context.Background(), Call{ID: "1", Name: "weather", Args: map[string]any{"days": 2}})
	assert.True(t, bad.Handled)
	var vErr *ValidationError
	require.ErrorAs(t, bad.Err, &vErr)
	assert.Equal(t, "weather", vErr.Tool)
	assert.Contains(t, bad.Response["error"], "city")
	assert.False(t, called)

	good := r.Dispatch(context.Background(), Call{ID: "2", Name: "weather", Args: map[string]any{"city": "Oslo", "days": 2}})
	assert.NoError(t, good.Err)
	assert.True(t, called)
}

func TestDispatch_Span(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	r := NewRegistry(WithTracer(tp.Tracer(telemetry.InstrumentationName)))
	require.NoError(t, r.Register(Declaration{Name: "f"}, func(context.Context, map[string]any) (map[string]any, error) {
		return nil, errors.New("boom")
	}))

	r.Dispatch(context.Background(), Call{ID: "id-9", Name: "f"})

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, telemetry.SpanToolDispatch, span.Name)
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Contains(t, span.Attributes, attribute.String("tool.call_id", "id-9"))
	assert.Contains(t, span.Attributes, attribute.Bool("tool.handled", true))
}
