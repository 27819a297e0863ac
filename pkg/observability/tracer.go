package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OTel TracerProvider with span helpers for ARES's
// suspension points: collect, validate, verify, rollback execution, and
// bus publish.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer from cfg. A disabled config yields a Tracer
// backed by the global (possibly no-op) OTel provider.
func NewTracer(ctx context.Context, cfg *TracingConfig) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return &Tracer{tracer: otel.Tracer(DefaultServiceName)}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: creating exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("observability: building resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{provider: provider, tracer: provider.Tracer(DefaultServiceName)}, nil
}

func newExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp", "":
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartCollect traces the Evidence Collector's collect() call.
func (t *Tracer) StartCollect(ctx context.Context, taskID, agentID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanCollect, attribute.String(AttrTaskID, taskID), attribute.String(AttrAgentID, agentID))
}

// StartValidate traces the Tool-Call Validator's validate() call.
func (t *Tracer) StartValidate(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanValidate, attribute.String(AttrToolName, toolName))
}

// StartVerify traces the Completion Verifier's verify() call.
func (t *Tracer) StartVerify(ctx context.Context, taskID, agentID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanVerify, attribute.String(AttrTaskID, taskID), attribute.String(AttrAgentID, agentID))
}

// StartRollbackExecute traces one Rollback Manager executor invocation.
func (t *Tracer) StartRollbackExecute(ctx context.Context, taskID, kind string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanRollbackExecute, attribute.String(AttrTaskID, taskID), attribute.String("kind", kind))
}

// StartBusPublish traces a Coordination Bus publish call.
func (t *Tracer) StartBusPublish(ctx context.Context, kind string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanBusPublish, attribute.String("kind", kind))
}

// RecordError annotates span with err if non-nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, err.Error()))
}

// Shutdown flushes and stops the tracer provider. A Tracer with no
// provider (disabled tracing) shuts down instantly.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
