package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/parley-dev/parley/pkg/protocol"
	"github.com/parley-dev/parley/pkg/session"
)

// Default tracer name for parley applications.
const defaultTracerName = "parley"

// OTelConfig configures the OpenTelemetry session wrapper.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "parley").
	TracerName string

	// IncludeClientInfo adds the client address and user agent to
	// session spans. May contain sensitive information - disabled by
	// default.
	IncludeClientInfo bool

	// Filter determines which client events get spans. Return true to
	// trace the event. If nil, all events are traced.
	Filter func(ev protocol.Event) bool

	// AttributeExtractor extracts custom attributes for the session
	// span.
	AttributeExtractor func(s session.Session) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry session wrapper.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeClientInfo enables client address and user agent
// attributes on session spans.
func WithIncludeClientInfo(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeClientInfo = include
	}
}

// WithEventFilter sets a filter function for client events.
func WithEventFilter(filter func(ev protocol.Event) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor for session
// spans.
func WithAttributeExtractor(extractor func(s session.Session) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry returns a session wrapper for server.Config.WrapSession
// that traces each session's lifetime as one span and every delivered
// client event as a child span.
//
// The tracer comes from the global OpenTelemetry tracer provider.
// Configure it in main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//
//	cfg := server.DefaultConfig()
//	cfg.WrapSession = middleware.OpenTelemetry()
func OpenTelemetry(opts ...OTelOption) func(session.Session) session.Session {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return func(s session.Session) session.Session {
		info := s.Info()
		attrs := []attribute.KeyValue{
			attribute.String("parley.session_id", s.ID()),
			attribute.String("parley.kind", s.Kind().String()),
			attribute.String("parley.transport", info.Protocol),
		}
		if config.IncludeClientInfo {
			attrs = append(attrs,
				attribute.String("parley.client_ip", info.IP),
				attribute.String("parley.user_agent", info.UserAgent))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(s)...)
		}

		ctx, span := config.tracer.Start(context.Background(), "parley.session",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...))

		go func() {
			<-s.Done()
			st := s.Stats()
			span.SetAttributes(
				attribute.Int64("parley.events_received", int64(st.EventsReceived)),
				attribute.Int64("parley.events_dropped", int64(st.EventsDropped)),
				attribute.Int64("parley.commands_sent", int64(st.CommandsSent)))
			span.End()
		}()

		return &tracedSession{Session: s, cfg: config, ctx: ctx}
	}
}

// tracedSession wraps a session so every delivery gets a span parented
// to the session span. All other behavior passes through.
type tracedSession struct {
	session.Session
	cfg OTelConfig
	ctx context.Context
}

func (t *tracedSession) Deliver(ev protocol.Event) error {
	if t.cfg.Filter != nil && !t.cfg.Filter(ev) {
		return t.Session.Deliver(ev)
	}

	_, span := t.cfg.tracer.Start(t.ctx, "parley.event."+ev.Kind,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("parley.event", ev.Kind),
			attribute.Int64("parley.task_id", ev.Task)))
	defer span.End()

	err := t.Session.Deliver(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}
