package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of service spans
const TracerName = "helpdesk-backend"

const (
	SpanAttrTenantID   = "tenant.id"
	SpanAttrTenantSlug = "tenant.slug"
	SpanAttrUserID     = "enduser.id"
	SpanAttrRequestID  = "http.request_id"
	SpanAttrLocationID = "location.id"
	SpanAttrTemplateID = "ticket_template.id"
	SpanAttrChatbotID  = "chatbot.id"
	SpanAttrFlowID     = "chatbot_flow.id"
)

// LocationID is the span attribute for a location
func LocationID(id uuid.UUID) attribute.KeyValue {
	return attribute.String(SpanAttrLocationID, id.String())
}

// TemplateID is the span attribute for a ticket template
func TemplateID(id uuid.UUID) attribute.KeyValue {
	return attribute.String(SpanAttrTemplateID, id.String())
}

// ChatbotID is the span attribute for a chatbot
func ChatbotID(id uuid.UUID) attribute.KeyValue {
	return attribute.String(SpanAttrChatbotID, id.String())
}

// FlowID is the span attribute for a chatbot flow
func FlowID(id uuid.UUID) attribute.KeyValue {
	return attribute.String(SpanAttrFlowID, id.String())
}

// StartServiceSpan opens an internal span "<service>.<op>" for one tenant
// scoped use case. Pair it with EndSpan:
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "location", "update", tenantID, telemetry.LocationID(id))
//	defer telemetry.EndSpan(span, &err)
func StartServiceSpan(ctx context.Context, service, op string, tenantID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, service+"."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(SpanAttrTenantID, tenantID.String())),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan ends span, first marking it failed when *errp is set. errp
// points at the caller's named error result.
func EndSpan(span trace.Span, errp *error) {
	if errp != nil && *errp != nil {
		span.RecordError(*errp)
		span.SetStatus(codes.Error, (*errp).Error())
	}
	span.End()
}

// GetTraceID returns the hex trace ID of the span in ctx, "" without one
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
