// Package logging provides the contextual structured log emitter of the
// ctxlog core. Every emission merges the process-lifetime infrastructure
// context, the auto-resolved request context (correlation ids, trace ids,
// caller identity) and caller-supplied metadata into one structured record,
// applies redaction, and forwards exactly one record to zerolog.
//
// Example usage:
//
//	logger := logging.New(cfg)
//	mux := logging.HTTPMiddleware(logger)(handler)
//
//	// inside a handler:
//	logctx.Set(ctx, logging.FieldTenantID, "t1")
//	logger.Info(ctx, "order placed", logging.WithMeta(logging.Fields{"order_id": id}))
package logging

// Canonical field names for structured records. These constants keep field
// naming consistent across all services using the library.
const (
	// Request correlation
	FieldRequestID       = "request_id"
	FieldCorrelationID   = "correlation_id"
	FieldTransactionID   = "transaction_id"
	FieldOperationID     = "operation_id"
	FieldParentRequestID = "parent_request_id"
	FieldRootRequestID   = "root_request_id"

	// Distributed tracing
	FieldTraceID      = "trace_id"
	FieldSpanID       = "span_id"
	FieldParentSpanID = "parent_span_id"
	FieldTraceFlags   = "trace_flags"

	// User / session
	FieldUserID    = "user_id"
	FieldUserRole  = "user_role"
	FieldSessionID = "session_id"

	// Service / transport
	FieldComponent      = "component"
	FieldService        = "service"
	FieldMethod         = "method"
	FieldServiceName    = "service_name"
	FieldServiceVersion = "service_version"
	FieldPath           = "path"
	FieldHTTPMethod     = "http_method"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"

	// Business
	FieldTenantID       = "tenant_id"
	FieldOrganizationID = "organization_id"
	FieldAction         = "action"
	FieldResource       = "resource"
	FieldResourceID     = "resource_id"
	FieldSource         = "source"
	FieldClientID       = "client_id"

	// Categorization
	FieldTags         = "tags"
	FieldCategory     = "category"
	FieldSubcategory  = "subcategory"
	FieldSeverity     = "severity"
	FieldFeatureFlags = "feature_flags"

	// Failure details
	FieldErrorName    = "error_name"
	FieldErrorMessage = "error_message"
	FieldErrorCode    = "error_code"
	FieldStack        = "stack"
	FieldCause        = "cause"
	FieldTransport    = "transport"
)

// Component values identifying the transport of the current unit of work.
const (
	ComponentHTTP      = "http"
	ComponentRPC       = "rpc"
	ComponentWebsocket = "websocket"
)

// invalidValues are internal type and method names that occasionally leak
// through caller resolution; fields carrying them are stripped from records.
var invalidValues = map[string]bool{
	"Object":      true,
	"Function":    true,
	"constructor": true,
	"anonymous":   true,
	"Internal":    true,
	"Abstract":    true,
	"Operator":    true,
}

// isInvalidValue reports whether a field value belongs to the invalid set.
func isInvalidValue(v any) bool {
	s, ok := v.(string)
	return ok && invalidValues[s]
}
