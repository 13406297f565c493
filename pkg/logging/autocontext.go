package logging

import (
	"context"

	"github.com/Combine-Capital/ctxlog/pkg/caller"
	"github.com/Combine-Capital/ctxlog/pkg/logctx"
)

// autoContext builds the automatically derived field set for one emission:
// the scope snapshot, caller identity and active-span trace identifiers,
// merged under strict precedence. Explicit and propagated values always win
// over locally observed ones.
func (l *Logger) autoContext(ctx context.Context) map[string]any {
	fields := logctx.All(ctx)
	component, _ := fields[FieldComponent].(string)

	// Caller identity is noise for HTTP: route and path already convey it.
	if component != ComponentHTTP {
		_, hasService := fields[FieldService]
		_, hasMethod := fields[FieldMethod]
		if !hasService && !hasMethod {
			info := caller.ResolveCached(ctx, 1)
			if info.Service != "" && !invalidValues[info.Service] {
				fields[FieldService] = info.Service
			}
			if info.Method != "" && !invalidValues[info.Method] {
				fields[FieldMethod] = info.Method
			}
		}
	}

	if l.tracer != nil {
		if traceID, spanID, ok := l.tracer.ActiveSpan(ctx); ok {
			if _, exists := fields[FieldTraceID]; !exists {
				fields[FieldTraceID] = traceID
			}
			if _, exists := fields[FieldSpanID]; !exists {
				fields[FieldSpanID] = spanID
			}
		}
	}

	for k, v := range fields {
		if k == logctx.ReservedContextKey || isInvalidValue(v) {
			delete(fields, k)
		}
	}

	return fields
}
