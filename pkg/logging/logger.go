package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Combine-Capital/ctxlog/pkg/config"
	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/metrics"
	"github.com/Combine-Capital/ctxlog/pkg/tracing"
)

// Logger is the structured log emitter. It is immutable after construction
// and safe for concurrent use across all units of work in the process.
type Logger struct {
	zlog    zerolog.Logger
	label   string
	infra   map[string]any
	redact  *redactor
	tracer  *tracing.Provider
	emitted *metrics.Counter
}

// New creates a Logger from the provided configuration. The infrastructure
// context is computed once here and merged into every record.
func New(cfg *config.Config) *Logger {
	var w io.Writer
	switch strings.ToLower(cfg.Log.Output) {
	case "stderr":
		w = os.Stderr
	default:
		w = os.Stdout
	}

	l := &Logger{
		label:  cfg.Log.Label,
		infra:  infraContext(cfg),
		redact: newRedactor(cfg.Log.Redact),
	}

	if cfg.Tracing.Enabled {
		l.tracer = &tracing.Provider{}
	}
	if cfg.Metrics.Enabled {
		counter, err := metrics.NewCounter(metrics.CounterOpts{
			Namespace: cfg.Metrics.Namespace,
			Subsystem: "logging",
			Name:      "records_emitted_total",
			Help:      "Total count of emitted log records by level.",
			Labels:    []string{"level"},
		})
		if err == nil {
			l.emitted = counter
		}
	}

	if cfg.EffectivePrettyPrint() {
		l.zlog = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"})
	} else {
		l.zlog = zerolog.New(w)
	}
	l.zlog = l.zlog.With().Timestamp().Logger().Level(parseLevel(cfg.EffectiveLevel()))

	return l
}

// parseLevel converts a configured level name to a zerolog level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Output returns a copy of the logger writing JSON records to w.
// Intended for tests and custom sinks.
func (l *Logger) Output(w io.Writer) *Logger {
	clone := *l
	clone.zlog = zerolog.New(w).With().Timestamp().Logger().Level(l.zlog.GetLevel())
	return &clone
}

// Labeled returns a copy of the logger with the given default context label.
// Per-call labels passed via WithLabel still take precedence.
func (l *Logger) Labeled(label string) *Logger {
	clone := *l
	clone.label = label
	return &clone
}

// Level returns the logger's minimum severity.
func (l *Logger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

// Trace emits a trace-severity record.
func (l *Logger) Trace(ctx context.Context, msg any, opts ...Option) {
	l.emit(ctx, zerolog.TraceLevel, msg, opts)
}

// Debug emits a debug-severity record.
func (l *Logger) Debug(ctx context.Context, msg any, opts ...Option) {
	l.emit(ctx, zerolog.DebugLevel, msg, opts)
}

// Info emits an info-severity record.
func (l *Logger) Info(ctx context.Context, msg any, opts ...Option) {
	l.emit(ctx, zerolog.InfoLevel, msg, opts)
}

// Warn emits a warn-severity record. A label is given via WithLabel and
// metadata via WithMeta; there is no overloaded second parameter.
func (l *Logger) Warn(ctx context.Context, msg any, opts ...Option) {
	l.emit(ctx, zerolog.WarnLevel, msg, opts)
}

// Error emits an error-severity record. When msg is an error its name,
// stack lines and reduced cause chain are attached under dedicated fields.
func (l *Logger) Error(ctx context.Context, msg any, opts ...Option) {
	l.emit(ctx, zerolog.ErrorLevel, msg, opts)
}

// Fatal emits a fatal-severity record. It does not terminate the process;
// process lifecycle stays with the caller.
func (l *Logger) Fatal(ctx context.Context, msg any, opts ...Option) {
	l.emit(ctx, zerolog.FatalLevel, msg, opts)
}

// emit performs one complete emission: auto-context, label resolution,
// metadata merge, message formatting, redaction, and exactly one engine call.
func (l *Logger) emit(ctx context.Context, level zerolog.Level, msg any, opts []Option) {
	o := buildEmitOptions(opts)

	fields := l.autoContext(ctx)
	component, _ := fields[FieldComponent].(string)

	label := o.label
	if label == "" {
		label = l.label
	}
	if label == "" {
		label, _ = fields[FieldService].(string)
	}

	for k, v := range o.meta {
		if k == logctx.ReservedContextKey || isInvalidValue(v) {
			continue
		}
		// Metadata must not reintroduce caller identity under http.
		if component == ComponentHTTP && (k == FieldService || k == FieldMethod) {
			continue
		}
		fields[k] = v
	}

	if component == ComponentHTTP {
		delete(fields, FieldService)
		delete(fields, FieldMethod)
	}

	if level >= zerolog.ErrorLevel {
		if err, ok := msg.(error); ok {
			attachErrorDetails(fields, err)
		}
	}

	message := l.formatMessage(msg)
	if label != "" {
		prefix := "[" + label + "] "
		if !strings.HasPrefix(message, prefix) {
			message = prefix + message
		}
	}

	merged := make(map[string]any, len(l.infra)+len(fields))
	for k, v := range l.infra {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	delete(merged, logctx.ReservedContextKey)

	l.redact.apply(merged)

	if l.emitted != nil {
		l.emitted.Inc(level.String())
	}

	l.zlog.WithLevel(level).Fields(merged).Msg(message)
}

// formatMessage reduces the message argument to text: strings pass through,
// errors reduce to their message, anything else serializes to JSON with a
// safe placeholder on serialization failure.
func (l *Logger) formatMessage(msg any) string {
	switch m := msg.(type) {
	case string:
		return m
	case error:
		return m.Error()
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Sprintf(`{"_error":"unserializable message","_type":"%T"}`, msg)
		}
		return string(b)
	}
}
