package logging

// Fields is free-form structured metadata supplied with a single log call.
type Fields map[string]any

// Option customizes a single emission.
type Option func(*emitOptions)

type emitOptions struct {
	meta  Fields
	label string
}

// WithMeta attaches free-form metadata to the record. Keys failing the
// validity filter (reserved names, invalid values, service/method under the
// http component) are dropped.
func WithMeta(meta Fields) Option {
	return func(o *emitOptions) {
		if o.meta == nil {
			o.meta = make(Fields, len(meta))
		}
		for k, v := range meta {
			o.meta[k] = v
		}
	}
}

// WithLabel sets an explicit context label for this emission, taking
// precedence over the logger's default label and the auto-resolved service.
func WithLabel(label string) Option {
	return func(o *emitOptions) {
		o.label = label
	}
}

func buildEmitOptions(opts []Option) emitOptions {
	var o emitOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
