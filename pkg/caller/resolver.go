// Package caller infers the logical caller of a log statement from the runtime
// call stack. It recovers a {service, method} pair by scanning past the logging
// core's own frames for the first frame that looks like a method on an
// application type, filtering out runtime, vendored and framework internals.
//
// Resolution is a heuristic: when no acceptable frame is found the result is
// empty, never an error. The result is memoized per request scope so the stack
// is inspected at most once per unit of work.
package caller

import (
	"context"
	"runtime"
	"strings"

	"github.com/Combine-Capital/ctxlog/pkg/logctx"
)

// Info is the resolved caller identity. Both fields may be empty.
type Info struct {
	Service string
	Method  string
}

// Empty reports whether resolution produced no usable identity.
func (i Info) Empty() bool {
	return i.Service == "" && i.Method == ""
}

// maxFrames bounds the scan window past the skipped prefix.
const maxFrames = 20

// skipPrefixes are function path prefixes belonging to this library's own
// call path: the emitter, the classifier, and the transport dispatch plumbing
// that sits between an application handler and its log statement. Frames
// matching these are skipped before the scan begins. The trailing dot pins
// the match to the package boundary.
var skipPrefixes = []string{
	"github.com/Combine-Capital/ctxlog/pkg/logging.",
	"github.com/Combine-Capital/ctxlog/pkg/caller.",
	"github.com/Combine-Capital/ctxlog/pkg/errors.",
	"github.com/Combine-Capital/ctxlog/pkg/logctx.",
	"github.com/Combine-Capital/ctxlog/pkg/bus.",
	"github.com/Combine-Capital/ctxlog/pkg/websocket.",
	"github.com/Combine-Capital/ctxlog/pkg/retry.",
}

// denyPathPrefixes are dependency and framework packages whose frames are
// never an application caller.
var denyPathPrefixes = []string{
	"runtime",
	"reflect",
	"testing.",
	"net/http",
	"google.golang.org/",
	"go.opentelemetry.io/",
	"github.com/rs/zerolog",
	"github.com/nats-io/",
	"github.com/gorilla/",
	"github.com/spf13/",
	"github.com/prometheus/",
	"github.com/cenkalti/",
}

// denyTypeMarkers reject owning types that are framework or helper internals.
var denyTypeMarkers = []string{"Internal", "Abstract", "Operator", "wrapper"}

// denyMethods are generic combinator and reflection method names that say
// nothing about the logical caller.
var denyMethods = map[string]bool{
	"Next":   true,
	"Each":   true,
	"Map":    true,
	"Filter": true,
	"Reduce": true,
	"Range":  true,
	"Call":   true,
	"Invoke": true,
	"Apply":  true,
}

// resolveStack is swappable in tests to count stack inspections.
var resolveStack = Resolve

// Resolve walks the current call stack and returns the first acceptable
// application frame as a caller identity. skip discards additional frames
// on top of Resolve itself, for use by wrapping emitters.
func Resolve(skip int) Info {
	pcs := make([]uintptr, maxFrames+skip+8)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return Info{}
	}

	frames := runtime.CallersFrames(pcs[:n])
	scanned := 0
	for {
		frame, more := frames.Next()
		if frame.Function == "" {
			if !more {
				break
			}
			continue
		}

		if hasAnyPrefix(frame.Function, skipPrefixes) {
			if !more {
				break
			}
			continue
		}

		scanned++
		if scanned > maxFrames {
			break
		}

		if info, ok := accept(frame.Function, frame.File); ok {
			return info
		}
		if !more {
			break
		}
	}
	return Info{}
}

// ResolveCached resolves the caller identity for the current scope, reusing
// a previously memoized result when present. A non-empty result is persisted
// under the reserved cache key for the remainder of the unit of work.
func ResolveCached(ctx context.Context, skip int) Info {
	s := logctx.FromContext(ctx)
	if s == nil {
		return resolveStack(skip + 1)
	}

	if cached, ok := s.Get(logctx.CachedCallerKey).(Info); ok {
		return cached
	}

	info := resolveStack(skip + 1)
	if !info.Empty() {
		s.Set(logctx.CachedCallerKey, info)
	}
	return info
}

// accept decides whether a frame identifies an application caller and, if so,
// parses its symbol into a caller identity.
func accept(fn, file string) (Info, bool) {
	if strings.Contains(file, "/vendor/") || strings.Contains(file, "/pkg/mod/") {
		return Info{}, false
	}
	if hasAnyPrefix(fn, denyPathPrefixes) {
		return Info{}, false
	}
	// Stdlib symbols have no dot in the leading path element.
	if lead, _, ok := strings.Cut(fn, "/"); ok && !strings.Contains(lead, ".") {
		return Info{}, false
	}

	service, method, ok := parseSymbol(fn)
	if !ok {
		return Info{}, false
	}
	if denyMethods[method] {
		return Info{}, false
	}
	for _, marker := range denyTypeMarkers {
		if strings.Contains(service, marker) {
			return Info{}, false
		}
	}
	return Info{Service: service, Method: method}, true
}

// parseSymbol splits a runtime function symbol into an owning service and a
// method name. Recognized shapes, most specific first:
//
//	pkg/path.(*Type).Method  -> {Type, Method}
//	pkg/path.Type.Method     -> {Type, Method}
//	pkg/path.Function        -> {path, Function}
//
// Compiler-generated suffixes (closures, generic instantiations, deferwrap)
// disqualify the frame.
func parseSymbol(fn string) (service, method string, ok bool) {
	base := fn
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		base = fn[i+1:]
	}

	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return "", "", false
	}

	last := parts[len(parts)-1]
	if last == "" || strings.HasPrefix(last, "func") || strings.HasPrefix(last, "deferwrap") || strings.HasPrefix(last, "gowrap") {
		return "", "", false
	}
	if strings.Contains(last, "[") {
		// Generic instantiation suffix, keep the bare name.
		last = last[:strings.Index(last, "[")]
		if last == "" {
			return "", "", false
		}
	}

	switch len(parts) {
	case 2:
		// pkg.Function
		return parts[0], last, true
	default:
		// pkg.(*Type).Method or pkg.Type.Method
		recv := parts[len(parts)-2]
		recv = strings.TrimSuffix(strings.TrimPrefix(recv, "(*"), ")")
		if recv == "" || strings.HasPrefix(recv, "func") {
			return "", "", false
		}
		return recv, last, true
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
