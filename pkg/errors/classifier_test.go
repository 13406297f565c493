package errors

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Combine-Capital/ctxlog/pkg/config"
	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/logging"
)

func newTestClassifier(t *testing.T, buf *bytes.Buffer) *Classifier {
	t.Helper()
	pretty := false
	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "classifier-test", Env: config.EnvDevelopment},
		Log:     config.LogConfig{Level: "debug", PrettyPrint: &pretty},
	}
	return NewClassifier(logging.New(cfg).Output(buf))
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("invalid log line %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHTTPLoggableDomainError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	req := httptest.NewRequest(http.MethodGet, "/orders/7", nil)
	rr := httptest.NewRecorder()

	c.HTTP(rr, req, NewInternal("DB_DOWN", "database unavailable").
		WithMeta(map[string]any{"pool": "primary"}))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	body := decodeBody(t, rr)
	if body["code"] != "DB_DOWN" {
		t.Errorf("body code = %v", body["code"])
	}
	if body["message"] != "database unavailable" {
		t.Errorf("body message = %v", body["message"])
	}
	if body["statusCode"] != float64(500) {
		t.Errorf("body statusCode = %v", body["statusCode"])
	}
	if body["path"] != "/orders/7" {
		t.Errorf("body path = %v", body["path"])
	}
	ts, _ := body["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Errorf("timestamp %q not RFC3339Nano: %v", ts, err)
	}
	if _, ok := body["meta"]; ok {
		t.Error("internal meta leaked into the client body")
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec["level"] != "error" {
		t.Errorf("level = %v", rec["level"])
	}
	if rec["error_code"] != "DB_DOWN" {
		t.Errorf("error_code = %v", rec["error_code"])
	}
	if rec["transport"] != "http" {
		t.Errorf("transport = %v", rec["transport"])
	}
	if rec["status_code"] != float64(500) {
		t.Errorf("status_code = %v", rec["status_code"])
	}
	if rec["error_name"] != "DomainError" {
		t.Errorf("error_name = %v", rec["error_name"])
	}
	if _, ok := rec["stack"]; !ok {
		t.Error("stack missing from error record")
	}
	meta, ok := rec["error_meta"].(map[string]any)
	if !ok || meta["pool"] != "primary" {
		t.Errorf("error_meta = %v", rec["error_meta"])
	}
}

func TestHTTPSilentDomainError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	req := httptest.NewRequest(http.MethodGet, "/users/9", nil)
	rr := httptest.NewRecorder()

	c.HTTP(rr, req, NewNotFound("USER_NOT_FOUND", "user does not exist"))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != "USER_NOT_FOUND" {
		t.Errorf("body code = %v", body["code"])
	}
	if body["statusCode"] != float64(404) {
		t.Errorf("body statusCode = %v", body["statusCode"])
	}

	if got := len(decodeRecords(t, &buf)); got != 0 {
		t.Errorf("expected zero records for a non-loggable failure, got %d", got)
	}
}

func TestHTTPGenericError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()

	c.HTTP(rr, req, stderrors.New("nil pointer dereference"))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != "INTERNAL_ERROR" {
		t.Errorf("body code = %v", body["code"])
	}
	if body["message"] != "internal server error" {
		t.Errorf("body message = %v, internal detail must not leak", body["message"])
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("generic failures are always logged, got %d records", len(recs))
	}
	rec := recs[0]
	if rec["error_message"] != "nil pointer dereference" {
		t.Errorf("error_message = %v", rec["error_message"])
	}
	if rec["transport"] != "http" {
		t.Errorf("transport = %v", rec["transport"])
	}
}

func TestHTTPNilError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	rr := httptest.NewRecorder()
	c.HTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	if rr.Body.Len() != 0 {
		t.Errorf("nil error must not write a body, got %q", rr.Body.String())
	}
	if len(decodeRecords(t, &buf)) != 0 {
		t.Error("nil error must not log")
	}
}

func TestHTTPCorrelationHeader(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	ctx := logctx.WithScope(req.Context(), logctx.NewScope())
	logctx.Set(ctx, logging.FieldCorrelationID, "corr-7")
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	c.HTTP(rr, req, NewNotFound("USER_NOT_FOUND", "user does not exist"))

	if got := rr.Header().Get(HeaderCorrelationID); got != "corr-7" {
		t.Errorf("x-correlation-id = %q, want corr-7", got)
	}
}

func TestRPCDomainError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	err := c.RPC(context.Background(), NewNotFound("USER_NOT_FOUND", "user does not exist"))

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected a status error, got %T", err)
	}
	if st.Code() != codes.NotFound {
		t.Errorf("code = %v, want NotFound", st.Code())
	}
	if st.Message() != "USER_NOT_FOUND: user does not exist" {
		t.Errorf("message = %q", st.Message())
	}
	if len(decodeRecords(t, &buf)) != 0 {
		t.Error("non-loggable domain error must not log")
	}
}

func TestRPCGenericError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	err := c.RPC(context.Background(), stderrors.New("boom"))

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected a status error, got %T", err)
	}
	if st.Code() != codes.Internal {
		t.Errorf("code = %v, want Internal", st.Code())
	}
	if st.Message() != "INTERNAL_ERROR: internal server error" {
		t.Errorf("message = %q, internal detail must not leak", st.Message())
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["transport"] != "rpc" {
		t.Errorf("transport = %v", recs[0]["transport"])
	}
}

func TestRPCNilError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)
	if err := c.RPC(context.Background(), nil); err != nil {
		t.Errorf("nil in, nil out; got %v", err)
	}
}

func TestMessageDomainError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	derr := New("ORDER_REJECTED", "order rejected").
		WithMeta(map[string]any{"order_id": "o1"})
	err := c.Message(context.Background(), derr)

	var terr *TransportError
	if !As(err, &terr) {
		t.Fatalf("expected a TransportError, got %T", err)
	}
	if terr.Transport != "rpc" {
		t.Errorf("transport = %q", terr.Transport)
	}
	if terr.Payload["code"] != "ORDER_REJECTED" {
		t.Errorf("payload code = %v", terr.Payload["code"])
	}
	meta, _ := terr.Payload["meta"].(map[string]any)
	if meta["order_id"] != "o1" {
		t.Errorf("payload meta = %v", terr.Payload["meta"])
	}
	if !IsDomain(err) {
		t.Error("original domain error not reachable through the wrapper")
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["error_code"] != "ORDER_REJECTED" {
		t.Errorf("error_code = %v", recs[0]["error_code"])
	}
}

func TestMessageGenericError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	err := c.Message(context.Background(), stderrors.New("deserialize failed"))

	var terr *TransportError
	if !As(err, &terr) {
		t.Fatalf("expected a TransportError, got %T", err)
	}
	if terr.Payload["code"] != "INTERNAL_ERROR" {
		t.Errorf("payload code = %v", terr.Payload["code"])
	}
	if terr.Payload["message"] != "internal server error" {
		t.Errorf("payload message = %v", terr.Payload["message"])
	}
	if len(decodeRecords(t, &buf)) != 1 {
		t.Error("generic failures are always logged")
	}
}

func TestWebsocketDomainError(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	err := c.Websocket(context.Background(), New("ORDER_REJECTED", "order rejected"))

	var terr *TransportError
	if !As(err, &terr) {
		t.Fatalf("expected a TransportError, got %T", err)
	}
	if terr.Transport != "websocket" {
		t.Errorf("transport = %q", terr.Transport)
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["transport"] != "websocket" {
		t.Errorf("record transport = %v", recs[0]["transport"])
	}
}

func TestTransportTagSticksAcrossBoundaries(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	derr := NewNotFound("USER_NOT_FOUND", "user does not exist")
	_ = c.RPC(context.Background(), derr)
	err := c.Websocket(context.Background(), derr)

	var terr *TransportError
	if !As(err, &terr) {
		t.Fatalf("expected a TransportError, got %T", err)
	}
	if terr.Transport != "rpc" {
		t.Errorf("transport = %q, want the original rpc tag", terr.Transport)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	handler := RecoveryMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("slice index out of range")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != "INTERNAL_ERROR" {
		t.Errorf("body code = %v", body["code"])
	}

	recs := decodeRecords(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["error_message"] != "slice index out of range" {
		t.Errorf("error_message = %v", recs[0]["error_message"])
	}
}

func TestRecoveryMiddlewarePassthrough(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClassifier(t, &buf)

	handler := RecoveryMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if len(decodeRecords(t, &buf)) != 0 {
		t.Error("clean request must not log through the classifier")
	}
}
