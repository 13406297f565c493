package errors

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/logging"
)

// HeaderCorrelationID is set on error responses when a correlation id is
// known for the current unit of work.
const HeaderCorrelationID = "x-correlation-id"

// HTTP classifies a failure caught on a request/response unit of work and
// writes the structured JSON error response. Clients always receive a body
// with a timestamp and path regardless of loggability.
func (c *Classifier) HTTP(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	ctx := r.Context()

	status := http.StatusInternalServerError
	var payload map[string]any
	if derr := c.classify(ctx, logging.ComponentHTTP, err); derr != nil {
		status = derr.Status()
		payload = derr.ClientPayload()
	} else {
		payload = map[string]any{
			"code":       genericCode,
			"message":    genericMessage,
			"statusCode": status,
		}
	}

	if corr := logctx.GetString(ctx, logging.FieldCorrelationID); corr != "" {
		w.Header().Set(HeaderCorrelationID, corr)
	}

	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["path"] = r.URL.Path

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
