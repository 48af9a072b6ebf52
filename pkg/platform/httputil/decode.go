package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "pastebin/pkg/domain-errors"
)

// maxBodyBytes bounds decision API request bodies.
const maxBodyBytes = 64 << 10

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// DecodeJSON decodes a JSON request body into the target type and runs
// Validate when the type implements Validatable.
// On failure it writes the error response and returns nil, false.
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[checkRequest](ctx, w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body", "error", err)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "invalid request", "error", err)
			WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error()))
			return nil, false
		}
	}
	return &req, true
}
