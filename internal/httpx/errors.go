package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haukened/quill/internal/app"
	"github.com/haukened/quill/internal/domain"
)

type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, body errorBody) {
	h.writeJSON(w, code, body)
	if cid, ok := GetCorrelationID(ctx); ok {
		h.logger().Debug("wrote error response", "cid", cid, "status", code, "code", body.Error)
	}
}

// mapServiceError maps domain and service errors to HTTP responses. Partial
// failures are checked first: a rekey that stopped on a bad password after
// rewriting some entries is a conflict, not an authentication problem.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	log := h.logger().With("domain", "http", "cid", cid)
	msg := app.UserMessage(err)
	switch {
	case errors.Is(err, domain.ErrSettingsNotPersisted):
		log.Error("service error", "code", "settings_not_persisted")
		h.writeError(ctx, w, http.StatusInternalServerError, errorBody{Error: "settings_not_persisted", Message: msg})
	case errors.Is(err, domain.ErrPartialFailure):
		log.Error("service error", "code", "partial_failure")
		h.writeError(ctx, w, http.StatusConflict, errorBody{Error: "partial_failure", Message: msg, Failed: failedNames(err)})
	case errors.Is(err, domain.ErrAuthenticationFailed):
		log.Warn("service error", "code", "authentication_failed")
		h.writeError(ctx, w, http.StatusUnauthorized, errorBody{Error: "authentication_failed", Message: msg})
	case errors.Is(err, domain.ErrNotFound):
		log.Info("service error", "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, errorBody{Error: "not_found", Message: msg})
	case errors.Is(err, domain.ErrAlreadyExists):
		log.Info("service error", "code", "already_exists")
		h.writeError(ctx, w, http.StatusConflict, errorBody{Error: "already_exists", Message: msg})
	case errors.Is(err, domain.ErrInvalidTarget):
		log.Warn("service error", "code", "invalid_target")
		h.writeError(ctx, w, http.StatusBadRequest, errorBody{Error: "invalid_target", Message: msg})
	case errors.Is(err, domain.ErrInvalidFileName), errors.Is(err, domain.ErrInvalidDate):
		log.Warn("service error", "code", "invalid_name")
		h.writeError(ctx, w, http.StatusBadRequest, errorBody{Error: "invalid_name", Message: msg})
	default:
		// Do not echo raw errors; they carry filesystem paths.
		log.Error("unhandled service error", "code", "unhandled", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

func failedNames(err error) []string {
	var me *app.MigrateError
	if errors.As(err, &me) {
		out := make([]string, 0, len(me.Failed)+len(me.RollbackFailed))
		for _, f := range me.Failed {
			out = append(out, f.Name)
		}
		for _, f := range me.RollbackFailed {
			out = append(out, f.Name)
		}
		return out
	}
	var re *app.RekeyError
	if errors.As(err, &re) {
		return []string{re.File}
	}
	return nil
}
