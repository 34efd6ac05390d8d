package httpx

import (
	"encoding/json"
	"mime"
	"net/http"
)

type rekeyRequest struct {
	NewPassword string `json:"new_password"`
}

type rekeyResponse struct {
	RunID     string `json:"run_id,omitempty"`
	Processed int    `json:"processed"`
}

type migrateRequest struct {
	Path string `json:"path"`
}

type migrateResponse struct {
	RunID  string `json:"run_id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
	Moved  int    `json:"moved"`
	NoOp   bool   `json:"no_op"`
}

// requireJSON rejects request bodies not declared as application/json. Plain
// form and text posts can be sent cross-site without a preflight.
func (h *Handler) requireJSON(w http.ResponseWriter, r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		h.writeError(r.Context(), w, http.StatusUnsupportedMediaType, errorBody{Error: "unsupported_media_type"})
		return false
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !h.requireJSON(w, r) {
		return false
	}
	raw, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return false
	}
	return true
}

// handleVerify implements POST /api/verify.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	pw, ok := h.password(w, r)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := h.Service.VerifyPassword(pw); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRekey implements POST /api/rekey. The header carries the old password.
func (h *Handler) handleRekey(w http.ResponseWriter, r *http.Request) {
	oldPW, ok := h.password(w, r)
	if !ok {
		return
	}
	var req rekeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		h.writeError(r.Context(), w, http.StatusBadRequest, errorBody{Error: "new_password required"})
		return
	}
	if req.NewPassword == oldPW {
		h.writeError(r.Context(), w, http.StatusBadRequest, errorBody{Error: "new_password must differ"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	res, err := h.Service.Rekey(r.Context(), oldPW, req.NewPassword)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rekeyResponse{RunID: res.RunID, Processed: res.Processed})
}

// handleMigrate implements POST /api/migrate. The header password must open
// the journal before anything moves.
func (h *Handler) handleMigrate(w http.ResponseWriter, r *http.Request) {
	pw, ok := h.password(w, r)
	if !ok {
		return
	}
	var req migrateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Service.VerifyPassword(pw); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	res, err := h.Service.Migrate(r.Context(), req.Path)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, migrateResponse{
		RunID:  res.RunID,
		Source: res.Source,
		Target: res.Target,
		Moved:  res.Moved,
		NoOp:   res.NoOp,
	})
}
