package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/haukened/quill/internal/domain"
)

type entryJSON struct {
	FileName string `json:"file_name"`
	Date     string `json:"date"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Day      int    `json:"day"`
}

func toEntryJSON(e domain.Entry) entryJSON {
	return entryJSON{
		FileName: e.FileName,
		Date:     e.DisplayName,
		Year:     domain.YearOf(e.Date),
		Month:    domain.MonthOf(e.Date),
		Day:      domain.DayOf(e.Date),
	}
}

type createRequest struct {
	Date string `json:"date"`
	Mood int    `json:"mood"`
}

// password returns the request password or writes a 401.
func (h *Handler) password(w http.ResponseWriter, r *http.Request) (string, bool) {
	pw := r.Header.Get(PasswordHeader)
	if pw == "" {
		h.writeError(r.Context(), w, http.StatusUnauthorized, errorBody{Error: "password_required"})
		return "", false
	}
	return pw, true
}

// readBody reads at most MaxBody bytes, writing 413 when the limit is hit.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := r.Body
	if h.MaxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeError(r.Context(), w, http.StatusRequestEntityTooLarge, errorBody{Error: "size_exceeded"})
			return nil, false
		}
		h.writeError(r.Context(), w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return nil, false
	}
	return b, true
}

// handleList implements GET /api/entries[?year=N].
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var (
		entries []domain.Entry
		err     error
	)
	if ys := r.URL.Query().Get("year"); ys != "" {
		year, convErr := strconv.Atoi(ys)
		if convErr != nil || year <= 0 {
			h.writeError(r.Context(), w, http.StatusBadRequest, errorBody{Error: "invalid year"})
			return
		}
		entries, err = h.Service.ListYear(year)
	} else {
		entries, err = h.Service.List()
	}
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryJSON(e))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// handleCreate implements POST /api/entries. An empty date means today.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	pw, ok := h.password(w, r)
	if !ok {
		return
	}
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var req createRequest
	if len(raw) > 0 {
		if !h.requireJSON(w, r) {
			return
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			h.writeError(r.Context(), w, http.StatusBadRequest, errorBody{Error: "invalid json"})
			return
		}
	}
	date := h.now()
	if strings.TrimSpace(req.Date) != "" {
		d, err := domain.StringToDate(req.Date)
		if err != nil {
			h.mapServiceError(r.Context(), w, err)
			return
		}
		date = d
	}
	mood := domain.DefaultMood
	if req.Mood != 0 {
		m, found := domain.MoodByNumber(req.Mood)
		if !found {
			h.writeError(r.Context(), w, http.StatusBadRequest, errorBody{Error: "invalid mood"})
			return
		}
		mood = m
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Service.VerifyPassword(pw); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	e, err := h.Service.CreateNewWithMood(date, mood, pw)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toEntryJSON(e))
}

// handleRead implements GET /api/entries/{name}.
func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	pw, ok := h.password(w, r)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	content, err := h.Service.Read(r.PathValue("name"), pw)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, content)
}

// handleWrite implements PUT /api/entries/{name}; the body is the new content.
func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	pw, ok := h.password(w, r)
	if !ok {
		return
	}
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Service.VerifyPassword(pw); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	if err := h.Service.Write(r.PathValue("name"), string(raw), pw); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
