package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journalReady mirrors the serve command's readiness check: the journal
// directory may be missing, but any other stat failure means not ready.
func journalReady(dir string) func(context.Context) error {
	return func(context.Context) error {
		_, err := os.Stat(dir)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
}

func TestHealthz(t *testing.T) {
	router := New(listOnly{}, 0, nil).Router()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestReadyz(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	tests := []struct {
		name  string
		check func(context.Context) error
		code  int
	}{
		{name: "no check", check: nil, code: http.StatusOK},
		{name: "journal present", check: journalReady(t.TempDir()), code: http.StatusOK},
		{name: "journal not created yet", check: journalReady(filepath.Join(t.TempDir(), "journals")), code: http.StatusOK},
		{name: "journal path unusable", check: journalReady(filepath.Join(blocker, "journals")), code: http.StatusServiceUnavailable},
		{name: "settings db down", check: func(context.Context) error { return errors.New("database is locked") }, code: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := New(listOnly{}, 0, tc.check).Router()
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tc.code, rr.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "ready", rr.Body.String())
				return
			}
			var body errorBody
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, "not ready", body.Error)
			assert.NotEmpty(t, rr.Header().Get(CorrelationIDHeader))
		})
	}
}

func TestReadinessSeesCorrelationID(t *testing.T) {
	var seen string
	check := func(ctx context.Context) error {
		seen, _ = GetCorrelationID(ctx)
		return nil
	}
	router := New(listOnly{}, 0, check).Router()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set(CorrelationIDHeader, "ready-1")
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "ready-1", seen)
}
