package metrics

import (
	"context"
	"encoding/json"
	"net/http"
)

// SnapshotProvider abstracts Manager for testing.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (map[string]int64, map[string]Summary, error)
}

// Report is the serialized form of a snapshot.
type Report struct {
	Counters  map[string]int64   `json:"counters" yaml:"counters"`
	Summaries map[string]Summary `json:"summaries" yaml:"summaries"`
}

// Collect takes a snapshot from provider as a Report.
func Collect(ctx context.Context, provider SnapshotProvider) (Report, error) {
	c, s, err := provider.Snapshot(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{Counters: c, Summaries: s}, nil
}

// Handler returns an http.HandlerFunc that writes a JSON metrics snapshot.
func Handler(provider SnapshotProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := Collect(r.Context(), provider)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rep)
	}
}
