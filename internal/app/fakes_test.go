package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/haukened/quill/internal/app"
	"github.com/haukened/quill/internal/codec"
	"github.com/haukened/quill/internal/store"
	"github.com/haukened/quill/internal/store/filesystem"
)

// fixedClock implements app.Clock returning a fixed instant.
type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

type fakeSettings struct {
	mu  sync.Mutex
	dir string
	set bool
	err error
}

func (f *fakeSettings) JournalDir(context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dir, f.set, nil
}

func (f *fakeSettings) SetJournalDir(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.dir, f.set = dir, true
	return nil
}

type fileRecord struct {
	name   string
	status app.FileStatus
}

type fakeOps struct {
	mu       sync.Mutex
	n        int
	ops      map[string]*app.Operation
	files    map[string][]fileRecord
	beginErr error
}

func newFakeOps() *fakeOps {
	return &fakeOps{ops: map[string]*app.Operation{}, files: map[string][]fileRecord{}}
}

func (f *fakeOps) Begin(_ context.Context, kind app.OpKind, source, target string, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return "", f.beginErr
	}
	f.n++
	id := fmt.Sprintf("run-%d", f.n)
	f.ops[id] = &app.Operation{ID: id, Kind: kind, Source: source, Target: target, Outcome: app.OutcomeRunning, StartedAt: at}
	return id, nil
}

func (f *fakeOps) RecordFile(_ context.Context, runID, name string, status app.FileStatus, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[runID] = append(f.files[runID], fileRecord{name: name, status: status})
	return nil
}

func (f *fakeOps) Finish(_ context.Context, runID string, outcome app.Outcome, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := f.ops[runID]
	op.Outcome = outcome
	op.FinishedAt = at
	return nil
}

func (f *fakeOps) Recent(context.Context, int) ([]app.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []app.Operation
	for i := f.n; i >= 1; i-- {
		out = append(out, *f.ops[fmt.Sprintf("run-%d", i)])
	}
	return out, nil
}

func (f *fakeOps) Files(_ context.Context, runID string) ([]app.OperationFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []app.OperationFile
	for _, r := range f.files[runID] {
		out = append(out, app.OperationFile{Name: r.name, Status: r.status})
	}
	return out, nil
}

func (f *fakeOps) statuses(runID string, status app.FileStatus) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.files[runID] {
		if r.status == status {
			out = append(out, r.name)
		}
	}
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	counters map[string]int64
	observed map[string][]int64
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{counters: map[string]int64{}, observed: map[string][]int64{}}
}

func (r *fakeRecorder) Inc(name string, delta int64) {
	r.mu.Lock()
	r.counters[name] += delta
	r.mu.Unlock()
}

func (r *fakeRecorder) Observe(name string, v int64) {
	r.mu.Lock()
	r.observed[name] = append(r.observed[name], v)
	r.mu.Unlock()
}

// failingMover wraps the real mover and fails selected moves. Moves out of
// target are rollbacks.
type failingMover struct {
	filesystem.Mover
	target       string
	failMove     map[string]error
	failRollback map[string]error
}

func (m failingMover) Move(srcDir, dstDir, name string) error {
	fail := m.failMove
	if srcDir == m.target {
		fail = m.failRollback
	}
	if err, ok := fail[name]; ok {
		return err
	}
	return m.Mover.Move(srcDir, dstDir, name)
}

type fixture struct {
	svc      *app.Service
	store    *store.Store
	src      string
	settings *fakeSettings
	ops      *fakeOps
	rec      *fakeRecorder
}

var testNow = time.Date(2025, time.March, 21, 9, 30, 15, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := t.TempDir()
	st := store.New(src, filesystem.Open, codec.New(codec.WithIterations(1000)))
	f := &fixture{
		store:    st,
		src:      src,
		settings: &fakeSettings{},
		ops:      newFakeOps(),
		rec:      newFakeRecorder(),
	}
	f.svc = &app.Service{
		Store:    st,
		Mover:    filesystem.Mover{},
		Settings: f.settings,
		Sink:     filesystem.Exporter{},
		Ops:      f.ops,
		Metrics:  f.rec,
		Clock:    fixedClock{now: testNow},
	}
	return f
}
