package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/quill/internal/app"
	"github.com/haukened/quill/internal/codec"
	"github.com/haukened/quill/internal/domain"
)

func TestMain(m *testing.M) {
	codecOptions = []codec.Option{codec.WithIterations(1000)}
	os.Exit(m.Run())
}

type result struct {
	code   int
	out    string
	errOut string
}

// quill runs the CLI in-process against the data directory in QUILL_DATA_DIR.
func quill(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, out: out.String(), errOut: errOut.String()}
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("QUILL_DATA_DIR", dataDir)
	t.Setenv("QUILL_JOURNAL_DIR", "")
	t.Setenv("QUILL_PASSWORD", "secret")
	t.Setenv(NewPasswordEnv, "")
	t.Setenv("QUILL_LOG_LEVEL", "error")
	return dataDir
}

func TestNewReadWriteList(t *testing.T) {
	dataDir := setupEnv(t)

	r := quill(t, "", "new", "1403-07-01", "--mood", "4")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "created 1403-07-01.txt")

	r = quill(t, "", "read", "1403-07-01")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Equal(t, "📅 1403-07-01  🗓️ Sunday  ☀️ 4\n\n", r.out)

	r = quill(t, "dear diary", "write", "1403-07-01.txt")
	require.Equal(t, exitOK, r.code, r.errOut)

	r = quill(t, "", "read", "1403-07-01")
	assert.Equal(t, "dear diary", r.out)

	r = quill(t, "", "new", "1403-07-01")
	assert.Equal(t, exitGeneric, r.code)
	assert.Contains(t, r.errOut, "already exists")

	r = quill(t, "", "list", "--all", "-o", "json")
	require.Equal(t, exitOK, r.code, r.errOut)
	var views []entryView
	require.NoError(t, json.Unmarshal([]byte(r.out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "1403-07-01.txt", views[0].FileName)
	assert.Equal(t, "Mehr", views[0].Month)

	r = quill(t, "", "where")
	assert.Equal(t, filepath.Join(dataDir, "journals")+"\n", r.out)
}

func TestListFormats(t *testing.T) {
	setupEnv(t)
	for _, d := range []string{"1402-12-29", "1403-01-01"} {
		require.Equal(t, exitOK, quill(t, "", "new", d).code)
	}

	r := quill(t, "", "list", "--year", "1403", "-o", "yaml")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "file_name: 1403-01-01.txt")
	assert.NotContains(t, r.out, "1402-12-29")

	r = quill(t, "", "list", "--all", "--group")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "Farvardin 1403")
	assert.Contains(t, r.out, "Esfand 1402")

	r = quill(t, "", "list", "--all", "-o", "xml")
	assert.Equal(t, exitGeneric, r.code)
}

func TestWrongPasswordExitsWithAuthCode(t *testing.T) {
	setupEnv(t)
	require.Equal(t, exitOK, quill(t, "", "new", "1403-01-01").code)

	t.Setenv("QUILL_PASSWORD", "not-it")
	r := quill(t, "", "read", "1403-01-01")
	assert.Equal(t, exitAuth, r.code)
	assert.Contains(t, r.errOut, "could not decrypt")

	r = quill(t, "", "new", "1403-01-02")
	assert.Equal(t, exitAuth, r.code, "a second password is never introduced")
}

func TestConfigErrorExitCode(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUILL_ADDR", "localhost")
	r := quill(t, "", "where")
	assert.Equal(t, exitConfig, r.code)
	assert.Contains(t, r.errOut, "configuration")
}

func TestPasswordFromStdin(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUILL_PASSWORD", "")

	r := quill(t, "piped\n", "--password-stdin", "new", "1403-01-01")
	require.Equal(t, exitOK, r.code, r.errOut)

	r = quill(t, "piped\nfirst line\nsecond line\n", "--password-stdin", "write", "1403-01-01")
	require.Equal(t, exitOK, r.code, r.errOut)

	r = quill(t, "piped\n", "--password-stdin", "read", "1403-01-01")
	assert.Equal(t, "first line\nsecond line\n", r.out)

	r = quill(t, "", "--password-stdin", "read", "1403-01-01")
	assert.Equal(t, exitGeneric, r.code)
}

func TestPromptedPassword(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUILL_PASSWORD", "")
	answers := []string{"typed"}
	orig := readSecret
	t.Cleanup(func() { readSecret = orig })
	readSecret = func(string) (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no more answers")
		}
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}

	r := quill(t, "", "new", "1403-01-01")
	require.Equal(t, exitOK, r.code, r.errOut)

	answers = []string{"typed", "fresh", "frsh"}
	r = quill(t, "", "rekey")
	assert.Equal(t, exitGeneric, r.code)
	assert.Contains(t, r.errOut, "do not match")
}

func TestRekeyAndHistory(t *testing.T) {
	setupEnv(t)
	for _, d := range []string{"1403-01-01", "1403-01-02"} {
		require.Equal(t, exitOK, quill(t, "", "new", d).code)
	}

	t.Setenv(NewPasswordEnv, "secret")
	r := quill(t, "", "rekey")
	assert.Equal(t, exitGeneric, r.code, "same password is rejected")

	t.Setenv(NewPasswordEnv, "fresh")
	r = quill(t, "", "rekey")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "re-encrypted 2 entries")

	t.Setenv("QUILL_PASSWORD", "fresh")
	r = quill(t, "", "read", "1403-01-02")
	assert.Equal(t, exitOK, r.code, r.errOut)

	r = quill(t, "", "history")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "rekey")
	assert.Contains(t, r.out, "success")
}

func TestMigratePersistsLocation(t *testing.T) {
	setupEnv(t)
	require.Equal(t, exitOK, quill(t, "", "new", "1403-01-01").code)
	dst := filepath.Join(t.TempDir(), "moved")

	r := quill(t, "", "migrate", dst)
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "moved 1 entries")

	r = quill(t, "", "where")
	assert.Equal(t, dst+"\n", r.out)

	t.Setenv("QUILL_JOURNAL_DIR", filepath.Join(t.TempDir(), "configured"))
	t.Setenv("QUILL_LOG_LEVEL", "warn")
	r = quill(t, "", "where")
	assert.Equal(t, dst+"\n", r.out)
	assert.Contains(t, r.errOut, "configured journal directory ignored")
	t.Setenv("QUILL_JOURNAL_DIR", "")
	t.Setenv("QUILL_LOG_LEVEL", "error")

	r = quill(t, "", "read", "1403-01-01")
	assert.Equal(t, exitOK, r.code, r.errOut)

	r = quill(t, "", "migrate", filepath.Join(dst, "nested"))
	assert.Equal(t, exitGeneric, r.code)
	assert.Contains(t, r.errOut, "cannot be inside")
}

func TestExportSingle(t *testing.T) {
	setupEnv(t)
	require.Equal(t, exitOK, quill(t, "", "new", "1403-01-01").code)
	out := t.TempDir()

	r := quill(t, "", "export", out, "--single")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "exported 1 entries, 0 failed")

	files, err := filepath.Glob(filepath.Join(out, "quill_export_*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	b, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "📅 1403-01-01"))
}

func TestStatsAndDoctor(t *testing.T) {
	setupEnv(t)
	require.Equal(t, exitOK, quill(t, "", "new", "1403-01-01").code)

	r := quill(t, "", "stats", "-o", "yaml")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "entries_created_total: 1")

	r = quill(t, "", "doctor")
	require.Equal(t, exitOK, r.code, r.errOut)
	assert.Contains(t, r.out, "1 entries")
	assert.Contains(t, r.out, "no abandoned temp files")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"config", configError{err: errors.New("bad")}, exitConfig},
		{"auth", domain.ErrAuthenticationFailed, exitAuth},
		{"rekey untouched", &app.RekeyError{Processed: 0, Total: 2, File: "a", Err: domain.ErrAuthenticationFailed}, exitAuth},
		{"rekey partial", &app.RekeyError{Processed: 1, Total: 2, File: "b", Err: domain.ErrAuthenticationFailed}, exitPartial},
		{"migrate", &app.MigrateError{Failed: []app.FileError{{Name: "a", Err: domain.ErrAlreadyExists}}}, exitPartial},
		{"settings", fmt.Errorf("%w: /x: locked", domain.ErrSettingsNotPersisted), exitSettings},
		{"other", errors.New("boom"), exitGeneric},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "1403-01-01.txt", entryName("1403-01-01"))
	assert.Equal(t, "1403-01-01.txt", entryName("1403-01-01.txt"))
}
