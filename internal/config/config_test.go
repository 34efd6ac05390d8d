package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := DefaultAppConfig
	want.DataDir, err = homedir.Expand(DefaultAppConfig.DataDir)
	require.NoError(t, err)
	assert.EqualValues(t, want, *cfg)
	assert.Equal(t, filepath.Join(want.DataDir, "journals"), cfg.DefaultJournalDir())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUILL_ADDR", "127.0.0.1:9000")
	t.Setenv("QUILL_LOG_LEVEL", "debug")
	t.Setenv("QUILL_SWEEP_INTERVAL", "30s")
	t.Setenv("QUILL_SWEEP_AGE", "2h")
	t.Setenv("QUILL_MAX_BODY", "256KiB")
	t.Setenv("QUILL_JOURNAL_DIR", "/srv/journal")
	t.Setenv("QUILL_PASSWORD", "never-in-config")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 2*time.Hour, cfg.SweepAge)
	assert.Equal(t, int64(256<<10), cfg.MaxBody)
	assert.Equal(t, "/srv/journal", cfg.DefaultJournalDir())
}

func TestEnvKey(t *testing.T) {
	k, v := envKey("QUILL_DATA_DIR", "x")
	assert.Equal(t, "data_dir", k)
	assert.Equal(t, "x", v)

	k, _ = envKey(PasswordEnv, "secret")
	assert.Empty(t, k)
}

func TestBadEnvValues(t *testing.T) {
	tests := map[string]string{
		"QUILL_LOG_LEVEL":      "shouty",
		"QUILL_SWEEP_INTERVAL": "often",
		"QUILL_SWEEP_AGE":      "0s",
		"QUILL_MAX_BODY":       "big",
		"QUILL_ADDR":           "localhost:7788",
		"QUILL_JOURNAL_DIR":    "../elsewhere",
	}
	for env, val := range tests {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsNonLoopbackAddr(t *testing.T) {
	for _, addr := range []string{"0.0.0.0:7788", ":7788", "192.168.1.5:7788", "[::]:7788"} {
		t.Run(addr, func(t *testing.T) {
			t.Setenv("QUILL_ADDR", addr)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("QUILL_DATA_DIR", "/from/env")
	t.Setenv("QUILL_LOG_LEVEL", "debug")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fv := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--data-dir", "/from/flag", "--addr", "[::1]:7000"}))

	cfg, err := LoadWithFlags(fv)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.DataDir)
	assert.Equal(t, "[::1]:7000", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel, "unset flag keeps env value")
}

func TestFlagLogLevelInvalid(t *testing.T) {
	_, err := LoadWithFlags(&FlagVals{LogLevel: "chatty"})
	assert.Error(t, err)
}

func TestTildeExpansion(t *testing.T) {
	t.Setenv("QUILL_JOURNAL_DIR", "~/journal")
	cfg, err := Load()
	require.NoError(t, err)
	want, err := homedir.Expand("~/journal")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.JournalDir)
}

func TestValidPaths(t *testing.T) {
	valid := []string{
		"data",
		"/var/lib/quill",
		"./data",
		"relative/path/to/data",
		"nested/dir/structure",
	}
	for _, p := range valid {
		t.Setenv("QUILL_DATA_DIR", p)
		cfg, err := Load()
		if err != nil {
			t.Errorf("expected valid path %q, got error: %v", p, err)
			continue
		}
		if cfg.DataDir != p {
			t.Errorf("expected DataDir %q, got %q", p, cfg.DataDir)
		}
	}
}

func TestInvalidPaths(t *testing.T) {
	invalid := []string{
		"",
		".",
		"/",
		"//",
		"../data",
		"data/..",
		"data/../../../etc",
	}
	for _, p := range invalid {
		t.Setenv("QUILL_DATA_DIR", p)
		_, err := Load()
		if err == nil {
			t.Errorf("expected error for invalid path %q, got nil", p)
			continue
		}
	}
}

func TestValidLoopbackAddr(t *testing.T) {
	type sample struct {
		Addr string `validate:"loopback_addr"`
	}

	v := validator.New()
	if err := v.RegisterValidation("loopback_addr", validLoopbackAddr); err != nil {
		t.Fatalf("register validation: %v", err)
	}

	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{name: "empty", addr: "", valid: false},
		{name: "missing_port", addr: "127.0.0.1", valid: false},
		{name: "missing_port_after_colon", addr: "127.0.0.1:", valid: false},
		{name: "just_colon_port", addr: ":8080", valid: false},
		{name: "loopback_ipv4", addr: "127.0.0.1:8080", valid: true},
		{name: "any_ipv4", addr: "0.0.0.0:7788", valid: false},
		{name: "lan_ipv4", addr: "192.168.1.5:7788", valid: false},
		{name: "loopback_block", addr: "127.0.0.2:1", valid: true},
		{name: "ipv6_loopback", addr: "[::1]:8080", valid: true},
		{name: "ipv6_any", addr: "[::]:443", valid: false},
		{name: "unbracketed_ipv6", addr: "::1:8080", valid: false},
		{name: "hostname_not_ip", addr: "localhost:8080", valid: false},
		{name: "invalid_host_chars", addr: "not_an_ip!:80", valid: false},
		{name: "non_numeric_port", addr: "127.0.0.1:http", valid: false},
		{name: "port_zero", addr: "127.0.0.1:0", valid: false},
		{name: "port_max_valid", addr: "127.0.0.1:65535", valid: true},
		{name: "port_overflow", addr: "127.0.0.1:65536", valid: false},
		{name: "negative_port", addr: "127.0.0.1:-1", valid: false},
		{name: "multi_leading_zero_port", addr: "127.0.0.1:00080", valid: true},
		{name: "space_prefixed", addr: " 127.0.0.1:8080", valid: false},
		{name: "trailing_space", addr: "127.0.0.1:8080 ", valid: false},
		{name: "embedded_space", addr: "127.0. 0.1:8080", valid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := sample{Addr: tc.addr}
			err := v.Struct(&s)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	params := "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"

	join := func(a, b string) string {
		if len(a) == 0 {
			return b
		}
		if a[len(a)-1] == '/' {
			return a + b
		}
		return a + "/" + b
	}

	countRune := func(s string, r rune) int {
		c := 0
		for _, ch := range s {
			if ch == r {
				c++
			}
		}
		return c
	}

	contains := func(haystack, needle string) bool {
	outer:
		for i := 0; i+len(needle) <= len(haystack); i++ {
			for j := 0; j < len(needle); j++ {
				if haystack[i+j] != needle[j] {
					continue outer
				}
			}
			return true
		}
		return false
	}

	type tc struct {
		name    string
		dataDir string
	}
	tests := []tc{
		{name: "default_config", dataDir: DefaultAppConfig.DataDir},
		{name: "relative_no_slash", dataDir: "data"},
		{name: "relative_trailing_slash", dataDir: "data/"},
		{name: "absolute_no_slash", dataDir: "/var/lib/quill"},
		{name: "absolute_trailing_slash", dataDir: "/var/lib/quill/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				Addr:    "127.0.0.1:8080",
				DataDir: tt.dataDir,
				MaxBody: DefaultAppConfig.MaxBody,
			}

			got := c.SQLiteDSN()
			wantPath := join(tt.dataDir, "quill.db")
			want := "file:" + wantPath + params

			assert.Equal(t, want, got, "expected DSN mismatch")

			// Structural assertions.
			assert.True(t, contains(got, "_journal_mode=WAL"), "missing WAL mode")
			assert.True(t, contains(got, "_foreign_keys=on"), "missing foreign keys pragma")
			assert.True(t, contains(got, "_busy_timeout=5000"), "missing busy timeout")
			assert.True(t, contains(got, "_synchronous=FULL"), "missing synchronous FULL")
			assert.Equal(t, 1, countRune(got, '?'), "expected exactly one '?' in DSN")
		})
	}
}

func TestLoadDefaultError(t *testing.T) {
	// swap out the defaultLoader to return an error
	orig := defaultLoader
	t.Cleanup(func() { defaultLoader = orig })
	defaultLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestLoadEnvError(t *testing.T) {
	// swap out the envLoader to return an error
	orig := envLoader
	t.Cleanup(func() { envLoader = orig })
	envLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestRegisterValidationFails(t *testing.T) {
	orig := registerValidators
	t.Cleanup(func() { registerValidators = orig })
	registerValidators = func(v *validator.Validate) error {
		assert.NotNil(t, v)
		return assert.AnError
	}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}
