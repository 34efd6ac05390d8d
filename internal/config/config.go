// Package config provides layered configuration loading for quill.
// It merges Defaults -> Environment Variables -> CLI Flags, with validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variable names before they are
// mapped onto koanf keys (QUILL_DATA_DIR -> data_dir).
const EnvPrefix = "QUILL_"

// PasswordEnv is read by the CLI directly and never enters the config tree.
const PasswordEnv = EnvPrefix + "PASSWORD"

const dbFile = "quill.db"

// Config holds the merged runtime configuration.
// Order of precedence (lowest → highest): Defaults → Environment → CLI Flags.
type Config struct {
	DataDir       string        `koanf:"data_dir" validate:"required,safe_path"`
	JournalDir    string        `koanf:"journal_dir" validate:"omitempty,safe_path"`
	Addr          string        `koanf:"addr" validate:"required,loopback_addr"`
	LogLevel      slog.Level    `koanf:"log_level"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	SweepAge      time.Duration `koanf:"sweep_age" validate:"gt=0"`
	MaxBody       int64         `koanf:"max_body" validate:"gt=0"`
}

// DefaultAppConfig is the bottom layer of every Load.
var DefaultAppConfig = Config{
	DataDir:       "~/.local/share/quill",
	Addr:          "127.0.0.1:7788",
	LogLevel:      slog.LevelInfo,
	SweepInterval: 10 * time.Minute,
	SweepAge:      time.Hour,
	MaxBody:       1 << 20, // 1 MiB
}

// FlagVals holds raw string representations of flag values so emptiness can signal "unset".
type FlagVals struct {
	DataDir    string
	JournalDir string
	Addr       string
	LogLevel   string
}

// BindFlags defines the configuration flags on fs. All defaults are empty to
// distinguish from "not provided".
func BindFlags(fs *pflag.FlagSet) *FlagVals {
	fv := &FlagVals{}
	fs.StringVar(&fv.DataDir, "data-dir", "", "directory for the settings database (default ~/.local/share/quill)")
	fs.StringVar(&fv.JournalDir, "journal-dir", "", "journal directory used until a migration records another")
	fs.StringVar(&fv.Addr, "addr", "", "listen address for serve (e.g. 127.0.0.1:7788)")
	fs.StringVar(&fv.LogLevel, "log-level", "", "debug, info, warn or error")
	return fv
}

// injection points for tests
var (
	defaultLoader = func(k *koanf.Koanf) error {
		return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
	}
	envLoader = func(k *koanf.Koanf) error {
		return k.Load(env.Provider(".", env.Opt{
			Prefix:        EnvPrefix,
			TransformFunc: envKey,
		}), nil)
	}
	registerValidators = func(v *validator.Validate) error {
		if err := v.RegisterValidation("loopback_addr", validLoopbackAddr); err != nil {
			return err
		}
		return v.RegisterValidation("safe_path", validSafePath)
	}
)

// envKey maps QUILL_DATA_DIR to data_dir. The password variable is dropped.
func envKey(k, v string) (string, any) {
	if k == PasswordEnv {
		return "", nil
	}
	return strings.ToLower(strings.TrimPrefix(k, EnvPrefix)), v
}

// Load reads defaults and the environment.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags reads defaults, the environment and any non-empty flag
// values, then expands ~ and validates the result.
func LoadWithFlags(fv *FlagVals) (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := flagLoader(k, fv); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				StringToLevel(),
				StringToSize(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.DataDir, err = expand(cfg.DataDir); err != nil {
		return nil, err
	}
	if cfg.JournalDir, err = expand(cfg.JournalDir); err != nil {
		return nil, err
	}

	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func flagLoader(k *koanf.Koanf, fv *FlagVals) error {
	if fv == nil {
		return nil
	}
	for key, val := range map[string]string{
		"data_dir":    fv.DataDir,
		"journal_dir": fv.JournalDir,
		"addr":        fv.Addr,
		"log_level":   fv.LogLevel,
	} {
		if val == "" {
			continue
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("--%s: %w", strings.ReplaceAll(key, "_", "-"), err)
		}
	}
	return nil
}

func expand(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	return out, nil
}

// SQLiteDSN returns the DSN of the settings, operation log and metrics database.
func (c *Config) SQLiteDSN() string {
	return "file:" + filepath.Join(c.DataDir, dbFile) +
		"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
}

// DefaultJournalDir is the journal directory used when the settings database
// has not recorded one yet.
func (c *Config) DefaultJournalDir() string {
	if c.JournalDir != "" {
		return c.JournalDir
	}
	return filepath.Join(c.DataDir, "journals")
}

// validLoopbackAddr accepts host:port where host is a literal loopback IP.
// Wildcard hosts such as "" or 0.0.0.0 bind every interface and are refused.
func validLoopbackAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || strings.ContainsAny(port, "+-") {
		return false
	}
	return n > 0 && n <= 65535
}

// validSafePath rejects empty paths, the filesystem root, the current
// directory and anything containing a parent reference.
func validSafePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if strings.TrimSpace(p) == "" {
		return false
	}
	for _, part := range strings.FieldsFunc(filepath.ToSlash(p), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return false
		}
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == string(filepath.Separator) {
		return false
	}
	return true
}

// ParseSize converts a human-friendly size string into a byte count.
// Accepts plain integers (bytes) or IEC/human suffixes: KiB/MiB/GiB (case-insensitive) or K/M/G.
// Examples: "131072" => 131072, "128KiB" => 131072, "1MiB" => 1048576, "2G" => 2147483648.
func ParseSize(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	upper := strings.ToUpper(s)
	if n, ok, err := parseSizeWithSuffix(upper, orig); ok {
		return n, err
	}
	n, err := parsePositiveInt(upper)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", orig, err)
	}
	return n, nil
}

func parsePositiveInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative not allowed")
	}
	return n, nil
}

// parseSizeWithSuffix returns (value, true, nil) on success, (0, false, nil)
// if no suffix matched, or (0, true, error) if a suffix matched but the number did not parse.
func parseSizeWithSuffix(upper, orig string) (int64, bool, error) {
	units := []struct {
		suffix string
		mult   int64
	}{
		{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30},
		{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
	}
	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			numPart := strings.TrimSpace(upper[:len(upper)-len(u.suffix)])
			if numPart == "" {
				return 0, true, fmt.Errorf("parse size %q: missing number", orig)
			}
			n, err := parsePositiveInt(numPart)
			if err != nil {
				return 0, true, fmt.Errorf("parse size %q: %w", orig, err)
			}
			return n * u.mult, true, nil
		}
	}
	return 0, false, nil
}
