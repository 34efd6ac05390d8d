// Package main provides the quill binary: a command line front end for an
// encrypted journal. It loads configuration from defaults, environment
// variables and flags, opens the settings database, resolves the journal
// directory and runs one subcommand against it.
//
// The application flow:
//  1. Parse flags.
//  2. Load defaults and apply environment variables and flags.
//  3. Open the settings database and the metrics tables.
//  4. Resolve the journal directory (settings table, then config).
//  5. Run the subcommand, then flush metrics and close the database.
//
// Exit codes: 0 ok, 1 generic failure, 2 configuration error, 3 wrong
// password or corrupt entry, 4 partial failure, 5 migration done but the new
// location was not saved.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/quill/internal/app"
	"github.com/haukened/quill/internal/codec"
	"github.com/haukened/quill/internal/config"
	"github.com/haukened/quill/internal/domain"
	"github.com/haukened/quill/internal/metrics"
	"github.com/haukened/quill/internal/store"
	"github.com/haukened/quill/internal/store/filesystem"
	"github.com/haukened/quill/internal/store/sqlite"
)

const (
	exitOK = iota
	exitGeneric
	exitConfig
	exitAuth
	exitPartial
	exitSettings
)

// codecOptions is swapped by tests for a cheaper KDF.
var codecOptions []codec.Option

// configError marks failures that happen before any journal work starts.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

// cli carries everything a subcommand needs. It is built once per process
// by setup and torn down by close.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	flags         *config.FlagVals
	passwordStdin bool

	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	settings *sqlite.Store
	metrics  *metrics.Manager
	store    *store.Store
	svc      *app.Service

	stdin *lineReader
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{in: in, out: out, errOut: errOut}
}

// setup loads configuration and opens the journal. Failures are reported as
// configuration errors.
func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.LoadWithFlags(c.flags)
	if err != nil {
		return configError{err: fmt.Errorf("configuration: %w", err)}
	}
	c.cfg = cfg
	c.logger = slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return configError{err: fmt.Errorf("create data directory: %w", err)}
	}
	db, err := sqlite.Open(cfg.SQLiteDSN())
	if err != nil {
		return configError{err: fmt.Errorf("open settings database: %w", err)}
	}
	c.db = db
	settings, err := sqlite.New(db)
	if err != nil {
		return configError{err: fmt.Errorf("init settings schema: %w", err)}
	}
	c.settings = settings
	c.metrics = metrics.New(db, metrics.Config{Logger: c.logger})
	if err := c.metrics.InitSchema(ctx); err != nil {
		return configError{err: fmt.Errorf("init metrics schema: %w", err)}
	}

	dir, err := c.journalDir(ctx)
	if err != nil {
		return configError{err: err}
	}
	c.store = store.New(dir, filesystem.Open, codec.New(codecOptions...))
	c.svc = &app.Service{
		Store:    c.store,
		Mover:    filesystem.Mover{},
		Settings: settings,
		Sink:     filesystem.Exporter{},
		Ops:      settings,
		Metrics:  c.metrics,
		Clock:    app.SystemClock{},
		Logger:   c.logger,
	}
	c.logger.Debug("journal opened", "dir", dir, "data_dir", cfg.DataDir)
	return nil
}

// journalDir resolves the journal location: the directory recorded by the
// last successful migration, else the configured one. A configured directory
// that disagrees with the recorded one is reported and ignored.
func (c *cli) journalDir(ctx context.Context) (string, error) {
	dir, ok, err := c.settings.JournalDir(ctx)
	if err != nil {
		return "", fmt.Errorf("read journal directory setting: %w", err)
	}
	if ok {
		if c.cfg.JournalDir != "" && filepath.Clean(c.cfg.JournalDir) != filepath.Clean(dir) {
			c.logger.Warn("configured journal directory ignored; the journal was migrated, run quill migrate to move it",
				"domain", "config", "configured", c.cfg.JournalDir, "recorded", dir)
		}
		return dir, nil
	}
	return c.cfg.DefaultJournalDir(), nil
}

func (c *cli) close() {
	if c.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.metrics.Stop(ctx); err != nil {
			c.logger.Warn("metrics flush", "domain", "metrics", "error", err)
		}
		cancel()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}

// exitCode maps an error to the process exit status. Partial failures are
// checked before authentication: a rekey that hit a bad entry halfway is a
// partial failure even though the cause is a decrypt error.
func exitCode(err error) int {
	var cfgErr configError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.Is(err, domain.ErrSettingsNotPersisted):
		return exitSettings
	case errors.Is(err, domain.ErrPartialFailure):
		return exitPartial
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return exitAuth
	default:
		return exitGeneric
	}
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	c := newCLI(in, out, errOut)
	defer c.close()
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(errOut, errorMark()+" "+app.UserMessage(err))
		if c.logger != nil {
			c.logger.Debug("command failed", "error", err)
		}
	}
	return exitCode(err)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quill",
		Short:         "An encrypted journal, one file per day",
		Long:          "quill keeps a diary of password-encrypted daily entries named by their Solar Hijri date.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	c.flags = config.BindFlags(root.PersistentFlags())
	root.PersistentFlags().BoolVar(&c.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")

	root.AddCommand(
		c.listCmd(),
		c.newCmd(),
		c.readCmd(),
		c.writeCmd(),
		c.whereCmd(),
		c.rekeyCmd(),
		c.migrateCmd(),
		c.exportCmd(),
		c.historyCmd(),
		c.statsCmd(),
		c.doctorCmd(),
		c.serveCmd(),
	)
	return root
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
