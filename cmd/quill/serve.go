package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/haukened/quill/internal/httpx"
	"github.com/haukened/quill/internal/janitor"
	"github.com/haukened/quill/internal/metrics"
)

func (c *cli) statsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := metrics.Collect(cmd.Context(), c.metrics)
			if err != nil {
				return err
			}
			if done, err := encode(c.out, output, rep); done {
				return err
			}
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow(bold.Sprint("COUNTER"), bold.Sprint("VALUE"))
			for _, name := range sortedKeys(rep.Counters) {
				tbl.AddRow(name, rep.Counters[name])
			}
			if len(rep.Summaries) > 0 {
				tbl.AddRow("")
				tbl.AddRow(bold.Sprint("SUMMARY"), bold.Sprint("COUNT"), bold.Sprint("SUM"), bold.Sprint("MIN"), bold.Sprint("MAX"))
				for _, name := range sortedKeys(rep.Summaries) {
					s := rep.Summaries[name]
					tbl.AddRow(name, s.Count, s.Sum, s.Min, s.Max)
				}
			}
			fmt.Fprintln(c.out, tbl)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "table, json or yaml")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (c *cli) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the journal and remove leftovers of interrupted writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fmt.Fprintln(c.out, infoMark()+" journal:  "+c.svc.Location())
			fmt.Fprintln(c.out, infoMark()+" settings: "+c.cfg.SQLiteDSN())

			if err := c.db.PingContext(ctx); err != nil {
				return fmt.Errorf("settings database: %w", err)
			}
			entries, err := c.svc.List()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %d entries\n", successMark(), len(entries))

			j := janitor.New(c.store, c.metrics, janitor.Config{Age: c.cfg.SweepAge, Logger: c.logger})
			n, err := j.RunOnce(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintf(c.out, "%s removed %d abandoned temp files\n", warnMark(), n)
			} else {
				fmt.Fprintln(c.out, successMark()+" no abandoned temp files")
			}
			return nil
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API on the configured loopback address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

// serve runs the API, the metrics flusher and the temp-file janitor until
// ctx is cancelled.
func (c *cli) serve(ctx context.Context) error {
	c.metrics.Start(ctx)
	j := janitor.New(c.store, c.metrics, janitor.Config{
		Interval: c.cfg.SweepInterval,
		Age:      c.cfg.SweepAge,
		Logger:   c.logger,
	})
	j.Start(ctx)
	defer j.Stop()

	readiness := func(ctx context.Context) error {
		if err := c.db.PingContext(ctx); err != nil {
			return err
		}
		_, err := os.Stat(c.svc.Location())
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	h := httpx.New(c.svc, c.cfg.MaxBody, readiness)
	h.Metrics = c.metrics
	h.Logger = c.logger
	srv := &http.Server{
		Addr:              c.cfg.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// rekey and migrate run inside one request
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("starting server", "addr", c.cfg.Addr, "journal", c.svc.Location(), "pid", os.Getpid())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
