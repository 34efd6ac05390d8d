package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/haukened/quill/internal/app"
)

func (c *cli) rekeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rekey",
		Short: "Re-encrypt every entry under a new password",
		Long: `Re-encrypts every entry from the current password to a new one.

The run stops at the first entry that cannot be re-encrypted. Entries already
rewritten keep the new password; "quill history" lists which ones.

Non-interactive use: set QUILL_PASSWORD and QUILL_NEW_PASSWORD, or pass
--password-stdin with the old and new password on the first two lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oldPW, err := c.password()
			if err != nil {
				return err
			}
			if err := c.svc.VerifyPassword(oldPW); err != nil {
				return err
			}
			newPW, err := c.newPassword()
			if err != nil {
				return err
			}
			if newPW == oldPW {
				return errors.New("the new password must differ from the current one")
			}
			stop := c.startSpinner("Re-encrypting entries...")
			res, err := c.svc.Rekey(cmd.Context(), oldPW, newPW)
			stop()
			if err != nil {
				var rerr *app.RekeyError
				if errors.As(err, &rerr) && rerr.Processed > 0 && res.RunID != "" {
					fmt.Fprintln(c.errOut, infoMark()+" run "+res.RunID+": see quill history")
				}
				return err
			}
			fmt.Fprintf(c.out, "%s re-encrypted %d entries\n", successMark(), res.Processed)
			return nil
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <dir>",
		Short: "Move the journal to another directory",
		Long: `Moves every entry to dir and records dir as the journal location.

Nothing is overwritten. If any entry cannot be moved, every moved entry is
moved back and the journal stays where it was.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := c.startSpinner("Moving entries...")
			res, err := c.svc.Migrate(cmd.Context(), args[0])
			stop()
			if err != nil {
				var merr *app.MigrateError
				if errors.As(err, &merr) {
					for _, f := range merr.Failed {
						fmt.Fprintf(c.errOut, "%s %s: %s\n", errorMark(), f.Name, app.UserMessage(f.Err))
					}
					for _, f := range merr.RollbackFailed {
						fmt.Fprintf(c.errOut, "%s %s stranded in %s\n", warnMark(), f.Name, merr.Target)
					}
				}
				return err
			}
			if res.NoOp {
				fmt.Fprintln(c.out, infoMark()+" the journal is already in "+res.Target)
				return nil
			}
			fmt.Fprintf(c.out, "%s moved %d entries to %s\n", successMark(), res.Moved, res.Target)
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		single bool
		only   []string
	)
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write decrypted copies of entries to a directory",
		Long: `Writes plaintext copies of entries to dir, oldest first. The journal is
not modified. With --single all entries go into one quill_export_<time>.txt file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := c.password()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(only))
			for _, n := range only {
				names = append(names, entryName(strings.TrimSpace(n)))
			}
			stop := c.startSpinner("Exporting entries...")
			res, err := c.svc.Export(pw, args[0], app.ExportOptions{Single: single, Only: names})
			stop()
			if err != nil {
				return err
			}
			for _, s := range res.Skipped {
				fmt.Fprintf(c.errOut, "%s skipped %s (failed to decrypt)\n", warnMark(), s)
			}
			fmt.Fprintf(c.out, "%s exported %d entries, %d failed\n", successMark(), res.Exported, res.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "write one combined file")
	cmd.Flags().StringSliceVar(&only, "only", nil, "export only these entries (comma separated)")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent rekey and migrate runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, files, err := c.svc.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Fprintln(c.out, infoMark()+" no runs recorded")
				return nil
			}
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.MaxColWidth = 60
			tbl.Wrap = true
			tbl.AddRow(bold.Sprint("STARTED"), bold.Sprint("KIND"), bold.Sprint("OUTCOME"), bold.Sprint("FILES"), bold.Sprint("TARGET"))
			for _, op := range ops {
				tbl.AddRow(op.StartedAt.Local().Format(time.DateTime), string(op.Kind), outcome(op.Outcome), len(files[op.ID]), op.Target)
				for _, f := range files[op.ID] {
					if f.Status == app.FileDone {
						continue
					}
					tbl.AddRow("", "", "  "+string(f.Status), f.Name, f.Detail)
				}
			}
			fmt.Fprintln(c.out, tbl)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func outcome(o app.Outcome) string {
	switch o {
	case app.OutcomeSuccess:
		return successColor.Sprint(string(o))
	case app.OutcomeRunning:
		return warnColor.Sprint(string(o))
	default:
		return errorColor.Sprint(string(o))
	}
}
