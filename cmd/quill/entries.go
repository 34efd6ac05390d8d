package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/haukened/quill/internal/domain"
)

// entryView is the serialized form of an entry in list output.
type entryView struct {
	FileName string `json:"file_name" yaml:"file_name"`
	Date     string `json:"date" yaml:"date"`
	Year     int    `json:"year" yaml:"year"`
	Month    string `json:"month" yaml:"month"`
	Day      int    `json:"day" yaml:"day"`
}

func toView(e domain.Entry) entryView {
	return entryView{
		FileName: e.FileName,
		Date:     e.DisplayName,
		Year:     domain.YearOf(e.Date),
		Month:    domain.MonthName(domain.MonthOf(e.Date)),
		Day:      domain.DayOf(e.Date),
	}
}

func (c *cli) listCmd() *cobra.Command {
	var (
		year   int
		all    bool
		group  bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Long: `Lists the entries of the current Solar Hijri year, newest first.

Examples:
  # This year's entries
  quill list

  # Every entry, grouped by month
  quill list --all --group

  # Entries of 1402 as JSON
  quill list --year 1402 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				entries []domain.Entry
				err     error
			)
			switch {
			case all:
				entries, err = c.svc.List()
			case year > 0:
				entries, err = c.svc.ListYear(year)
			default:
				entries, err = c.svc.ListYear(domain.YearOf(time.Now()))
			}
			if err != nil {
				return err
			}
			views := make([]entryView, 0, len(entries))
			for _, e := range entries {
				views = append(views, toView(e))
			}
			if done, err := encode(c.out, output, views); done {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(c.out, infoMark()+" no entries")
				return nil
			}
			if group {
				c.printGroups(entries)
				return nil
			}
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow(bold.Sprint("ENTRY"), bold.Sprint("WEEKDAY"), bold.Sprint("MONTH"))
			for _, e := range entries {
				tbl.AddRow(e.DisplayName, e.Date.Weekday().String(), domain.MonthName(domain.MonthOf(e.Date)))
			}
			fmt.Fprintln(c.out, tbl)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "list entries of this Solar Hijri year")
	cmd.Flags().BoolVar(&all, "all", false, "list every entry")
	cmd.Flags().BoolVar(&group, "group", false, "group the table by month")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "table, json or yaml")
	cmd.MarkFlagsMutuallyExclusive("year", "all")
	return cmd
}

func (c *cli) printGroups(entries []domain.Entry) {
	for i, g := range domain.GroupByMonth(entries) {
		if i > 0 {
			fmt.Fprintln(c.out)
		}
		fmt.Fprintln(c.out, bold.Sprintf("%s %d", g.Name, g.Year))
		tbl := uitable.New()
		tbl.Separator = "  "
		for _, e := range g.Entries {
			tbl.AddRow("  "+e.DisplayName, e.Date.Weekday().String())
		}
		fmt.Fprintln(c.out, tbl)
	}
}

func (c *cli) newCmd() *cobra.Command {
	var mood int
	cmd := &cobra.Command{
		Use:   "new [date]",
		Short: "Create the entry for a day",
		Long: `Creates the entry for date (YYYY-MM-DD, Solar Hijri), or for today.
An existing entry is never overwritten.

Moods: 1 🌩️  2 🌧️  3 🌥️  4 ☀️  5 🌈`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now()
			if len(args) == 1 {
				d, err := domain.StringToDate(args[0])
				if err != nil {
					return fmt.Errorf("%q: %w", args[0], err)
				}
				date = d
			}
			m := domain.DefaultMood
			if mood != 0 {
				var ok bool
				if m, ok = domain.MoodByNumber(mood); !ok {
					return fmt.Errorf("mood must be between 1 and %d", len(domain.Moods))
				}
			}
			pw, err := c.password()
			if err != nil {
				return err
			}
			if err := c.svc.VerifyPassword(pw); err != nil {
				return err
			}
			e, err := c.svc.CreateNewWithMood(date, m, pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, successMark()+" created "+e.FileName)
			return nil
		},
	}
	cmd.Flags().IntVar(&mood, "mood", 0, "mood from 1 (stormy) to 5 (rainbow)")
	return cmd
}

func (c *cli) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <entry>",
		Short: "Print a decrypted entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := c.password()
			if err != nil {
				return err
			}
			content, err := c.svc.Read(entryName(args[0]), pw)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, content)
			return nil
		},
	}
}

func (c *cli) writeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "write <entry>",
		Short: "Replace an entry's content",
		Long: `Replaces the content of entry with the contents of --file, or of stdin.
With --password-stdin the first stdin line is the password and the rest is the content.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := c.password()
			if err != nil {
				return err
			}
			var content string
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				content = string(b)
			} else if content, err = c.rest(); err != nil {
				return err
			}
			if err := c.svc.VerifyPassword(pw); err != nil {
				return err
			}
			name := entryName(args[0])
			if err := c.svc.Write(name, content, pw); err != nil {
				return err
			}
			fmt.Fprintln(c.out, successMark()+" saved "+name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from this file instead of stdin")
	return cmd
}

func (c *cli) whereCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "where",
		Short: "Print the journal directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(c.out, c.svc.Location())
			return nil
		},
	}
}

// entryName accepts an entry by date or by file name.
func entryName(arg string) string {
	if strings.HasSuffix(arg, domain.FileExt) {
		return arg
	}
	return arg + domain.FileExt
}
