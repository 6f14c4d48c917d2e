package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
)

const defaultMaxUploadMB = 5

// importCmd imports the first sheet of an .xlsx workbook.
func importCmd(app *App) *cobra.Command {
	var maxMB int

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import shift rows from an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			if err := ingestion.CheckUpload(info.Name(), info.Size(), maxMB); err != nil {
				return err
			}

			file, err := os.Open(path) //nolint:gosec // operator-supplied path
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}

			defer func() {
				_ = file.Close()
			}()

			rows, err := ingestion.DecodeWorkbook(file)
			if err != nil {
				return err
			}

			report, err := app.pipeline.Ingest(cmd.Context(), rows)
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)

			return nil
		},
	}

	cmd.Flags().IntVar(&maxMB, "max-mb", defaultMaxUploadMB, "Reject workbooks of this size in megabytes or more")

	return cmd
}

func getCmd(app *App) *cobra.Command {
	var personID string

	cmd := &cobra.Command{
		Use:   "get <YYYY-MM-DD>",
		Short: "Show the record for one date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := app.service.GetByDate(cmd.Context(), args[0], personID)
			if err != nil {
				return err
			}

			if record == nil {
				return fmt.Errorf("no shift record for %s", shift.IdentityKey(args[0], personID))
			}

			printRecords(cmd.OutOrStdout(), []shift.Record{*record})

			return nil
		},
	}

	cmd.Flags().StringVar(&personID, "person", "", "Person identifier")

	return cmd
}

func rangeCmd(app *App) *cobra.Command {
	var personID string

	cmd := &cobra.Command{
		Use:   "range <from> <to>",
		Short: "List records between two dates (inclusive)",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.service.GetByRange(cmd.Context(), args[0], args[1], personID)
			if err != nil {
				return err
			}

			printRecords(cmd.OutOrStdout(), records)

			return nil
		},
	}

	cmd.Flags().StringVar(&personID, "person", "", "Only records of this person")

	return cmd
}

func putCmd(app *App) *cobra.Command {
	var in shift.Input

	cmd := &cobra.Command{
		Use:   "put <YYYY-MM-DD>",
		Short: "Create or replace the record for one date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Date = args[0]

			record, err := app.service.UpsertOne(cmd.Context(), in)
			if err != nil {
				return err
			}

			printRecords(cmd.OutOrStdout(), []shift.Record{record})

			return nil
		},
	}

	cmd.Flags().StringVar(&in.Shift, "shift", "", "Shift label (morning, afternoon, night or an alias)")
	cmd.Flags().BoolVar(&in.IsVacation, "vacation", false, "Mark the date as vacation")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Free-text notes")
	cmd.Flags().StringVar(&in.PersonID, "person", "", "Person identifier")

	return cmd
}

func statsCmd(app *App) *cobra.Command {
	var query shift.StatsQuery

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count records per shift and vacation days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := app.service.Stats(cmd.Context(), query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintf(out, "total: %d\n", stats.Total)
			for _, s := range shift.Shifts() {
				_, _ = fmt.Fprintf(out, "%s: %d\n", s, stats.PerShift[s])
			}

			_, _ = fmt.Fprintf(out, "vacation: %d\n", stats.VacationCount)

			return nil
		},
	}

	cmd.Flags().StringVar(&query.From, "from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&query.To, "to", "", "Last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&query.PersonID, "person", "", "Only records of this person")

	return cmd
}

func printRecords(out io.Writer, records []shift.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd

	_, _ = fmt.Fprintln(w, "DATE\tPERSON\tSHIFT\tVACATION\tNOTES")

	for _, r := range records {
		label := "-"
		if r.HasShift() {
			label = r.Shift.String()
		}

		person := r.PersonID
		if person == "" {
			person = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Date, person, label, strconv.FormatBool(r.IsVacation), r.Notes)
	}

	_ = w.Flush()
}

func printReport(out io.Writer, report *ingestion.BatchReport) {
	_, _ = fmt.Fprintf(out, "inserted: %d\nupdated: %d\nskipped: %d\n", report.Inserted, report.Updated, report.Skipped)

	for _, warning := range report.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", warning)
	}
}
