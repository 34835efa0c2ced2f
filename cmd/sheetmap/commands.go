package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/locvowork/sheetmap/pkg/sheetmap"
	"github.com/locvowork/sheetmap/pkg/workbook"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose    bool
	timeLayout string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "sheetmap",
		Short: "Convert between CSV files and xls/xlsx workbooks",
		Long: `sheetmap moves tabular data between CSV files and spreadsheet workbooks.
Workbooks larger than one sheet can hold are split into numbered sheets on
write and read back as one table.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if opts.timeLayout == "" {
				opts.timeLayout = os.Getenv("SHEET_TIME_LAYOUT")
			}
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine activity to stderr")
	root.PersistentFlags().StringVar(&opts.timeLayout, "time-layout", "", "Layout of textual date cells (default SHEET_TIME_LAYOUT or 2006-01-02 15:04:05)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sheetmap v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		},
	})
	root.AddCommand(newConvertCmd(opts), newDumpCmd(opts), newInspectCmd())
	return root
}

func (o *rootOptions) registry(stderr io.Writer) *sheetmap.Registry {
	log := zerolog.Nop()
	if o.verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
	return sheetmap.NewRegistry(sheetmap.WithLogger(log), sheetmap.WithTimeLayout(o.timeLayout))
}

func newConvertCmd(root *rootOptions) *cobra.Command {
	var (
		sheet     string
		noHeader  bool
		delimiter string
	)
	cmd := &cobra.Command{
		Use:   "convert <in.csv> <out.xlsx|out.xls>",
		Short: "Write a CSV file as a workbook",
		Long: `Write a CSV file as a workbook. The format follows the output extension.
Rows beyond the capacity of one sheet continue on "<sheet>-1", "<sheet>-2", ...

Example:
  sheetmap convert employees.csv employees.xlsx --sheet Employees`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := workbook.FormatFromPath(args[1])
			if err != nil {
				return err
			}
			comma, err := delimiterRune(delimiter)
			if err != nil {
				return err
			}
			table, err := readCSV(args[0], comma, !noHeader)
			if err != nil {
				return err
			}

			opts := []sheetmap.TableOption{sheetmap.WithTableSheet(0, sheet)}
			if noHeader {
				opts = append(opts, sheetmap.WithoutHeader())
			}
			data, err := root.registry(cmd.ErrOrStderr()).TableToBytes(table, format, opts...)
			if err != nil {
				return fmt.Errorf("failed to build workbook: %w", err)
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(table.Rows), args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "Sheet1", "Name of the first sheet")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "Treat the first CSV line as data")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", "CSV field delimiter")
	return cmd
}

func newDumpCmd(root *rootOptions) *cobra.Command {
	var (
		out        string
		sheetIndex int
		noHeader   bool
		maxColumns int
		skipBlank  bool
	)
	cmd := &cobra.Command{
		Use:   "dump <in.xlsx>",
		Short: "Write a workbook sheet as CSV",
		Long: `Write a workbook sheet, together with its numbered continuation sheets, as CSV.
Output goes to stdout unless --out is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			opts := []sheetmap.TableOption{sheetmap.WithTableSheet(sheetIndex, "")}
			if noHeader {
				opts = append(opts, sheetmap.WithoutHeader())
			}
			if maxColumns > 0 {
				opts = append(opts, sheetmap.WithMaxColumns(maxColumns))
			}
			if skipBlank {
				opts = append(opts, sheetmap.WithRemoveEmptyRows())
			}
			table, err := root.registry(cmd.ErrOrStderr()).ToDataTable(data, workbook.FormatUnknown, opts...)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeCSV(w, table, !noHeader)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write CSV to this file")
	cmd.Flags().IntVar(&sheetIndex, "sheet", 0, "Index of the sheet to read")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "Treat the first row as data and omit the CSV header")
	cmd.Flags().IntVar(&maxColumns, "max-columns", 0, "Read at most this many columns")
	cmd.Flags().BoolVar(&skipBlank, "skip-blank", false, "Drop trailing blank rows")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <in.xlsx>",
		Short: "List the sheets of a workbook with their row counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := workbook.Open(args[0])
			if err != nil {
				return err
			}
			defer wb.Close()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "format: %s\n", wb.Format())
			for i := 0; i < wb.SheetCount(); i++ {
				sheet, err := wb.SheetAt(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%d rows\n", i, sheet.Name(), sheet.RowCount())
			}
			return nil
		},
	}
}

func delimiterRune(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r[0], nil
}

// readCSV loads a CSV file as a table of text values.
func readCSV(path string, comma rune, header bool) (*sheetmap.TabularTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1

	table := sheetmap.NewTabularTable()
	first := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if first && header {
			first = false
			for _, name := range record {
				table.Columns = append(table.Columns, sheetmap.TabularColumn{Name: strings.TrimSpace(name)})
			}
			continue
		}
		first = false
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		table.AddRow(row...)
	}
	return table, nil
}

func writeCSV(w io.Writer, table *sheetmap.TabularTable, header bool) error {
	cw := csv.NewWriter(w)
	width := table.Width()
	if header {
		names := make([]string, width)
		for i, c := range table.Columns {
			names[i] = c.Name
		}
		if err := cw.Write(names); err != nil {
			return err
		}
	}
	record := make([]string, width)
	for _, row := range table.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) && row[i] != nil {
				record[i] = fmt.Sprint(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
