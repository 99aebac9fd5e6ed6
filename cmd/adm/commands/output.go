package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// Printer writes command results as an aligned table on a terminal and as JSON otherwise
type Printer struct {
	w     io.Writer
	table bool
}

// NewPrinter picks the format from w: a table when w is a terminal
func NewPrinter(w io.Writer) *Printer {
	table := false
	if f, ok := w.(*os.File); ok {
		table = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{w: w, table: table}
}

// NewPrinterWithFormat forces the format
func NewPrinterWithFormat(w io.Writer, table bool) *Printer {
	return &Printer{w: w, table: table}
}

// Table reports whether output is tabular
func (p *Printer) Table() bool {
	return p.table
}

// Print writes v as JSON, or as rows under headers when in table mode
func (p *Printer) Print(v interface{}, headers []string, rows [][]string) error {
	if !p.table {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
		dashes := make([]string, len(headers))
		for i, h := range headers {
			dashes[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Line writes a human readable line in table mode only
func (p *Printer) Line(format string, args ...interface{}) {
	if p.table {
		fmt.Fprintf(p.w, format+"\n", args...)
	}
}
