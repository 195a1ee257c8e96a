package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// printer writes command results as an aligned table on a terminal and as
// indented JSON otherwise.
type printer struct {
	w     io.Writer
	table bool
}

func newPrinter(w io.Writer, forceJSON bool) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok && !forceJSON {
		p.table = term.IsTerminal(int(f.Fd()))
	}
	return p
}

// print renders v. header and rows are only used in table mode.
func (p *printer) print(v any, header []string, rows [][]string) error {
	if !p.table {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func score(f float64) string { return fmt.Sprintf("%.2f", f) }
