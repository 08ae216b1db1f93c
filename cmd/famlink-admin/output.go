// ABOUTME: Output helpers shared by the admin commands
// ABOUTME: Tab-aligned text tables or indented JSON depending on --format

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes header and rows column-aligned, with a dashed rule under
// the header.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, "  "+strings.Join(header, "\t"))
	fmt.Fprintln(tw, "  "+strings.Join(rule, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, "  "+strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func ok(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
