package render

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type Table struct {
	p       *Printer
	headers []string
	rows    [][]string
}

func NewTable(p *Printer, headers []string) *Table {
	return &Table{
		p:       p,
		headers: headers,
		rows:    [][]string{},
	}
}

func (t *Table) AddRow(row []string) {
	t.rows = append(t.rows, row)
}

func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	out := t.p.out
	for i, header := range t.headers {
		t.p.header.Fprint(out, pad(header, widths[i])+"  ")
	}
	fmt.Fprintln(out)

	for i := range t.headers {
		fmt.Fprint(out, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(out)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprint(out, pad(cell, widths[i])+"  ")
			}
		}
		fmt.Fprintln(out)
	}
}

// pad left-aligns s in a column of width runes.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
