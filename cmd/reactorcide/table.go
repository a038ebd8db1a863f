package main

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// printAlignedTable renders a fixed-width table for config/validate output,
// grounded in _examples/Aureuma-si/tools/si/util_table.go's column-width
// measurement idiom but using go-runewidth.StringWidth directly instead of
// the teacher's hand-rolled wide/zero-width rune loop.
func printAlignedTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) {
				if w := runewidth.StringWidth(row[i]); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	printRow(headers, widths)
	for _, row := range rows {
		printRow(row, widths)
	}
}

func printRow(cells []string, widths []int) {
	var b strings.Builder
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteString(cell)
		if pad := w - runewidth.StringWidth(cell); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		if i < len(widths)-1 {
			b.WriteString("  ")
		}
	}
	fmt.Println(strings.TrimRight(b.String(), " "))
}
