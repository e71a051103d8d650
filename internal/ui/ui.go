// Package ui renders terminal output for gridctl.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"gridscope/internal/adapter"
	"gridscope/internal/domain"
)

// Palette
var (
	Brand  = color.New(color.FgHiCyan, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Info   = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

// typeColors follows the renderer's fills as closely as a terminal allows
var typeColors = map[domain.NodeType]*color.Color{
	domain.NodeTypeSlack:     color.New(color.FgRed, color.Bold),
	domain.NodeTypePV:        color.New(color.FgMagenta),
	domain.NodeTypeGenerator: color.New(color.FgGreen),
	domain.NodeTypeLoad:      color.New(color.FgBlue),
}

// TypeColor returns the color used for nodes of type t
func TypeColor(t domain.NodeType) *color.Color {
	if c, ok := typeColors[t]; ok {
		return c
	}
	return Subtle
}

// Banner prints the gridctl banner
func Banner(w io.Writer, subtitle string) {
	fmt.Fprintf(w, "%s %s\n\n", Brand.Sprint("gridctl"), Subtle.Sprint(subtitle))
}

// Table prints a simple aligned table. Widths are measured on the plain
// text, so cells may carry color.
func Table(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	headerLine := "  "
	sepLine := "  "
	for i, h := range headers {
		headerLine += pad(h, widths[i]) + "  "
		sepLine += strings.Repeat("─", widths[i]) + "  "
	}
	Subtle.Fprintln(w, strings.TrimRight(headerLine, " "))
	Subtle.Fprintln(w, strings.TrimRight(sepLine, " "))

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				line += pad(cell, widths[i]) + "  "
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func pad(cell string, width int) string {
	if n := visibleLen(cell); n < width {
		return cell + strings.Repeat(" ", width-n)
	}
	return cell
}

// visibleLen counts runes outside ANSI escape sequences
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			n++
		}
	}
	return n
}

// StatusIcon returns a status icon string
func StatusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}

// WarnIcon returns a warning icon
func WarnIcon() string {
	return Warn.Sprint("⚠")
}

// Summary prints the case label, scale, node counts by type and link count
// of a converted topology
func Summary(w io.Writer, res *adapter.Result) {
	label := res.Case
	if label == "" {
		label = Subtle.Sprint("(unnamed)")
	}
	fmt.Fprintf(w, "  Case:   %s\n", Brand.Sprint(label))
	fmt.Fprintf(w, "  Scale:  %s\n", res.Scale)
	fmt.Fprintf(w, "  Nodes:  %d\n", len(res.Nodes))
	fmt.Fprintf(w, "  Links:  %d\n\n", len(res.Links))

	counts := res.CountByType()
	rows := make([][]string, 0, len(domain.NodeTypes))
	for _, t := range domain.NodeTypes {
		rows = append(rows, []string{TypeColor(t).Sprint(string(t)), fmt.Sprintf("%d", counts[t])})
	}
	Table(w, []string{"TYPE", "COUNT"}, rows)
}

// Positions prints one row per node with its type and coordinates
func Positions(w io.Writer, nodes []*domain.Node) {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		p := n.Position()
		pinned := ""
		if n.Pinned() {
			pinned = WarnIcon()
		}
		rows = append(rows, []string{
			n.ID,
			TypeColor(n.Type).Sprint(string(n.Type)),
			fmt.Sprintf("%.1f", p.X),
			fmt.Sprintf("%.1f", p.Y),
			pinned,
		})
	}
	Table(w, []string{"ID", "TYPE", "X", "Y", "PIN"}, rows)
}

// DisableColor turns off color for every palette entry
func DisableColor() {
	color.NoColor = true
}
