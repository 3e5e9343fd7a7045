// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders command-line output for the qcat tool.
//
// Output is written through a Printer, which picks between styled
// terminal output and plain, line-oriented output for scripts. Styles are
// bound to the Printer's writer so colour is only emitted when that writer
// is a terminal.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Mode controls how much formatting a Printer applies.
type Mode string

const (
	// ModeRich uses icons, boxes and tables, with colour on terminals.
	ModeRich Mode = "rich"

	// ModeMachine writes tab-separated, prefix-tagged lines for scripts.
	ModeMachine Mode = "machine"
)

// ParseMode converts a flag value to a Mode. Unknown values map to ModeRich.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "machine", "plain", "script":
		return ModeMachine
	default:
		return ModeRich
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Icon is a status marker printed before a line.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

type styles struct {
	title   lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	box     lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	border  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		bold:    r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(ColorSlate),
		success: r.NewStyle().Foreground(ColorSuccess),
		warning: r.NewStyle().Foreground(ColorWarning),
		err:     r.NewStyle().Foreground(ColorError),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
		header: r.NewStyle().Bold(true).Foreground(ColorTealPrimary).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(ColorTealDeep),
	}
}

// Printer writes formatted output. It is safe for concurrent use.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	mode   Mode
	styles styles
}

// NewPrinter returns a Printer writing regular output to out and
// diagnostics to errOut.
func NewPrinter(out, errOut io.Writer, mode Mode) *Printer {
	if mode == "" {
		mode = ModeRich
	}
	return &Printer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// Stdio returns a Printer on os.Stdout and os.Stderr. When stdout is not a
// terminal, rich mode falls back to machine output.
func Stdio(mode Mode) *Printer {
	if mode == ModeRich && !IsTerminal(os.Stdout) {
		mode = ModeMachine
	}
	return NewPrinter(os.Stdout, os.Stderr, mode)
}

// Mode returns the output mode.
func (p *Printer) Mode() Mode { return p.mode }

// Out returns the writer for regular output.
func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) machine() bool { return p.mode == ModeMachine }

func (p *Printer) println(w io.Writer, s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(w, s)
}

func (p *Printer) icon(i Icon) string {
	switch i {
	case IconSuccess:
		return p.styles.success.Render(string(i))
	case IconWarning:
		return p.styles.warning.Render(string(i))
	case IconError:
		return p.styles.err.Render(string(i))
	case IconPending:
		return p.styles.muted.Render(string(i))
	default:
		return string(i)
	}
}

// Title prints a heading. Machine output omits it.
func (p *Printer) Title(text string) {
	if p.machine() {
		return
	}
	p.println(p.out, p.styles.title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.machine() {
		p.println(p.out, "OK: "+text)
		return
	}
	p.println(p.out, p.icon(IconSuccess)+" "+p.styles.success.Render(text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.machine() {
		p.println(p.errOut, "WARN: "+text)
		return
	}
	p.println(p.out, p.icon(IconWarning)+" "+p.styles.warning.Render(text))
}

// Error prints an error line to the diagnostic writer.
func (p *Printer) Error(text string) {
	if p.machine() {
		p.println(p.errOut, "ERROR: "+text)
		return
	}
	p.println(p.errOut, p.icon(IconError)+" "+p.styles.err.Render(text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.machine() {
		p.println(p.out, text)
		return
	}
	p.println(p.out, p.styles.muted.Render("│")+" "+text)
}

// Muted prints secondary text. Machine output omits it.
func (p *Printer) Muted(text string) {
	if p.machine() {
		return
	}
	p.println(p.out, p.styles.muted.Render(text))
}

// Box prints content under a title inside a rounded border.
func (p *Printer) Box(title, content string) {
	if p.machine() {
		p.println(p.out, title+": "+content)
		return
	}
	p.println(p.out, p.styles.box.Render(p.styles.title.Render(title)+"\n"+content))
}

// Status prints one item with its status and an optional reason.
func (p *Printer) Status(label string, status Icon, reason string) {
	if p.machine() {
		p.println(p.out, fmt.Sprintf("%s\t%s\t%s", status, label, reason))
		return
	}
	line := p.icon(status) + " " + label
	if reason != "" {
		line += " " + p.styles.muted.Render("("+reason+")")
	}
	p.println(p.out, line)
}

// Summary prints valid, invalid and total counts.
func (p *Printer) Summary(valid, invalid, total int) {
	if p.machine() {
		p.println(p.out, fmt.Sprintf("SUMMARY: valid=%d invalid=%d total=%d", valid, invalid, total))
		return
	}
	p.println(p.out, fmt.Sprintf("\n%s %s  %s %s  %s %s",
		p.styles.success.Render(fmt.Sprintf("%d", valid)), p.styles.muted.Render("valid"),
		p.styles.err.Render(fmt.Sprintf("%d", invalid)), p.styles.muted.Render("invalid"),
		p.styles.bold.Render(fmt.Sprintf("%d", total)), p.styles.muted.Render("total"),
	))
}

// Table prints rows under headers. Machine output is tab-separated with
// the header line first.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.machine() {
		var b strings.Builder
		b.WriteString(strings.Join(headers, "\t"))
		for _, row := range rows {
			b.WriteByte('\n')
			b.WriteString(strings.Join(row, "\t"))
		}
		p.println(p.out, b.String())
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.styles.border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.header
			}
			return p.styles.cell
		}).
		Headers(headers...).
		Rows(rows...)
	p.println(p.out, t.String())
}

// ProgressBar renders current/total as a bar of the given width.
func (p *Printer) ProgressBar(current, total, width int) string {
	if p.machine() || total <= 0 || width <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	return fmt.Sprintf("%s%s %3.0f%%",
		p.styles.success.Render(strings.Repeat("█", filled)),
		p.styles.muted.Render(strings.Repeat("░", width-filled)),
		pct*100)
}
