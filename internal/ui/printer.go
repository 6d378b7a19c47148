package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Printer writes status lines.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter returns a Printer for w. Output is styled only when w is a
// terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// NewPlainPrinter returns a Printer that never styles its output.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Title prints an underlined heading.
func (p *Printer) Title(title string) {
	fmt.Fprintf(p.w, "%s\n%s\n", p.render(titleStyle, title), strings.Repeat("=", len(title)))
}

// Section prints a sub-heading preceded by a blank line.
func (p *Printer) Section(name string) {
	fmt.Fprintf(p.w, "\n%s\n", p.render(sectionStyle, name))
}

// OK prints a success row.
func (p *Printer) OK(name, extra string) {
	p.row(okStyle, checkMark, name, extra)
}

// Fail prints a failure row.
func (p *Printer) Fail(name, extra string) {
	p.row(failStyle, crossMark, name, extra)
}

// Warn prints a warning row.
func (p *Printer) Warn(name, extra string) {
	p.row(warnStyle, warnMark, name, extra)
}

// Skip prints a row for something that was left alone.
func (p *Printer) Skip(name, extra string) {
	p.row(dimStyle, skipMark, name, extra)
}

func (p *Printer) row(s lipgloss.Style, mark, name, extra string) {
	if extra == "" {
		fmt.Fprintf(p.w, "  %s  %s\n", p.render(s, mark), name)
		return
	}
	fmt.Fprintf(p.w, "  %s  %-40s %s\n", p.render(s, mark), name, p.render(dimStyle, extra))
}

// Summary prints a closing line such as "3 deleted, 1 failed".
func (p *Printer) Summary(ok, failed int, okVerb string) {
	line := fmt.Sprintf("%d %s, %d failed", ok, okVerb, failed)
	style := okStyle
	if failed > 0 {
		style = failStyle
	}
	fmt.Fprintf(p.w, "\n%s\n", p.render(style, line))
}
