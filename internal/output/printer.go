// Package output formats CLI output: colored status lines, tables and
// human-readable sizes.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer writes status lines to the terminal.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
	quiet     bool
}

// UseColors reports whether color output should be enabled for mode
// ("auto", "always" or "never").
func UseColors(mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false, nil
		}
		return os.Getenv("TERM") != "dumb" && !color.NoColor, nil
	default:
		return false, fmt.Errorf("invalid color mode %q: must be auto, always, or never", mode)
	}
}

// NewPrinter returns a printer on stdout/stderr.
func NewPrinter(useColors, quiet bool) *Printer {
	return NewPrinterWithWriters(os.Stdout, os.Stderr, useColors, quiet)
}

// NewPrinterWithWriters returns a printer on custom writers.
func NewPrinterWithWriters(out, errOut io.Writer, useColors, quiet bool) *Printer {
	return &Printer{out: out, err: errOut, useColors: useColors, quiet: quiet}
}

// Out is the writer for tables and plain output.
func (p *Printer) Out() io.Writer { return p.out }

// Quiet reports whether informational output is suppressed.
func (p *Printer) Quiet() bool { return p.quiet }

// Info prints an informational message.
func (p *Printer) Info(format string, args ...any) {
	if p.quiet {
		return
	}
	p.line(p.out, color.FgCyan, "", format, args...)
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...any) {
	if p.quiet {
		return
	}
	p.line(p.out, color.FgGreen, "[OK] ", format, args...)
}

// Skip prints a skipped-item message.
func (p *Printer) Skip(format string, args ...any) {
	if p.quiet {
		return
	}
	p.line(p.out, color.Faint, "[SKIP] ", format, args...)
}

// Warning prints a warning message.
func (p *Printer) Warning(format string, args ...any) {
	if p.quiet {
		return
	}
	p.line(p.err, color.FgYellow, "[WARN] ", format, args...)
}

// Error prints an error message. It is never suppressed.
func (p *Printer) Error(format string, args ...any) {
	p.line(p.err, color.FgRed, "[ERROR] ", format, args...)
}

// Print prints a plain line.
func (p *Printer) Print(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints a section header.
func (p *Printer) Header(title string) {
	if p.quiet {
		return
	}
	if p.useColors {
		color.New(color.Bold).Fprintf(p.out, "\n%s\n", title)
	} else {
		fmt.Fprintf(p.out, "\n%s\n", title)
	}
}

// Bold returns text in bold when colors are on.
func (p *Printer) Bold(text string) string {
	if p.useColors {
		return color.New(color.Bold).Sprint(text)
	}
	return text
}

func (p *Printer) line(w io.Writer, attr color.Attribute, prefix, format string, args ...any) {
	if p.useColors {
		color.New(attr).Fprintf(w, prefix+format+"\n", args...)
		return
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}

// Bytes formats a byte count as B, KB or MB.
func Bytes(b uint64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// TruncLeft shortens s to max characters, keeping the tail.
func TruncLeft(s string, max int) string {
	if len(s) <= max || max <= 3 {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
