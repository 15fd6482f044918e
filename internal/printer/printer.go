// Package printer renders CLI output for the parliament command.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes human-facing output. Diagnostics go to Err so that Out can
// be piped.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a Printer on stdout and stderr. Colors follow NO_COLOR.
func New() *Printer {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// Success prints a green line with a checkmark.
func (p *Printer) Success(format string, a ...any) {
	green.Fprintf(p.Out, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Step prints a progress line for multi-step operations.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Err, "→ %s\n", fmt.Sprintf(format, a...))
}

// Warning prints a yellow line to Err.
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.Err, "⚠️  %s\n", fmt.Sprintf(format, a...))
}

// Printf prints plain output.
func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Event prints one received envelope for the watch command.
func (p *Printer) Event(at time.Time, purpose, origin, detail string) {
	faint.Fprintf(p.Out, "%s ", at.Format("15:04:05.000"))
	cyan.Fprintf(p.Out, "%-17s ", purpose)
	fmt.Fprintf(p.Out, "%s", detail)
	if origin != "" {
		faint.Fprintf(p.Out, "  (from %s)", origin)
	}
	fmt.Fprintln(p.Out)
}

// Error prints a formatted error to Err and returns an error carrying only
// the title, for Cobra with SilenceErrors set.
func (p *Printer) Error(title, explanation string, suggestions ...string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions...)
}

// ErrorWithContext is Error with key/value details printed in key order.
func (p *Printer) ErrorWithContext(title, explanation string, context map[string]string, suggestions ...string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(p.Err)
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, context[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(p.Err, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(p.Err, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(p.Err, "  %d. %s\n", i+1, s)
		}
	}

	return fmt.Errorf("%s", title)
}
