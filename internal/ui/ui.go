// Package ui handles console output for pipeline runs: glyph-prefixed
// progress lines matching the operational log conventions and the
// end-of-run step summary table.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

// Step glyphs shared with the scheduler's log scrapers; changing them
// breaks downstream alerting filters.
const (
	GlyphStart   = "🚀"
	GlyphSuccess = "✅"
	GlyphWarning = "⚠️"
	GlyphError   = "❌"
	GlyphTrophy  = "🏆"
	GlyphSearch  = "🔍"
	GlyphCycle   = "🔄"
)

var (
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess = colorFunc(ansi.Green)
	ColorError   = colorFunc(ansi.Red)
	ColorWarning = colorFunc(ansi.Yellow)
	ColorInfo    = colorFunc(ansi.Cyan)
	ColorBold    = colorFunc("default+b")
	ColorDim     = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// UI writes run progress to the console.
type UI struct {
	Verbose bool
	Quiet   bool
	out     io.Writer
}

// NewUI creates a new UI instance writing to stdout
func NewUI(verbose, quiet bool) *UI {
	return NewUIWithWriter(verbose, quiet, os.Stdout)
}

// NewUIWithWriter creates a UI instance writing to the given writer
func NewUIWithWriter(verbose, quiet bool, out io.Writer) *UI {
	return &UI{Verbose: verbose, Quiet: quiet, out: out}
}

// Printf prints formatted output if not in quiet mode
func (u *UI) Printf(format string, args ...interface{}) {
	if !u.Quiet {
		fmt.Fprintf(u.out, format, args...)
	}
}

// VerbosePrintf prints formatted output only in verbose mode
func (u *UI) VerbosePrintf(format string, args ...interface{}) {
	if u.Verbose && !u.Quiet {
		fmt.Fprintf(u.out, format, args...)
	}
}

// Start announces the beginning of a pipeline phase.
func (u *UI) Start(format string, args ...interface{}) {
	u.Printf("%s %s\n", GlyphStart, fmt.Sprintf(format, args...))
}

// Step announces one step inside a phase.
func (u *UI) Step(format string, args ...interface{}) {
	u.Printf("%s %s\n", GlyphCycle, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (u *UI) Success(format string, args ...interface{}) {
	u.Printf("%s %s\n", GlyphSuccess, ColorSuccess(fmt.Sprintf(format, args...)))
}

// Warning prints a warning message.
func (u *UI) Warning(format string, args ...interface{}) {
	u.Printf("%s %s\n", GlyphWarning, ColorWarning(fmt.Sprintf(format, args...)))
}

// Error prints an error message. Errors print even in quiet mode.
func (u *UI) Error(format string, args ...interface{}) {
	fmt.Fprintf(u.out, "%s %s\n", GlyphError, ColorError(fmt.Sprintf(format, args...)))
}

// Finish announces the completion of a whole run.
func (u *UI) Finish(format string, args ...interface{}) {
	u.Printf("%s %s\n", GlyphTrophy, ColorBold(fmt.Sprintf(format, args...)))
}
