// Package cli provides terminal output helpers: colored status lines, a
// spinner for pending network calls, and column-aligned tables.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// Printer writes user-facing output. Color is applied only when the target
// is a terminal.
type Printer struct {
	out      io.Writer
	colorize bool
}

// NewPrinter creates a Printer for w. Color is enabled when w is os.Stdout
// on a terminal.
func NewPrinter(w io.Writer) *Printer {
	colorize := false
	if w == os.Stdout {
		colorize = isTerminal()
	}
	return &Printer{out: w, colorize: colorize}
}

// Successf prints a check-marked line.
func (p *Printer) Successf(format string, args ...any) {
	p.statusf(ColorGreen, "✓", format, args...)
}

// Errorf prints a cross-marked line.
func (p *Printer) Errorf(format string, args ...any) {
	p.statusf(ColorRed, "✗", format, args...)
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	p.statusf(ColorYellow, "⚠", format, args...)
}

// Printf prints a plain line.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) statusf(color, mark, format string, args ...any) {
	if p.colorize {
		mark = color + mark + ColorReset
	}
	fmt.Fprintf(p.out, "%s %s\n", mark, fmt.Sprintf(format, args...))
}

// Table prints rows with aligned columns. The first row is the header,
// rendered bold on terminals.
func (p *Printer) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	tw := tabwriter.NewWriter(p.out, 2, 4, 2, ' ', 0)
	for i, row := range rows {
		line := strings.Join(row, "\t")
		if i == 0 && p.colorize {
			line = ColorBold + line + ColorReset
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

// Spinner shows an animated indicator while a network call is pending.
type Spinner struct {
	frames   []string
	prefix   string
	writer   io.Writer
	colorize bool

	mu      sync.Mutex
	current int
	active  bool
	done    chan struct{}
}

// NewSpinner creates a spinner writing to stdout.
func NewSpinner(prefix string) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix:   prefix,
		writer:   os.Stdout,
		colorize: isTerminal(),
	}
}

// Start begins the animation. No-op when stdout is not a terminal, so piped
// output stays clean.
func (s *Spinner) Start() {
	if !s.colorize {
		return
	}
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if !s.active {
					s.mu.Unlock()
					return
				}
				s.render()
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			case <-done:
				return
			}
		}
	}()
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", 60)+"\r")
}

func (s *Spinner) render() {
	frame := s.frames[s.current]
	if s.colorize {
		frame = ColorCyan + frame + ColorReset
	}
	fmt.Fprintf(s.writer, "\r%s %s", frame, s.prefix)
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
