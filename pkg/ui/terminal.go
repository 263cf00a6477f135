package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"lofterscraper/internal/downloader"
	"lofterscraper/pkg/crawler"
)

const (
	progressBar   = "█"
	progressEmpty = "░"
	barWidth      = 20
)

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF3131")
	dim     = lipgloss.Color("#808080")

	labelStyle     = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(yellow)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(dim)
)

// Printer writes human-readable crawl progress. Styling is applied only when
// the output is a terminal; quiet mode suppresses everything but errors and
// permanent failures.
type Printer struct {
	out   io.Writer
	color bool
	quiet bool
}

// NewPrinter creates a Printer for out
func NewPrinter(out io.Writer, quiet bool) *Printer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{out: out, color: color, quiet: quiet}
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Highlight prints a highlighted heading
func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.style(highlightStyle, msg))
}

// Info prints a label and value
func (p *Printer) Info(label, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.style(labelStyle, label), p.style(valueStyle, value))
}

// Success prints a success message
func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.style(successStyle, msg))
}

// Warning prints a warning message
func (p *Printer) Warning(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.style(warningStyle, msg))
}

// Error prints an error message, even in quiet mode
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(p.out, p.style(errorStyle, msg))
}

// Stage prints a finished pipeline stage
func (p *Printer) Stage(s crawler.StageReport) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s %s\n",
		p.style(labelStyle, fmt.Sprintf("[%-8s]", strings.ToUpper(s.Name))),
		p.style(valueStyle, fmt.Sprintf("%d", s.Count)),
		p.style(dimStyle, s.Elapsed.Round(time.Millisecond).String()))
}

// Round prints a finished download round with a success bar
func (p *Printer) Round(r downloader.RoundReport) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s [%s] %d/%d ok, %d failing %s\n",
		p.style(labelStyle, fmt.Sprintf("round %d", r.Round)),
		p.style(successStyle, Bar(r.Succeeded, r.Attempted, barWidth)),
		r.Succeeded, r.Attempted, r.Failed,
		p.style(dimStyle, fmt.Sprintf("(timeout %s, %s)", r.Timeout, r.Elapsed.Round(time.Millisecond))))
}

// Summary prints the outcome of a run
func (p *Printer) Summary(r *crawler.Report) {
	if r.Domain != "" {
		p.Info("Domain", r.Domain)
	}
	if r.EndPage > 0 {
		p.Info("Pages", fmt.Sprintf("%d-%d (%d probes)", r.StartPage, r.EndPage, r.Probes))
	}
	if r.Posts > 0 {
		p.Info("Posts", fmt.Sprintf("%d", r.Posts))
	}
	p.Info("Images", fmt.Sprintf("%d", r.Images))
	p.Info("Directory", r.Directory)

	if r.Download != nil {
		p.Info("Downloaded", fmt.Sprintf("%d (%d already present)", r.Download.Succeeded, r.Download.Skipped))
		p.PermanentFailures(r.Download.Failed, r.FailedListPath)
		if len(r.Download.Failed) == 0 {
			p.Success("All images downloaded")
		}
	}
}

// PermanentFailures lists links that failed every round, even in quiet mode
func (p *Printer) PermanentFailures(links []string, savedTo string) {
	if len(links) == 0 {
		return
	}
	fmt.Fprintln(p.out, p.style(errorStyle, fmt.Sprintf("%d links permanently unavailable:", len(links))))
	for _, link := range links {
		fmt.Fprintln(p.out, "  "+link)
	}
	if savedTo != "" {
		fmt.Fprintf(p.out, "%s %s\n", p.style(dimStyle, "saved to"), savedTo)
	}
}

// Bar renders done/total as a fixed-width bar
func Bar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(progressBar, filled) + strings.Repeat(progressEmpty, width-filled)
}
