package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
	"github.com/wippyai/stable-abi/loader"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))
)

type renderer struct {
	w     io.Writer
	color bool
}

func newRenderer(w io.Writer, color bool) *renderer {
	return &renderer{w: w, color: color}
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *renderer) title(text string) {
	if r.color {
		fmt.Fprintln(r.w, titleStyle.Render(text))
		return
	}
	fmt.Fprintln(r.w, text)
}

func (r *renderer) loaded(l *loader.Loaded) {
	r.title("module " + l.Module.Name())
	for _, it := range l.Accepted {
		line := "  ok    " + it.Key.String()
		if it.Host != it.Key {
			line += r.style(dimStyle, " (host "+it.Host.String()+")")
		}
		if it.Report != nil && it.Report.FastPath {
			line += r.style(dimStyle, " [fingerprint]")
		}
		fmt.Fprintln(r.w, r.style(okStyle, line))
	}
	for _, d := range l.Deviations {
		fmt.Fprintln(r.w, r.style(warnStyle, "  warn  "+d.String()))
	}
	for _, rej := range l.Rejected {
		fmt.Fprintln(r.w, r.style(errorStyle, "  FAIL  "+rej.Key.String()))
		fmt.Fprintln(r.w, "        "+describe(rej.Err))
	}
	for _, k := range l.Skipped {
		fmt.Fprintln(r.w, r.style(dimStyle, "  skip  "+k.String()))
	}
	fmt.Fprintf(r.w, "%d accepted, %d rejected, %d skipped\n",
		len(l.Accepted), len(l.Rejected), len(l.Skipped))
}

func (r *renderer) failure(module string, err error) {
	r.title("module " + module)
	for _, e := range loader.Errors(err) {
		fmt.Fprintln(r.w, r.style(errorStyle, "  FAIL  ")+describe(e))
	}
}

// describe renders an incompatibility as path, reason code and text.
func describe(err error) string {
	var item *errors.ItemError
	if stderrors.As(err, &item) {
		err = item.Err
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err.Error()
	}
	var b strings.Builder
	if len(e.Path) > 0 {
		b.WriteString(strings.Join(e.Path, "."))
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Expected != "" || e.Found != "" {
		fmt.Fprintf(&b, " (expected %s, found %s)", e.Expected, e.Found)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (r *renderer) dump(mod loader.Module) {
	r.title("module " + mod.Name())
	img := mod.Image()
	for _, k := range mod.Exports() {
		fmt.Fprintln(r.w, r.style(typeStyle, k.String()))
		for _, line := range strings.Split(strings.TrimRight(layout.Format(img, k), "\n"), "\n") {
			fmt.Fprintln(r.w, "  "+line)
		}
	}
}
