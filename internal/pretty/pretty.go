// Package pretty renders conversation messages for terminals, one titled
// block per message.
package pretty

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/model"
)

// Width is the width of message headers.
const Width = 80

// Options configures a Printer.
type Options struct {
	// Partials prints streamed chunks inline as they arrive.
	Partials bool
	// MaxResultChars truncates tool results, 0 prints them whole.
	MaxResultChars int
}

// Styles holds the lipgloss styles per role.
type Styles struct {
	Header lipgloss.Style
	Label  lipgloss.Style
	Tool   lipgloss.Style
	Error  lipgloss.Style
	Dim    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		Label:  r.NewStyle().Bold(true),
		Tool:   r.NewStyle().Foreground(lipgloss.Color("#61afef")),
		Error:  r.NewStyle().Foreground(lipgloss.Color("#ff5f5f")),
		Dim:    r.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	}
}

// Printer writes messages to w. It is safe for concurrent use.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	opts      Options
	styles    Styles
	streaming bool
}

// New returns a Printer. Colors are enabled only when w is a terminal.
func New(w io.Writer, optFns ...func(o *Options)) *Printer {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Printer{w: w, opts: opts, styles: newStyles(lipgloss.NewRenderer(w))}
}

// Event prints a loop event. Partial chunks are printed only when enabled.
func (p *Printer) Event(ev core.Event) {
	if ev.Content == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Partial {
		if p.opts.Partials {
			if !p.streaming {
				fmt.Fprintln(p.w, p.header("Ai Message"))
				p.streaming = true
			}
			fmt.Fprint(p.w, ev.Content.Text())
		}
		return
	}
	if p.streaming {
		p.streaming = false
		fmt.Fprintln(p.w)
		if ev.IsFinalResponse() {
			// Text already printed chunk by chunk.
			return
		}
	}
	p.message(*ev.Content)
}

// Message prints a single message block.
func (p *Printer) Message(c core.Content) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message(c)
}

func (p *Printer) message(c core.Content) {
	switch c.Role {
	case core.RoleUser:
		fmt.Fprintln(p.w, p.header("Human Message"))
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, c.Text())
	case core.RoleSystem:
		fmt.Fprintln(p.w, p.header("System Message"))
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, c.Text())
	case core.RoleTool:
		for _, fr := range c.FunctionResponses() {
			fmt.Fprintln(p.w, p.header("Tool Message"))
			fmt.Fprintf(p.w, "%s %s\n\n", p.styles.Label.Render("Name:"), fr.Name)
			text := p.truncate(model.ResultText(fr))
			if fr.IsError() {
				fmt.Fprintln(p.w, p.styles.Error.Render(text))
			} else {
				fmt.Fprintln(p.w, text)
			}
		}
	default:
		fmt.Fprintln(p.w, p.header("Ai Message"))
		if text := c.Text(); text != "" {
			fmt.Fprintln(p.w)
			fmt.Fprintln(p.w, text)
		}
		if calls := c.FunctionCalls(); len(calls) > 0 {
			fmt.Fprintln(p.w, p.styles.Label.Render("Tool Calls:"))
			for _, fc := range calls {
				fmt.Fprintf(p.w, "  %s (%s)\n", p.styles.Tool.Render(fc.Name), fc.ID)
				fmt.Fprintf(p.w, " %s %s\n", p.styles.Dim.Render("Call ID:"), fc.ID)
				fmt.Fprintln(p.w, "  Args:")
				for _, line := range argLines(fc.Arguments) {
					fmt.Fprintf(p.w, "    %s\n", line)
				}
			}
		}
	}
}

// Final prints the answer line used by the one-shot commands.
func (p *Printer) Final(c core.Content) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Label.Render("Final Answer:"), c.Text())
}

// Executed prints a one-line summary of a tool result.
func (p *Printer) Executed(fr core.FunctionResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "Executed tool %s → %s\n", p.styles.Tool.Render(fr.Name), p.truncate(model.ResultText(fr)))
}

func (p *Printer) header(title string) string {
	title = " " + title + " "
	pad := Width - len(title)
	if pad < 2 {
		pad = 2
	}
	left := pad / 2
	line := strings.Repeat("=", left) + title + strings.Repeat("=", pad-left)
	return p.styles.Header.Render(line)
}

func (p *Printer) truncate(s string) string {
	if p.opts.MaxResultChars <= 0 || len(s) <= p.opts.MaxResultChars {
		return s
	}
	return s[:p.opts.MaxResultChars] + "…"
}

// argLines renders a JSON arguments object as sorted "key: value" lines.
func argLines(raw string) []string {
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		if raw == "" {
			return nil
		}
		return []string{raw}
	}
	var lines []string
	parsed.ForEach(func(k, v gjson.Result) bool {
		lines = append(lines, fmt.Sprintf("%s: %s", k.String(), v.String()))
		return true
	})
	sort.Strings(lines)
	return lines
}
