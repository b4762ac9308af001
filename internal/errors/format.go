package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// style is an ANSI SGR sequence.
type style string

const (
	styleError  style = "\033[1;31m"
	styleCode   style = "\033[1;37m"
	styleLabel  style = "\033[36m"
	styleMuted  style = "\033[90m"
	styleNormal style = "\033[0m"
)

var plain atomic.Bool

// DisableColors turns off ANSI styling in formatted errors.
func DisableColors() { plain.Store(true) }

// EnableColors turns ANSI styling back on.
func EnableColors() { plain.Store(false) }

func (s style) paint(text string) string {
	if plain.Load() {
		return text
	}
	return string(s) + text + string(styleNormal)
}

// textWidth is the column detail text is wrapped at.
const textWidth = 70

// Format renders the error for a terminal: a headline, then the detail,
// cause, hint and example blocks that are set.
func (e *Error) Format() string {
	var b strings.Builder

	head := styleError.paint("ERROR:")
	if e.Code != "" {
		head = styleError.paint("ERROR") + " " + styleCode.paint(e.Code+":")
	}
	fmt.Fprintf(&b, "\n%s %s\n\n", head, e.Message)

	block := func(lines ...string) {
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
		b.WriteString("\n")
	}

	if e.Detail != "" {
		block(wrapText(e.Detail, textWidth)...)
	}
	if e.Wrapped != nil {
		block(styleMuted.paint("Cause: ") + e.Wrapped.Error())
	}
	if e.Suggestion != "" {
		block(styleLabel.paint("Hint: ") + e.Suggestion)
	}
	if e.Example != "" {
		lines := []string{styleLabel.paint("Example:")}
		for _, l := range strings.Split(e.Example, "\n") {
			lines = append(lines, "  "+l)
		}
		block(lines...)
	}
	return b.String()
}

// FormatCompact renders "CODE: message", or the message alone.
func (e *Error) FormatCompact() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// FormatJSON renders the error as one JSON object for machine consumers.
func (e *Error) FormatJSON() string {
	out := struct {
		Code       string   `json:"code,omitempty"`
		Category   Category `json:"category"`
		Message    string   `json:"message"`
		Detail     string   `json:"detail,omitempty"`
		Cause      string   `json:"cause,omitempty"`
		Suggestion string   `json:"suggestion,omitempty"`
	}{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// wrapText splits text into lines of at most width bytes, breaking between
// words. A single word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := []string{words[0]}
	for _, w := range words[1:] {
		last := &lines[len(lines)-1]
		if len(*last)+1+len(w) > width {
			lines = append(lines, w)
			continue
		}
		*last += " " + w
	}
	return lines
}

// Print writes err to w. Coded errors anywhere in the chain get the full
// terminal format.
func Print(w io.Writer, err error) {
	var coded *Error
	if errors.As(err, &coded) {
		io.WriteString(w, coded.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", styleError.paint("ERROR:"), err.Error())
}
