// Package printer formats CLI output: pretty or plain JSON for results and
// colored status lines for interactive feedback.
package printer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	okGlyph   = color.New(color.FgGreen).Sprint("✓")
	failGlyph = color.New(color.FgRed).Sprint("✗")
)

// JSON writes v as JSON. Pretty output is indented with two spaces; plain
// output is one compact line. Both end with a newline.
func JSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Raw rewrites already-encoded JSON in the requested style.
func Raw(w io.Writer, raw json.RawMessage, pretty bool) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("reformat output: %w", err)
	}
	return JSON(w, v, pretty)
}

// Line writes raw as a single NDJSON line without reformatting, for piping
// export output onward.
func Line(w io.Writer, raw json.RawMessage) error {
	_, err := fmt.Fprintf(w, "%s\n", raw)
	return err
}

// Successf prints a green check followed by the formatted message.
func Successf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okGlyph, fmt.Sprintf(format, args...))
}

// Failf prints a red cross followed by the formatted message.
func Failf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", failGlyph, fmt.Sprintf(format, args...))
}
