// Package output renders command results for the mooring CLI: text or
// JSON formatting, aligned tables, terminal QR codes for pairing URIs,
// and structured error display.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how command results are rendered.
type Format string

// Recognized render formats. FormatAuto resolves to text on a terminal
// and JSON everywhere else.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatAuto Format = "auto"
)

// Formatter writes command results in a fixed format. Construct with
// NewFormatter; the zero value has no writer.
type Formatter struct {
	format Format
	writer io.Writer
}

// NewFormatter returns a formatter rendering in the given format to w.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{
		format: format,
		writer: w,
	}
}

// Format reports the format this formatter renders.
func (f *Formatter) Format() Format {
	return f.format
}

// Writer exposes the destination for callers that stream output around
// the formatter, such as the QR renderer.
func (f *Formatter) Writer() io.Writer {
	return f.writer
}

// IsJSON reports whether results render as JSON.
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// Print renders v in the active format. JSON mode emits an indented
// document; text mode prints strings and Stringers verbatim and falls
// back to fmt formatting for everything else.
func (f *Formatter) Print(v any) error {
	if f.IsJSON() {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		_, err = f.writer.Write(data)
		return err
	}

	switch val := v.(type) {
	case string:
		_, err := fmt.Fprintln(f.writer, val)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.writer, val.String())
		return err
	default:
		_, err := fmt.Fprintf(f.writer, "%v\n", val)
		return err
	}
}

// Printf writes printf-style text regardless of the active format.
func (f *Formatter) Printf(format string, args ...any) error {
	_, err := fmt.Fprintf(f.writer, format, args...)
	return err
}

// Println writes a plain line regardless of the active format.
func (f *Formatter) Println(args ...any) error {
	_, err := fmt.Fprintln(f.writer, args...)
	return err
}

// DetectFormat resolves FormatAuto against the writer: a terminal gets
// text, a pipe or file gets JSON. An explicit format passes through
// untouched.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto {
		return explicit
	}

	file, ok := w.(*os.File)
	if !ok {
		return FormatJSON
	}
	if term.IsTerminal(int(file.Fd())) { //nolint:gosec // G115: Fd fits in int on supported platforms
		return FormatText
	}
	return FormatJSON
}

// ParseFormat maps a user-supplied format name to a Format, treating
// anything unrecognized as FormatAuto.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(FormatJSON):
		return FormatJSON
	case string(FormatText):
		return FormatText
	default:
		return FormatAuto
	}
}
