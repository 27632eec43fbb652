package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeJSON renders v as an indented document with a trailing newline,
// matching the formatter's JSON layout.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
