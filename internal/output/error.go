package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// ErrorOutput wraps a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the renderable fields of a structured error.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exitCode"`
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	if format == FormatJSON {
		return formatErrorJSON(w, err)
	}
	return formatErrorText(w, err)
}

// formatErrorJSON outputs error in JSON format.
func formatErrorJSON(w io.Writer, err error) error {
	detail := ErrorDetail{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		ExitCode: moorerr.ExitGeneral,
	}

	var me *moorerr.MooringError
	if errors.As(err, &me) {
		detail = ErrorDetail{
			Code:       me.Code,
			Message:    me.Message,
			Details:    me.Details,
			Suggestion: me.Suggestion,
			ExitCode:   me.ExitCode,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ErrorOutput{Error: detail})
}

// formatErrorText outputs error in text format. Detail keys are sorted
// so the same error always renders the same way.
func formatErrorText(w io.Writer, err error) error {
	var sb strings.Builder

	var me *moorerr.MooringError
	if errors.As(err, &me) {
		sb.WriteString("Error: " + me.Message + "\n")

		if len(me.Details) > 0 {
			keys := make([]string, 0, len(me.Details))
			for k := range me.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			sb.WriteString("\nDetails:\n")
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, me.Details[k]))
			}
		}

		if me.Suggestion != "" {
			sb.WriteString("\nSuggestion: " + me.Suggestion + "\n")
		}
	} else {
		sb.WriteString("Error: " + err.Error() + "\n")
	}

	_, writeErr := io.WriteString(w, sb.String())
	return writeErr
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
