package output

import (
	"strings"

	"github.com/fatih/color"
)

// ColorMode controls when ANSI color is applied to text output.
type ColorMode string

// Color modes, mirroring the output.color config setting.
const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode parses a color mode string, defaulting to auto.
func ParseColorMode(s string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

// ApplyColorMode sets the process-wide color behavior. Auto keeps the
// color package's own detection (TTY check plus NO_COLOR).
func ApplyColorMode(mode ColorMode) {
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
	}
}

// PaintState colors a session state label for detail views: active
// green, stale yellow, expired red. Inactive and unknown labels pass
// through unpainted. Table cells stay unpainted because escape codes
// break column alignment.
func PaintState(state string) string {
	switch state {
	case "active":
		return color.GreenString(state)
	case "stale":
		return color.YellowString(state)
	case "expired":
		return color.RedString(state)
	default:
		return state
	}
}
