package output

import (
	"io"
	"os"

	"github.com/mdp/qrterminal/v3"
	"golang.org/x/term"
	"rsc.io/qr"
)

// CanRenderQR reports whether w is a terminal that can display a QR
// code.
func CanRenderQR(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: Fd fits in int on supported platforms
}

// RenderPairingQR draws a scannable QR code for a pairing URI. Off a
// terminal it produces no output and no error; callers always print the
// raw URI alongside, so piped output keeps the payload.
//
// Pairing URIs run long, so low error correction and half-height blocks
// keep the module count small enough to scan from a terminal window.
func RenderPairingQR(w io.Writer, uri string) error {
	if !CanRenderQR(w) {
		return nil
	}

	qrterminal.GenerateWithConfig(uri, qrterminal.Config{
		Level:          qr.L,
		Writer:         w,
		QuietZone:      1,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return nil
}
