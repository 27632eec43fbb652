package cli

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Prompt functions commands call; tests swap these for scripted inputs.
//
//nolint:gochecknoglobals // Swapped in tests to avoid terminal interaction
var (
	promptPassphraseFn = promptPassphrase
	promptConfirmFn    = promptConfirmation
	storePassphraseFn  = promptStorePassphrase
)

// promptPassword prompts for a secret with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(syscall.Stdin)
	outln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}

	return password, nil
}

// promptPassphrase prompts for a new store passphrase with confirmation.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassphrase() ([]byte, error) {
	passphrase, err := promptPassword("Enter store passphrase: ")
	if err != nil {
		return nil, err
	}

	if len(passphrase) < 8 {
		zeroBytes(passphrase)
		return nil, moorerr.WithSuggestion(
			moorerr.ErrInvalidInput,
			"passphrase must be at least 8 characters",
		)
	}

	confirm, err := promptPassword("Confirm passphrase: ")
	if err != nil {
		zeroBytes(passphrase)
		return nil, err
	}
	defer zeroBytes(confirm)

	if string(passphrase) != string(confirm) {
		zeroBytes(passphrase)
		return nil, moorerr.WithSuggestion(
			moorerr.ErrInvalidInput,
			"passphrases do not match",
		)
	}

	return passphrase, nil
}

// promptStorePassphrase is the keyring fallback handed to the secure store.
// It only fires when the OS keyring is unavailable and encryption is on.
func promptStorePassphrase() ([]byte, error) {
	outln(os.Stderr, "The OS keyring is unavailable; the store key will be derived from a passphrase.")
	return promptPassphraseFn()
}

// promptConfirmation asks the user to confirm a destructive operation.
func promptConfirmation(question string) bool {
	out(os.Stderr, "%s [y/N]: ", question)

	var response string
	_, err := fmt.Scanln(&response)
	if err != nil {
		return false
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// zeroBytes wipes secret material once it is no longer needed.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
