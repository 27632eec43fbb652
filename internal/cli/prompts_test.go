package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroBytes(t *testing.T) {
	t.Parallel()

	b := []byte("super secret")
	zeroBytes(b)
	assert.Equal(t, make([]byte, len("super secret")), b)

	assert.NotPanics(t, func() { zeroBytes(nil) })
}

func TestPromptStorePassphrase_DelegatesToPrompt(t *testing.T) {
	withMockPrompts(t, []byte("hunter2!"), false)

	got, err := promptStorePassphrase()
	require.NoError(t, err)
	assert.Equal(t, "hunter2!", string(got))

	// Each call hands out a fresh copy, so wiping one answer cannot
	// corrupt the next.
	zeroBytes(got)
	again, err := promptStorePassphrase()
	require.NoError(t, err)
	assert.Equal(t, "hunter2!", string(again))
}
