package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

func TestKind_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind  wallet.Kind
		valid bool
	}{
		{wallet.KindReown, true},
		{wallet.KindPhantom, true},
		{wallet.Kind("metamask"), false},
		{wallet.Kind(""), false},
		{wallet.Kind("REOWN"), false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.kind), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.valid, tc.kind.IsValid())
		})
	}
}

func TestKind_Family(t *testing.T) {
	t.Parallel()

	assert.Equal(t, wallet.FamilyRelay, wallet.KindReown.Family())
	assert.Equal(t, wallet.FamilyDirectKey, wallet.KindPhantom.Family())
	assert.Empty(t, wallet.Kind("bogus").Family())
}

func TestKind_UsesChainID(t *testing.T) {
	t.Parallel()

	assert.True(t, wallet.KindReown.UsesChainID())
	assert.False(t, wallet.KindPhantom.UsesChainID())
	assert.False(t, wallet.Kind("bogus").UsesChainID())
}

func TestKind_CallbackScheme(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mooring-wc", wallet.KindReown.CallbackScheme())
	assert.Equal(t, "mooring-phantom", wallet.KindPhantom.CallbackScheme())
	assert.Empty(t, wallet.Kind("bogus").CallbackScheme())
}

func TestKinds(t *testing.T) {
	t.Parallel()

	kinds := wallet.Kinds()
	require.Len(t, kinds, 2)
	for _, k := range kinds {
		assert.True(t, k.IsValid())
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	t.Run("exact", func(t *testing.T) {
		t.Parallel()
		k, err := wallet.ParseKind("reown")
		require.NoError(t, err)
		assert.Equal(t, wallet.KindReown, k)
	})

	t.Run("case and whitespace folded", func(t *testing.T) {
		t.Parallel()
		k, err := wallet.ParseKind("  Phantom ")
		require.NoError(t, err)
		assert.Equal(t, wallet.KindPhantom, k)
	})

	t.Run("typo gets suggestion", func(t *testing.T) {
		t.Parallel()
		_, err := wallet.ParseKind("phantm")
		require.Error(t, err)
		require.ErrorIs(t, err, moorerr.ErrUnknownKind)

		var me *moorerr.MooringError
		require.ErrorAs(t, err, &me)
		assert.Contains(t, me.Suggestion, "phantom")
	})

	t.Run("distant string gets no suggestion", func(t *testing.T) {
		t.Parallel()
		_, err := wallet.ParseKind("ledger-nano-x")
		require.Error(t, err)

		var me *moorerr.MooringError
		require.ErrorAs(t, err, &me)
		assert.Empty(t, me.Suggestion)
	})
}
