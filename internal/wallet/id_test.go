package wallet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

const (
	// EIP-55 checksum form and its lowercase equivalent.
	evmChecksum = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	evmLower    = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

	// Wrapped SOL mint, a well-known 32-byte base58 account.
	solAddress = "So11111111111111111111111111111111111111112"
)

func TestDeriveID(t *testing.T) {
	t.Parallel()

	t.Run("reown lowercases hex address", func(t *testing.T) {
		t.Parallel()
		id, err := wallet.DeriveID(wallet.KindReown, evmChecksum)
		require.NoError(t, err)
		assert.Equal(t, "reown_"+evmLower, id)
	})

	t.Run("same address different case same id", func(t *testing.T) {
		t.Parallel()
		a, err := wallet.DeriveID(wallet.KindReown, evmChecksum)
		require.NoError(t, err)
		b, err := wallet.DeriveID(wallet.KindReown, strings.ToUpper(evmLower[2:]))
		if err == nil {
			assert.Equal(t, a, b)
		} else {
			// Addresses without the 0x prefix are rejected outright.
			assert.ErrorIs(t, err, moorerr.ErrInvalidAddress)
		}
	})

	t.Run("phantom lowercases base58 text", func(t *testing.T) {
		t.Parallel()
		id, err := wallet.DeriveID(wallet.KindPhantom, solAddress)
		require.NoError(t, err)
		assert.Equal(t, "phantom_"+strings.ToLower(solAddress), id)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		t.Parallel()
		id, err := wallet.DeriveID(wallet.KindReown, "  "+evmLower+"  ")
		require.NoError(t, err)
		assert.Equal(t, "reown_"+evmLower, id)
	})

	t.Run("invalid hex rejected", func(t *testing.T) {
		t.Parallel()
		_, err := wallet.DeriveID(wallet.KindReown, "0x1234")
		require.ErrorIs(t, err, moorerr.ErrInvalidAddress)
	})

	t.Run("invalid base58 rejected", func(t *testing.T) {
		t.Parallel()
		_, err := wallet.DeriveID(wallet.KindPhantom, "0OIl-not-base58")
		require.ErrorIs(t, err, moorerr.ErrInvalidAddress)
	})

	t.Run("short base58 rejected", func(t *testing.T) {
		t.Parallel()
		_, err := wallet.DeriveID(wallet.KindPhantom, "abc")
		require.ErrorIs(t, err, moorerr.ErrInvalidAddress)
	})

	t.Run("empty address rejected", func(t *testing.T) {
		t.Parallel()
		_, err := wallet.DeriveID(wallet.KindPhantom, "")
		require.ErrorIs(t, err, moorerr.ErrInvalidAddress)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		t.Parallel()
		_, err := wallet.DeriveID(wallet.Kind("bogus"), evmLower)
		require.ErrorIs(t, err, moorerr.ErrUnknownKind)
	})
}

func TestSplitID(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		id, err := wallet.DeriveID(wallet.KindReown, evmChecksum)
		require.NoError(t, err)

		kind, addr, ok := wallet.SplitID(id)
		require.True(t, ok)
		assert.Equal(t, wallet.KindReown, kind)
		assert.Equal(t, evmLower, addr)
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		_, _, ok := wallet.SplitID("metamask_0xabc")
		assert.False(t, ok)
	})

	t.Run("no separator", func(t *testing.T) {
		t.Parallel()
		_, _, ok := wallet.SplitID("reown")
		assert.False(t, ok)
	})

	t.Run("empty address part", func(t *testing.T) {
		t.Parallel()
		_, _, ok := wallet.SplitID("reown_")
		assert.False(t, ok)
	})
}

func TestDisplayAddress(t *testing.T) {
	t.Parallel()

	t.Run("evm address checksummed", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, evmChecksum, wallet.DisplayAddress(wallet.KindReown, evmLower))
	})

	t.Run("solana address unchanged", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, solAddress, wallet.DisplayAddress(wallet.KindPhantom, solAddress))
	})

	t.Run("non-hex passthrough", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "not-an-address", wallet.DisplayAddress(wallet.KindReown, "not-an-address"))
	})
}

func FuzzSplitID(f *testing.F) {
	f.Add("reown_" + evmLower)
	f.Add("phantom_" + strings.ToLower(solAddress))
	f.Add("reown_")
	f.Add("_")
	f.Add("")
	f.Add("reown__double")

	f.Fuzz(func(t *testing.T, id string) {
		kind, addr, ok := wallet.SplitID(id)
		if !ok {
			return
		}
		// Any accepted id must reassemble into itself.
		assert.True(t, kind.IsValid())
		assert.Equal(t, id, kind.String()+"_"+addr)
	})
}
