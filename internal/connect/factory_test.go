package connect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/connect"
	"github.com/akodra/mooring/internal/cryptobox"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

func TestConfigurableFactoryRegister(t *testing.T) {
	t.Parallel()

	log := testLogger()
	oracle := cryptobox.NewPool(0, log)
	t.Cleanup(func() { _ = oracle.Close() })

	factory := connect.NewConfigurableFactory()

	called := false
	factory.Register(wallet.KindReown, func(kind wallet.Kind) (connect.Adapter, error) {
		called = true
		return connect.NewLoopback(kind, connect.LoopbackConfig{Backoff: fastBackoff()}, oracle, log)
	})

	adapter, err := factory.New(wallet.KindReown)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	assert.True(t, called, "creator was not called")
	assert.Equal(t, wallet.KindReown, adapter.Kind())
}

func TestConfigurableFactoryUnregisteredKind(t *testing.T) {
	t.Parallel()

	factory := connect.NewConfigurableFactory()
	factory.Register(wallet.KindReown, func(wallet.Kind) (connect.Adapter, error) {
		return nil, nil
	})

	_, err := factory.New(wallet.KindPhantom)
	require.ErrorIs(t, err, moorerr.ErrUnknownKind)
	assert.Contains(t, err.Error(), "reown", "error should name the supported kinds")
}

func TestConfigurableFactoryIsSupported(t *testing.T) {
	t.Parallel()

	factory := connect.NewConfigurableFactory()
	factory.Register(wallet.KindPhantom, func(wallet.Kind) (connect.Adapter, error) {
		return nil, nil
	})

	assert.True(t, factory.IsSupported(wallet.KindPhantom))
	assert.False(t, factory.IsSupported(wallet.KindReown))
}

func TestConfigurableFactorySupported(t *testing.T) {
	t.Parallel()

	factory := connect.NewConfigurableFactory()
	factory.Register(wallet.KindReown, func(wallet.Kind) (connect.Adapter, error) { return nil, nil })
	factory.Register(wallet.KindPhantom, func(wallet.Kind) (connect.Adapter, error) { return nil, nil })

	assert.Equal(t, []wallet.Kind{wallet.KindPhantom, wallet.KindReown}, factory.Supported())
}
