package connect

import (
	"sort"
	"strings"

	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Factory creates adapters per wallet kind. The connect service depends on
// this interface so tests can substitute scripted adapters.
type Factory interface {
	// New creates an adapter for the given kind.
	New(kind wallet.Kind) (Adapter, error)
}

// Creator is a constructor for one kind's adapter. Registering closures
// keeps transport packages out of the service's import graph.
type Creator func(kind wallet.Kind) (Adapter, error)

// ConfigurableFactory is a factory that can have adapter creators
// registered. Register everything before handing it to the service;
// registration is not synchronized.
type ConfigurableFactory struct {
	creators map[wallet.Kind]Creator
}

// NewConfigurableFactory creates an empty factory.
func NewConfigurableFactory() *ConfigurableFactory {
	return &ConfigurableFactory{
		creators: make(map[wallet.Kind]Creator),
	}
}

// Register adds an adapter creator for the given kind.
func (f *ConfigurableFactory) Register(kind wallet.Kind, creator Creator) {
	f.creators[kind] = creator
}

// New creates an adapter using the registered creator.
func (f *ConfigurableFactory) New(kind wallet.Kind) (Adapter, error) {
	creator, ok := f.creators[kind]
	if !ok {
		err := moorerr.WithDetails(moorerr.ErrUnknownKind, map[string]string{
			"kind": kind.String(),
		})
		return nil, moorerr.WithSuggestion(err, "supported kinds: "+joinKinds(f.Supported()))
	}
	return creator(kind)
}

// IsSupported returns true if the kind has a registered creator.
func (f *ConfigurableFactory) IsSupported(kind wallet.Kind) bool {
	_, ok := f.creators[kind]
	return ok
}

// Supported returns all registered kinds, sorted for stable output.
func (f *ConfigurableFactory) Supported() []wallet.Kind {
	kinds := make([]wallet.Kind, 0, len(f.creators))
	for kind := range f.creators {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func joinKinds(kinds []wallet.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// Compile-time interface check
var _ Factory = (*ConfigurableFactory)(nil)
