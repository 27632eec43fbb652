// Package wallet provides connection kind definitions and wallet identity helpers.
package wallet

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Kind represents a supported wallet provider.
type Kind string

// Supported wallet provider identifiers.
const (
	KindReown   Kind = "reown"   // relay-routed sessions on EVM chains
	KindPhantom Kind = "phantom" // direct key-exchange deep links on Solana
)

// Family groups kinds by how their sessions are established and persisted.
type Family string

// Connection families.
const (
	FamilyRelay     Family = "relay"
	FamilyDirectKey Family = "directKey"
)

// String returns the kind identifier string.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a known wallet provider.
func (k Kind) IsValid() bool {
	switch k {
	case KindReown, KindPhantom:
		return true
	default:
		return false
	}
}

// Family returns the connection family for a kind.
func (k Kind) Family() Family {
	switch k {
	case KindReown:
		return FamilyRelay
	case KindPhantom:
		return FamilyDirectKey
	default:
		return ""
	}
}

// UsesChainID reports whether the kind selects networks by numeric chain id.
// Kinds that return false select networks by cluster name instead.
func (k Kind) UsesChainID() bool {
	switch k {
	case KindReown:
		return true
	case KindPhantom:
		return false
	default:
		return false
	}
}

// CallbackScheme returns the URI scheme the kind's wallet app uses for
// app-to-app return callbacks.
func (k Kind) CallbackScheme() string {
	switch k {
	case KindReown:
		return "mooring-wc"
	case KindPhantom:
		return "mooring-phantom"
	default:
		return ""
	}
}

// Kinds returns all supported wallet provider kinds.
func Kinds() []Kind {
	return []Kind{KindReown, KindPhantom}
}

// ParseKind parses a string into a Kind. Unknown values produce an error
// carrying the closest known kind as a suggestion.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsValid() {
		return k, nil
	}

	err := moorerr.WithDetails(moorerr.ErrUnknownKind, map[string]string{"kind": s})
	if nearest := nearestKind(string(k)); nearest != "" {
		err = moorerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", nearest))
	}
	return "", err
}

// nearestKind returns the known kind within a small edit distance of s,
// or empty when nothing is close enough to suggest.
func nearestKind(s string) Kind {
	const maxDistance = 3
	best := Kind("")
	bestDist := maxDistance + 1
	for _, k := range Kinds() {
		d := levenshtein.ComputeDistance(s, string(k))
		if d < bestDist {
			best = k
			bestDist = d
		}
	}
	if bestDist > maxDistance {
		return ""
	}
	return best
}
