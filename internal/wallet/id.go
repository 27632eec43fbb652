package wallet

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// idSeparator joins the kind and the lowercased address in a wallet id.
const idSeparator = "_"

// solanaKeyLen is the decoded length of a Solana account address.
const solanaKeyLen = 32

// DeriveID computes the registry key for a wallet: the connection kind and
// the lowercased address joined by an underscore. Reconnecting the same
// address under the same kind always lands on the same id. The lowercasing
// is an indexing convention only; the session keeps the original address.
func DeriveID(kind Kind, address string) (string, error) {
	if !kind.IsValid() {
		return "", moorerr.WithDetails(moorerr.ErrUnknownKind, map[string]string{"kind": kind.String()})
	}

	addr := strings.TrimSpace(address)
	if err := ValidateAddress(kind, addr); err != nil {
		return "", err
	}

	return kind.String() + idSeparator + strings.ToLower(addr), nil
}

// SplitID breaks a wallet id back into its kind and lowercased address.
func SplitID(id string) (Kind, string, bool) {
	kindPart, addrPart, found := strings.Cut(id, idSeparator)
	if !found || addrPart == "" {
		return "", "", false
	}
	k := Kind(kindPart)
	if !k.IsValid() {
		return "", "", false
	}
	return k, addrPart, true
}

// ValidateAddress checks that an address is plausible for the kind:
// EVM kinds require a 0x-prefixed 20-byte hex address, Solana kinds a
// base58 string decoding to a 32-byte key.
func ValidateAddress(kind Kind, address string) error {
	if address == "" {
		return moorerr.WithDetails(moorerr.ErrInvalidAddress, map[string]string{"kind": kind.String()})
	}

	switch kind.Family() {
	case FamilyRelay:
		if !common.IsHexAddress(address) {
			return moorerr.WithDetails(moorerr.ErrInvalidAddress, map[string]string{
				"kind":    kind.String(),
				"address": address,
			})
		}
	case FamilyDirectKey:
		raw, err := base58.Decode(address)
		if err != nil || len(raw) != solanaKeyLen {
			return moorerr.WithDetails(moorerr.ErrInvalidAddress, map[string]string{
				"kind":    kind.String(),
				"address": address,
			})
		}
	default:
		return moorerr.WithDetails(moorerr.ErrUnknownKind, map[string]string{"kind": kind.String()})
	}

	return nil
}

// DisplayAddress renders an address for display: EVM addresses in their
// EIP-55 checksum form, others unchanged.
func DisplayAddress(kind Kind, address string) string {
	if kind.Family() == FamilyRelay && common.IsHexAddress(address) {
		return common.HexToAddress(address).Hex()
	}
	return address
}
