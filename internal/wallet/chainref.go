package wallet

import (
	"fmt"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// ChainRef selects the target network for a connection. Exactly one of
// ChainID or Cluster is meaningful: relay kinds address networks by numeric
// chain id, direct-key kinds by cluster name.
type ChainRef struct {
	ChainID int64  `json:"chainId,omitempty"`
	Cluster string `json:"cluster,omitempty"`
}

// Known Solana cluster names.
const (
	ClusterMainnetBeta = "mainnet-beta"
	ClusterDevnet      = "devnet"
	ClusterTestnet     = "testnet"
)

// EVMChain returns a ChainRef addressing an EVM network by chain id.
func EVMChain(id int64) ChainRef {
	return ChainRef{ChainID: id}
}

// SolanaCluster returns a ChainRef addressing a Solana cluster by name.
func SolanaCluster(name string) ChainRef {
	return ChainRef{Cluster: name}
}

// IsZero reports whether the reference selects nothing.
func (r ChainRef) IsZero() bool {
	return r.ChainID == 0 && r.Cluster == ""
}

// String renders the reference in CAIP-style notation.
func (r ChainRef) String() string {
	if r.Cluster != "" {
		return "solana:" + r.Cluster
	}
	if r.ChainID != 0 {
		return fmt.Sprintf("eip155:%d", r.ChainID)
	}
	return ""
}

// Validate checks that the reference matches the kind's network scheme.
func (r ChainRef) Validate(kind Kind) error {
	if r.ChainID != 0 && r.Cluster != "" {
		return moorerr.WithDetails(moorerr.ErrUnsupportedChain, map[string]string{
			"reason": "both chain id and cluster set",
		})
	}

	if kind.UsesChainID() {
		if r.ChainID <= 0 {
			return moorerr.WithDetails(moorerr.ErrUnsupportedChain, map[string]string{
				"kind":   kind.String(),
				"reason": "a positive chain id is required",
			})
		}
		return nil
	}

	switch r.Cluster {
	case ClusterMainnetBeta, ClusterDevnet, ClusterTestnet:
		return nil
	case "":
		return moorerr.WithDetails(moorerr.ErrUnsupportedChain, map[string]string{
			"kind":   kind.String(),
			"reason": "a cluster name is required",
		})
	default:
		return moorerr.WithDetails(moorerr.ErrUnsupportedChain, map[string]string{
			"kind":    kind.String(),
			"cluster": r.Cluster,
		})
	}
}

// Equal reports whether two references select the same network.
func (r ChainRef) Equal(other ChainRef) bool {
	return r.ChainID == other.ChainID && r.Cluster == other.Cluster
}
