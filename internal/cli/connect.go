package cli

import (
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/connect"
	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// connectChainID addresses an EVM network for relay kinds.
	connectChainID int64
	// connectCluster addresses a Solana cluster for direct-key kinds.
	connectCluster string
	// connectQR renders the pairing URI as a terminal QR code.
	connectQR bool
	// connectTimeout bounds the whole attempt; zero uses the configured value.
	connectTimeout time.Duration
	// connectTransport overrides the configured transport.
	connectTransport string
)

// connectCmd drives a wallet connection attempt.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect <kind>",
	Short: "Connect a wallet",
	Long: `Connect a wallet of the given kind and make its session the active one.

Relay kinds (reown) address the network with --chain-id; direct-key kinds
(phantom) address it with --cluster. The pairing URI the wallet app must
open is printed while the attempt runs; --qr renders it as a QR code on
terminals.

An established session for another wallet is disconnected first. The attempt
retries transient failures on its own; a wallet declining the request ends it
immediately.`,
	Example: `  mooring connect reown --chain-id 1
  mooring connect reown --chain-id 137 --qr --timeout 2m
  mooring connect phantom --cluster mainnet-beta`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().Int64Var(&connectChainID, "chain-id", 0, "EVM chain id (relay kinds)")
	connectCmd.Flags().StringVar(&connectCluster, "cluster", "", "Solana cluster name (direct-key kinds)")
	connectCmd.Flags().BoolVar(&connectQR, "qr", false, "render the pairing URI as a QR code")
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 0, "overall attempt timeout (default from config)")
	connectCmd.Flags().StringVar(&connectTransport, "transport", "", "transport to connect over (loopback)")
	connectCmd.MarkFlagsMutuallyExclusive("chain-id", "cluster")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cmdCtx := GetCmdContext(cmd)

	kind, err := wallet.ParseKind(args[0])
	if err != nil {
		return err
	}
	chain, err := chainFromFlags(kind)
	if err != nil {
		return err
	}
	if connectTransport != "" {
		cmdCtx.Cfg.Connect.Transport = connectTransport
	}

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	timeout := connectTimeout
	if timeout <= 0 {
		timeout = cmdCtx.Cfg.ConnectTimeout()
	}
	ctx, cancel := contextWithTimeout(cmd, timeout)
	defer cancel()

	// Progress, the pairing URI, and the QR code go to stderr so stdout
	// stays clean for the result.
	events := env.Svc.Events()
	done := make(chan struct{})
	var progress sync.WaitGroup
	progress.Add(1)
	go func() {
		defer progress.Done()
		watchConnectProgress(cmd, events, done)
	}()

	ms, err := env.Svc.Connect(ctx, kind, chain)
	close(done)
	progress.Wait()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cmdCtx.Fmt.Format() == output.FormatJSON {
		return writeJSON(w, sessionPayload(ms))
	}
	outln(w, "Wallet connected.")
	outln(w)
	displaySessionText(w, ms)
	return nil
}

// watchConnectProgress narrates the attempt on stderr until the terminal
// event or until done closes.
func watchConnectProgress(cmd *cobra.Command, events <-chan connect.StatusEvent, done <-chan struct{}) {
	w := cmd.ErrOrStderr()
	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			switch event.Type {
			case connect.StatusConnecting:
				if event.PairingURI == "" {
					continue
				}
				outln(w, "Approve the connection in your wallet app:")
				outln(w)
				outln(w, "  "+event.PairingURI)
				outln(w)
				if connectQR && output.CanRenderQR(w) {
					_ = output.RenderPairingQR(w, event.PairingURI)
					outln(w)
				}
			case connect.StatusRetrying:
				out(w, "Connection attempt failed, retrying (%d/%d)...\n", event.Attempt, event.MaxRetries)
			case connect.StatusConnected, connect.StatusDisconnected, connect.StatusError:
				// Terminal events are reported through the Connect result.
			}
		}
	}
}

// chainFromFlags builds the network reference the flags select. Exactly one
// of --chain-id and --cluster must be present.
func chainFromFlags(kind wallet.Kind) (wallet.ChainRef, error) {
	switch {
	case connectChainID != 0:
		return wallet.EVMChain(connectChainID), nil
	case connectCluster != "":
		return wallet.SolanaCluster(connectCluster), nil
	default:
		suggestion := `pass --chain-id, e.g. --chain-id 1 for Ethereum mainnet`
		if !kind.UsesChainID() {
			suggestion = `pass --cluster, e.g. --cluster mainnet-beta`
		}
		return wallet.ChainRef{}, moorerr.WithSuggestion(
			moorerr.Wrap(moorerr.ErrInvalidInput, "no target network selected"),
			suggestion,
		)
	}
}
