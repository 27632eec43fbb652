package cli

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/config"
	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/securestore"
	"github.com/akodra/mooring/internal/session"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Store command flags.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// storeForce skips the confirmation prompt on clear.
	storeForce bool
)

// storeCmd is the parent command for snapshot storage operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the session snapshot store",
	Long: `Inspect and maintain the persisted session snapshot.

The snapshot lives in the secure store under the data directory and is
rewritten after every session change. These commands operate on the stored
bytes directly, without touching the live registry.`,
}

// storePathCmd prints the store location.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var storePathCmd = &cobra.Command{
	Use:     "path",
	Short:   "Print the store location",
	Example: `  mooring store path`,
	Args:    cobra.NoArgs,
	RunE:    runStorePath,
}

// storeInspectCmd summarizes the stored snapshot.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var storeInspectCmd = &cobra.Command{
	Use:     "inspect",
	Short:   "Summarize the stored snapshot",
	Long:    `Decode the stored snapshot and report its version, entries, and any records that fail to decode.`,
	Example: `  mooring store inspect`,
	Args:    cobra.NoArgs,
	RunE:    runStoreInspect,
}

// storeMigrateCmd rewrites the snapshot at the current schema version.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrite the snapshot at the current schema version",
	Long: `Decode the stored snapshot, migrating older schema versions forward,
and write it back at the current version. Entries that cannot be decoded
are dropped and counted.`,
	Example: `  mooring store migrate`,
	Args:    cobra.NoArgs,
	RunE:    runStoreMigrate,
}

// storeClearCmd deletes the stored snapshot.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var storeClearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Delete the stored snapshot",
	Long:    `Delete the stored snapshot. Live sessions are not touched; the next session change writes a fresh snapshot.`,
	Example: `  mooring store clear --force`,
	Args:    cobra.NoArgs,
	RunE:    runStoreClear,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storePathCmd)
	storeCmd.AddCommand(storeInspectCmd)
	storeCmd.AddCommand(storeMigrateCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeClearCmd.Flags().BoolVar(&storeForce, "force", false, "skip the confirmation prompt")
	enrichParentLong(storeCmd)
}

func runStorePath(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)
	w := cmd.OutOrStdout()

	if cmdCtx.Fmt.Format() == output.FormatJSON {
		payload := struct {
			Path    string `json:"path"`
			Backend string `json:"backend"`
			Encrypt bool   `json:"encrypt"`
		}{
			Path:    cmdCtx.Cfg.StorePath(),
			Backend: storageBackendName(cmdCtx.Cfg),
			Encrypt: cmdCtx.Cfg.Storage.Encrypt,
		}
		return writeJSON(w, payload)
	}
	outln(w, cmdCtx.Cfg.StorePath())
	return nil
}

func runStoreInspect(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)

	store, closeStore, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	w := cmd.OutOrStdout()
	data, err := store.Load(session.SnapshotKey)
	if moorerr.Is(err, moorerr.ErrStoreKeyNotFound) {
		if cmdCtx.Fmt.Format() == output.FormatJSON {
			out(w, "{\"sessions\": 0}\n")
			return nil
		}
		outln(w, "No snapshot stored.")
		return nil
	}
	if err != nil {
		return err
	}

	stored := snapshotVersionOf(data)
	st, skipped, err := session.DecodeSnapshot(data, cmdCtx.Log)
	if err != nil {
		return err
	}
	entries := snapshotEntries(st)

	if cmdCtx.Fmt.Format() == output.FormatJSON {
		payload := struct {
			Version        int                 `json:"version"`
			Sessions       int                 `json:"sessions"`
			Skipped        int                 `json:"skipped"`
			ActiveWalletID *string             `json:"activeWalletId,omitempty"`
			Entries        []snapshotEntryView `json:"entries,omitempty"`
		}{
			Version:        stored,
			Sessions:       len(st.Sessions),
			Skipped:        skipped,
			ActiveWalletID: st.ActiveWalletID,
			Entries:        entries,
		}
		return writeJSON(w, payload)
	}

	out(w, "Snapshot:  version %d\n", stored)
	out(w, "Sessions:  %d\n", len(st.Sessions))
	if skipped > 0 {
		out(w, "Skipped:   %d unreadable\n", skipped)
	}
	if st.ActiveWalletID != nil {
		out(w, "Active:    %s\n", *st.ActiveWalletID)
	}
	if len(entries) > 0 {
		outln(w)
		table := output.NewTable("WALLET ID", "TYPE", "TOPIC")
		for _, e := range entries {
			table.AddRow(e.WalletID, string(e.SessionType), e.Topic)
		}
		_ = table.Render(w)
	}
	return nil
}

func runStoreMigrate(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)

	store, closeStore, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	w := cmd.OutOrStdout()
	data, err := store.Load(session.SnapshotKey)
	if moorerr.Is(err, moorerr.ErrStoreKeyNotFound) {
		outln(w, "No snapshot stored; nothing to migrate.")
		return nil
	}
	if err != nil {
		return err
	}

	stored := snapshotVersionOf(data)
	st, skipped, err := session.DecodeSnapshot(data, cmdCtx.Log)
	if err != nil {
		return err
	}

	if stored == session.SnapshotVersion && skipped == 0 {
		if cmdCtx.Fmt.Format() == output.FormatJSON {
			out(w, "{\"version\": %d, \"migrated\": false}\n", stored)
			return nil
		}
		out(w, "Snapshot is already at version %d.\n", stored)
		return nil
	}

	encoded, err := session.EncodeSnapshot(st)
	if err != nil {
		return err
	}
	if err := store.Save(session.SnapshotKey, encoded); err != nil {
		return err
	}

	if cmdCtx.Fmt.Format() == output.FormatJSON {
		payload := struct {
			From     int  `json:"from"`
			To       int  `json:"to"`
			Sessions int  `json:"sessions"`
			Dropped  int  `json:"dropped"`
			Migrated bool `json:"migrated"`
		}{From: stored, To: session.SnapshotVersion, Sessions: len(st.Sessions), Dropped: skipped, Migrated: true}
		return writeJSON(w, payload)
	}
	out(w, "Migrated snapshot from version %d to %d (%d sessions kept, %d dropped).\n",
		stored, session.SnapshotVersion, len(st.Sessions), skipped)
	return nil
}

func runStoreClear(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)
	w := cmd.OutOrStdout()

	if !storeForce && !promptConfirmFn("Delete the stored session snapshot?") {
		outln(w, "Aborted.")
		return nil
	}

	store, closeStore, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	snapshots := session.NewSnapshotStore(store, cmdCtx.Log)
	if err := snapshots.Delete(); err != nil {
		return err
	}

	if cmdCtx.Fmt.Format() == output.FormatJSON {
		outln(w, `{"status": "cleared"}`)
		return nil
	}
	outln(w, "Snapshot cleared.")
	return nil
}

// openStore returns the secure store for store subcommands, preferring an
// injected one. The returned closer is a no-op for injected stores.
func openStore(cc *CommandContext) (securestore.Store, func(), error) {
	if cc.Store != nil {
		return cc.Store, func() {}, nil
	}
	store, err := securestore.New(securestore.Options{
		Backend:    cc.Cfg.Storage.Backend,
		Dir:        cc.Cfg.StorePath(),
		Encrypt:    cc.Cfg.Storage.Encrypt,
		Passphrase: storePassphraseFn,
	}, cc.Log)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func storageBackendName(cfg *config.Config) string {
	if cfg.Storage.Backend == "" {
		return securestore.BackendFile
	}
	return cfg.Storage.Backend
}

// snapshotVersionOf reads the stored schema version without migrating.
func snapshotVersionOf(data []byte) int {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0
	}
	return probe.Version
}

// snapshotEntryView is the JSON shape inspect prints for one stored entry.
type snapshotEntryView struct {
	WalletID    string              `json:"walletId"`
	SessionType session.SessionType `json:"sessionType"`
	Topic       string              `json:"topic"`
}

func snapshotEntries(st session.MultiSessionState) []snapshotEntryView {
	entries := make([]snapshotEntryView, 0, len(st.Sessions))
	for walletID, entry := range st.Sessions {
		entries = append(entries, snapshotEntryView{
			WalletID:    walletID,
			SessionType: entry.Type(),
			Topic:       entry.Topic(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].WalletID < entries[j].WalletID })
	return entries
}
