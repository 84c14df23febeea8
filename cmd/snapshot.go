package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/render"
	"github.com/calidris/movetrack/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save and replay movetrack command lines",
	Long: `Snapshots save a movetrack command line under a name so an analysis can be
re-run later exactly as it was.

snapshot save   — save a command line under a name
snapshot list   — list saved snapshots
snapshot show   — print one snapshot
snapshot run    — execute a saved snapshot
snapshot delete — remove a snapshot`,
}

// ─── snapshot save ────────────────────────────────────────────────────────────

var (
	snapshotSaveName string
	snapshotSaveCmd  string
)

var snapshotSaveCommand = &cobra.Command{
	Use:   "save",
	Short: "Save a command line under a name",
	Example: `  movetrack snapshot save --name tern-routes \
    --cmd "analyze route terns_clean.csv --report"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		snap := store.Snapshot{
			ID:          newSnapshotID(),
			Name:        snapshotSaveName,
			CommandLine: strings.TrimSpace(snapshotSaveCmd),
			CreatedAt:   time.Now(),
		}
		if snap.CommandLine == "" {
			return fmt.Errorf("--cmd must not be empty")
		}
		if err := deps.Store.PutSnapshot(snap); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved snapshot %s (%s)\n", snap.Name, snap.ID)
		}
		return nil
	},
}

// ─── snapshot list ────────────────────────────────────────────────────────────

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		format := resolveFormat(deps.Config.Format)

		snaps, err := deps.Store.ListSnapshots()
		if err != nil {
			return err
		}

		if format == render.FormatTable {
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots saved.")
				return nil
			}
			printSimpleTable(cmd.OutOrStdout(),
				[]string{"ID", "NAME", "COMMAND", "CREATED"},
				func(add func(...string)) {
					for _, s := range snaps {
						add(s.ID, s.Name, s.CommandLine,
							s.CreatedAt.Format("2006-01-02 15:04"))
					}
				})
			return nil
		}
		result := newResult(model.KindTable, "snapshot list", snaps, nil, start, 0, len(snaps))
		return emitResult(cmd, deps, result, format)
	},
}

// ─── snapshot show ────────────────────────────────────────────────────────────

var snapshotShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Print one snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		snap, err := findSnapshot(deps.Store, args[0])
		if err != nil {
			return err
		}
		printKVTable(cmd.OutOrStdout(), [][2]string{
			{"ID", snap.ID},
			{"Name", snap.Name},
			{"Command", snap.CommandLine},
			{"Created", snap.CreatedAt.Format(time.RFC3339)},
		})
		return nil
	},
}

// ─── snapshot run ─────────────────────────────────────────────────────────────

var snapshotRunCmd = &cobra.Command{
	Use:   "run <id|name>",
	Short: "Execute a saved snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}

		snap, err := findSnapshot(deps.Store, args[0])
		if err != nil {
			deps.Close()
			return err
		}
		// Release the catalog before re-entering the command tree; the
		// replayed command may open it again.
		deps.Close()

		if !globalFlags.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "▶ movetrack %s\n", snap.CommandLine)
		}
		rootCmd.SetArgs(strings.Fields(snap.CommandLine))
		return rootCmd.Execute()
	},
}

// ─── snapshot delete ──────────────────────────────────────────────────────────

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Remove a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		snap, err := findSnapshot(deps.Store, args[0])
		if err != nil {
			return err
		}
		if err := deps.Store.DeleteSnapshot(snap.ID); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted snapshot %s\n", snap.ID)
		}
		return nil
	},
}

// findSnapshot resolves an ID or name to a stored snapshot. Name matches
// pick the newest snapshot with that name.
func findSnapshot(s *store.Store, key string) (store.Snapshot, error) {
	if snap, ok, err := s.GetSnapshot(key); err != nil {
		return store.Snapshot{}, err
	} else if ok {
		return snap, nil
	}
	snaps, err := s.ListSnapshots()
	if err != nil {
		return store.Snapshot{}, err
	}
	var found *store.Snapshot
	for i := range snaps {
		if snaps[i].Name == key {
			if found == nil || snaps[i].CreatedAt.After(found.CreatedAt) {
				found = &snaps[i]
			}
		}
	}
	if found == nil {
		return store.Snapshot{}, fmt.Errorf("no snapshot with ID or name %q", key)
	}
	return *found, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotSaveCommand)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotRunCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)

	snapshotSaveCommand.Flags().StringVar(&snapshotSaveName, "name", "", "human-readable name for the snapshot (required)")
	snapshotSaveCommand.Flags().StringVar(&snapshotSaveCmd, "cmd", "", "command line to save, without the binary name (required)")
	snapshotSaveCommand.MarkFlagRequired("name")
	snapshotSaveCommand.MarkFlagRequired("cmd")
}

// ─── ID generation ────────────────────────────────────────────────────────────

// newSnapshotID generates a time-sortable snapshot ID.
// Format: YYYYMMDDHHmmss + 4 random hex chars — no external dependency needed.
func newSnapshotID() string {
	now := time.Now().UTC()
	base := now.Format("20060102150405")
	// Add pseudo-random suffix from nanoseconds
	nano := now.UnixNano() & 0xFFFF
	return fmt.Sprintf("%s%04x", base, nano)
}
