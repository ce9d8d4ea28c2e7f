package cmd

import (
	"fmt"
	"io"

	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/store"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed vs latest known version of every mod",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := config.Load(instanceDir)
		if err != nil {
			return err
		}
		paths := config.PathsFor(instanceDir)
		st := store.New(paths.Catalog)
		if _, err := st.Load(); err != nil {
			return err
		}
		st.Attach(state.Mods)

		writeStatus(cmd.OutOrStdout(), state, st)
		return nil
	},
}

func writeStatus(w io.Writer, state *config.LocalState, st *store.Store) {
	prefs := state.Preferences
	last := "never"
	if !prefs.LastUpdateCheck.IsZero() {
		last = prefs.LastUpdateCheck.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintf(w, "Last check: %s (interval %s, mode %s)\n", last, prefs.CheckInterval, prefs.UpdateMode)

	if len(state.Mods) == 0 {
		fmt.Fprintln(w, "No mods registered.")
	} else {
		fmt.Fprintf(w, "%-24s %-12s %-12s %s\n", "MOD", "INSTALLED", "LATEST", "STATUS")
		for _, id := range state.ModIDs() {
			mod := state.Mods[id]
			rec, _ := st.Get(id)
			latest := rec.LatestVersion
			if latest == "" {
				latest = "-"
			}
			status := rec.Status.String()
			if mod.UpdateLink == "" {
				status = "no update link"
			}
			fmt.Fprintf(w, "%-24s %-12s %-12s %s\n", truncate(id, 24), mod.Version, latest, status)
		}
	}

	// Entries for mods no longer registered are dropped on the next save.
	stale := lo.Filter(st.Entries(), func(e store.Entry, _ int) bool {
		_, ok := state.Mods[e.ModID]
		return !ok
	})
	if len(stale) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCatalog entries for unregistered mods (%d):\n", len(stale))
	for _, e := range stale {
		fmt.Fprintf(w, "  %-24s %-12s %s\n", truncate(e.ModID, 24), e.LatestVersion, e.URL)
	}
}

// truncate shortens s to n runes, marking the cut with "~".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

