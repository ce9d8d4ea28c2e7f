// Command mod-updater-helper performs the network requests of mod-updater
// in a separate process. Output is plain text read back by the updater.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/caedis/mod-updater/internal/fetch"
	"github.com/caedis/mod-updater/internal/version"
	"github.com/spf13/cobra"
)

func newRootCmd(client *fetch.Client) *cobra.Command {
	root := &cobra.Command{
		Use:           "mod-updater-helper",
		Short:         "Network helper for mod-updater",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "get-metafile <url> [token]",
		Short: "Print a catalog metadata response, one field per line",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := client.Metafile(cmd.Context(), args[0], optionalArg(args, 1))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "get-file <url> <save-path> [token]",
		Short: "Download a file, printing NN% progress lines",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.File(cmd.Context(), args[0], args[1], optionalArg(args, 2), cmd.OutOrStdout())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate-key <token>",
		Short: "Print the NexusMods account behind an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := client.ValidateKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	})

	return root
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(fetch.New(version.Current)).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
