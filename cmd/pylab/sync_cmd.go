// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pylab/internal/session"
	filesync "pylab/internal/sync"
)

var (
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Synchronize workspace files with the copy-mode container",
		Long: `Synchronize workspace files with the learning container.

Only useful in copy mode; with a bind mount the container already sees
the workspace. Push sends your edits in, pull brings lesson artifacts
(results, plots, notebooks) back out.`,
	}

	syncPushCmd = &cobra.Command{
		Use:   "push",
		Short: "Push workspace files into the container",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), "pushed", (*session.Driver).SyncPush)
		},
	}

	syncPullCmd = &cobra.Command{
		Use:   "pull",
		Short: "Pull lesson artifacts out of the container",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), "pulled", (*session.Driver).SyncPull)
		},
	}
)

func init() {
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
}

func runSync(
	ctx context.Context,
	verb string,
	op func(*session.Driver, context.Context, session.Options) (filesync.Stats, error),
) error {
	driver, _, err := newSessionDriver(ctx)
	if err != nil {
		return err
	}

	stats, err := op(driver, ctx, session.Options{})
	if err != nil {
		return err
	}

	fmt.Println(SuccessStyle.Render(fmt.Sprintf("%s %d file(s)", verb, stats.Copied)) +
		SubtitleStyle.Render(fmt.Sprintf(" (%d unchanged)", stats.Skipped)))
	return nil
}
