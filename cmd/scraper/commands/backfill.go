package commands

import (
	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-export/internal/domain"
	"github.com/qepting91/reddit-export/internal/storage"
)

var backfillFlags exportFlags

func init() {
	backfillFlags.bind(backfillCmd, domain.KindPosts)
	backfillCmd.MarkFlagRequired("previous")
	rootCmd.AddCommand(backfillCmd)
}

var backfillCmd = &cobra.Command{
	Use:   "backfill --previous <export> [--subreddit name]",
	Short: "Adds the posts missing from an export, up to the time it was taken.",
	Long: `Fetches the period covered by a previous export again and appends the
records whose id it does not contain. Existing records are left as they are.
Archive mode reaches the furthest back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := domain.KindPosts
		if name, ok := storage.ParseExportName(backfillFlags.previous); ok {
			kind = name.Kind
		}
		jobs, err := buildJobs(kind, &backfillFlags)
		if err != nil {
			return err
		}
		return runExport(cmd, &backfillFlags, jobs, true)
	},
}
