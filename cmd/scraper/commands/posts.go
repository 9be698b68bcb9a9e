package commands

import (
	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-export/internal/domain"
)

var postsFlags exportFlags

func init() {
	postsFlags.bind(postsCmd, domain.KindPosts)
	rootCmd.AddCommand(postsCmd)
}

var postsCmd = &cobra.Command{
	Use:   "posts [--subreddit a,b | --author a,b | --search q | --id x,y]",
	Short: "Exports posts of subreddits, users, searches or ids.",
	Long: `Exports posts, one file per target. With --previous the export is
updated incrementally: records older than the re-fetch window are kept and
everything newer is fetched again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := buildJobs(domain.KindPosts, &postsFlags)
		if err != nil {
			return err
		}
		return runExport(cmd, &postsFlags, jobs, false)
	},
}
