package commands

import (
	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-export/internal/domain"
)

var commentsFlags exportFlags

func init() {
	commentsFlags.bind(commentsCmd, domain.KindComments)
	rootCmd.AddCommand(commentsCmd)
}

var commentsCmd = &cobra.Command{
	Use:   "comments [--post x,y | --author a,b | --search q]",
	Short: "Exports the comments of posts, users or searches.",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := buildJobs(domain.KindComments, &commentsFlags)
		if err != nil {
			return err
		}
		return runExport(cmd, &commentsFlags, jobs, false)
	},
}
