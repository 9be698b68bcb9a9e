package commands

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-export/internal/domain"
	"github.com/qepting91/reddit-export/internal/storage"
)

// idFilter selects records of a posts export; empty fields match anything.
type idFilter struct {
	Flair         string
	Author        string
	TitleContains string
}

func (f idFilter) match(r domain.Record) bool {
	if f.Flair != "" && !strings.EqualFold(r["flair"], f.Flair) {
		return false
	}
	if f.Author != "" && !strings.EqualFold(r["author"], f.Author) {
		return false
	}
	if f.TitleContains != "" && !strings.Contains(strings.ToLower(r["title"]), strings.ToLower(f.TitleContains)) {
		return false
	}
	return true
}

// extractIDs returns the ids of the matching records in export order.
func extractIDs(ds domain.Dataset, f idFilter) []string {
	ids := []string{}
	for _, r := range ds.Records {
		if f.match(r) {
			ids = append(ids, r.ID())
		}
	}
	return ids
}

var (
	extractInput  string
	extractOut    string
	extractFilter idFilter
)

func init() {
	fs := extractCmd.Flags()
	fs.StringVar(&extractInput, "input", "", "Posts export to filter.")
	fs.StringVar(&extractOut, "out", "", "JSON file to write (default stdout).")
	fs.StringVar(&extractFilter.Flair, "flair", "", "Keep posts with this flair.")
	fs.StringVar(&extractFilter.Author, "author", "", "Keep posts by this author.")
	fs.StringVar(&extractFilter.TitleContains, "title-contains", "", "Keep posts whose title contains this text.")
	extractCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract-ids --input <export> [--flair f] [--author a] [--title-contains t]",
	Short: "Writes the ids of matching posts as JSON, for posts --ids-file.",
	Example: `  scraper extract-ids --input Subreddit/posts_france_1700000000.xlsx \
    --flair "Forum Libre" --author AutoModerator --title-contains "Forum Libre" --out forumlibre.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := storage.Load(extractInput)
		if err != nil {
			return err
		}
		ids := extractIDs(ds, extractFilter)

		var w io.Writer = os.Stdout
		if extractOut != "" {
			f, err := os.Create(extractOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := json.NewEncoder(w).Encode(ids); err != nil {
			return err
		}
		slog.InfoContext(cmd.Context(), "Ids extracted", "matched", len(ids), "records", ds.Len())
		return nil
	},
}
