package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-export/internal/collector"
	"github.com/qepting91/reddit-export/internal/domain"
	"github.com/qepting91/reddit-export/internal/ingest"
	"github.com/qepting91/reddit-export/internal/runner"
	"github.com/qepting91/reddit-export/internal/storage"
)

// exportFlags are shared by posts, comments and backfill.
type exportFlags struct {
	subreddits  string
	authors     string
	terms       string
	ids         string
	targetsFile string
	by          string
	idsFile     string
	restrict    string
	previous    string
	after       int64
	before      int64
	format      string
	outDir      string
	window      time.Duration
	mode        string
}

func (f *exportFlags) bind(cmd *cobra.Command, kind domain.Kind) {
	fs := cmd.Flags()
	if kind == domain.KindPosts {
		fs.StringVar(&f.subreddits, "subreddit", "", "Comma-separated subreddits.")
		fs.StringVar(&f.ids, "id", "", "Comma-separated post ids, fullnames or permalinks.")
	} else {
		fs.StringVar(&f.ids, "post", "", "Comma-separated post ids or permalinks whose comments to export.")
	}
	fs.StringVar(&f.authors, "author", "", "Comma-separated usernames.")
	fs.StringVar(&f.terms, "search", "", "Comma-separated search terms.")
	fs.StringVar(&f.restrict, "restrict", "", "Restrict --search to this subreddit.")
	fs.StringVar(&f.targetsFile, "targets-file", "", "CSV file whose first column lists targets (header skipped).")
	fs.StringVar(&f.by, "by", string(domain.BySubreddit), "What --targets-file lists: subreddit, author or term.")
	fs.StringVar(&f.idsFile, "ids-file", "", "JSON file of post ids, as written by extract-ids.")
	fs.StringVar(&f.previous, "previous", "", "Previous export to update incrementally.")
	fs.Int64Var(&f.after, "after", 0, "Only content created at or after this unix time.")
	fs.Int64Var(&f.before, "before", 0, "Only content created before this unix time.")
	fs.StringVar(&f.format, "format", "", "Output format: csv, tsv, xlsx or ndjson (default OUTPUT_FORMAT).")
	fs.StringVar(&f.outDir, "out-dir", "", "Output directory (default OUTPUT_DIR).")
	fs.DurationVar(&f.window, "window", 0, "Re-fetch window for incremental runs (default REFETCH_WINDOW).")
	fs.StringVar(&f.mode, "mode", "", "Collector: api, public, archive or mock (default COLLECTOR_MODE).")
}

// buildJobs turns the flags into one job per target. Post ids are fetched
// as a single batch; comment threads one post at a time.
func buildJobs(kind domain.Kind, f *exportFlags) ([]runner.Job, error) {
	var queries []domain.Query
	add := func(sel domain.Selector, targets []string) {
		for _, t := range targets {
			queries = append(queries, domain.Query{Kind: kind, Selector: sel, Target: t})
		}
	}

	add(domain.BySubreddit, ingest.SplitList(f.subreddits))
	add(domain.ByAuthor, ingest.SplitList(f.authors))
	add(domain.ByTerm, ingest.SplitList(f.terms))

	ids := ingest.SplitList(f.ids)
	if f.idsFile != "" {
		loaded, err := ingest.LoadIDs(f.idsFile)
		if err != nil {
			return nil, err
		}
		ids = append(ids, loaded...)
	}
	if len(ids) > 0 {
		if kind == domain.KindPosts {
			add(domain.ByID, []string{strings.Join(ids, ",")})
		} else {
			add(domain.ByID, ids)
		}
	}

	if f.targetsFile != "" {
		sel := domain.Selector(f.by)
		switch sel {
		case domain.BySubreddit, domain.ByAuthor, domain.ByTerm:
		default:
			return nil, fmt.Errorf("--by must be subreddit, author or term, got %q", f.by)
		}
		targets, err := ingest.LoadTargets(f.targetsFile, sel)
		if err != nil {
			return nil, err
		}
		add(sel, targets)
	}

	inferred := false
	if len(queries) == 0 && f.previous != "" {
		q, err := queryFromExport(f.previous, kind)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
		inferred = true
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("nothing to export: give a target flag, --targets-file, --ids-file or --previous")
	}
	if f.previous != "" && len(queries) != 1 {
		return nil, fmt.Errorf("--previous updates a single export, got %d targets", len(queries))
	}
	if f.previous != "" && !inferred {
		if err := matchesExport(f.previous, queries[0]); err != nil {
			return nil, err
		}
	}

	jobs := make([]runner.Job, 0, len(queries))
	for _, q := range queries {
		if q.Selector == domain.ByTerm {
			q.Subreddit = f.restrict
		}
		if f.after > 0 {
			q.Since = time.Unix(f.after, 0).UTC()
		}
		if f.before > 0 {
			q.Until = time.Unix(f.before, 0).UTC()
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		jobs = append(jobs, runner.Job{Query: q, Previous: f.previous})
	}
	return jobs, nil
}

// queryFromExport rebuilds the query behind an export from its path.
func queryFromExport(path string, kind domain.Kind) (domain.Query, error) {
	name, ok := storage.ParseExportName(path)
	if !ok || name.Selector == "" {
		return domain.Query{}, fmt.Errorf("cannot infer the target of %s; pass it explicitly", path)
	}
	if name.Kind != kind {
		return domain.Query{}, fmt.Errorf("%s is a %s export", path, name.Kind)
	}
	return domain.Query{Kind: kind, Selector: name.Selector, Target: name.Target}, nil
}

// matchesExport rejects a --previous file that was written for another
// target. Files whose name does not follow the export naming are not checked.
func matchesExport(path string, q domain.Query) error {
	name, ok := storage.ParseExportName(path)
	if !ok {
		return nil
	}
	if name.Kind != q.Kind {
		return fmt.Errorf("%s is a %s export, not %s", path, name.Kind, q.Kind)
	}
	if name.Selector != "" && name.Selector != q.Selector {
		return fmt.Errorf("%s is a %s export, not %s", path, name.Selector, q.Selector)
	}
	if !strings.EqualFold(name.Target, storage.FileTarget(q.Target)) {
		return fmt.Errorf("%s was exported for %q, not %q", path, name.Target, q.Target)
	}
	return nil
}

// runExport applies the flag overrides, runs the jobs and prints the summary.
func runExport(cmd *cobra.Command, f *exportFlags, jobs []runner.Job, backfill bool) error {
	c := cfg
	if f.mode != "" {
		c.Mode = f.mode
	}
	if f.outDir != "" {
		c.OutputDir = f.outDir
	}
	if f.format != "" {
		c.OutputFormat = f.format
	}
	if f.window > 0 {
		c.RefetchWindow = f.window
	}
	format, err := storage.ParseFormat(c.OutputFormat)
	if err != nil {
		return err
	}

	client, err := collector.NewCollector(c)
	if err != nil {
		return fmt.Errorf("failed to initialize collector: %w", err)
	}

	r := &runner.Runner{
		Collector: client,
		OutDir:    c.OutputDir,
		Format:    format,
		Window:    c.RefetchWindow,
		Backfill:  backfill,
	}
	sum, err := r.Run(cmd.Context(), jobs)
	printSummary(sum)
	if err != nil {
		return err
	}
	if sum.Failed() {
		return errRunFailed
	}
	return nil
}

func printSummary(sum runner.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Target", "Fetched", "Kept", "Discarded", "Replaced", "Total", "File", "Status"})

	for _, r := range sum.Rows {
		status := string(r.Status)
		if r.Err != nil {
			status += ": " + r.Err.Error()
		}
		t.AppendRow(table.Row{r.Target, r.Fetched, r.Kept, r.Discarded, r.Replaced, r.Total, r.File, status})
	}
	t.AppendFooter(table.Row{"run " + sum.RunID, "", "", "", "", "", "", sum.Duration.Round(time.Millisecond).String()})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
