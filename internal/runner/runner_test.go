package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/qepting91/reddit-export/internal/collector"
	"github.com/qepting91/reddit-export/internal/domain"
	"github.com/qepting91/reddit-export/internal/storage"
)

type fakeCollector struct {
	batches map[string]domain.Dataset
	errs    map[string]error
	queries []domain.Query
}

func (f *fakeCollector) Fetch(_ context.Context, q domain.Query) (domain.Dataset, error) {
	f.queries = append(f.queries, q)
	if err, ok := f.errs[q.Target]; ok {
		return domain.Dataset{}, err
	}
	return f.batches[q.Target], nil
}

func dataset(rows ...[2]string) domain.Dataset {
	ds := domain.Dataset{Columns: []string{domain.FieldID, domain.FieldCreated, "score"}}
	for _, r := range rows {
		ds.Records = append(ds.Records, domain.Record{domain.FieldID: r[0], domain.FieldCreated: r[1], "score": "1"})
	}
	return ds
}

func ids(ds domain.Dataset) []string {
	var out []string
	for _, r := range ds.Records {
		out = append(out, r.ID())
	}
	return out
}

func subQuery(target string) domain.Query {
	return domain.Query{Kind: domain.KindPosts, Selector: domain.BySubreddit, Target: target}
}

var fixedNow = time.Unix(10_000, 0).UTC()

func newRunner(t *testing.T, c domain.Collector) *Runner {
	t.Helper()
	return &Runner{
		Collector: c,
		OutDir:    t.TempDir(),
		Format:    storage.FormatCSV,
		Window:    1000 * time.Second,
		Now:       func() time.Time { return fixedNow },
	}
}

func TestRun_FreshExport(t *testing.T) {
	fc := &fakeCollector{batches: map[string]domain.Dataset{"golang": dataset([2]string{"a", "100"}, [2]string{"b", "200"})}}
	r := newRunner(t, fc)

	sum, err := r.Run(context.Background(), []Job{{Query: subQuery("golang")}})
	require.NoError(t, err)
	require.Len(t, sum.Rows, 1)
	assert.False(t, sum.Failed())
	assert.NotEmpty(t, sum.RunID)

	row := sum.Rows[0]
	assert.Equal(t, StatusOK, row.Status)
	assert.Equal(t, 2, row.Total)
	assert.Equal(t, filepath.Join(r.OutDir, "Subreddit", "posts_golang_10000.csv"), row.File)

	got, err := storage.Load(row.File)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.True(t, fc.queries[0].Since.IsZero())
}

func TestRun_IncrementalMerge(t *testing.T) {
	dir := t.TempDir()
	prevPath := filepath.Join(dir, "posts_golang_9500.csv")
	require.NoError(t, storage.Save(dataset(
		[2]string{"1", "8000"}, [2]string{"2", "9100"}, [2]string{"3", "9300"},
	), prevPath))

	fc := &fakeCollector{batches: map[string]domain.Dataset{
		"golang": dataset([2]string{"3", "9300"}, [2]string{"4", "9800"}),
	}}
	r := newRunner(t, fc)

	sum, err := r.Run(context.Background(), []Job{{Query: subQuery("golang"), Previous: prevPath}})
	require.NoError(t, err)

	// boundary = min(9300, 10000-1000) = 9000
	require.Len(t, fc.queries, 1)
	assert.Equal(t, time.Unix(9000, 0).UTC(), fc.queries[0].Since)

	row := sum.Rows[0]
	assert.Equal(t, StatusOK, row.Status)
	assert.Equal(t, 1, row.Kept)
	assert.Equal(t, 2, row.Discarded)
	assert.Equal(t, 3, row.Total)

	got, err := storage.Load(row.File)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"1", "3", "4"}, ids(got)); diff != "" {
		t.Errorf("merged ids mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_FetchFailuresDoNotStopSiblings(t *testing.T) {
	fc := &fakeCollector{
		batches: map[string]domain.Dataset{"ok": dataset([2]string{"x", "100"})},
		errs: map[string]error{
			"flaky": domain.Transient(errors.New("http 503")),
			"gone":  domain.Permanent(errors.New("http 404")),
		},
	}
	r := newRunner(t, fc)

	sum, err := r.Run(context.Background(), []Job{
		{Query: subQuery("flaky")},
		{Query: subQuery("gone")},
		{Query: subQuery("ok")},
	})
	require.NoError(t, err)
	require.Len(t, sum.Rows, 3)
	assert.True(t, sum.Failed())

	assert.Equal(t, StatusFailed, sum.Rows[0].Status)
	assert.True(t, domain.IsTransient(sum.Rows[0].Err))
	assert.Empty(t, sum.Rows[0].File)
	assert.Equal(t, StatusSkipped, sum.Rows[1].Status)
	assert.Equal(t, StatusOK, sum.Rows[2].Status)

	entries, err := os.ReadDir(filepath.Join(r.OutDir, "Subreddit"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_TransientFailureLeavesPreviousUntouched(t *testing.T) {
	dir := t.TempDir()
	prevPath := filepath.Join(dir, "posts_golang_9500.csv")
	prev := dataset([2]string{"1", "8000"}, [2]string{"2", "9500"})
	require.NoError(t, storage.Save(prev, prevPath))
	before, err := os.ReadFile(prevPath)
	require.NoError(t, err)

	fc := &fakeCollector{errs: map[string]error{"golang": domain.Transient(errors.New("rate limited"))}}
	r := newRunner(t, fc)
	r.OutDir = dir

	sum, err := r.Run(context.Background(), []Job{{Query: subQuery("golang"), Previous: prevPath}})
	require.NoError(t, err)
	assert.True(t, sum.Failed())

	after, err := os.ReadFile(prevPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = os.Stat(filepath.Join(dir, "Subreddit"))
	assert.True(t, os.IsNotExist(err))
}

// cappedSubreddit serves a newest-first listing that stops handing out
// cursors after 1000 posts, the way reddit listings do.
func cappedSubreddit(newest int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("after"))
		var children []map[string]any
		for i := 0; i < 100; i++ {
			ts := newest - page*100 - i
			children = append(children, map[string]any{"kind": "t3", "data": map[string]any{
				"id": strconv.Itoa(ts), "name": "t3_" + strconv.Itoa(ts), "subreddit": "golang", "created_utc": ts,
			}})
		}
		after := ""
		if page < 9 {
			after = strconv.Itoa(page + 1)
		}
		json.NewEncoder(w).Encode(map[string]any{"kind": "Listing", "data": map[string]any{"after": after, "children": children}})
	}
}

func TestRun_IncompleteListingLeavesPreviousUntouched(t *testing.T) {
	dir := t.TempDir()
	prevPath := filepath.Join(dir, "posts_golang_9500.csv")
	require.NoError(t, storage.Save(dataset([2]string{"1", "8000"}, [2]string{"2", "9100"}), prevPath))
	before, err := os.ReadFile(prevPath)
	require.NoError(t, err)

	srv := httptest.NewServer(cappedSubreddit(9999))
	defer srv.Close()
	pc, err := collector.NewPublicClient("test-agent/1.0",
		collector.WithBaseURL(srv.URL), collector.WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, err)

	r := newRunner(t, pc)
	r.OutDir = dir
	sum, err := r.Run(context.Background(), []Job{{Query: subQuery("golang"), Previous: prevPath}})
	require.NoError(t, err)
	require.Len(t, sum.Rows, 1)
	assert.Equal(t, StatusFailed, sum.Rows[0].Status)
	assert.ErrorIs(t, sum.Rows[0].Err, domain.ErrIncomplete)
	assert.Empty(t, sum.Rows[0].File)

	after, err := os.ReadFile(prevPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = os.Stat(filepath.Join(dir, "Subreddit"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_IncompleteBatchIsNotReconciled(t *testing.T) {
	dir := t.TempDir()
	prevPath := filepath.Join(dir, "comments_p1_9500.csv")
	require.NoError(t, storage.Save(dataset([2]string{"c1", "9100"}, [2]string{"c2", "9200"}), prevPath))

	fc := &fakeCollector{errs: map[string]error{
		"p1": domain.Transient(fmt.Errorf("post p1: 2 comments could not be expanded: %w", domain.ErrIncomplete)),
	}}
	r := newRunner(t, fc)
	r.OutDir = dir

	q := domain.Query{Kind: domain.KindComments, Selector: domain.ByID, Target: "p1"}
	sum, err := r.Run(context.Background(), []Job{{Query: q, Previous: prevPath}})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, sum.Rows[0].Status)
	assert.Zero(t, sum.Rows[0].Total)

	got, err := storage.Load(prevPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids(got))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_EmptyFreshWithoutPreviousIsSkipped(t *testing.T) {
	r := newRunner(t, &fakeCollector{})

	sum, err := r.Run(context.Background(), []Job{{Query: subQuery("quiet")}})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, sum.Rows[0].Status)
	assert.ErrorIs(t, sum.Rows[0].Err, domain.ErrNoContent)
}

func TestRun_MalformedPreviousAbortsRun(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "posts_golang_9500.csv")
	require.NoError(t, os.WriteFile(bad, []byte("title\tscore\nhello\t3\n"), 0o644))

	fc := &fakeCollector{batches: map[string]domain.Dataset{"other": dataset([2]string{"x", "1"})}}
	r := newRunner(t, fc)

	sum, err := r.Run(context.Background(), []Job{
		{Query: subQuery("golang"), Previous: bad},
		{Query: subQuery("other")},
	})
	require.Error(t, err)
	assert.True(t, domain.IsMalformed(err))
	assert.Len(t, sum.Rows, 1)
	assert.Empty(t, fc.queries, "nothing is fetched for a malformed previous export")
}

func TestRun_UnreadablePreviousAbortsRun(t *testing.T) {
	r := newRunner(t, &fakeCollector{})

	_, err := r.Run(context.Background(), []Job{{Query: subQuery("golang"), Previous: filepath.Join(t.TempDir(), "missing.csv")}})
	require.Error(t, err)
	assert.True(t, domain.IsMalformed(err))
}

func TestRun_Backfill(t *testing.T) {
	dir := t.TempDir()
	prevPath := filepath.Join(dir, "posts_golang_5000.csv")
	require.NoError(t, storage.Save(dataset([2]string{"a", "1000"}, [2]string{"c", "3000"}), prevPath))

	fc := &fakeCollector{batches: map[string]domain.Dataset{
		"golang": dataset([2]string{"b", "2000"}, [2]string{"c", "3000"}, [2]string{"d", "4000"}),
	}}
	r := newRunner(t, fc)
	r.Backfill = true

	sum, err := r.Run(context.Background(), []Job{{Query: subQuery("golang"), Previous: prevPath}})
	require.NoError(t, err)

	assert.Equal(t, time.Unix(5000, 0).UTC(), fc.queries[0].Until)
	row := sum.Rows[0]
	assert.Equal(t, StatusOK, row.Status)
	assert.Equal(t, 2, row.Fetched)
	assert.Equal(t, 4, row.Total)

	got, err := storage.Load(row.File)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))
}

func TestRun_BackfillNeedsPrevious(t *testing.T) {
	r := newRunner(t, &fakeCollector{})
	r.Backfill = true

	_, err := r.Run(context.Background(), []Job{{Query: subQuery("golang")}})
	assert.Error(t, err)
}

func TestBackfillEnd(t *testing.T) {
	newest := time.Unix(700, 0)
	assert.Equal(t, time.Unix(1234, 0).UTC(), backfillEnd("Subreddit/posts_x_1234.csv", newest))
	assert.Equal(t, newest.Add(time.Second), backfillEnd("old-export.csv", newest))
	assert.True(t, backfillEnd("old-export.csv", time.Time{}).IsZero())
}

func TestSummaryFailed(t *testing.T) {
	assert.False(t, Summary{}.Failed())
	assert.False(t, Summary{Rows: []Row{{Status: StatusOK}}}.Failed())
	assert.True(t, Summary{Rows: []Row{{Status: StatusOK}, {Status: StatusSkipped}}}.Failed())
}
