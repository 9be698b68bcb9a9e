package dashboard

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/qepting91/reddit-export/internal/domain"
	"github.com/qepting91/reddit-export/internal/storage"
)

const topN = 10

// Render writes an HTML page charting ds: records per day, the subreddits
// the records come from and the most active authors.
func Render(w io.Writer, ds domain.Dataset) error {
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Reddit export (%d records)", ds.Len()))

	// 1. Activity
	days, perDay := dailyCounts(ds)
	timeline := charts.NewBar()
	timeline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Records per Day"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	var dayBars []opts.BarData
	for _, n := range perDay {
		dayBars = append(dayBars, opts.BarData{Value: n})
	}
	timeline.SetXAxis(days).AddSeries("Records", dayBars)

	// 2. Subreddit Dominance
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Subreddit Dominance"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)
	var pieItems []opts.PieData
	for _, c := range topCounts(ds, "subreddit", topN) {
		pieItems = append(pieItems, opts.PieData{Name: c.Name, Value: c.N})
	}
	pie.AddSeries("Records", pieItems)

	// 3. Top Authors
	authors := charts.NewBar()
	authors.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Top Authors"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)
	var names []string
	var authorBars []opts.BarData
	for _, c := range topCounts(ds, "author", topN) {
		names = append(names, c.Name)
		authorBars = append(authorBars, opts.BarData{Value: c.N})
	}
	authors.SetXAxis(names).AddSeries("Records", authorBars)

	page.AddCharts(timeline, pie, authors)
	return page.Render(w)
}

// Handler serves the chart of the export at path, reloading it on every
// request so a running dashboard follows incremental runs.
func Handler(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds, err := storage.Load(path)
		if err != nil {
			slog.ErrorContext(r.Context(), "Dashboard load failed", "file", path, "err", err)
			http.Error(w, "cannot load export", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := Render(w, ds); err != nil {
			slog.ErrorContext(r.Context(), "Dashboard render failed", "err", err)
		}
	})
}

func StartServer(path string, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/", Handler(path))
	return http.ListenAndServe(":"+port, mux)
}

type count struct {
	Name string
	N    int
}

// dailyCounts buckets records by UTC creation day, oldest day first.
// Records without a usable timestamp are ignored.
func dailyCounts(ds domain.Dataset) ([]string, []int) {
	counts := map[string]int{}
	for _, r := range ds.Records {
		t, err := r.Created()
		if err != nil {
			continue
		}
		counts[t.UTC().Format(time.DateOnly)]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	perDay := make([]int, len(days))
	for i, d := range days {
		perDay[i] = counts[d]
	}
	return days, perDay
}

// topCounts returns the n most frequent values of field, ties broken by
// name. Empty and deleted values are not counted.
func topCounts(ds domain.Dataset, field string, n int) []count {
	counts := map[string]int{}
	for _, r := range ds.Records {
		v := r[field]
		if v == "" || v == "[deleted]" {
			continue
		}
		counts[v]++
	}
	out := make([]count, 0, len(counts))
	for k, v := range counts {
		out = append(out, count{Name: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
