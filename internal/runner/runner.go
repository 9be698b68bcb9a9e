// Package runner drives one export run: for every job it loads the previous
// export, fetches the re-fetch window, reconciles and saves the result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qepting91/reddit-export/internal/domain"
	"github.com/qepting91/reddit-export/internal/logger"
	"github.com/qepting91/reddit-export/internal/reconcile"
	"github.com/qepting91/reddit-export/internal/storage"
)

// Job is one target to export.
type Job struct {
	Query domain.Query
	// Previous is the path of an earlier export of the same query. Empty
	// means a full export.
	Previous string
}

type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Row reports the outcome of one job.
type Row struct {
	Target    string
	Fetched   int
	Kept      int
	Discarded int
	Replaced  int
	Total     int
	File      string
	Status    Status
	Err       error
}

// Summary is the outcome of a run.
type Summary struct {
	RunID    string
	Rows     []Row
	Duration time.Duration
}

// Failed reports whether any job did not produce an export.
func (s Summary) Failed() bool {
	for _, r := range s.Rows {
		if r.Status != StatusOK {
			return true
		}
	}
	return false
}

// Runner runs jobs one after the other against a single collector.
type Runner struct {
	Collector domain.Collector
	OutDir    string
	Format    storage.Format
	// Window is how far back settled records are re-fetched.
	Window time.Duration
	// Backfill switches from the incremental merge to appending the ids
	// missing from the previous export.
	Backfill bool
	Now      func() time.Time
}

// Run processes jobs in order. Fetch failures are recorded in the summary
// and the next job is tried; a malformed previous export, a reconcile error
// or a failed save stops the run and is returned.
func (r *Runner) Run(ctx context.Context, jobs []Job) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	ctx = logger.Ctx(ctx, slog.String("run_id", sum.RunID))

	slog.InfoContext(ctx, "Starting export run", "jobs", len(jobs), "backfill", r.Backfill)
	for _, job := range jobs {
		jctx := logger.Ctx(ctx, slog.String("target", job.Query.String()))
		row, err := r.runJob(jctx, job)
		sum.Rows = append(sum.Rows, row)
		if err != nil {
			sum.Duration = time.Since(start)
			slog.ErrorContext(jctx, "Run aborted", "err", err)
			return sum, err
		}
	}
	sum.Duration = time.Since(start)
	return sum, nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) format() storage.Format {
	if r.Format == "" {
		return storage.FormatCSV
	}
	return r.Format
}

// runJob returns a non-nil error only when the whole run must stop.
func (r *Runner) runJob(ctx context.Context, job Job) (Row, error) {
	q := job.Query
	row := Row{Target: q.String(), Status: StatusFailed}
	now := r.now()

	var previous *domain.Dataset
	if job.Previous != "" {
		ds, err := loadPrevious(job.Previous)
		if err != nil {
			row.Err = err
			return row, err
		}
		previous = &ds
	}
	if r.Backfill && previous == nil {
		err := fmt.Errorf("backfill %s: a previous export is required", q)
		row.Err = err
		return row, err
	}

	if previous != nil {
		newest, err := reconcile.MaxTimestamp(*previous)
		if err != nil {
			err = withPath(err, job.Previous)
			row.Err = err
			return row, err
		}
		if r.Backfill {
			q.Until = backfillEnd(job.Previous, newest)
		} else {
			q.Since = reconcile.Boundary(newest, now, r.Window)
			q.Until = time.Time{}
		}
		slog.InfoContext(ctx, "Loaded previous export",
			"file", job.Previous, "records", previous.Len(), "since", q.Since, "until", q.Until)
	}

	fresh, err := r.Collector.Fetch(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			row.Err = err
			return row, err
		}
		row.Err = err
		if domain.IsPermanent(err) {
			row.Status = StatusSkipped
			slog.WarnContext(ctx, "Target skipped", "err", err)
		} else {
			slog.ErrorContext(ctx, "Fetch failed, export left untouched", "err", err)
		}
		return row, nil
	}
	row.Fetched = fresh.Len()
	slog.InfoContext(ctx, "Fetched batch", "records", fresh.Len())

	if previous == nil && fresh.Len() == 0 {
		row.Status = StatusSkipped
		row.Err = domain.Permanent(fmt.Errorf("%s: %w", q, domain.ErrNoContent))
		slog.WarnContext(ctx, "Target skipped", "err", row.Err)
		return row, nil
	}

	var out domain.Dataset
	if r.Backfill {
		merged, added, err := reconcile.Backfill(*previous, fresh)
		if err != nil {
			err = withPath(err, job.Previous)
			row.Err = err
			return row, err
		}
		out = merged
		row.Kept = previous.Len()
		row.Fetched = added
	} else {
		res, err := reconcile.Reconcile(previous, q.Since, fresh)
		if err != nil {
			err = withPath(err, job.Previous)
			row.Err = err
			return row, err
		}
		out = res.Dataset
		row.Kept, row.Discarded, row.Replaced = res.Kept, res.Discarded, res.Replaced
	}
	row.Total = out.Len()

	path := storage.ExportPath(r.OutDir, job.Query, now, r.format())
	if err := storage.Save(out, path); err != nil {
		err = fmt.Errorf("save %s: %w", path, err)
		row.Err = err
		return row, err
	}
	row.File = path
	row.Status = StatusOK
	slog.InfoContext(ctx, "Export written", "file", path, "records", row.Total,
		"kept", row.Kept, "discarded", row.Discarded, "replaced", row.Replaced)
	return row, nil
}

func loadPrevious(path string) (domain.Dataset, error) {
	ds, err := storage.Load(path)
	if err != nil {
		return domain.Dataset{}, &domain.MalformedExportError{Path: path, Err: err}
	}
	return ds, nil
}

// backfillEnd is where the previous export stopped: the end stamped in its
// file name, else just after its newest record.
func backfillEnd(path string, newest time.Time) time.Time {
	if name, ok := storage.ParseExportName(path); ok {
		return name.End
	}
	if newest.IsZero() {
		return time.Time{}
	}
	return newest.Add(time.Second)
}

func withPath(err error, path string) error {
	var m *domain.MalformedExportError
	if errors.As(err, &m) && m.Path == "" {
		m.Path = path
	}
	return err
}
