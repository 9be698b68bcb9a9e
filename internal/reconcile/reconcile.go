// Package reconcile merges a previously persisted export with a freshly
// fetched batch so that an export can be refreshed without downloading
// everything again.
package reconcile

import (
	"fmt"
	"time"

	"github.com/qepting91/reddit-export/internal/domain"
)

// DefaultWindow is how long after creation a record's score may still move.
const DefaultWindow = 600000 * time.Second

// Result is a reconciled dataset plus what happened to the previous records.
type Result struct {
	Dataset domain.Dataset
	// Kept is the number of previous records carried over as-is.
	Kept int
	// Discarded counts previous records at or after the boundary.
	Discarded int
	// Replaced counts previous records older than the boundary whose id was
	// fetched again.
	Replaced int
	Fresh    int
}

// Reconcile returns the dataset to persist next. Previous records strictly
// older than boundary are kept unless fresh carries the same id; everything
// at or after boundary is superseded by fresh. A nil previous yields fresh
// exactly as given; otherwise fresh must carry an id on every record and a
// repeated id keeps its last occurrence.
func Reconcile(previous *domain.Dataset, boundary time.Time, fresh domain.Dataset) (Result, error) {
	if previous == nil {
		return Result{Dataset: fresh, Fresh: fresh.Len()}, nil
	}
	fresh, err := dedupeFresh(fresh)
	if err != nil {
		return Result{}, err
	}
	if err := requireColumns(*previous); err != nil {
		return Result{}, err
	}

	freshIDs := fresh.IDs()
	res := Result{Fresh: fresh.Len()}
	merged := domain.Dataset{Columns: domain.UnionColumns(previous.Columns, fresh.Columns)}
	for _, r := range previous.Records {
		created, err := r.Created()
		if err != nil {
			return Result{}, &domain.MalformedExportError{Err: err}
		}
		if !created.Before(boundary) {
			res.Discarded++
			continue
		}
		if _, ok := freshIDs[r.ID()]; ok {
			res.Replaced++
			continue
		}
		merged.Records = append(merged.Records, r)
	}
	res.Kept = len(merged.Records)
	merged.Records = append(merged.Records, fresh.Records...)
	res.Dataset = merged
	return res, nil
}

// Boundary picks the retention boundary for an incremental run: the earlier
// of the previous export's newest record and now minus window. It is never
// the later of the two, since records created between the previous export's
// newest record and now minus window would then be neither kept nor fetched.
// A zero previousMax yields now minus window.
func Boundary(previousMax, now time.Time, window time.Duration) time.Time {
	settled := now.Add(-window)
	if previousMax.IsZero() || settled.Before(previousMax) {
		return settled
	}
	return previousMax
}

// MaxTimestamp returns the newest created_utc in ds, or the zero time when
// ds is empty.
func MaxTimestamp(ds domain.Dataset) (time.Time, error) {
	var newest time.Time
	for _, r := range ds.Records {
		t, err := r.Created()
		if err != nil {
			return time.Time{}, &domain.MalformedExportError{Err: err}
		}
		if t.After(newest) {
			newest = t
		}
	}
	return newest, nil
}

// Backfill appends the fresh records whose id is missing from previous and
// returns the result ordered by creation time along with how many were added.
func Backfill(previous, fresh domain.Dataset) (domain.Dataset, int, error) {
	if err := requireColumns(previous); err != nil {
		return domain.Dataset{}, 0, err
	}
	fresh, err := dedupeFresh(fresh)
	if err != nil {
		return domain.Dataset{}, 0, err
	}

	have := previous.IDs()
	out := domain.Dataset{
		Columns: domain.UnionColumns(previous.Columns, fresh.Columns),
		Records: append([]domain.Record(nil), previous.Records...),
	}
	added := 0
	for _, r := range fresh.Records {
		if _, ok := have[r.ID()]; ok {
			continue
		}
		out.Records = append(out.Records, r)
		added++
	}
	out.SortByCreated()
	return out, added, nil
}

func requireColumns(ds domain.Dataset) error {
	for _, col := range []string{domain.FieldID, domain.FieldCreated} {
		if !ds.HasColumn(col) {
			return &domain.MalformedExportError{Err: fmt.Errorf("missing column %q", col)}
		}
	}
	return nil
}

// dedupeFresh keeps the last occurrence of each id, in first-seen order.
func dedupeFresh(fresh domain.Dataset) (domain.Dataset, error) {
	pos := make(map[string]int, len(fresh.Records))
	out := domain.Dataset{Columns: fresh.Columns}
	for i, r := range fresh.Records {
		id := r.ID()
		if id == "" {
			return domain.Dataset{}, fmt.Errorf("fresh record %d has no %s", i, domain.FieldID)
		}
		if j, ok := pos[id]; ok {
			out.Records[j] = r
			continue
		}
		pos[id] = len(out.Records)
		out.Records = append(out.Records, r)
	}
	return out, nil
}
