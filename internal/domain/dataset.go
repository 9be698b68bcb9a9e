package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Record is one fetched post or comment as a flat field mapping.
type Record map[string]string

// ID returns the identifier field.
func (r Record) ID() string { return r[FieldID] }

// Created parses the creation timestamp (unix seconds, fractional allowed).
func (r Record) Created() (time.Time, error) {
	raw, ok := r[FieldCreated]
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("record %q has no %s", r.ID(), FieldCreated)
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("record %q: bad %s %q: %w", r.ID(), FieldCreated, raw, err)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

// SetCreated writes both the unix timestamp and the readable date.
func (r Record) SetCreated(t time.Time) {
	if t.IsZero() {
		r[FieldCreated] = ""
		r[FieldDate] = ""
		return
	}
	r[FieldCreated] = strconv.FormatInt(t.Unix(), 10)
	r[FieldDate] = t.UTC().Format(time.RFC3339)
}

// Dataset is an ordered collection of Records sharing a column set.
type Dataset struct {
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// HasColumn reports whether name is one of the dataset columns.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// IDs returns the set of identifiers in the dataset.
func (d Dataset) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(d.Records))
	for _, r := range d.Records {
		ids[r.ID()] = struct{}{}
	}
	return ids
}

// SortByCreated orders records by creation time, oldest first. Records with
// an unparsable timestamp sort last in their original order.
func (d Dataset) SortByCreated() {
	keys := make([]float64, len(d.Records))
	for i, r := range d.Records {
		v, err := strconv.ParseFloat(r[FieldCreated], 64)
		if err != nil {
			v = math.Inf(1)
		}
		keys[i] = v
	}
	idx := make([]int, len(d.Records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
	sorted := make([]Record, len(d.Records))
	for i, j := range idx {
		sorted[i] = d.Records[j]
	}
	copy(d.Records, sorted)
}

// UnionColumns returns a's columns followed by the columns of b missing from a.
func UnionColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, cols := range [][]string{a, b} {
		for _, c := range cols {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
