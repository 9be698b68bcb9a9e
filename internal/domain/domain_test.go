package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRecord(t *testing.T) {
	created := time.Date(2017, 9, 28, 12, 0, 0, 0, time.UTC)
	r := Post{
		ID:          "736ghk",
		Title:       "AMA",
		Subreddit:   "france",
		Permalink:   "/r/france/comments/736ghk/ama/",
		Score:       42,
		UpvoteRatio: 0.97,
		Created:     created,
	}.Record()

	assert.Equal(t, "736ghk", r.ID())
	assert.Equal(t, "t3_736ghk", r["name"])
	assert.Equal(t, "https://www.reddit.com/r/france/comments/736ghk/ama/", r["permalink"])
	assert.Equal(t, "0.97", r["upvote_ratio"])
	assert.Equal(t, "1506600000", r[FieldCreated])
	assert.Equal(t, "2017-09-28T12:00:00Z", r[FieldDate])
	assert.Equal(t, "false", r["nsfw"])

	for _, c := range PostColumns {
		assert.Contains(t, r, c)
	}
}

func TestCommentRecord(t *testing.T) {
	r := Comment{ID: "c1", Body: "café", Permalink: "https://example.com/x", Depth: 2}.Record()

	assert.Equal(t, "t1_c1", r["name"])
	assert.Equal(t, "4", r["body_length"])
	assert.Equal(t, "https://example.com/x", r["permalink"])
	assert.Equal(t, "2", r["depth"])
	assert.Equal(t, "", r[FieldCreated])

	for _, c := range CommentColumns {
		assert.Contains(t, r, c)
	}
}

func TestRecordCreated(t *testing.T) {
	got, err := Record{FieldCreated: "1506600000.5"}.Created()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1506600000, 5e8).UTC(), got)

	_, err = Record{FieldID: "x"}.Created()
	assert.Error(t, err)

	_, err = Record{FieldID: "x", FieldCreated: "yesterday"}.Created()
	assert.Error(t, err)
}

func TestDatasetSortByCreated(t *testing.T) {
	ds := Dataset{
		Columns: []string{FieldID, FieldCreated},
		Records: []Record{
			{FieldID: "c", FieldCreated: "30"},
			{FieldID: "bad", FieldCreated: "?"},
			{FieldID: "a", FieldCreated: "10"},
			{FieldID: "b", FieldCreated: "10"},
		},
	}
	ds.SortByCreated()

	var ids []string
	for _, r := range ds.Records {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"a", "b", "c", "bad"}, ids)
	assert.True(t, ds.HasColumn(FieldCreated))
	assert.False(t, ds.HasColumn("title"))
	assert.Len(t, ds.IDs(), 4)
}

func TestUnionColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "created_utc", "title", "score"},
		UnionColumns([]string{"id", "created_utc", "title"}, []string{"id", "score", "created_utc"}),
	)
	assert.Empty(t, UnionColumns(nil, nil))
}

func TestQuery(t *testing.T) {
	q := Query{Kind: KindPosts, Selector: ByTerm, Target: "golang", Subreddit: "programming",
		Since: time.Unix(100, 0), Until: time.Unix(200, 0)}
	require.NoError(t, q.Validate())
	assert.Equal(t, `posts by term "golang" in r/programming`, q.String())

	assert.True(t, q.Contains(time.Unix(100, 0)))
	assert.True(t, q.Contains(time.Unix(199, 0)))
	assert.False(t, q.Contains(time.Unix(200, 0)))
	assert.False(t, q.Contains(time.Unix(99, 0)))

	tests := []struct {
		name string
		q    Query
	}{
		{"empty target", Query{Kind: KindPosts, Selector: ByID}},
		{"bad kind", Query{Kind: "votes", Selector: ByID, Target: "x"}},
		{"bad selector", Query{Kind: KindPosts, Selector: "flair", Target: "x"}},
		{"empty range", Query{Kind: KindPosts, Selector: ByID, Target: "x", Since: time.Unix(5, 0), Until: time.Unix(5, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.q.Validate())
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	transient := fmt.Errorf("fetch r/golang: %w", Transient(errors.New("http 503")))
	permanent := fmt.Errorf("fetch r/gone: %w", Permanent(ErrNoContent))
	malformed := &MalformedExportError{Path: "old.csv", Err: errors.New("missing id column")}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsPermanent(transient))
	assert.True(t, IsPermanent(permanent))
	assert.ErrorIs(t, permanent, ErrNoContent)
	assert.True(t, IsMalformed(malformed))
	assert.Equal(t, "malformed export old.csv: missing id column", malformed.Error())
	assert.False(t, IsMalformed(transient))
}
