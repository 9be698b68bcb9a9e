package domain

import (
	"context"
	"fmt"
	"time"
)

// Kind is the type of content a query returns.
type Kind string

const (
	KindPosts    Kind = "posts"
	KindComments Kind = "comments"
)

// Selector picks what Target names.
type Selector string

const (
	ByID        Selector = "id"
	ByAuthor    Selector = "author"
	BySubreddit Selector = "subreddit"
	ByTerm      Selector = "term"
)

// Query describes one fetch against a Collector.
type Query struct {
	Kind     Kind
	Selector Selector
	// Target is the id, author, subreddit or search term. By-id post
	// queries accept a comma-separated list.
	Target string
	// Subreddit restricts term searches when set.
	Subreddit string
	// Since and Until bound created_utc to [Since, Until); zero means open.
	Since time.Time
	Until time.Time
}

func (q Query) String() string {
	s := fmt.Sprintf("%s by %s %q", q.Kind, q.Selector, q.Target)
	if q.Subreddit != "" {
		s += " in r/" + q.Subreddit
	}
	return s
}

// Contains reports whether t falls inside the query time range.
func (q Query) Contains(t time.Time) bool {
	if !q.Since.IsZero() && t.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !t.Before(q.Until) {
		return false
	}
	return true
}

// Validate checks that the selector makes sense for the kind.
func (q Query) Validate() error {
	if q.Target == "" {
		return fmt.Errorf("query %s: empty target", q.Selector)
	}
	switch q.Kind {
	case KindPosts, KindComments:
	default:
		return fmt.Errorf("unknown kind %q", q.Kind)
	}
	switch q.Selector {
	case ByID, ByAuthor, BySubreddit, ByTerm:
	default:
		return fmt.Errorf("unknown selector %q", q.Selector)
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && !q.Since.Before(q.Until) {
		return fmt.Errorf("query %s: empty time range", q.Target)
	}
	return nil
}

// Collector defines the interface for data fetching. Fetch returns either a
// complete batch or an error, never a partial batch with a nil error.
type Collector interface {
	Fetch(ctx context.Context, q Query) (Dataset, error)
}
