package collector

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/qepting91/reddit-export/internal/domain"
)

// Reddit JSON listing types, shared by the public endpoints and the archive
// search API (which uses the same field names).

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []child `json:"children"`
	} `json:"data"`
}

type child struct {
	Kind string `json:"kind"`
	Data thing  `json:"data"`
}

type thing struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Title                string          `json:"title"`
	SelfText             string          `json:"selftext"`
	Body                 string          `json:"body"`
	Author               string          `json:"author"`
	AuthorFlairText      string          `json:"author_flair_text"`
	Subreddit            string          `json:"subreddit"`
	URL                  string          `json:"url"`
	Permalink            string          `json:"permalink"`
	Domain               string          `json:"domain"`
	LinkFlairText        string          `json:"link_flair_text"`
	Score                int             `json:"score"`
	UpvoteRatio          float64         `json:"upvote_ratio"`
	NumComments          int             `json:"num_comments"`
	SubredditSubscribers int             `json:"subreddit_subscribers"`
	Over18               bool            `json:"over_18"`
	Locked               bool            `json:"locked"`
	Stickied             bool            `json:"stickied"`
	CreatedUTC           float64         `json:"created_utc"`
	LinkID               string          `json:"link_id"`
	LinkTitle            string          `json:"link_title"`
	LinkAuthor           string          `json:"link_author"`
	ParentID             string          `json:"parent_id"`
	Depth                int             `json:"depth"`
	Count                int             `json:"count"`
	Replies              json.RawMessage `json:"replies"`
	Children             []string        `json:"children"`
}

func unixTime(secs float64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func (t thing) post() domain.Post {
	return domain.Post{
		ID:          t.ID,
		FullID:      t.Name,
		Title:       t.Title,
		Subreddit:   t.Subreddit,
		Author:      t.Author,
		AuthorFlair: t.AuthorFlairText,
		URL:         t.URL,
		Permalink:   t.Permalink,
		Domain:      t.Domain,
		Flair:       t.LinkFlairText,
		SelfText:    t.SelfText,
		Score:       t.Score,
		UpvoteRatio: t.UpvoteRatio,
		NumComments: t.NumComments,
		Subscribers: t.SubredditSubscribers,
		NSFW:        t.Over18,
		Locked:      t.Locked,
		Stickied:    t.Stickied,
		Created:     unixTime(t.CreatedUTC),
	}
}

func (t thing) comment() domain.Comment {
	return domain.Comment{
		ID:         t.ID,
		FullID:     t.Name,
		Author:     t.Author,
		Body:       t.Body,
		Score:      t.Score,
		Subreddit:  t.Subreddit,
		LinkID:     t.LinkID,
		LinkTitle:  t.LinkTitle,
		LinkAuthor: t.LinkAuthor,
		ParentID:   t.ParentID,
		Permalink:  t.Permalink,
		Depth:      t.Depth,
		Created:    unixTime(t.CreatedUTC),
	}
}

// replies decodes a nested reply listing. Reddit sends "" when there are none.
func (t thing) replies() *listing {
	if len(t.Replies) == 0 || t.Replies[0] != '{' {
		return nil
	}
	var l listing
	if err := json.Unmarshal(t.Replies, &l); err != nil {
		return nil
	}
	return &l
}

// moreStub is a "more" node left in a comment tree. Stubs without children
// are "continue this thread" links to a deeper page.
type moreStub struct {
	ParentID string
	Depth    int
	Count    int
	Children []string
}

// flattenComments walks a comment tree depth-first. It returns the comments
// and the unexpanded "more" stubs it met.
func flattenComments(l *listing, linkTitle, linkAuthor string) ([]domain.Comment, []moreStub) {
	if l == nil {
		return nil, nil
	}
	var out []domain.Comment
	var stubs []moreStub
	for _, c := range l.Data.Children {
		switch c.Kind {
		case "t1":
			cm := c.Data.comment()
			if cm.LinkTitle == "" {
				cm.LinkTitle = linkTitle
			}
			if cm.LinkAuthor == "" {
				cm.LinkAuthor = linkAuthor
			}
			out = append(out, cm)
			nested, more := flattenComments(c.Data.replies(), linkTitle, linkAuthor)
			out = append(out, nested...)
			stubs = append(stubs, more...)
		case "more":
			stubs = append(stubs, moreStub{
				ParentID: c.Data.ParentID,
				Depth:    c.Data.Depth,
				Count:    c.Data.Count,
				Children: c.Data.Children,
			})
		}
	}
	return out, stubs
}

// uniqueByID drops repeated ids, keeping the first. Listings shift while
// they are paged, so the same item can show up on two pages.
func uniqueByID[T any](items []T, id func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	var out []T
	for _, it := range items {
		k := id(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// postsDataset keeps the posts inside the query range, oldest first.
func postsDataset(q domain.Query, posts []domain.Post) domain.Dataset {
	var kept []domain.Post
	for _, p := range uniqueByID(posts, func(p domain.Post) string { return p.ID }) {
		if q.Contains(p.Created) {
			kept = append(kept, p)
		}
	}
	ds := domain.PostDataset(kept)
	ds.SortByCreated()
	return ds
}

// commentsDataset keeps the comments inside the query range, oldest first.
func commentsDataset(q domain.Query, comments []domain.Comment) domain.Dataset {
	var kept []domain.Comment
	for _, c := range uniqueByID(comments, func(c domain.Comment) string { return c.ID }) {
		if q.Contains(c.Created) {
			kept = append(kept, c)
		}
	}
	ds := domain.CommentDataset(kept)
	ds.SortByCreated()
	return ds
}

func incompleteThread(postID string, missing int) error {
	return domain.Transient(fmt.Errorf("post %s: %d comments could not be expanded: %w", postID, missing, domain.ErrIncomplete))
}
