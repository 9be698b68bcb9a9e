package domain

import (
	"strconv"
	"time"
)

// Field names every Record carries.
const (
	FieldID      = "id"
	FieldCreated = "created_utc"
	FieldDate    = "date"
)

// PostColumns is the column order of a flattened Post.
var PostColumns = []string{
	FieldID, "name", "title", FieldCreated, FieldDate, "score", "upvote_ratio",
	"num_comments", "flair", "domain", "selftext", "url", "permalink",
	"author", "author_flair_text", "subreddit", "subreddit_subscribers",
	"nsfw", "locked", "stickied",
}

// CommentColumns is the column order of a flattened Comment.
var CommentColumns = []string{
	FieldID, "name", FieldCreated, FieldDate, "author", "body", "body_length",
	"score", "subreddit", "link_id", "link_title", "link_author", "parent_id",
	"permalink", "depth",
}

// Post is the clean data structure for a submission
type Post struct {
	ID          string
	FullID      string
	Title       string
	Subreddit   string
	Author      string
	AuthorFlair string
	URL         string
	Permalink   string
	Domain      string
	Flair       string
	SelfText    string
	Score       int
	UpvoteRatio float64
	NumComments int
	Subscribers int
	NSFW        bool
	Locked      bool
	Stickied    bool
	Created     time.Time
}

// Comment is the clean data structure for a comment
type Comment struct {
	ID         string
	FullID     string
	Author     string
	Body       string
	Score      int
	Subreddit  string
	LinkID     string
	LinkTitle  string
	LinkAuthor string
	ParentID   string
	Permalink  string
	Depth      int
	Created    time.Time
}

// Record flattens the post into a row keyed by PostColumns.
func (p Post) Record() Record {
	fullID := p.FullID
	if fullID == "" && p.ID != "" {
		fullID = "t3_" + p.ID
	}
	r := Record{
		FieldID:                 p.ID,
		"name":                  fullID,
		"title":                 p.Title,
		"score":                 strconv.Itoa(p.Score),
		"upvote_ratio":          strconv.FormatFloat(p.UpvoteRatio, 'f', -1, 64),
		"num_comments":          strconv.Itoa(p.NumComments),
		"flair":                 p.Flair,
		"domain":                p.Domain,
		"selftext":              p.SelfText,
		"url":                   p.URL,
		"permalink":             absolutePermalink(p.Permalink),
		"author":                p.Author,
		"author_flair_text":     p.AuthorFlair,
		"subreddit":             p.Subreddit,
		"subreddit_subscribers": strconv.Itoa(p.Subscribers),
		"nsfw":                  strconv.FormatBool(p.NSFW),
		"locked":                strconv.FormatBool(p.Locked),
		"stickied":              strconv.FormatBool(p.Stickied),
	}
	r.SetCreated(p.Created)
	return r
}

// Record flattens the comment into a row keyed by CommentColumns.
func (c Comment) Record() Record {
	fullID := c.FullID
	if fullID == "" && c.ID != "" {
		fullID = "t1_" + c.ID
	}
	r := Record{
		FieldID:       c.ID,
		"name":        fullID,
		"author":      c.Author,
		"body":        c.Body,
		"body_length": strconv.Itoa(len([]rune(c.Body))),
		"score":       strconv.Itoa(c.Score),
		"subreddit":   c.Subreddit,
		"link_id":     c.LinkID,
		"link_title":  c.LinkTitle,
		"link_author": c.LinkAuthor,
		"parent_id":   c.ParentID,
		"permalink":   absolutePermalink(c.Permalink),
		"depth":       strconv.Itoa(c.Depth),
	}
	r.SetCreated(c.Created)
	return r
}

// PostDataset flattens posts into a Dataset with PostColumns.
func PostDataset(posts []Post) Dataset {
	ds := Dataset{Columns: append([]string(nil), PostColumns...)}
	for _, p := range posts {
		ds.Records = append(ds.Records, p.Record())
	}
	return ds
}

// CommentDataset flattens comments into a Dataset with CommentColumns.
func CommentDataset(comments []Comment) Dataset {
	ds := Dataset{Columns: append([]string(nil), CommentColumns...)}
	for _, c := range comments {
		ds.Records = append(ds.Records, c.Record())
	}
	return ds
}

func absolutePermalink(p string) string {
	if p == "" || p[0] != '/' {
		return p
	}
	return "https://www.reddit.com" + p
}
