package collector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"

	"github.com/qepting91/reddit-export/internal/domain"
)

// APIClient reads through the authenticated OAuth API.
type APIClient struct {
	client *reddit.Client
	opts   options
}

func NewAPIClient(id, secret, user, pass, userAgent string, opts ...Option) (*APIClient, error) {
	creds := reddit.Credentials{ID: id, Secret: secret, Username: user, Password: pass}

	o := newOptions("", time.Second, opts)
	ropts := []reddit.Opt{reddit.WithUserAgent(userAgent), reddit.WithHTTPClient(o.httpClient)}
	if o.baseURL != "" {
		ropts = append(ropts, reddit.WithBaseURL(o.baseURL), reddit.WithTokenURL(strings.TrimSuffix(o.baseURL, "/")+"/api/v1/access_token"))
	}
	client, err := reddit.NewClient(creds, ropts...)
	if err != nil {
		return nil, err
	}

	// API Rate Limit: ~60 reqs/min (safe buffer)
	return &APIClient{client: client, opts: o}, nil
}

func (ac *APIClient) Fetch(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	if err := q.Validate(); err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}

	switch {
	case q.Kind == domain.KindPosts && q.Selector == domain.ByID:
		return ac.fetchPostsByID(ctx, q)
	case q.Kind == domain.KindComments && q.Selector == domain.ByID:
		return ac.fetchThread(ctx, q)
	case q.Kind == domain.KindComments && q.Selector == domain.ByAuthor:
		return ac.fetchUserComments(ctx, q)
	case q.Kind == domain.KindComments:
		return domain.Dataset{}, domain.Permanent(fmt.Errorf("api mode cannot fetch %s; use archive mode", q))
	}

	var posts []domain.Post
	after := ""
	for page := 0; page < maxPages; page++ {
		var batch []*reddit.Post
		var resp *reddit.Response
		err := ac.opts.do(ctx, q.String(), func(ctx context.Context) error {
			var err error
			batch, resp, err = ac.listPosts(ctx, q, after)
			return classifyAPIError(err)
		})
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("authenticated api error: %w", err)
		}

		reachedSince := false
		for _, p := range batch {
			post := postFromAPI(p)
			posts = append(posts, post)
			if !q.Since.IsZero() && !post.Stickied && post.Created.Before(q.Since) {
				reachedSince = true
			}
		}
		if reachedSince {
			return postsDataset(q, posts), nil
		}
		if resp == nil || resp.After == "" || len(batch) == 0 {
			if err := listingExhausted(q.String(), q.Since, len(posts)); err != nil {
				return domain.Dataset{}, err
			}
			return postsDataset(q, posts), nil
		}
		after = resp.After
	}
	return domain.Dataset{}, domain.Transient(fmt.Errorf("%s: gave up after %d pages", q, maxPages))
}

func (ac *APIClient) listPosts(ctx context.Context, q domain.Query, after string) ([]*reddit.Post, *reddit.Response, error) {
	list := reddit.ListOptions{Limit: min(ac.opts.pageSize, 100), After: after}
	switch q.Selector {
	case domain.BySubreddit:
		return ac.client.Subreddit.NewPosts(ctx, q.Target, &list)
	case domain.ByAuthor:
		return ac.client.User.PostsOf(ctx, q.Target, &reddit.ListUserOverviewOptions{ListOptions: list, Sort: "new"})
	default:
		return ac.client.Subreddit.SearchPosts(ctx, q.Target, q.Subreddit, &reddit.ListPostSearchOptions{
			ListPostOptions: reddit.ListPostOptions{ListOptions: list},
			Sort:            "new",
		})
	}
}

func (ac *APIClient) fetchUserComments(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	var comments []domain.Comment
	after := ""
	for page := 0; page < maxPages; page++ {
		var batch []*reddit.Comment
		var resp *reddit.Response
		err := ac.opts.do(ctx, q.String(), func(ctx context.Context) error {
			var err error
			batch, resp, err = ac.client.User.CommentsOf(ctx, q.Target, &reddit.ListUserOverviewOptions{
				ListOptions: reddit.ListOptions{Limit: min(ac.opts.pageSize, 100), After: after},
				Sort:        "new",
			})
			return classifyAPIError(err)
		})
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("authenticated api error: %w", err)
		}

		reachedSince := false
		for _, c := range batch {
			cm := commentFromAPI(c, 0)
			comments = append(comments, cm)
			if !q.Since.IsZero() && cm.Created.Before(q.Since) {
				reachedSince = true
			}
		}
		if reachedSince {
			return commentsDataset(q, comments), nil
		}
		if resp == nil || resp.After == "" || len(batch) == 0 {
			if err := listingExhausted(q.String(), q.Since, len(comments)); err != nil {
				return domain.Dataset{}, err
			}
			return commentsDataset(q, comments), nil
		}
		after = resp.After
	}
	return domain.Dataset{}, domain.Transient(fmt.Errorf("%s: gave up after %d pages", q, maxPages))
}

func (ac *APIClient) fetchPostsByID(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	ids, err := splitIDs(q.Target)
	if err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}
	var posts []domain.Post
	for _, id := range ids {
		pc, err := ac.getPost(ctx, id)
		if err != nil {
			return domain.Dataset{}, err
		}
		posts = append(posts, postFromAPI(pc.Post))
	}
	return postsDataset(q, posts), nil
}

// maxMoreRounds bounds how many "load more comments" calls one thread gets.
const maxMoreRounds = 200

func (ac *APIClient) fetchThread(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	id, err := PostIDFromURL(q.Target)
	if err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}
	pc, err := ac.getPost(ctx, id)
	if err != nil {
		return domain.Dataset{}, err
	}

	for round := 0; pc.HasMore(); round++ {
		pending := len(pc.More.Children)
		if round >= maxMoreRounds {
			return domain.Dataset{}, incompleteThread(id, pending)
		}
		before := treeSize(pc.Comments)
		err := ac.opts.do(ctx, "more comments "+id, func(ctx context.Context) error {
			_, err := ac.client.Post.LoadMoreComments(ctx, pc)
			return classifyAPIError(err)
		})
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("authenticated api error: %w", err)
		}
		if treeSize(pc.Comments) == before {
			return domain.Dataset{}, incompleteThread(id, pending)
		}
	}

	var comments []domain.Comment
	var walk func(cs []*reddit.Comment, depth int) error
	walk = func(cs []*reddit.Comment, depth int) error {
		for _, c := range cs {
			if err := ac.expandReplies(ctx, id, c); err != nil {
				return err
			}
			cm := commentFromAPI(c, depth)
			if pc.Post != nil {
				if cm.LinkTitle == "" {
					cm.LinkTitle = pc.Post.Title
				}
				if cm.LinkAuthor == "" {
					cm.LinkAuthor = pc.Post.Author
				}
			}
			comments = append(comments, cm)
			if err := walk(c.Replies.Comments, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(pc.Comments, 0); err != nil {
		return domain.Dataset{}, err
	}
	return commentsDataset(q, comments), nil
}

// expandReplies loads the "more" stubs under c until none are left.
func (ac *APIClient) expandReplies(ctx context.Context, postID string, c *reddit.Comment) error {
	for round := 0; c.HasMore(); round++ {
		pending := len(c.Replies.More.Children)
		if round >= maxMoreRounds {
			return incompleteThread(postID, pending)
		}
		before := treeSize(c.Replies.Comments)
		err := ac.opts.do(ctx, "more replies "+c.ID, func(ctx context.Context) error {
			_, err := ac.client.Comment.LoadMoreReplies(ctx, c)
			return classifyAPIError(err)
		})
		if err != nil {
			return fmt.Errorf("authenticated api error: %w", err)
		}
		if treeSize(c.Replies.Comments) == before {
			return incompleteThread(postID, pending)
		}
	}
	// "continue this thread" stubs carry no ids to expand
	if m := c.Replies.More; m != nil && m.ID == "_" {
		return incompleteThread(postID, m.Count)
	}
	return nil
}

// treeSize counts the comments in a reply tree. A "load more" call that
// leaves it unchanged dropped the stub without delivering anything.
func treeSize(cs []*reddit.Comment) int {
	n := len(cs)
	for _, c := range cs {
		n += treeSize(c.Replies.Comments)
	}
	return n
}

func (ac *APIClient) getPost(ctx context.Context, id string) (*reddit.PostAndComments, error) {
	var pc *reddit.PostAndComments
	err := ac.opts.do(ctx, "post "+id, func(ctx context.Context) error {
		var err error
		pc, _, err = ac.client.Post.Get(ctx, id)
		return classifyAPIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("authenticated api error: %w", err)
	}
	if pc == nil || pc.Post == nil {
		return nil, domain.Permanent(fmt.Errorf("post %s: %w", id, domain.ErrNoContent))
	}
	return pc, nil
}

// classifyAPIError sorts go-reddit errors into the fetch error taxonomy.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rl *reddit.RateLimitError
	if errors.As(err, &rl) {
		return domain.Transient(err)
	}
	var er *reddit.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		if serr := statusError(er.Response.StatusCode, "reddit api"); serr != nil {
			return fmt.Errorf("%w: %s", serr, er.Message)
		}
		return domain.Permanent(err)
	}
	return domain.Transient(err)
}

func postFromAPI(p *reddit.Post) domain.Post {
	if p == nil {
		return domain.Post{}
	}
	post := domain.Post{
		ID:          p.ID,
		FullID:      p.FullID,
		Title:       p.Title,
		Subreddit:   p.SubredditName,
		Author:      p.Author,
		URL:         p.URL,
		Permalink:   p.Permalink,
		SelfText:    p.Body,
		Score:       p.Score,
		UpvoteRatio: float64(p.UpvoteRatio),
		NumComments: p.NumberOfComments,
		Subscribers: p.SubredditSubscribers,
		NSFW:        p.NSFW,
		Locked:      p.Locked,
		Stickied:    p.Stickied,
	}
	if p.Created != nil {
		post.Created = p.Created.Time.UTC()
	}
	if !p.IsSelfPost {
		post.Domain = hostOf(p.URL)
	} else if p.SubredditName != "" {
		post.Domain = "self." + p.SubredditName
	}
	return post
}

func commentFromAPI(c *reddit.Comment, depth int) domain.Comment {
	if c == nil {
		return domain.Comment{}
	}
	cm := domain.Comment{
		ID:         c.ID,
		FullID:     c.FullID,
		Author:     c.Author,
		Body:       c.Body,
		Score:      c.Score,
		Subreddit:  c.SubredditName,
		LinkID:     c.PostID,
		LinkTitle:  c.PostTitle,
		LinkAuthor: c.PostAuthor,
		ParentID:   c.ParentID,
		Permalink:  c.Permalink,
		Depth:      depth,
	}
	if c.Created != nil {
		cm.Created = c.Created.Time.UTC()
	}
	return cm
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
