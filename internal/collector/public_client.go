package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qepting91/reddit-export/internal/domain"
)

const publicBaseURL = "https://www.reddit.com"

// PublicClient reads the unauthenticated .json endpoints.
type PublicClient struct {
	opts      options
	userAgent string
}

func NewPublicClient(userAgent string, opts ...Option) (*PublicClient, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("public client needs a user agent")
	}
	return &PublicClient{
		// Public JSON Limit: 1 req / 2 seconds (Stricter)
		opts:      newOptions(publicBaseURL, 2*time.Second, opts),
		userAgent: userAgent,
	}, nil
}

func (pc *PublicClient) Fetch(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	if err := q.Validate(); err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}

	switch {
	case q.Kind == domain.KindComments && q.Selector == domain.ByID:
		return pc.fetchThread(ctx, q)
	case q.Kind == domain.KindPosts && q.Selector == domain.ByID:
		return pc.fetchByID(ctx, q)
	case q.Kind == domain.KindComments && q.Selector == domain.ByTerm:
		return domain.Dataset{}, domain.Permanent(fmt.Errorf("public endpoints cannot search comments; use archive mode"))
	}

	path, params := pc.listingPath(q)
	things, err := pc.paginate(ctx, q, path, params)
	if err != nil {
		return domain.Dataset{}, err
	}
	if q.Kind == domain.KindComments {
		comments := make([]domain.Comment, 0, len(things))
		for _, t := range things {
			comments = append(comments, t.comment())
		}
		return commentsDataset(q, comments), nil
	}
	posts := make([]domain.Post, 0, len(things))
	for _, t := range things {
		posts = append(posts, t.post())
	}
	return postsDataset(q, posts), nil
}

func (pc *PublicClient) listingPath(q domain.Query) (string, url.Values) {
	params := url.Values{}
	switch q.Selector {
	case domain.BySubreddit:
		return fmt.Sprintf("/r/%s/new.json", url.PathEscape(q.Target)), params
	case domain.ByAuthor:
		params.Set("sort", "new")
		if q.Kind == domain.KindComments {
			return fmt.Sprintf("/user/%s/comments.json", url.PathEscape(q.Target)), params
		}
		return fmt.Sprintf("/user/%s/submitted.json", url.PathEscape(q.Target)), params
	default:
		params.Set("q", q.Target)
		params.Set("sort", "new")
		params.Set("type", "link")
		if q.Subreddit != "" {
			params.Set("restrict_sr", "1")
			return fmt.Sprintf("/r/%s/search.json", url.PathEscape(q.Subreddit)), params
		}
		return "/search.json", params
	}
}

// paginate follows the after cursor of a newest-first listing until it runs
// out or reaches items older than q.Since.
func (pc *PublicClient) paginate(ctx context.Context, q domain.Query, path string, params url.Values) ([]thing, error) {
	var out []thing
	after := ""
	for page := 0; page < maxPages; page++ {
		p := url.Values{}
		for k, v := range params {
			p[k] = v
		}
		// Listings cap at 100 per page.
		p.Set("limit", strconv.Itoa(min(pc.opts.pageSize, 100)))
		p.Set("raw_json", "1")
		if after != "" {
			p.Set("after", after)
		}

		var l listing
		if err := pc.get(ctx, path, p, &l); err != nil {
			return nil, err
		}
		reachedSince := false
		for _, c := range l.Data.Children {
			out = append(out, c.Data)
			if !q.Since.IsZero() && !c.Data.Stickied && unixTime(c.Data.CreatedUTC).Before(q.Since) {
				reachedSince = true
			}
		}
		if reachedSince {
			return out, nil
		}
		if l.Data.After == "" || len(l.Data.Children) == 0 {
			if err := listingExhausted(path, q.Since, len(out)); err != nil {
				return nil, err
			}
			return out, nil
		}
		after = l.Data.After
	}
	return nil, domain.Transient(fmt.Errorf("%s: gave up after %d pages", path, maxPages))
}

func (pc *PublicClient) fetchByID(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	ids, err := splitIDs(q.Target)
	if err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}

	var posts []domain.Post
	for start := 0; start < len(ids); start += 100 {
		end := min(start+100, len(ids))
		names := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			names = append(names, "t3_"+id)
		}
		var l listing
		path := "/by_id/" + strings.Join(names, ",") + ".json"
		if err := pc.get(ctx, path, url.Values{"raw_json": {"1"}}, &l); err != nil {
			return domain.Dataset{}, err
		}
		for _, c := range l.Data.Children {
			posts = append(posts, c.Data.post())
		}
	}
	if len(posts) == 0 {
		return domain.Dataset{}, domain.Permanent(fmt.Errorf("posts %s: %w", q.Target, domain.ErrNoContent))
	}
	return postsDataset(q, posts), nil
}

func (pc *PublicClient) fetchThread(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	id, err := PostIDFromURL(q.Target)
	if err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}

	// Reddit returns [postListing, commentListing]
	var listings []listing
	params := url.Values{"limit": {"500"}, "raw_json": {"1"}}
	if err := pc.get(ctx, "/comments/"+id+".json", params, &listings); err != nil {
		return domain.Dataset{}, err
	}
	if len(listings) < 2 || len(listings[0].Data.Children) == 0 {
		return domain.Dataset{}, domain.Permanent(fmt.Errorf("post %s: %w", id, domain.ErrNoContent))
	}

	post := listings[0].Data.Children[0].Data
	comments, stubs := flattenComments(&listings[1], post.Title, post.Author)
	more, err := pc.expandMore(ctx, id, post, stubs)
	if err != nil {
		return domain.Dataset{}, err
	}
	comments = append(comments, more...)
	for i := range comments {
		if comments[i].LinkID == "" {
			comments[i].LinkID = "t3_" + id
		}
	}
	return commentsDataset(q, comments), nil
}

// moreChildrenBatch is the most ids /api/morechildren takes in one call.
const moreChildrenBatch = 100

type moreChildrenResponse struct {
	JSON struct {
		Errors []json.RawMessage `json:"errors"`
		Data   struct {
			Things []child `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// expandMore resolves "more" stubs until none are left. It fails rather than
// return a thread with holes in it.
func (pc *PublicClient) expandMore(ctx context.Context, id string, post thing, queue []moreStub) ([]domain.Comment, error) {
	var out []domain.Comment
	for round := 0; len(queue) > 0; round++ {
		if round >= maxMoreRounds {
			missing := 0
			for _, s := range queue {
				missing += max(s.Count, len(s.Children))
			}
			return nil, incompleteThread(id, missing)
		}
		stub := queue[0]
		queue = queue[1:]

		var got []domain.Comment
		var nested []moreStub
		var err error
		switch {
		case len(stub.Children) > 0:
			batch := stub.Children
			if len(batch) > moreChildrenBatch {
				rest := stub
				rest.Children = batch[moreChildrenBatch:]
				queue = append(queue, rest)
				batch = batch[:moreChildrenBatch]
			}
			got, nested, err = pc.moreChildren(ctx, id, post, batch)
		case strings.HasPrefix(stub.ParentID, "t1_"):
			got, nested, err = pc.continueThread(ctx, id, post, stub)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
		queue = append(queue, nested...)
	}
	return out, nil
}

func (pc *PublicClient) moreChildren(ctx context.Context, id string, post thing, ids []string) ([]domain.Comment, []moreStub, error) {
	var resp moreChildrenResponse
	params := url.Values{
		"api_type": {"json"},
		"link_id":  {"t3_" + id},
		"children": {strings.Join(ids, ",")},
		"raw_json": {"1"},
	}
	if err := pc.get(ctx, "/api/morechildren.json", params, &resp); err != nil {
		return nil, nil, err
	}
	if len(resp.JSON.Errors) > 0 {
		return nil, nil, domain.Transient(fmt.Errorf("post %s: morechildren: %s: %w",
			id, resp.JSON.Errors[0], domain.ErrIncomplete))
	}
	var l listing
	l.Data.Children = resp.JSON.Data.Things
	comments, stubs := flattenComments(&l, post.Title, post.Author)
	return comments, stubs, nil
}

// continueThread loads the page behind a "continue this thread" link and
// returns the replies under the stub's parent.
func (pc *PublicClient) continueThread(ctx context.Context, id string, post thing, stub moreStub) ([]domain.Comment, []moreStub, error) {
	parent := strings.TrimPrefix(stub.ParentID, "t1_")
	var listings []listing
	params := url.Values{"limit": {"500"}, "raw_json": {"1"}}
	if err := pc.get(ctx, "/comments/"+id+"/_/"+parent+".json", params, &listings); err != nil {
		return nil, nil, err
	}
	if len(listings) < 2 {
		return nil, nil, incompleteThread(id, stub.Count)
	}
	for _, c := range listings[1].Data.Children {
		if c.Kind != "t1" || c.Data.ID != parent {
			continue
		}
		comments, stubs := flattenComments(c.Data.replies(), post.Title, post.Author)
		// the continuation page numbers depth from its own root
		shift := stub.Depth - c.Data.Depth - 1
		for i := range comments {
			comments[i].Depth += shift
		}
		for i := range stubs {
			stubs[i].Depth += shift
		}
		return comments, stubs, nil
	}
	return nil, nil, incompleteThread(id, stub.Count)
}

func (pc *PublicClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := pc.opts.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return pc.opts.do(ctx, path, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return domain.Permanent(err)
		}
		req.Header.Set("User-Agent", pc.userAgent)

		resp, err := pc.opts.httpClient.Do(req)
		if err != nil {
			return domain.Transient(err)
		}
		defer resp.Body.Close()

		if err := statusError(resp.StatusCode, "reddit public access "+path); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.Transient(fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	})
}
