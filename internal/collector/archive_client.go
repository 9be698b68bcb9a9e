package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/qepting91/reddit-export/internal/domain"
)

// ArchiveClient searches a Pushshift-compatible historical archive. Unlike
// the live listings it can reach arbitrarily old content and search
// comments, paging backwards by creation time.
type ArchiveClient struct {
	http *resty.Client
	opts options
}

type archiveResponse struct {
	Data []thing `json:"data"`
}

func NewArchiveClient(baseURL, userAgent string, opts ...Option) *ArchiveClient {
	// Archive mirrors are small; 1 req / second
	o := newOptions(baseURL, time.Second, opts)

	client := resty.NewWithClient(o.httpClient)
	client.SetBaseURL(strings.TrimSuffix(o.baseURL, "/"))
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	client.SetHeader("Accept", "application/json")

	return &ArchiveClient{http: client, opts: o}
}

func (a *ArchiveClient) Fetch(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	if err := q.Validate(); err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}

	endpoint := "/reddit/search/submission/"
	if q.Kind == domain.KindComments {
		endpoint = "/reddit/search/comment/"
	}
	params, err := archiveParams(q)
	if err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}

	var things []thing
	if q.Kind == domain.KindPosts && q.Selector == domain.ByID {
		things, err = a.byID(ctx, endpoint, params)
	} else {
		things, err = a.paginate(ctx, q, endpoint, params)
	}
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

func archiveParams(q domain.Query) (map[string]string, error) {
	params := map[string]string{
		"sort":      "desc",
		"sort_type": "created_utc",
	}
	switch q.Selector {
	case domain.BySubreddit:
		params["subreddit"] = q.Target
	case domain.ByAuthor:
		params["author"] = q.Target
	case domain.ByTerm:
		params["q"] = q.Target
		if q.Subreddit != "" {
			params["subreddit"] = q.Subreddit
		}
	case domain.ByID:
		ids, err := splitIDs(q.Target)
		if err != nil {
			return nil, err
		}
		if q.Kind == domain.KindComments {
			if len(ids) != 1 {
				return nil, fmt.Errorf("comments by post take a single post id, got %d", len(ids))
			}
			params["link_id"] = ids[0]
		} else {
			params["ids"] = strings.Join(ids, ",")
		}
	}
	if !q.Since.IsZero() {
		// after is exclusive
		params["after"] = strconv.FormatInt(q.Since.Unix()-1, 10)
	}
	return params, nil
}

// archiveMaxSize is the largest page archive mirrors return, whatever size
// is asked for.
const archiveMaxSize = 100

// byID asks for the ids in chunks no mirror will truncate.
func (a *ArchiveClient) byID(ctx context.Context, endpoint string, params map[string]string) ([]thing, error) {
	ids := strings.Split(params["ids"], ",")
	chunk := min(a.opts.pageSize, archiveMaxSize)
	if chunk <= 0 {
		chunk = archiveMaxSize
	}
	var out []thing
	for start := 0; start < len(ids); start += chunk {
		part := ids[start:min(start+chunk, len(ids))]
		p := make(map[string]string, len(params)+1)
		for k, v := range params {
			p[k] = v
		}
		p["ids"] = strings.Join(part, ",")
		p["size"] = strconv.Itoa(len(part))
		things, err := a.page(ctx, endpoint, p)
		if err != nil {
			return nil, err
		}
		out = append(out, things...)
	}
	return out, nil
}

// paginate walks backwards in time: each page asks for items created before
// the oldest one seen so far. The cursor is moved to oldest+1s so items that
// share the boundary second are not skipped; duplicates are dropped by id.
// Mirrors may return fewer items than asked for, so only an empty page ends
// the walk.
func (a *ArchiveClient) paginate(ctx context.Context, q domain.Query, endpoint string, params map[string]string) ([]thing, error) {
	var out []thing
	seen := map[string]struct{}{}
	before := q.Until
	for page := 0; page < maxPages; page++ {
		p := make(map[string]string, len(params)+2)
		for k, v := range params {
			p[k] = v
		}
		p["size"] = strconv.Itoa(a.opts.pageSize)
		if !before.IsZero() {
			p["before"] = strconv.FormatInt(before.Unix(), 10)
		}

		things, err := a.page(ctx, endpoint, p)
		if err != nil {
			return nil, err
		}

		added := 0
		var oldest time.Time
		for _, t := range things {
			created := unixTime(t.CreatedUTC)
			if oldest.IsZero() || created.Before(oldest) {
				oldest = created
			}
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
			added++
		}
		if len(things) == 0 || oldest.IsZero() {
			return out, nil
		}
		next := oldest.Add(time.Second)
		if added == 0 {
			if !next.Equal(before) {
				return out, nil
			}
			// A full page inside one second: step past it.
			next = oldest
		}
		before = next
	}
	return nil, domain.Transient(fmt.Errorf("%s: gave up after %d pages", endpoint, maxPages))
}

func (a *ArchiveClient) page(ctx context.Context, endpoint string, params map[string]string) ([]thing, error) {
	var body archiveResponse
	err := a.opts.do(ctx, endpoint, func(ctx context.Context) error {
		res, err := a.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(endpoint)
		if err != nil {
			return domain.Transient(err)
		}
		if err := statusError(res.StatusCode(), "archive "+endpoint); err != nil {
			return err
		}
		body = archiveResponse{}
		if err := json.Unmarshal(res.Body(), &body); err != nil {
			return domain.Transient(fmt.Errorf("decode %s: %w", endpoint, err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive search error: %w", err)
	}
	return body.Data, nil
}
