package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/reddit-export/internal/domain"
)

func TestPostFromAPI(t *testing.T) {
	created := time.Unix(1700000000, 0)
	p := postFromAPI(&reddit.Post{
		ID:                   "abc",
		FullID:               "t3_abc",
		Title:                "Hello",
		SubredditName:        "golang",
		Author:               "gopher",
		URL:                  "https://www.example.com/article",
		Permalink:            "/r/golang/comments/abc/hello/",
		Score:                12,
		UpvoteRatio:          0.5,
		NumberOfComments:     3,
		SubredditSubscribers: 1000,
		Created:              &reddit.Timestamp{Time: created},
	})

	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, "golang", p.Subreddit)
	assert.Equal(t, "example.com", p.Domain)
	assert.Equal(t, 0.5, p.UpvoteRatio)
	assert.True(t, p.Created.Equal(created))

	self := postFromAPI(&reddit.Post{ID: "x", SubredditName: "golang", IsSelfPost: true})
	assert.Equal(t, "self.golang", self.Domain)
	assert.True(t, self.Created.IsZero())
}

func TestCommentFromAPI(t *testing.T) {
	c := commentFromAPI(&reddit.Comment{
		ID:            "c1",
		FullID:        "t1_c1",
		Author:        "gopher",
		Body:          "nice",
		Score:         4,
		SubredditName: "golang",
		PostID:        "t3_abc",
		PostTitle:     "Hello",
		ParentID:      "t3_abc",
		Created:       &reddit.Timestamp{Time: time.Unix(1700000000, 0)},
	}, 2)

	assert.Equal(t, "t3_abc", c.LinkID)
	assert.Equal(t, "Hello", c.LinkTitle)
	assert.Equal(t, 2, c.Depth)
	assert.Equal(t, int64(1700000000), c.Created.Unix())
}

func TestClassifyAPIError(t *testing.T) {
	resp := func(code int) *http.Response {
		return &http.Response{StatusCode: code, Request: httptest.NewRequest(http.MethodGet, "/r/x", nil)}
	}

	assert.Nil(t, classifyAPIError(nil))
	assert.True(t, domain.IsPermanent(classifyAPIError(&reddit.ErrorResponse{Response: resp(404), Message: "not found"})))
	assert.True(t, domain.IsPermanent(classifyAPIError(&reddit.ErrorResponse{Response: resp(403), Message: "private"})))
	assert.True(t, domain.IsTransient(classifyAPIError(&reddit.ErrorResponse{Response: resp(503), Message: "busy"})))
	assert.True(t, domain.IsTransient(classifyAPIError(&reddit.RateLimitError{Response: resp(429), Message: "slow down"})))
	assert.True(t, domain.IsTransient(classifyAPIError(errors.New("connection reset"))))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://www.example.com/a"))
	assert.Equal(t, "i.redd.it", hostOf("https://i.redd.it/x.png"))
	assert.Equal(t, "", hostOf("::not a url"))
}

const apiThread = `[
 {"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"p1","name":"t3_p1","title":"Hello","author":"op","subreddit":"golang","created_utc":100}}]}},
 {"kind":"Listing","data":{"children":[
  {"kind":"t1","data":{"id":"c1","name":"t1_c1","link_id":"t3_p1","parent_id":"t3_p1","author":"alice","body":"top","created_utc":110,
   "replies":{"kind":"Listing","data":{"children":[
    {"kind":"more","data":{"id":"c2","name":"t1_c2","parent_id":"t1_c1","count":1,"depth":1,"children":["c2"]}}
   ]}}}}
 ]}}
]`

func newAPI(t *testing.T, moreChildren string) *APIClient {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"token1","token_type":"bearer","expires_in":3600,"scope":"*"}`)
	})
	mux.HandleFunc("/comments/p1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, apiThread)
	})
	mux.HandleFunc("/api/morechildren", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "c2", r.PostForm.Get("children"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, moreChildren)
	})

	ac, err := NewAPIClient("id", "secret", "user", "pass", "test-agent/1.0", fastOptions(srv.URL)...)
	require.NoError(t, err)
	return ac
}

func TestAPIClient_FetchThreadExpandsReplies(t *testing.T) {
	ac := newAPI(t, `{"json":{"errors":[],"data":{"things":[
		{"kind":"t1","data":{"id":"c2","name":"t1_c2","link_id":"t3_p1","parent_id":"t1_c1","author":"bob","body":"reply","created_utc":120}}
	]}}}`)

	ds, err := ac.Fetch(context.Background(), domain.Query{Kind: domain.KindComments, Selector: domain.ByID, Target: "p1"})
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "c1", ds.Records[0].ID())
	assert.Equal(t, "c2", ds.Records[1].ID())
	assert.Equal(t, "1", ds.Records[1]["depth"])
}

func TestAPIClient_FetchThreadFailsWhenRepliesVanish(t *testing.T) {
	ac := newAPI(t, `{"json":{"errors":[],"data":{"things":[]}}}`)

	ds, err := ac.Fetch(context.Background(), domain.Query{Kind: domain.KindComments, Selector: domain.ByID, Target: "p1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIncomplete))
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, 0, ds.Len())
}
