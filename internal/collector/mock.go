package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/qepting91/reddit-export/internal/domain"
)

// MockClient implements domain.Collector but returns fake data
type MockClient struct {
	// Count is how many items each query yields before range filtering.
	Count int
	// Now anchors the fake timeline; items are spaced an hour apart before it.
	Now func() time.Time
}

func NewMockClient() *MockClient {
	return &MockClient{Count: 25, Now: time.Now}
}

func (mc *MockClient) Fetch(ctx context.Context, q domain.Query) (domain.Dataset, error) {
	if err := q.Validate(); err != nil {
		return domain.Dataset{}, domain.Permanent(err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Dataset{}, err
	}

	end := mc.Now().UTC().Truncate(time.Second)
	if !q.Until.IsZero() && q.Until.Before(end) {
		end = q.Until
	}
	// Seeded by target so repeated runs agree on ids and timestamps.
	rng := rand.New(rand.NewSource(int64(len(q.Target))*7919 + int64(len(q.Kind))))

	if q.Kind == domain.KindComments {
		var comments []domain.Comment
		for i := 0; i < mc.Count; i++ {
			comments = append(comments, domain.Comment{
				ID:        fmt.Sprintf("mock_%s_c%d", q.Target, i),
				Author:    "simulated_user",
				Body:      fmt.Sprintf("Simulated comment #%d about %s", i, q.Target),
				Score:     rng.Intn(500),
				Subreddit: "mock",
				LinkID:    "t3_mock",
				Created:   end.Add(-time.Duration(i+1) * time.Hour),
			})
		}
		return commentsDataset(q, comments), nil
	}

	var posts []domain.Post
	for i := 0; i < mc.Count; i++ {
		posts = append(posts, domain.Post{
			ID:          fmt.Sprintf("mock_%s_%d", q.Target, i),
			Title:       fmt.Sprintf("[%s] Simulated post #%d", q.Target, i),
			Subreddit:   q.Target,
			Author:      "simulated_user",
			URL:         "http://localhost/mock-url",
			Score:       rng.Intn(500),
			NumComments: rng.Intn(50),
			UpvoteRatio: 0.5 + float64(rng.Intn(50))/100,
			Created:     end.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	return postsDataset(q, posts), nil
}
