package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/social-ingest/internal/models"
	"github.com/pulsewatch/social-ingest/internal/oauth"
	"github.com/pulsewatch/social-ingest/internal/privacy"
	"github.com/pulsewatch/social-ingest/internal/ratelimit"
)

const redditSearchFixture = `{
	"kind": "Listing",
	"data": {
		"children": [
			{
				"kind": "t3",
				"data": {
					"id": "abc123",
					"title": "Flood warnings issued",
					"selftext": "River levels rising fast, updates at https://example.com/floods #weather",
					"author": "riverwatcher",
					"author_fullname": "t2_99xy",
					"subreddit": "news",
					"subreddit_id": "t5_2qh3l",
					"created_utc": 1709294400,
					"score": 250,
					"upvote_ratio": 0.97,
					"num_comments": 45,
					"permalink": "/r/news/comments/abc123/flood_warnings_issued/",
					"url": "https://example.com/source-article",
					"over_18": false,
					"preview": {
						"images": [
							{"source": {"url": "https://preview.redd.it/img.jpg?width=640&amp;s=xyz", "width": 640, "height": 480}}
						]
					},
					"thumbnail": "https://b.thumbs.redditmedia.com/t.jpg"
				}
			},
			{"kind": "t3", "data": {"id": 12345}},
			{"kind": "t5", "data": {"display_name": "news"}}
		]
	}
}`

const redditTokenResponse = `{"access_token":"reddit-token","token_type":"bearer","expires_in":3600,"scope":"read"}`

// newTestReddit points both the API base and the token endpoint at a local
// server and removes request pacing so tests run fast.
func newTestReddit(t *testing.T, handler http.HandlerFunc) *RedditConnector {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			w.Write([]byte(redditTokenResponse))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	c := NewReddit("id", "secret", testPrivacy())
	c.baseURL = server.URL
	c.tokens = oauth.NewTokenManager(c.client, server.URL+"/api/v1/access_token", "id", "secret", "read", "test-agent")
	c.limiter = ratelimit.NewProactive(0,
		ratelimit.Window{Length: time.Minute, Cap: redditMinuteCap},
		ratelimit.Window{Length: time.Hour, Cap: redditHourCap},
	)
	return c
}

func TestRedditSearchPosts(t *testing.T) {
	c := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer reddit-token", r.Header.Get("Authorization"))
		assert.Equal(t, "floods", r.URL.Query().Get("q"))
		w.Write([]byte(redditSearchFixture))
	})

	posts, err := c.SearchPosts(context.Background(), &models.SearchParams{Query: "floods"})
	require.NoError(t, err)
	require.Len(t, posts, 1, "malformed and non-post children are skipped, not fatal")

	post := posts[0]
	assert.Equal(t, "abc123", post.ID)
	assert.Equal(t, "reddit", post.Platform)
	assert.Equal(t, "Flood warnings issued\n\nRiver levels rising fast, updates at https://example.com/floods #weather", post.Content)
	assert.Equal(t, time.Unix(1709294400, 0).UTC(), post.CreatedAt)

	assert.Equal(t, "riverwatcher", post.Author.Username)
	assert.Equal(t, privacy.AnonymizeUserID("t2_99xy", "test_salt"), post.Author.IDHash)

	assert.Equal(t, int64(250), post.Metrics.Likes)
	assert.Equal(t, int64(45), post.Metrics.Comments)

	assert.Equal(t, []string{"#weather"}, post.Hashtags)
	assert.Equal(t, []string{"https://example.com/floods", "https://example.com/source-article"}, post.URLs)

	// Preview URL is HTML-entity decoded; thumbnail is carried separately.
	require.Len(t, post.Media, 2)
	assert.Equal(t, "https://preview.redd.it/img.jpg?width=640&s=xyz", post.Media[0].URL)
	require.NotNil(t, post.Media[0].Dimensions)
	assert.Equal(t, 640, post.Media[0].Dimensions.Width)
	assert.Equal(t, "thumbnail", post.Media[1].AltText)

	assert.Equal(t, "news", post.Metadata["subreddit"])
	assert.Equal(t, 0.97, post.Metadata["upvote_ratio"])

	assert.True(t, post.PrivacyFlags.Anonymized)
	assert.Equal(t, "2_years", post.PrivacyFlags.RetentionPolicy)
}

func TestRedditGetPostByID_NotFound(t *testing.T) {
	c := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	post, err := c.GetPostByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestRedditGetPostByID_Found(t *testing.T) {
	c := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/by_id/t3_abc123", r.URL.Path)
		w.Write([]byte(redditSearchFixture))
	})

	post, err := c.GetPostByID(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "abc123", post.ID)
}

func TestRedditGetUserPosts(t *testing.T) {
	c := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/riverwatcher/submitted", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
		w.Write([]byte(redditSearchFixture))
	})

	posts, err := c.GetUserPosts(context.Background(), "riverwatcher", 30)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestRedditGetTrendingTopics(t *testing.T) {
	c := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subreddits/popular", r.URL.Path)
		w.Write([]byte(`{
			"kind": "Listing",
			"data": {"children": [
				{"kind": "t5", "data": {"display_name": "worldnews"}},
				{"kind": "t5", "data": {"display_name": "science"}}
			]}
		}`))
	})

	topics, err := c.GetTrendingTopics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"r/worldnews", "r/science"}, topics)
}

func TestRedditValidateCredentials_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewReddit("id", "bad-secret", testPrivacy())
	c.tokens = oauth.NewTokenManager(c.client, server.URL, "id", "bad-secret", "read", "test-agent")

	valid, err := c.ValidateCredentials(context.Background())
	require.NoError(t, err, "rejected credentials are an expected outcome, not an error")
	assert.False(t, valid)
}

func TestRedditValidateCredentials_Accepted(t *testing.T) {
	c := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {})

	valid, err := c.ValidateCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestRedditSearch_APIError(t *testing.T) {
	c := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("gateway error"))
	})

	_, err := c.SearchPosts(context.Background(), &models.SearchParams{Query: "q"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAPI))
}
