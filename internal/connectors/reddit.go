package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/social-ingest/internal/models"
	"github.com/pulsewatch/social-ingest/internal/oauth"
	"github.com/pulsewatch/social-ingest/internal/privacy"
	"github.com/pulsewatch/social-ingest/internal/ratelimit"
)

// Reddit free tier: 100 requests per minute and 1000 per hour, with no
// authoritative rate headers, so the limiter runs proactive on both windows
// at once. 600ms spacing keeps a steady pace under the per-minute cap.
const (
	redditMinuteCap  = 100
	redditHourCap    = 1000
	redditMinSpacing = 600 * time.Millisecond
)

// RedditConnector implements the Connector contract over the Reddit API with
// OAuth2 client-credentials authentication.
type RedditConnector struct {
	clientID     string
	clientSecret string
	client       *resty.Client
	tokens       *oauth.TokenManager
	limiter      *ratelimit.Limiter
	privacy      *privacy.Config
	baseURL      string
	userAgent    string
}

type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string            `json:"after"`
		Children []json.RawMessage `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditPost struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Selftext      string          `json:"selftext"`
	Author        string          `json:"author"`
	AuthorFull    string          `json:"author_fullname"`
	Subreddit     string          `json:"subreddit"`
	SubredditID   string          `json:"subreddit_id"`
	CreatedUTC    float64         `json:"created_utc"`
	Score         int64           `json:"score"`
	UpvoteRatio   *float64        `json:"upvote_ratio"`
	NumComments   int64           `json:"num_comments"`
	Permalink     string          `json:"permalink"`
	URL           string          `json:"url"`
	IsVideo       bool            `json:"is_video"`
	Media         json.RawMessage `json:"media"`
	Preview       json.RawMessage `json:"preview"`
	Thumbnail     string          `json:"thumbnail"`
	Gilded        int             `json:"gilded"`
	Over18        bool            `json:"over_18"`
	Spoiler       bool            `json:"spoiler"`
	Locked        bool            `json:"locked"`
	Archived      bool            `json:"archived"`
	LinkFlairText string          `json:"link_flair_text"`
	Distinguished string          `json:"distinguished"`
}

// NewReddit creates a Reddit connector. The user agent is read from
// REDDIT_USER_AGENT when set, since Reddit throttles generic agents.
func NewReddit(clientID, clientSecret string, privacyCfg *privacy.Config) *RedditConnector {
	userAgent := os.Getenv("REDDIT_USER_AGENT")
	if userAgent == "" {
		userAgent = "PulseWatch-Collector/1.0"
	}

	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", userAgent)

	return &RedditConnector{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
		tokens: oauth.NewTokenManager(client,
			"https://www.reddit.com/api/v1/access_token",
			clientID, clientSecret, "read", userAgent),
		limiter: ratelimit.NewProactive(redditMinSpacing,
			ratelimit.Window{Length: time.Minute, Cap: redditMinuteCap},
			ratelimit.Window{Length: time.Hour, Cap: redditHourCap},
		),
		privacy:   privacyCfg,
		baseURL:   "https://oauth.reddit.com",
		userAgent: userAgent,
	}
}

func (r *RedditConnector) PlatformName() string { return "reddit" }

func (r *RedditConnector) IsConfigured() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditConnector) RateLimitStatus() models.RateLimitInfo {
	return r.limiter.Status()
}

// get runs an authenticated GET against the Reddit API, going through the
// token cache and the limiter first.
func (r *RedditConnector) get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		var authErr *oauth.AuthError
		if errors.As(err, &authErr) {
			return nil, authError(authErr.Message)
		}
		return nil, networkError(err)
	}

	if err := r.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req := r.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token)
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(r.baseURL + path)
	if err != nil {
		return nil, networkError(err)
	}
	return resp, nil
}

func (r *RedditConnector) SearchPosts(ctx context.Context, params *models.SearchParams) ([]models.Post, error) {
	logrus.Infof("searching reddit for: %s", params.Query)

	limit := params.MaxResults
	if limit <= 0 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}

	query := map[string]string{
		"q":     params.Query,
		"type":  "link",
		"sort":  "relevance",
		"limit": strconv.Itoa(limit),
	}
	if params.StartTime != nil || params.EndTime != nil {
		// Reddit search has no exact date ranges, only coarse time buckets.
		query["t"] = "all"
	}

	resp, err := r.get(ctx, "/search", query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, parseError(err)
	}

	posts := r.convertListing(&listing)
	logrus.Infof("retrieved %d posts from reddit", len(posts))
	return posts, nil
}

func (r *RedditConnector) GetPostByID(ctx context.Context, postID string) (*models.Post, error) {
	logrus.Debugf("getting reddit post %s", postID)

	resp, err := r.get(ctx, "/by_id/t3_"+postID, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, parseError(err)
	}

	for _, raw := range listing.Data.Children {
		var thing redditThing
		if err := json.Unmarshal(raw, &thing); err != nil || thing.Kind != "t3" {
			continue
		}
		var rp redditPost
		if err := json.Unmarshal(thing.Data, &rp); err != nil {
			return nil, parseError(err)
		}
		post := r.convertPost(&rp)
		return &post, nil
	}
	return nil, nil
}

func (r *RedditConnector) GetUserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	logrus.Debugf("getting reddit posts for user %s", userID)

	if limit <= 0 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}

	resp, err := r.get(ctx, "/user/"+userID+"/submitted", map[string]string{
		"limit": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, parseError(err)
	}
	return r.convertListing(&listing), nil
}

func (r *RedditConnector) GetTrendingTopics(ctx context.Context, location string) ([]string, error) {
	resp, err := r.get(ctx, "/subreddits/popular", map[string]string{"limit": "50"})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, parseError(err)
	}

	var topics []string
	for _, raw := range listing.Data.Children {
		var thing redditThing
		if err := json.Unmarshal(raw, &thing); err != nil || thing.Kind != "t5" {
			continue
		}
		var sub struct {
			DisplayName string `json:"display_name"`
		}
		if err := json.Unmarshal(thing.Data, &sub); err != nil || sub.DisplayName == "" {
			continue
		}
		topics = append(topics, "r/"+sub.DisplayName)
	}
	return topics, nil
}

func (r *RedditConnector) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := r.tokens.Token(ctx)
	if err == nil {
		return true, nil
	}
	var authErr *oauth.AuthError
	if errors.As(err, &authErr) {
		logrus.Error("reddit credentials rejected")
		return false, nil
	}
	return false, networkError(err)
}

func (r *RedditConnector) ConfigRequirements() []models.ConfigRequirement {
	return []models.ConfigRequirement{
		{
			Key:         "REDDIT_CLIENT_ID",
			Description: "Reddit application client ID",
			Required:    true,
			Example:     "abcdefghijklmn",
			SourceURL:   "https://www.reddit.com/prefs/apps",
		},
		{
			Key:         "REDDIT_CLIENT_SECRET",
			Description: "Reddit application client secret",
			Required:    true,
			Example:     "1234567890abcdef",
			SourceURL:   "https://www.reddit.com/prefs/apps",
		},
		{
			Key:         "REDDIT_USER_AGENT",
			Description: "User agent string for Reddit API requests",
			Required:    false,
			Example:     "myapp/1.0 (by /u/yourusername)",
			SourceURL:   "https://github.com/reddit-archive/reddit/wiki/API",
		},
	}
}

// convertListing converts every t3 child, logging and skipping the ones that
// fail to parse so one bad item never fails a batch.
func (r *RedditConnector) convertListing(listing *redditListing) []models.Post {
	var posts []models.Post
	for _, raw := range listing.Data.Children {
		var thing redditThing
		if err := json.Unmarshal(raw, &thing); err != nil {
			logrus.Warnf("failed to parse reddit listing child: %v", err)
			continue
		}
		if thing.Kind != "t3" {
			continue
		}
		var rp redditPost
		if err := json.Unmarshal(thing.Data, &rp); err != nil {
			logrus.Warnf("failed to parse reddit post: %v", err)
			continue
		}
		posts = append(posts, r.convertPost(&rp))
	}
	return posts
}

func (r *RedditConnector) convertPost(rp *redditPost) models.Post {
	rawAuthorID := rp.AuthorFull
	if rawAuthorID == "" {
		rawAuthorID = "unknown"
	}
	username := rp.Author
	if username == "" {
		username = "deleted"
	}
	author := models.AuthorInfo{
		IDHash:      privacy.AnonymizeUserID(rawAuthorID, r.privacy.Salt),
		Username:    username,
		Verified:    rp.Distinguished != "",
		AccountType: "reddit",
	}

	likes := rp.Score
	if likes < 0 {
		likes = 0
	}
	metrics := models.PostMetrics{
		Likes:    likes,
		Comments: rp.NumComments,
	}

	content := privacy.AssembleContent(rp.Title, rp.Selftext)

	hashtags := privacy.ExtractHashtags(content)
	var mentions []string
	for _, m := range privacy.ExtractMentions(content) {
		mentions = append(mentions, privacy.AnonymizeUserID(m, r.privacy.Salt))
	}
	urls := privacy.ExtractURLs(content)

	// Attach link-post targets, skipping the post's own permalink so the
	// canonical link never duplicates itself.
	if rp.URL != "" && rp.URL != "https://www.reddit.com"+rp.Permalink {
		urls = append(urls, rp.URL)
	}

	createdAt := time.Now().UTC()
	if rp.CreatedUTC > 0 {
		createdAt = time.Unix(int64(rp.CreatedUTC), 0).UTC()
	}

	metadata := map[string]interface{}{
		"subreddit":    rp.Subreddit,
		"subreddit_id": rp.SubredditID,
		"permalink":    rp.Permalink,
		"score":        rp.Score,
		"over_18":      rp.Over18,
		"spoiler":      rp.Spoiler,
		"locked":       rp.Locked,
		"archived":     rp.Archived,
	}
	if rp.UpvoteRatio != nil {
		metadata["upvote_ratio"] = *rp.UpvoteRatio
	}
	if rp.Gilded > 0 {
		metadata["gilded"] = rp.Gilded
	}
	if rp.LinkFlairText != "" {
		metadata["link_flair"] = rp.LinkFlairText
	}

	post := models.Post{
		ID:        rp.ID,
		Platform:  "reddit",
		Content:   content,
		Author:    author,
		CreatedAt: createdAt,
		Metrics:   metrics,
		Media:     r.extractMedia(rp),
		Hashtags:  hashtags,
		Mentions:  mentions,
		URLs:      urls,
		Metadata:  metadata,
		PrivacyFlags: models.PrivacyFlags{
			SensitiveContent: rp.Over18,
			ConsentStatus:    models.ConsentImplied,
		},
	}
	privacy.Apply(&post, r.privacy)
	return post
}

// extractMedia walks the optional media/preview/thumbnail nodes, tolerating
// absence at every level and only reporting data that is actually present.
func (r *RedditConnector) extractMedia(rp *redditPost) []models.MediaAttachment {
	var media []models.MediaAttachment

	if rp.IsVideo && len(rp.Media) > 0 {
		var container struct {
			RedditVideo *struct {
				FallbackURL string `json:"fallback_url"`
			} `json:"reddit_video"`
		}
		if err := json.Unmarshal(rp.Media, &container); err == nil &&
			container.RedditVideo != nil && container.RedditVideo.FallbackURL != "" {
			media = append(media, models.MediaAttachment{
				Type: "video",
				URL:  container.RedditVideo.FallbackURL,
			})
		}
	}

	if len(rp.Preview) > 0 {
		var preview struct {
			Images []struct {
				Source *struct {
					URL    string `json:"url"`
					Width  int    `json:"width"`
					Height int    `json:"height"`
				} `json:"source"`
			} `json:"images"`
		}
		if err := json.Unmarshal(rp.Preview, &preview); err == nil {
			for _, img := range preview.Images {
				if img.Source == nil || img.Source.URL == "" {
					continue
				}
				att := models.MediaAttachment{
					Type: "image",
					URL:  privacy.DecodeMediaURL(img.Source.URL),
				}
				if img.Source.Width > 0 && img.Source.Height > 0 {
					att.Dimensions = &models.MediaDimensions{
						Width:  img.Source.Width,
						Height: img.Source.Height,
					}
				}
				media = append(media, att)
			}
		}
	}

	if strings.HasPrefix(rp.Thumbnail, "http") {
		media = append(media, models.MediaAttachment{
			Type:    "image",
			URL:     rp.Thumbnail,
			AltText: "thumbnail",
		})
	}

	return media
}
