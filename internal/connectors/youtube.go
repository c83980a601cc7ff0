package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/social-ingest/internal/models"
	"github.com/pulsewatch/social-ingest/internal/privacy"
	"github.com/pulsewatch/social-ingest/internal/ratelimit"
)

// YouTube Data API v3 free tier grants 10,000 quota units per day and a
// search costs 100 units, so the limiter budgets 100 searches per day. No
// rate headers come back, hence proactive mode.
const (
	youtubeDailySearches = 100
	youtubeMinSpacing    = time.Second
)

// YouTubeConnector implements the Connector contract over the YouTube Data
// API v3 with API-key authentication.
type YouTubeConnector struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	privacy *privacy.Config
	baseURL string
}

type youtubeSearchResponse struct {
	Items []youtubeSearchItem `json:"items"`
}

type youtubeSearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

type youtubeVideosResponse struct {
	Items []youtubeVideo `json:"items"`
}

type youtubeVideo struct {
	ID         string             `json:"id"`
	Snippet    youtubeSnippet     `json:"snippet"`
	Statistics *youtubeStatistics `json:"statistics"`
}

type youtubeStatistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

type youtubeSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   struct {
		High *struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"high"`
		Default *struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"default"`
	} `json:"thumbnails"`
}

// NewYouTube creates a YouTube connector using a Data API v3 key.
func NewYouTube(apiKey string, privacyCfg *privacy.Config) *YouTubeConnector {
	return &YouTubeConnector{
		apiKey: apiKey,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "PulseWatch-Collector/1.0"),
		limiter: ratelimit.NewProactive(youtubeMinSpacing,
			ratelimit.Window{Length: 24 * time.Hour, Cap: youtubeDailySearches},
		),
		privacy: privacyCfg,
		baseURL: "https://www.googleapis.com/youtube/v3",
	}
}

func (y *YouTubeConnector) PlatformName() string { return "youtube" }

func (y *YouTubeConnector) IsConfigured() bool { return y.apiKey != "" }

func (y *YouTubeConnector) RateLimitStatus() models.RateLimitInfo {
	return y.limiter.Status()
}

func (y *YouTubeConnector) get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	if err := y.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req := y.client.R().
		SetContext(ctx).
		SetQueryParam("key", y.apiKey).
		SetQueryParams(query)

	resp, err := req.Get(y.baseURL + path)
	if err != nil {
		return nil, networkError(err)
	}
	return resp, nil
}

func (y *YouTubeConnector) SearchPosts(ctx context.Context, params *models.SearchParams) ([]models.Post, error) {
	logrus.Infof("searching youtube for: %s", params.Query)

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 25
	}
	if maxResults > 50 {
		maxResults = 50
	}

	query := map[string]string{
		"part":       "snippet",
		"q":          params.Query,
		"type":       "video",
		"maxResults": strconv.Itoa(maxResults),
	}
	if params.StartTime != nil {
		query["publishedAfter"] = params.StartTime.Format(time.RFC3339)
	}
	if params.EndTime != nil {
		query["publishedBefore"] = params.EndTime.Format(time.RFC3339)
	}
	if params.Language != "" {
		query["relevanceLanguage"] = params.Language
	}

	resp, err := y.get(ctx, "/search", query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var search youtubeSearchResponse
	if err := json.Unmarshal(resp.Body(), &search); err != nil {
		return nil, parseError(err)
	}

	posts := make([]models.Post, 0, len(search.Items))
	for i := range search.Items {
		item := &search.Items[i]
		if item.ID.VideoID == "" {
			continue
		}
		posts = append(posts, y.convertVideo(item.ID.VideoID, &item.Snippet, nil))
	}
	logrus.Infof("retrieved %d videos from youtube", len(posts))
	return posts, nil
}

func (y *YouTubeConnector) GetPostByID(ctx context.Context, postID string) (*models.Post, error) {
	logrus.Debugf("getting youtube video %s", postID)

	resp, err := y.get(ctx, "/videos", map[string]string{
		"part": "snippet,statistics",
		"id":   postID,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var videos youtubeVideosResponse
	if err := json.Unmarshal(resp.Body(), &videos); err != nil {
		return nil, parseError(err)
	}
	// The videos endpoint answers 200 with an empty item list for unknown
	// ids; that is YouTube's 404.
	if len(videos.Items) == 0 {
		return nil, nil
	}

	v := &videos.Items[0]
	post := y.convertVideo(v.ID, &v.Snippet, v.Statistics)
	return &post, nil
}

func (y *YouTubeConnector) GetUserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	logrus.Debugf("getting youtube videos for channel %s", userID)

	if limit <= 0 {
		limit = 25
	}
	if limit > 50 {
		limit = 50
	}

	resp, err := y.get(ctx, "/search", map[string]string{
		"part":       "snippet",
		"channelId":  userID,
		"type":       "video",
		"order":      "date",
		"maxResults": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var search youtubeSearchResponse
	if err := json.Unmarshal(resp.Body(), &search); err != nil {
		return nil, parseError(err)
	}

	posts := make([]models.Post, 0, len(search.Items))
	for i := range search.Items {
		item := &search.Items[i]
		if item.ID.VideoID == "" {
			continue
		}
		posts = append(posts, y.convertVideo(item.ID.VideoID, &item.Snippet, nil))
	}
	return posts, nil
}

func (y *YouTubeConnector) GetTrendingTopics(ctx context.Context, location string) ([]string, error) {
	query := map[string]string{
		"part":       "snippet",
		"chart":      "mostPopular",
		"maxResults": "25",
	}
	if location != "" {
		query["regionCode"] = location
	}

	resp, err := y.get(ctx, "/videos", query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var videos youtubeVideosResponse
	if err := json.Unmarshal(resp.Body(), &videos); err != nil {
		return nil, parseError(err)
	}

	var topics []string
	for i := range videos.Items {
		if title := videos.Items[i].Snippet.Title; title != "" {
			topics = append(topics, title)
		}
	}
	return topics, nil
}

func (y *YouTubeConnector) ValidateCredentials(ctx context.Context) (bool, error) {
	resp, err := y.get(ctx, "/search", map[string]string{
		"part":       "snippet",
		"q":          "test",
		"maxResults": "1",
	})
	if err != nil {
		return false, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusBadRequest, http.StatusForbidden:
		// Invalid or revoked keys come back as 400 keyInvalid or 403.
		logrus.Error("youtube api key rejected")
		return false, nil
	default:
		return false, apiError(resp.StatusCode(), string(resp.Body()))
	}
}

func (y *YouTubeConnector) ConfigRequirements() []models.ConfigRequirement {
	return []models.ConfigRequirement{
		{
			Key:         "YOUTUBE_API_KEY",
			Description: "YouTube Data API v3 key",
			Required:    true,
			Example:     "AIzaSyABC123...",
			SourceURL:   "https://console.cloud.google.com/",
		},
	}
}

func (y *YouTubeConnector) convertVideo(videoID string, snippet *youtubeSnippet, stats *youtubeStatistics) models.Post {
	content := privacy.AssembleContent(snippet.Title, snippet.Description)

	hashtags := privacy.ExtractHashtags(content)
	var mentions []string
	for _, m := range privacy.ExtractMentions(content) {
		mentions = append(mentions, privacy.AnonymizeUserID(m, y.privacy.Salt))
	}
	urls := privacy.ExtractURLs(content)

	channelID := snippet.ChannelID
	if channelID == "" {
		channelID = "unknown"
	}
	username := snippet.ChannelTitle
	if username == "" {
		username = "anonymous"
	}
	author := models.AuthorInfo{
		IDHash:      privacy.AnonymizeUserID(channelID, y.privacy.Salt),
		Username:    username,
		AccountType: "youtube",
	}

	var metrics models.PostMetrics
	if stats != nil {
		if n, err := strconv.ParseInt(stats.LikeCount, 10, 64); err == nil {
			metrics.Likes = n
		}
		if n, err := strconv.ParseInt(stats.CommentCount, 10, 64); err == nil {
			metrics.Comments = n
		}
		if n, err := strconv.ParseInt(stats.ViewCount, 10, 64); err == nil {
			metrics.Views = &n
		}
	}

	var media []models.MediaAttachment
	thumb := snippet.Thumbnails.High
	if thumb == nil {
		thumb = snippet.Thumbnails.Default
	}
	if thumb != nil && thumb.URL != "" {
		att := models.MediaAttachment{
			Type:    "image",
			URL:     privacy.DecodeMediaURL(thumb.URL),
			AltText: "thumbnail",
		}
		if thumb.Width > 0 && thumb.Height > 0 {
			att.Dimensions = &models.MediaDimensions{Width: thumb.Width, Height: thumb.Height}
		}
		media = append(media, att)
	}

	createdAt := time.Now().UTC()
	if snippet.PublishedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, snippet.PublishedAt); err == nil {
			createdAt = parsed
		}
	}

	post := models.Post{
		ID:        videoID,
		Platform:  "youtube",
		Content:   content,
		Author:    author,
		CreatedAt: createdAt,
		Metrics:   metrics,
		Media:     media,
		Hashtags:  hashtags,
		Mentions:  mentions,
		URLs:      urls,
		Metadata: map[string]interface{}{
			"channel_id":    snippet.ChannelID,
			"channel_title": snippet.ChannelTitle,
			"video_url":     "https://www.youtube.com/watch?v=" + videoID,
		},
		PrivacyFlags: models.PrivacyFlags{
			ConsentStatus: models.ConsentImplied,
		},
	}
	privacy.Apply(&post, y.privacy)
	return post
}
