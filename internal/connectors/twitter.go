package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/social-ingest/internal/models"
	"github.com/pulsewatch/social-ingest/internal/privacy"
	"github.com/pulsewatch/social-ingest/internal/ratelimit"
)

// Twitter API v2 Essential Access: 300 search requests per 15 minutes, and
// the platform asks for at least one second between requests. The server's
// x-rate-limit-* headers are authoritative, so the limiter runs reactive.
const (
	twitterSearchLimit = 300
	twitterWindow      = 15 * time.Minute
	twitterMinSpacing  = time.Second
	twitterTweetFields = "id,text,author_id,created_at,public_metrics,geo,lang,entities,attachments,context_annotations,referenced_tweets"
	twitterUserFields  = "id,username,name,verified,public_metrics,created_at"
	twitterMediaFields = "media_key,type,url,preview_image_url,alt_text,width,height"
	twitterExpansions  = "author_id,attachments.media_keys,geo.place_id,referenced_tweets.id"
)

// TwitterConnector implements the Connector contract over the Twitter API v2
// free tier.
type TwitterConnector struct {
	bearerToken string
	client      *resty.Client
	limiter     *ratelimit.Limiter
	privacy     *privacy.Config
	baseURL     string
}

type twitterSearchResponse struct {
	Data     []twitterTweet    `json:"data"`
	Includes *twitterIncludes  `json:"includes"`
	Errors   []twitterAPIError `json:"errors"`
	Meta     struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type twitterLookupResponse struct {
	Data     *twitterTweet    `json:"data"`
	Includes *twitterIncludes `json:"includes"`
}

type twitterTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	Lang          string `json:"lang"`
	PublicMetrics *struct {
		RetweetCount    int64 `json:"retweet_count"`
		LikeCount       int64 `json:"like_count"`
		ReplyCount      int64 `json:"reply_count"`
		QuoteCount      int64 `json:"quote_count"`
		ImpressionCount int64 `json:"impression_count"`
	} `json:"public_metrics"`
	Geo *struct {
		PlaceID     string `json:"place_id"`
		Coordinates *struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"coordinates"`
	} `json:"geo"`
	Entities *struct {
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
		Mentions []struct {
			Username string `json:"username"`
		} `json:"mentions"`
		URLs []struct {
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
			UnwoundURL  string `json:"unwound_url"`
		} `json:"urls"`
	} `json:"entities"`
	Attachments *struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	ContextAnnotations []struct {
		Domain struct {
			Name string `json:"name"`
		} `json:"domain"`
		Entity struct {
			Name string `json:"name"`
		} `json:"entity"`
	} `json:"context_annotations"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type twitterIncludes struct {
	Users []twitterUser  `json:"users"`
	Media []twitterMedia `json:"media"`
}

type twitterUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Verified      bool   `json:"verified"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics *struct {
		FollowersCount int64 `json:"followers_count"`
	} `json:"public_metrics"`
}

type twitterMedia struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
	AltText         string `json:"alt_text"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

type twitterAPIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewTwitter creates a Twitter connector using a static bearer token.
func NewTwitter(bearerToken string, privacyCfg *privacy.Config) *TwitterConnector {
	return &TwitterConnector{
		bearerToken: bearerToken,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "PulseWatch-Collector/1.0"),
		limiter: ratelimit.NewReactive(twitterSearchLimit, twitterWindow, twitterMinSpacing),
		privacy: privacyCfg,
		baseURL: "https://api.twitter.com/2",
	}
}

func (t *TwitterConnector) PlatformName() string { return "twitter" }

func (t *TwitterConnector) IsConfigured() bool { return t.bearerToken != "" }

func (t *TwitterConnector) RateLimitStatus() models.RateLimitInfo {
	return t.limiter.Status()
}

func (t *TwitterConnector) SearchPosts(ctx context.Context, params *models.SearchParams) ([]models.Post, error) {
	logrus.Infof("searching twitter for: %s", params.Query)

	if err := t.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	req := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.bearerToken).
		SetQueryParams(map[string]string{
			"query":        params.Query,
			"max_results":  strconv.Itoa(maxResults),
			"tweet.fields": twitterTweetFields,
			"user.fields":  twitterUserFields,
			"media.fields": twitterMediaFields,
			"expansions":   twitterExpansions,
		})
	if params.StartTime != nil {
		req.SetQueryParam("start_time", params.StartTime.Format(time.RFC3339))
	}
	if params.EndTime != nil {
		req.SetQueryParam("end_time", params.EndTime.Format(time.RFC3339))
	}

	resp, err := req.Get(t.baseURL + "/tweets/search/recent")
	if err != nil {
		return nil, networkError(err)
	}
	t.updateRateLimit(resp)

	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, rateLimitError(t.limiter.Status().ResetTime)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var search twitterSearchResponse
	if err := json.Unmarshal(resp.Body(), &search); err != nil {
		return nil, parseError(err)
	}
	if len(search.Errors) > 0 {
		return nil, apiError(http.StatusBadRequest, fmt.Sprintf("%s: %s", search.Errors[0].Title, search.Errors[0].Detail))
	}

	posts := make([]models.Post, 0, len(search.Data))
	for i := range search.Data {
		posts = append(posts, t.convertTweet(&search.Data[i], search.Includes))
	}
	logrus.Infof("retrieved %d tweets from twitter", len(posts))
	return posts, nil
}

func (t *TwitterConnector) GetPostByID(ctx context.Context, postID string) (*models.Post, error) {
	logrus.Debugf("getting twitter post %s", postID)

	if err := t.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.bearerToken).
		SetQueryParams(map[string]string{
			"tweet.fields": twitterTweetFields,
			"user.fields":  twitterUserFields,
			"media.fields": twitterMediaFields,
			"expansions":   "author_id,attachments.media_keys",
		}).
		Get(t.baseURL + "/tweets/" + postID)
	if err != nil {
		return nil, networkError(err)
	}
	t.updateRateLimit(resp)

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var lookup twitterLookupResponse
	if err := json.Unmarshal(resp.Body(), &lookup); err != nil {
		return nil, parseError(err)
	}
	if lookup.Data == nil {
		return nil, nil
	}

	post := t.convertTweet(lookup.Data, lookup.Includes)
	return &post, nil
}

func (t *TwitterConnector) GetUserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	// Essential Access has no user timeline endpoint.
	return nil, configError("user timeline access requires a higher Twitter API tier")
}

func (t *TwitterConnector) GetTrendingTopics(ctx context.Context, location string) ([]string, error) {
	return nil, configError("trending topics require a higher Twitter API tier")
}

func (t *TwitterConnector) ValidateCredentials(ctx context.Context) (bool, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.bearerToken).
		SetQueryParams(map[string]string{"query": "test", "max_results": "10"}).
		Get(t.baseURL + "/tweets/search/recent")
	if err != nil {
		return false, networkError(err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		logrus.Error("twitter credentials rejected")
		return false, nil
	default:
		return false, apiError(resp.StatusCode(), string(resp.Body()))
	}
}

func (t *TwitterConnector) ConfigRequirements() []models.ConfigRequirement {
	return []models.ConfigRequirement{
		{
			Key:         "TWITTER_BEARER_TOKEN",
			Description: "Twitter API v2 bearer token (Essential Access)",
			Required:    true,
			Example:     "AAAAAAAAAAAAAAAAAAAAA...",
			SourceURL:   "https://developer.twitter.com/en/portal/dashboard",
		},
	}
}

// updateRateLimit overwrites limiter state from the x-rate-limit-* response
// headers. Headers that are absent or unparseable leave the corresponding
// field alone.
func (t *TwitterConnector) updateRateLimit(resp *resty.Response) {
	remaining, limit := -1, -1
	var reset time.Time

	if v := resp.Header().Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}
	if v := resp.Header().Get("x-rate-limit-limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := resp.Header().Get("x-rate-limit-reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			reset = time.Unix(sec, 0)
		}
	}
	t.limiter.UpdateFromResponse(remaining, limit, reset)
}

func (t *TwitterConnector) convertTweet(tweet *twitterTweet, includes *twitterIncludes) models.Post {
	author := t.anonymousAuthor(tweet.AuthorID)
	if includes != nil && tweet.AuthorID != "" {
		for i := range includes.Users {
			if includes.Users[i].ID == tweet.AuthorID {
				author = t.convertUser(&includes.Users[i])
				break
			}
		}
	}

	var metrics models.PostMetrics
	if pm := tweet.PublicMetrics; pm != nil {
		metrics = models.PostMetrics{
			Likes:    pm.LikeCount,
			Shares:   pm.RetweetCount + pm.QuoteCount,
			Comments: pm.ReplyCount,
		}
		if pm.ImpressionCount > 0 {
			views := pm.ImpressionCount
			metrics.Views = &views
		}
	}

	var location *models.GeoLocation
	if tweet.Geo != nil && tweet.Geo.Coordinates != nil && len(tweet.Geo.Coordinates.Coordinates) >= 2 {
		location = &models.GeoLocation{
			Longitude: tweet.Geo.Coordinates.Coordinates[0],
			Latitude:  tweet.Geo.Coordinates.Coordinates[1],
			RadiusKM:  1.0,
		}
	}

	var hashtags, mentions, urls []string
	if e := tweet.Entities; e != nil {
		for _, h := range e.Hashtags {
			hashtags = append(hashtags, "#"+h.Tag)
		}
		for _, m := range e.Mentions {
			mentions = append(mentions, privacy.AnonymizeUserID(m.Username, t.privacy.Salt))
		}
		for _, u := range e.URLs {
			switch {
			case u.ExpandedURL != "":
				urls = append(urls, u.ExpandedURL)
			case u.UnwoundURL != "":
				urls = append(urls, u.UnwoundURL)
			default:
				urls = append(urls, u.URL)
			}
		}
	}

	var media []models.MediaAttachment
	if tweet.Attachments != nil && includes != nil {
		for _, key := range tweet.Attachments.MediaKeys {
			for i := range includes.Media {
				if includes.Media[i].MediaKey == key {
					media = append(media, convertTwitterMedia(&includes.Media[i]))
					break
				}
			}
		}
	}

	createdAt := time.Now().UTC()
	if tweet.CreatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, tweet.CreatedAt); err == nil {
			createdAt = parsed
		}
	}

	metadata := map[string]interface{}{"tweet_id": tweet.ID}
	if len(tweet.ContextAnnotations) > 0 {
		contexts := make([]map[string]string, 0, len(tweet.ContextAnnotations))
		for _, ca := range tweet.ContextAnnotations {
			contexts = append(contexts, map[string]string{
				"domain": ca.Domain.Name,
				"entity": ca.Entity.Name,
			})
		}
		metadata["context_annotations"] = contexts
	}
	if len(tweet.ReferencedTweets) > 0 {
		refs := make([]map[string]string, 0, len(tweet.ReferencedTweets))
		for _, rt := range tweet.ReferencedTweets {
			refs = append(refs, map[string]string{"type": rt.Type, "id": rt.ID})
		}
		metadata["referenced_tweets"] = refs
	}

	post := models.Post{
		ID:        tweet.ID,
		Platform:  "twitter",
		Content:   tweet.Text,
		Author:    author,
		CreatedAt: createdAt,
		Metrics:   metrics,
		Location:  location,
		Language:  tweet.Lang,
		Media:     media,
		Hashtags:  hashtags,
		Mentions:  mentions,
		URLs:      urls,
		Metadata:  metadata,
		PrivacyFlags: models.PrivacyFlags{
			ConsentStatus: models.ConsentImplied,
		},
	}
	privacy.Apply(&post, t.privacy)
	return post
}

func (t *TwitterConnector) convertUser(user *twitterUser) models.AuthorInfo {
	author := models.AuthorInfo{
		IDHash:      privacy.AnonymizeUserID(user.ID, t.privacy.Salt),
		Username:    user.Username,
		Verified:    user.Verified,
		AccountType: "twitter",
	}
	if user.PublicMetrics != nil {
		followers := user.PublicMetrics.FollowersCount
		author.FollowerCount = &followers
	}
	if user.CreatedAt != "" {
		if created, err := time.Parse(time.RFC3339, user.CreatedAt); err == nil {
			author.AccountCreated = &created
		}
	}
	return author
}

func (t *TwitterConnector) anonymousAuthor(userID string) models.AuthorInfo {
	if userID == "" {
		userID = "unknown"
	}
	return models.AuthorInfo{
		IDHash:      privacy.AnonymizeUserID(userID, t.privacy.Salt),
		Username:    "anonymous",
		AccountType: "twitter",
	}
}

func convertTwitterMedia(m *twitterMedia) models.MediaAttachment {
	url := m.URL
	if url == "" {
		url = m.PreviewImageURL
	}
	att := models.MediaAttachment{
		Type:    m.Type,
		URL:     url,
		AltText: m.AltText,
	}
	if m.Width > 0 && m.Height > 0 {
		att.Dimensions = &models.MediaDimensions{Width: m.Width, Height: m.Height}
	}
	return att
}
