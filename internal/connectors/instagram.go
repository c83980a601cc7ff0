package connectors

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/social-ingest/internal/models"
	"github.com/pulsewatch/social-ingest/internal/privacy"
	"github.com/pulsewatch/social-ingest/internal/ratelimit"
)

// InstagramConnector covers the Instagram Basic Display API, which only
// exposes the token owner's own media: public search and trending are
// structural gaps, reported as config errors so callers can tell them from
// transient failures.
type InstagramConnector struct {
	accessToken string
	client      *resty.Client
	limiter     *ratelimit.Limiter
	privacy     *privacy.Config
	baseURL     string
}

// NewInstagram creates an Instagram connector from a Basic Display access
// token.
func NewInstagram(accessToken string, privacyCfg *privacy.Config) *InstagramConnector {
	return &InstagramConnector{
		accessToken: accessToken,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "PulseWatch-Collector/1.0"),
		limiter: ratelimit.NewProactive(0,
			ratelimit.Window{Length: time.Hour, Cap: 200},
		),
		privacy: privacyCfg,
		baseURL: "https://graph.instagram.com",
	}
}

func (i *InstagramConnector) PlatformName() string { return "instagram" }

func (i *InstagramConnector) IsConfigured() bool { return i.accessToken != "" }

func (i *InstagramConnector) RateLimitStatus() models.RateLimitInfo {
	return i.limiter.Status()
}

func (i *InstagramConnector) SearchPosts(ctx context.Context, params *models.SearchParams) ([]models.Post, error) {
	return nil, configError("Instagram Basic Display API does not support public search")
}

func (i *InstagramConnector) GetPostByID(ctx context.Context, postID string) (*models.Post, error) {
	return nil, genericError("Instagram media lookup is not implemented")
}

func (i *InstagramConnector) GetUserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	return nil, genericError("Instagram user media lookup is not implemented")
}

func (i *InstagramConnector) GetTrendingTopics(ctx context.Context, location string) ([]string, error) {
	return nil, configError("Instagram Basic Display API does not support trending topics")
}

func (i *InstagramConnector) ValidateCredentials(ctx context.Context) (bool, error) {
	if err := i.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	resp, err := i.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id",
			"access_token": i.accessToken,
		}).
		Get(i.baseURL + "/me")
	if err != nil {
		return false, networkError(err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		logrus.Error("instagram access token rejected")
		return false, nil
	default:
		return false, apiError(resp.StatusCode(), string(resp.Body()))
	}
}

func (i *InstagramConnector) ConfigRequirements() []models.ConfigRequirement {
	return []models.ConfigRequirement{
		{
			Key:         "INSTAGRAM_ACCESS_TOKEN",
			Description: "Instagram Basic Display API access token",
			Required:    true,
			Example:     "IGQVJ...",
			SourceURL:   "https://developers.facebook.com/docs/instagram-basic-display-api",
		},
	}
}
