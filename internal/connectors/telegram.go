package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/social-ingest/internal/models"
	"github.com/pulsewatch/social-ingest/internal/privacy"
	"github.com/pulsewatch/social-ingest/internal/ratelimit"
)

// TelegramConnector covers the Telegram Bot API. Bots authenticate with the
// token embedded in the URL path and cannot search public messages or read
// user history, so most operations are structural gaps.
type TelegramConnector struct {
	botToken string
	client   *resty.Client
	limiter  *ratelimit.Limiter
	privacy  *privacy.Config
	baseURL  string
}

// NewTelegram creates a Telegram connector from a bot token.
func NewTelegram(botToken string, privacyCfg *privacy.Config) *TelegramConnector {
	return &TelegramConnector{
		botToken: botToken,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "PulseWatch-Collector/1.0"),
		// Bot API allows roughly 30 messages per second.
		limiter: ratelimit.NewProactive(0,
			ratelimit.Window{Length: time.Second, Cap: 30},
		),
		privacy: privacyCfg,
		baseURL: "https://api.telegram.org",
	}
}

func (t *TelegramConnector) PlatformName() string { return "telegram" }

func (t *TelegramConnector) IsConfigured() bool { return t.botToken != "" }

func (t *TelegramConnector) RateLimitStatus() models.RateLimitInfo {
	return t.limiter.Status()
}

func (t *TelegramConnector) SearchPosts(ctx context.Context, params *models.SearchParams) ([]models.Post, error) {
	return nil, configError("Telegram Bot API does not support search")
}

func (t *TelegramConnector) GetPostByID(ctx context.Context, postID string) (*models.Post, error) {
	return nil, genericError("Telegram message lookup is not implemented")
}

func (t *TelegramConnector) GetUserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	return nil, configError("Telegram bots cannot access user message history")
}

func (t *TelegramConnector) GetTrendingTopics(ctx context.Context, location string) ([]string, error) {
	return nil, configError("Telegram does not provide trending topics")
}

func (t *TelegramConnector) ValidateCredentials(ctx context.Context) (bool, error) {
	if err := t.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	resp, err := t.client.R().
		SetContext(ctx).
		Get(t.baseURL + "/bot" + t.botToken + "/getMe")
	if err != nil {
		return false, networkError(err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusNotFound {
		logrus.Error("telegram bot token rejected")
		return false, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return false, apiError(resp.StatusCode(), string(resp.Body()))
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return false, parseError(err)
	}
	return result.OK, nil
}

func (t *TelegramConnector) ConfigRequirements() []models.ConfigRequirement {
	return []models.ConfigRequirement{
		{
			Key:         "TELEGRAM_BOT_TOKEN",
			Description: "Telegram Bot API token",
			Required:    true,
			Example:     "123456789:ABCdefGHIjklMNOpqrsTUVwxyz",
			SourceURL:   "https://core.telegram.org/bots#6-botfather",
		},
	}
}
