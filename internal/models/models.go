package models

import "time"

// SearchParams holds the common search parameters accepted by every connector.
// A SearchParams value is built per call and never mutated by the connector.
type SearchParams struct {
	Query       string            `json:"query"`
	MaxResults  int               `json:"max_results,omitempty"`
	StartTime   *time.Time        `json:"start_time,omitempty"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
	Language    string            `json:"language,omitempty"`
	Location    *GeoLocation      `json:"location,omitempty"`
	ContentType ContentType       `json:"content_type,omitempty"`
	ExtraParams map[string]string `json:"extra_params,omitempty"`
}

// ContentType filters search results by the kind of content attached.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeLink  ContentType = "link"
	ContentTypeAll   ContentType = "all"
)

// GeoLocation is a point with a radius, used both as a search filter and as
// the (generalized) location attached to a post.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKM  float64 `json:"radius_km"`
	Name      string  `json:"name,omitempty"`
}

// Post is the platform-neutral record produced by a connector. Every Post
// returned by a connector has PrivacyFlags.Anonymized set and a non-zero
// CreatedAt (ingestion time when the source omits one).
type Post struct {
	ID           string                 `json:"id"`
	Platform     string                 `json:"platform"`
	Content      string                 `json:"content"`
	Author       AuthorInfo             `json:"author"`
	CreatedAt    time.Time              `json:"created_at"`
	Metrics      PostMetrics            `json:"metrics"`
	Location     *GeoLocation           `json:"location,omitempty"`
	Language     string                 `json:"language,omitempty"`
	Media        []MediaAttachment      `json:"media,omitempty"`
	Hashtags     []string               `json:"hashtags,omitempty"`
	Mentions     []string               `json:"mentions,omitempty"`
	URLs         []string               `json:"urls,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	PrivacyFlags PrivacyFlags           `json:"privacy_flags"`
}

// AuthorInfo describes a post author without exposing the raw platform user
// id. IDHash is a salted hash, never the original identifier.
type AuthorInfo struct {
	IDHash         string     `json:"id_hash"`
	Username       string     `json:"username"`
	Verified       bool       `json:"verified"`
	FollowerCount  *int64     `json:"follower_count,omitempty"`
	AccountCreated *time.Time `json:"account_created,omitempty"`
	AccountType    string     `json:"account_type,omitempty"`
}

// PostMetrics holds engagement counters. EngagementRate is computed
// downstream, never by a connector.
type PostMetrics struct {
	Likes          int64    `json:"likes"`
	Shares         int64    `json:"shares"`
	Comments       int64    `json:"comments"`
	Views          *int64   `json:"views,omitempty"`
	EngagementRate *float64 `json:"engagement_rate,omitempty"`
}

// MediaAttachment describes one piece of media attached to a post.
type MediaAttachment struct {
	Type       string           `json:"type"`
	URL        string           `json:"url"`
	AltText    string           `json:"alt_text,omitempty"`
	Dimensions *MediaDimensions `json:"dimensions,omitempty"`
	FileSize   *int64           `json:"file_size,omitempty"`
}

// MediaDimensions in pixels.
type MediaDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ConsentStatus records the legal basis assumed for processing a post.
type ConsentStatus string

const (
	ConsentExplicit           ConsentStatus = "explicit"
	ConsentImplied            ConsentStatus = "implied"
	ConsentLegitimateInterest ConsentStatus = "legitimate_interest"
	ConsentUnknown            ConsentStatus = "unknown"
)

// PrivacyFlags records which privacy transformations were applied to a post.
type PrivacyFlags struct {
	Anonymized          bool          `json:"anonymized"`
	SensitiveContent    bool          `json:"sensitive_content"`
	LocationGeneralized bool          `json:"location_generalized"`
	RetentionPolicy     string        `json:"retention_policy"`
	ConsentStatus       ConsentStatus `json:"consent_status"`
}

// RateLimitInfo is a point-in-time snapshot of a connector's quota state,
// not a live handle.
type RateLimitInfo struct {
	Remaining      int           `json:"remaining"`
	Limit          int           `json:"limit"`
	ResetTime      time.Time     `json:"reset_time"`
	WindowDuration time.Duration `json:"window_duration"`
}

// ConfigRequirement describes one credential a connector needs. Consumed by
// setup tooling, never parsed by the connectors themselves.
type ConfigRequirement struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Example     string `json:"example,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}
