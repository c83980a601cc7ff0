// Package connectors holds the uniform adapter contract for every supported
// social platform, the error taxonomy shared by all of them, and the
// registry the orchestrator looks connectors up in.
package connectors

import (
	"context"

	"github.com/pulsewatch/social-ingest/internal/models"
)

// Connector is the contract every platform adapter satisfies. The registry
// and the orchestrator treat all platforms through this interface; an
// operation a platform's tier cannot perform returns a KindConfig error
// rather than being omitted, so callers can render "not supported here"
// differently from "failed this time".
type Connector interface {
	// PlatformName returns the constant platform identifier.
	PlatformName() string

	// IsConfigured reports whether all required credentials are non-empty.
	// No I/O.
	IsConfigured() bool

	// RateLimitStatus returns the current quota snapshot without blocking.
	RateLimitStatus() models.RateLimitInfo

	// SearchPosts runs a search and returns normalized posts. It may block
	// while waiting out a rate-limit window.
	SearchPosts(ctx context.Context, params *models.SearchParams) ([]models.Post, error)

	// GetPostByID fetches a single post. A not-found upstream yields
	// (nil, nil), never an error.
	GetPostByID(ctx context.Context, postID string) (*models.Post, error)

	// GetUserPosts fetches a user's recent public posts.
	GetUserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error)

	// GetTrendingTopics returns trending topic names, optionally scoped to
	// a location.
	GetTrendingTopics(ctx context.Context, location string) ([]string, error)

	// ValidateCredentials performs a cheap live probe. Rejected credentials
	// yield (false, nil); network and parse failures propagate as errors.
	ValidateCredentials(ctx context.Context) (bool, error)

	// ConfigRequirements enumerates the credentials this connector needs.
	// Static, no I/O.
	ConfigRequirements() []models.ConfigRequirement
}
