package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/pulsewatch/social-ingest/internal/models"
)

// Config holds the process-wide privacy settings. It is loaded once and
// shared by reference across all connectors; fields are never mutated after
// startup.
type Config struct {
	// Salt mixed into every user-id hash.
	Salt string

	// LocationPrecisionKM is the minimum radius attached to any geo
	// coordinate that survives normalization.
	LocationPrecisionKM float64

	// RetentionPolicy tag stamped onto every post's privacy flags.
	RetentionPolicy string

	// FilterSensitiveContent enables the sensitive-content heuristic.
	FilterSensitiveContent bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Salt:                   "default_salt_change_in_production",
		LocationPrecisionKM:    10.0,
		RetentionPolicy:        "2_years",
		FilterSensitiveContent: true,
	}
}

var (
	hashtagRe = regexp.MustCompile(`#\w+`)
	mentionRe = regexp.MustCompile(`@\w+`)
	urlRe     = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
)

// sensitiveMarkers is the keyword heuristic for flagging potentially
// sensitive content. Platform-native adult flags are OR'd in separately by
// each connector.
var sensitiveMarkers = []string{
	"nsfw",
	"gore",
	"graphic content",
	"explicit",
	"violence",
	"suicide",
	"self-harm",
	"drug",
	"weapon",
}

// AnonymizeUserID produces a deterministic, non-reversible identifier for a
// raw platform user id. Equal (id, salt) pairs always hash to the same
// value; recovering the id requires the salt.
func AnonymizeUserID(rawID, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + rawID))
	return hex.EncodeToString(sum[:16])
}

// ExtractHashtags returns every #-prefixed word token in content, in order
// of first appearance, without duplicates.
func ExtractHashtags(content string) []string {
	return dedupe(hashtagRe.FindAllString(content, -1))
}

// ExtractMentions returns every @-prefixed word token in content. Callers
// must anonymize these before placing them on a post.
func ExtractMentions(content string) []string {
	return dedupe(mentionRe.FindAllString(content, -1))
}

// ExtractURLs returns every absolute URL found in content.
func ExtractURLs(content string) []string {
	return dedupe(urlRe.FindAllString(content, -1))
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// ContainsSensitiveContent applies the keyword heuristic to content.
func ContainsSensitiveContent(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// AssembleContent joins a title and a body the way forum-style platforms
// split them: both present and non-empty gives "title\n\nbody", otherwise
// whichever is present.
func AssembleContent(title, body string) string {
	switch {
	case title != "" && body != "":
		return title + "\n\n" + body
	case title != "":
		return title
	default:
		return body
	}
}

// DecodeMediaURL undoes HTML entity encoding in media URLs (Reddit preview
// URLs arrive with &amp; escapes).
func DecodeMediaURL(raw string) string {
	return html.UnescapeString(raw)
}

// Apply finalizes a post's privacy posture: generalizes location to the
// configured precision and stamps the privacy flags. Applying it twice is a
// no-op beyond the first call.
func Apply(post *models.Post, cfg *Config) {
	if post.Location != nil && post.Location.RadiusKM < cfg.LocationPrecisionKM {
		post.Location.RadiusKM = cfg.LocationPrecisionKM
		post.PrivacyFlags.LocationGeneralized = true
	}

	post.PrivacyFlags.Anonymized = true
	post.PrivacyFlags.RetentionPolicy = cfg.RetentionPolicy

	if cfg.FilterSensitiveContent && !post.PrivacyFlags.SensitiveContent {
		post.PrivacyFlags.SensitiveContent = ContainsSensitiveContent(post.Content)
	}

	if post.PrivacyFlags.ConsentStatus == "" {
		// Public posts from public accounts. Explicit consent would need an
		// out-of-band consent record, which this layer never has.
		post.PrivacyFlags.ConsentStatus = models.ConsentImplied
	}
}
