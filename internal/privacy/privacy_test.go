package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulsewatch/social-ingest/internal/models"
)

func TestAnonymizeUserID_Deterministic(t *testing.T) {
	first := AnonymizeUserID("user123", "salt")
	second := AnonymizeUserID("user123", "salt")
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
	assert.NotContains(t, first, "user123")
}

func TestAnonymizeUserID_DistinctInputs(t *testing.T) {
	assert.NotEqual(t, AnonymizeUserID("user123", "salt"), AnonymizeUserID("user124", "salt"))
	assert.NotEqual(t, AnonymizeUserID("user123", "salt"), AnonymizeUserID("user123", "pepper"))
}

func TestExtractHashtags(t *testing.T) {
	tags := ExtractHashtags("This is a #test post with #multiple #hashtags")
	assert.Equal(t, []string{"#test", "#multiple", "#hashtags"}, tags)
}

func TestExtractHashtags_Duplicates(t *testing.T) {
	tags := ExtractHashtags("#go #go #golang")
	assert.Equal(t, []string{"#go", "#golang"}, tags)
}

func TestExtractMentions(t *testing.T) {
	mentions := ExtractMentions("cc @alice and @bob about the outage")
	assert.Equal(t, []string{"@alice", "@bob"}, mentions)
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("see https://example.com/a and http://example.org?q=1 for details")
	assert.Equal(t, []string{"https://example.com/a", "http://example.org?q=1"}, urls)
}

func TestAssembleContent(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		body     string
		expected string
	}{
		{"title and body", "A", "B", "A\n\nB"},
		{"title only", "A", "", "A"},
		{"body only", "", "B", "B"},
		{"neither", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AssembleContent(tt.title, tt.body))
		})
	}
}

func TestContainsSensitiveContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected bool
	}{
		{"plain content", "a nice day at the park", false},
		{"nsfw marker", "this thread is NSFW", true},
		{"embedded marker", "reports of violence in the area", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContainsSensitiveContent(tt.content))
		})
	}
}

func TestDecodeMediaURL(t *testing.T) {
	decoded := DecodeMediaURL("https://preview.redd.it/abc.jpg?width=640&amp;s=xyz")
	assert.Equal(t, "https://preview.redd.it/abc.jpg?width=640&s=xyz", decoded)
}

func TestApply_GeneralizesLocation(t *testing.T) {
	cfg := &Config{Salt: "s", LocationPrecisionKM: 10, RetentionPolicy: "2_years", FilterSensitiveContent: true}
	post := models.Post{
		Content:  "hello",
		Location: &models.GeoLocation{Latitude: 1, Longitude: 2, RadiusKM: 1},
	}

	Apply(&post, cfg)

	assert.True(t, post.PrivacyFlags.Anonymized)
	assert.True(t, post.PrivacyFlags.LocationGeneralized)
	assert.Equal(t, 10.0, post.Location.RadiusKM)
	assert.Equal(t, "2_years", post.PrivacyFlags.RetentionPolicy)
	assert.Equal(t, models.ConsentImplied, post.PrivacyFlags.ConsentStatus)
}

func TestApply_NoLocationStaysAbsent(t *testing.T) {
	cfg := DefaultConfig()
	post := models.Post{Content: "hello"}

	Apply(&post, cfg)

	assert.Nil(t, post.Location)
	assert.False(t, post.PrivacyFlags.LocationGeneralized)
	assert.True(t, post.PrivacyFlags.Anonymized)
}

func TestApply_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	post := models.Post{
		Content:  "a #tag from someone nsfw",
		Location: &models.GeoLocation{Latitude: 1, Longitude: 2, RadiusKM: 1},
	}

	Apply(&post, cfg)
	first := post
	Apply(&post, cfg)

	assert.Equal(t, first, post)
}
