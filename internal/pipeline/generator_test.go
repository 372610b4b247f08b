package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCompletion = `CAPTION: Fresh roast, zero compromise ☕

DESCRIPTION: Our beans are roasted in small batches every morning.
Come taste the difference before noon.

HASHTAGS: #coffee #roastery #specialtycoffee #barista #espresso`

func TestParseGeneratedContent_Sections(t *testing.T) {
	t.Parallel()

	result := parseGeneratedContent(sampleCompletion)

	assert.Equal(t, "Fresh roast, zero compromise ☕", result.Caption)
	assert.Contains(t, result.Description, "small batches")
	assert.Equal(t, "#coffee #roastery #specialtycoffee #barista #espresso", result.Hashtags)
}

func TestParseGeneratedContent_PlatformVariants(t *testing.T) {
	t.Parallel()

	result := parseGeneratedContent(sampleCompletion)

	// Instagram: подпись + хэштеги
	assert.Contains(t, result.Instagram.Caption, result.Caption)
	assert.Contains(t, result.Instagram.Caption, "#coffee")

	// Facebook: хэштеги в описании, не в подписи
	assert.Equal(t, result.Caption, result.Facebook.Caption)
	assert.Contains(t, result.Facebook.Description, "#coffee")

	// YouTube: заголовок из подписи, теги без решеток
	assert.Equal(t, result.Caption, result.YouTube.Title)
	assert.Contains(t, result.YouTube.Tags, "coffee")
	assert.NotContains(t, result.YouTube.Tags, "#coffee")
}

func TestParseGeneratedContent_MissingMarkers(t *testing.T) {
	t.Parallel()

	result := parseGeneratedContent("just some text without markers")

	assert.Empty(t, result.Caption)
	assert.Empty(t, result.Description)
	assert.Empty(t, result.Hashtags)
	assert.Empty(t, result.HashtagList())
}

func TestHashtagList_FiltersNonHashtags(t *testing.T) {
	t.Parallel()

	r := &Result{Hashtags: "#one two #three  #four"}
	assert.Equal(t, []string{"#one", "#three", "#four"}, r.HashtagList())

	empty := &Result{}
	assert.Empty(t, empty.HashtagList())
}

func TestClampHashtagCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, ClampHashtagCount(0))
	assert.Equal(t, 5, ClampHashtagCount(4))
	assert.Equal(t, 5, ClampHashtagCount(5))
	assert.Equal(t, 15, ClampHashtagCount(15))
	assert.Equal(t, 30, ClampHashtagCount(30))
	assert.Equal(t, 30, ClampHashtagCount(100))
}

func TestBuildAudioPrompt_IncludesRequirements(t *testing.T) {
	t.Parallel()

	prompt := buildAudioPrompt("hello world", GenerationOptions{
		CaptionLength:     "short",
		DescriptionLength: "long",
		HashtagCount:      12,
	})

	assert.Contains(t, prompt, "hello world")
	assert.Contains(t, prompt, captionRequirements["short"])
	assert.Contains(t, prompt, descriptionRequirements["long"])
	assert.Contains(t, prompt, "12")
}

func TestRequirementFor_UnknownLengthFallsBackToMedium(t *testing.T) {
	t.Parallel()

	assert.Equal(t, captionRequirements["medium"], requirementFor(captionRequirements, "gigantic"))
	assert.Equal(t, captionRequirements["short"], requirementFor(captionRequirements, "short"))
}

func TestFormatSegments_TimestampedLines(t *testing.T) {
	t.Parallel()

	raw := `{
		"text": "hello there general",
		"segments": [
			{"start": 0, "end": 4.5, "text": " hello there"},
			{"start": 4.5, "end": 65.2, "text": " general"}
		]
	}`
	resp := &openai.AudioResponse{}
	require.NoError(t, json.Unmarshal([]byte(raw), resp))

	out := FormatSegments(resp)
	assert.Contains(t, out, "[0:00 - 0:04] -> hello there")
	assert.Contains(t, out, "[0:04 - 1:05] -> general")
}

func TestFormatSegments_FallsBackToPlainText(t *testing.T) {
	t.Parallel()

	resp := &openai.AudioResponse{Text: "no segments here"}
	assert.Equal(t, "no segments here", FormatSegments(resp))
}

func TestFormatSRTTimestamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:00:00,000", FormatSRTTimestamp(0))
	assert.Equal(t, "00:00:04,500", FormatSRTTimestamp(4.5))
	assert.Equal(t, "01:01:01,250", FormatSRTTimestamp(3661.25))
}

func TestImageMIMEType(t *testing.T) {
	t.Parallel()

	require.Equal(t, "image/png", imageMIMEType("shop.png"))
	require.Equal(t, "image/jpeg", imageMIMEType("photo.JPG"))
	require.Equal(t, "image/webp", imageMIMEType("banner.webp"))
	require.Equal(t, "image/jpeg", imageMIMEType("unknown.bin"))
}
