package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"capgen_backend/internal/logger"
	"capgen_backend/internal/metrics"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a social media expert who creates engaging captions, " +
	"descriptions, and trending hashtags for video content. Make content suitable " +
	"for Instagram, Facebook, and YouTube."

var captionRequirements = map[string]string{
	"short":  "1 sentence (concise and punchy)",
	"medium": "2 sentences (engaging with hook)",
	"long":   "3 sentences (detailed with strong hook)",
}

var descriptionRequirements = map[string]string{
	"short":  "1 paragraph (brief overview)",
	"medium": "2-3 paragraphs (detailed explanation)",
	"long":   "4-5 paragraphs (comprehensive and detailed)",
}

// OpenAIGenerator реализует ContentGenerator поверх Whisper + chat completions
type OpenAIGenerator struct {
	client  *openai.Client
	metrics *metrics.Metrics
}

func NewOpenAIGenerator(apiKey string, m *metrics.Metrics) *OpenAIGenerator {
	return &OpenAIGenerator{client: openai.NewClient(apiKey), metrics: m}
}

// observe пишет счетчик и латентность вызова OpenAI API
func (g *OpenAIGenerator) observe(operation string, started time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.OpenAIRequests.WithLabelValues(operation, status).Inc()
	g.metrics.OpenAILatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// FromAudio: распознавание (всегда перевод на английский - контент для
// соцсетей генерируется на английском), затем генерация пакета контента.
func (g *OpenAIGenerator) FromAudio(ctx context.Context, audioPath string, opts GenerationOptions) (*Result, error) {
	transcription, err := g.translate(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	prompt := buildAudioPrompt(transcription, opts)

	content, err := g.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	result := parseGeneratedContent(content)
	result.Transcription = transcription

	logger.CtxInfo(ctx, "social media content generated", "source", audioPath)
	return result, nil
}

// FromImage генерирует контент по изображению через vision-модель
func (g *OpenAIGenerator) FromImage(ctx context.Context, imagePath string, opts GenerationOptions) (*Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	imageURL := fmt.Sprintf("data:%s;base64,%s",
		imageMIMEType(imagePath), base64.StdEncoding.EncodeToString(data))

	prompt := buildImagePrompt(opts)

	content, err := g.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    imageURL,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	result := parseGeneratedContent(content)

	logger.CtxInfo(ctx, "social media content generated", "source", imagePath)
	return result, nil
}

// translate - whisper-1 перевод аудио на английский с таймстампами сегментов
func (g *OpenAIGenerator) translate(ctx context.Context, audioPath string) (string, error) {
	resp, err := g.recognize(ctx, audioPath, "", true)
	if err != nil {
		return "", err
	}
	return FormatSegments(resp), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	started := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       openai.GPT4oMini,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	g.observe("chat_completion", started, err)
	if err != nil {
		return "", fmt.Errorf("content generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("content generation returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildAudioPrompt(transcription string, opts GenerationOptions) string {
	captionReq := requirementFor(captionRequirements, opts.CaptionLength)
	descriptionReq := requirementFor(descriptionRequirements, opts.DescriptionLength)
	hashtagCount := ClampHashtagCount(opts.HashtagCount)

	return fmt.Sprintf(`Based on this video transcription, generate social media content for Instagram, Facebook, and YouTube:

Transcription:
%s

Please provide:
1. A hook-style caption (%s, written like a hook that grabs attention and creates curiosity. Use attention-grabbing phrases, emojis, and make people want to watch)
2. A detailed description (%s explaining the video content)
3. Exactly %d trending hashtags relevant to the content

Format the response as:

CAPTION:
[Your hook-style attention-grabbing caption here with emojis]

DESCRIPTION:
[Your detailed description here]

HASHTAGS:
[Your hashtags separated by spaces, like: #trending #video #content]`,
		transcription, captionReq, descriptionReq, hashtagCount)
}

func buildImagePrompt(opts GenerationOptions) string {
	captionReq := requirementFor(captionRequirements, opts.CaptionLength)
	descriptionReq := requirementFor(descriptionRequirements, opts.DescriptionLength)
	hashtagCount := ClampHashtagCount(opts.HashtagCount)

	return fmt.Sprintf(`Based on this image, generate social media content for Instagram, Facebook, and YouTube.

Please provide:
1. A hook-style caption (%s, written like a hook that grabs attention and creates curiosity. Use attention-grabbing phrases, emojis, and make people want to engage)
2. A detailed description (%s explaining what is in the image)
3. Exactly %d trending hashtags relevant to the content

Format the response as:

CAPTION:
[Your hook-style attention-grabbing caption here with emojis]

DESCRIPTION:
[Your detailed description here]

HASHTAGS:
[Your hashtags separated by spaces, like: #trending #photo #content]`,
		captionReq, descriptionReq, hashtagCount)
}

func requirementFor(m map[string]string, key string) string {
	if req, ok := m[key]; ok {
		return req
	}
	return m["medium"]
}

// parseGeneratedContent разбирает ответ модели по маркерам CAPTION /
// DESCRIPTION / HASHTAGS и собирает варианты для площадок
func parseGeneratedContent(content string) *Result {
	caption := extractSection(content, "CAPTION:", "DESCRIPTION:")
	description := extractSection(content, "DESCRIPTION:", "HASHTAGS:")
	hashtags := extractSection(content, "HASHTAGS:", "")

	result := &Result{
		Caption:     caption,
		Description: description,
		Hashtags:    hashtags,
		Instagram: PlatformContent{
			Caption:     caption + "\n\n" + hashtags,
			Description: description,
		},
		Facebook: PlatformContent{
			Caption:     caption,
			Description: description + "\n\n" + hashtags,
		},
		YouTube: PlatformContent{
			Title:       caption,
			Description: description + "\n\n" + hashtags,
		},
	}

	for _, tag := range result.HashtagList() {
		result.YouTube.Tags = append(result.YouTube.Tags, strings.TrimPrefix(tag, "#"))
	}

	return result
}

func extractSection(content, marker, nextMarker string) string {
	idx := strings.Index(content, marker)
	if idx < 0 {
		return ""
	}
	section := content[idx+len(marker):]
	if nextMarker != "" {
		if end := strings.Index(section, nextMarker); end >= 0 {
			section = section[:end]
		}
	}
	return strings.TrimSpace(section)
}

func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
