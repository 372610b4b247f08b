package pipeline

import (
	"context"
	"strings"
)

// GenerationOptions - параметры генерации контента
type GenerationOptions struct {
	CaptionLength     string // short | medium | long
	DescriptionLength string // short | medium | long
	HashtagCount      int    // приводится к диапазону [5,30]
}

// PlatformContent - вариант публикации для конкретной площадки
type PlatformContent struct {
	Caption     string `json:"caption,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`

	// Теги без решетки, только для YouTube
	Tags []string `json:"tags,omitempty"`
}

// Result - итоговый пакет контента. Формат стабилен: клиенты
// читают его напрямую из result_data задачи.
type Result struct {
	Transcription string `json:"transcription,omitempty"`
	Caption       string `json:"caption"`
	Description   string `json:"description"`
	Hashtags      string `json:"hashtags"`

	Instagram PlatformContent `json:"instagram"`
	Facebook  PlatformContent `json:"facebook"`
	YouTube   PlatformContent `json:"youtube"`
}

// HashtagList возвращает хэштеги результатов как срез (с решетками)
func (r *Result) HashtagList() []string {
	var tags []string
	for _, f := range strings.Fields(r.Hashtags) {
		if len(f) > 1 && f[0] == '#' {
			tags = append(tags, f)
		}
	}
	return tags
}

// AudioConverter извлекает аудиодорожку из видеофайла
type AudioConverter interface {
	VideoToAudio(ctx context.Context, videoPath string) (string, error)
}

// ContentGenerator генерирует пакет контента из медиафайла
type ContentGenerator interface {
	FromAudio(ctx context.Context, audioPath string, opts GenerationOptions) (*Result, error)
	FromImage(ctx context.Context, imagePath string, opts GenerationOptions) (*Result, error)
}

// ClampHashtagCount приводит количество хэштегов к диапазону [5,30]
func ClampHashtagCount(n int) int {
	if n < 5 {
		return 5
	}
	if n > 30 {
		return 30
	}
	return n
}
