package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber - прямое распознавание без генерации контента
type Transcriber interface {
	// Transcribe возвращает построчный транскрипт с таймстампами.
	// translate=true переводит речь на английский.
	Transcribe(ctx context.Context, audioPath, language string, translate bool) (string, error)

	// TranscribeSRT возвращает субтитры в формате SRT
	TranscribeSRT(ctx context.Context, audioPath, language string) (string, error)
}

func (g *OpenAIGenerator) Transcribe(ctx context.Context, audioPath, language string, translate bool) (string, error) {
	resp, err := g.recognize(ctx, audioPath, language, translate)
	if err != nil {
		return "", err
	}
	return FormatSegments(resp), nil
}

// TranscribeSRT собирает SRT из сегментов распознавания
func (g *OpenAIGenerator) TranscribeSRT(ctx context.Context, audioPath, language string) (string, error) {
	resp, err := g.recognize(ctx, audioPath, language, false)
	if err != nil {
		return "", err
	}

	if len(resp.Segments) == 0 {
		return "", fmt.Errorf("transcription returned no segments")
	}

	var sb strings.Builder
	for i, seg := range resp.Segments {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatSRTTimestamp(seg.Start),
			FormatSRTTimestamp(seg.End),
			strings.TrimSpace(seg.Text))
	}
	return sb.String(), nil
}

func (g *OpenAIGenerator) recognize(ctx context.Context, audioPath, language string, translate bool) (*openai.AudioResponse, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	var resp openai.AudioResponse
	var err error
	started := time.Now()
	if translate {
		// Перевод не принимает language: целевой язык всегда английский
		resp, err = g.client.CreateTranslation(ctx, req)
		g.observe("translation", started, err)
	} else {
		req.Language = language
		resp, err = g.client.CreateTranscription(ctx, req)
		g.observe("transcription", started, err)
	}
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	return &resp, nil
}
