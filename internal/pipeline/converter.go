package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"capgen_backend/internal/logger"
)

// FFmpegConverter извлекает mp3-дорожку из видео внешним ffmpeg
type FFmpegConverter struct {
	ffmpegPath string
	timeout    time.Duration
}

func NewFFmpegConverter(ffmpegPath string, timeout time.Duration) *FFmpegConverter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &FFmpegConverter{ffmpegPath: ffmpegPath, timeout: timeout}
}

// VideoToAudio конвертирует видео в mp3 рядом с исходным файлом.
// Возвращает путь к аудиофайлу.
func (c *FFmpegConverter) VideoToAudio(ctx context.Context, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("video file not found: %s", videoPath)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outputPath := filepath.Join(filepath.Dir(videoPath), base+".mp3")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-i", videoPath,
		"-vn", // без видеопотока
		"-acodec", "libmp3lame",
		"-ab", "192k",
		"-ar", "44100",
		"-y", // перезаписать существующий
		outputPath,
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	logger.CtxInfo(ctx, "converting video to audio",
		"video_path", videoPath, "output_path", outputPath)

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("conversion timeout (>%s)", c.timeout)
		}
		return "", fmt.Errorf("conversion failed: %s", tailLines(stderr.String(), 3))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return "", fmt.Errorf("conversion produced no output: %w", err)
	}

	logger.CtxInfo(ctx, "conversion successful",
		"output_path", outputPath, "size_bytes", info.Size())

	return outputPath, nil
}

// tailLines обрезает вывод ffmpeg до читаемого размера для сообщения об ошибке
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= n {
		return strings.Join(lines, " | ")
	}
	return strings.Join(lines[len(lines)-n:], " | ")
}
