package pipeline

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// FormatSegments форматирует сегменты распознавания в построчный вид
//
//	[0:05 - 0:12] -> hello world
func FormatSegments(resp *openai.AudioResponse) string {
	if len(resp.Segments) == 0 {
		return resp.Text
	}

	lines := make([]string, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		lines = append(lines, fmt.Sprintf("%s -> %s",
			formatRange(seg.Start, seg.End),
			strings.TrimSpace(seg.Text)))
	}
	return strings.Join(lines, "\n")
}

func formatRange(start, end float64) string {
	return fmt.Sprintf("[%s - %s]", formatMinSec(start), formatMinSec(end))
}

// M:SS, минуты без ведущего нуля
func formatMinSec(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// FormatSRTTimestamp - таймстамп в формате SRT: HH:MM:SS,mmm
func FormatSRTTimestamp(seconds float64) string {
	hours := int(seconds / 3600)
	minutes := int(seconds/60) % 60
	secs := int(seconds) % 60
	millis := int(seconds*1000) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
