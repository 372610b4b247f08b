package dto

import (
	"encoding/json"
	"time"

	"capgen_backend/internal/models"
)

// UploadFileRequest - загрузка файла без запуска генерации
type UploadFileRequest struct {
	ClientID string `form:"client_id" validate:"required,uuid"`
}

// GenerateRequest - запуск (или перезапуск) генерации по загруженной задаче
type GenerateRequest struct {
	JobID             string `json:"job_id" validate:"required,uuid"`
	CaptionLength     string `json:"caption_length" validate:"omitempty,is-content-length"`
	DescriptionLength string `json:"description_length" validate:"omitempty,is-content-length"`
	HashtagCount      int    `json:"hashtag_count" validate:"omitempty,min=5,max=30"`
}

// UploadAndGenerateRequest - легаси-вариант: загрузка + генерация одним запросом
type UploadAndGenerateRequest struct {
	ClientID          string `form:"client_id" validate:"required,uuid"`
	CaptionLength     string `form:"caption_length" validate:"omitempty,is-content-length"`
	DescriptionLength string `form:"description_length" validate:"omitempty,is-content-length"`
	HashtagCount      int    `form:"hashtag_count" validate:"omitempty,min=5,max=30"`
}

// TranscribeRequest - прямое распознавание загруженного файла
type TranscribeRequest struct {
	JobID     string `json:"job_id" validate:"required,uuid"`
	Language  string `json:"language"`
	Translate bool   `json:"translate"`
}

// GenerateSRTRequest - субтитры по уже загруженному файлу
type GenerateSRTRequest struct {
	JobID    string `json:"job_id" validate:"required,uuid"`
	Language string `json:"language"`
}

// JobResponse - состояние задачи в API
type JobResponse struct {
	JobID            string `json:"job_id"`
	ClientID         string `json:"client_id"`
	FileType         string `json:"file_type"`
	OriginalFilename string `json:"original_filename"`

	Status   string `json:"status"`
	Progress int    `json:"progress"`

	CaptionLength     string `json:"caption_length"`
	DescriptionLength string `json:"description_length"`
	HashtagCount      int    `json:"hashtag_count"`

	Result       json.RawMessage `json:"result,omitempty"`
	Hashtags     []string        `json:"hashtags,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`

	ProcessingTime  *float64   `json:"processing_time_seconds,omitempty"`
	DurationDisplay string     `json:"duration_display"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// JobListResponse - страница списка задач
type JobListResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// CreditStateResponse - счетчик кредитов в ответах генерации
type CreditStateResponse struct {
	IsPremium  bool  `json:"is_premium"`
	UsedToday  int64 `json:"used_today"`
	DailyLimit int   `json:"daily_limit"` // 0 - без лимита
	Remaining  int   `json:"remaining"`   // -1 - без лимита
}

// GenerateResponse - ответ на запуск генерации
type GenerateResponse struct {
	JobID   string              `json:"job_id"`
	Status  string              `json:"status"`
	Credits CreditStateResponse `json:"credits"`
}

// TranscriptionResponse - результат прямого распознавания
type TranscriptionResponse struct {
	JobID         string `json:"job_id"`
	Transcription string `json:"transcription"`
}

// NewJobResponse собирает JobResponse из модели
func NewJobResponse(j *models.Job) JobResponse {
	resp := JobResponse{
		JobID:             j.JobID,
		ClientID:          j.ClientID,
		FileType:          string(j.FileType),
		OriginalFilename:  j.OriginalFilename,
		Status:            string(j.Status),
		Progress:          j.Progress,
		CaptionLength:     string(j.CaptionLength),
		DescriptionLength: string(j.DescriptionLength),
		HashtagCount:      j.HashtagCount,
		Hashtags:          j.Hashtags,
		ErrorMessage:      j.ErrorMessage,
		ProcessingTime:    j.ProcessingTime(),
		DurationDisplay:   j.DurationDisplay(),
		CreatedAt:         j.CreatedAt,
		StartedAt:         j.StartedAt,
		CompletedAt:       j.CompletedAt,
	}
	if len(j.ResultData) > 0 {
		resp.Result = json.RawMessage(j.ResultData)
	}
	return resp
}
