package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Job - одна единица работы "загрузка файла -> сгенерированный контент".
//
// Машина состояний:
//
//	uploaded -> pending -> processing -> completed
//	                                  -> failed -> pending (повторная генерация)
//
// Переходы однонаправленные, кроме failed -> pending. Переход pending ->
// processing выполняется условным UPDATE (см. JobRepository.MarkProcessing),
// чтобы повторная доставка из очереди не запустила обработку дважды.
type Job struct {
	BaseModel

	// Внешний идентификатор задачи (не первичный ключ)
	JobID string `gorm:"type:uuid;uniqueIndex;not null"`

	UserID   string `gorm:"not null;index"`
	ClientID string `gorm:"not null;index"`

	FileType         FileType `gorm:"type:varchar(10);not null"`
	OriginalFilename string   `gorm:"not null"`
	FilePath         string   `gorm:"not null"`

	// Для видео - путь к извлеченной аудиодорожке
	ConvertedAudioPath string

	Status   JobStatus `gorm:"type:varchar(20);default:'uploaded';index"`
	Progress int       `gorm:"default:0"`

	// Параметры генерации
	CaptionLength     ContentLength `gorm:"type:varchar(10);default:'medium'"`
	DescriptionLength ContentLength `gorm:"type:varchar(10);default:'medium'"`
	HashtagCount      int           `gorm:"default:15"`

	// Результат или текст ошибки
	ResultData   datatypes.JSON `gorm:"type:jsonb"`
	ErrorMessage string

	// Денормализованный список хэштегов из результата,
	// чтобы списки задач не парсили jsonb
	Hashtags pq.StringArray `gorm:"type:text[]"`

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// ProcessingTime возвращает длительность обработки в секундах, если задача завершена
func (j *Job) ProcessingTime() *float64 {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return nil
	}
	secs := j.CompletedAt.Sub(*j.StartedAt).Seconds()
	return &secs
}

// DurationDisplay - человекочитаемая длительность обработки
func (j *Job) DurationDisplay() string {
	pt := j.ProcessingTime()
	if pt == nil {
		return "N/A"
	}
	seconds := int(*pt)
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

// ClampProgress приводит прогресс к диапазону [0,100]
func ClampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
