package repositories

import (
	"errors"
	"time"

	"capgen_backend/internal/models"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound = errors.New("job not found")

	// ErrJobConflict: задача не в том состоянии, из которого допустим переход
	ErrJobConflict = errors.New("job is not in an eligible state")
)

// JobFilter ограничивает выборку списка задач
type JobFilter struct {
	ClientID string
	Status   models.JobStatus
	Limit    int
	Offset   int
}

type JobRepository interface {
	Create(job *models.Job) error
	FindByJobID(jobID string) (*models.Job, error)
	FindByJobIDAndUser(jobID, userID string) (*models.Job, error)
	ListByUser(userID string, filter JobFilter) ([]models.Job, int64, error)

	// SetGenerationParams сохраняет параметры перед запуском генерации
	SetGenerationParams(jobID string, caption, description models.ContentLength, hashtagCount int) error

	// MarkPending: uploaded|failed -> pending (условный UPDATE).
	// Возвращает ErrJobConflict, если задача уже в очереди или обрабатывается.
	MarkPending(jobID string) error

	// ReleasePending откатывает pending обратно в прежний статус.
	// Нужен, когда после MarkPending списание кредита не прошло.
	ReleasePending(jobID string, to models.JobStatus, errorMessage string) error

	// MarkProcessing: pending -> processing. Условный UPDATE гарантирует,
	// что обработку при повторной доставке из очереди начнет ровно один воркер.
	// false без ошибки — задачу уже забрали.
	MarkProcessing(jobID string) (bool, error)

	// Requeue: processing -> pending, для повтора после сбоя на стороне
	// воркера уже после захвата задачи
	Requeue(jobID string) error

	// UpdateProgress обновляет прогресс только у обрабатываемой задачи
	UpdateProgress(jobID string, progress int) error

	UpdateConvertedAudioPath(jobID, path string) error

	// Complete: processing -> completed, прогресс принудительно 100
	Complete(jobID string, result datatypes.JSON, hashtags []string) error

	// Fail переводит задачу в failed из любого нетерминального состояния
	Fail(jobID string, errorMessage string) error
}

type JobRepositoryImpl struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &JobRepositoryImpl{db: db}
}

func (r *JobRepositoryImpl) Create(job *models.Job) error {
	return r.db.Create(job).Error
}

func (r *JobRepositoryImpl) FindByJobID(jobID string) (*models.Job, error) {
	var job models.Job
	err := r.db.First(&job, "job_id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) FindByJobIDAndUser(jobID, userID string) (*models.Job, error) {
	var job models.Job
	err := r.db.First(&job, "job_id = ? AND user_id = ?", jobID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) ListByUser(userID string, filter JobFilter) ([]models.Job, int64, error) {
	query := r.db.Model(&models.Job{}).Where("user_id = ?", userID)

	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var jobs []models.Job
	err := query.
		Order("created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&jobs).Error
	return jobs, total, err
}

func (r *JobRepositoryImpl) SetGenerationParams(jobID string, caption, description models.ContentLength, hashtagCount int) error {
	return r.db.Model(&models.Job{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"caption_length":     caption,
			"description_length": description,
			"hashtag_count":      hashtagCount,
		}).Error
}

func (r *JobRepositoryImpl) MarkPending(jobID string) error {
	result := r.db.Model(&models.Job{}).
		Where("job_id = ? AND status IN ?", jobID,
			[]models.JobStatus{models.JobStatusUploaded, models.JobStatusFailed}).
		Updates(map[string]interface{}{
			"status":        models.JobStatusPending,
			"progress":      0,
			"error_message": "",
			"started_at":    nil,
			"completed_at":  nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobConflict
	}
	return nil
}

func (r *JobRepositoryImpl) ReleasePending(jobID string, to models.JobStatus, errorMessage string) error {
	result := r.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", jobID, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":        to,
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobConflict
	}
	return nil
}

func (r *JobRepositoryImpl) MarkProcessing(jobID string) (bool, error) {
	result := r.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", jobID, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     models.JobStatusProcessing,
			"started_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *JobRepositoryImpl) Requeue(jobID string) error {
	result := r.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", jobID, models.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.JobStatusPending,
			"progress":   0,
			"started_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobConflict
	}
	return nil
}

func (r *JobRepositoryImpl) UpdateProgress(jobID string, progress int) error {
	return r.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", jobID, models.JobStatusProcessing).
		Update("progress", models.ClampProgress(progress)).Error
}

func (r *JobRepositoryImpl) UpdateConvertedAudioPath(jobID, path string) error {
	return r.db.Model(&models.Job{}).
		Where("job_id = ?", jobID).
		Update("converted_audio_path", path).Error
}

func (r *JobRepositoryImpl) Complete(jobID string, result datatypes.JSON, hashtags []string) error {
	res := r.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", jobID, models.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"progress":     100,
			"result_data":  result,
			"hashtags":     pq.StringArray(hashtags),
			"completed_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobConflict
	}
	return nil
}

func (r *JobRepositoryImpl) Fail(jobID string, errorMessage string) error {
	res := r.db.Model(&models.Job{}).
		Where("job_id = ? AND status NOT IN ?", jobID,
			[]models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed}).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": errorMessage,
			"completed_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobConflict
	}
	return nil
}
