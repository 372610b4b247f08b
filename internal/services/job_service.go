package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"capgen_backend/internal/logger"
	"capgen_backend/internal/metrics"
	"capgen_backend/internal/models"
	"capgen_backend/internal/pipeline"
	"capgen_backend/internal/queue"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services/dto"
	"capgen_backend/internal/storage"
	"capgen_backend/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FileUpload - загружаемый файл из multipart-формы
type FileUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

type JobService interface {
	// UploadFile создает задачу в статусе uploaded, кредит не списывается
	UploadFile(ctx context.Context, userID string, req *dto.UploadFileRequest, file *FileUpload) (*dto.JobResponse, error)

	// Generate списывает кредит и ставит задачу в очередь.
	// Допустим только из uploaded или failed.
	Generate(ctx context.Context, userID string, req *dto.GenerateRequest) (*dto.GenerateResponse, error)

	// UploadAndGenerate - легаси: загрузка и запуск одним запросом
	UploadAndGenerate(ctx context.Context, userID string, req *dto.UploadAndGenerateRequest, file *FileUpload) (*dto.GenerateResponse, error)

	GetJob(ctx context.Context, userID, jobID string) (*dto.JobResponse, error)
	ListJobs(ctx context.Context, userID string, filter repositories.JobFilter) (*dto.JobListResponse, error)

	// Transcribe - прямое распознавание без генерации контента и без кредитов
	Transcribe(ctx context.Context, userID string, req *dto.TranscribeRequest) (*dto.TranscriptionResponse, error)
	GenerateSRT(ctx context.Context, userID, jobID, language string) (string, error)

	// ProcessJob - обработчик события очереди (воркер)
	ProcessJob(ctx context.Context, event queue.GenerationEvent) error
}

type JobServiceImpl struct {
	jobRepo    repositories.JobRepository
	clientRepo repositories.ClientRepository
	credits    CreditService
	store      storage.Storage
	converter  pipeline.AudioConverter
	generator  pipeline.ContentGenerator
	transcrb   pipeline.Transcriber
	publisher  queue.Publisher
	metrics    *metrics.Metrics
	maxSize    int64
}

func NewJobService(
	jobRepo repositories.JobRepository,
	clientRepo repositories.ClientRepository,
	credits CreditService,
	store storage.Storage,
	converter pipeline.AudioConverter,
	generator pipeline.ContentGenerator,
	transcrb pipeline.Transcriber,
	publisher queue.Publisher,
	m *metrics.Metrics,
	maxSize int64,
) JobService {
	return &JobServiceImpl{
		jobRepo:    jobRepo,
		clientRepo: clientRepo,
		credits:    credits,
		store:      store,
		converter:  converter,
		generator:  generator,
		transcrb:   transcrb,
		publisher:  publisher,
		metrics:    m,
		maxSize:    maxSize,
	}
}

func (s *JobServiceImpl) UploadFile(ctx context.Context, userID string, req *dto.UploadFileRequest, file *FileUpload) (*dto.JobResponse, error) {
	if s.maxSize > 0 && file.Size > s.maxSize {
		return nil, apperrors.ErrFileTooLarge
	}

	fileType, err := detectFileType(file.Filename)
	if err != nil {
		return nil, err
	}

	// Клиент должен существовать и принадлежать пользователю
	if _, err := s.clientRepo.FindByIDAndUser(req.ClientID, userID); err != nil {
		if apperrors.Is(err, repositories.ErrClientNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	jobID := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(file.Filename))
	filePath := fmt.Sprintf("uploads/%s/%s/%s%s", userID, req.ClientID, jobID, ext)

	if err := s.store.Save(ctx, filePath, file.Reader, contentTypeForExt(ext)); err != nil {
		return nil, apperrors.InternalError(err)
	}

	job := &models.Job{
		JobID:            jobID,
		UserID:           userID,
		ClientID:         req.ClientID,
		FileType:         fileType,
		OriginalFilename: file.Filename,
		FilePath:         filePath,
		Status:           models.JobStatusUploaded,
		HashtagCount:     15,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "file uploaded",
		"job_id", jobID, "file_type", string(fileType), "size_bytes", file.Size)

	resp := dto.NewJobResponse(job)
	return &resp, nil
}

func (s *JobServiceImpl) Generate(ctx context.Context, userID string, req *dto.GenerateRequest) (*dto.GenerateResponse, error) {
	job, err := s.findJob(userID, req.JobID)
	if err != nil {
		return nil, err
	}

	if !job.Status.CanGenerate() {
		return nil, apperrors.ErrJobStateConflict(string(job.Status))
	}

	action := models.CreditActionGenerate
	if job.Status == models.JobStatusFailed {
		action = models.CreditActionRegenerate
	}

	applyGenerationParams(job, req.CaptionLength, req.DescriptionLength, req.HashtagCount)
	if err := s.jobRepo.SetGenerationParams(job.JobID, job.CaptionLength, job.DescriptionLength, job.HashtagCount); err != nil {
		return nil, apperrors.InternalError(err)
	}

	// Сначала переход в pending: проигравший гонку запрос не должен
	// успеть списать кредит
	prevStatus, prevError := job.Status, job.ErrorMessage
	if err := s.jobRepo.MarkPending(job.JobID); err != nil {
		if apperrors.Is(err, repositories.ErrJobConflict) {
			return nil, apperrors.ErrJobStateConflict(string(job.Status))
		}
		return nil, apperrors.InternalError(err)
	}

	credits, err := s.credits.Use(userID, action,
		fmt.Sprintf("Content generation for job %s", job.JobID))
	if err != nil {
		// Кредит не списан: возвращаем задачу в прежний статус
		if relErr := s.jobRepo.ReleasePending(job.JobID, prevStatus, prevError); relErr != nil {
			logger.CtxError(ctx, "failed to release pending job", "error", relErr)
		}
		return nil, err
	}

	if err := s.enqueue(ctx, job, action); err != nil {
		return nil, err
	}

	return &dto.GenerateResponse{
		JobID:   job.JobID,
		Status:  string(models.JobStatusPending),
		Credits: *credits,
	}, nil
}

func (s *JobServiceImpl) UploadAndGenerate(ctx context.Context, userID string, req *dto.UploadAndGenerateRequest, file *FileUpload) (*dto.GenerateResponse, error) {
	uploaded, err := s.UploadFile(ctx, userID, &dto.UploadFileRequest{ClientID: req.ClientID}, file)
	if err != nil {
		return nil, err
	}

	return s.Generate(ctx, userID, &dto.GenerateRequest{
		JobID:             uploaded.JobID,
		CaptionLength:     req.CaptionLength,
		DescriptionLength: req.DescriptionLength,
		HashtagCount:      req.HashtagCount,
	})
}

func (s *JobServiceImpl) GetJob(ctx context.Context, userID, jobID string) (*dto.JobResponse, error) {
	job, err := s.findJob(userID, jobID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewJobResponse(job)
	return &resp, nil
}

func (s *JobServiceImpl) ListJobs(ctx context.Context, userID string, filter repositories.JobFilter) (*dto.JobListResponse, error) {
	jobs, total, err := s.jobRepo.ListByUser(userID, filter)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.JobListResponse{
		Jobs:   make([]dto.JobResponse, 0, len(jobs)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, dto.NewJobResponse(&jobs[i]))
	}
	return resp, nil
}

func (s *JobServiceImpl) Transcribe(ctx context.Context, userID string, req *dto.TranscribeRequest) (*dto.TranscriptionResponse, error) {
	audioPath, cleanup, err := s.localAudioFor(ctx, userID, req.JobID)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	text, err := s.transcrb.Transcribe(ctx, audioPath, req.Language, req.Translate)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.TranscriptionResponse{JobID: req.JobID, Transcription: text}, nil
}

func (s *JobServiceImpl) GenerateSRT(ctx context.Context, userID, jobID, language string) (string, error) {
	audioPath, cleanup, err := s.localAudioFor(ctx, userID, jobID)
	if err != nil {
		return "", err
	}
	defer cleanup()

	srt, err := s.transcrb.TranscribeSRT(ctx, audioPath, language)
	if err != nil {
		return "", apperrors.InternalError(err)
	}
	return srt, nil
}

// ProcessJob выполняет полный конвейер для одной задачи.
//
// Ошибка в возврате означает инфраструктурный сбой (повтор имеет смысл);
// сбои конвейера фиксируются в задаче и наружу не отдаются.
func (s *JobServiceImpl) ProcessJob(ctx context.Context, event queue.GenerationEvent) error {
	claimed, err := s.jobRepo.MarkProcessing(event.JobID)
	if err != nil {
		s.countError("worker")
		return fmt.Errorf("mark processing: %w", err)
	}
	if !claimed {
		// Повторная доставка: задачу уже обрабатывает другой воркер
		logger.CtxWarn(ctx, "job not in pending state, skipping delivery")
		return nil
	}

	job, err := s.jobRepo.FindByJobID(event.JobID)
	if err != nil {
		// Задача уже захвачена: перед повтором возвращаем ее в pending,
		// иначе повторная доставка не пройдет CAS и задача зависнет
		s.requeue(ctx, event.JobID)
		s.countError("worker")
		return fmt.Errorf("load job: %w", err)
	}

	started := time.Now()
	logger.CtxInfo(ctx, "job processing started", "file_type", string(job.FileType))
	_ = s.jobRepo.UpdateProgress(job.JobID, 10)

	localPath, cleanup, err := s.localize(ctx, job.FilePath)
	if err != nil {
		s.failJob(ctx, job, fmt.Sprintf("File not found: %s", job.FilePath))
		return fmt.Errorf("localize file: %w", err)
	}
	defer cleanup()

	var result *pipeline.Result

	switch job.FileType {
	case models.FileTypeImage:
		_ = s.jobRepo.UpdateProgress(job.JobID, 20)
		_ = s.jobRepo.UpdateProgress(job.JobID, 40)
		result, err = s.generator.FromImage(ctx, localPath, generationOptions(job))

	case models.FileTypeVideo:
		_ = s.jobRepo.UpdateProgress(job.JobID, 20)
		audioPath, convErr := s.converter.VideoToAudio(ctx, localPath)
		if convErr != nil {
			s.failJob(ctx, job, fmt.Sprintf("Video to audio conversion failed: %v", convErr))
			return nil
		}
		// Конвертированное аудио уходит в хранилище рядом с исходником
		storedAudio := strings.TrimSuffix(job.FilePath, filepath.Ext(job.FilePath)) + ".mp3"
		if upErr := s.saveLocalFile(ctx, audioPath, storedAudio); upErr != nil {
			logger.CtxError(ctx, "failed to persist converted audio", "error", upErr)
		} else if dbErr := s.jobRepo.UpdateConvertedAudioPath(job.JobID, storedAudio); dbErr != nil {
			logger.CtxError(ctx, "failed to record converted audio path", "error", dbErr)
		}
		defer os.Remove(audioPath)

		_ = s.jobRepo.UpdateProgress(job.JobID, 40)
		_ = s.jobRepo.UpdateProgress(job.JobID, 70)
		result, err = s.generator.FromAudio(ctx, audioPath, generationOptions(job))

	case models.FileTypeAudio:
		_ = s.jobRepo.UpdateProgress(job.JobID, 20)
		_ = s.jobRepo.UpdateProgress(job.JobID, 40)
		_ = s.jobRepo.UpdateProgress(job.JobID, 70)
		result, err = s.generator.FromAudio(ctx, localPath, generationOptions(job))

	default:
		s.failJob(ctx, job, fmt.Sprintf("Unsupported file type: %s", job.FileType))
		return nil
	}

	if err != nil {
		s.failJob(ctx, job, err.Error())
		return nil
	}

	_ = s.jobRepo.UpdateProgress(job.JobID, 90)

	payload, err := json.Marshal(result)
	if err != nil {
		s.failJob(ctx, job, fmt.Sprintf("Failed to encode result: %v", err))
		return nil
	}

	if err := s.jobRepo.Complete(job.JobID, datatypes.JSON(payload), result.HashtagList()); err != nil {
		s.requeue(ctx, job.JobID)
		s.countError("worker")
		return fmt.Errorf("complete job: %w", err)
	}

	if s.metrics != nil {
		s.metrics.JobsProcessed.WithLabelValues(string(job.FileType), "completed").Inc()
		s.metrics.JobDuration.WithLabelValues(string(job.FileType)).Observe(time.Since(started).Seconds())
	}
	logger.CtxInfo(ctx, "job completed", "duration", time.Since(started).String())
	return nil
}

// --- внутренние помощники ---

func (s *JobServiceImpl) findJob(userID, jobID string) (*models.Job, error) {
	job, err := s.jobRepo.FindByJobIDAndUser(jobID, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrJobNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}
	return job, nil
}

func (s *JobServiceImpl) enqueue(ctx context.Context, job *models.Job, action string) error {
	queueAction := queue.ActionGenerate
	if action == models.CreditActionRegenerate {
		queueAction = queue.ActionRegenerate
	}

	event := queue.GenerationEvent{
		JobID:  job.JobID,
		UserID: job.UserID,
		Action: queueAction,
	}
	if err := s.publisher.PublishGeneration(ctx, event); err != nil {
		// Брокер недоступен: задача не должна зависнуть в pending
		if failErr := s.jobRepo.Fail(job.JobID, "Failed to enqueue job for processing"); failErr != nil {
			logger.CtxError(ctx, "failed to mark unenqueued job", "error", failErr)
		}
		s.countError("queue")
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *JobServiceImpl) countError(component string) {
	if s.metrics != nil {
		s.metrics.Errors.WithLabelValues(component).Inc()
	}
}

func (s *JobServiceImpl) requeue(ctx context.Context, jobID string) {
	if err := s.jobRepo.Requeue(jobID); err != nil {
		logger.CtxError(ctx, "failed to requeue job", "error", err)
	}
}

func (s *JobServiceImpl) failJob(ctx context.Context, job *models.Job, message string) {
	if err := s.jobRepo.Fail(job.JobID, message); err != nil {
		logger.CtxError(ctx, "failed to mark job failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.JobsProcessed.WithLabelValues(string(job.FileType), "failed").Inc()
	}
	logger.CtxWarn(ctx, "job failed", "reason", message)
}

// localize выкачивает объект хранилища во временный файл
func (s *JobServiceImpl) localize(ctx context.Context, storedPath string) (string, func(), error) {
	reader, err := s.store.Get(ctx, storedPath)
	if err != nil {
		return "", nil, err
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "capgen-*"+filepath.Ext(storedPath))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func (s *JobServiceImpl) saveLocalFile(ctx context.Context, localPath, storedPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.store.Save(ctx, storedPath, f, "audio/mpeg")
}

// localAudioFor готовит локальный аудиофайл для распознавания:
// аудио как есть, видео конвертируется
func (s *JobServiceImpl) localAudioFor(ctx context.Context, userID, jobID string) (string, func(), error) {
	job, err := s.findJob(userID, jobID)
	if err != nil {
		return "", nil, err
	}
	if job.FileType == models.FileTypeImage {
		return "", nil, apperrors.ErrInvalidFileType
	}

	localPath, cleanup, err := s.localize(ctx, job.FilePath)
	if err != nil {
		return "", nil, apperrors.InternalError(err)
	}

	if job.FileType == models.FileTypeAudio {
		return localPath, cleanup, nil
	}

	audioPath, err := s.converter.VideoToAudio(ctx, localPath)
	if err != nil {
		cleanup()
		return "", nil, apperrors.InternalError(err)
	}
	return audioPath, func() {
		os.Remove(audioPath)
		cleanup()
	}, nil
}

func applyGenerationParams(job *models.Job, caption, description string, hashtags int) {
	if caption != "" {
		job.CaptionLength = models.ContentLength(caption)
	}
	if job.CaptionLength == "" {
		job.CaptionLength = models.ContentLengthMedium
	}
	if description != "" {
		job.DescriptionLength = models.ContentLength(description)
	}
	if job.DescriptionLength == "" {
		job.DescriptionLength = models.ContentLengthMedium
	}
	if hashtags != 0 {
		job.HashtagCount = pipeline.ClampHashtagCount(hashtags)
	}
	if job.HashtagCount == 0 {
		job.HashtagCount = 15
	}
}

func generationOptions(job *models.Job) pipeline.GenerationOptions {
	return pipeline.GenerationOptions{
		CaptionLength:     string(job.CaptionLength),
		DescriptionLength: string(job.DescriptionLength),
		HashtagCount:      job.HashtagCount,
	}
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true, ".flac": true, ".aac": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

func detectFileType(filename string) (models.FileType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case audioExts[ext]:
		return models.FileTypeAudio, nil
	case videoExts[ext]:
		return models.FileTypeVideo, nil
	case imageExts[ext]:
		return models.FileTypeImage, nil
	default:
		return "", apperrors.ErrInvalidFileType
	}
}
