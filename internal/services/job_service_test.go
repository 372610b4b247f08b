package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"capgen_backend/internal/models"
	"capgen_backend/internal/pipeline"
	"capgen_backend/internal/queue"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services/dto"
	"capgen_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobServiceFixture struct {
	jobs      *fakeJobRepo
	clients   *fakeClientRepo
	credits   *fakeCreditService
	store     *memStorage
	converter *fakeConverter
	generator *fakeGenerator
	transcrb  *fakeTranscriber
	publisher *fakePublisher
	service   JobService
}

func newJobServiceFixture(t *testing.T) *jobServiceFixture {
	t.Helper()

	f := &jobServiceFixture{
		jobs:      newFakeJobRepo(),
		clients:   newFakeClientRepo(),
		credits:   &fakeCreditService{state: dto.CreditStateResponse{UsedToday: 1, DailyLimit: 3, Remaining: 2}},
		store:     newMemStorage(),
		converter: &fakeConverter{},
		generator: &fakeGenerator{result: sampleResult()},
		transcrb:  &fakeTranscriber{text: "[0:00 - 0:05] -> hello"},
		publisher: &fakePublisher{},
	}
	f.service = NewJobService(
		f.jobs, f.clients, f.credits, f.store,
		f.converter, f.generator, f.transcrb, f.publisher,
		nil, 10*1024*1024,
	)

	require.NoError(t, f.clients.Create(&models.Client{
		BaseModel: models.BaseModel{ID: "22222222-2222-2222-2222-222222222222"},
		UserID:    "user-1",
		Name:      "Acme Coffee",
	}))
	return f
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Caption:     "Fresh roast, zero compromise",
		Description: "Small-batch beans roasted daily.",
		Hashtags:    "#coffee #roastery #specialtycoffee #barista #espresso",
	}
}

func (f *jobServiceFixture) upload(t *testing.T, filename string) *dto.JobResponse {
	t.Helper()
	resp, err := f.service.UploadFile(context.Background(), "user-1",
		&dto.UploadFileRequest{ClientID: "22222222-2222-2222-2222-222222222222"},
		&FileUpload{Filename: filename, Size: 1024, Reader: strings.NewReader("payload")},
	)
	require.NoError(t, err)
	return resp
}

func TestUploadFile_CreatesUploadedJob(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)

	resp := f.upload(t, "episode.mp3")

	assert.Equal(t, string(models.JobStatusUploaded), resp.Status)
	assert.Equal(t, "audio", resp.FileType)
	assert.Equal(t, 0, resp.Progress)
	assert.Equal(t, 0, f.credits.used, "загрузка не списывает кредиты")

	job, err := f.jobs.FindByJobID(resp.JobID)
	require.NoError(t, err)
	exists, _ := f.store.Exists(context.Background(), job.FilePath)
	assert.True(t, exists)
	assert.Contains(t, job.FilePath, "uploads/user-1/22222222-2222-2222-2222-222222222222/")
}

func TestUploadFile_RejectsUnknownExtension(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)

	_, err := f.service.UploadFile(context.Background(), "user-1",
		&dto.UploadFileRequest{ClientID: "22222222-2222-2222-2222-222222222222"},
		&FileUpload{Filename: "report.pdf", Size: 10, Reader: strings.NewReader("x")},
	)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFileType)
}

func TestUploadFile_RejectsOversizedFile(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)

	_, err := f.service.UploadFile(context.Background(), "user-1",
		&dto.UploadFileRequest{ClientID: "22222222-2222-2222-2222-222222222222"},
		&FileUpload{Filename: "movie.mp4", Size: 500 * 1024 * 1024, Reader: strings.NewReader("x")},
	)
	assert.ErrorIs(t, err, apperrors.ErrFileTooLarge)
}

func TestUploadFile_RejectsForeignClient(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)

	_, err := f.service.UploadFile(context.Background(), "user-2",
		&dto.UploadFileRequest{ClientID: "22222222-2222-2222-2222-222222222222"},
		&FileUpload{Filename: "a.mp3", Size: 10, Reader: strings.NewReader("x")},
	)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, 404, appErr.HTTPCode)
}

func TestGenerate_ChargesAndEnqueues(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")

	resp, err := f.service.Generate(context.Background(), "user-1", &dto.GenerateRequest{
		JobID:         uploaded.JobID,
		CaptionLength: "short",
		HashtagCount:  10,
	})
	require.NoError(t, err)

	assert.Equal(t, string(models.JobStatusPending), resp.Status)
	assert.Equal(t, 1, f.credits.used)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, queue.ActionGenerate, f.publisher.events[0].Action)
	assert.Equal(t, uploaded.JobID, f.publisher.events[0].JobID)

	job, err := f.jobs.FindByJobID(uploaded.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.ContentLengthShort, job.CaptionLength)
	assert.Equal(t, 10, job.HashtagCount)
}

func TestGenerate_RegenerateUsesRegenerateAction(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))
	_, err := f.jobs.MarkProcessing(uploaded.JobID)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Fail(uploaded.JobID, "OpenAI API error"))

	_, err = f.service.Generate(context.Background(), "user-1", &dto.GenerateRequest{JobID: uploaded.JobID})
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, queue.ActionRegenerate, f.publisher.events[0].Action)

	// Перезапуск очистил прежнюю ошибку
	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Empty(t, job.ErrorMessage)
}

func TestGenerate_ConflictFromPendingState(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	_, err := f.service.Generate(context.Background(), "user-1", &dto.GenerateRequest{JobID: uploaded.JobID})

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, 400, appErr.HTTPCode)
	assert.Equal(t, 0, f.credits.used, "конфликт статуса не должен списывать кредит")
	assert.Empty(t, f.publisher.events)
}

func TestGenerate_ConcurrentSameJobChargesOnce(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")

	// Два одновременных запуска одной задачи: переход в pending
	// выигрывает ровно один, второй не должен успеть списать кредит
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Generate(context.Background(), "user-1",
				&dto.GenerateRequest{JobID: uploaded.JobID})
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var appErr *apperrors.AppError
		require.True(t, apperrors.As(err, &appErr))
		assert.Equal(t, 400, appErr.HTTPCode)
		conflicted++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	assert.Equal(t, 1, f.credits.used, "проигравший гонку запуск не списывает кредит")
	assert.Len(t, f.publisher.events, 1)
}

func TestGenerate_CreditLimitStopsEnqueue(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	f.credits.failErr = apperrors.ErrCreditLimitReached
	uploaded := f.upload(t, "episode.mp3")

	_, err := f.service.Generate(context.Background(), "user-1", &dto.GenerateRequest{JobID: uploaded.JobID})

	assert.ErrorIs(t, err, apperrors.ErrCreditLimitReached)
	assert.Empty(t, f.publisher.events)

	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusUploaded, job.Status, "без кредита задача не уходит в очередь")
}

func TestGenerate_CreditLimitRestoresFailedState(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))
	_, err := f.jobs.MarkProcessing(uploaded.JobID)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Fail(uploaded.JobID, "OpenAI API error"))

	f.credits.failErr = apperrors.ErrCreditLimitReached
	_, err = f.service.Generate(context.Background(), "user-1", &dto.GenerateRequest{JobID: uploaded.JobID})
	assert.ErrorIs(t, err, apperrors.ErrCreditLimitReached)

	// Неудавшийся перезапуск возвращает задачу в failed с прежней ошибкой
	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "OpenAI API error", job.ErrorMessage)
}

func TestGenerate_PublishFailureMarksJobFailed(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	f.publisher.err = errors.New("connection refused")
	uploaded := f.upload(t, "episode.mp3")

	_, err := f.service.Generate(context.Background(), "user-1", &dto.GenerateRequest{JobID: uploaded.JobID})
	require.Error(t, err)

	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "Failed to enqueue job for processing", job.ErrorMessage)
}

func TestProcessJob_AudioCompletes(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	err := f.service.ProcessJob(context.Background(), queue.GenerationEvent{
		JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate,
	})
	require.NoError(t, err)

	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.NotEmpty(t, job.ResultData)
	assert.Contains(t, []string(job.Hashtags), "coffee")
	assert.Equal(t, 1, f.generator.audioCalls)
	assert.Equal(t, 0, f.generator.imageCalls)
}

func TestProcessJob_ImageUsesVisionPath(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "storefront.png")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	err := f.service.ProcessJob(context.Background(), queue.GenerationEvent{
		JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.generator.imageCalls)
	assert.Equal(t, 0, f.generator.audioCalls)
}

func TestProcessJob_SkipsAlreadyClaimedDelivery(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))
	claimed, err := f.jobs.MarkProcessing(uploaded.JobID)
	require.NoError(t, err)
	require.True(t, claimed)

	// Повторная доставка того же события не должна трогать задачу
	err = f.service.ProcessJob(context.Background(), queue.GenerationEvent{
		JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.generator.audioCalls)
}

func TestProcessJob_VideoConversionFailureIsBusinessFailure(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	f.converter.err = errors.New("ffmpeg failed (exit status 1)")
	uploaded := f.upload(t, "promo.mp4")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	err := f.service.ProcessJob(context.Background(), queue.GenerationEvent{
		JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate,
	})

	// Сбой конвертации не инфраструктурный: повтор доставки бессмыслен
	require.NoError(t, err)
	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "Video to audio conversion failed")
}

func TestProcessJob_GeneratorFailureMarksJobFailed(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	f.generator.err = errors.New("OpenAI API error: rate limit")
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	err := f.service.ProcessJob(context.Background(), queue.GenerationEvent{
		JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate,
	})
	require.NoError(t, err)

	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "OpenAI API error")
}

func TestProcessJob_MissingFileIsInfraFault(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	require.NoError(t, f.store.Delete(context.Background(), job.FilePath))

	err := f.service.ProcessJob(context.Background(), queue.GenerationEvent{
		JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate,
	})
	require.Error(t, err, "недоступное хранилище должно уходить в retry")

	job, _ = f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "File not found")
}

func TestProcessJob_CompleteFaultRequeuesForRetry(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	f.jobs.completeErr = errors.New("connection reset by peer")
	event := queue.GenerationEvent{JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate}

	err := f.service.ProcessJob(context.Background(), event)
	require.Error(t, err)

	// Задача возвращена в pending: повторная доставка пройдет CAS
	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	require.Equal(t, models.JobStatusPending, job.Status)

	require.NoError(t, f.service.ProcessJob(context.Background(), event))

	job, _ = f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, f.generator.audioCalls)
}

func TestProcessJob_LoadFaultRequeuesForRetry(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")
	require.NoError(t, f.jobs.MarkPending(uploaded.JobID))

	f.jobs.findErr = errors.New("driver: bad connection")
	event := queue.GenerationEvent{JobID: uploaded.JobID, UserID: "user-1", Action: queue.ActionGenerate}

	err := f.service.ProcessJob(context.Background(), event)
	require.Error(t, err)

	job, _ := f.jobs.FindByJobID(uploaded.JobID)
	require.Equal(t, models.JobStatusPending, job.Status)

	require.NoError(t, f.service.ProcessJob(context.Background(), event))

	job, _ = f.jobs.FindByJobID(uploaded.JobID)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestTranscribe_ReturnsTranscriptWithoutCharging(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "episode.mp3")

	resp, err := f.service.Transcribe(context.Background(), "user-1", &dto.TranscribeRequest{
		JobID: uploaded.JobID,
	})
	require.NoError(t, err)
	assert.Equal(t, "[0:00 - 0:05] -> hello", resp.Transcription)
	assert.Equal(t, 0, f.credits.used)
}

func TestTranscribe_RejectsImageJobs(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	uploaded := f.upload(t, "storefront.png")

	_, err := f.service.Transcribe(context.Background(), "user-1", &dto.TranscribeRequest{
		JobID: uploaded.JobID,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidFileType)
}

func TestListJobs_ScopedToOwner(t *testing.T) {
	t.Parallel()
	f := newJobServiceFixture(t)
	f.upload(t, "one.mp3")
	f.upload(t, "two.mp4")

	mine, err := f.service.ListJobs(context.Background(), "user-1", repositories.JobFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	other, err := f.service.ListJobs(context.Background(), "user-2", repositories.JobFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), other.Total)
}
