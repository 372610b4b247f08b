package handlers

import (
	"net/http"

	"capgen_backend/internal/models"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services"
	"capgen_backend/internal/services/dto"
	"capgen_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type TranscribeHandler struct {
	*BaseHandler
	jobService services.JobService
}

func NewTranscribeHandler(base *BaseHandler, jobService services.JobService) *TranscribeHandler {
	return &TranscribeHandler{
		BaseHandler: base,
		jobService:  jobService,
	}
}

func (h *TranscribeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tr := rg.Group("/transcribe")
	{
		tr.POST("/upload-file", h.UploadFile)
		tr.POST("/generate", h.Generate)
		// Легаси: загрузка и запуск одним запросом
		tr.POST("/upload", h.UploadAndGenerate)
		tr.POST("/transcribe", h.Transcribe)
		tr.POST("/generate-srt", h.GenerateSRT)
		tr.GET("/job/:job_id", h.GetJob)
		tr.GET("/jobs", h.ListJobs)
	}
}

// UploadFile сохраняет файл и создает задачу, генерация не запускается
func (h *TranscribeHandler) UploadFile(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UploadFileRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	file, closeFile, ok := h.formFile(c)
	if !ok {
		return
	}
	defer closeFile()

	resp, err := h.jobService.UploadFile(c.Request.Context(), userID, &req, file)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Generate списывает кредит и ставит задачу в очередь обработки
func (h *TranscribeHandler) Generate(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.GenerateRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.jobService.Generate(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *TranscribeHandler) UploadAndGenerate(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UploadAndGenerateRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	file, closeFile, ok := h.formFile(c)
	if !ok {
		return
	}
	defer closeFile()

	resp, err := h.jobService.UploadAndGenerate(c.Request.Context(), userID, &req, file)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Transcribe возвращает текст распознавания без генерации контента
func (h *TranscribeHandler) Transcribe(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.TranscribeRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.jobService.Transcribe(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GenerateSRT отдает субтитры как вложение .srt
func (h *TranscribeHandler) GenerateSRT(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.GenerateSRTRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	srt, err := h.jobService.GenerateSRT(c.Request.Context(), userID, req.JobID, req.Language)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+req.JobID+`.srt"`)
	c.Data(http.StatusOK, "application/x-subrip", []byte(srt))
}

func (h *TranscribeHandler) GetJob(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.jobService.GetJob(c.Request.Context(), userID, c.Param("job_id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TranscribeHandler) ListJobs(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	limit, offset := ParseLimitOffset(c)
	filter := repositories.JobFilter{
		ClientID: c.Query("client_id"),
		Status:   models.JobStatus(c.Query("status")),
		Limit:    limit,
		Offset:   offset,
	}

	resp, err := h.jobService.ListJobs(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// formFile достает файл из поля "file" multipart-формы
func (h *TranscribeHandler) formFile(c *gin.Context) (*services.FileUpload, func(), bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("File is required"))
		return nil, nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.HandleServiceError(c, err)
		return nil, nil, false
	}

	upload := &services.FileUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Reader:   f,
	}
	return upload, func() { _ = f.Close() }, true
}
