package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"capgen_backend/internal/email"
	"capgen_backend/internal/models"
	"capgen_backend/internal/pipeline"
	"capgen_backend/internal/queue"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services/dto"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// --- job repository ---

// fakeJobRepo повторяет условные переходы настоящего репозитория в памяти
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	failCalls []string

	// одноразовые сбои для проверки инфраструктурных путей
	findErr     error
	completeErr error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*models.Job)}
}

func (r *fakeJobRepo) Create(job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.JobID] = &cp
	return nil
}

func (r *fakeJobRepo) FindByJobID(jobID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		err := r.findErr
		r.findErr = nil
		return nil, err
	}
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, repositories.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) FindByJobIDAndUser(jobID, userID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, repositories.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) ListByUser(userID string, filter repositories.JobFilter) ([]models.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, job := range r.jobs {
		if job.UserID != userID {
			continue
		}
		if filter.ClientID != "" && job.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, *job)
	}
	return out, int64(len(out)), nil
}

func (r *fakeJobRepo) SetGenerationParams(jobID string, caption, description models.ContentLength, hashtagCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	job.CaptionLength = caption
	job.DescriptionLength = description
	job.HashtagCount = hashtagCount
	return nil
}

func (r *fakeJobRepo) MarkPending(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	if job.Status != models.JobStatusUploaded && job.Status != models.JobStatusFailed {
		return repositories.ErrJobConflict
	}
	job.Status = models.JobStatusPending
	job.Progress = 0
	job.ErrorMessage = ""
	job.StartedAt = nil
	job.CompletedAt = nil
	return nil
}

func (r *fakeJobRepo) ReleasePending(jobID string, to models.JobStatus, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	if job.Status != models.JobStatusPending {
		return repositories.ErrJobConflict
	}
	job.Status = to
	job.ErrorMessage = errorMessage
	return nil
}

func (r *fakeJobRepo) MarkProcessing(jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false, repositories.ErrJobNotFound
	}
	if job.Status != models.JobStatusPending {
		return false, nil
	}
	now := time.Now()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	return true, nil
}

func (r *fakeJobRepo) Requeue(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	if job.Status != models.JobStatusProcessing {
		return repositories.ErrJobConflict
	}
	job.Status = models.JobStatusPending
	job.Progress = 0
	job.StartedAt = nil
	return nil
}

func (r *fakeJobRepo) UpdateProgress(jobID string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	if job.Status == models.JobStatusProcessing {
		job.Progress = models.ClampProgress(progress)
	}
	return nil
}

func (r *fakeJobRepo) UpdateConvertedAudioPath(jobID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	job.ConvertedAudioPath = path
	return nil
}

func (r *fakeJobRepo) Complete(jobID string, result datatypes.JSON, hashtags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		err := r.completeErr
		r.completeErr = nil
		return err
	}
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	if job.Status != models.JobStatusProcessing {
		return repositories.ErrJobConflict
	}
	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.ResultData = result
	job.Hashtags = pq.StringArray(hashtags)
	job.CompletedAt = &now
	return nil
}

func (r *fakeJobRepo) Fail(jobID string, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repositories.ErrJobNotFound
	}
	if job.Status == models.JobStatusCompleted {
		return repositories.ErrJobConflict
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = errorMessage
	r.failCalls = append(r.failCalls, errorMessage)
	return nil
}

// --- client repository ---

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[string]*models.Client // key clientID
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[string]*models.Client)}
}

func (r *fakeClientRepo) Create(client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *client
	r.clients[client.ID] = &cp
	return nil
}

func (r *fakeClientRepo) Update(client *models.Client) error {
	return r.Create(client)
}

func (r *fakeClientRepo) Delete(clientID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok || c.UserID != userID {
		return repositories.ErrClientNotFound
	}
	delete(r.clients, clientID)
	return nil
}

func (r *fakeClientRepo) FindByIDAndUser(clientID, userID string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok || c.UserID != userID {
		return nil, repositories.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeClientRepo) ListByUser(userID string) ([]models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Client
	for _, c := range r.clients {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeClientRepo) CountByUser(userID string) (int64, error) {
	list, _ := r.ListByUser(userID)
	return int64(len(list)), nil
}

// --- credit service ---

type fakeCreditService struct {
	mu      sync.Mutex
	used    int
	failErr error
	state   dto.CreditStateResponse
}

func (s *fakeCreditService) Use(userID, action, description string) (*dto.CreditStateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.used++
	st := s.state
	return &st, nil
}

func (s *fakeCreditService) State(userID string) (*dto.CreditStateResponse, error) {
	st := s.state
	return &st, nil
}

func (s *fakeCreditService) History(userID string, limit, offset int) ([]models.CreditUsage, error) {
	return nil, nil
}

// --- storage ---

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (s *memStorage) Save(ctx context.Context, path string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return nil
}

func (s *memStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *memStorage) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok, nil
}

func (s *memStorage) GetURL(ctx context.Context, path string) (string, error) {
	return "/api/files/" + path, nil
}

func (s *memStorage) GetSignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return "/api/files/" + path, nil
}

func (s *memStorage) GetSize(ctx context.Context, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.files[path])), nil
}

// --- pipeline ---

type fakeConverter struct {
	err error
}

func (c *fakeConverter) VideoToAudio(ctx context.Context, videoPath string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return videoPath, nil
}

type fakeGenerator struct {
	result *pipeline.Result
	err    error

	audioCalls int
	imageCalls int
}

func (g *fakeGenerator) FromAudio(ctx context.Context, audioPath string, opts pipeline.GenerationOptions) (*pipeline.Result, error) {
	g.audioCalls++
	return g.result, g.err
}

func (g *fakeGenerator) FromImage(ctx context.Context, imagePath string, opts pipeline.GenerationOptions) (*pipeline.Result, error) {
	g.imageCalls++
	return g.result, g.err
}

type fakeTranscriber struct {
	text string
	srt  string
	err  error
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audioPath, language string, translate bool) (string, error) {
	return t.text, t.err
}

func (t *fakeTranscriber) TranscribeSRT(ctx context.Context, audioPath, language string) (string, error) {
	return t.srt, t.err
}

// --- queue ---

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.GenerationEvent
	err    error
}

func (p *fakePublisher) PublishGeneration(ctx context.Context, event queue.GenerationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// --- otp repository ---

type fakeOTPRepo struct {
	mu   sync.Mutex
	otps []*models.OTPVerification
}

func (r *fakeOTPRepo) Create(otp *models.OTPVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *otp
	r.otps = append(r.otps, &cp)
	return nil
}

func (r *fakeOTPRepo) FindActive(userID string, otpType models.OTPType) (*models.OTPVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.otps) - 1; i >= 0; i-- {
		otp := r.otps[i]
		if otp.UserID == userID && otp.Type == otpType && otp.IsActive && !otp.IsUsed {
			cp := *otp
			return &cp, nil
		}
	}
	return nil, repositories.ErrOTPNotFound
}

func (r *fakeOTPRepo) DeactivateAll(userID string, otpType models.OTPType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, otp := range r.otps {
		if otp.UserID == userID && otp.Type == otpType {
			otp.IsActive = false
		}
	}
	return nil
}

func (r *fakeOTPRepo) Consume(otp *models.OTPVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, stored := range r.otps {
		if stored.UserID == otp.UserID && stored.Type == otp.Type && stored.Code == otp.Code && !stored.IsUsed {
			r.otps = append(r.otps[:i], r.otps[i+1:]...)
			return nil
		}
	}
	return repositories.ErrOTPNotFound
}

func (r *fakeOTPRepo) PurgeExpired(userID string, otpType models.OTPType, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.otps[:0]
	for _, otp := range r.otps {
		if otp.UserID == userID && otp.Type == otpType && !otp.ExpiresAt.After(now) {
			continue
		}
		kept = append(kept, otp)
	}
	r.otps = kept
	return nil
}

func (r *fakeOTPRepo) PurgeAllExpired(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	kept := r.otps[:0]
	for _, otp := range r.otps {
		if !otp.ExpiresAt.After(now) {
			purged++
			continue
		}
		kept = append(kept, otp)
	}
	r.otps = kept
	return purged, nil
}

func (r *fakeOTPRepo) lastCode(userID string, otpType models.OTPType) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.otps) - 1; i >= 0; i-- {
		if r.otps[i].UserID == userID && r.otps[i].Type == otpType {
			return r.otps[i].Code
		}
	}
	return ""
}

// --- user repository ---

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User // key ID
	tokens map[string]*models.RefreshToken

	deleted []string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (r *fakeUserRepo) FindByID(id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) FindByOAuthID(oauthID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.OAuthID != nil && *u.OAuthID == oauthID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repositories.ErrUserAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(r.users, userID)
	r.deleted = append(r.deleted, userID)
	return nil
}

func (r *fakeUserRepo) VerifyUser(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.IsVerified = true
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

func (r *fakeUserRepo) DowngradeExpired(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.SubscriptionTier.IsPremiumTier() && u.SubscriptionEndsAt != nil && !u.SubscriptionEndsAt.After(now) {
			u.SubscriptionTier = models.TierFree
			u.SubscriptionStartedAt = nil
			u.SubscriptionEndsAt = nil
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) DowngradeIfExpired(userID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return false, nil
	}
	if u.SubscriptionTier.IsPremiumTier() && u.SubscriptionEndsAt != nil && !u.SubscriptionEndsAt.After(now) {
		u.SubscriptionTier = models.TierFree
		u.SubscriptionStartedAt = nil
		u.SubscriptionEndsAt = nil
		return true, nil
	}
	return false, nil
}

func (r *fakeUserRepo) CreateRefreshToken(token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.Token] = &cp
	return nil
}

func (r *fakeUserRepo) FindRefreshToken(token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, repositories.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeUserRepo) DeleteRefreshToken(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token]; !ok {
		return repositories.ErrTokenNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *fakeUserRepo) DeleteUserRefreshTokens(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, token)
		}
	}
	return nil
}

func (r *fakeUserRepo) CleanExpiredRefreshTokens() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for token, t := range r.tokens {
		if !t.ExpiresAt.After(now) {
			delete(r.tokens, token)
		}
	}
	return nil
}

// --- email provider ---

type fakeEmailProvider struct {
	mu   sync.Mutex
	sent []string // адреса получателей
}

func (p *fakeEmailProvider) Send(e *email.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, e.To...)
	return nil
}

func (p *fakeEmailProvider) SendWithTemplate(templateName string, data email.TemplateData, e *email.Email) error {
	return p.Send(e)
}

func (p *fakeEmailProvider) Validate() error { return nil }

func (p *fakeEmailProvider) Close() error { return nil }
