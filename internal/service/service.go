// Package service wires the study repositories, the chatbot, blob storage
// and the timer into the operations exposed over HTTP and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chemlab/internal/blob"
	"chemlab/internal/chatbot"
	"chemlab/internal/knowledge"
	"chemlab/internal/metrics"
	"chemlab/internal/model"
	"chemlab/internal/progress"
	"chemlab/internal/store"
	"chemlab/internal/timer"
)

var (
	ErrStorage            = errors.New("operation failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserRequired       = errors.New("user id is required")
	ErrMaterialNotFound   = errors.New("material not found")
	ErrFileNotFound       = errors.New("file not found")
	ErrElementNotFound    = errors.New("element not found")
	ErrFileTooLarge       = errors.New("file exceeds the upload size limit")
	ErrUnsupportedFile    = errors.New("file type is not accepted")
	ErrEmptyFile          = errors.New("file is empty")
	ErrBlobUnavailable    = errors.New("file storage is not configured")
	ErrInvalidPoints      = errors.New("points amount must be positive")
	ErrEmptyChatMessage   = errors.New("message is empty")
	ErrTimerNotOnBreak    = errors.New("timer is not in a break")
	ErrUnknownTimerAction = errors.New("unknown timer action")
)

const DefaultMaxUploadBytes = 10 << 20

type Deps struct {
	Store          store.Store
	Blob           blob.Store
	Chatbot        *chatbot.Responder
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	Clock          func() time.Time
	TickInterval   time.Duration
	MaxUploadBytes int64
	ChatEmbedURL   string
}

type Service struct {
	store    store.Store
	repos    *progress.Repositories
	blob     blob.Store
	bot      *chatbot.Responder
	timers   *timer.Manager
	metrics  *metrics.Metrics
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	maxUploadBytes int64
	chatEmbedURL   string
	achievements   []achievementRule

	locksMu sync.Mutex
	locks   map[string]*userLock
}

// userLock is shared by every caller holding or waiting for one user; the
// entry leaves the map when the last of them releases it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	bot := deps.Chatbot
	if bot == nil {
		bot = chatbot.New(knowledge.MustBaseCatalog(), chatbot.WithLogger(logger))
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	s := &Service{
		store:          deps.Store,
		repos:          progress.NewRepositories(deps.Store, progress.WithClock(now)),
		blob:           deps.Blob,
		bot:            bot,
		metrics:        deps.Metrics,
		logger:         logger,
		validate:       validator.New(),
		now:            now,
		maxUploadBytes: maxUpload,
		chatEmbedURL:   deps.ChatEmbedURL,
		achievements:   loadAchievementRules(),
		locks:          make(map[string]*userLock),
	}
	s.timers = timer.NewManager(deps.TickInterval, s.handleTimerEvent, logger.Named("timer"))
	return s
}

// Close stops the running timers.
func (s *Service) Close() {
	s.timers.Close()
}

// lockUser serializes read-modify-write sequences of one user.
func (s *Service) lockUser(userID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.locksMu.Unlock()
	}
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserRequired
	}
	return userID, nil
}

// fail logs the cause and hides storage details behind ErrStorage. Known
// domain errors pass through unchanged.
func (s *Service) fail(op, userID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, progress.ErrUserRequired):
		return ErrUserRequired
	case errors.Is(err, progress.ErrInvalidPoints):
		return ErrInvalidPoints
	}
	s.logger.Error("storage operation failed",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", op, ErrStorage)
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// applyAward grants an outcome's points. The record write that produced the
// award has already been stored; a failure here does not undo it.
func (s *Service) applyAward(ctx context.Context, outcome progress.Outcome) (*progress.PointsResult, error) {
	if outcome.Award == nil {
		return nil, nil
	}
	award := outcome.Award
	result, err := s.repos.Profiles.AddPoints(ctx, award.UserID, award.Points, award.Reason)
	if err != nil {
		return nil, s.fail("apply award", award.UserID, err)
	}
	s.metrics.PointsAwarded(award.Kind, award.Points+result.Bonus, result.LevelsGained)
	if result.LeveledUp() {
		s.logger.Info("level up",
			zap.String("user_id", award.UserID),
			zap.Int("level", result.Profile.Level),
			zap.Int("points", result.Profile.Points),
		)
	}
	return &result, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return model.UserProfile{}, err
	}
	defer s.lockUser(userID)()

	profile, err := s.repos.Profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return model.UserProfile{}, s.fail("get profile", userID, err)
	}
	return profile, nil
}

type AddPointsRequest struct {
	Points int    `json:"points" validate:"min=1,max=10000"`
	Reason string `json:"reason" validate:"required,max=200"`
}

func (s *Service) AddPoints(ctx context.Context, userID string, req AddPointsRequest) (progress.PointsResult, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return progress.PointsResult{}, err
	}
	if err := s.check(req); err != nil {
		return progress.PointsResult{}, err
	}
	defer s.lockUser(userID)()

	result, err := s.applyAward(ctx, progress.Outcome{Award: &progress.Award{
		UserID: userID,
		Kind:   progress.KindManual,
		Points: req.Points,
		Reason: strings.TrimSpace(req.Reason),
	}})
	if err != nil {
		return progress.PointsResult{}, err
	}
	return *result, nil
}

func (s *Service) Activities(ctx context.Context, userID string, limit int) ([]model.Activity, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	list, err := s.repos.Activities.List(ctx, userID, limit)
	if err != nil {
		return nil, s.fail("list activities", userID, err)
	}
	return list, nil
}

// Stats summarizes a user's progress. Study minutes count only study
// sessions; today and the weekly window use the service clock's location.
func (s *Service) Stats(ctx context.Context, userID string) (model.Stats, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return model.Stats{}, err
	}
	userID = profile.ID

	materials, err := s.repos.Materials.List(ctx, userID)
	if err != nil {
		return model.Stats{}, s.fail("stats materials", userID, err)
	}
	sessions, err := s.repos.Sessions.List(ctx, userID)
	if err != nil {
		return model.Stats{}, s.fail("stats sessions", userID, err)
	}
	files, err := s.repos.Files.List(ctx, userID)
	if err != nil {
		return model.Stats{}, s.fail("stats files", userID, err)
	}
	settings, err := s.repos.Settings.Get(ctx, userID)
	if err != nil {
		return model.Stats{}, s.fail("stats settings", userID, err)
	}

	stats := model.Stats{
		Profile:         profile,
		TotalMaterials:  len(materials),
		TotalFiles:      len(files),
		DailyGoal:       settings.DailyGoal,
		CurrentLevel:    progress.CalculateLevel(profile.Points),
		NextLevel:       progress.NextLevel(profile.Points),
		WeeklyStudyTime: make([]int, 7),
	}
	for _, m := range materials {
		if m.Completed {
			stats.CompletedMaterials++
		}
	}
	if stats.TotalMaterials > 0 {
		stats.CompletionRate = float64(stats.CompletedMaterials) / float64(stats.TotalMaterials) * 100
	}

	now := s.now()
	today := dayStart(now)
	for _, session := range sessions {
		if session.SessionType != model.SessionStudy {
			continue
		}
		stats.TotalSessions++
		stats.TotalStudyTime += session.DurationMinutes
		day := dayStart(session.CreatedAt.In(now.Location()))
		age := int(math.Round(today.Sub(day).Hours() / 24))
		if age < 0 || age > 6 {
			continue
		}
		stats.WeeklyStudyTime[6-age] += session.DurationMinutes
		if age == 0 {
			stats.TodayStudyTime += session.DurationMinutes
		}
	}
	return stats, nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *Service) ClientConfig() model.ClientConfig {
	return model.ClientConfig{
		ChatEmbedURL: s.chatEmbedURL,
		Levels:       progress.Levels(),
		Points: model.AwardTable{
			CompleteLesson: progress.PointsCompleteLesson,
			CorrectAnswer:  progress.PointsCorrectAnswer,
			StudySession:   progress.PointsStudySession,
			UploadFile:     progress.PointsUploadFile,
			DailyLogin:     progress.PointsDailyLogin,
			StreakBonus:    progress.PointsStreakBonus,
			LevelUpBonus:   progress.PointsLevelUpBonus,
		},
		MaxUploadBytes:       s.maxUploadBytes,
		AcceptedUploadTypes:  AcceptedExtensions(),
		StudyMinutes:         timer.DefaultStudyMinutes,
		BreakMinutes:         timer.DefaultBreakMinutes,
		RewardedStudyMinutes: progress.RewardedStudyMinutes,
	}
}
