package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chemlab/internal/blob"
	"chemlab/internal/chatbot"
	"chemlab/internal/model"
	"chemlab/internal/progress"
	"chemlab/internal/service"
	"chemlab/internal/store"
	"chemlab/internal/timer"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*service.Service, store.Store, blob.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	bs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := service.New(service.Deps{
		Store:        st,
		Blob:         bs,
		Logger:       zap.NewNop(),
		Clock:        func() time.Time { return fixedNow },
		TickInterval: time.Hour,
	})
	t.Cleanup(svc.Close)
	return svc, st, bs
}

func boolPtr(v bool) *bool { return &v }

func TestProfileAndManualPoints(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	profile, err := svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Level)

	res, err := svc.AddPoints(ctx, "u1", service.AddPointsRequest{Points: 120, Reason: "quiz"})
	require.NoError(t, err)
	assert.Equal(t, 170, res.Profile.Points)
	assert.Equal(t, 2, res.Profile.Level)

	_, err = svc.AddPoints(ctx, "u1", service.AddPointsRequest{Points: 0, Reason: "none"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	_, err = svc.Profile(ctx, " ")
	assert.ErrorIs(t, err, service.ErrUserRequired)
}

func TestMaterialCompletionAwardsOnce(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateMaterial(ctx, "u1", progress.MaterialInput{Title: "الأحماض", Difficulty: model.DifficultyEasy})
	require.NoError(t, err)
	assert.Nil(t, created.Points)

	updated, err := svc.UpdateMaterial(ctx, "u1", created.Material.ID, progress.MaterialPatch{Completed: boolPtr(true)})
	require.NoError(t, err)
	require.NotNil(t, updated.Points)
	assert.Equal(t, 10, updated.Points.Profile.Points)

	again, err := svc.UpdateMaterial(ctx, "u1", created.Material.ID, progress.MaterialPatch{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.Nil(t, again.Points)

	profile, err := svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, profile.Points)

	_, err = svc.UpdateMaterial(ctx, "u1", "missing", progress.MaterialPatch{})
	assert.ErrorIs(t, err, service.ErrMaterialNotFound)
	assert.ErrorIs(t, svc.DeleteMaterial(ctx, "u1", "missing"), service.ErrMaterialNotFound)
	require.NoError(t, svc.DeleteMaterial(ctx, "u1", created.Material.ID))

	_, err = svc.CreateMaterial(ctx, "u1", progress.MaterialInput{Title: ""})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestRecordSessionAwardAndDedupe(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := progress.SessionInput{ClientRef: "tab-1", DurationMinutes: 45, Completed: true}
	first, err := svc.RecordSession(ctx, "u1", in)
	require.NoError(t, err)
	require.NotNil(t, first.Points)
	assert.Equal(t, 15, first.Points.Profile.Points)

	second, err := svc.RecordSession(ctx, "u1", in)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Nil(t, second.Points)

	short, err := svc.RecordSession(ctx, "u1", progress.SessionInput{DurationMinutes: 20, Completed: true})
	require.NoError(t, err)
	assert.Nil(t, short.Points)

	profile, err := svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 15, profile.Points)
}

func TestUploadTextFile(t *testing.T) {
	t.Parallel()
	svc, _, bs := newTestService(t)
	ctx := context.Background()

	body := "الأكسدة:\nفقدان الإلكترونات\n"
	res, err := svc.UploadFile(ctx, "u1", service.UploadRequest{Filename: "notes.txt", ClientRef: "f-1", Body: []byte(body)})
	require.NoError(t, err)
	assert.True(t, res.Trained)
	require.NotNil(t, res.Points)
	assert.Equal(t, 3, res.Points.Profile.Points)
	assert.Equal(t, "text/plain", res.File.FileType)
	assert.True(t, strings.HasPrefix(res.File.Summary, "ملف نصي: notes.txt"))
	assert.True(t, res.File.Processed)

	stored, err := bs.Get(ctx, res.File.FilePath)
	require.NoError(t, err)
	assert.Equal(t, body, string(stored))

	assert.Contains(t, svc.ChatTopics("u1"), "الأكسدة")
	assert.NotContains(t, svc.ChatTopics("u2"), "الأكسدة")

	dup, err := svc.UploadFile(ctx, "u1", service.UploadRequest{Filename: "notes.txt", ClientRef: "f-1", Body: []byte(body)})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, res.File.ID, dup.File.ID)

	upload, content, err := svc.FileContent(ctx, "u1", res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, res.File.ID, upload.ID)
	assert.Equal(t, body, string(content))

	require.NoError(t, svc.DeleteFile(ctx, "u1", res.File.ID))
	_, err = bs.Get(ctx, res.File.FilePath)
	assert.ErrorIs(t, err, blob.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteFile(ctx, "u1", res.File.ID), service.ErrFileNotFound)
}

func TestUploadValidation(t *testing.T) {
	t.Parallel()
	st := store.NewMemoryStore()
	bs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := service.New(service.Deps{Store: st, Blob: bs, MaxUploadBytes: 8, TickInterval: time.Hour})
	defer svc.Close()
	ctx := context.Background()

	cases := []struct {
		name string
		req  service.UploadRequest
		want error
	}{
		{"executable", service.UploadRequest{Filename: "run.exe", Body: []byte("x")}, service.ErrUnsupportedFile},
		{"empty", service.UploadRequest{Filename: "a.txt"}, service.ErrEmptyFile},
		{"too large", service.UploadRequest{Filename: "a.pdf", Body: []byte("123456789")}, service.ErrFileTooLarge},
		{"no name", service.UploadRequest{Filename: "", Body: []byte("x")}, service.ErrInvalidInput},
	}
	for _, tc := range cases {
		_, err := svc.UploadFile(ctx, "u1", tc.req)
		assert.ErrorIs(t, err, tc.want, tc.name)
	}

	res, err := svc.UploadFile(ctx, "u1", service.UploadRequest{Filename: "Slides.PPTX", Body: []byte("12345678")})
	require.NoError(t, err)
	assert.False(t, res.Trained)
	assert.True(t, strings.HasPrefix(res.File.Summary, "عرض تقديمي"))
}

func TestSummarizeByType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ملف PDF: a.pdf (2 كيلوبايت). يحتوي على محتوى أكاديمي مناسب للدراسة والمراجعة.", service.Summarize("a.pdf", "application/pdf", 2048))
	assert.True(t, strings.HasPrefix(service.Summarize("a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", 10), "مستند Word"))
	assert.True(t, strings.HasPrefix(service.Summarize("a.png", "image/png", 10), "صورة"))
	assert.True(t, strings.HasPrefix(service.Summarize("a.bin", "application/octet-stream", 10), "ملف:"))
}

func TestStatsWindows(t *testing.T) {
	t.Parallel()
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	sessions := []model.StudySession{
		{ID: "s1", UserID: "u1", DurationMinutes: 45, Completed: true, SessionType: model.SessionStudy, CreatedAt: fixedNow.Add(-time.Hour)},
		{ID: "s2", UserID: "u1", DurationMinutes: 30, SessionType: model.SessionStudy, CreatedAt: fixedNow.AddDate(0, 0, -2)},
		{ID: "s3", UserID: "u1", DurationMinutes: 20, SessionType: model.SessionBreak, CreatedAt: fixedNow},
		{ID: "s4", UserID: "u1", DurationMinutes: 60, SessionType: model.SessionStudy, CreatedAt: fixedNow.AddDate(0, 0, -9)},
	}
	raw, err := json.Marshal(sessions)
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, store.SessionsKey("u1"), raw))

	_, err = svc.CreateMaterial(ctx, "u1", progress.MaterialInput{Title: "a", Completed: true})
	require.NoError(t, err)
	_, err = svc.CreateMaterial(ctx, "u1", progress.MaterialInput{Title: "b"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMaterials)
	assert.Equal(t, 1, stats.CompletedMaterials)
	assert.InDelta(t, 50.0, stats.CompletionRate, 0.001)
	assert.Equal(t, 135, stats.TotalStudyTime)
	assert.Equal(t, 45, stats.TodayStudyTime)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, []int{0, 0, 0, 0, 30, 0, 45}, stats.WeeklyStudyTime)
	assert.Equal(t, 180, stats.DailyGoal)
	assert.Equal(t, 1, stats.CurrentLevel)
	require.NotNil(t, stats.NextLevel)
	assert.Equal(t, 90, stats.NextLevel.PointsNeeded)
}

func TestExportAndClearAll(t *testing.T) {
	t.Parallel()
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMaterial(ctx, "u1", progress.MaterialInput{Title: "a"})
	require.NoError(t, err)
	_, err = svc.Profile(ctx, "u10")
	require.NoError(t, err)

	bundle, err := svc.Export(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, "null", string(bundle.Profile))
	assert.JSONEq(t, "null", string(bundle.Settings))
	var materials []model.StudyMaterial
	require.NoError(t, json.Unmarshal(bundle.Materials, &materials))
	require.Len(t, materials, 1)
	assert.Equal(t, "chemistry-lab-data-2025-03-10.json", svc.ExportFilename())

	_, err = svc.UploadFile(ctx, "u1", service.UploadRequest{Filename: "n.txt", Body: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, svc.ClearAll(ctx, "u1"))

	for _, key := range store.UserKeys("u1") {
		_, ok, err := st.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
	_, ok, err := st.Get(ctx, store.ProfileKey("u10"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportFilenameUsesUTCDate(t *testing.T) {
	t.Parallel()
	evening := time.Date(2025, 3, 10, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	svc := service.New(service.Deps{
		Store:        store.NewMemoryStore(),
		Logger:       zap.NewNop(),
		Clock:        func() time.Time { return evening },
		TickInterval: time.Hour,
	})
	t.Cleanup(svc.Close)

	assert.Equal(t, "chemistry-lab-data-2025-03-11.json", svc.ExportFilename())
}

func TestTrainingFollowsUploadLifecycle(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	ask := func(userID string) chatbot.Source {
		t.Helper()
		reply, err := svc.Chat(ctx, service.ChatRequest{UserID: userID, Message: "zirconiumxyz"})
		require.NoError(t, err)
		return reply.Source
	}

	res, err := svc.UploadFile(ctx, "alice", service.UploadRequest{Filename: "secret.txt", Body: []byte("zirconiumxyz is alice private note")})
	require.NoError(t, err)
	require.True(t, res.Trained)
	assert.Equal(t, chatbot.SourceTraining, ask("alice"))
	assert.Equal(t, chatbot.SourceFallback, ask("bob"))
	assert.Equal(t, chatbot.SourceFallback, ask(""))

	require.NoError(t, svc.DeleteFile(ctx, "alice", res.File.ID))
	assert.Equal(t, chatbot.SourceFallback, ask("alice"))

	_, err = svc.UploadFile(ctx, "alice", service.UploadRequest{Filename: "again.txt", Body: []byte("zirconiumxyz is alice private note")})
	require.NoError(t, err)
	assert.Equal(t, chatbot.SourceTraining, ask("alice"))

	require.NoError(t, svc.ClearAll(ctx, "alice"))
	assert.Equal(t, chatbot.SourceFallback, ask("alice"))
}

func TestRestoreTrainingFromStoredUploads(t *testing.T) {
	t.Parallel()
	svc, st, bs := newTestService(t)
	ctx := context.Background()

	_, err := svc.UploadFile(ctx, "alice", service.UploadRequest{Filename: "secret.txt", Body: []byte("zirconiumxyz is alice private note")})
	require.NoError(t, err)
	_, err = svc.UploadFile(ctx, "alice", service.UploadRequest{Filename: "scan.png", Body: []byte("\x89PNG\r\n\x1a\n")})
	require.NoError(t, err)

	restarted := service.New(service.Deps{
		Store:        st,
		Blob:         bs,
		Logger:       zap.NewNop(),
		Clock:        func() time.Time { return fixedNow },
		TickInterval: time.Hour,
	})
	t.Cleanup(restarted.Close)

	before, err := restarted.Chat(ctx, service.ChatRequest{UserID: "alice", Message: "zirconiumxyz"})
	require.NoError(t, err)
	assert.Equal(t, chatbot.SourceFallback, before.Source)

	n, err := restarted.RestoreTraining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := restarted.Chat(ctx, service.ChatRequest{UserID: "alice", Message: "zirconiumxyz"})
	require.NoError(t, err)
	assert.Equal(t, chatbot.SourceTraining, after.Source)

	other, err := restarted.Chat(ctx, service.ChatRequest{UserID: "bob", Message: "zirconiumxyz"})
	require.NoError(t, err)
	assert.Equal(t, chatbot.SourceFallback, other.Source)
}

func TestSettingsValidation(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	settings, err := svc.Settings(ctx, "u1")
	require.NoError(t, err)
	settings.DailyGoal = 5
	_, err = svc.SaveSettings(ctx, "u1", settings)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	settings.DailyGoal = 240
	settings.Theme = "dark"
	saved, err := svc.SaveSettings(ctx, "u1", settings)
	require.NoError(t, err)
	assert.Equal(t, 240, saved.DailyGoal)

	reset, err := svc.ResetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, progress.DefaultSettings(), reset)
}

func TestTimerActions(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.Timer(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, timer.PhaseStudy, state.Phase)
	assert.Equal(t, "45:00", state.Display)

	state, err = svc.TimerAction(ctx, "u1", "start")
	require.NoError(t, err)
	assert.True(t, state.Running)

	state, err = svc.TimerAction(ctx, "u1", "stop")
	require.NoError(t, err)
	assert.False(t, state.Running)

	_, err = svc.TimerAction(ctx, "u1", "skip-break")
	assert.ErrorIs(t, err, service.ErrTimerNotOnBreak)
	_, err = svc.TimerAction(ctx, "u1", "rewind")
	assert.ErrorIs(t, err, service.ErrUnknownTimerAction)

	sessions, err := svc.ListSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestChat(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	reply, err := svc.Chat(ctx, service.ChatRequest{Message: "حدثني عن الجدول الدوري"})
	require.NoError(t, err)
	assert.Equal(t, chatbot.SourceTopic, reply.Source)
	assert.Equal(t, "الجدول الدوري", reply.Topic)

	_, err = svc.Chat(ctx, service.ChatRequest{Message: "  "})
	assert.ErrorIs(t, err, service.ErrEmptyChatMessage)
}

func TestElements(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	assert.Len(t, svc.Elements(""), 20)
	el, err := svc.Element(6)
	require.NoError(t, err)
	assert.Equal(t, "C", el.Symbol)
	_, err = svc.Element(200)
	assert.ErrorIs(t, err, service.ErrElementNotFound)
}

func TestAchievements(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMaterial(ctx, "u1", progress.MaterialInput{Title: "a", Completed: true})
	require.NoError(t, err)

	list, err := svc.Achievements(ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, list)
	byID := map[string]model.Achievement{}
	for _, a := range list {
		byID[a.ID] = a
	}
	assert.True(t, byID["first_lesson"].Unlocked)
	assert.False(t, byID["ten_lessons"].Unlocked)
	assert.Equal(t, 1, byID["ten_lessons"].Progress)
	assert.Equal(t, 10, byID["scholar"].Progress)
}

func TestConcurrentAwardsAreNotLost(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddPoints(ctx, "u1", service.AddPointsRequest{Points: 2, Reason: fmt.Sprintf("r%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	profile, err := svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 80, profile.Points)

	acts, err := svc.Activities(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, acts, 40)
}

func TestClientConfig(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	cfg := svc.ClientConfig()
	assert.Len(t, cfg.Levels, 5)
	assert.Equal(t, 15, cfg.Points.StudySession)
	assert.Equal(t, int64(service.DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Contains(t, cfg.AcceptedUploadTypes, ".pptx")
}
