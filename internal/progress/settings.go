package progress

import (
	"context"

	"chemlab/internal/model"
	"chemlab/internal/store"
)

type SettingsStore struct {
	base
}

func DefaultSettings() model.Settings {
	return model.Settings{
		Username:            "Student User",
		Email:               "student@example.com",
		EnableNotifications: true,
		StudyReminders:      true,
		BreakReminders:      true,
		DailyGoalReminders:  true,
		DailyGoal:           180,
		StudySessionLength:  45,
		BreakLength:         20,
		AutoStartBreak:      true,
		Theme:               "light",
		Language:            "ar",
		FontSize:            "medium",
		CompactMode:         false,
		ChatbotPersonality:  "friendly",
		ResponseLength:      "medium",
		IncludeExamples:     true,
		SaveHistory:         true,
		ShareProgress:       false,
		AnonymousAnalytics:  true,
	}
}

// Get returns the stored settings or the defaults when none were saved.
func (s *SettingsStore) Get(ctx context.Context, userID string) (model.Settings, error) {
	settings, ok, err := loadDoc[model.Settings](ctx, s.st, store.SettingsKey(userID))
	if err != nil {
		return model.Settings{}, err
	}
	if !ok {
		return DefaultSettings(), nil
	}
	return settings, nil
}

func (s *SettingsStore) Save(ctx context.Context, userID string, settings model.Settings) error {
	return saveDoc(ctx, s.st, store.SettingsKey(userID), settings)
}

func (s *SettingsStore) Reset(ctx context.Context, userID string) (model.Settings, error) {
	if err := s.st.Delete(ctx, store.SettingsKey(userID)); err != nil {
		return model.Settings{}, err
	}
	return DefaultSettings(), nil
}
