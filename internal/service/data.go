package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"chemlab/internal/model"
	"chemlab/internal/store"
)

// ExportFilename is the download name for a bundle produced on the service
// clock's UTC date.
func (s *Service) ExportFilename() string {
	return fmt.Sprintf("chemistry-lab-data-%s.json", s.now().UTC().Format("2006-01-02"))
}

// Export gathers the raw document of every user key. Keys never written
// export as JSON null.
func (s *Service) Export(ctx context.Context, userID string) (model.ExportBundle, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return model.ExportBundle{}, err
	}
	defer s.lockUser(userID)()

	read := func(key string) (json.RawMessage, error) {
		raw, ok, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return json.RawMessage("null"), nil
		}
		return json.RawMessage(raw), nil
	}

	var bundle model.ExportBundle
	for _, field := range []struct {
		key string
		dst *json.RawMessage
	}{
		{store.ProfileKey(userID), &bundle.Profile},
		{store.MaterialsKey(userID), &bundle.Materials},
		{store.SessionsKey(userID), &bundle.Sessions},
		{store.FilesKey(userID), &bundle.Files},
		{store.SettingsKey(userID), &bundle.Settings},
		{store.ActivitiesKey(userID), &bundle.Activities},
	} {
		raw, err := read(field.key)
		if err != nil {
			return model.ExportBundle{}, s.fail("export", userID, err)
		}
		*field.dst = raw
	}
	return bundle, nil
}

// ClearAll deletes the user's six keys, their upload bodies and their timer.
func (s *Service) ClearAll(ctx context.Context, userID string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	s.timers.Forget(userID)
	defer s.lockUser(userID)()

	files, err := s.repos.Files.List(ctx, userID)
	if err != nil {
		s.logger.Warn("list uploads before clear", zap.String("user_id", userID), zap.Error(err))
	}
	for _, key := range store.UserKeys(userID) {
		if err := s.store.Delete(ctx, key); err != nil {
			return s.fail("clear user data", userID, err)
		}
	}
	for _, f := range files {
		s.dropBody(ctx, f.FilePath)
	}
	forgotten := s.bot.ForgetOwner(userID)
	s.logger.Info("user data cleared", zap.String("user_id", userID), zap.Int("training_documents", forgotten))
	return nil
}
