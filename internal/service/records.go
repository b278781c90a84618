package service

import (
	"context"
	"errors"

	"chemlab/internal/model"
	"chemlab/internal/progress"
)

type MaterialResult struct {
	Material model.StudyMaterial    `json:"material"`
	Points   *progress.PointsResult `json:"points,omitempty"`
}

type SessionResult struct {
	Session   model.StudySession     `json:"session"`
	Duplicate bool                   `json:"duplicate,omitempty"`
	Points    *progress.PointsResult `json:"points,omitempty"`
}

func (s *Service) ListMaterials(ctx context.Context, userID string) ([]model.StudyMaterial, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	list, err := s.repos.Materials.List(ctx, userID)
	if err != nil {
		return nil, s.fail("list materials", userID, err)
	}
	return list, nil
}

func (s *Service) CreateMaterial(ctx context.Context, userID string, in progress.MaterialInput) (MaterialResult, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return MaterialResult{}, err
	}
	if err := s.check(in); err != nil {
		return MaterialResult{}, err
	}
	defer s.lockUser(userID)()

	material, outcome, err := s.repos.Materials.Create(ctx, userID, in)
	if err != nil {
		return MaterialResult{}, s.fail("create material", userID, err)
	}
	points, err := s.applyAward(ctx, outcome)
	return MaterialResult{Material: material, Points: points}, err
}

func (s *Service) UpdateMaterial(ctx context.Context, userID, id string, patch progress.MaterialPatch) (MaterialResult, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return MaterialResult{}, err
	}
	if err := s.check(patch); err != nil {
		return MaterialResult{}, err
	}
	defer s.lockUser(userID)()

	material, outcome, err := s.repos.Materials.Update(ctx, userID, id, patch)
	if errors.Is(err, progress.ErrNotFound) {
		return MaterialResult{}, ErrMaterialNotFound
	}
	if err != nil {
		return MaterialResult{}, s.fail("update material", userID, err)
	}
	points, err := s.applyAward(ctx, outcome)
	return MaterialResult{Material: material, Points: points}, err
}

func (s *Service) DeleteMaterial(ctx context.Context, userID, id string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	defer s.lockUser(userID)()

	err = s.repos.Materials.Delete(ctx, userID, id)
	if errors.Is(err, progress.ErrNotFound) {
		return ErrMaterialNotFound
	}
	return s.fail("delete material", userID, err)
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]model.StudySession, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	list, err := s.repos.Sessions.List(ctx, userID)
	if err != nil {
		return nil, s.fail("list sessions", userID, err)
	}
	return list, nil
}

// RecordSession stores a session and grants the study award when it earns
// one. A repeated client_ref is answered with the stored session.
func (s *Service) RecordSession(ctx context.Context, userID string, in progress.SessionInput) (SessionResult, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return SessionResult{}, err
	}
	if err := s.check(in); err != nil {
		return SessionResult{}, err
	}
	defer s.lockUser(userID)()

	session, outcome, err := s.repos.Sessions.Record(ctx, userID, in)
	if err != nil {
		return SessionResult{}, s.fail("record session", userID, err)
	}
	points, err := s.applyAward(ctx, outcome)
	return SessionResult{Session: session, Duplicate: outcome.Duplicate, Points: points}, err
}

func (s *Service) Settings(ctx context.Context, userID string) (model.Settings, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return model.Settings{}, err
	}
	settings, err := s.repos.Settings.Get(ctx, userID)
	if err != nil {
		return model.Settings{}, s.fail("get settings", userID, err)
	}
	return settings, nil
}

func (s *Service) SaveSettings(ctx context.Context, userID string, settings model.Settings) (model.Settings, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return model.Settings{}, err
	}
	if err := s.check(settings); err != nil {
		return model.Settings{}, err
	}
	defer s.lockUser(userID)()

	if err := s.repos.Settings.Save(ctx, userID, settings); err != nil {
		return model.Settings{}, s.fail("save settings", userID, err)
	}
	return settings, nil
}

func (s *Service) ResetSettings(ctx context.Context, userID string) (model.Settings, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return model.Settings{}, err
	}
	defer s.lockUser(userID)()

	settings, err := s.repos.Settings.Reset(ctx, userID)
	if err != nil {
		return model.Settings{}, s.fail("reset settings", userID, err)
	}
	return settings, nil
}
