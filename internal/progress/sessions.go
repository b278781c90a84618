package progress

import (
	"context"

	"chemlab/internal/model"
	"chemlab/internal/store"
)

type Sessions struct {
	base
}

type SessionInput struct {
	MaterialID           string            `json:"material_id,omitempty"`
	ClientRef            string            `json:"client_ref,omitempty" validate:"max=128"`
	DurationMinutes      int               `json:"duration_minutes" validate:"min=0,max=1440"`
	BreakDurationMinutes int               `json:"break_duration_minutes" validate:"min=0,max=1440"`
	Completed            bool              `json:"completed"`
	SessionType          model.SessionType `json:"session_type" validate:"omitempty,oneof=study break"`
}

func (s *Sessions) List(ctx context.Context, userID string) ([]model.StudySession, error) {
	return loadList[model.StudySession](ctx, s.st, store.SessionsKey(userID))
}

// Record appends a session. A completed study session of at least
// RewardedStudyMinutes produces an award. A repeated client_ref returns the
// stored session without an award.
func (s *Sessions) Record(ctx context.Context, userID string, in SessionInput) (model.StudySession, Outcome, error) {
	key := store.SessionsKey(userID)
	list, err := loadList[model.StudySession](ctx, s.st, key)
	if err != nil {
		return model.StudySession{}, Outcome{}, err
	}
	if in.ClientRef != "" {
		if idx := indexOf(list, func(item model.StudySession) bool { return item.ClientRef == in.ClientRef }); idx >= 0 {
			return list[idx], Outcome{Duplicate: true}, nil
		}
	}

	sessionType := in.SessionType
	if sessionType == "" {
		sessionType = model.SessionStudy
	}
	session := model.StudySession{
		ID:                   s.newID(),
		UserID:               userID,
		MaterialID:           in.MaterialID,
		ClientRef:            in.ClientRef,
		DurationMinutes:      in.DurationMinutes,
		BreakDurationMinutes: in.BreakDurationMinutes,
		Completed:            in.Completed,
		SessionType:          sessionType,
		CreatedAt:            s.now(),
	}

	var outcome Outcome
	if session.SessionType == model.SessionStudy && session.Completed && session.DurationMinutes >= RewardedStudyMinutes {
		session.PointsEarned = PointsStudySession
		outcome.Award = &Award{
			UserID: userID,
			Kind:   KindStudySession,
			Points: PointsStudySession,
			Reason: "جلسة دراسة مكتملة",
		}
	}

	list = append(list, session)
	if err := saveDoc(ctx, s.st, key, list); err != nil {
		return model.StudySession{}, Outcome{}, err
	}
	return session, outcome, nil
}
