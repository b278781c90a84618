package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"chemlab/internal/model"
	"chemlab/internal/progress"
	"chemlab/internal/timer"
)

func timerConfig(settings model.Settings) timer.Config {
	return timer.Config{
		StudyMinutes:   settings.StudySessionLength,
		BreakMinutes:   settings.BreakLength,
		AutoStartBreak: settings.AutoStartBreak,
	}
}

func (s *Service) Timer(ctx context.Context, userID string) (timer.State, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return timer.State{}, err
	}
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	return s.timers.State(userID, timerConfig(settings)), nil
}

// TimerAction drives the user's countdown. Phase events are recorded as
// sessions by handleTimerEvent.
func (s *Service) TimerAction(ctx context.Context, userID string, rawAction string) (timer.State, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return timer.State{}, err
	}
	action, err := timer.ParseAction(rawAction)
	if err != nil {
		return timer.State{}, ErrUnknownTimerAction
	}
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	state, err := s.timers.Do(ctx, userID, action, timerConfig(settings))
	if errors.Is(err, timer.ErrNotOnBreak) {
		return state, ErrTimerNotOnBreak
	}
	return state, err
}

func (s *Service) handleTimerEvent(ctx context.Context, userID string, ev timer.Event) {
	s.metrics.TimerEvent(string(ev.Kind))

	in := progress.SessionInput{
		DurationMinutes: ev.Minutes,
		Completed:       ev.Completed,
		SessionType:     model.SessionStudy,
	}
	if ev.Phase == timer.PhaseBreak {
		in.SessionType = model.SessionBreak
		in.BreakDurationMinutes = ev.Minutes
	}
	result, err := s.RecordSession(context.WithoutCancel(ctx), userID, in)
	if err != nil {
		s.logger.Error("record timer session",
			zap.String("user_id", userID),
			zap.String("event", string(ev.Kind)),
			zap.Error(err),
		)
		return
	}
	if result.Points != nil {
		s.logger.Info("study session rewarded",
			zap.String("user_id", userID),
			zap.Int("points", result.Points.Profile.Points),
		)
	}
}
