package progress

import (
	"context"
	"fmt"
	"strings"

	"chemlab/internal/model"
	"chemlab/internal/store"
)

type Profiles struct {
	base
	activities *Activities
}

type PointsResult struct {
	Profile       model.UserProfile `json:"profile"`
	Awarded       int               `json:"awarded"`
	PreviousLevel int               `json:"previous_level"`
	LevelsGained  int               `json:"levels_gained"`
	Bonus         int               `json:"bonus"`
}

func (r PointsResult) LeveledUp() bool {
	return r.LevelsGained > 0
}

// GetOrCreate returns the stored profile, creating a level 1 profile with
// zero points on first access.
func (p *Profiles) GetOrCreate(ctx context.Context, userID string) (model.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.UserProfile{}, ErrUserRequired
	}
	profile, ok, err := loadDoc[model.UserProfile](ctx, p.st, store.ProfileKey(userID))
	if err != nil {
		return model.UserProfile{}, err
	}
	if ok {
		return profile, nil
	}

	now := p.now()
	profile = model.UserProfile{
		ID:        userID,
		Email:     fmt.Sprintf("user_%s@example.com", userID),
		Username:  "User_" + userID,
		Points:    0,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Save(ctx, &profile); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

func (p *Profiles) Save(ctx context.Context, profile *model.UserProfile) error {
	profile.UpdatedAt = p.now()
	return saveDoc(ctx, p.st, store.ProfileKey(profile.ID), profile)
}

// AddPoints adds amount to points and experience, then recomputes the level.
// Each rise of the recomputed level grants one PointsLevelUpBonus, however
// many thresholds it jumped; the level is recomputed again after the bonus
// so it never lags behind points.
func (p *Profiles) AddPoints(ctx context.Context, userID string, amount int, reason string) (PointsResult, error) {
	if amount <= 0 {
		return PointsResult{}, ErrInvalidPoints
	}
	profile, err := p.GetOrCreate(ctx, userID)
	if err != nil {
		return PointsResult{}, err
	}

	result := PointsResult{Awarded: amount, PreviousLevel: profile.Level}
	profile.Points += amount
	profile.Experience += amount
	for {
		newLevel := CalculateLevel(profile.Points)
		if newLevel <= profile.Level {
			break
		}
		profile.Level = newLevel
		profile.Points += PointsLevelUpBonus
		result.Bonus += PointsLevelUpBonus
	}
	result.LevelsGained = profile.Level - result.PreviousLevel

	if err := p.Save(ctx, &profile); err != nil {
		return PointsResult{}, err
	}
	result.Profile = profile

	if _, err := p.activities.Append(ctx, userID, "points_earned", map[string]any{
		"points":    amount,
		"reason":    reason,
		"new_total": profile.Points,
	}); err != nil {
		return result, err
	}
	return result, nil
}
