package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"

	"chemlab/internal/model"
)

var (
	//go:embed achievements.json
	achievementRulesRawJSON []byte
)

type achievementRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Metric      string `json:"metric"`
	Target      int    `json:"target"`
}

type achievementCatalog struct {
	Achievements []achievementRule `json:"achievements"`
}

func loadAchievementRules() []achievementRule {
	var catalog achievementCatalog
	if err := json.Unmarshal(achievementRulesRawJSON, &catalog); err != nil {
		return nil
	}
	rules := make([]achievementRule, 0, len(catalog.Achievements))
	for _, rule := range catalog.Achievements {
		rule.ID = strings.TrimSpace(rule.ID)
		if rule.ID == "" {
			continue
		}
		if rule.Target <= 0 {
			rule.Target = 1
		}
		rules = append(rules, rule)
	}
	return rules
}

// Achievements evaluates every rule against the user's current stats.
func (s *Service) Achievements(ctx context.Context, userID string) ([]model.Achievement, error) {
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Achievement, 0, len(s.achievements))
	for _, rule := range s.achievements {
		value := achievementMetric(rule.Metric, stats)
		out = append(out, model.Achievement{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Metric:      rule.Metric,
			Target:      rule.Target,
			Progress:    min(value, rule.Target),
			Unlocked:    value >= rule.Target,
		})
	}
	return out, nil
}

func achievementMetric(metric string, stats model.Stats) int {
	switch metric {
	case "completed_materials":
		return stats.CompletedMaterials
	case "study_sessions":
		return stats.TotalSessions
	case "study_minutes":
		return stats.TotalStudyTime
	case "today_goal_percent":
		if stats.DailyGoal <= 0 {
			return 0
		}
		return stats.TodayStudyTime * 100 / stats.DailyGoal
	case "files":
		return stats.TotalFiles
	case "points":
		return stats.Profile.Points
	case "level":
		return stats.CurrentLevel
	default:
		return 0
	}
}
