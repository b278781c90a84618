package progress

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"chemlab/internal/model"
)

// Point values for rewarded actions.
const (
	PointsCompleteLesson = 10
	PointsCorrectAnswer  = 5
	PointsStudySession   = 15
	PointsUploadFile     = 3
	PointsDailyLogin     = 2
	PointsStreakBonus    = 5
	PointsLevelUpBonus   = 50
	RewardedStudyMinutes = 45
	MaxActivitiesPerUser = 1000
)

var (
	//go:embed levels.json
	levelsRawJSON []byte

	levels = mustLoadLevels()
)

func mustLoadLevels() []model.Level {
	var catalog struct {
		Levels []model.Level `json:"levels"`
	}
	if err := json.Unmarshal(levelsRawJSON, &catalog); err != nil {
		panic(fmt.Sprintf("parse embedded levels: %v", err))
	}
	sort.Slice(catalog.Levels, func(i, j int) bool {
		return catalog.Levels[i].MinPoints < catalog.Levels[j].MinPoints
	})
	return catalog.Levels
}

func Levels() []model.Level {
	return append([]model.Level(nil), levels...)
}

// CalculateLevel returns the highest level whose threshold does not exceed points.
func CalculateLevel(points int) int {
	for i := len(levels) - 1; i >= 0; i-- {
		if points >= levels[i].MinPoints {
			return levels[i].Level
		}
	}
	return 1
}

func LevelInfo(level int) (model.Level, bool) {
	for _, l := range levels {
		if l.Level == level {
			return l, true
		}
	}
	return model.Level{}, false
}

// NextLevel is nil once the top of the table is reached.
func NextLevel(points int) *model.NextLevel {
	current := CalculateLevel(points)
	for _, l := range levels {
		if l.Level > current {
			return &model.NextLevel{
				Level:        l.Level,
				PointsNeeded: l.MinPoints - points,
			}
		}
	}
	return nil
}
