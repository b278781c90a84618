package model

import (
	"encoding/json"
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type SessionType string

const (
	SessionStudy SessionType = "study"
	SessionBreak SessionType = "break"
)

type UserProfile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Points     int       `json:"points"`
	Level      int       `json:"level"`
	Experience int       `json:"experience"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type StudyMaterial struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Content       string     `json:"content"`
	Subject       string     `json:"subject"`
	Completed     bool       `json:"completed"`
	Difficulty    Difficulty `json:"difficulty"`
	PointsAwarded int        `json:"points_awarded"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type StudySession struct {
	ID                   string      `json:"id"`
	UserID               string      `json:"user_id"`
	MaterialID           string      `json:"material_id,omitempty"`
	ClientRef            string      `json:"client_ref,omitempty"`
	DurationMinutes      int         `json:"duration_minutes"`
	BreakDurationMinutes int         `json:"break_duration_minutes"`
	Completed            bool        `json:"completed"`
	PointsEarned         int         `json:"points_earned"`
	SessionType          SessionType `json:"session_type"`
	CreatedAt            time.Time   `json:"created_at"`
}

type FileUpload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ClientRef string    `json:"client_ref,omitempty"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"file_path"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	Summary   string    `json:"summary,omitempty"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

type Activity struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Settings struct {
	Username string `json:"username"`
	Email    string `json:"email"`

	EnableNotifications bool `json:"enable_notifications"`
	StudyReminders      bool `json:"study_reminders"`
	BreakReminders      bool `json:"break_reminders"`
	DailyGoalReminders  bool `json:"daily_goal_reminders"`

	DailyGoal          int  `json:"daily_goal" validate:"min=30,max=480"`
	StudySessionLength int  `json:"study_session_length" validate:"min=15,max=90"`
	BreakLength        int  `json:"break_length" validate:"min=5,max=30"`
	AutoStartBreak     bool `json:"auto_start_break"`

	Theme       string `json:"theme" validate:"omitempty,oneof=light dark"`
	Language    string `json:"language" validate:"omitempty,oneof=ar en"`
	FontSize    string `json:"font_size" validate:"omitempty,oneof=small medium large"`
	CompactMode bool   `json:"compact_mode"`

	ChatbotPersonality string `json:"chatbot_personality" validate:"omitempty,oneof=friendly professional casual"`
	ResponseLength     string `json:"response_length" validate:"omitempty,oneof=short medium long"`
	IncludeExamples    bool   `json:"include_examples"`

	SaveHistory        bool `json:"save_history"`
	ShareProgress      bool `json:"share_progress"`
	AnonymousAnalytics bool `json:"anonymous_analytics"`
}

type Level struct {
	Level     int    `json:"level"`
	MinPoints int    `json:"min_points"`
	Title     string `json:"title"`
	Color     string `json:"color"`
}

type NextLevel struct {
	Level        int `json:"level"`
	PointsNeeded int `json:"points_needed"`
}

type Stats struct {
	Profile            UserProfile `json:"profile"`
	TotalMaterials     int         `json:"total_materials"`
	CompletedMaterials int         `json:"completed_materials"`
	CompletionRate     float64     `json:"completion_rate"`
	TotalStudyTime     int         `json:"total_study_time"`
	TodayStudyTime     int         `json:"today_study_time"`
	WeeklyStudyTime    []int       `json:"weekly_study_time"`
	DailyGoal          int         `json:"daily_goal"`
	TotalSessions      int         `json:"total_sessions"`
	TotalFiles         int         `json:"total_files"`
	CurrentLevel       int         `json:"current_level"`
	NextLevel          *NextLevel  `json:"next_level"`
}

// ExportBundle mirrors the "Export Data" download: one raw JSON document per
// persisted key, null when the key was never written.
type ExportBundle struct {
	Profile    json.RawMessage `json:"profile"`
	Materials  json.RawMessage `json:"materials"`
	Sessions   json.RawMessage `json:"sessions"`
	Files      json.RawMessage `json:"files"`
	Settings   json.RawMessage `json:"settings"`
	Activities json.RawMessage `json:"activities"`
}

type KnowledgeTopic struct {
	Topic        string   `yaml:"topic" json:"topic"`
	Responses    []string `yaml:"responses" json:"responses"`
	RelatedTerms []string `yaml:"related_terms" json:"related_terms,omitempty"`
}

type Element struct {
	AtomicNumber            int      `json:"atomic_number"`
	Symbol                  string   `json:"symbol"`
	Name                    string   `json:"name"`
	NameAr                  string   `json:"name_ar"`
	AtomicMass              float64  `json:"atomic_mass"`
	Category                string   `json:"category"`
	Period                  int      `json:"period"`
	Group                   int      `json:"group"`
	Block                   string   `json:"block"`
	ElectronicConfiguration string   `json:"electronic_configuration"`
	OxidationStates         []string `json:"oxidation_states"`
	InCurriculum            bool     `json:"in_curriculum"`
}

type ChatPattern struct {
	Keywords  []string `yaml:"keywords" json:"keywords"`
	Responses []string `yaml:"responses" json:"responses"`
}

// Achievement is one embedded goal evaluated against a user's records.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Metric      string `json:"metric"`
	Target      int    `json:"target"`
	Progress    int    `json:"progress"`
	Unlocked    bool   `json:"unlocked"`
}

type AwardTable struct {
	CompleteLesson int `json:"complete_lesson"`
	CorrectAnswer  int `json:"correct_answer"`
	StudySession   int `json:"study_session"`
	UploadFile     int `json:"upload_file"`
	DailyLogin     int `json:"daily_login"`
	StreakBonus    int `json:"streak_bonus"`
	LevelUpBonus   int `json:"level_up_bonus"`
}

// ClientConfig is what a front end needs before its first call.
type ClientConfig struct {
	ChatEmbedURL         string     `json:"chat_embed_url,omitempty"`
	Levels               []Level    `json:"levels"`
	Points               AwardTable `json:"points"`
	MaxUploadBytes       int64      `json:"max_upload_bytes"`
	AcceptedUploadTypes  []string   `json:"accepted_upload_types"`
	StudyMinutes         int        `json:"study_minutes"`
	BreakMinutes         int        `json:"break_minutes"`
	RewardedStudyMinutes int        `json:"rewarded_study_minutes"`
}
