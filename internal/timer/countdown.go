// Package timer implements the study/break countdown. Countdown is a plain
// state machine advanced one second per Tick; Manager drives countdowns for
// many users with real tickers.
package timer

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseStudy Phase = "study"
	PhaseBreak Phase = "break"
)

type EventKind string

const (
	EventStudyCompleted EventKind = "study_completed"
	EventBreakCompleted EventKind = "break_completed"
	EventStoppedEarly   EventKind = "stopped_early"
)

const (
	DefaultStudyMinutes = 45
	DefaultBreakMinutes = 20
	// MinRecordedMinutes is the shortest early stop that still yields an event.
	MinRecordedMinutes = 5
)

var ErrNotOnBreak = errors.New("timer is not in a break")

type Config struct {
	StudyMinutes   int  `json:"study_minutes"`
	BreakMinutes   int  `json:"break_minutes"`
	AutoStartBreak bool `json:"auto_start_break"`
}

func DefaultConfig() Config {
	return Config{
		StudyMinutes:   DefaultStudyMinutes,
		BreakMinutes:   DefaultBreakMinutes,
		AutoStartBreak: true,
	}
}

func (c Config) normalized() Config {
	if c.StudyMinutes <= 0 {
		c.StudyMinutes = DefaultStudyMinutes
	}
	if c.BreakMinutes <= 0 {
		c.BreakMinutes = DefaultBreakMinutes
	}
	return c
}

type Event struct {
	Kind      EventKind `json:"kind"`
	Phase     Phase     `json:"phase"`
	Minutes   int       `json:"minutes"`
	Completed bool      `json:"completed"`
	Session   int       `json:"session"`
}

type State struct {
	Phase             Phase   `json:"phase"`
	Running           bool    `json:"running"`
	RemainingSeconds  int     `json:"remaining_seconds"`
	TotalSeconds      int     `json:"total_seconds"`
	Display           string  `json:"display"`
	Progress          float64 `json:"progress"`
	CurrentSession    int     `json:"current_session"`
	CompletedSessions int     `json:"completed_sessions"`
	TotalStudyMinutes int     `json:"total_study_minutes"`
	TotalBreakMinutes int     `json:"total_break_minutes"`
}

// Countdown is not safe for concurrent use.
type Countdown struct {
	cfg       Config
	phase     Phase
	running   bool
	started   bool
	remaining int

	currentSession    int
	completedSessions int
	totalStudyMinutes int
	totalBreakMinutes int
}

func NewCountdown(cfg Config) *Countdown {
	cfg = cfg.normalized()
	return &Countdown{
		cfg:            cfg,
		phase:          PhaseStudy,
		remaining:      cfg.StudyMinutes * 60,
		currentSession: 1,
	}
}

// Configure changes the phase lengths. A countdown that has not started its
// current phase is reset to the new length.
func (c *Countdown) Configure(cfg Config) {
	c.cfg = cfg.normalized()
	if !c.started && !c.running {
		c.remaining = c.phaseSeconds(c.phase)
	}
}

func (c *Countdown) Start() {
	c.running = true
	c.started = true
}

func (c *Countdown) Pause() {
	c.running = false
}

func (c *Countdown) Running() bool {
	return c.running
}

// Tick advances a running countdown by one second and reports the event
// produced when the phase reaches zero.
func (c *Countdown) Tick() (Event, bool) {
	if !c.running {
		return Event{}, false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		return Event{}, false
	}

	if c.phase == PhaseBreak {
		ev := Event{
			Kind:      EventBreakCompleted,
			Phase:     PhaseBreak,
			Minutes:   c.cfg.BreakMinutes,
			Completed: true,
			Session:   c.currentSession,
		}
		c.totalBreakMinutes += c.cfg.BreakMinutes
		c.currentSession++
		c.enter(PhaseStudy, false)
		return ev, true
	}

	ev := Event{
		Kind:      EventStudyCompleted,
		Phase:     PhaseStudy,
		Minutes:   c.cfg.StudyMinutes,
		Completed: true,
		Session:   c.currentSession,
	}
	c.totalStudyMinutes += c.cfg.StudyMinutes
	c.completedSessions++
	c.enter(PhaseBreak, c.cfg.AutoStartBreak)
	return ev, true
}

// Stop abandons the current phase and returns to a paused study phase. The
// early-stop event is produced only when at least MinRecordedMinutes whole
// minutes elapsed.
func (c *Countdown) Stop() (Event, bool) {
	elapsed := c.phaseSeconds(c.phase)/60 - c.remaining/60
	wasStarted := c.started
	ev := Event{
		Kind:    EventStoppedEarly,
		Phase:   c.phase,
		Minutes: elapsed,
		Session: c.currentSession,
	}
	c.enter(PhaseStudy, false)
	if !wasStarted || elapsed < MinRecordedMinutes {
		return Event{}, false
	}
	return ev, true
}

func (c *Countdown) StartBreak() {
	c.enter(PhaseBreak, true)
}

func (c *Countdown) SkipBreak() error {
	if c.phase != PhaseBreak {
		return ErrNotOnBreak
	}
	c.currentSession++
	c.enter(PhaseStudy, false)
	return nil
}

func (c *Countdown) State() State {
	total := c.phaseSeconds(c.phase)
	progress := 0.0
	if total > 0 {
		progress = float64(total-c.remaining) / float64(total) * 100
	}
	return State{
		Phase:             c.phase,
		Running:           c.running,
		RemainingSeconds:  c.remaining,
		TotalSeconds:      total,
		Display:           FormatClock(c.remaining),
		Progress:          progress,
		CurrentSession:    c.currentSession,
		CompletedSessions: c.completedSessions,
		TotalStudyMinutes: c.totalStudyMinutes,
		TotalBreakMinutes: c.totalBreakMinutes,
	}
}

func (c *Countdown) enter(phase Phase, running bool) {
	c.phase = phase
	c.remaining = c.phaseSeconds(phase)
	c.running = running
	c.started = running
}

func (c *Countdown) phaseSeconds(phase Phase) int {
	if phase == PhaseBreak {
		return c.cfg.BreakMinutes * 60
	}
	return c.cfg.StudyMinutes * 60
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
