package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Action string

const (
	ActionStart      Action = "start"
	ActionPause      Action = "pause"
	ActionStop       Action = "stop"
	ActionStartBreak Action = "start-break"
	ActionSkipBreak  Action = "skip-break"
)

var (
	ErrUnknownAction = errors.New("unknown timer action")
	ErrClosed        = errors.New("timer manager closed")
)

func ParseAction(raw string) (Action, error) {
	switch a := Action(raw); a {
	case ActionStart, ActionPause, ActionStop, ActionStartBreak, ActionSkipBreak:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
}

// Handler receives phase events. It runs on the ticking goroutine, or on the
// caller's goroutine for Stop, never while the manager lock is held.
type Handler func(ctx context.Context, userID string, ev Event)

type entry struct {
	cd   *Countdown
	done chan struct{}
}

type Manager struct {
	interval time.Duration
	handler  Handler
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	timers map[string]*entry
}

// NewManager ticks every interval; one second matches wall-clock countdowns.
func NewManager(interval time.Duration, handler Handler, logger *zap.Logger) *Manager {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = func(context.Context, string, Event) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		interval: interval,
		handler:  handler,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[string]*entry),
	}
}

// State reports the user's countdown, or a fresh one built from cfg.
func (m *Manager) State(userID string, cfg Config) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.timers[userID]; ok {
		return e.cd.State()
	}
	return NewCountdown(cfg).State()
}

// Do applies action to the user's countdown, creating it from cfg on first use.
func (m *Manager) Do(ctx context.Context, userID string, action Action, cfg Config) (State, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return State{}, ErrClosed
	}
	e, ok := m.timers[userID]
	if !ok {
		e = &entry{cd: NewCountdown(cfg)}
		m.timers[userID] = e
	} else {
		e.cd.Configure(cfg)
	}

	var (
		ev      Event
		emitted bool
		err     error
	)
	switch action {
	case ActionStart:
		e.cd.Start()
	case ActionPause:
		e.cd.Pause()
	case ActionStop:
		ev, emitted = e.cd.Stop()
	case ActionStartBreak:
		e.cd.StartBreak()
	case ActionSkipBreak:
		err = e.cd.SkipBreak()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	m.syncLoopLocked(userID, e)
	state := e.cd.State()
	m.mu.Unlock()

	if err != nil {
		return state, err
	}
	if emitted {
		m.handler(ctx, userID, ev)
	}
	return state, nil
}

// Forget drops the user's countdown and stops its goroutine.
func (m *Manager) Forget(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.timers[userID]; ok {
		if e.done != nil {
			close(e.done)
			e.done = nil
		}
		delete(m.timers, userID)
	}
}

// Close stops every ticking goroutine and waits for them to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, e := range m.timers {
		if e.done != nil {
			close(e.done)
			e.done = nil
		}
	}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// syncLoopLocked starts a goroutine for a running countdown without one and
// stops the goroutine of a paused countdown.
func (m *Manager) syncLoopLocked(userID string, e *entry) {
	switch {
	case e.cd.Running() && e.done == nil:
		e.done = make(chan struct{})
		m.wg.Add(1)
		go m.loop(userID, e, e.done)
	case !e.cd.Running() && e.done != nil:
		close(e.done)
		e.done = nil
	}
}

func (m *Manager) loop(userID string, e *entry, done chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if e.done != done {
			m.mu.Unlock()
			return
		}
		ev, emitted := e.cd.Tick()
		if !e.cd.Running() {
			e.done = nil
		}
		stillRunning := e.done == done
		m.mu.Unlock()

		if emitted {
			m.logger.Info("timer phase finished",
				zap.String("user_id", userID),
				zap.String("event", string(ev.Kind)),
				zap.Int("minutes", ev.Minutes),
			)
			m.handler(m.ctx, userID, ev)
		}
		if !stillRunning {
			return
		}
	}
}
