// Package progress holds the per-user study records: profile and points,
// activity log, materials, sessions, uploaded files and settings. Each
// repository reads a whole JSON document from the store, changes it in
// memory and writes it back. Callers serialize writes per user.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chemlab/internal/store"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidPoints = errors.New("points amount must be positive")
	ErrUserRequired  = errors.New("user id is required")
)

// Award is a point grant produced by a write. The repository that produced
// it never applies it; the caller decides.
type Award struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// Award kinds, a bounded set suitable for metric labels.
const (
	KindLesson       = "lesson"
	KindStudySession = "study_session"
	KindUpload       = "upload"
	KindManual       = "manual"
)

type Outcome struct {
	Award     *Award `json:"award,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type base struct {
	st    store.Store
	now   func() time.Time
	newID func() string
}

type Repositories struct {
	Profiles   *Profiles
	Activities *Activities
	Materials  *Materials
	Sessions   *Sessions
	Files      *Files
	Settings   *SettingsStore
}

type Option func(*base)

func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = now
	}
}

func WithIDFunc(newID func() string) Option {
	return func(b *base) {
		b.newID = newID
	}
}

func NewRepositories(st store.Store, opts ...Option) *Repositories {
	b := base{
		st:    st,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&b)
	}
	activities := &Activities{base: b}
	return &Repositories{
		Profiles:   &Profiles{base: b, activities: activities},
		Activities: activities,
		Materials:  &Materials{base: b},
		Sessions:   &Sessions{base: b},
		Files:      &Files{base: b},
		Settings:   &SettingsStore{base: b},
	}
}

func loadDoc[T any](ctx context.Context, st store.Store, key string) (T, bool, error) {
	var doc T
	raw, ok, err := st.Get(ctx, key)
	if err != nil {
		return doc, false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return doc, false, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, true, nil
}

func saveDoc(ctx context.Context, st store.Store, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := st.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func loadList[T any](ctx context.Context, st store.Store, key string) ([]T, error) {
	list, _, err := loadDoc[[]T](ctx, st, key)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = make([]T, 0)
	}
	return list, nil
}
