package progress

import (
	"context"
	"strings"

	"chemlab/internal/model"
	"chemlab/internal/store"
)

type Materials struct {
	base
}

type MaterialInput struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=2000"`
	Content     string           `json:"content"`
	Subject     string           `json:"subject" validate:"max=100"`
	Difficulty  model.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Completed   bool             `json:"completed"`
}

// MaterialPatch merges only the non-nil fields.
type MaterialPatch struct {
	Title       *string           `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	Content     *string           `json:"content,omitempty"`
	Subject     *string           `json:"subject,omitempty" validate:"omitempty,max=100"`
	Difficulty  *model.Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Completed   *bool             `json:"completed,omitempty"`
}

func (m *Materials) List(ctx context.Context, userID string) ([]model.StudyMaterial, error) {
	return loadList[model.StudyMaterial](ctx, m.st, store.MaterialsKey(userID))
}

func (m *Materials) Create(ctx context.Context, userID string, in MaterialInput) (model.StudyMaterial, Outcome, error) {
	key := store.MaterialsKey(userID)
	list, err := loadList[model.StudyMaterial](ctx, m.st, key)
	if err != nil {
		return model.StudyMaterial{}, Outcome{}, err
	}
	difficulty := in.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	now := m.now()
	material := model.StudyMaterial{
		ID:          m.newID(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Content:     in.Content,
		Subject:     in.Subject,
		Completed:   in.Completed,
		Difficulty:  difficulty,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	outcome := awardCompletion(&material)
	list = append(list, material)
	if err := saveDoc(ctx, m.st, key, list); err != nil {
		return model.StudyMaterial{}, Outcome{}, err
	}
	return material, outcome, nil
}

// Update applies the patch. The completion award is produced the first time
// the material becomes completed and never again, even after un-completing.
func (m *Materials) Update(ctx context.Context, userID, id string, patch MaterialPatch) (model.StudyMaterial, Outcome, error) {
	key := store.MaterialsKey(userID)
	list, err := loadList[model.StudyMaterial](ctx, m.st, key)
	if err != nil {
		return model.StudyMaterial{}, Outcome{}, err
	}
	idx := indexOf(list, func(item model.StudyMaterial) bool { return item.ID == id })
	if idx < 0 {
		return model.StudyMaterial{}, Outcome{}, ErrNotFound
	}

	material := list[idx]
	if patch.Title != nil {
		material.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		material.Description = *patch.Description
	}
	if patch.Content != nil {
		material.Content = *patch.Content
	}
	if patch.Subject != nil {
		material.Subject = *patch.Subject
	}
	if patch.Difficulty != nil {
		material.Difficulty = *patch.Difficulty
	}
	if patch.Completed != nil {
		material.Completed = *patch.Completed
	}
	material.UpdatedAt = m.now()
	outcome := awardCompletion(&material)

	list[idx] = material
	if err := saveDoc(ctx, m.st, key, list); err != nil {
		return model.StudyMaterial{}, Outcome{}, err
	}
	return material, outcome, nil
}

func (m *Materials) Delete(ctx context.Context, userID, id string) error {
	key := store.MaterialsKey(userID)
	list, err := loadList[model.StudyMaterial](ctx, m.st, key)
	if err != nil {
		return err
	}
	idx := indexOf(list, func(item model.StudyMaterial) bool { return item.ID == id })
	if idx < 0 {
		return ErrNotFound
	}
	list = append(list[:idx], list[idx+1:]...)
	return saveDoc(ctx, m.st, key, list)
}

func awardCompletion(material *model.StudyMaterial) Outcome {
	if !material.Completed || material.PointsAwarded > 0 {
		return Outcome{}
	}
	material.PointsAwarded = PointsCompleteLesson
	return Outcome{Award: &Award{
		UserID: material.UserID,
		Kind:   KindLesson,
		Points: PointsCompleteLesson,
		Reason: "إكمال درس: " + material.Title,
	}}
}

func indexOf[T any](list []T, match func(T) bool) int {
	for i, item := range list {
		if match(item) {
			return i
		}
	}
	return -1
}
