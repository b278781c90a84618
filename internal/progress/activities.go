package progress

import (
	"context"

	"chemlab/internal/model"
	"chemlab/internal/store"
)

type Activities struct {
	base
}

// Append records an action and keeps only the newest MaxActivitiesPerUser entries.
func (a *Activities) Append(ctx context.Context, userID string, action string, data map[string]any) (model.Activity, error) {
	key := store.ActivitiesKey(userID)
	list, err := loadList[model.Activity](ctx, a.st, key)
	if err != nil {
		return model.Activity{}, err
	}
	entry := model.Activity{
		ID:        a.newID(),
		UserID:    userID,
		Action:    action,
		Data:      data,
		Timestamp: a.now(),
	}
	list = append(list, entry)
	if len(list) > MaxActivitiesPerUser {
		list = list[len(list)-MaxActivitiesPerUser:]
	}
	if err := saveDoc(ctx, a.st, key, list); err != nil {
		return model.Activity{}, err
	}
	return entry, nil
}

// List returns entries oldest first; limit > 0 keeps only the newest limit.
func (a *Activities) List(ctx context.Context, userID string, limit int) ([]model.Activity, error) {
	list, err := loadList[model.Activity](ctx, a.st, store.ActivitiesKey(userID))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}
