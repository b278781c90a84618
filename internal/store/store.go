package store

import "context"

// Store is a flat key/value space holding one JSON document per key, the
// same shape the browser build kept in localStorage.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// FilesKeyPrefix starts every upload-list key; the rest is the user id.
const FilesKeyPrefix = "files_"

func ProfileKey(userID string) string    { return "user_" + userID }
func MaterialsKey(userID string) string  { return "materials_" + userID }
func SessionsKey(userID string) string   { return "sessions_" + userID }
func FilesKey(userID string) string      { return FilesKeyPrefix + userID }
func ActivitiesKey(userID string) string { return "activities_" + userID }
func SettingsKey(userID string) string   { return "settings_" + userID }

// UserKeys lists every key owned by a user.
func UserKeys(userID string) []string {
	return []string{
		ProfileKey(userID),
		MaterialsKey(userID),
		SessionsKey(userID),
		FilesKey(userID),
		ActivitiesKey(userID),
		SettingsKey(userID),
	}
}
