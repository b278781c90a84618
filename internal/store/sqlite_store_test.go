package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chemlab/internal/store"
)

func TestStoreEnginesBasicFlow(t *testing.T) {
	t.Parallel()

	engines := map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store {
			return store.NewMemoryStore()
		},
		"json": func(t *testing.T) store.Store {
			st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "chemlab.json"))
			require.NoError(t, err)
			return st
		},
		"sqlite": func(t *testing.T) store.Store {
			st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chemlab.db"))
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = st.Close()
			})
			return st
		},
	}

	for name, open := range engines {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := open(t)

			_, ok, err := st.Get(ctx, store.ProfileKey("u1"))
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.Put(ctx, store.ProfileKey("u1"), []byte(`{"id":"u1","points":0}`)))
			require.NoError(t, st.Put(ctx, store.MaterialsKey("u1"), []byte(`[]`)))
			require.NoError(t, st.Put(ctx, store.ProfileKey("u2"), []byte(`{"id":"u2"}`)))

			got, ok, err := st.Get(ctx, store.ProfileKey("u1"))
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"id":"u1","points":0}`, string(got))

			require.NoError(t, st.Put(ctx, store.ProfileKey("u1"), []byte(`{"id":"u1","points":10}`)))
			got, _, err = st.Get(ctx, store.ProfileKey("u1"))
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"u1","points":10}`, string(got))

			keys, err := st.Keys(ctx, "user_")
			require.NoError(t, err)
			assert.Equal(t, []string{"user_u1", "user_u2"}, keys)

			require.NoError(t, st.Put(ctx, store.ProfileKey("أحمد"), []byte(`{"id":"أحمد"}`)))
			require.NoError(t, st.Put(ctx, store.ProfileKey("أمل"), []byte(`{"id":"أمل"}`)))
			keys, err = st.Keys(ctx, "user_أح")
			require.NoError(t, err)
			assert.Equal(t, []string{"user_أحمد"}, keys)
			require.NoError(t, st.Delete(ctx, store.ProfileKey("أحمد")))
			require.NoError(t, st.Delete(ctx, store.ProfileKey("أمل")))

			require.NoError(t, st.Delete(ctx, store.ProfileKey("u1")))
			_, ok, err = st.Get(ctx, store.ProfileKey("u1"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestJSONStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chemlab.json")

	st, err := store.NewJSONStore(path)
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, store.SettingsKey("kid"), []byte(`{"daily_goal":120}`)))

	reopened, err := store.NewJSONStore(path)
	require.NoError(t, err)
	got, ok, err := reopened.Get(ctx, store.SettingsKey("kid"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"daily_goal":120}`, string(got))
}

func TestJSONStoreRejectsInvalidJSON(t *testing.T) {
	t.Parallel()
	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "chemlab.json"))
	require.NoError(t, err)
	assert.Error(t, st.Put(context.Background(), "user_x", []byte("{not json")))
}

func TestNewByEngine(t *testing.T) {
	t.Parallel()

	st, err := store.NewByEngine("memory", store.Options{})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)

	_, err = store.NewByEngine("redis", store.Options{})
	assert.Error(t, err)

	_, err = store.NewByEngine("postgres", store.Options{})
	assert.Error(t, err)
}

func TestUserKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		"user_42", "materials_42", "sessions_42", "files_42", "activities_42", "settings_42",
	}, store.UserKeys("42"))
}
