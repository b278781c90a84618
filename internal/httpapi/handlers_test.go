package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chemlab/internal/blob"
	"chemlab/internal/metrics"
	"chemlab/internal/service"
	"chemlab/internal/store"
)

func newTestRouter(t *testing.T, maxUpload int64) http.Handler {
	t.Helper()
	bs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	m := metrics.New()
	svc := service.New(service.Deps{
		Store:          store.NewMemoryStore(),
		Blob:           bs,
		Metrics:        m,
		Logger:         zap.NewNop(),
		Clock:          func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
		TickInterval:   time.Hour,
		MaxUploadBytes: maxUpload,
	})
	t.Cleanup(svc.Close)
	return NewRouter(NewHandler(svc, zap.NewNop(), m))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func uploadRequest(t *testing.T, path, filename, ref string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if ref != "" {
		require.NoError(t, mw.WriteField("client_ref", ref))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPointsRouteReportsLevelUp(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users/u1/points", map[string]any{"points": 120, "reason": "quiz"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["level_up"])
	assert.EqualValues(t, 50, resp["bonus"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody(t, rec)
	assert.EqualValues(t, 170, profile["points"])
	assert.EqualValues(t, 2, profile["level"])

	rec = doJSON(t, h, http.MethodPost, "/api/v1/users/u1/points", map[string]any{"points": -1, "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaterialLifecycle(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users/u1/materials", map[string]any{"title": "الروابط", "difficulty": "hard"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	assert.Nil(t, created["points"])
	id := created["material"].(map[string]any)["id"].(string)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/users/u1/materials/"+id, map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	points := decodeBody(t, rec)["points"].(map[string]any)
	assert.EqualValues(t, 10, points["awarded"])

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/users/u1/materials/"+id, map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody(t, rec)["points"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/materials", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["materials"], 1)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/users/u1/materials/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/users/u1/materials/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrorsListFields(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users/u1/materials", map[string]any{"difficulty": "extreme"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, service.ErrInvalidInput.Error(), resp["error"])
	fields := resp["fields"].([]any)
	rules := map[string]string{}
	for _, f := range fields {
		fe := f.(map[string]any)
		rules[fe["field"].(string)] = fe["rule"].(string)
	}
	assert.Equal(t, "required", rules["Title"])
	assert.Equal(t, "oneof", rules["Difficulty"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/sessions", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionRouteDedupes(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	body := map[string]any{"client_ref": "tab-7", "duration_minutes": 45, "completed": true}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/users/u1/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotNil(t, decodeBody(t, rec)["points"])

	rec = doJSON(t, h, http.MethodPost, "/api/v1/users/u1/sessions", body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["duplicate"])
	assert.Nil(t, resp["points"])
}

func TestUploadRoutes(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 64)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/users/u1/files", "notes.txt", "up-1", []byte("الذرة:\nأصغر وحدة\n")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["trained"])
	file := resp["file"].(map[string]any)
	id := file["id"].(string)
	assert.Equal(t, "text/plain", file["file_type"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/users/u1/files", "notes.txt", "up-1", []byte("again")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["duplicate"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/files/"+id+"/content", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "الذرة:\nأصغر وحدة\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/users/u1/files", "virus.exe", "", []byte("MZ")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/users/u1/files", "big.pdf", "", bytes.Repeat([]byte("a"), 65)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/users/u1/files/"+id, map[string]any{"summary": "ملاحظات"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ملاحظات", decodeBody(t, rec)["summary"])

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/users/u1/files/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/files/"+id+"/content", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsPutMergesFields(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodPut, "/api/v1/users/u1/settings", map[string]any{"theme": "dark"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, "dark", resp["theme"])
	assert.EqualValues(t, 180, resp["daily_goal"])

	rec = doJSON(t, h, http.MethodPut, "/api/v1/users/u1/settings", map[string]any{"daily_goal": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/users/u1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "light", decodeBody(t, rec)["theme"])
}

func TestExportAndClear(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users/u1/points", map[string]any{"points": 5, "reason": "x"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="chemistry-lab-data-2025-03-10.json"`, rec.Header().Get("Content-Disposition"))
	bundle := decodeBody(t, rec)
	assert.NotNil(t, bundle["profile"])
	assert.Nil(t, bundle["materials"])

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/users/u1/data", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody(t, rec)["profile"])
}

func TestTimerRoutes(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/u1/timer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "45:00", decodeBody(t, rec)["display"])

	rec = doJSON(t, h, http.MethodPost, "/api/v1/users/u1/timer/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["running"])

	rec = doJSON(t, h, http.MethodPost, "/api/v1/users/u1/timer/skip-break", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/users/u1/timer/rewind", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatAndElementRoutes(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/chat", map[string]any{"message": "ما هو المول؟"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody(t, rec)["text"])

	rec = doJSON(t, h, http.MethodPost, "/api/v1/chat", map[string]any{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/chat/topics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["topics"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/elements/6", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "C", decodeBody(t, rec)["symbol"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/elements/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/elements/150", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/elements?q=carbon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["elements"], 1)
}

func TestChatAnswersFromOwnUploadsOnly(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/users/alice/files", "secret.txt", "", []byte("Zirconiumxyz:\nalice private note\n")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decodeBody(t, rec)["file"].(map[string]any)["id"].(string)
	require.NotEmpty(t, id)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/chat", map[string]any{"user_id": "alice", "message": "zirconiumxyz"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice private note", decodeBody(t, rec)["text"])

	rec = doJSON(t, h, http.MethodPost, "/api/v1/chat", map[string]any{"user_id": "bob", "message": "zirconiumxyz"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", decodeBody(t, rec)["source"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/chat/topics?user_id=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["topics"], "Zirconiumxyz")
	rec = doJSON(t, h, http.MethodGet, "/api/v1/chat/topics?user_id=bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decodeBody(t, rec)["topics"], "Zirconiumxyz")

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/users/alice/files/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/chat", map[string]any{"user_id": "alice", "message": "zirconiumxyz"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", decodeBody(t, rec)["source"])
}

func TestConfigAndAchievementRoutes(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decodeBody(t, rec)
	assert.Len(t, cfg["levels"], 5)
	assert.EqualValues(t, service.DefaultMaxUploadBytes, cfg["max_upload_bytes"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/achievements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["achievements"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/u1/activities?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
