package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chemlab/internal/metrics"
	"chemlab/internal/model"
	"chemlab/internal/progress"
	"chemlab/internal/service"
)

// multipartOverhead is allowed on top of the upload limit for form headers.
const multipartOverhead = 1 << 20

type Handler struct {
	svc     *service.Service
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewHandler(svc *service.Service, logger *zap.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger, metrics: m}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) clientConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ClientConfig())
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Profile(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) addPoints(w http.ResponseWriter, r *http.Request) {
	var req service.AddPointsRequest
	if !h.decode(w, r, "addPoints", &req) {
		return
	}
	result, err := h.svc.AddPoints(r.Context(), r.PathValue("userID"), req)
	if err != nil {
		h.writeServiceError(w, r, "addPoints", err)
		return
	}
	writeJSON(w, http.StatusOK, pointsPayload(&result))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := h.svc.Activities(r.Context(), r.PathValue("userID"), limit)
	if err != nil {
		h.writeServiceError(w, r, "activities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": list})
}

func (h *Handler) achievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Achievements(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": list})
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListMaterials(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "listMaterials", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"materials": list})
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	var in progress.MaterialInput
	if !h.decode(w, r, "createMaterial", &in) {
		return
	}
	result, err := h.svc.CreateMaterial(r.Context(), r.PathValue("userID"), in)
	if err != nil {
		h.writeServiceError(w, r, "createMaterial", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"material": result.Material,
		"points":   pointsPayload(result.Points),
	})
}

func (h *Handler) updateMaterial(w http.ResponseWriter, r *http.Request) {
	var patch progress.MaterialPatch
	if !h.decode(w, r, "updateMaterial", &patch) {
		return
	}
	result, err := h.svc.UpdateMaterial(r.Context(), r.PathValue("userID"), r.PathValue("id"), patch)
	if err != nil {
		h.writeServiceError(w, r, "updateMaterial", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"material": result.Material,
		"points":   pointsPayload(result.Points),
	})
}

func (h *Handler) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMaterial(r.Context(), r.PathValue("userID"), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, "deleteMaterial", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSessions(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "listSessions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (h *Handler) recordSession(w http.ResponseWriter, r *http.Request) {
	var in progress.SessionInput
	if !h.decode(w, r, "recordSession", &in) {
		return
	}
	result, err := h.svc.RecordSession(r.Context(), r.PathValue("userID"), in)
	if err != nil {
		h.writeServiceError(w, r, "recordSession", err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"session":   result.Session,
		"duplicate": result.Duplicate,
		"points":    pointsPayload(result.Points),
	})
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListFiles(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "listFiles", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": list})
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	limit := h.svc.ClientConfig().MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, service.ErrFileTooLarge.Error())
			return
		}
		h.logger.Info("uploadFile bad request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "multipart form with a \"file\" part is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart form with a \"file\" part is required")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.logger.Warn("uploadFile read error", zap.Error(err))
		writeError(w, http.StatusBadRequest, "cannot read uploaded file")
		return
	}

	result, err := h.svc.UploadFile(r.Context(), r.PathValue("userID"), service.UploadRequest{
		Filename:  header.Filename,
		ClientRef: r.FormValue("client_ref"),
		Body:      body,
	})
	if err != nil {
		h.writeServiceError(w, r, "uploadFile", err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"file":      result.File,
		"duplicate": result.Duplicate,
		"trained":   result.Trained,
		"points":    pointsPayload(result.Points),
	})
}

func (h *Handler) fileContent(w http.ResponseWriter, r *http.Request) {
	upload, body, err := h.svc.FileContent(r.Context(), r.PathValue("userID"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "fileContent", err)
		return
	}
	w.Header().Set("Content-Type", upload.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", upload.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) updateFile(w http.ResponseWriter, r *http.Request) {
	var patch progress.FilePatch
	if !h.decode(w, r, "updateFile", &patch) {
		return
	}
	upload, err := h.svc.UpdateFile(r.Context(), r.PathValue("userID"), r.PathValue("id"), patch)
	if err != nil {
		h.writeServiceError(w, r, "updateFile", err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFile(r.Context(), r.PathValue("userID"), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, "deleteFile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// saveSettings decodes the body over the current settings, so a partial
// document only changes the fields it names.
func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	current, err := h.svc.Settings(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "saveSettings", err)
		return
	}
	if !h.decode(w, r, "saveSettings", &current) {
		return
	}
	saved, err := h.svc.SaveSettings(r.Context(), userID, current)
	if err != nil {
		h.writeServiceError(w, r, "saveSettings", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) resetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.ResetSettings(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "resetSettings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.svc.Export(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "export", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.svc.ExportFilename()))
	writeJSON(w, http.StatusOK, bundle)
}

func (h *Handler) clearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context(), r.PathValue("userID")); err != nil {
		h.writeServiceError(w, r, "clearAll", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) timer(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Timer(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "timer", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) timerAction(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.TimerAction(r.Context(), r.PathValue("userID"), r.PathValue("action"))
	if err != nil {
		h.writeServiceError(w, r, "timerAction", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req service.ChatRequest
	if !h.decode(w, r, "chat", &req) {
		return
	}
	reply, err := h.svc.Chat(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) chatTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": h.svc.ChatTopics(r.URL.Query().Get("user_id"))})
}

func (h *Handler) elements(w http.ResponseWriter, r *http.Request) {
	list := h.svc.Elements(strings.TrimSpace(r.URL.Query().Get("q")))
	writeJSON(w, http.StatusOK, map[string]any{"elements": list})
}

func (h *Handler) element(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "number must be an integer")
		return
	}
	el, err := h.svc.Element(number)
	if err != nil {
		h.writeServiceError(w, r, "element", err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Info(op+" decode error", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type pointsView struct {
	Profile      model.UserProfile `json:"profile"`
	Awarded      int               `json:"awarded"`
	LevelUp      bool              `json:"level_up"`
	LevelsGained int               `json:"levels_gained"`
	Bonus        int               `json:"bonus"`
}

func pointsPayload(result *progress.PointsResult) *pointsView {
	if result == nil {
		return nil
	}
	return &pointsView{
		Profile:      result.Profile,
		Awarded:      result.Awarded,
		LevelUp:      result.LeveledUp(),
		LevelsGained: result.LevelsGained,
		Bonus:        result.Bonus,
	}
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUserRequired),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidPoints),
		errors.Is(err, service.ErrEmptyChatMessage),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrUnknownTimerAction):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMaterialNotFound),
		errors.Is(err, service.ErrFileNotFound),
		errors.Is(err, service.ErrElementNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTimerNotOnBreak):
		return http.StatusConflict
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrBlobUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("user_id", r.PathValue("userID")),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", fields...)
		if status == http.StatusInternalServerError {
			writeError(w, status, service.ErrStorage.Error())
			return
		}
		writeError(w, status, err.Error())
		return
	}
	h.logger.Info(op+" rejected", fields...)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		writeJSON(w, status, map[string]any{
			"error":  service.ErrInvalidInput.Error(),
			"fields": details,
		})
		return
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
