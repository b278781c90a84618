package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

func NewRouter(handler *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handler.healthz)
	mux.HandleFunc("GET /docs", handler.swaggerUI)
	mux.HandleFunc("GET /docs/", handler.swaggerUI)
	mux.HandleFunc("GET /docs/openapi.json", handler.swaggerSpec)
	if handler.metrics != nil {
		mux.Handle("GET /metrics", handler.metrics.Handler())
	}

	mux.HandleFunc("GET /api/v1/config", handler.clientConfig)

	mux.HandleFunc("GET /api/v1/users/{userID}/profile", handler.profile)
	mux.HandleFunc("POST /api/v1/users/{userID}/points", handler.addPoints)
	mux.HandleFunc("GET /api/v1/users/{userID}/stats", handler.stats)
	mux.HandleFunc("GET /api/v1/users/{userID}/activities", handler.activities)
	mux.HandleFunc("GET /api/v1/users/{userID}/achievements", handler.achievements)

	mux.HandleFunc("GET /api/v1/users/{userID}/materials", handler.listMaterials)
	mux.HandleFunc("POST /api/v1/users/{userID}/materials", handler.createMaterial)
	mux.HandleFunc("PATCH /api/v1/users/{userID}/materials/{id}", handler.updateMaterial)
	mux.HandleFunc("DELETE /api/v1/users/{userID}/materials/{id}", handler.deleteMaterial)

	mux.HandleFunc("GET /api/v1/users/{userID}/sessions", handler.listSessions)
	mux.HandleFunc("POST /api/v1/users/{userID}/sessions", handler.recordSession)

	mux.HandleFunc("GET /api/v1/users/{userID}/files", handler.listFiles)
	mux.HandleFunc("POST /api/v1/users/{userID}/files", handler.uploadFile)
	mux.HandleFunc("GET /api/v1/users/{userID}/files/{id}/content", handler.fileContent)
	mux.HandleFunc("PATCH /api/v1/users/{userID}/files/{id}", handler.updateFile)
	mux.HandleFunc("DELETE /api/v1/users/{userID}/files/{id}", handler.deleteFile)

	mux.HandleFunc("GET /api/v1/users/{userID}/settings", handler.settings)
	mux.HandleFunc("PUT /api/v1/users/{userID}/settings", handler.saveSettings)
	mux.HandleFunc("DELETE /api/v1/users/{userID}/settings", handler.resetSettings)

	mux.HandleFunc("GET /api/v1/users/{userID}/export", handler.export)
	mux.HandleFunc("DELETE /api/v1/users/{userID}/data", handler.clearAll)

	mux.HandleFunc("GET /api/v1/users/{userID}/timer", handler.timer)
	mux.HandleFunc("POST /api/v1/users/{userID}/timer/{action}", handler.timerAction)

	mux.HandleFunc("POST /api/v1/chat", handler.chat)
	mux.HandleFunc("GET /api/v1/chat/topics", handler.chatTopics)
	mux.HandleFunc("GET /api/v1/elements", handler.elements)
	mux.HandleFunc("GET /api/v1/elements/{number}", handler.element)

	return withRequestLogging(handler, withCORS(withJSONContentType(mux)))
}

func withJSONContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) &&
			r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestLogging reads r.Pattern after the mux has matched, so metrics
// are labelled by route template rather than raw path.
func withRequestLogging(h *Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		h.metrics.ObserveHTTP(r.Pattern, rec.status, elapsed)
		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("route", r.Pattern),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
