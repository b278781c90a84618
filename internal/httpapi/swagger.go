package httpapi

import (
	"net/http"
	"strings"
)

func (h *Handler) swaggerUI(w http.ResponseWriter, r *http.Request) {
	const page = `<!doctype html>
<html lang="ar" dir="rtl">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Chemistry Lab API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body dir="ltr">
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui'
    });
  </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (h *Handler) swaggerSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openAPISpec(requestBaseURL(r)))
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		scheme = strings.Split(forwarded, ",")[0]
		scheme = strings.TrimSpace(scheme)
	}

	host := strings.TrimSpace(r.Host)
	if host == "" {
		host = "localhost:8080"
	}
	return scheme + "://" + host
}

type apiOperation struct {
	method  string
	path    string
	id      string
	summary string
	tag     string
	body    string
	schema  string
	status  string
}

var apiOperations = []apiOperation{
	{method: "get", path: "/healthz", id: "healthz", summary: "Health check", tag: "system"},
	{method: "get", path: "/metrics", id: "metrics", summary: "Prometheus metrics", tag: "system"},
	{method: "get", path: "/api/v1/config", id: "clientConfig", summary: "Level table, award table and upload limits", tag: "system", schema: "ClientConfig"},

	{method: "get", path: "/api/v1/users/{userID}/profile", id: "getProfile", summary: "Get or create the profile", tag: "progress", schema: "UserProfile"},
	{method: "post", path: "/api/v1/users/{userID}/points", id: "addPoints", summary: "Grant points", tag: "progress", body: "AddPointsRequest", schema: "PointsResult"},
	{method: "get", path: "/api/v1/users/{userID}/stats", id: "getStats", summary: "Progress statistics", tag: "progress", schema: "Stats"},
	{method: "get", path: "/api/v1/users/{userID}/activities", id: "listActivities", summary: "Activity log, oldest first; ?limit keeps the newest N", tag: "progress"},
	{method: "get", path: "/api/v1/users/{userID}/achievements", id: "listAchievements", summary: "Achievement progress", tag: "progress"},

	{method: "get", path: "/api/v1/users/{userID}/materials", id: "listMaterials", summary: "List study materials", tag: "materials"},
	{method: "post", path: "/api/v1/users/{userID}/materials", id: "createMaterial", summary: "Create a study material", tag: "materials", body: "MaterialInput", status: "201"},
	{method: "patch", path: "/api/v1/users/{userID}/materials/{id}", id: "updateMaterial", summary: "Patch a study material; first completion awards points", tag: "materials", body: "MaterialInput"},
	{method: "delete", path: "/api/v1/users/{userID}/materials/{id}", id: "deleteMaterial", summary: "Delete a study material", tag: "materials", status: "204"},

	{method: "get", path: "/api/v1/users/{userID}/sessions", id: "listSessions", summary: "List study sessions", tag: "sessions"},
	{method: "post", path: "/api/v1/users/{userID}/sessions", id: "recordSession", summary: "Record a study or break session", tag: "sessions", body: "SessionInput", status: "201"},

	{method: "get", path: "/api/v1/users/{userID}/files", id: "listFiles", summary: "List uploads", tag: "files"},
	{method: "post", path: "/api/v1/users/{userID}/files", id: "uploadFile", summary: "Upload a file (multipart field \"file\", optional \"client_ref\")", tag: "files", status: "201"},
	{method: "get", path: "/api/v1/users/{userID}/files/{id}/content", id: "fileContent", summary: "Download an uploaded body", tag: "files"},
	{method: "patch", path: "/api/v1/users/{userID}/files/{id}", id: "updateFile", summary: "Patch an upload record", tag: "files"},
	{method: "delete", path: "/api/v1/users/{userID}/files/{id}", id: "deleteFile", summary: "Delete an upload and its body", tag: "files", status: "204"},

	{method: "get", path: "/api/v1/users/{userID}/settings", id: "getSettings", summary: "Settings, defaults when unsaved", tag: "settings", schema: "Settings"},
	{method: "put", path: "/api/v1/users/{userID}/settings", id: "saveSettings", summary: "Merge and save settings", tag: "settings", body: "Settings", schema: "Settings"},
	{method: "delete", path: "/api/v1/users/{userID}/settings", id: "resetSettings", summary: "Reset settings to defaults", tag: "settings", schema: "Settings"},

	{method: "get", path: "/api/v1/users/{userID}/export", id: "exportData", summary: "Download every stored document of the user", tag: "data"},
	{method: "delete", path: "/api/v1/users/{userID}/data", id: "clearData", summary: "Delete every stored document of the user", tag: "data", status: "204"},

	{method: "get", path: "/api/v1/users/{userID}/timer", id: "getTimer", summary: "Study timer state", tag: "timer", schema: "TimerState"},
	{method: "post", path: "/api/v1/users/{userID}/timer/{action}", id: "timerAction", summary: "start, pause, stop, start-break or skip-break", tag: "timer", schema: "TimerState"},

	{method: "post", path: "/api/v1/chat", id: "chat", summary: "Ask the chemistry assistant", tag: "chat", body: "ChatRequest", schema: "ChatReply"},
	{method: "get", path: "/api/v1/chat/topics", id: "chatTopics", summary: "Known chat topics; ?user_id adds that user's trained headers", tag: "chat"},
	{method: "get", path: "/api/v1/elements", id: "listElements", summary: "Periodic table subset; ?q filters by symbol or name", tag: "elements"},
	{method: "get", path: "/api/v1/elements/{number}", id: "getElement", summary: "One element by atomic number", tag: "elements"},
}

func openAPISpec(serverURL string) map[string]any {
	paths := map[string]any{}
	for _, op := range apiOperations {
		item, ok := paths[op.path].(map[string]any)
		if !ok {
			item = map[string]any{}
			paths[op.path] = item
		}
		item[op.method] = op.document()
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Chemistry Lab API",
			"description": "Progress, gamification, study timer and chatbot for the Arabic chemistry learning app",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": serverURL},
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas(),
		},
	}
}

func (op apiOperation) document() map[string]any {
	doc := map[string]any{
		"summary":     op.summary,
		"operationId": op.id,
		"tags":        []string{op.tag},
	}

	var params []map[string]any
	for _, name := range pathParams(op.path) {
		params = append(params, map[string]any{
			"name":     name,
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		})
	}
	if params != nil {
		doc["parameters"] = params
	}

	if op.body != "" {
		doc["requestBody"] = map[string]any{
			"required": true,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": schemaRef(op.body),
				},
			},
		}
	}

	status := op.status
	if status == "" {
		status = "200"
	}
	success := map[string]any{"description": "OK"}
	if op.schema != "" {
		success["content"] = map[string]any{
			"application/json": map[string]any{"schema": schemaRef(op.schema)},
		}
	}
	doc["responses"] = map[string]any{
		status:    success,
		"default": map[string]any{"description": "Error", "content": map[string]any{"application/json": map[string]any{"schema": schemaRef("ErrorResponse")}}},
	}
	return doc
}

func pathParams(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			out = append(out, strings.Trim(seg, "{}"))
		}
	}
	return out
}

func schemaRef(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func object(props map[string]any, required ...string) map[string]any {
	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

var (
	str     = map[string]any{"type": "string"}
	integer = map[string]any{"type": "integer"}
	boolean = map[string]any{"type": "boolean"}
	number  = map[string]any{"type": "number"}
	ts      = map[string]any{"type": "string", "format": "date-time"}
)

func schemas() map[string]any {
	return map[string]any{
		"ErrorResponse": object(map[string]any{
			"error": str,
			"fields": map[string]any{"type": "array", "items": object(map[string]any{
				"field": str, "rule": str, "param": str,
			})},
		}),
		"UserProfile": object(map[string]any{
			"id": str, "email": str, "username": str, "points": integer, "level": integer,
			"experience": integer, "avatar_url": str, "created_at": ts, "updated_at": ts,
		}),
		"AddPointsRequest": object(map[string]any{"points": integer, "reason": str}, "points", "reason"),
		"PointsResult": object(map[string]any{
			"profile": schemaRef("UserProfile"), "awarded": integer, "level_up": boolean,
			"levels_gained": integer, "bonus": integer,
		}),
		"Stats": object(map[string]any{
			"profile": schemaRef("UserProfile"), "total_materials": integer, "completed_materials": integer,
			"completion_rate": number, "total_study_time": integer, "today_study_time": integer,
			"weekly_study_time": map[string]any{"type": "array", "items": integer},
			"daily_goal":        integer, "total_sessions": integer, "total_files": integer, "current_level": integer,
			"next_level": object(map[string]any{"level": integer, "points_needed": integer}),
		}),
		"MaterialInput": object(map[string]any{
			"title": str, "description": str, "content": str, "subject": str,
			"difficulty": map[string]any{"type": "string", "enum": []string{"easy", "medium", "hard"}},
			"completed":  boolean,
		}, "title"),
		"SessionInput": object(map[string]any{
			"material_id": str, "client_ref": str, "duration_minutes": integer,
			"break_duration_minutes": integer, "completed": boolean,
			"session_type": map[string]any{"type": "string", "enum": []string{"study", "break"}},
		}),
		"Settings": object(map[string]any{
			"username": str, "email": str, "enable_notifications": boolean, "study_reminders": boolean,
			"break_reminders": boolean, "daily_goal_reminders": boolean, "daily_goal": integer,
			"study_session_length": integer, "break_length": integer, "auto_start_break": boolean,
			"theme": str, "language": str, "font_size": str, "compact_mode": boolean,
			"chatbot_personality": str, "response_length": str, "include_examples": boolean,
			"save_history": boolean, "share_progress": boolean, "anonymous_analytics": boolean,
		}),
		"TimerState": object(map[string]any{
			"phase": str, "running": boolean, "remaining_seconds": integer, "total_seconds": integer,
			"display": str, "progress": number, "current_session": integer, "completed_sessions": integer,
			"total_study_minutes": integer, "total_break_minutes": integer,
		}),
		"ChatRequest": object(map[string]any{"user_id": str, "message": str}, "message"),
		"ChatReply":   object(map[string]any{"text": str, "source": str, "topic": str}),
		"ClientConfig": object(map[string]any{
			"chat_embed_url": str, "levels": map[string]any{"type": "array", "items": object(map[string]any{
				"level": integer, "min_points": integer, "title": str, "color": str,
			})},
			"points":           map[string]any{"type": "object", "additionalProperties": integer},
			"max_upload_bytes": integer, "accepted_upload_types": map[string]any{"type": "array", "items": str},
			"study_minutes": integer, "break_minutes": integer, "rewarded_study_minutes": integer,
		}),
	}
}
