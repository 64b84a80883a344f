package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studycal/internal/gcal"
	"studycal/internal/model"
	"studycal/internal/prefs"
)

// ProviderTokenHeader carries the user's Google access token.
const ProviderTokenHeader = "X-Provider-Token"

type updateTaskRequest struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	model.TaskUpdate
}

type pushRequest struct {
	TaskID   string `json:"taskId"`
	Username string `json:"username"`
	gcal.EventRequest
}

// taskView is a task as listed, with its overdue state at request time.
type taskView struct {
	model.Task
	Overdue bool `json:"overdue"`
}

type prefResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.planner.ListTasks(r.Context(), username(r, ""))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	now := s.planner.Now()
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskView{Task: t, Overdue: t.Overdue(now)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var t model.Task
	if !decodeJSON(w, r, &t) {
		return
	}
	created, err := s.planner.CreateTask(r.Context(), username(r, t.UserID), t)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.planner.UpdateTask(r.Context(), username(r, req.UserID), req.ID, req.TaskUpdate)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteTask(r.Context(), username(r, ""), r.URL.Query().Get("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.planner.ToggleTask(r.Context(), username(r, ""), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleTaskTypes merges the built-in task types with the user's custom
// ones.
func (s *Server) handleTaskTypes(w http.ResponseWriter, r *http.Request) {
	types := append([]string(nil), model.DefaultTaskTypes...)
	raw, ok, err := s.prefs.Get(r.Context(), username(r, ""), prefs.KeyCustomTaskTypes)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if ok {
		var custom []string
		if err := json.Unmarshal([]byte(raw), &custom); err == nil {
			seen := make(map[string]bool, len(types))
			for _, t := range types {
				seen[t] = true
			}
			for _, c := range custom {
				if c = strings.TrimSpace(c); c != "" && !seen[c] {
					types = append(types, c)
					seen[c] = true
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, types)
}

// handleGetPref answers with a null value for keys never set.
func (s *Server) handleGetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, ok, err := s.prefs.Get(r.Context(), username(r, ""), key)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := prefResponse{Key: key, Value: json.RawMessage("null")}
	if ok {
		resp.Value = json.RawMessage(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListPrefs answers every known key, null for those never set.
func (s *Server) handleListPrefs(w http.ResponseWriter, r *http.Request) {
	user := username(r, "")
	out := make(map[string]json.RawMessage, len(prefs.Known))
	for _, key := range prefs.Known {
		v, ok, err := s.prefs.Get(r.Context(), user, key)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		out[key] = json.RawMessage("null")
		if ok {
			out[key] = json.RawMessage(v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSetPref stores the raw JSON request body as the value.
func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.prefs.Set(r.Context(), username(r, ""), key, string(body)); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefResponse{Key: key, Value: json.RawMessage(body)})
}

// handlePush sends a stored task (taskId) or an ad-hoc event to the
// user's Google Calendar.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get(ProviderTokenHeader))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "provider token required")
		return
	}
	var req pushRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		res gcal.Inserted
		err error
	)
	if req.TaskID != "" {
		res, err = s.planner.PushTask(r.Context(), username(r, req.Username), req.TaskID, token)
	} else {
		res, err = s.planner.PushEvent(r.Context(), token, req.EventRequest)
	}
	if errors.Is(err, gcal.ErrNoToken) {
		writeError(w, http.StatusUnauthorized, "provider token required")
		return
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleAuthURL answers the Google consent page URL for ?state=.
func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	u, err := s.planner.AuthURL(r.URL.Query().Get("state"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}
