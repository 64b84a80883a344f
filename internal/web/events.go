package web

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"studycal/internal/apperr"
	"studycal/internal/model"
)

type createEventsRequest struct {
	Events     []model.CalendarEvent `json:"events"`
	Username   string                `json:"username"`
	CalendarID string                `json:"calendarId"`
}

type updateEventRequest struct {
	ID       string             `json:"id"`
	Updates  *model.EventUpdate `json:"updates"`
	Username string             `json:"username"`
}

type deleteResponse struct {
	Deleted int `json:"deletedCount"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.planner.ListEvents(r.Context(), username(r, ""))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleCreateEvents stores a batch under one grouping.
func (s *Server) handleCreateEvents(w http.ResponseWriter, r *http.Request) {
	var req createEventsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	events, err := s.planner.CreateEvents(r.Context(), username(r, req.Username), req.CalendarID, req.Events)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, events)
}

type addEventRequest struct {
	Username string `json:"username"`
	model.CalendarEvent
}

// handleAddEvent stores one manually created event, in the default
// grouping unless calendarId names another.
func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := s.planner.AddEvent(r.Context(), username(r, req.Username), req.CalendarEvent)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Updates == nil {
		writeError(w, http.StatusBadRequest, "updates are required")
		return
	}
	ev, err := s.planner.UpdateEvent(r.Context(), username(r, req.Username), req.ID, *req.Updates)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleDeleteEvents deletes one event by id, or a whole grouping by
// calendarId.
func (s *Server) handleDeleteEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := username(r, "")
	switch {
	case q.Get("id") != "":
		if err := s.planner.DeleteEvent(r.Context(), user, q.Get("id")); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, deleteResponse{Deleted: 1})
	case q.Get("calendarId") != "":
		n, err := s.planner.DeleteCalendar(r.Context(), user, q.Get("calendarId"))
		// Deleting by calendarId is idempotent here, unlike /api/calendars/{id}.
		if apperr.IsNotFound(err) {
			n, err = 0, nil
		}
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
	default:
		writeAppError(w, r, apperr.Validation("events.delete", "either id or calendarId is required"))
	}
}

func (s *Server) handleListCalendars(w http.ResponseWriter, r *http.Request) {
	cals, err := s.planner.ListCalendars(r.Context(), username(r, ""))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cals)
}

// handleImport accepts either a multipart form with a "file" field or the
// raw .ics body with the file name in ?name=.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	var (
		name string
		body []byte
		user = username(r, "")
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer f.Close()
		if body, err = io.ReadAll(f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		name = hdr.Filename
		if user == "" {
			user = r.FormValue("username")
		}
	} else {
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		name = r.URL.Query().Get("name")
	}

	res, err := s.planner.ImportCalendar(r.Context(), user, name, body)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	fileName, body, err := s.planner.ExportCalendar(r.Context(), username(r, ""), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	n, err := s.planner.DeleteCalendar(r.Context(), username(r, ""), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

// handleGrid renders a month. year and month (0-11) default to the
// current month; selected is YYYY-MM-DD; format=text returns the plain
// text grid.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.planner.Location()
	now := time.Now().In(loc)

	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month())-1)

	var selected *time.Time
	if v := strings.TrimSpace(q.Get("selected")); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "selected must be YYYY-MM-DD")
			return
		}
		selected = &d
	}

	view, err := s.planner.Month(r.Context(), username(r, ""), year, month, selected)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Grid-Cells", strconv.Itoa(len(view.Days)))
		w.WriteHeader(http.StatusOK)
		_ = view.WriteText(w)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
