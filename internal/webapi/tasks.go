package webapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/task"
	"github.com/danst0/reinschrift/internal/view"
)

// TaskResponse represents a task in JSON responses.
type TaskResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Section    string `json:"section,omitempty"`
	Project    string `json:"project,omitempty"`
	Context    string `json:"context,omitempty"`
	Due        string `json:"due,omitempty"`
	Recurrence string `json:"recurrence,omitempty"`
	Reference  string `json:"reference,omitempty"`
	Marker     string `json:"marker,omitempty"`
	Done       bool   `json:"done"`
	Completed  string `json:"completed,omitempty"`
	// Group is the list header the task appears under.
	Group string `json:"group,omitempty"`
}

// ListResponse is the body of GET /tasks.
type ListResponse struct {
	Today string         `json:"today"`
	Sort  string         `json:"sort"`
	Tasks []TaskResponse `json:"tasks"`
}

func taskToResponse(t task.Item) TaskResponse {
	resp := TaskResponse{
		ID:         encodeID(t.Identity()),
		Title:      t.Title,
		Section:    t.Section,
		Project:    t.Project,
		Context:    t.Context,
		Recurrence: string(t.Recurrence),
		Reference:  t.Reference,
		Marker:     t.Marker,
		Done:       t.Done,
	}
	if t.Due != nil {
		resp.Due = t.Due.String()
	}
	if t.Completed != nil {
		resp.Completed = t.Completed.String()
	}
	return resp
}

// Task IDs encode the identity, so they stay valid across reloads as long
// as section, title and marker are unchanged.
func encodeID(id task.Identity) string {
	raw := id.Section + "\x00" + id.Title + "\x00" + id.Marker
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeID(s string) (task.Identity, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return task.Identity{}, err
	}
	parts := strings.Split(string(raw), "\x00")
	if len(parts) != 3 {
		return task.Identity{}, errors.New("malformed task id")
	}
	return task.Identity{Section: parts[0], Title: parts[1], Marker: parts[2]}, nil
}

// lookup resolves the {id} path value, writing an error response on failure.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (task.Item, bool) {
	id, err := decodeID(r.PathValue("id"))
	if err != nil {
		jsonError(w, "Invalid task ID", http.StatusBadRequest)
		return task.Item{}, false
	}
	item, ok := s.app.Find(id)
	if !ok {
		jsonError(w, "Task not found", http.StatusNotFound)
		return task.Item{}, false
	}
	return item, true
}

// writeOutcome maps a command outcome to a response. Successful commands
// answer with body, or with the outcome message when body is nil.
func (s *Server) writeOutcome(w http.ResponseWriter, out app.Outcome, body interface{}, status int) {
	if out.Severity == app.Error {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(out.Err, store.ErrNotConfigured):
			code = http.StatusServiceUnavailable
		case out.Err == nil:
			code = http.StatusBadRequest
		}
		jsonError(w, out.Message, code)
		return
	}
	if body == nil {
		body = map[string]string{"message": out.Message}
	}
	jsonResponse(w, body, status)
}

// handleListTasks handles GET /tasks. Query parameters override the
// current view settings for this request only.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	st := s.app.State()
	vs := st.View
	q := r.URL.Query()

	if q.Has("search") {
		vs.Search = q.Get("search")
	}
	if v := q.Get("sort"); v != "" {
		mode, ok := view.ParseSortMode(v)
		if !ok {
			jsonError(w, "Invalid sort mode", http.StatusBadRequest)
			return
		}
		vs.Sort = mode
	}
	for name, dst := range map[string]*bool{"show_done": &vs.ShowDone, "due_only": &vs.DueOnly} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				jsonError(w, "Invalid "+name, http.StatusBadRequest)
				return
			}
			*dst = b
		}
	}

	today := s.app.Today()
	res := view.Reconcile(s.app.Items(), vs, view.Selection{}, today, s.app.Translator())

	resp := ListResponse{Today: today.String(), Sort: vs.Sort.String(), Tasks: []TaskResponse{}}
	group := ""
	for _, e := range res.Entries {
		if e.IsHeader() {
			group = e.Header
			continue
		}
		t := taskToResponse(*e.Item)
		t.Group = group
		resp.Tasks = append(resp.Tasks, t)
	}

	jsonResponse(w, resp, http.StatusOK)
}

// TaskRequest is the body of POST /tasks and PUT /tasks/{id}.
// Omitted fields keep their value on update.
type TaskRequest struct {
	Title      *string `json:"title"`
	Section    *string `json:"section"`
	Project    *string `json:"project"`
	Context    *string `json:"context"`
	Due        *string `json:"due"`
	Recurrence *string `json:"recurrence"`
	Reference  *string `json:"reference"`
}

// apply copies the request fields onto item. Due accepts the same
// phrases as the command line ("tomorrow", "next friday").
func (req TaskRequest) apply(item *task.Item, today task.Date) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&item.Title, req.Title)
	set(&item.Section, req.Section)
	set(&item.Project, req.Project)
	set(&item.Context, req.Context)
	set(&item.Reference, req.Reference)
	item.Project = strings.TrimPrefix(item.Project, "+")
	item.Context = strings.TrimPrefix(item.Context, "@")

	if req.Due != nil {
		due, err := task.ParseDue(*req.Due, today.Time())
		if err != nil {
			return err
		}
		item.Due = due
	}
	if req.Recurrence != nil {
		rec, ok := task.ParseRecurrence(*req.Recurrence)
		if !ok {
			return errors.New("unknown recurrence " + strconv.Quote(*req.Recurrence))
		}
		item.Recurrence = rec
	}
	return nil
}

// handleCreateTask handles POST /tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := parseJSON(r, &req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		jsonError(w, "Title is required", http.StatusBadRequest)
		return
	}

	today := s.app.Today()
	item := task.Item{Due: today.Ptr()}
	if err := req.apply(&item, today); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out := s.app.Dispatch(r.Context(), app.AddItem{Item: item})
	if out.Severity == app.Error {
		s.writeOutcome(w, out, nil, 0)
		return
	}
	if created, ok := s.findCreated(item); ok {
		item = created
	}
	s.writeOutcome(w, out, taskToResponse(item), http.StatusCreated)
}

// findCreated returns the newest snapshot item matching a just added one.
// The store may have assigned a marker, so only section and title count.
func (s *Server) findCreated(item task.Item) (task.Item, bool) {
	items := s.app.Items()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Section == item.Section && items[i].Title == item.Title {
			return items[i], true
		}
	}
	return task.Item{}, false
}

// handleGetTask handles GET /tasks/{id}
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	jsonResponse(w, taskToResponse(item), http.StatusOK)
}

// handleUpdateTask handles PUT /tasks/{id}
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req TaskRequest
	if err := parseJSON(r, &req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.apply(&item, s.app.Today()); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out := s.app.Dispatch(r.Context(), app.Edit{Item: item})
	s.writeOutcome(w, out, taskToResponse(item), http.StatusOK)
}

// handleDeleteTask handles DELETE /tasks/{id}
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	out := s.app.Dispatch(r.Context(), app.Delete{Item: item})
	if out.Severity == app.Error {
		s.writeOutcome(w, out, nil, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRequest is the body of POST /tasks/{id}/toggle. Without a body
// the done state flips.
type ToggleRequest struct {
	Done *bool `json:"done"`
}

// handleToggleTask handles POST /tasks/{id}/toggle
func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req ToggleRequest
	if r.ContentLength > 0 {
		if err := parseJSON(r, &req); err != nil {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	done := !item.Done
	if req.Done != nil {
		done = *req.Done
	}

	out := s.app.Dispatch(r.Context(), app.Toggle{Item: item, Done: done})
	s.writeOutcome(w, out, nil, http.StatusOK)
}

// PostponeRequest is the body of POST /tasks/{id}/postpone. Due wins over
// Days when both are set.
type PostponeRequest struct {
	Days int    `json:"days"`
	Due  string `json:"due"`
}

// handlePostponeTask handles POST /tasks/{id}/postpone
func (s *Server) handlePostponeTask(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req PostponeRequest
	if err := parseJSON(r, &req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var cmd app.Command
	switch {
	case req.Due != "":
		due, err := task.ParseDue(req.Due, s.app.Today().Time())
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd = app.SetDue{Item: item, Due: due}
	case req.Days > 0:
		cmd = app.Postpone{Item: item, Days: req.Days}
	default:
		jsonError(w, "days or due is required", http.StatusBadRequest)
		return
	}

	out := s.app.Dispatch(r.Context(), cmd)
	s.writeOutcome(w, out, nil, http.StatusOK)
}

// handleReload handles POST /reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	out := s.app.Dispatch(r.Context(), app.Reload{})
	s.writeOutcome(w, out, map[string]int{"tasks": len(s.app.Items())}, http.StatusOK)
}
