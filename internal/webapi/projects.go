package webapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danst0/reinschrift/internal/db"
)

// ProjectResponse represents a project in JSON responses.
type ProjectResponse struct {
	Name  string `json:"name"`
	Open  int    `json:"open"`
	Total int    `json:"total"`
}

// handleListProjects handles GET /projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]*ProjectResponse)
	for _, it := range s.app.Items() {
		if it.Project == "" {
			continue
		}
		p, ok := counts[it.Project]
		if !ok {
			p = &ProjectResponse{Name: it.Project}
			counts[it.Project] = p
		}
		p.Total++
		if !it.Done {
			p.Open++
		}
	}

	names := s.app.Projects()
	responses := make([]ProjectResponse, 0, len(names))
	for _, name := range names {
		if p, ok := counts[name]; ok {
			responses = append(responses, *p)
		}
	}

	jsonResponse(w, responses, http.StatusOK)
}

// CompletionResponse is one entry of GET /history.
type CompletionResponse struct {
	Title       string    `json:"title"`
	Project     string    `json:"project,omitempty"`
	Marker      string    `json:"marker,omitempty"`
	NextDue     string    `json:"next_due,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

func completionToResponse(c db.Completion) CompletionResponse {
	return CompletionResponse{
		Title:       c.Title,
		Project:     c.Project,
		Marker:      c.Marker,
		NextDue:     c.NextDue,
		CompletedAt: c.CompletedAt,
	}
}

// handleHistory handles GET /history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		jsonResponse(w, []CompletionResponse{}, http.StatusOK)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	completions, err := s.history.RecentCompletions(limit)
	if err != nil {
		s.logger.Error("list history failed", "error", err)
		jsonError(w, "Failed to read history", http.StatusInternalServerError)
		return
	}

	responses := make([]CompletionResponse, len(completions))
	for i, c := range completions {
		responses[i] = completionToResponse(c)
	}
	jsonResponse(w, responses, http.StatusOK)
}
