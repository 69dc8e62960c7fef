package daemon

import (
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/types"
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /issues", s.handleCreateIssue)
	mux.HandleFunc("GET /issues", s.handleListIssues)
	mux.HandleFunc("GET /issues/ready", s.handleReady)
	mux.HandleFunc("GET /issues/blocked", s.handleBlocked)
	mux.HandleFunc("GET /issues/search", s.handleSearch)
	mux.HandleFunc("GET /issues/count", s.handleCount)

	mux.HandleFunc("GET /issues/{id}", s.handleGetIssue)
	mux.HandleFunc("PATCH /issues/{id}", s.handleUpdateIssue)
	mux.HandleFunc("DELETE /issues/{id}", s.handleDeleteIssue)
	mux.HandleFunc("POST /issues/{id}/claim", s.handleClaim)
	mux.HandleFunc("POST /issues/{id}/release", s.handleRelease)
	mux.HandleFunc("POST /issues/{id}/close", s.handleClose)
	mux.HandleFunc("POST /issues/{id}/reopen", s.handleReopen)
	mux.HandleFunc("GET /issues/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /issues/{id}/deps", s.handleListDeps)
	mux.HandleFunc("GET /issues/{id}/deps/tree", s.handleDepTree)

	mux.HandleFunc("POST /deps", s.handleAddDep)
	mux.HandleFunc("DELETE /deps", s.handleRemoveDep)
	mux.HandleFunc("GET /deps/cycles", s.handleCycles)

	mux.HandleFunc("POST /issues/{id}/comments", s.handleAddComment)
	mux.HandleFunc("GET /issues/{id}/comments", s.handleListComments)

	mux.HandleFunc("POST /export", s.handleExport)
	mux.HandleFunc("POST /import", s.handleImport)
	mux.HandleFunc("POST /doctor", s.handleDoctor)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ProjectStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, entries)
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string   `json:"title"`
		IssueType   string   `json:"issue_type"`
		Priority    string   `json:"priority"`
		Description *string  `json:"description"`
		Spec        *string  `json:"spec"`
		Fixes       *string  `json:"fixes"`
		Assignee    *string  `json:"assignee"`
		Deps        []string `json:"deps"`
		DueAt       *string  `json:"due_at"`
		Actor       string   `json:"actor"`
	}
	raw, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err)
		return
	}

	params := types.CreateIssueParams{
		Title: body.Title, Description: body.Description, Spec: body.Spec,
		Fixes: body.Fixes, Assignee: body.Assignee, Deps: body.Deps,
		Actor: actorFromRequest(r, raw),
	}
	if body.DueAt != nil {
		if t, err := time.Parse(time.RFC3339, *body.DueAt); err == nil {
			params.DueAt = &t
		}
	}
	if body.IssueType != "" {
		params.IssueType = types.IssueType(body.IssueType)
	}
	if body.Priority != "" {
		params.Priority = types.Priority(body.Priority)
	}

	iss, err := s.store.CreateIssue(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 201, iss)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, detail)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Priority    *string `json:"priority"`
		Status      *string `json:"status"`
		Assignee    *string `json:"assignee"`
		Spec        *string `json:"spec"`
		Fixes       *string `json:"fixes"`
		DueAt       *string `json:"due_at"`
		Claim       bool    `json:"claim"`
		Unclaim     bool    `json:"unclaim"`
	}
	raw, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := actorFromRequest(r, raw)
	id := r.PathValue("id")

	if body.Claim {
		iss, err := s.store.ClaimIssue(r.Context(), id, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, iss)
		return
	}
	if body.Unclaim {
		iss, err := s.store.ReleaseIssue(r.Context(), id, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, iss)
		return
	}

	fields := types.UpdateFields{Title: body.Title, Description: body.Description, Assignee: body.Assignee, Spec: body.Spec, Fixes: body.Fixes}
	if body.Priority != nil {
		p := types.Priority(*body.Priority)
		fields.Priority = &p
	}
	if body.Status != nil {
		st := types.Status(*body.Status)
		fields.Status = &st
	}
	if body.DueAt != nil {
		if t, err := time.Parse(time.RFC3339, *body.DueAt); err == nil {
			fields.DueAt = &t
		}
	}

	iss, err := s.store.UpdateIssue(r.Context(), id, fields, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, iss)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := s.store.DeleteIssue(r.Context(), r.PathValue("id"), force); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 204, nil)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBody(r, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	iss, err := s.store.ClaimIssue(r.Context(), r.PathValue("id"), actorFromRequest(r, raw))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, iss)
}

// handleRelease resolves the actor from the header only -- spec.md
// §4.2 states release reads only the header, not a body field.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	iss, err := s.store.ReleaseIssue(r.Context(), r.PathValue("id"), actorFromRequest(r, nil))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, iss)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason *string `json:"reason"`
		Force  bool    `json:"force"`
	}
	raw, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err)
		return
	}
	iss, err := s.store.CloseIssue(r.Context(), r.PathValue("id"), actorFromRequest(r, raw), body.Reason, body.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, iss)
}

func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBody(r, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	iss, err := s.store.ReopenIssue(r.Context(), r.PathValue("id"), actorFromRequest(r, raw))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, iss)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.IssueHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, events)
}

func parseFilters(r *http.Request) types.ListFilters {
	q := r.URL.Query()
	var f types.ListFilters
	if v := q.Get("status"); v != "" {
		st := types.Status(v)
		f.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		p := types.Priority(v)
		f.Priority = &p
	}
	if v := q.Get("assignee"); v != "" {
		f.Assignee = &v
	}
	if v := q.Get("issue_type"); v != "" {
		it := types.IssueType(v)
		f.IssueType = &it
	}
	if v := q.Get("spec"); v != "" {
		f.Spec = &v
	}
	f.Sort = q.Get("sort")
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	return f
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListIssues(r.Context(), parseFilters(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, issues)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ReadyIssues(r.Context(), parseFilters(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, issues)
}

func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.BlockedIssues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, issues)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	issues, err := s.store.SearchIssues(r.Context(), q, parseFilters(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, issues)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	var groupCols []string
	for key := range r.URL.Query() {
		if strings.HasPrefix(key, "by_") && r.URL.Query().Get(key) == "true" {
			groupCols = append(groupCols, strings.TrimPrefix(key, "by_"))
		}
	}
	total, grouped, err := s.store.CountIssues(r.Context(), parseFilters(r), strings.Join(groupCols, ","))
	if err != nil {
		writeError(w, err)
		return
	}
	if grouped != nil {
		writeJSON(w, 200, grouped)
		return
	}
	writeJSON(w, 200, total)
}

func (s *Server) handleListDeps(w http.ResponseWriter, r *http.Request) {
	deps, err := s.store.ListDeps(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, deps)
}

func (s *Server) handleDepTree(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "up"
	}
	nodes, err := s.store.DepTreeDirection(r.Context(), r.PathValue("id"), direction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, nodes)
}

func (s *Server) handleAddDep(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IssueID     string `json:"issue_id"`
		DependsOnID string `json:"depends_on_id"`
	}
	raw, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.AddDep(r.Context(), body.IssueID, body.DependsOnID, actorFromRequest(r, raw)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 201, nil)
}

func (s *Server) handleRemoveDep(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IssueID     string `json:"issue_id"`
		DependsOnID string `json:"depends_on_id"`
	}
	raw, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.RemoveDep(r.Context(), body.IssueID, body.DependsOnID, actorFromRequest(r, raw)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 204, nil)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.store.DetectCycles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, cycles)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	raw, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.store.AddComment(r.Context(), r.PathValue("id"), actorFromRequest(r, raw), body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 201, c)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.store.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, comments)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Dir string `json:"dir"`
	}
	if _, err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Dir == "" {
		body.Dir = ".pensa"
	}
	counts, err := s.store.ExportJSONL(r.Context(), body.Dir)
	if err != nil {
		writeError(w, err)
		return
	}
	s.gitAddExport(body.Dir)
	writeJSON(w, 200, counts)
}

// gitAddExport stages the freshly written JSONL files so they ride
// along with whatever commit the caller makes next. Best-effort: a
// missing git binary or a non-repo directory must not fail the export.
func (s *Server) gitAddExport(dir string) {
	cmd := exec.Command("git", "add", dir+"/*.jsonl")
	if out, err := cmd.CombinedOutput(); err != nil {
		s.log.Warn("git add after export failed", "error", err, "output", string(out))
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Dir string `json:"dir"`
	}
	if _, err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Dir == "" {
		body.Dir = ".pensa"
	}
	if err := s.store.ImportJSONL(r.Context(), body.Dir); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleDoctor(w http.ResponseWriter, r *http.Request) {
	fix := r.URL.Query().Get("fix") == "true"
	findings, err := s.store.Doctor(r.Context(), fix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, findings)
}
