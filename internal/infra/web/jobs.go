package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
)

// Operator job inspection and ad hoc sends, under /api/v1/jobs.

type jobView struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Fingerprint string    `json:"fingerprint"`
	State       string    `json:"state"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toJobView(j *model.Job) jobView {
	return jobView{
		ID:          j.ID,
		Category:    string(j.Category),
		Fingerprint: j.Fingerprint,
		State:       string(j.State),
		Attempts:    j.Attempts,
		LastError:   j.LastError,
		ScheduledAt: j.ScheduledAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// handleJobsList reports live depth per category, plus the recent terminal
// jobs of one category/state when requested.
func (s *Server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	live, err := s.jobs.CountLive(ctx)
	if err != nil {
		http.Error(w, "Failed to count jobs", http.StatusInternalServerError)
		return
	}
	liveOut := make(map[string]int, len(live))
	for c, n := range live {
		liveOut[string(c)] = n
	}

	resp := struct {
		Live   map[string]int `json:"live"`
		Recent []jobView      `json:"recent,omitempty"`
	}{Live: liveOut}

	q := r.URL.Query()
	if cat := model.Category(q.Get("category")); cat != "" {
		if !cat.Valid() {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}
		state := model.JobState(q.Get("state"))
		if state == "" {
			state = model.JobStateExhausted
		}
		if !state.Terminal() {
			http.Error(w, "state must be completed or exhausted", http.StatusBadRequest)
			return
		}
		limit := 20
		if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 200 {
			limit = v
		}
		recent, err := s.jobs.RecentTerminal(ctx, cat, state, limit)
		if err != nil {
			http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
			return
		}
		resp.Recent = make([]jobView, 0, len(recent))
		for _, j := range recent {
			resp.Recent = append(resp.Recent, toJobView(j))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type adHocRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// handleJobsCreate enqueues an operator-initiated one-off text send.
func (s *Server) handleJobsCreate(w http.ResponseWriter, r *http.Request) {
	var req adHocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accepted, jobID, err := s.enq.Enqueue(r.Context(), model.AdHocPayload{To: req.To, Content: req.Text})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) {
			http.Error(w, "to and text are required", http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to enqueue", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, struct {
		Accepted bool   `json:"accepted"`
		JobID    string `json:"job_id,omitempty"`
	}{Accepted: accepted, JobID: jobID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.auth.SecretMatches(r.Header.Get("X-Admin-Secret")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		http.Error(w, "Failed to mint token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{Token: token})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
