package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/talbiyah/progress-engine/internal/curriculum"
	"github.com/talbiyah/progress-engine/internal/platform/cache"
	"github.com/talbiyah/progress-engine/internal/platform/database"
	"github.com/talbiyah/progress-engine/internal/progress"
	"github.com/talbiyah/progress-engine/internal/quran"
	"github.com/talbiyah/progress-engine/internal/realtime"
	"github.com/talbiyah/progress-engine/internal/report"
)

// actorHeader carries the acting user's identity. The engine never
// reaches into ambient session state; the caller must say who acts.
const actorHeader = "X-Actor-ID"

type app struct {
	store       curriculum.Store
	ledger      progress.Ledger
	workflow    *progress.Workflow
	hub         *realtime.Hub
	hierarchies *curriculum.HierarchyCache

	db    *database.DB
	cache *cache.Cache
}

// newMux creates the HTTP router.
func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)

	mux.HandleFunc("GET /api/v1/subjects/{slug}/hierarchy", a.handleHierarchy)
	mux.HandleFunc("GET /api/v1/subjects/{slug}/review-queue", a.handleReviewQueue)

	mux.HandleFunc("GET /api/v1/students/{studentID}/subjects/{slug}/progress", a.handleProgress)
	mux.HandleFunc("GET /api/v1/students/{studentID}/subjects/{slug}/report.xlsx", a.handleReport)
	mux.HandleFunc("POST /api/v1/students/{studentID}/subjects/{slug}/milestones/{milestoneID}/{action}", a.handleMilestoneAction)
	mux.HandleFunc("GET /api/v1/students/{studentID}/subjects/{slug}/milestones/{milestoneID}/history", a.handleHistory)

	mux.HandleFunc("GET /api/v1/students/{studentID}/quran", a.handleQuran)
	mux.HandleFunc("POST /api/v1/students/{studentID}/surahs/{surah}/{pillar}", a.handleSurahLog)

	mux.HandleFunc("GET /ws", a.handleWS)

	return mux
}

func (a *app) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *app) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		if err := a.db.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
	}
	if a.cache != nil {
		if err := a.cache.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "cache unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// loadHierarchy goes through the shared cache when one is configured.
func (a *app) loadHierarchy(ctx context.Context, slug string) (*curriculum.Hierarchy, error) {
	if a.hierarchies != nil {
		return a.hierarchies.Load(ctx, a.store, slug)
	}
	return curriculum.LoadHierarchy(ctx, a.store, slug)
}

func (a *app) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	h, err := a.loadHierarchy(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *app) handleProgress(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("studentID")

	h, err := a.loadHierarchy(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}

	pm, err := a.ledger.MilestoneProgress(r.Context(), studentID, h.MilestoneIDs())
	if err != nil {
		writeError(w, err)
		return
	}
	ptr, err := a.ledger.CurriculumPointer(r.Context(), studentID, h.Subject.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := progress.BuildSnapshot(h, pm, ptr)

	switch r.URL.Query().Get("view") {
	case "compact":
		writeJSON(w, http.StatusOK, progress.Compact(snap))
	case "overview":
		surahs, err := a.ledger.SurahProgress(r.Context(), studentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, progress.Overview(snap, progress.AggregateStats(surahs)))
	default:
		writeJSON(w, http.StatusOK, progress.Full(snap))
	}
}

func (a *app) handleQuran(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("studentID")

	surahs, err := a.ledger.SurahProgress(r.Context(), studentID)
	if err != nil {
		writeError(w, err)
		return
	}

	type surahRow struct {
		Surah    quran.Surah            `json:"surah"`
		Progress progress.SurahProgress `json:"progress"`
		Status   progress.SurahStatus   `json:"status"`
	}
	rows := make([]surahRow, 0, quran.SurahCount)
	for _, s := range quran.All() {
		sp := surahs[s.Number]
		sp.SurahNumber = s.Number
		rows = append(rows, surahRow{Surah: s, Progress: sp, Status: sp.Status()})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":  progress.AggregateStats(surahs),
		"surahs": rows,
	})
}

type milestoneActionRequest struct {
	Notes string `json:"notes"`
}

func (a *app) handleMilestoneAction(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("studentID")
	milestoneID := r.PathValue("milestoneID")
	action := r.PathValue("action")
	actorID := r.Header.Get(actorHeader)

	h, err := a.loadHierarchy(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req milestoneActionRequest
	if r.Body != nil {
		// An empty body is fine; only notes ride in it.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var rec progress.MilestoneProgress
	switch action {
	case "start":
		rec, err = a.workflow.Start(r.Context(), h, studentID, milestoneID)
	case "submit":
		rec, err = a.workflow.SubmitForVerification(r.Context(), h, studentID, milestoneID)
	case "verify":
		rec, err = a.workflow.VerifyStrict(r.Context(), h, studentID, milestoneID, actorID, req.Notes)
	case "quick-verify":
		rec, err = a.workflow.VerifyQuick(r.Context(), h, studentID, milestoneID, actorID, req.Notes)
	case "reject":
		rec, err = a.workflow.Reject(r.Context(), h, studentID, milestoneID, req.Notes)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown action %q", action)})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := a.ledger.History(r.Context(), r.PathValue("studentID"), r.PathValue("milestoneID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type surahLogRequest struct {
	AyahCount int `json:"ayah_count"`
}

func (a *app) handleSurahLog(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("studentID")

	surahNumber, err := strconv.Atoi(r.PathValue("surah"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "surah must be a number"})
		return
	}

	pillar := curriculum.Pillar(r.PathValue("pillar"))

	var req surahLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sp, err := a.workflow.RecordSurahProgress(r.Context(), studentID, surahNumber, pillar, req.AyahCount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (a *app) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	h, err := a.loadHierarchy(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	queue, err := a.ledger.PendingVerification(r.Context(), h.MilestoneIDs())
	if err != nil {
		writeError(w, err)
		return
	}
	if queue == nil {
		queue = []progress.MilestoneProgress{}
	}
	writeJSON(w, http.StatusOK, queue)
}

func (a *app) handleReport(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("studentID")

	h, err := a.loadHierarchy(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	pm, err := a.ledger.MilestoneProgress(r.Context(), studentID, h.MilestoneIDs())
	if err != nil {
		writeError(w, err)
		return
	}
	ptr, err := a.ledger.CurriculumPointer(r.Context(), studentID, h.Subject.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	surahs, err := a.ledger.SurahProgress(r.Context(), studentID)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := progress.BuildSnapshot(h, pm, ptr)
	stats := progress.AggregateStats(surahs)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "progress-"+h.Subject.Slug+".xlsx"))
	if err := report.WriteWorkbook(w, snap, surahs, stats); err != nil {
		slog.Error("failed to write report workbook", "student_id", studentID, "error", err)
	}
}

func (a *app) handleWS(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic query parameter is required"})
		return
	}
	a.hub.ServeWS(w, r, topic)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto HTTP statuses. Persistence
// failures are never hidden: they surface as 500s with the cache and
// derived values untouched.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, curriculum.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, curriculum.ErrUnsupported):
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "curriculum is not configured"})
	case errors.Is(err, progress.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, progress.ErrOperationInFlight):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case errors.Is(err, progress.ErrUnknownSurah), errors.Is(err, progress.ErrUnknownPillar):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
