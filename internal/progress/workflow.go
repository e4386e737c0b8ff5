package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talbiyah/progress-engine/internal/curriculum"
	"github.com/talbiyah/progress-engine/internal/quran"
)

// RejectDefaultNote is recorded when a teacher rejects a submission
// without giving a rationale.
const RejectDefaultNote = "Needs more practice before verification."

// ChangeEvent describes a confirmed ledger mutation, published for
// realtime consumers after — never before — persistence succeeds.
type ChangeEvent struct {
	Kind        string    `json:"kind"` // "milestone" or "surah"
	StudentID   string    `json:"student_id"`
	SubjectSlug string    `json:"subject_slug,omitempty"`
	MilestoneID string    `json:"milestone_id,omitempty"`
	SurahNumber int       `json:"surah_number,omitempty"`
	Status      string    `json:"status"`
	Overall     int       `json:"overall,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier receives change events. Implementations must not block.
type Notifier interface {
	ProgressChanged(event ChangeEvent)
}

// NopNotifier ignores all events.
type NopNotifier struct{}

func (NopNotifier) ProgressChanged(ChangeEvent) {}

// Workflow is the verification state machine:
//
//	not_started → in_progress → pending_verification → verified
//
// with a reject path back to in_progress. Mastered is terminal and
// externally set. Every successful transition appends a history row,
// recomputes the student's cached overall percentage, and publishes a
// change event. A failed persistence call mutates nothing derived.
type Workflow struct {
	ledger   Ledger
	notifier Notifier
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewWorkflow creates a workflow over the given ledger. notifier may
// be nil.
func NewWorkflow(ledger Ledger, notifier Notifier) *Workflow {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Workflow{
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// SetClock overrides the workflow clock, for tests.
func (w *Workflow) SetClock(now func() time.Time) {
	w.now = now
}

// Start moves a milestone from not_started to in_progress, creating
// the ledger record lazily. Calling it on a milestone already in
// progress is a no-op; later states reject with ErrInvalidTransition.
func (w *Workflow) Start(ctx context.Context, h *curriculum.Hierarchy, studentID, milestoneID string) (MilestoneProgress, error) {
	return w.transition(ctx, h, studentID, milestoneID, "", func(cur MilestoneProgress) (Patch, Status, error) {
		switch cur.Status {
		case StatusInProgress:
			return Patch{}, cur.Status, nil // already started
		case StatusNotStarted:
			startedAt := w.now()
			return Patch{
				Status:    statusPtr(StatusInProgress),
				StartedAt: &startedAt,
			}, StatusInProgress, nil
		default:
			return Patch{}, "", fmt.Errorf("start from %s: %w", cur.Status, ErrInvalidTransition)
		}
	})
}

// SubmitForVerification moves a milestone into the teacher review
// queue. Permissive about the starting point: both not_started and
// in_progress are accepted, since students may submit work that was
// never explicitly started.
func (w *Workflow) SubmitForVerification(ctx context.Context, h *curriculum.Hierarchy, studentID, milestoneID string) (MilestoneProgress, error) {
	return w.transition(ctx, h, studentID, milestoneID, "", func(cur MilestoneProgress) (Patch, Status, error) {
		switch cur.Status {
		case StatusNotStarted, StatusInProgress:
			patch := Patch{Status: statusPtr(StatusPendingVerification)}
			if cur.StartedAt == nil {
				startedAt := w.now()
				patch.StartedAt = &startedAt
			}
			return patch, StatusPendingVerification, nil
		default:
			return Patch{}, "", fmt.Errorf("submit from %s: %w", cur.Status, ErrInvalidTransition)
		}
	})
}

// VerifyStrict is the teacher-review path: it requires the milestone
// to be pending_verification and records the verifier.
func (w *Workflow) VerifyStrict(ctx context.Context, h *curriculum.Hierarchy, studentID, milestoneID, verifierID, notes string) (MilestoneProgress, error) {
	return w.transition(ctx, h, studentID, milestoneID, verifierID, func(cur MilestoneProgress) (Patch, Status, error) {
		if cur.Status != StatusPendingVerification {
			return Patch{}, "", fmt.Errorf("verify from %s: %w", cur.Status, ErrInvalidTransition)
		}
		return w.verifyPatch(verifierID, notes), StatusVerified, nil
	})
}

// VerifyQuick is the shortcut path: no precondition, upserts straight
// to verified, creating the record from scratch when it never existed.
// Repeating it converges on the same final state with verified_at
// re-set to the later timestamp.
func (w *Workflow) VerifyQuick(ctx context.Context, h *curriculum.Hierarchy, studentID, milestoneID, verifierID, notes string) (MilestoneProgress, error) {
	return w.transition(ctx, h, studentID, milestoneID, verifierID, func(cur MilestoneProgress) (Patch, Status, error) {
		return w.verifyPatch(verifierID, notes), StatusVerified, nil
	})
}

// Reject sends a pending submission back to in_progress. Only the
// status and notes change — accumulated progress is preserved. No
// verifier identity is recorded on the ledger record; rejections are
// informal in the source workflow (the history row still carries the
// acting teacher when the caller supplies one).
func (w *Workflow) Reject(ctx context.Context, h *curriculum.Hierarchy, studentID, milestoneID, notes string) (MilestoneProgress, error) {
	if notes == "" {
		notes = RejectDefaultNote
	}
	return w.transition(ctx, h, studentID, milestoneID, "", func(cur MilestoneProgress) (Patch, Status, error) {
		if cur.Status != StatusPendingVerification {
			return Patch{}, "", fmt.Errorf("reject from %s: %w", cur.Status, ErrInvalidTransition)
		}
		return Patch{
			Status:            statusPtr(StatusInProgress),
			VerificationNotes: &notes,
		}, StatusInProgress, nil
	})
}

func (w *Workflow) verifyPatch(verifierID, notes string) Patch {
	now := w.now()
	hundred := 100
	return Patch{
		Status:             statusPtr(StatusVerified),
		ProgressPercentage: &hundred,
		CompletedAt:        &now,
		VerifiedAt:         &now,
		VerifiedBy:         &verifierID,
		VerificationNotes:  &notes,
	}
}

// transition runs one guarded state change: load current, compute
// patch, persist, then (and only then) append history, recompute the
// cached pointer, and notify.
func (w *Workflow) transition(
	ctx context.Context,
	h *curriculum.Hierarchy,
	studentID, milestoneID, actorID string,
	apply func(cur MilestoneProgress) (Patch, Status, error),
) (MilestoneProgress, error) {
	key := studentID + "/" + milestoneID
	if !w.acquire(key) {
		return MilestoneProgress{}, ErrOperationInFlight
	}
	defer w.release(key)

	existing, err := w.ledger.MilestoneProgress(ctx, studentID, []string{milestoneID})
	if err != nil {
		return MilestoneProgress{}, fmt.Errorf("load milestone progress: %w", err)
	}
	cur, ok := existing[milestoneID]
	if !ok {
		cur = MilestoneProgress{
			StudentID:   studentID,
			MilestoneID: milestoneID,
			Status:      StatusNotStarted,
		}
	}

	patch, to, err := apply(cur)
	if err != nil {
		return MilestoneProgress{}, err
	}
	if to == cur.Status && patch == (Patch{}) {
		return cur, nil // no-op transition
	}

	updated, err := w.ledger.UpsertMilestoneProgress(ctx, studentID, milestoneID, patch)
	if err != nil {
		return MilestoneProgress{}, fmt.Errorf("persist milestone progress: %w", err)
	}

	if err := w.ledger.AppendHistory(ctx, HistoryEntry{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		MilestoneID: milestoneID,
		FromStatus:  cur.Status,
		ToStatus:    updated.Status,
		ActorID:     actorID,
		Notes:       updated.VerificationNotes,
		CreatedAt:   w.now(),
	}); err != nil {
		// The transition is already durable; a missing audit row is
		// an operator-visible anomaly, not a reason to fail the call.
		slog.Error("failed to append progress history",
			"student_id", studentID, "milestone_id", milestoneID, "error", err)
	}

	overall := w.recompute(ctx, h, studentID)

	w.notifier.ProgressChanged(ChangeEvent{
		Kind:        "milestone",
		StudentID:   studentID,
		SubjectSlug: h.Subject.Slug,
		MilestoneID: milestoneID,
		Status:      string(updated.Status),
		Overall:     overall,
		At:          w.now(),
	})

	return updated, nil
}

// recompute refreshes the student's CurriculumPointer cache from the
// full milestone set. The workflow is the cache's single writer. The
// position fields are carried over untouched — completion never
// advances the pointer.
func (w *Workflow) recompute(ctx context.Context, h *curriculum.Hierarchy, studentID string) int {
	pm, err := w.ledger.MilestoneProgress(ctx, studentID, h.MilestoneIDs())
	if err != nil {
		slog.Warn("skipping pointer recompute, ledger load failed",
			"student_id", studentID, "error", err)
		return 0
	}
	overall := OverallPercent(h, pm)

	ptr, err := w.ledger.CurriculumPointer(ctx, studentID, h.Subject.ID)
	if err != nil {
		slog.Warn("skipping pointer recompute, pointer load failed",
			"student_id", studentID, "error", err)
		return overall
	}
	next := CurriculumPointer{
		StudentID: studentID,
		SubjectID: h.Subject.ID,
	}
	if ptr != nil {
		next.CurrentPhaseID = ptr.CurrentPhaseID
		next.CurrentStageID = ptr.CurrentStageID
	}
	next.OverallProgressPercentage = overall

	if err := w.ledger.SetCurriculumPointer(ctx, next); err != nil {
		slog.Warn("failed to write curriculum pointer cache",
			"student_id", studentID, "error", err)
	}
	return overall
}

// AdvancePointer explicitly moves a student's current position. This
// is the only way the pointer's phase/stage fields change — a teacher
// or admin action, never a side effect of milestone completion.
func (w *Workflow) AdvancePointer(ctx context.Context, h *curriculum.Hierarchy, studentID, phaseID, stageID string) error {
	pm, err := w.ledger.MilestoneProgress(ctx, studentID, h.MilestoneIDs())
	if err != nil {
		return fmt.Errorf("load milestone progress: %w", err)
	}
	return w.ledger.SetCurriculumPointer(ctx, CurriculumPointer{
		StudentID:                 studentID,
		SubjectID:                 h.Subject.ID,
		CurrentPhaseID:            phaseID,
		CurrentStageID:            stageID,
		OverallProgressPercentage: OverallPercent(h, pm),
	})
}

// RecordSurahProgress logs ayah progress for one pillar of one surah.
// The counter is clamped into [0, total ayat]; the completed flag
// holds iff the counter equals the total.
func (w *Workflow) RecordSurahProgress(ctx context.Context, studentID string, surahNumber int, pillar curriculum.Pillar, ayahCount int) (SurahProgress, error) {
	total := quran.TotalAyat(surahNumber)
	if total == 0 {
		return SurahProgress{}, fmt.Errorf("surah %d: %w", surahNumber, ErrUnknownSurah)
	}

	key := fmt.Sprintf("%s/surah-%d", studentID, surahNumber)
	if !w.acquire(key) {
		return SurahProgress{}, ErrOperationInFlight
	}
	defer w.release(key)

	if ayahCount < 0 {
		slog.Warn("negative ayah count, clamping to 0",
			"student_id", studentID, "surah", surahNumber, "count", ayahCount)
		ayahCount = 0
	}
	if ayahCount > total {
		slog.Warn("ayah count exceeds surah total, clamping",
			"student_id", studentID, "surah", surahNumber,
			"count", ayahCount, "total_ayat", total)
		ayahCount = total
	}

	all, err := w.ledger.SurahProgress(ctx, studentID)
	if err != nil {
		return SurahProgress{}, fmt.Errorf("load surah progress: %w", err)
	}
	sp, ok := all[surahNumber]
	if !ok {
		sp = SurahProgress{StudentID: studentID, SurahNumber: surahNumber}
	}

	done := ayahCount == total
	switch pillar {
	case curriculum.PillarUnderstanding:
		sp.FahmProgress, sp.FahmCompleted = ayahCount, done
	case curriculum.PillarFluency:
		sp.ItqanProgress, sp.ItqanCompleted = ayahCount, done
	case curriculum.PillarMemorization:
		sp.HifzProgress, sp.HifzCompleted = ayahCount, done
	default:
		return SurahProgress{}, fmt.Errorf("pillar %q: %w", pillar, ErrUnknownPillar)
	}

	updated, err := w.ledger.UpsertSurahProgress(ctx, sp)
	if err != nil {
		return SurahProgress{}, fmt.Errorf("persist surah progress: %w", err)
	}

	w.notifier.ProgressChanged(ChangeEvent{
		Kind:        "surah",
		StudentID:   studentID,
		SurahNumber: surahNumber,
		Status:      string(updated.Status()),
		At:          w.now(),
	})

	return updated, nil
}

func (w *Workflow) acquire(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[key]; busy {
		return false
	}
	w.inflight[key] = struct{}{}
	return true
}

func (w *Workflow) release(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, key)
}

func statusPtr(s Status) *Status {
	return &s
}
