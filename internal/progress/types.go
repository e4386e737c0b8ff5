// Package progress implements the per-student progress ledger, the
// aggregation engine that derives completion percentages from it, and
// the verification workflow that mutates it.
package progress

import (
	"time"

	"github.com/talbiyah/progress-engine/internal/curriculum"
)

// Status is the verification state of one (student, milestone) pair.
type Status string

const (
	StatusNotStarted          Status = "not_started"
	StatusInProgress          Status = "in_progress"
	StatusPendingVerification Status = "pending_verification"
	StatusVerified            Status = "verified"
	StatusMastered            Status = "mastered"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPendingVerification,
		StatusVerified, StatusMastered:
		return true
	}
	return false
}

// Counted reports whether s counts toward completion percentages.
// Mastered has no producer in this codebase (it is set by external
// admin tooling) but rolls up identically to verified.
func (s Status) Counted() bool {
	return s == StatusVerified || s == StatusMastered
}

// MilestoneProgress is the ledger record for one (student, milestone)
// pair — the pair is the natural key. Records are created lazily on
// first interaction; an absent record means not_started.
type MilestoneProgress struct {
	StudentID          string     `json:"student_id"`
	MilestoneID        string     `json:"milestone_id"`
	Status             Status     `json:"status"`
	ProgressPercentage int        `json:"progress_percentage"` // advisory; status drives rollups
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	VerificationNotes  string     `json:"verification_notes,omitempty"`
	VerifiedBy         string     `json:"verified_by,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Patch is a partial update to a MilestoneProgress record. Nil fields
// are left untouched by the upsert.
type Patch struct {
	Status             *Status
	ProgressPercentage *int
	StartedAt          *time.Time
	CompletedAt        *time.Time
	VerifiedAt         *time.Time
	VerificationNotes  *string
	VerifiedBy         *string
}

// SurahStatus is the derived state of a student's work on one surah.
type SurahStatus string

const (
	SurahNotStarted SurahStatus = "not_started"
	SurahInProgress SurahStatus = "in_progress"
	SurahCompleted  SurahStatus = "completed"
)

// SurahProgress tracks the three pillar counters for one
// (student, surah) pair. Each counter is an ayah count bounded by the
// surah's total; each completed flag holds iff its counter equals the
// total.
type SurahProgress struct {
	StudentID      string    `json:"student_id"`
	SurahNumber    int       `json:"surah_number"`
	FahmProgress   int       `json:"fahm_progress"`
	ItqanProgress  int       `json:"itqan_progress"`
	HifzProgress   int       `json:"hifz_progress"`
	FahmCompleted  bool      `json:"fahm_completed"`
	ItqanCompleted bool      `json:"itqan_completed"`
	HifzCompleted  bool      `json:"hifz_completed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Status derives the surah state. Memorization is the terminal pillar
// in the Talbiyah methodology, so completed ⇔ hifz completed.
func (sp SurahProgress) Status() SurahStatus {
	switch {
	case sp.HifzCompleted:
		return SurahCompleted
	case sp.FahmProgress > 0 || sp.ItqanProgress > 0 || sp.HifzProgress > 0:
		return SurahInProgress
	default:
		return SurahNotStarted
	}
}

// PillarCount returns the ayah counter for the given pillar.
func (sp SurahProgress) PillarCount(p curriculum.Pillar) int {
	switch p {
	case curriculum.PillarUnderstanding:
		return sp.FahmProgress
	case curriculum.PillarFluency:
		return sp.ItqanProgress
	case curriculum.PillarMemorization:
		return sp.HifzProgress
	}
	return 0
}

// CurriculumPointer is the denormalized per-(student, subject) cache:
// current position plus the cached overall percentage. Always
// recomputable from the milestone records; the workflow is its single
// writer, everything else reads only.
type CurriculumPointer struct {
	StudentID                 string    `json:"student_id"`
	SubjectID                 string    `json:"subject_id"`
	CurrentPhaseID            string    `json:"current_phase_id,omitempty"`
	CurrentStageID            string    `json:"current_stage_id,omitempty"`
	OverallProgressPercentage int       `json:"overall_progress_percentage"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// HistoryEntry is one append-only audit row recording a status
// transition. The history table, not the mutable ledger record, is the
// durable record of what happened and when.
type HistoryEntry struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	MilestoneID string    `json:"milestone_id"`
	FromStatus  Status    `json:"from_status"`
	ToStatus    Status    `json:"to_status"`
	ActorID     string    `json:"actor_id,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
