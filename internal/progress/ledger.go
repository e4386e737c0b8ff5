package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Ledger reads and writes per-student progress records. Load methods
// return only records that exist; absent entries mean not_started with
// zero progress and are not persisted until the first transition.
// Upserts are partial: fields not present in the patch are preserved.
//
// The ledger deliberately knows nothing about aggregation — it never
// recomputes the CurriculumPointer cache on its own. That is the
// workflow's job, after confirmed persistence.
type Ledger interface {
	MilestoneProgress(ctx context.Context, studentID string, milestoneIDs []string) (map[string]MilestoneProgress, error)
	UpsertMilestoneProgress(ctx context.Context, studentID, milestoneID string, patch Patch) (MilestoneProgress, error)

	SurahProgress(ctx context.Context, studentID string) (map[int]SurahProgress, error)
	UpsertSurahProgress(ctx context.Context, sp SurahProgress) (SurahProgress, error)

	// CurriculumPointer returns nil when no pointer exists yet —
	// "no progress" is a valid null, not an error.
	CurriculumPointer(ctx context.Context, studentID, subjectID string) (*CurriculumPointer, error)
	SetCurriculumPointer(ctx context.Context, ptr CurriculumPointer) error

	// PendingVerification returns the teacher review queue: every
	// record among milestoneIDs awaiting verification, oldest first.
	PendingVerification(ctx context.Context, milestoneIDs []string) ([]MilestoneProgress, error)

	AppendHistory(ctx context.Context, entry HistoryEntry) error
	History(ctx context.Context, studentID, milestoneID string) ([]HistoryEntry, error)
}

// MemoryLedger is an in-memory Ledger implementation for tests and
// single-process deployments.
type MemoryLedger struct {
	mu         sync.RWMutex
	milestones map[string]MilestoneProgress // keyed by studentID + "/" + milestoneID
	surahs     map[string]SurahProgress     // keyed by studentID + "/" + surah number
	pointers   map[string]CurriculumPointer // keyed by studentID + "/" + subjectID
	history    []HistoryEntry
	now        func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		milestones: make(map[string]MilestoneProgress),
		surahs:     make(map[string]SurahProgress),
		pointers:   make(map[string]CurriculumPointer),
		now:        time.Now,
	}
}

// SetClock overrides the ledger clock, for tests.
func (l *MemoryLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryLedger) MilestoneProgress(_ context.Context, studentID string, milestoneIDs []string) (map[string]MilestoneProgress, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]MilestoneProgress)
	for _, id := range milestoneIDs {
		if rec, ok := l.milestones[studentID+"/"+id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (l *MemoryLedger) UpsertMilestoneProgress(_ context.Context, studentID, milestoneID string, patch Patch) (MilestoneProgress, error) {
	if studentID == "" || milestoneID == "" {
		return MilestoneProgress{}, fmt.Errorf("student_id and milestone_id are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := studentID + "/" + milestoneID
	rec, ok := l.milestones[key]
	if !ok {
		rec = MilestoneProgress{
			StudentID:   studentID,
			MilestoneID: milestoneID,
			Status:      StatusNotStarted,
		}
	}
	applyPatch(&rec, patch)
	rec.UpdatedAt = l.now()
	l.milestones[key] = rec
	return rec, nil
}

func (l *MemoryLedger) SurahProgress(_ context.Context, studentID string) (map[int]SurahProgress, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[int]SurahProgress)
	for _, sp := range l.surahs {
		if sp.StudentID == studentID {
			out[sp.SurahNumber] = sp
		}
	}
	return out, nil
}

func (l *MemoryLedger) UpsertSurahProgress(_ context.Context, sp SurahProgress) (SurahProgress, error) {
	if sp.StudentID == "" || sp.SurahNumber < 1 {
		return SurahProgress{}, fmt.Errorf("student_id and surah_number are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sp.UpdatedAt = l.now()
	l.surahs[fmt.Sprintf("%s/%d", sp.StudentID, sp.SurahNumber)] = sp
	return sp, nil
}

func (l *MemoryLedger) CurriculumPointer(_ context.Context, studentID, subjectID string) (*CurriculumPointer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ptr, ok := l.pointers[studentID+"/"+subjectID]
	if !ok {
		return nil, nil
	}
	return &ptr, nil
}

func (l *MemoryLedger) SetCurriculumPointer(_ context.Context, ptr CurriculumPointer) error {
	if ptr.StudentID == "" || ptr.SubjectID == "" {
		return fmt.Errorf("student_id and subject_id are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ptr.UpdatedAt = l.now()
	l.pointers[ptr.StudentID+"/"+ptr.SubjectID] = ptr
	return nil
}

func (l *MemoryLedger) PendingVerification(_ context.Context, milestoneIDs []string) ([]MilestoneProgress, error) {
	wanted := make(map[string]bool, len(milestoneIDs))
	for _, id := range milestoneIDs {
		wanted[id] = true
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []MilestoneProgress
	for _, rec := range l.milestones {
		if rec.Status == StatusPendingVerification && wanted[rec.MilestoneID] {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (l *MemoryLedger) AppendHistory(_ context.Context, entry HistoryEntry) error {
	if entry.StudentID == "" || entry.MilestoneID == "" {
		return fmt.Errorf("student_id and milestone_id are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	l.history = append(l.history, entry)
	return nil
}

func (l *MemoryLedger) History(_ context.Context, studentID, milestoneID string) ([]HistoryEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []HistoryEntry
	for _, e := range l.history {
		if e.StudentID == studentID && e.MilestoneID == milestoneID {
			out = append(out, e)
		}
	}
	return out, nil
}

func applyPatch(rec *MilestoneProgress, patch Patch) {
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.ProgressPercentage != nil {
		rec.ProgressPercentage = *patch.ProgressPercentage
	}
	if patch.StartedAt != nil {
		rec.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		rec.CompletedAt = patch.CompletedAt
	}
	if patch.VerifiedAt != nil {
		rec.VerifiedAt = patch.VerifiedAt
	}
	if patch.VerificationNotes != nil {
		rec.VerificationNotes = *patch.VerificationNotes
	}
	if patch.VerifiedBy != nil {
		rec.VerifiedBy = *patch.VerifiedBy
	}
}
