package progress

import (
	"fmt"
	"testing"

	"github.com/talbiyah/progress-engine/internal/curriculum"
)

// twoPhaseHierarchy builds a subject with two phases. Phase one has two
// stages of 3 and 2 milestones; phase two has one stage of 5.
func twoPhaseHierarchy() *curriculum.Hierarchy {
	h := &curriculum.Hierarchy{
		Subject: curriculum.Subject{ID: "subj-1", Name: "Quran Reading", Slug: "quran-reading"},
		Phases: []curriculum.Phase{
			{ID: "phase-1", SubjectID: "subj-1", Name: "Foundation", SortOrder: 1},
			{ID: "phase-2", SubjectID: "subj-1", Name: "Fluency", SortOrder: 2},
		},
		Stages: []curriculum.Stage{
			{ID: "stage-1", PhaseID: "phase-1", Name: "Letters", SortOrder: 1},
			{ID: "stage-2", PhaseID: "phase-1", Name: "Harakat", SortOrder: 2},
			{ID: "stage-3", PhaseID: "phase-2", Name: "Joining", SortOrder: 1},
		},
	}
	for i, stageID := range []string{"stage-1", "stage-1", "stage-1", "stage-2", "stage-2",
		"stage-3", "stage-3", "stage-3", "stage-3", "stage-3"} {
		h.Milestones = append(h.Milestones, curriculum.Milestone{
			ID:        fmt.Sprintf("m-%d", i+1),
			StageID:   stageID,
			Name:      fmt.Sprintf("Milestone %d", i+1),
			SortOrder: i + 1,
		})
	}
	return h
}

func verified(ids ...string) map[string]MilestoneProgress {
	pm := make(map[string]MilestoneProgress)
	for _, id := range ids {
		pm[id] = MilestoneProgress{MilestoneID: id, Status: StatusVerified}
	}
	return pm
}

func TestRoundPercent(t *testing.T) {
	tests := []struct {
		counted, total, want int
	}{
		{0, 0, 0},
		{0, 10, 0},
		{10, 10, 100},
		{1, 8, 13},  // 12.5 rounds up
		{1, 200, 1}, // 0.5 rounds up, never truncates to 0
		{1, 3, 33},
		{2, 3, 67},
		{4, 5, 80},
		{5, 0, 0},  // empty set never divides by zero
		{15, 10, 100},
	}
	for _, tt := range tests {
		if got := roundPercent(tt.counted, tt.total); got != tt.want {
			t.Errorf("roundPercent(%d, %d) = %d, want %d", tt.counted, tt.total, got, tt.want)
		}
	}
}

func TestStagePercent(t *testing.T) {
	h := twoPhaseHierarchy()

	if got := StagePercent(h, "stage-1", nil); got != 0 {
		t.Errorf("StagePercent() with no records = %d, want 0", got)
	}
	pm := verified("m-1", "m-2")
	if got := StagePercent(h, "stage-1", pm); got != 67 {
		t.Errorf("StagePercent() = %d, want 67", got)
	}
}

func TestStagePercent_OnlyVerifiedAndMasteredCount(t *testing.T) {
	h := twoPhaseHierarchy()
	pm := map[string]MilestoneProgress{
		"m-1": {MilestoneID: "m-1", Status: StatusVerified},
		"m-2": {MilestoneID: "m-2", Status: StatusMastered},
		"m-3": {MilestoneID: "m-3", Status: StatusPendingVerification},
	}
	// pending_verification does not count: 2/3, not 3/3.
	if got := StagePercent(h, "stage-1", pm); got != 67 {
		t.Errorf("StagePercent() = %d, want 67", got)
	}
}

func TestPhasePercent_FlatRatioNotStageAverage(t *testing.T) {
	h := twoPhaseHierarchy()
	// stage-1: 3/3 verified (100%), stage-2: 0/2 (0%).
	// Flat ratio over the 5 leaves is 60; a stage average would say 50.
	pm := verified("m-1", "m-2", "m-3")
	if got := PhasePercent(h, "phase-1", pm); got != 60 {
		t.Errorf("PhasePercent() = %d, want 60 (flat ratio, not stage average)", got)
	}
}

func TestOverallPercent(t *testing.T) {
	h := twoPhaseHierarchy()
	if got := OverallPercent(h, nil); got != 0 {
		t.Errorf("OverallPercent() with no records = %d, want 0", got)
	}
	pm := verified("m-1", "m-6")
	if got := OverallPercent(h, pm); got != 20 {
		t.Errorf("OverallPercent() = %d, want 20", got)
	}
}

func TestOverallPercent_MonotonicUnderVerification(t *testing.T) {
	h := twoPhaseHierarchy()
	pm := make(map[string]MilestoneProgress)
	prev := OverallPercent(h, pm)
	for _, m := range h.Milestones {
		pm[m.ID] = MilestoneProgress{MilestoneID: m.ID, Status: StatusVerified}
		got := OverallPercent(h, pm)
		if got < prev {
			t.Fatalf("OverallPercent() decreased from %d to %d after verifying %s", prev, got, m.ID)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("OverallPercent() with everything verified = %d, want 100", prev)
	}
}

func TestIsPhaseLocked(t *testing.T) {
	h := twoPhaseHierarchy()

	tests := []struct {
		name string
		pm   map[string]MilestoneProgress
		want bool
	}{
		{"no progress", nil, true},
		{"below threshold", verified("m-1", "m-2", "m-3"), true},    // 3/5 = 60
		{"exactly threshold", verified("m-1", "m-2", "m-3", "m-4"), false}, // 4/5 = 80 unlocks
		{"complete", verified("m-1", "m-2", "m-3", "m-4", "m-5"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPhaseLocked(h, 1, tt.pm); got != tt.want {
				t.Errorf("IsPhaseLocked(phase 1) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPhaseLocked_FirstPhaseNeverLocked(t *testing.T) {
	h := twoPhaseHierarchy()
	if IsPhaseLocked(h, 0, nil) {
		t.Error("IsPhaseLocked(phase 0) = true, first phase must never be locked")
	}
}

func TestIsPhaseLocked_EmptyPreviousPhase(t *testing.T) {
	h := &curriculum.Hierarchy{
		Subject: curriculum.Subject{ID: "subj-1", Slug: "empty"},
		Phases: []curriculum.Phase{
			{ID: "phase-1", SortOrder: 1},
			{ID: "phase-2", SortOrder: 2},
		},
	}
	// A phase with no milestones reports 0%, so the next phase stays
	// locked until content lands. Authoring keeps phases non-empty.
	if !IsPhaseLocked(h, 1, nil) {
		t.Error("IsPhaseLocked() = false for empty previous phase, want true")
	}
}

func TestCurrentPosition(t *testing.T) {
	h := twoPhaseHierarchy()

	phaseID, stageID := CurrentPosition(h, nil)
	if phaseID != "phase-1" || stageID != "" {
		t.Errorf("CurrentPosition(nil pointer) = (%q, %q), want (phase-1, \"\")", phaseID, stageID)
	}

	ptr := &CurriculumPointer{CurrentPhaseID: "phase-2", CurrentStageID: "stage-3"}
	phaseID, stageID = CurrentPosition(h, ptr)
	if phaseID != "phase-2" || stageID != "stage-3" {
		t.Errorf("CurrentPosition(pointer) = (%q, %q), want (phase-2, stage-3)", phaseID, stageID)
	}
}

func TestSurahPillarPercent(t *testing.T) {
	sp := SurahProgress{SurahNumber: 1, FahmProgress: 3, ItqanProgress: 7, HifzProgress: 9}

	tests := []struct {
		pillar curriculum.Pillar
		total  int
		want   int
	}{
		{curriculum.PillarUnderstanding, 7, 43},
		{curriculum.PillarFluency, 7, 100},
		{curriculum.PillarMemorization, 7, 100}, // over-count clamps
		{curriculum.PillarUnderstanding, 0, 0},  // corrupt total treated as 0
	}
	for _, tt := range tests {
		if got := SurahPillarPercent(sp, tt.total, tt.pillar); got != tt.want {
			t.Errorf("SurahPillarPercent(%s, total=%d) = %d, want %d", tt.pillar, tt.total, got, tt.want)
		}
	}
}

func TestAggregateStats(t *testing.T) {
	all := map[int]SurahProgress{
		1:   {SurahNumber: 1, HifzProgress: 7, HifzCompleted: true},
		112: {SurahNumber: 112, HifzProgress: 2},
		113: {SurahNumber: 113, FahmProgress: 3},
		114: {SurahNumber: 114}, // untouched record counts nowhere
	}
	stats := AggregateStats(all)
	if stats.TotalAyatMemorized != 9 {
		t.Errorf("TotalAyatMemorized = %d, want 9", stats.TotalAyatMemorized)
	}
	if stats.SurahsComplete != 1 {
		t.Errorf("SurahsComplete = %d, want 1", stats.SurahsComplete)
	}
	if stats.SurahsInProgress != 2 {
		t.Errorf("SurahsInProgress = %d, want 2", stats.SurahsInProgress)
	}
}

func TestAggregateStats_Empty(t *testing.T) {
	if stats := AggregateStats(nil); stats != (StudentStats{}) {
		t.Errorf("AggregateStats(nil) = %+v, want zero stats", stats)
	}
}

func TestBuildSnapshot(t *testing.T) {
	h := twoPhaseHierarchy()
	pm := verified("m-1", "m-2", "m-3", "m-4")
	ptr := &CurriculumPointer{CurrentPhaseID: "phase-1", CurrentStageID: "stage-2"}

	snap := BuildSnapshot(h, pm, ptr)

	if snap.Overall != 40 {
		t.Errorf("Overall = %d, want 40", snap.Overall)
	}
	if snap.CurrentPhaseID != "phase-1" || snap.CurrentStageID != "stage-2" {
		t.Errorf("current position = (%q, %q), want (phase-1, stage-2)", snap.CurrentPhaseID, snap.CurrentStageID)
	}
	if len(snap.Phases) != 2 {
		t.Fatalf("len(Phases) = %d, want 2", len(snap.Phases))
	}
	if snap.Phases[0].Percent != 80 {
		t.Errorf("phase 1 percent = %d, want 80", snap.Phases[0].Percent)
	}
	if snap.Phases[0].Locked {
		t.Error("phase 1 locked = true, want false")
	}
	if snap.Phases[1].Locked {
		t.Error("phase 2 locked = true, want false (previous phase at 80)")
	}
	if len(snap.Phases[0].Stages) != 2 {
		t.Fatalf("len(phase 1 stages) = %d, want 2", len(snap.Phases[0].Stages))
	}
	if got := snap.Phases[0].Stages[0].Percent; got != 100 {
		t.Errorf("stage 1 percent = %d, want 100", got)
	}

	// Absent ledger records surface as not_started snapshots.
	ms := snap.Phases[1].Stages[0].Milestones
	if len(ms) != 5 {
		t.Fatalf("len(stage 3 milestones) = %d, want 5", len(ms))
	}
	for _, m := range ms {
		if m.Status != StatusNotStarted {
			t.Errorf("milestone %s status = %s, want not_started", m.Milestone.ID, m.Status)
		}
	}
}
