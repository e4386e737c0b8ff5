package progress

import (
	"log/slog"

	"github.com/talbiyah/progress-engine/internal/curriculum"
)

// PhaseUnlockThreshold is the completion percentage the previous phase
// must reach before the next phase unlocks.
const PhaseUnlockThreshold = 80

// roundPercent computes round-half-up whole-percent completion for
// counted/total. An empty set yields 0 — empty stages never block
// progression and never divide by zero.
func roundPercent(counted, total int) int {
	if total <= 0 {
		return 0
	}
	p := (100*counted + total/2) / total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func countCounted(milestones []curriculum.Milestone, pm map[string]MilestoneProgress) (counted, total int) {
	for _, m := range milestones {
		total++
		if pm[m.ID].Status.Counted() {
			counted++
		}
	}
	return counted, total
}

// StagePercent is the whole-percent completion of a stage: the flat
// ratio of verified-or-mastered milestones over all milestones in the
// stage. Absent progress records count as not_started.
func StagePercent(h *curriculum.Hierarchy, stageID string, pm map[string]MilestoneProgress) int {
	return roundPercent(countCounted(h.MilestonesOf(stageID), pm))
}

// PhasePercent is the flat ratio over every leaf milestone in the
// phase — NOT an average of stage percentages. Stages with more
// milestones weigh proportionally more; averaging would bias toward
// phases with many small stages.
func PhasePercent(h *curriculum.Hierarchy, phaseID string, pm map[string]MilestoneProgress) int {
	return roundPercent(countCounted(h.MilestonesOfPhase(phaseID), pm))
}

// OverallPercent is the flat ratio over every milestone in the subject.
func OverallPercent(h *curriculum.Hierarchy, pm map[string]MilestoneProgress) int {
	return roundPercent(countCounted(h.Milestones, pm))
}

// IsPhaseLocked reports whether the phase at phaseIndex is locked.
// The first phase is never locked; phase N>0 is locked while the
// previous phase sits below PhaseUnlockThreshold. Exactly 80 unlocks.
func IsPhaseLocked(h *curriculum.Hierarchy, phaseIndex int, pm map[string]MilestoneProgress) bool {
	if phaseIndex <= 0 || phaseIndex >= len(h.Phases) {
		return false
	}
	prev := h.Phases[phaseIndex-1]
	return PhasePercent(h, prev.ID, pm) < PhaseUnlockThreshold
}

// CurrentPosition resolves the student's current phase and stage. A
// cached pointer wins — a teacher or the system may have explicitly
// advanced the student. Without one, the current phase defaults to the
// first phase and the stage is left empty for the UI to auto-expand.
// Completion never advances the pointer implicitly; advancing is an
// explicit verification-side action so a student is never silently
// moved into locked content.
func CurrentPosition(h *curriculum.Hierarchy, ptr *CurriculumPointer) (phaseID, stageID string) {
	if ptr != nil && ptr.CurrentPhaseID != "" {
		return ptr.CurrentPhaseID, ptr.CurrentStageID
	}
	if len(h.Phases) > 0 {
		return h.Phases[0].ID, ""
	}
	return "", ""
}

// SurahPillarPercent is the whole-percent completion of one pillar for
// one surah. totalAyat must be positive by data invariant; zero or
// negative is upstream corruption, reported and treated as 0. Counters
// beyond the total are clamped and reported.
func SurahPillarPercent(sp SurahProgress, totalAyat int, pillar curriculum.Pillar) int {
	if totalAyat <= 0 {
		slog.Warn("surah with non-positive ayah total",
			"surah", sp.SurahNumber, "total_ayat", totalAyat)
		return 0
	}
	count := sp.PillarCount(pillar)
	if count > totalAyat {
		slog.Warn("pillar counter exceeds surah total, clamping",
			"surah", sp.SurahNumber, "pillar", string(pillar),
			"count", count, "total_ayat", totalAyat)
		count = totalAyat
	}
	if count < 0 {
		count = 0
	}
	return roundPercent(count, totalAyat)
}

// StudentStats are the cross-surah reductions shown on dashboards.
type StudentStats struct {
	TotalAyatMemorized int `json:"total_ayat_memorized"`
	SurahsComplete     int `json:"surahs_complete"`
	SurahsInProgress   int `json:"surahs_in_progress"`
}

// AggregateStats reduces all of a student's surah records. Empty input
// yields all zeros.
func AggregateStats(all map[int]SurahProgress) StudentStats {
	var stats StudentStats
	for _, sp := range all {
		stats.TotalAyatMemorized += sp.HifzProgress
		if sp.HifzCompleted {
			stats.SurahsComplete++
			continue
		}
		if sp.Status() == SurahInProgress {
			stats.SurahsInProgress++
		}
	}
	return stats
}

// MilestoneSnapshot pairs a milestone with its (possibly defaulted)
// progress record.
type MilestoneSnapshot struct {
	Milestone curriculum.Milestone `json:"milestone"`
	Status    Status               `json:"status"`
	Progress  MilestoneProgress    `json:"progress"`
}

// StageSnapshot is a stage with its completion percentage.
type StageSnapshot struct {
	Stage      curriculum.Stage    `json:"stage"`
	Percent    int                 `json:"percent"`
	Milestones []MilestoneSnapshot `json:"milestones"`
}

// PhaseSnapshot is a phase with completion and lock state.
type PhaseSnapshot struct {
	Phase   curriculum.Phase `json:"phase"`
	Percent int              `json:"percent"`
	Locked  bool             `json:"locked"`
	Stages  []StageSnapshot  `json:"stages"`
}

// Snapshot is the full derived view of one student's position in one
// subject: every percentage, every lock, and the current position.
// It is computed, never stored; the CurriculumPointer cache holds only
// the overall percentage and position.
type Snapshot struct {
	Subject        curriculum.Subject `json:"subject"`
	Phases         []PhaseSnapshot    `json:"phases"`
	Overall        int                `json:"overall"`
	CurrentPhaseID string             `json:"current_phase_id,omitempty"`
	CurrentStageID string             `json:"current_stage_id,omitempty"`
}

// BuildSnapshot derives the full view from loaded hierarchy and ledger
// data. Pure: no I/O, no mutation of inputs.
func BuildSnapshot(h *curriculum.Hierarchy, pm map[string]MilestoneProgress, ptr *CurriculumPointer) *Snapshot {
	snap := &Snapshot{
		Subject: h.Subject,
		Overall: OverallPercent(h, pm),
	}
	snap.CurrentPhaseID, snap.CurrentStageID = CurrentPosition(h, ptr)

	for i, phase := range h.Phases {
		ps := PhaseSnapshot{
			Phase:   phase,
			Percent: PhasePercent(h, phase.ID, pm),
			Locked:  IsPhaseLocked(h, i, pm),
		}
		for _, stage := range h.StagesOf(phase.ID) {
			ss := StageSnapshot{
				Stage:   stage,
				Percent: StagePercent(h, stage.ID, pm),
			}
			for _, m := range h.MilestonesOf(stage.ID) {
				rec, ok := pm[m.ID]
				if !ok {
					rec = MilestoneProgress{
						StudentID:   "",
						MilestoneID: m.ID,
						Status:      StatusNotStarted,
					}
				}
				ss.Milestones = append(ss.Milestones, MilestoneSnapshot{
					Milestone: m,
					Status:    rec.Status,
					Progress:  rec,
				})
			}
			ps.Stages = append(ps.Stages, ss)
		}
		snap.Phases = append(snap.Phases, ps)
	}
	return snap
}
