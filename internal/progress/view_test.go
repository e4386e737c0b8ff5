package progress

import "testing"

func TestCompact(t *testing.T) {
	h := twoPhaseHierarchy()
	snap := BuildSnapshot(h, verified("m-1"), &CurriculumPointer{CurrentPhaseID: "phase-2"})

	v := Compact(snap)
	if v.SubjectSlug != "quran-reading" {
		t.Errorf("SubjectSlug = %q", v.SubjectSlug)
	}
	if v.Overall != 10 {
		t.Errorf("Overall = %d, want 10", v.Overall)
	}
	if v.CurrentPhaseName != "Fluency" {
		t.Errorf("CurrentPhaseName = %q, want Fluency", v.CurrentPhaseName)
	}
}

func TestCompact_DefaultsToFirstPhase(t *testing.T) {
	h := twoPhaseHierarchy()
	v := Compact(BuildSnapshot(h, nil, nil))
	if v.CurrentPhaseName != "Foundation" {
		t.Errorf("CurrentPhaseName = %q, want Foundation", v.CurrentPhaseName)
	}
}

func TestOverview(t *testing.T) {
	h := twoPhaseHierarchy()
	snap := BuildSnapshot(h, verified("m-1", "m-2", "m-3", "m-4"), nil)
	stats := StudentStats{TotalAyatMemorized: 12, SurahsComplete: 1}

	v := Overview(snap, stats)
	if v.Overall != 40 {
		t.Errorf("Overall = %d, want 40", v.Overall)
	}
	if len(v.Phases) != 2 {
		t.Fatalf("len(Phases) = %d, want 2", len(v.Phases))
	}
	if !v.Phases[0].Current {
		t.Error("first phase not marked current")
	}
	if v.Phases[1].Locked {
		t.Error("second phase locked at 80% previous completion")
	}
	if v.Stats != stats {
		t.Errorf("Stats = %+v, want %+v", v.Stats, stats)
	}
}
