package progress

// Presentation adapters: thin reshaping of a Snapshot for the display
// variants the dashboards render. No computation happens here beyond
// picking fields off already-derived values.

// CompactView is the card shown on list rows: subject, overall
// percentage, and the name of the current phase.
type CompactView struct {
	SubjectName      string `json:"subject_name"`
	SubjectSlug      string `json:"subject_slug"`
	Overall          int    `json:"overall"`
	CurrentPhaseName string `json:"current_phase_name,omitempty"`
}

// FullView is the expanded curriculum tree with every percentage and
// lock, as rendered on the student detail page.
type FullView struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// OverviewView is the dashboard header: overall percentage, phase
// summary rows, and the cross-surah reductions.
type OverviewView struct {
	SubjectName string             `json:"subject_name"`
	Overall     int                `json:"overall"`
	Phases      []PhaseOverviewRow `json:"phases"`
	Stats       StudentStats       `json:"stats"`
}

// PhaseOverviewRow is one row of the overview's phase summary.
type PhaseOverviewRow struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
	Locked  bool   `json:"locked"`
	Current bool   `json:"current"`
}

// Compact renders the compact display variant.
func Compact(snap *Snapshot) CompactView {
	v := CompactView{
		SubjectName: snap.Subject.Name,
		SubjectSlug: snap.Subject.Slug,
		Overall:     snap.Overall,
	}
	for _, ps := range snap.Phases {
		if ps.Phase.ID == snap.CurrentPhaseID {
			v.CurrentPhaseName = ps.Phase.Name
			break
		}
	}
	return v
}

// Full renders the full display variant.
func Full(snap *Snapshot) FullView {
	return FullView{Snapshot: snap}
}

// Overview renders the overview display variant.
func Overview(snap *Snapshot, stats StudentStats) OverviewView {
	v := OverviewView{
		SubjectName: snap.Subject.Name,
		Overall:     snap.Overall,
		Stats:       stats,
	}
	for _, ps := range snap.Phases {
		v.Phases = append(v.Phases, PhaseOverviewRow{
			Name:    ps.Phase.Name,
			Percent: ps.Percent,
			Locked:  ps.Locked,
			Current: ps.Phase.ID == snap.CurrentPhaseID,
		})
	}
	return v
}
