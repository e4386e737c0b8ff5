package curriculum

// Pillar classifies a milestone under the Talbiyah methodology:
// understanding (fahm), fluency (itqan), memorization (hifz).
// An empty pillar means the milestone is not pillar-specific.
type Pillar string

const (
	PillarUnderstanding Pillar = "understanding"
	PillarFluency       Pillar = "fluency"
	PillarMemorization  Pillar = "memorization"
	PillarNone          Pillar = ""
)

// Valid reports whether p is a known pillar value.
func (p Pillar) Valid() bool {
	switch p {
	case PillarUnderstanding, PillarFluency, PillarMemorization, PillarNone:
		return true
	}
	return false
}

// Subject is a top-level curriculum track (e.g. "Quran Reading").
// Reference data: authored by content admins, never mutated at runtime.
type Subject struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	NameArabic  string `yaml:"name_ar" json:"name_ar,omitempty"`
	Slug        string `yaml:"slug" json:"slug"`
	Description string `yaml:"description" json:"description,omitempty"`
	Icon        string `yaml:"icon" json:"icon,omitempty"`
	Color       string `yaml:"color" json:"color,omitempty"`
}

// Phase is an ordered subdivision of a Subject. SortOrder is unique
// within a subject and defines linear progression.
type Phase struct {
	ID             string  `yaml:"id" json:"id"`
	SubjectID      string  `yaml:"subject_id" json:"subject_id"`
	Name           string  `yaml:"name" json:"name"`
	SortOrder      int     `yaml:"sort_order" json:"sort_order"`
	EstimatedHours float64 `yaml:"estimated_hours" json:"estimated_hours,omitempty"`
}

// Stage is an ordered subdivision of a Phase.
type Stage struct {
	ID        string `yaml:"id" json:"id"`
	PhaseID   string `yaml:"phase_id" json:"phase_id"`
	Name      string `yaml:"name" json:"name"`
	SortOrder int    `yaml:"sort_order" json:"sort_order"`
}

// Milestone is the atomic, verifiable unit of progress.
type Milestone struct {
	ID                   string `yaml:"id" json:"id"`
	StageID              string `yaml:"stage_id" json:"stage_id"`
	Name                 string `yaml:"name" json:"name"`
	SortOrder            int    `yaml:"sort_order" json:"sort_order"`
	Pillar               Pillar `yaml:"pillar" json:"pillar,omitempty"`
	VerificationCriteria string `yaml:"verification_criteria" json:"verification_criteria,omitempty"`
}

// Hierarchy is the fully assembled Subject→Phase→Stage→Milestone tree
// for one subject. Phases, stages and milestones are sorted by their
// sort_order within their parent.
type Hierarchy struct {
	Subject    Subject     `json:"subject"`
	Phases     []Phase     `json:"phases"`
	Stages     []Stage     `json:"stages"`
	Milestones []Milestone `json:"milestones"`
}

// StagesOf returns the stages belonging to the given phase, in order.
func (h *Hierarchy) StagesOf(phaseID string) []Stage {
	var out []Stage
	for _, s := range h.Stages {
		if s.PhaseID == phaseID {
			out = append(out, s)
		}
	}
	return out
}

// MilestonesOf returns the milestones belonging to the given stage, in order.
func (h *Hierarchy) MilestonesOf(stageID string) []Milestone {
	var out []Milestone
	for _, m := range h.Milestones {
		if m.StageID == stageID {
			out = append(out, m)
		}
	}
	return out
}

// MilestonesOfPhase returns every leaf milestone under the given phase.
func (h *Hierarchy) MilestonesOfPhase(phaseID string) []Milestone {
	var out []Milestone
	for _, s := range h.Stages {
		if s.PhaseID != phaseID {
			continue
		}
		out = append(out, h.MilestonesOf(s.ID)...)
	}
	return out
}

// MilestoneIDs returns the IDs of every milestone in the hierarchy.
func (h *Hierarchy) MilestoneIDs() []string {
	ids := make([]string, 0, len(h.Milestones))
	for _, m := range h.Milestones {
		ids = append(ids, m.ID)
	}
	return ids
}
