package curriculum

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a referenced subject does not exist.
var ErrNotFound = errors.New("curriculum: not found")

// ErrUnsupported is returned by stores whose backing service has no
// curriculum capability configured. Callers must treat this distinctly
// from an empty hierarchy.
var ErrUnsupported = errors.New("curriculum: not supported by backing store")

// Store fetches curriculum reference data. Child fetches are batched by
// parent-id set so assembling a hierarchy costs O(depth) round-trips,
// not O(node count).
type Store interface {
	// Supported probes whether the backing service has curriculum data
	// at all. It distinguishes "no curriculum configured" from
	// "curriculum configured but empty".
	Supported(ctx context.Context) (bool, error)

	SubjectBySlug(ctx context.Context, slug string) (Subject, error)
	PhasesBySubject(ctx context.Context, subjectID string) ([]Phase, error)
	StagesByPhases(ctx context.Context, phaseIDs []string) ([]Stage, error)
	MilestonesByStages(ctx context.Context, stageIDs []string) ([]Milestone, error)
}

// LoadHierarchy assembles the full tree for a subject slug.
// Returns ErrNotFound when the subject is absent and ErrUnsupported when
// the store has no curriculum capability. A subject with zero phases is
// a valid, empty hierarchy.
func LoadHierarchy(ctx context.Context, store Store, slug string) (*Hierarchy, error) {
	ok, err := store.Supported(ctx)
	if err != nil {
		return nil, fmt.Errorf("probing curriculum capability: %w", err)
	}
	if !ok {
		return nil, ErrUnsupported
	}

	subject, err := store.SubjectBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	phases, err := store.PhasesBySubject(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("loading phases for %s: %w", slug, err)
	}

	h := &Hierarchy{Subject: subject, Phases: phases}
	if len(phases) == 0 {
		return h, nil
	}

	phaseIDs := make([]string, 0, len(phases))
	for _, p := range phases {
		phaseIDs = append(phaseIDs, p.ID)
	}
	stages, err := store.StagesByPhases(ctx, phaseIDs)
	if err != nil {
		return nil, fmt.Errorf("loading stages for %s: %w", slug, err)
	}
	h.Stages = stages
	if len(stages) == 0 {
		return h, nil
	}

	stageIDs := make([]string, 0, len(stages))
	for _, s := range stages {
		stageIDs = append(stageIDs, s.ID)
	}
	milestones, err := store.MilestonesByStages(ctx, stageIDs)
	if err != nil {
		return nil, fmt.Errorf("loading milestones for %s: %w", slug, err)
	}
	h.Milestones = milestones

	return h, nil
}

// MemoryStore is an in-memory Store implementation, used in tests and
// as the backing store for seed-file deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	subjects   map[string]Subject // keyed by slug
	phases     map[string][]Phase // keyed by subject ID
	stages     map[string][]Stage // keyed by phase ID
	milestones map[string][]Milestone // keyed by stage ID
}

// NewMemoryStore creates an empty in-memory curriculum store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects:   make(map[string]Subject),
		phases:     make(map[string][]Phase),
		stages:     make(map[string][]Stage),
		milestones: make(map[string][]Milestone),
	}
}

// PutSubject adds or replaces a subject and its full subtree.
func (s *MemoryStore) PutSubject(subject Subject, phases []Phase, stages []Stage, milestones []Milestone) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subjects[subject.Slug] = subject
	byPhase := make(map[string][]Stage)
	for _, st := range stages {
		byPhase[st.PhaseID] = append(byPhase[st.PhaseID], st)
	}
	byStage := make(map[string][]Milestone)
	for _, m := range milestones {
		byStage[m.StageID] = append(byStage[m.StageID], m)
	}

	sort.SliceStable(phases, func(i, j int) bool { return phases[i].SortOrder < phases[j].SortOrder })
	s.phases[subject.ID] = phases
	for phaseID, st := range byPhase {
		sort.SliceStable(st, func(i, j int) bool { return st[i].SortOrder < st[j].SortOrder })
		s.stages[phaseID] = st
	}
	for stageID, ms := range byStage {
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].SortOrder < ms[j].SortOrder })
		s.milestones[stageID] = ms
	}
}

func (s *MemoryStore) Supported(_ context.Context) (bool, error) {
	return true, nil
}

func (s *MemoryStore) SubjectBySlug(_ context.Context, slug string) (Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subject, ok := s.subjects[slug]
	if !ok {
		return Subject{}, fmt.Errorf("subject %q: %w", slug, ErrNotFound)
	}
	return subject, nil
}

func (s *MemoryStore) PhasesBySubject(_ context.Context, subjectID string) ([]Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Phase{}, s.phases[subjectID]...), nil
}

func (s *MemoryStore) StagesByPhases(_ context.Context, phaseIDs []string) ([]Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Stage
	for _, id := range phaseIDs {
		out = append(out, s.stages[id]...)
	}
	return out, nil
}

func (s *MemoryStore) MilestonesByStages(_ context.Context, stageIDs []string) ([]Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Milestone
	for _, id := range stageIDs {
		out = append(out, s.milestones[id]...)
	}
	return out, nil
}

// Slugs returns the slugs of all loaded subjects, sorted.
func (s *MemoryStore) Slugs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slugs := make([]string, 0, len(s.subjects))
	for slug := range s.subjects {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
