package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Loader reads curriculum seed files from a content directory into a
// MemoryStore. Each subject is one YAML document carrying its full
// phase/stage/milestone tree. Invalid documents are skipped, not fatal:
// one bad seed file must not take down the whole curriculum.
type Loader struct {
	rootDir string
	store   *MemoryStore
}

type seedMilestone struct {
	ID                   string `yaml:"id"`
	Name                 string `yaml:"name"`
	SortOrder            int    `yaml:"sort_order"`
	Pillar               Pillar `yaml:"pillar"`
	VerificationCriteria string `yaml:"verification_criteria"`
}

type seedStage struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	SortOrder  int             `yaml:"sort_order"`
	Milestones []seedMilestone `yaml:"milestones"`
}

type seedPhase struct {
	ID             string      `yaml:"id"`
	Name           string      `yaml:"name"`
	SortOrder      int         `yaml:"sort_order"`
	EstimatedHours float64     `yaml:"estimated_hours"`
	Stages         []seedStage `yaml:"stages"`
}

type seedDocument struct {
	Subject Subject     `yaml:"subject"`
	Phases  []seedPhase `yaml:"phases"`
}

// NewLoader creates a loader and loads every seed file under rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		store:   NewMemoryStore(),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum seeds: %w", err)
	}

	slog.Info("curriculum seeds loaded", "subjects", len(l.store.Slugs()))
	return l, nil
}

// Store returns the populated in-memory store.
func (l *Loader) Store() *MemoryStore {
	return l.store
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return l.loadSubject(path)
	})
}

func (l *Loader) loadSubject(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Validate the raw document before decoding into typed entities.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("skipping unparseable seed YAML", "path", path, "error", err)
		return nil
	}
	if _, ok := raw["subject"]; !ok {
		return nil // Not a subject seed file
	}
	if err := ValidateSeedDocument(raw); err != nil {
		slog.Warn("skipping invalid seed document", "path", path, "error", err)
		return nil
	}

	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Warn("skipping undecodable seed document", "path", path, "error", err)
		return nil
	}

	subject := doc.Subject
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.Slug == "" {
		subject.Slug = Slugify(subject.Name)
	}

	var phases []Phase
	var stages []Stage
	var milestones []Milestone
	for _, sp := range doc.Phases {
		phase := Phase{
			ID:             orNewID(sp.ID),
			SubjectID:      subject.ID,
			Name:           sp.Name,
			SortOrder:      sp.SortOrder,
			EstimatedHours: sp.EstimatedHours,
		}
		phases = append(phases, phase)

		for _, ss := range sp.Stages {
			stage := Stage{
				ID:        orNewID(ss.ID),
				PhaseID:   phase.ID,
				Name:      ss.Name,
				SortOrder: ss.SortOrder,
			}
			stages = append(stages, stage)

			for _, sm := range ss.Milestones {
				milestones = append(milestones, Milestone{
					ID:                   orNewID(sm.ID),
					StageID:              stage.ID,
					Name:                 sm.Name,
					SortOrder:            sm.SortOrder,
					Pillar:               sm.Pillar,
					VerificationCriteria: sm.VerificationCriteria,
				})
			}
		}
	}

	l.store.PutSubject(subject, phases, stages, milestones)
	return nil
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
