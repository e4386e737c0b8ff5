package curriculum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed curriculum Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed curriculum store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// Supported reports whether the curriculum tables exist in the backing
// database. Deployments may run the progress service before the
// curriculum schema has been migrated in.
func (s *PostgresStore) Supported(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var reg *string
	err := s.pool.QueryRow(ctx,
		`SELECT to_regclass('public.subjects')::text`,
	).Scan(&reg)
	if err != nil {
		return false, fmt.Errorf("probe subjects table: %w", err)
	}
	return reg != nil, nil
}

func (s *PostgresStore) SubjectBySlug(ctx context.Context, slug string) (Subject, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var subj Subject
	var nameAr, description, icon, color *string
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, name_ar, slug, description, icon, color
		 FROM subjects
		 WHERE slug = $1
		 LIMIT 1`,
		slug,
	).Scan(&subj.ID, &subj.Name, &nameAr, &subj.Slug, &description, &icon, &color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subject{}, fmt.Errorf("subject %q: %w", slug, ErrNotFound)
		}
		return Subject{}, fmt.Errorf("get subject: %w", err)
	}

	subj.NameArabic = deref(nameAr)
	subj.Description = deref(description)
	subj.Icon = deref(icon)
	subj.Color = deref(color)
	return subj, nil
}

func (s *PostgresStore) PhasesBySubject(ctx context.Context, subjectID string) ([]Phase, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, subject_id::text, name, sort_order, estimated_hours
		 FROM phases
		 WHERE subject_id = $1::uuid
		 ORDER BY sort_order ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query phases: %w", err)
	}
	defer rows.Close()

	var out []Phase
	for rows.Next() {
		var p Phase
		var hours *float64
		if err := rows.Scan(&p.ID, &p.SubjectID, &p.Name, &p.SortOrder, &hours); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		if hours != nil {
			p.EstimatedHours = *hours
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phases: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) StagesByPhases(ctx context.Context, phaseIDs []string) ([]Stage, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, phase_id::text, name, sort_order
		 FROM stages
		 WHERE phase_id = ANY($1::uuid[])
		 ORDER BY phase_id, sort_order ASC`,
		phaseIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var st Stage
		if err := rows.Scan(&st.ID, &st.PhaseID, &st.Name, &st.SortOrder); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MilestonesByStages(ctx context.Context, stageIDs []string) ([]Milestone, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, stage_id::text, name, sort_order, pillar, verification_criteria
		 FROM milestones
		 WHERE stage_id = ANY($1::uuid[])
		 ORDER BY stage_id, sort_order ASC`,
		stageIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query milestones: %w", err)
	}
	defer rows.Close()

	var out []Milestone
	for rows.Next() {
		var m Milestone
		var pillar, criteria *string
		if err := rows.Scan(&m.ID, &m.StageID, &m.Name, &m.SortOrder, &pillar, &criteria); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		m.Pillar = Pillar(deref(pillar))
		m.VerificationCriteria = deref(criteria)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate milestones: %w", err)
	}
	return out, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
