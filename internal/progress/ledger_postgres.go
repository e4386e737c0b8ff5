package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresLedger is a PostgreSQL-backed Ledger implementation.
// Partial milestone upserts are expressed with COALESCE so a nil patch
// field never clobbers a stored value.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a PostgreSQL-backed progress ledger.
func NewPostgresLedger(pool *pgxpool.Pool) (*PostgresLedger, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresLedger{pool: pool}, nil
}

const milestoneColumns = `student_id, milestone_id::text, status, progress_percentage,
	started_at, completed_at, verified_at, verification_notes, verified_by, updated_at`

func (l *PostgresLedger) MilestoneProgress(ctx context.Context, studentID string, milestoneIDs []string) (map[string]MilestoneProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT `+milestoneColumns+`
		 FROM milestone_progress
		 WHERE student_id = $1 AND milestone_id = ANY($2::uuid[])`,
		studentID, milestoneIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query milestone progress: %w", err)
	}
	defer rows.Close()

	out := make(map[string]MilestoneProgress)
	for rows.Next() {
		rec, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out[rec.MilestoneID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate milestone progress: %w", err)
	}
	return out, nil
}

func (l *PostgresLedger) UpsertMilestoneProgress(ctx context.Context, studentID, milestoneID string, patch Patch) (MilestoneProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if studentID == "" || milestoneID == "" {
		return MilestoneProgress{}, fmt.Errorf("student_id and milestone_id are required")
	}

	row := l.pool.QueryRow(ctx,
		`INSERT INTO milestone_progress
		   (student_id, milestone_id, status, progress_percentage,
		    started_at, completed_at, verified_at, verification_notes, verified_by, updated_at)
		 VALUES ($1, $2::uuid, COALESCE($3, 'not_started'), COALESCE($4, 0),
		         $5, $6, $7, COALESCE($8, ''), COALESCE($9, ''), NOW())
		 ON CONFLICT (student_id, milestone_id) DO UPDATE SET
		   status              = COALESCE($3, milestone_progress.status),
		   progress_percentage = COALESCE($4, milestone_progress.progress_percentage),
		   started_at          = COALESCE($5, milestone_progress.started_at),
		   completed_at        = COALESCE($6, milestone_progress.completed_at),
		   verified_at         = COALESCE($7, milestone_progress.verified_at),
		   verification_notes  = COALESCE($8, milestone_progress.verification_notes),
		   verified_by         = COALESCE($9, milestone_progress.verified_by),
		   updated_at          = NOW()
		 RETURNING `+milestoneColumns,
		studentID,
		milestoneID,
		statusArg(patch.Status),
		patch.ProgressPercentage,
		patch.StartedAt,
		patch.CompletedAt,
		patch.VerifiedAt,
		patch.VerificationNotes,
		patch.VerifiedBy,
	)
	rec, err := scanMilestone(row)
	if err != nil {
		return MilestoneProgress{}, fmt.Errorf("upsert milestone progress: %w", err)
	}
	return rec, nil
}

func (l *PostgresLedger) SurahProgress(ctx context.Context, studentID string) (map[int]SurahProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT student_id, surah_number,
		        fahm_progress, itqan_progress, hifz_progress,
		        fahm_completed, itqan_completed, hifz_completed, updated_at
		 FROM surah_progress
		 WHERE student_id = $1`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query surah progress: %w", err)
	}
	defer rows.Close()

	out := make(map[int]SurahProgress)
	for rows.Next() {
		var sp SurahProgress
		if err := rows.Scan(
			&sp.StudentID, &sp.SurahNumber,
			&sp.FahmProgress, &sp.ItqanProgress, &sp.HifzProgress,
			&sp.FahmCompleted, &sp.ItqanCompleted, &sp.HifzCompleted, &sp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan surah progress: %w", err)
		}
		out[sp.SurahNumber] = sp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate surah progress: %w", err)
	}
	return out, nil
}

func (l *PostgresLedger) UpsertSurahProgress(ctx context.Context, sp SurahProgress) (SurahProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := l.pool.QueryRow(ctx,
		`INSERT INTO surah_progress
		   (student_id, surah_number, fahm_progress, itqan_progress, hifz_progress,
		    fahm_completed, itqan_completed, hifz_completed, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (student_id, surah_number) DO UPDATE SET
		   fahm_progress   = EXCLUDED.fahm_progress,
		   itqan_progress  = EXCLUDED.itqan_progress,
		   hifz_progress   = EXCLUDED.hifz_progress,
		   fahm_completed  = EXCLUDED.fahm_completed,
		   itqan_completed = EXCLUDED.itqan_completed,
		   hifz_completed  = EXCLUDED.hifz_completed,
		   updated_at      = NOW()
		 RETURNING updated_at`,
		sp.StudentID, sp.SurahNumber,
		sp.FahmProgress, sp.ItqanProgress, sp.HifzProgress,
		sp.FahmCompleted, sp.ItqanCompleted, sp.HifzCompleted,
	).Scan(&sp.UpdatedAt)
	if err != nil {
		return SurahProgress{}, fmt.Errorf("upsert surah progress: %w", err)
	}
	return sp, nil
}

func (l *PostgresLedger) CurriculumPointer(ctx context.Context, studentID, subjectID string) (*CurriculumPointer, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var ptr CurriculumPointer
	var phaseID, stageID *string
	err := l.pool.QueryRow(ctx,
		`SELECT student_id, subject_id::text, current_phase_id::text, current_stage_id::text,
		        overall_progress_percentage, updated_at
		 FROM curriculum_pointers
		 WHERE student_id = $1 AND subject_id = $2::uuid
		 LIMIT 1`,
		studentID, subjectID,
	).Scan(&ptr.StudentID, &ptr.SubjectID, &phaseID, &stageID,
		&ptr.OverallProgressPercentage, &ptr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no progress yet is a valid null
		}
		return nil, fmt.Errorf("get curriculum pointer: %w", err)
	}

	if phaseID != nil {
		ptr.CurrentPhaseID = *phaseID
	}
	if stageID != nil {
		ptr.CurrentStageID = *stageID
	}
	return &ptr, nil
}

func (l *PostgresLedger) SetCurriculumPointer(ctx context.Context, ptr CurriculumPointer) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := l.pool.Exec(ctx,
		`INSERT INTO curriculum_pointers
		   (student_id, subject_id, current_phase_id, current_stage_id,
		    overall_progress_percentage, updated_at)
		 VALUES ($1, $2::uuid, $3::uuid, $4::uuid, $5, NOW())
		 ON CONFLICT (student_id, subject_id) DO UPDATE SET
		   current_phase_id            = EXCLUDED.current_phase_id,
		   current_stage_id            = EXCLUDED.current_stage_id,
		   overall_progress_percentage = EXCLUDED.overall_progress_percentage,
		   updated_at                  = NOW()`,
		ptr.StudentID,
		ptr.SubjectID,
		nullIfEmpty(ptr.CurrentPhaseID),
		nullIfEmpty(ptr.CurrentStageID),
		ptr.OverallProgressPercentage,
	)
	if err != nil {
		return fmt.Errorf("set curriculum pointer: %w", err)
	}
	return nil
}

func (l *PostgresLedger) PendingVerification(ctx context.Context, milestoneIDs []string) ([]MilestoneProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT `+milestoneColumns+`
		 FROM milestone_progress
		 WHERE status = 'pending_verification' AND milestone_id = ANY($1::uuid[])
		 ORDER BY updated_at ASC`,
		milestoneIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query review queue: %w", err)
	}
	defer rows.Close()

	var out []MilestoneProgress
	for rows.Next() {
		rec, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review queue: %w", err)
	}
	return out, nil
}

func (l *PostgresLedger) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO progress_history
		   (id, student_id, milestone_id, from_status, to_status, actor_id, notes, created_at)
		 VALUES ($1::uuid, $2, $3::uuid, $4, $5, $6, $7, $8)`,
		entry.ID, entry.StudentID, entry.MilestoneID,
		string(entry.FromStatus), string(entry.ToStatus),
		nullIfEmpty(entry.ActorID), entry.Notes, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (l *PostgresLedger) History(ctx context.Context, studentID, milestoneID string) ([]HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT id::text, student_id, milestone_id::text, from_status, to_status,
		        actor_id, notes, created_at
		 FROM progress_history
		 WHERE student_id = $1 AND milestone_id = $2::uuid
		 ORDER BY created_at ASC`,
		studentID, milestoneID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var actorID *string
		if err := rows.Scan(&e.ID, &e.StudentID, &e.MilestoneID,
			&e.FromStatus, &e.ToStatus, &actorID, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if actorID != nil {
			e.ActorID = *actorID
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func scanMilestone(row pgx.Row) (MilestoneProgress, error) {
	var rec MilestoneProgress
	if err := row.Scan(
		&rec.StudentID, &rec.MilestoneID, &rec.Status, &rec.ProgressPercentage,
		&rec.StartedAt, &rec.CompletedAt, &rec.VerifiedAt,
		&rec.VerificationNotes, &rec.VerifiedBy, &rec.UpdatedAt,
	); err != nil {
		return MilestoneProgress{}, fmt.Errorf("scan milestone progress: %w", err)
	}
	return rec, nil
}

func statusArg(s *Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
