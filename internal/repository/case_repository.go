package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/hitl-service/internal/domain"
)

// CaseFilter bounds case listing.
type CaseFilter struct {
	Status *domain.CaseStatus
	Limit  int
}

// CaseRepository encapsulates case persistence. The conditional
// transition methods are expressed as single guarded UPDATEs so racing
// callers cannot interleave a read-then-write.
type CaseRepository interface {
	Create(ctx context.Context, record *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	List(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
	// MarkOpenAgentTouch re-affirms open status only when the case is
	// still open. Reports whether the update applied; a no-op is not an
	// error.
	MarkOpenAgentTouch(ctx context.Context, id string) (bool, error)
	// TransitionToInProgress moves open -> in_progress and sets the
	// assignee, only when the case is still open. Returns the updated
	// case, or nil when the guard did not match.
	TransitionToInProgress(ctx context.Context, id, assigneeID string) (*domain.Case, error)
	// Resolve stamps resolved status and resolved_at unconditionally.
	Resolve(ctx context.Context, id string, at time.Time) (*domain.Case, error)
}

const caseColumns = `id, title, description, source, agent_id, status, priority, assignee_id, metadata, created_at, resolved_at`

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

func (r *caseRepository) Create(ctx context.Context, record *domain.Case) error {
	const query = `
        INSERT INTO cases (title, description, source, agent_id, status, priority, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		record.Title,
		record.Description,
		record.Source,
		record.AgentID,
		record.Status,
		record.Priority,
		record.Metadata,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE id=$1`, caseColumns)
	record, err := scanCase(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *caseRepository) List(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM cases`, caseColumns)
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` WHERE status=$1`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Case
	for rows.Next() {
		record, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

func (r *caseRepository) MarkOpenAgentTouch(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE cases SET status='open' WHERE id=$1 AND status='open'`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *caseRepository) TransitionToInProgress(ctx context.Context, id, assigneeID string) (*domain.Case, error) {
	query := fmt.Sprintf(`
        UPDATE cases SET status='in_progress', assignee_id=$2
        WHERE id=$1 AND status='open'
        RETURNING %s`, caseColumns)
	record, err := scanCase(r.pool.QueryRow(ctx, query, id, assigneeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *caseRepository) Resolve(ctx context.Context, id string, at time.Time) (*domain.Case, error) {
	query := fmt.Sprintf(`
        UPDATE cases SET status='resolved', resolved_at=$2
        WHERE id=$1
        RETURNING %s`, caseColumns)
	return scanCase(r.pool.QueryRow(ctx, query, id, at))
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var record domain.Case
	if err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Description,
		&record.Source,
		&record.AgentID,
		&record.Status,
		&record.Priority,
		&record.AssigneeID,
		&record.Metadata,
		&record.CreatedAt,
		&record.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}
