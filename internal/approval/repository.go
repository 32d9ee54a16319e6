package approval

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides pool-backed request reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PgTxRepository implements TxRepository over a pgx transaction.
type PgTxRepository struct {
	tx pgx.Tx
}

// NewPgTxRepository wraps a transaction.
func NewPgTxRepository(tx pgx.Tx) *PgTxRepository {
	return &PgTxRepository{tx: tx}
}

const requestColumns = `id, document_kind, document_id, status, requested_by, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var kind, status string
	err := row.Scan(&req.ID, &kind, &req.DocumentID, &status, &req.RequestedBy, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}
	req.DocumentKind = DocumentKind(kind)
	req.Status = Status(status)
	return req, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadSteps(ctx context.Context, q rowQuerier, requestID int64) ([]Step, error) {
	rows, err := q.Query(ctx, `SELECT id, request_id, actor_id, action, COALESCE(note,''), at
FROM approval_steps WHERE request_id=$1 ORDER BY id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Step
	for rows.Next() {
		var step Step
		var action string
		if err := rows.Scan(&step.ID, &step.RequestID, &step.ActorID, &action, &step.Note, &step.At); err != nil {
			return nil, err
		}
		step.Action = Status(action)
		out = append(out, step)
	}
	return out, rows.Err()
}

// GetRequestForUpdate implements TxRepository.
func (r *PgTxRepository) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Request{}, err
	}
	req.Steps, err = loadSteps(ctx, r.tx, id)
	return req, err
}

// FindPendingByDocument implements TxRepository.
func (r *PgTxRepository) FindPendingByDocument(ctx context.Context, kind DocumentKind, documentID int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM approval_requests WHERE document_kind=$1 AND document_id=$2 AND status=$3`,
		string(kind), documentID, string(StatusPending)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrRequestNotFound
		}
		return 0, err
	}
	return id, nil
}

// InsertRequest implements TxRepository.
func (r *PgTxRepository) InsertRequest(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO approval_requests
(document_kind, document_id, status, requested_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id`,
		string(req.DocumentKind), req.DocumentID, string(req.Status), req.RequestedBy).Scan(&id)
	return id, err
}

// SetRequestStatus implements TxRepository.
func (r *PgTxRepository) SetRequestStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE approval_requests SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return err
}

// InsertStep implements TxRepository.
func (r *PgTxRepository) InsertStep(ctx context.Context, step Step) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO approval_steps (request_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5)`,
		step.RequestID, step.ActorID, string(step.Action), step.Note, step.At)
	return err
}

// GetRequest returns a request with steps.
func (r *Repository) GetRequest(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1`, id))
	if err != nil {
		return Request{}, err
	}
	req.Steps, err = loadSteps(ctx, r.pool, id)
	return req, err
}

// ListRequests returns requests newest first.
func (r *Repository) ListRequests(ctx context.Context, page shared.Pagination) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM approval_requests ORDER BY id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
