package approval

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Mirror propagates an approval outcome onto the target document.
type Mirror struct {
	Approve func(ctx context.Context, documentID int64) error
	Cancel  func(ctx context.Context, documentID int64) error
}

// Registry maps each document kind to its status mirror. The table replaces
// per-call string dispatch: an unregistered kind fails at lookup, a missing
// kind fails at construction.
type Registry struct {
	mirrors map[DocumentKind]Mirror
}

// NewRegistry builds a registry and verifies every known kind is covered.
func NewRegistry(mirrors map[DocumentKind]Mirror) (*Registry, error) {
	for _, kind := range DocumentKinds {
		if _, ok := mirrors[kind]; !ok {
			return nil, fmt.Errorf("approval: no mirror for %s: %w", kind, ErrUnknownKind)
		}
	}
	return &Registry{mirrors: mirrors}, nil
}

func (r *Registry) lookup(kind DocumentKind) (Mirror, error) {
	mirror, ok := r.mirrors[kind]
	if !ok {
		return Mirror{}, fmt.Errorf("approval: %s: %w", kind, ErrUnknownKind)
	}
	return mirror, nil
}

// AuditPort records lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TxRepository exposes the transactional approval operations.
type TxRepository interface {
	GetRequestForUpdate(ctx context.Context, id int64) (Request, error)
	FindPendingByDocument(ctx context.Context, kind DocumentKind, documentID int64) (int64, error)
	InsertRequest(ctx context.Context, req Request) (int64, error)
	SetRequestStatus(ctx context.Context, id int64, status Status) error
	InsertStep(ctx context.Context, step Step) error
}

// Service runs the approval state machine.
type Service struct {
	pool     *pgxpool.Pool
	repo     *Repository
	registry *Registry
	audit    AuditPort
	now      func() time.Time
}

// NewService constructs the approval service.
func NewService(pool *pgxpool.Pool, repo *Repository, registry *Registry, audit AuditPort) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		registry: registry,
		audit:    audit,
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Submit opens a pending request for the document. One pending request per
// document at a time.
func (s *Service) Submit(ctx context.Context, kind DocumentKind, documentID, actorID int64) (Request, error) {
	if _, err := s.registry.lookup(kind); err != nil {
		return Request{}, err
	}

	req := Request{
		DocumentKind: kind,
		DocumentID:   documentID,
		Status:       StatusPending,
		RequestedBy:  actorID,
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		if _, err := repo.FindPendingByDocument(ctx, kind, documentID); err == nil {
			return ErrDuplicateRequest
		}
		var err error
		req.ID, err = repo.InsertRequest(ctx, req)
		if err != nil {
			return err
		}
		return repo.InsertStep(ctx, Step{
			RequestID: req.ID,
			ActorID:   actorID,
			Action:    StatusPending,
			At:        s.now().UTC(),
		})
	})
	if err != nil {
		return Request{}, err
	}
	s.record(ctx, actorID, "approval.submitted", req.ID)
	return req, nil
}

// Approve settles the request and mirrors the document to Approved.
func (s *Service) Approve(ctx context.Context, id, actorID int64, note string) (Request, error) {
	return s.settle(ctx, id, actorID, note, StatusApproved)
}

// Reject settles the request and mirrors the document to Cancelled, so a
// rejected document cannot slip through to posting unchanged.
func (s *Service) Reject(ctx context.Context, id, actorID int64, note string) (Request, error) {
	return s.settle(ctx, id, actorID, note, StatusRejected)
}

// Cancel withdraws the request and mirrors the document to Cancelled.
func (s *Service) Cancel(ctx context.Context, id, actorID int64, note string) (Request, error) {
	return s.settle(ctx, id, actorID, note, StatusCancelled)
}

func (s *Service) settle(ctx context.Context, id, actorID int64, note string, outcome Status) (Request, error) {
	var req Request
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := NewPgTxRepository(tx)
		var err error
		req, err = s.settleTx(ctx, repo, id, actorID, note, outcome)
		return err
	})
	if err != nil {
		return Request{}, err
	}

	mirror, err := s.registry.lookup(req.DocumentKind)
	if err != nil {
		return Request{}, err
	}
	if outcome == StatusApproved {
		err = mirror.Approve(ctx, req.DocumentID)
	} else {
		err = mirror.Cancel(ctx, req.DocumentID)
	}
	if err != nil {
		return Request{}, err
	}

	s.record(ctx, actorID, "approval."+string(outcome), id)
	return req, nil
}

func (s *Service) settleTx(ctx context.Context, repo TxRepository, id, actorID int64, note string, outcome Status) (Request, error) {
	req, err := repo.GetRequestForUpdate(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrTerminalState
	}
	if _, err := s.registry.lookup(req.DocumentKind); err != nil {
		return Request{}, err
	}

	if err := repo.SetRequestStatus(ctx, id, outcome); err != nil {
		return Request{}, err
	}
	step := Step{
		RequestID: id,
		ActorID:   actorID,
		Action:    outcome,
		Note:      note,
		At:        s.now().UTC(),
	}
	if err := repo.InsertStep(ctx, step); err != nil {
		return Request{}, err
	}
	req.Status = outcome
	req.Steps = append(req.Steps, step)
	return req, nil
}

// Get returns a request with steps.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// List returns requests newest first.
func (s *Service) List(ctx context.Context, page shared.Pagination) ([]Request, error) {
	return s.repo.ListRequests(ctx, page)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, requestID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "APPROVAL_REQUEST",
		EntityID: strconv.FormatInt(requestID, 10),
	})
}
