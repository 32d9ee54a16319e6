package approval

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status tracks an approval request. Every status but Pending is terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// DocumentKind is the closed set of document types that can go through
// approval. Adding a kind means adding a mirror at wiring time, which the
// registry checks up front.
type DocumentKind string

const (
	DocumentKindSalesInvoice    DocumentKind = "SALES_INVOICE"
	DocumentKindPurchaseInvoice DocumentKind = "PURCHASE_INVOICE"
	DocumentKindPayrollRun      DocumentKind = "PAYROLL_RUN"
)

// DocumentKinds lists every kind the registry must cover.
var DocumentKinds = []DocumentKind{
	DocumentKindSalesInvoice,
	DocumentKindPurchaseInvoice,
	DocumentKindPayrollRun,
}

// Request asks for sign-off on one document.
type Request struct {
	ID           int64        `json:"id"`
	DocumentKind DocumentKind `json:"document_kind"`
	DocumentID   int64        `json:"document_id"`
	Status       Status       `json:"status"`
	RequestedBy  int64        `json:"requested_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Steps        []Step       `json:"steps"`
}

// Step is one recorded transition on a request.
type Step struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	ActorID   int64     `json:"actor_id"`
	Action    Status    `json:"action"`
	Note      string    `json:"note,omitempty"`
	At        time.Time `json:"at"`
}

var (
	// ErrRequestNotFound indicates a missing request.
	ErrRequestNotFound = fmt.Errorf("approval: request %w", shared.ErrNotFound)
	// ErrTerminalState indicates a transition on a settled request.
	ErrTerminalState = fmt.Errorf("approval: request already settled: %w", shared.ErrConflict)
	// ErrUnknownKind indicates a document kind with no registered mirror.
	ErrUnknownKind = fmt.Errorf("approval: unknown document kind: %w", shared.ErrConfiguration)
	// ErrDuplicateRequest indicates an open request already covering the
	// document.
	ErrDuplicateRequest = fmt.Errorf("approval: document already pending: %w", shared.ErrConflict)
)
