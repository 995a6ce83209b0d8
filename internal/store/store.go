package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/psds-microservice/ticket-webhook/internal/errs"
	"github.com/psds-microservice/ticket-webhook/internal/model"
)

// Store is the ticket record store. Each channel has its own table.
type Store interface {
	// Insert writes one ticket. Row-level rejections are reported as *InsertError.
	Insert(ctx context.Context, ch model.Channel, t *model.Ticket) error
	// GetByID returns errs.ErrTicketNotFound when no row matches.
	GetByID(ctx context.Context, ch model.Channel, ticketID string) (*model.TicketStatusView, error)
	Close() error
}

// InsertError carries the per-row messages of a rejected insert.
type InsertError struct {
	Table string
	Rows  []string
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert into %s rejected: %s", e.Table, strings.Join(e.Rows, "; "))
}

func (e *InsertError) Unwrap() error { return errs.ErrInsertRejected }

// TableRef addresses a table by project, dataset and table id.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

func (r TableRef) String() string {
	return r.Project + "." + r.Dataset + "." + r.Table
}

func (r TableRef) valid() bool {
	return r.Project != "" && r.Dataset != "" && r.Table != ""
}
