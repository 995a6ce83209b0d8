package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/psds-microservice/ticket-webhook/internal/errs"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQuery stores tickets with streaming inserts and reads them back with a
// parameterised query.
type BigQuery struct {
	client *bigquery.Client
	tables map[model.Channel]TableRef
	log    *zap.Logger
}

// NewBigQuery creates the client. Every table must be fully addressed.
func NewBigQuery(ctx context.Context, projectID string, tables map[model.Channel]TableRef, log *zap.Logger, opts ...option.ClientOption) (*BigQuery, error) {
	if projectID == "" {
		return nil, errors.New("bigquery: project id is empty")
	}
	for ch, ref := range tables {
		if !ref.valid() {
			return nil, fmt.Errorf("bigquery: table for channel %s is incomplete (%s)", ch, ref)
		}
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: new client: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &BigQuery{client: client, tables: tables, log: log}, nil
}

func (b *BigQuery) table(ch model.Channel) (TableRef, error) {
	ref, ok := b.tables[ch]
	if !ok {
		return TableRef{}, fmt.Errorf("bigquery: no table for channel %s: %w", ch, errs.ErrStoreUnavailable)
	}
	return ref, nil
}

func (b *BigQuery) Insert(ctx context.Context, ch model.Channel, t *model.Ticket) error {
	ref, err := b.table(ch)
	if err != nil {
		return err
	}
	ins := b.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table).Inserter()
	if err := ins.Put(ctx, ticketRow{ticket: t, withPhone: ch.StoresPhone()}); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			return newInsertError(ref.String(), multi)
		}
		return fmt.Errorf("bigquery insert into %s: %w", ref, err)
	}
	b.log.Info("ticket inserted", zap.String("table", ref.String()), zap.String("ticket_id", t.TicketID))
	return nil
}

func (b *BigQuery) GetByID(ctx context.Context, ch model.Channel, ticketID string) (*model.TicketStatusView, error) {
	ref, err := b.table(ch)
	if err != nil {
		return nil, err
	}
	q := b.client.Query(statusQuery(ref))
	q.Parameters = []bigquery.QueryParameter{{Name: "ticket_id", Value: ticketID}}
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery query %s: %w", ref, err)
	}
	var row []bigquery.Value
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, errs.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bigquery read %s: %w", ref, err)
	}
	if len(row) < 3 {
		return nil, fmt.Errorf("bigquery read %s: expected 3 columns, got %d", ref, len(row))
	}
	return &model.TicketStatusView{
		TicketID:  ticketID,
		Status:    valueString(row[0]),
		CreatedAt: valueString(row[1]),
		Issue:     valueString(row[2]),
	}, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

func statusQuery(ref TableRef) string {
	return fmt.Sprintf("SELECT status, created_at, issue FROM `%s` WHERE ticket_id = @ticket_id LIMIT 1", ref)
}

// ticketRow saves a ticket as a BigQuery row. The voice table has no
// phone_number column, so the field is only sent when the channel has one.
// The ticket id is used as the insert id.
type ticketRow struct {
	ticket    *model.Ticket
	withPhone bool
}

func (r ticketRow) Save() (map[string]bigquery.Value, string, error) {
	t := r.ticket
	row := map[string]bigquery.Value{
		"ticket_id":           t.TicketID,
		"created_at":          t.CreatedAtString(),
		"issue":               t.Issue,
		"status":              string(t.Status),
		"name":                t.Name,
		"email_address":       t.EmailAddress,
		"ticket_history_file": t.TicketHistoryFile,
	}
	if r.withPhone {
		row["phone_number"] = t.PhoneNumber
	}
	return row, t.TicketID, nil
}

func newInsertError(table string, multi bigquery.PutMultiError) *InsertError {
	e := &InsertError{Table: table}
	for _, rowErr := range multi {
		e.Rows = append(e.Rows, fmt.Sprintf("row %d: %v", rowErr.RowIndex, rowErr.Errors))
	}
	return e
}

// valueString renders a column value the way it should appear in a reply.
func valueString(v bigquery.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(model.CreatedAtLayout)
	default:
		return fmt.Sprint(x)
	}
}
