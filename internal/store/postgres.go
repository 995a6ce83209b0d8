package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psds-microservice/ticket-webhook/internal/errs"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"gorm.io/gorm"
)

// Postgres stores tickets in PostgreSQL through gorm, one table per channel.
// Tables are created by operators; this service never migrates them.
type Postgres struct {
	db     *gorm.DB
	tables map[model.Channel]string
}

func NewPostgres(db *gorm.DB, tables map[model.Channel]string) *Postgres {
	return &Postgres{db: db, tables: tables}
}

func (p *Postgres) table(ch model.Channel) (string, error) {
	name, ok := p.tables[ch]
	if !ok || name == "" {
		return "", fmt.Errorf("postgres: no table for channel %s: %w", ch, errs.ErrStoreUnavailable)
	}
	return name, nil
}

func (p *Postgres) Insert(ctx context.Context, ch model.Channel, t *model.Ticket) error {
	table, err := p.table(ch)
	if err != nil {
		return err
	}
	if err := p.insertQuery(ctx, ch, table).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &InsertError{Table: table, Rows: []string{err.Error()}}
		}
		return fmt.Errorf("postgres insert into %s: %w", table, err)
	}
	return nil
}

func (p *Postgres) insertQuery(ctx context.Context, ch model.Channel, table string) *gorm.DB {
	tx := p.db.WithContext(ctx).Table(table)
	if !ch.StoresPhone() {
		tx = tx.Omit("phone_number")
	}
	return tx
}

type statusRow struct {
	Status    string
	CreatedAt time.Time
	Issue     string
}

func (p *Postgres) GetByID(ctx context.Context, ch model.Channel, ticketID string) (*model.TicketStatusView, error) {
	table, err := p.table(ch)
	if err != nil {
		return nil, err
	}
	var row statusRow
	if err := p.statusQuery(ctx, table, ticketID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, fmt.Errorf("postgres query %s: %w", table, err)
	}
	return &model.TicketStatusView{
		TicketID:  ticketID,
		Status:    row.Status,
		CreatedAt: row.CreatedAt.UTC().Format(model.CreatedAtLayout),
		Issue:     row.Issue,
	}, nil
}

func (p *Postgres) statusQuery(ctx context.Context, table, ticketID string) *gorm.DB {
	return p.db.WithContext(ctx).Table(table).
		Select("status", "created_at", "issue").
		Where("ticket_id = ?", ticketID)
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
