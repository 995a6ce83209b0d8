package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/psds-microservice/ticket-webhook/internal/errs"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func sampleTicket() *model.Ticket {
	return &model.Ticket{
		TicketID:     "ab12cd34",
		CreatedAt:    time.Date(2025, 3, 4, 5, 6, 7, 890000000, time.UTC),
		Issue:        "login fails",
		Status:       model.TicketStatusOpen,
		Name:         model.NotAvailable,
		EmailAddress: "a@b.com",
		PhoneNumber:  "+15550100",
	}
}

func TestTicketRowSave(t *testing.T) {
	row, insertID, err := ticketRow{ticket: sampleTicket()}.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if insertID != "ab12cd34" {
		t.Errorf("insertID = %q, want ticket id", insertID)
	}
	if row["created_at"] != "2025-03-04T05:06:07.890000" {
		t.Errorf("created_at = %v", row["created_at"])
	}
	if row["status"] != "Open" || row["ticket_history_file"] != "" {
		t.Errorf("row = %v", row)
	}
	if _, ok := row["phone_number"]; ok {
		t.Error("phone_number must not be sent to a table without the column")
	}

	row, _, _ = ticketRow{ticket: sampleTicket(), withPhone: true}.Save()
	if row["phone_number"] != "+15550100" {
		t.Errorf("phone_number = %v", row["phone_number"])
	}
}

func TestStatusQuery(t *testing.T) {
	q := statusQuery(TableRef{Project: "p", Dataset: "d", Table: "t"})
	want := "SELECT status, created_at, issue FROM `p.d.t` WHERE ticket_id = @ticket_id LIMIT 1"
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
}

func TestInsertErrorMatchesSentinel(t *testing.T) {
	multi := bigquery.PutMultiError{
		{InsertID: "x", RowIndex: 0, Errors: bigquery.MultiError{errors.New("no such field: phone")}},
	}
	err := error(newInsertError("p.d.t", multi))
	if !errors.Is(err, errs.ErrInsertRejected) {
		t.Fatal("InsertError should match ErrInsertRejected")
	}
	var ie *InsertError
	if !errors.As(err, &ie) || len(ie.Rows) != 1 {
		t.Fatalf("rows = %v", ie)
	}
	if !strings.Contains(err.Error(), "no such field: phone") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestValueString(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.UTC)
	cases := []struct {
		in   bigquery.Value
		want string
	}{
		{nil, ""},
		{"Open", "Open"},
		{ts, "2025-01-02T03:04:05.123456"},
		{ts.In(time.FixedZone("CET", 3600)), "2025-01-02T03:04:05.123456"},
		{int64(7), "7"},
	}
	for _, c := range cases {
		if got := valueString(c.in); got != c.want {
			t.Errorf("valueString(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

// Status reads render created_at the same way the insert path writes it.
func TestValueStringMatchesCreatedAt(t *testing.T) {
	tk := sampleTicket()
	if got, want := valueString(tk.CreatedAt), tk.CreatedAtString(); got != want {
		t.Errorf("valueString(created_at) = %q, want %q", got, want)
	}
}

func TestTableRefValid(t *testing.T) {
	if (TableRef{Project: "p", Dataset: "d"}).valid() {
		t.Error("ref without table should be invalid")
	}
	if got := (TableRef{"p", "d", "t"}).String(); got != "p.d.t" {
		t.Errorf("String() = %q", got)
	}
}

func dryRunPostgres(t *testing.T) *Postgres {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=u dbname=d sslmode=disable"), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return NewPostgres(db, map[model.Channel]string{
		model.ChannelVoice:    "tickets",
		model.ChannelWhatsApp: "tickets_wa",
	})
}

func TestPostgresInsertOmitsPhoneForVoice(t *testing.T) {
	p := dryRunPostgres(t)
	ctx := context.Background()

	voice := p.insertQuery(ctx, model.ChannelVoice, "tickets").Create(sampleTicket())
	sql := voice.Statement.SQL.String()
	if !strings.Contains(sql, `"tickets"`) {
		t.Errorf("voice insert targets wrong table: %s", sql)
	}
	if strings.Contains(sql, "phone_number") {
		t.Errorf("voice insert should omit phone_number: %s", sql)
	}

	wa := p.insertQuery(ctx, model.ChannelWhatsApp, "tickets_wa").Create(sampleTicket())
	if sql := wa.Statement.SQL.String(); !strings.Contains(sql, "phone_number") {
		t.Errorf("whatsapp insert should include phone_number: %s", sql)
	}
}

func TestPostgresStatusQuery(t *testing.T) {
	p := dryRunPostgres(t)
	var row statusRow
	tx := p.statusQuery(context.Background(), "tickets_wa", "ab12cd34").Take(&row)
	sql := tx.Statement.SQL.String()
	for _, want := range []string{`FROM "tickets_wa"`, "ticket_id = $1", "LIMIT $2"} {
		if !strings.Contains(sql, want) {
			t.Errorf("query %q missing %q", sql, want)
		}
	}
	if len(tx.Statement.Vars) != 2 || tx.Statement.Vars[0] != "ab12cd34" || tx.Statement.Vars[1] != 1 {
		t.Errorf("vars = %v", tx.Statement.Vars)
	}
}

func TestPostgresUnknownChannel(t *testing.T) {
	p := NewPostgres(nil, map[model.Channel]string{})
	err := p.Insert(context.Background(), model.ChannelVoice, sampleTicket())
	if !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}
