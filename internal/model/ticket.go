package model

import "time"

type TicketStatus string

// TicketStatusOpen is the only status this service writes; other values are
// set by operators directly in the store.
const (
	TicketStatusOpen     TicketStatus = "Open"
	TicketStatusNotFound TicketStatus = "Not Found"
)

// NotAvailable is stored for every user field the agent did not collect.
const NotAvailable = "N/A"

// CreatedAtLayout is ISO-8601 without zone; values are always UTC.
const CreatedAtLayout = "2006-01-02T15:04:05.000000"

type Ticket struct {
	TicketID          string       `gorm:"column:ticket_id;type:varchar(64);index;not null" json:"ticket_id"`
	CreatedAt         time.Time    `gorm:"column:created_at;not null" json:"created_at"`
	Issue             string       `gorm:"column:issue;type:text" json:"issue"`
	Status            TicketStatus `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	Name              string       `gorm:"column:name;type:varchar(255)" json:"name"`
	EmailAddress      string       `gorm:"column:email_address;type:varchar(255)" json:"email_address"`
	PhoneNumber       string       `gorm:"column:phone_number;type:varchar(64)" json:"phone_number,omitempty"`
	TicketHistoryFile string       `gorm:"column:ticket_history_file;type:text" json:"ticket_history_file"`
}

// CreatedAtString renders CreatedAt the way it is persisted.
func (t *Ticket) CreatedAtString() string {
	return t.CreatedAt.UTC().Format(CreatedAtLayout)
}

// TicketStatusView is what a status lookup reads back.
type TicketStatusView struct {
	TicketID  string `json:"ticket_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	Issue     string `json:"issue"`
}
