package helpdesk

import "time"

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
)

// Ticket is owned by the ticket CRUD collaborator. BusinessID is the user id of
// the business account that owns the ticket; ClaimedByID is the staff member
// currently answering it.
type Ticket struct {
	ID          uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID  uint64       `gorm:"column:customer_id;not null;index" json:"customerId"`
	BusinessID  uint64       `gorm:"column:business_id;not null;index" json:"businessId"`
	ClaimedByID *uint64      `gorm:"column:claimed_by_id;index" json:"claimedById,omitempty"`
	Status      TicketStatus `gorm:"column:status;type:varchar(16);not null;default:'open';index" json:"status"`
	Subject     string       `gorm:"column:subject;not null;default:''" json:"subject"`
	ResolvedAt  *time.Time   `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Ticket) TableName() string { return "ticket" }

func (t *Ticket) Claimed() bool { return t.ClaimedByID != nil && *t.ClaimedByID != 0 }

func (t *Ticket) ClaimedBy(userID uint64) bool {
	return t.Claimed() && *t.ClaimedByID == userID
}

// BusinessEmployee links an employee user to a business account.
type BusinessEmployee struct {
	BusinessID uint64    `gorm:"column:business_id;primaryKey;autoIncrement:false" json:"businessId"`
	EmployeeID uint64    `gorm:"column:employee_id;primaryKey;autoIncrement:false;index" json:"employeeId"`
	IsActive   bool      `gorm:"column:is_active;not null" json:"isActive"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (BusinessEmployee) TableName() string { return "business_employee" }
