package domain

// Family names one independently syncable entity collection. The values
// double as the JSON keys of a change set.
type Family string

const (
	FamilyTickets           Family = "tickets"
	FamilyTicketComments    Family = "ticketComments"
	FamilyTicketAttachments Family = "ticketAttachments"
	FamilyPaymentRecords    Family = "paymentRecords"
)

// Families is the fixed apply order: parents before children.
var Families = []Family{
	FamilyTickets,
	FamilyTicketComments,
	FamilyTicketAttachments,
	FamilyPaymentRecords,
}

func (f Family) Valid() bool {
	for _, v := range Families {
		if v == f {
			return true
		}
	}
	return false
}

// Syncable carries the fields every entity family shares. Timestamps are
// Unix milliseconds stamped by the server.
type Syncable struct {
	ID         string `json:"id" validate:"required"`
	LocationID string `json:"locationId" validate:"required"`
	CreatedAt  int64  `json:"createdAt" validate:"min=0"`
	UpdatedAt  int64  `json:"updatedAt" validate:"min=0"`
	DeletedAt  *int64 `json:"deletedAt,omitempty" validate:"omitempty,min=0"`
}

// Meta gives generic code access to the shared fields.
func (s *Syncable) Meta() *Syncable { return s }

// Deleted reports whether the soft-delete marker is set.
func (s *Syncable) Deleted() bool { return s.DeletedAt != nil }

// Touch stamps a write at ts. CreatedAt is set only on first write.
func (s *Syncable) Touch(ts int64) {
	if s.CreatedAt == 0 {
		s.CreatedAt = ts
	}
	s.UpdatedAt = ts
}

// MarkDeleted soft-deletes the entity at ts.
func (s *Syncable) MarkDeleted(ts int64) {
	s.DeletedAt = &ts
	s.UpdatedAt = ts
}

// Entity is implemented by pointers to every family type.
type Entity interface {
	Meta() *Syncable
}

// Child is an entity that hangs off a ticket.
type Child interface {
	Entity
	ParentTicketID() string
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ticket is a unit of field work.
type Ticket struct {
	Syncable
	Status           Status   `json:"status" validate:"required,ticket_status"`
	Priority         Priority `json:"priority" validate:"required,oneof=low normal high urgent"`
	Title            string   `json:"title" validate:"required,max=200"`
	Description      string   `json:"description" validate:"max=10000"`
	ScheduledStartAt *int64   `json:"scheduledStartAt,omitempty" validate:"omitempty,min=0"`
	ScheduledEndAt   *int64   `json:"scheduledEndAt,omitempty" validate:"omitempty,min=0"`
	AssignedToUserID string   `json:"assignedToUserId,omitempty"`
	CreatedByUserID  string   `json:"createdByUserId" validate:"required"`
}

type TicketComment struct {
	Syncable
	TicketID     string `json:"ticketId" validate:"required"`
	AuthorUserID string `json:"authorUserId" validate:"required"`
	Body         string `json:"body" validate:"required,max=10000"`
}

func (c *TicketComment) ParentTicketID() string { return c.TicketID }

type TicketAttachment struct {
	Syncable
	TicketID         string `json:"ticketId" validate:"required"`
	UploadedByUserID string `json:"uploadedByUserId" validate:"required"`
	FileName         string `json:"fileName" validate:"required,max=255"`
	ContentType      string `json:"contentType,omitempty"`
	SizeBytes        int64  `json:"sizeBytes" validate:"min=0"`
	StorageKey       string `json:"storageKey,omitempty"`
}

func (a *TicketAttachment) ParentTicketID() string { return a.TicketID }

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PaymentRecord struct {
	Syncable
	TicketID    string        `json:"ticketId" validate:"required"`
	AmountCents int64         `json:"amountCents" validate:"min=0"`
	Currency    string        `json:"currency" validate:"required,len=3,uppercase"`
	Status      PaymentStatus `json:"status" validate:"required,oneof=pending succeeded failed refunded"`
	Method      string        `json:"method" validate:"required,oneof=cash card transfer other"`
	Reference   string        `json:"reference,omitempty"`
}

func (p *PaymentRecord) ParentTicketID() string { return p.TicketID }
