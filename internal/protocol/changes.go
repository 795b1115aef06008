// Package protocol defines the pull/push wire contract shared by the
// server and the offline client, and validates inbound payloads before
// they reach the reconciliation engine.
package protocol

import "github.com/donets/jtrack/internal/domain"

// ChangeSet is the created/updated/deleted partition of one entity family.
// An id appears in at most one of the three lists.
type ChangeSet[E any] struct {
	Created []E      `json:"created" validate:"dive,required"`
	Updated []E      `json:"updated" validate:"dive,required"`
	Deleted []string `json:"deleted" validate:"dive,required"`
}

// Len counts every entry of the change set.
func (c *ChangeSet[E]) Len() int {
	return len(c.Created) + len(c.Updated) + len(c.Deleted)
}

func (c *ChangeSet[E]) normalize() {
	if c.Created == nil {
		c.Created = []E{}
	}
	if c.Updated == nil {
		c.Updated = []E{}
	}
	if c.Deleted == nil {
		c.Deleted = []string{}
	}
}

// Changes holds one change set per entity family. All four keys are
// always present on the wire.
type Changes struct {
	Tickets           ChangeSet[*domain.Ticket]           `json:"tickets"`
	TicketComments    ChangeSet[*domain.TicketComment]    `json:"ticketComments"`
	TicketAttachments ChangeSet[*domain.TicketAttachment] `json:"ticketAttachments"`
	PaymentRecords    ChangeSet[*domain.PaymentRecord]    `json:"paymentRecords"`
}

// NewChanges returns a Changes value with every list empty but non-nil.
func NewChanges() Changes {
	var c Changes
	c.Normalize()
	return c
}

// Normalize replaces nil lists with empty ones so JSON never carries null.
func (c *Changes) Normalize() {
	c.Tickets.normalize()
	c.TicketComments.normalize()
	c.TicketAttachments.normalize()
	c.PaymentRecords.normalize()
}

func (c *Changes) Len() int {
	return c.Tickets.Len() + c.TicketComments.Len() + c.TicketAttachments.Len() + c.PaymentRecords.Len()
}

func (c *Changes) Empty() bool { return c.Len() == 0 }

// EntityRef identifies one entity of one family.
type EntityRef struct {
	Family domain.Family `json:"family"`
	ID     string        `json:"id"`
}

// OutcomeKind classifies a per-entity rejection.
type OutcomeKind string

const (
	KindValidation    OutcomeKind = "validation"
	KindAuthorization OutcomeKind = "authorization"
	KindTransition    OutcomeKind = "transition"
)

// Rejection reports an entity the server refused. Current is the server's
// copy at rejection time, or null when the server has none; the client
// reverts its optimistic state to it.
type Rejection struct {
	EntityRef
	Kind    OutcomeKind `json:"kind"`
	Reason  string      `json:"reason"`
	Current RawEntity   `json:"current"`
}

// UploadTask hands the client a presigned URL for an attachment body.
type UploadTask struct {
	AttachmentID string `json:"attachmentId"`
	StorageKey   string `json:"storageKey"`
	URL          string `json:"url"`
}

// Place files e into the list a puller that last synced at since expects:
// deleted when soft-deleted, created when it did not exist at since,
// updated otherwise. createdAt, not updatedAt, decides created vs updated.
func Place[E domain.Entity](cs *ChangeSet[E], e E, since *int64) {
	m := e.Meta()
	switch {
	case m.Deleted():
		cs.Deleted = append(cs.Deleted, m.ID)
	case since == nil || m.CreatedAt > *since:
		cs.Created = append(cs.Created, e)
	default:
		cs.Updated = append(cs.Updated, e)
	}
}
