package protocol

import "encoding/json"

// RawEntity is a JSON-encoded entity of any family.
type RawEntity = json.RawMessage

// PullCursor freezes a paginated walk at SnapshotAt and tracks how many
// rows of each family were already delivered.
type PullCursor struct {
	SnapshotAt              int64 `json:"snapshotAt" validate:"min=0"`
	TicketsOffset           int   `json:"ticketsOffset" validate:"min=0"`
	TicketCommentsOffset    int   `json:"ticketCommentsOffset" validate:"min=0"`
	TicketAttachmentsOffset int   `json:"ticketAttachmentsOffset" validate:"min=0"`
	PaymentRecordsOffset    int   `json:"paymentRecordsOffset" validate:"min=0"`
}

// PullRequest asks for every change since LastPulledAt. A nil
// LastPulledAt is a full initial sync. Without Limit the whole change set
// is returned in one page.
type PullRequest struct {
	LocationID   string      `json:"locationId" validate:"required"`
	LastPulledAt *int64      `json:"lastPulledAt" validate:"omitempty,min=0"`
	Cursor       *PullCursor `json:"cursor,omitempty"`
	Limit        *int        `json:"limit,omitempty" validate:"omitempty,min=1"`
}

// PullResponse carries one page. Timestamp becomes the caller's next
// LastPulledAt once HasMore is false.
type PullResponse struct {
	Changes   Changes     `json:"changes"`
	Timestamp int64       `json:"timestamp"`
	Cursor    *PullCursor `json:"cursor,omitempty"`
	HasMore   bool        `json:"hasMore"`
}

// PushRequest uploads locally queued changes.
type PushRequest struct {
	LocationID   string  `json:"locationId" validate:"required"`
	LastPulledAt *int64  `json:"lastPulledAt" validate:"omitempty,min=0"`
	Changes      Changes `json:"changes"`
	ClientID     string  `json:"clientId" validate:"required,max=128"`
}

// PushResponse enumerates accepted and rejected entities. Conflicts lists
// applied entities that overwrote server state newer than LastPulledAt.
type PushResponse struct {
	OK           bool         `json:"ok"`
	NewTimestamp int64        `json:"newTimestamp"`
	Applied      []EntityRef  `json:"applied"`
	Rejected     []Rejection  `json:"rejected"`
	Conflicts    []EntityRef  `json:"conflicts"`
	Uploads      []UploadTask `json:"uploads"`
}

// Normalize replaces nil lists with empty ones.
func (r *PushResponse) Normalize() {
	if r.Applied == nil {
		r.Applied = []EntityRef{}
	}
	if r.Rejected == nil {
		r.Rejected = []Rejection{}
	}
	if r.Conflicts == nil {
		r.Conflicts = []EntityRef{}
	}
	if r.Uploads == nil {
		r.Uploads = []UploadTask{}
	}
}

// AttachmentURLRequest asks for a presigned download URL.
type AttachmentURLRequest struct {
	LocationID   string `json:"locationId" validate:"required"`
	AttachmentID string `json:"attachmentId" validate:"required"`
}

type AttachmentURLResponse struct {
	URL string `json:"url"`
}

// PingResponse answers the connectivity probe.
type PingResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"time"`
}
