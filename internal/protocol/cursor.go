package protocol

import (
	"encoding/base64"
	"encoding/json"

	"github.com/donets/jtrack/internal/domain"
)

// Offset returns the cursor position of family f.
func (c *PullCursor) Offset(f domain.Family) int {
	switch f {
	case domain.FamilyTickets:
		return c.TicketsOffset
	case domain.FamilyTicketComments:
		return c.TicketCommentsOffset
	case domain.FamilyTicketAttachments:
		return c.TicketAttachmentsOffset
	case domain.FamilyPaymentRecords:
		return c.PaymentRecordsOffset
	}
	return 0
}

// Advance moves the position of family f forward by n rows.
func (c *PullCursor) Advance(f domain.Family, n int) {
	switch f {
	case domain.FamilyTickets:
		c.TicketsOffset += n
	case domain.FamilyTicketComments:
		c.TicketCommentsOffset += n
	case domain.FamilyTicketAttachments:
		c.TicketAttachmentsOffset += n
	case domain.FamilyPaymentRecords:
		c.PaymentRecordsOffset += n
	}
}

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c *PullCursor) string {
	if c == nil {
		return ""
	}
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by EncodeCursor. The empty token
// yields a nil cursor.
func DecodeCursor(token string) (*PullCursor, error) {
	if token == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, NewValidationError("cursor", "is not a valid cursor token")
	}
	c := &PullCursor{}
	if err := decodeJSON(b, c); err != nil {
		return nil, NewValidationError("cursor", "is not a valid cursor token")
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}
