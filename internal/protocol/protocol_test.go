package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/donets/jtrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTicketJSON(id string) string {
	return `{"id":"` + id + `","locationId":"loc-1","createdAt":0,"updatedAt":0,
		"status":"New","priority":"normal","title":"Fix boiler","createdByUserId":"u-1"}`
}

func pushJSON(tickets string) string {
	return `{"locationId":"loc-1","lastPulledAt":100,"clientId":"dev-1",
		"changes":{"tickets":` + tickets + `}}`
}

func requireFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Fields
}

func TestDecodePullRequest_Valid(t *testing.T) {
	req, err := DecodePullRequest([]byte(`{"locationId":"loc-1","lastPulledAt":null}`))
	require.NoError(t, err)
	assert.Equal(t, "loc-1", req.LocationID)
	assert.Nil(t, req.LastPulledAt)
	assert.Nil(t, req.Limit)

	req, err = DecodePullRequest([]byte(`{"locationId":"loc-1","lastPulledAt":5,"limit":10,
		"cursor":{"snapshotAt":9,"ticketsOffset":10,"ticketCommentsOffset":0,"ticketAttachmentsOffset":0,"paymentRecordsOffset":3}}`))
	require.NoError(t, err)
	require.NotNil(t, req.Cursor)
	assert.Equal(t, int64(9), req.Cursor.SnapshotAt)
	assert.Equal(t, 3, req.Cursor.PaymentRecordsOffset)
	assert.Equal(t, 10, *req.Limit)
}

func TestDecodePullRequest_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing location", body: `{"lastPulledAt":1}`, field: "locationId"},
		{name: "float timestamp", body: `{"locationId":"l","lastPulledAt":1.5}`, field: "lastPulledAt"},
		{name: "negative timestamp", body: `{"locationId":"l","lastPulledAt":-1}`, field: "lastPulledAt"},
		{name: "zero limit", body: `{"locationId":"l","limit":0}`, field: "limit"},
		{name: "negative offset", body: `{"locationId":"l","cursor":{"snapshotAt":1,"ticketsOffset":-2}}`, field: "cursor.ticketsOffset"},
		{name: "float snapshot", body: `{"locationId":"l","cursor":{"snapshotAt":1.25}}`, field: "cursor.snapshotAt"},
		{name: "since after snapshot", body: `{"locationId":"l","lastPulledAt":10,"cursor":{"snapshotAt":5}}`, field: "lastPulledAt"},
		{name: "empty body", body: `  `, field: ""},
		{name: "malformed", body: `{"locationId":`, field: ""},
		{name: "string timestamp", body: `{"locationId":"l","lastPulledAt":"yesterday"}`, field: "lastPulledAt"},
		{name: "unknown field", body: `{"locationId":"l","lastPulledAt":1,"since":1}`, field: "since"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePullRequest([]byte(tt.body))
			fields := requireFields(t, err)
			assert.Contains(t, fields, tt.field, "fields: %v", fields)
		})
	}
}

func TestDecodePullRequest_IntegerReason(t *testing.T) {
	_, err := DecodePullRequest([]byte(`{"locationId":"l","lastPulledAt":17.2}`))
	fields := requireFields(t, err)
	assert.Equal(t, "must be an integer", fields["lastPulledAt"])
}

func TestDecodePushRequest_UnknownEntityField(t *testing.T) {
	body := pushJSON(`{"created":[` + strings.Replace(validTicketJSON("t-1"), `"title"`, `"_status":"created","title"`, 1) + `]}`)
	_, err := DecodePushRequest([]byte(body))
	fields := requireFields(t, err)
	assert.Equal(t, "unknown field", fields["_status"])
}

func TestDecodePushRequest_Valid(t *testing.T) {
	req, err := DecodePushRequest([]byte(pushJSON(`{"created":[` + validTicketJSON("t-1") + `],"updated":[],"deleted":["t-2"]}`)))
	require.NoError(t, err)
	require.Len(t, req.Changes.Tickets.Created, 1)
	assert.Equal(t, domain.StatusNew, req.Changes.Tickets.Created[0].Status)
	assert.Equal(t, "loc-1", req.Changes.Tickets.Created[0].LocationID)
	assert.Equal(t, []string{"t-2"}, req.Changes.Tickets.Deleted)

	// Absent families are normalized to empty lists.
	assert.NotNil(t, req.Changes.PaymentRecords.Created)
	assert.NotNil(t, req.Changes.TicketComments.Deleted)
}

func TestDecodePushRequest_EntityErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "empty entity id",
			body:  pushJSON(`{"created":[` + validTicketJSON("") + `]}`),
			field: "changes.tickets.created[0].id",
		},
		{
			name:  "unknown status",
			body:  pushJSON(`{"updated":[` + strings.Replace(validTicketJSON("t-1"), `"New"`, `"Lost"`, 1) + `]}`),
			field: "changes.tickets.updated[0].status",
		},
		{
			name:  "empty deleted id",
			body:  pushJSON(`{"deleted":[""]}`),
			field: "changes.tickets.deleted[0]",
		},
		{
			name:  "null entity",
			body:  pushJSON(`{"created":[null]}`),
			field: "changes.tickets.created[0]",
		},
		{
			name:  "id in two lists",
			body:  pushJSON(`{"created":[` + validTicketJSON("t-1") + `],"deleted":["t-1"]}`),
			field: "changes.tickets.deleted[0]",
		},
		{
			name: "schedule ends before start",
			body: pushJSON(`{"created":[` + strings.Replace(validTicketJSON("t-1"), `"createdByUserId"`,
				`"scheduledStartAt":200,"scheduledEndAt":100,"createdByUserId"`, 1) + `]}`),
			field: "changes.tickets.created[0].scheduledEndAt",
		},
		{
			name:  "missing client id",
			body:  `{"locationId":"loc-1","changes":{}}`,
			field: "clientId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePushRequest([]byte(tt.body))
			fields := requireFields(t, err)
			assert.Contains(t, fields, tt.field, "fields: %v", fields)
		})
	}
}

func TestDecodePushRequest_FloatEntityTimestamp(t *testing.T) {
	body := pushJSON(`{"created":[` + strings.Replace(validTicketJSON("t-1"), `"updatedAt":0`, `"updatedAt":3.14`, 1) + `]}`)
	_, err := DecodePushRequest([]byte(body))
	fields := requireFields(t, err)

	var found bool
	for path, reason := range fields {
		if strings.HasSuffix(path, "updatedAt") {
			found = true
			assert.Equal(t, "must be an integer", reason)
		}
	}
	assert.True(t, found, "fields: %v", fields)
}

func TestPaymentRecordValidation(t *testing.T) {
	body := `{"locationId":"loc-1","clientId":"dev","changes":{"paymentRecords":{"created":[
		{"id":"p-1","locationId":"loc-1","createdAt":0,"updatedAt":0,"ticketId":"t-1",
		 "amountCents":-5,"currency":"usd","status":"maybe","method":"cash"}]}}}`
	_, err := DecodePushRequest([]byte(body))
	fields := requireFields(t, err)
	assert.Contains(t, fields, "changes.paymentRecords.created[0].amountCents")
	assert.Contains(t, fields, "changes.paymentRecords.created[0].currency")
	assert.Contains(t, fields, "changes.paymentRecords.created[0].status")
}

func TestValidationError_Error(t *testing.T) {
	ve := NewValidationError("b", "bad")
	ve.Add("a", "worse")
	ve.Add("a", "ignored")
	ve.Add("", "root")
	assert.Equal(t, "validation failed: body: root; a: worse; b: bad", ve.Error())
	assert.Equal(t, []string{"", "a", "b"}, ve.Paths())
}

func TestNewChanges_AllFamiliesPresent(t *testing.T) {
	c := NewChanges()
	b, err := json.Marshal(c)
	require.NoError(t, err)

	var m map[string]map[string][]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, f := range domain.Families {
		fam, ok := m[string(f)]
		require.True(t, ok, "family %s missing", f)
		for _, list := range []string{"created", "updated", "deleted"} {
			assert.NotNil(t, fam[list], "%s.%s must be []", f, list)
		}
	}
	assert.True(t, c.Empty())
}

func TestPlace_PartitionsByCreatedAt(t *testing.T) {
	since := int64(100)
	mk := func(id string, created, updated int64, deleted bool) *domain.Ticket {
		tk := &domain.Ticket{Syncable: domain.Syncable{ID: id, CreatedAt: created, UpdatedAt: updated}}
		if deleted {
			tk.MarkDeleted(updated)
		}
		return tk
	}

	var cs ChangeSet[*domain.Ticket]
	Place(&cs, mk("new", 150, 150, false), &since)
	Place(&cs, mk("old", 50, 150, false), &since)
	Place(&cs, mk("gone", 50, 150, true), &since)
	Place(&cs, mk("born-and-gone", 120, 150, true), &since)

	require.Len(t, cs.Created, 1)
	assert.Equal(t, "new", cs.Created[0].ID)
	require.Len(t, cs.Updated, 1)
	assert.Equal(t, "old", cs.Updated[0].ID)
	assert.Equal(t, []string{"gone", "born-and-gone"}, cs.Deleted)

	var full ChangeSet[*domain.Ticket]
	Place(&full, mk("old", 50, 150, false), nil)
	assert.Len(t, full.Created, 1)
}

func TestCursorToken_RoundTrip(t *testing.T) {
	c := &PullCursor{SnapshotAt: 1234, TicketsOffset: 5, PaymentRecordsOffset: 2}
	c.Advance(domain.FamilyTicketComments, 7)
	assert.Equal(t, 7, c.Offset(domain.FamilyTicketComments))

	got, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.Equal(t, c, got)

	none, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = DecodeCursor("%%%")
	requireFields(t, err)
}
