package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/donets/jtrack/internal/codec"
	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/server/repositories/checkpoints"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/repositories/memberships"
	"github.com/donets/jtrack/internal/server/repositories/receipts"
)

// MemoryStore keeps all state in process. Transactions are fully
// serialized: each one works on a copy of the state which replaces the
// committed state only when the transaction succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	memberships map[string]memberships.Membership
	checkpoints map[string]int64
	receipts    map[string]receipts.Receipt
	// rows holds CBOR snapshots so callers never share memory with the store.
	rows map[domain.Family]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	st := &memState{
		memberships: map[string]memberships.Membership{},
		checkpoints: map[string]int64{},
		receipts:    map[string]receipts.Receipt{},
		rows:        map[domain.Family]map[string][]byte{},
	}
	for _, f := range domain.Families {
		st.rows[f] = map[string][]byte{}
	}
	return &MemoryStore{state: st}
}

func (s *memState) clone() *memState {
	c := &memState{
		memberships: make(map[string]memberships.Membership, len(s.memberships)),
		checkpoints: make(map[string]int64, len(s.checkpoints)),
		receipts:    make(map[string]receipts.Receipt, len(s.receipts)),
		rows:        make(map[domain.Family]map[string][]byte, len(s.rows)),
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.checkpoints {
		c.checkpoints[k] = v
	}
	for k, v := range s.receipts {
		c.receipts[k] = v
	}
	for f, rows := range s.rows {
		m := make(map[string][]byte, len(rows))
		for id, b := range rows {
			m[id] = b
		}
		c.rows[f] = m
	}
	return c
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	work := s.state.clone()
	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Grant adds a membership outside of any transaction. It is used to seed
// the store from configuration.
func (s *MemoryStore) Grant(m memberships.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.memberships[m.UserID+"\x00"+m.LocationID] = m
}

type memTx struct {
	st *memState
}

func (t *memTx) Memberships() memberships.Repository { return memMemberships{t.st} }
func (t *memTx) Checkpoints() checkpoints.Repository { return memCheckpoints{t.st} }
func (t *memTx) Receipts() receipts.Repository       { return memReceipts{t.st} }

func (t *memTx) Tickets() entities.Repository[*domain.Ticket] {
	return &memEntities[*domain.Ticket]{rows: t.st.rows[domain.FamilyTickets], alloc: func() *domain.Ticket { return &domain.Ticket{} }}
}

func (t *memTx) Comments() entities.Repository[*domain.TicketComment] {
	return &memEntities[*domain.TicketComment]{rows: t.st.rows[domain.FamilyTicketComments], alloc: func() *domain.TicketComment { return &domain.TicketComment{} }}
}

func (t *memTx) Attachments() entities.Repository[*domain.TicketAttachment] {
	return &memEntities[*domain.TicketAttachment]{rows: t.st.rows[domain.FamilyTicketAttachments], alloc: func() *domain.TicketAttachment { return &domain.TicketAttachment{} }}
}

func (t *memTx) Payments() entities.Repository[*domain.PaymentRecord] {
	return &memEntities[*domain.PaymentRecord]{rows: t.st.rows[domain.FamilyPaymentRecords], alloc: func() *domain.PaymentRecord { return &domain.PaymentRecord{} }}
}

type memMemberships struct{ st *memState }

func (r memMemberships) Role(_ context.Context, userID, locationID string) (domain.Role, error) {
	m, ok := r.st.memberships[userID+"\x00"+locationID]
	if !ok || !m.Active {
		return "", common.ErrorNotFound
	}
	return m.Role, nil
}

func (r memMemberships) Grant(_ context.Context, m memberships.Membership) error {
	r.st.memberships[m.UserID+"\x00"+m.LocationID] = m
	return nil
}

type memCheckpoints struct{ st *memState }

func (r memCheckpoints) Lock(_ context.Context, locationID string) (int64, error) {
	ts, ok := r.st.checkpoints[locationID]
	if !ok {
		r.st.checkpoints[locationID] = 0
	}
	return ts, nil
}

func (r memCheckpoints) Read(_ context.Context, locationID string) (int64, error) {
	return r.st.checkpoints[locationID], nil
}

func (r memCheckpoints) Advance(_ context.Context, locationID string, ts int64) error {
	cur, ok := r.st.checkpoints[locationID]
	if !ok {
		return fmt.Errorf("checkpoint for location %s not locked", locationID)
	}
	if ts > cur {
		r.st.checkpoints[locationID] = ts
	}
	return nil
}

type memReceipts struct{ st *memState }

func receiptKey(locationID, clientID, hash string) string {
	return locationID + "\x00" + clientID + "\x00" + hash
}

func (r memReceipts) Find(_ context.Context, locationID, clientID, payloadHash string) (*receipts.Receipt, error) {
	rec, ok := r.st.receipts[receiptKey(locationID, clientID, payloadHash)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	rec.Outcome = append([]byte(nil), rec.Outcome...)
	return &rec, nil
}

func (r memReceipts) Save(_ context.Context, rec *receipts.Receipt) error {
	key := receiptKey(rec.LocationID, rec.ClientID, rec.PayloadHash)
	if _, ok := r.st.receipts[key]; ok {
		return nil
	}
	saved := *rec
	saved.Outcome = append([]byte(nil), rec.Outcome...)
	r.st.receipts[key] = saved
	return nil
}

type memEntities[E domain.Entity] struct {
	rows  map[string][]byte
	alloc func() E
}

func (r *memEntities[E]) decode(b []byte) (E, error) {
	e := r.alloc()
	if err := codec.Unmarshal(b, e); err != nil {
		var zero E
		return zero, fmt.Errorf("decode row: %w", err)
	}
	return e, nil
}

func (r *memEntities[E]) Get(_ context.Context, id string) (E, error) {
	b, ok := r.rows[id]
	if !ok {
		var zero E
		return zero, common.ErrorNotFound
	}
	return r.decode(b)
}

func (r *memEntities[E]) Upsert(_ context.Context, e E) error {
	meta := e.Meta()
	if b, ok := r.rows[meta.ID]; ok {
		cur, err := r.decode(b)
		if err != nil {
			return err
		}
		if cur.Meta().LocationID != meta.LocationID {
			return common.ErrForbidden
		}
	}
	b, err := codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	r.rows[meta.ID] = b
	return nil
}

func (r *memEntities[E]) Changed(_ context.Context, q entities.ChangeQuery) ([]E, error) {
	var out []E
	for _, b := range r.rows {
		e, err := r.decode(b)
		if err != nil {
			return nil, err
		}
		if matches(e.Meta(), q) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Meta(), out[j].Meta()
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})

	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(m *domain.Syncable, q entities.ChangeQuery) bool {
	if m.LocationID != q.LocationID || m.CreatedAt > q.SnapshotAt {
		return false
	}
	if q.Since == nil {
		return m.DeletedAt == nil || *m.DeletedAt > q.SnapshotAt
	}
	return m.UpdatedAt > *q.Since
}
