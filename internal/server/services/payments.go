package services

import (
	"context"

	"github.com/donets/jtrack/internal/domain"
)

// advancePaymentWorkflow applies the system transitions a payment
// implies: a payment on a Done ticket invoices it, and a succeeded
// payment settles an invoiced ticket.
func (a *applier) advancePaymentWorkflow(ctx context.Context, p *domain.PaymentRecord) error {
	tickets := a.tx.Tickets()
	t, ok, err := lookup(ctx, tickets, p.TicketID)
	if err != nil || !ok || t.Deleted() {
		return err
	}

	changed := false
	step := func(from, to domain.Status) {
		if t.Status != from {
			return
		}
		if domain.ValidateStatusTransition(from, to, a.role, domain.WithSystem()).Valid {
			t.Status = to
			changed = true
		}
	}
	step(domain.StatusDone, domain.StatusInvoiced)
	if p.Status == domain.PaymentSucceeded {
		step(domain.StatusInvoiced, domain.StatusPaid)
	}

	if !changed {
		return nil
	}
	t.UpdatedAt = a.commitTs
	return tickets.Upsert(ctx, t)
}
