package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bollette/internal/core"
)

// Ledger maintains per-founder payment rows for bill instances and rolls
// instance status up from them.
type Ledger struct {
	store    LedgerStore
	founders FounderRegistry
	clock    Clock
}

func NewLedger(store LedgerStore, founders FounderRegistry, clock Clock) *Ledger {
	return &Ledger{
		store:    store,
		founders: founders,
		clock:    clock,
	}
}

// SyncSplits recomputes the equal split for an instance against the current
// founder roster and upserts the payment rows. Re-running updates amounts in
// place; rows are unique per (bill_instance_id, user_id). Instances without
// a known amount yet (VARIABLE templates before a transaction arrives) are
// left alone.
func (l *Ledger) SyncSplits(ctx context.Context, instance core.BillInstance) ([]core.FounderPayment, error) {
	if instance.Amount.IsZero() {
		return nil, nil
	}

	founders, err := l.founders.ActiveFounders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load founder roster: %w", err)
	}

	payments, err := core.Split(instance, founders)
	if err != nil {
		return nil, fmt.Errorf("split instance %d: %w", instance.ID, err)
	}

	for _, p := range payments {
		if err := l.store.UpsertFounderPayment(ctx, p); err != nil {
			return nil, fmt.Errorf("upsert payment for founder %d: %w", p.UserID, err)
		}
	}

	slog.InfoContext(ctx, "Founder split synced",
		"instance_id", instance.ID,
		"amount_cents", instance.Amount.Cents,
		"founders", len(payments))

	return payments, nil
}

// MarkFounderPaid marks one founder's payment as paid. Sibling payments are
// untouched; the instance itself becomes paid only once every founder
// payment is.
func (l *Ledger) MarkFounderPaid(ctx context.Context, paymentID int64) error {
	now := l.clock.Now()

	payment, err := l.store.MarkFounderPaymentPaid(ctx, paymentID, now)
	if err != nil {
		return fmt.Errorf("mark payment %d paid: %w", paymentID, err)
	}

	siblings, err := l.store.PaymentsByInstance(ctx, payment.BillInstanceID)
	if err != nil {
		return fmt.Errorf("load payments for instance %d: %w", payment.BillInstanceID, err)
	}

	for _, p := range siblings {
		if p.Status != core.PaymentPaid {
			return nil
		}
	}

	if err := l.store.MarkInstancePaid(ctx, payment.BillInstanceID, now, ""); err != nil {
		return fmt.Errorf("mark instance %d paid: %w", payment.BillInstanceID, err)
	}

	slog.InfoContext(ctx, "All founder payments settled, instance marked paid",
		"instance_id", payment.BillInstanceID)

	return nil
}

// MarkAllPaid is the administrative override: every founder payment and the
// instance itself become paid at once. The matcher uses it for auto-approved
// templates; admins use it for corrections.
func (l *Ledger) MarkAllPaid(ctx context.Context, instanceID int64, paidDate time.Time, paidVia string) error {
	payments, err := l.store.PaymentsByInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("load payments for instance %d: %w", instanceID, err)
	}

	for _, p := range payments {
		if p.Status == core.PaymentPaid {
			continue
		}
		if _, err := l.store.MarkFounderPaymentPaid(ctx, p.ID, paidDate); err != nil {
			return fmt.Errorf("mark payment %d paid: %w", p.ID, err)
		}
	}

	if err := l.store.MarkInstancePaid(ctx, instanceID, paidDate, paidVia); err != nil {
		return fmt.Errorf("mark instance %d paid: %w", instanceID, err)
	}

	return nil
}
