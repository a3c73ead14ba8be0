// Package services implements the recurring-bill engine: instance
// generation, transaction matching, founder splitting and consolidation.
//
// Services depend on narrow storage ports plus an explicit Clock and
// FounderRegistry, so period windows and split order are deterministic under
// test.
package services

import (
	"context"
	"time"

	"bollette/internal/core"
)

// Clock supplies "now" to every service that reasons about periods.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FounderRegistry exposes the founder roster maintained by the external
// user-directory component.
type FounderRegistry interface {
	ActiveFounders(ctx context.Context) ([]core.Founder, error)
}

// GeneratorStore is the storage surface the Instance Generator writes
// through. InsertInstance must be an idempotent upsert keyed
// (template_id, period): the returned bool is false when the row already
// existed, which is the expected no-op path, not an error.
type GeneratorStore interface {
	ActiveTemplates(ctx context.Context) ([]core.BillTemplate, error)
	InsertInstance(ctx context.Context, instance core.BillInstance) (core.BillInstance, bool, error)
	InstanceByTemplatePeriod(ctx context.Context, templateID int64, period core.Period) (core.BillInstance, bool, error)
}

// LedgerStore persists founder payment rows, idempotent per
// (bill_instance_id, user_id).
type LedgerStore interface {
	UpsertFounderPayment(ctx context.Context, payment core.FounderPayment) error
	PaymentsByInstance(ctx context.Context, instanceID int64) ([]core.FounderPayment, error)
	MarkFounderPaymentPaid(ctx context.Context, paymentID int64, paidDate time.Time) (core.FounderPayment, error)
	MarkInstancePaid(ctx context.Context, instanceID int64, paidDate time.Time, paidVia string) error
}

// MatcherStore is the storage surface of the Transaction Matcher.
type MatcherStore interface {
	ActiveSkipRules(ctx context.Context) ([]core.SkipRule, error)
	IncrementSkipCount(ctx context.Context, ruleID int64) error
	ActiveTemplates(ctx context.Context) ([]core.BillTemplate, error)
	SetInstanceAmount(ctx context.Context, instanceID int64, amount core.Money) error
}

// ConsolidationStore is the storage surface of the Consolidation Service.
// The Apply methods run each merge group in its own transaction so a crash
// mid-merge cannot leave instances pointing at a deleted template.
type ConsolidationStore interface {
	ActiveSkipRules(ctx context.Context) ([]core.SkipRule, error)
	ActiveTemplates(ctx context.Context) ([]core.BillTemplate, error)
	InstanceCountsByTemplate(ctx context.Context) (map[int64]int64, error)
	OrphanInstances(ctx context.Context) ([]core.BillInstance, error)
	TemplatePeriodsTaken(ctx context.Context) (map[string]struct{}, error)
	ApplyRuleMerge(ctx context.Context, survivorID int64, loserIDs []int64, addedSkips int64) error
	ApplyTemplateMerge(ctx context.Context, survivorID int64, loserIDs []int64) (migrated int64, err error)
	LinkInstanceToTemplate(ctx context.Context, instanceID, templateID int64) error
}

// QueryStore backs the read projections exposed to the admin surface.
type QueryStore interface {
	InstancesByPeriod(ctx context.Context, period core.Period) ([]core.BillInstance, error)
	AllInstances(ctx context.Context) ([]core.BillInstance, error)
	PendingPaymentTotals(ctx context.Context) (map[int64]int64, error)
}
