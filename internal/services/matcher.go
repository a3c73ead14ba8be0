package services

import (
	"context"
	"fmt"
	"log/slog"

	"bollette/internal/core"
)

// DefaultFixedMatchTolerance is how far a transaction amount may drift from
// a FIXED template's amount and still count as that bill.
const DefaultFixedMatchTolerance = 0.02

// Matcher decides what an incoming transaction is: a skip-rule hit
// (discard), a known or freshly generated bill instance, or unmatched
// (manual triage).
type Matcher struct {
	store          MatcherStore
	generator      *Generator
	ledger         *Ledger
	fixedTolerance float64
}

func NewMatcher(store MatcherStore, generator *Generator, ledger *Ledger, fixedTolerance float64) *Matcher {
	if fixedTolerance <= 0 {
		fixedTolerance = DefaultFixedMatchTolerance
	}
	return &Matcher{
		store:          store,
		generator:      generator,
		ledger:         ledger,
		fixedTolerance: fixedTolerance,
	}
}

// rulePrecedence is the skip-rule evaluation order; the first hit wins.
// ACCOUNT is unconditional, VENDOR_AMOUNT beats plain VENDOR only when its
// amount tolerance is satisfied, DESCRIPTION_PATTERN comes last.
var rulePrecedence = []core.RuleType{
	core.RuleAccount,
	core.RuleVendorAmount,
	core.RuleVendor,
	core.RuleDescriptionPattern,
}

// Match runs one transaction through the skip rules, then the active
// templates. A rule hit increments the rule's skip counter. A template hit
// resolves the instance for the transaction's period via the generator's
// idempotent lookup-or-create, fills VARIABLE amounts, re-syncs founder
// splits, and settles the instance when the template auto-approves.
func (m *Matcher) Match(ctx context.Context, tx core.Transaction) (core.MatchResult, error) {
	rules, err := m.store.ActiveSkipRules(ctx)
	if err != nil {
		return core.MatchResult{}, fmt.Errorf("load skip rules: %w", err)
	}

	for _, ruleType := range rulePrecedence {
		for _, rule := range rules {
			if rule.RuleType != ruleType || !rule.Matches(tx) {
				continue
			}
			if err := m.store.IncrementSkipCount(ctx, rule.ID); err != nil {
				slog.WarnContext(ctx, "Failed to increment skip count",
					"rule_id", rule.ID, "error", err)
			}
			slog.InfoContext(ctx, "Transaction skipped by rule",
				"tx_id", tx.ID,
				"rule_id", rule.ID,
				"rule_type", rule.RuleType)
			return core.Skipped(rule.ID), nil
		}
	}

	templates, err := m.store.ActiveTemplates(ctx)
	if err != nil {
		return core.MatchResult{}, fmt.Errorf("load templates: %w", err)
	}

	for _, tmpl := range templates {
		if !tmpl.MatchesTransaction(tx, m.fixedTolerance) {
			continue
		}
		return m.settle(ctx, tmpl, tx)
	}

	slog.InfoContext(ctx, "Transaction unmatched, queued for triage",
		"tx_id", tx.ID,
		"description", tx.Description,
		"amount_cents", tx.Amount.Cents)
	return core.Unmatched(), nil
}

func (m *Matcher) settle(ctx context.Context, tmpl core.BillTemplate, tx core.Transaction) (core.MatchResult, error) {
	period := core.PeriodOf(tx.Date)

	instance, created, err := m.generator.EnsureInstance(ctx, tmpl, period)
	if err != nil {
		return core.MatchResult{}, fmt.Errorf("resolve instance for template %d period %s: %w",
			tmpl.ID, period.String(), err)
	}

	if tmpl.AmountType == core.Variable {
		if err := m.store.SetInstanceAmount(ctx, instance.ID, tx.Amount); err != nil {
			return core.MatchResult{}, fmt.Errorf("set instance amount: %w", err)
		}
		instance.Amount = tx.Amount
		if _, err := m.ledger.SyncSplits(ctx, instance); err != nil {
			return core.MatchResult{}, fmt.Errorf("re-sync splits: %w", err)
		}
	}

	if tmpl.AutoApprove {
		if err := m.ledger.MarkAllPaid(ctx, instance.ID, tx.Date, tmpl.PaymentMethod); err != nil {
			return core.MatchResult{}, fmt.Errorf("auto-approve instance %d: %w", instance.ID, err)
		}
	}

	slog.InfoContext(ctx, "Transaction matched",
		"tx_id", tx.ID,
		"template_id", tmpl.ID,
		"instance_id", instance.ID,
		"period", period.String(),
		"instance_created", created,
		"auto_approved", tmpl.AutoApprove)

	if created {
		return core.MatchedTemplate(tmpl.ID, instance.ID, period), nil
	}
	return core.MatchedInstance(instance.ID, tmpl.ID, period), nil
}
