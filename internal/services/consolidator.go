package services

import (
	"context"
	"fmt"
	"log/slog"

	"bollette/internal/core"
)

const (
	ScopeRules Scope = "rules"
	ScopeBills Scope = "bills"
	ScopeAll   Scope = "all"
)

// Scope selects what a consolidation run touches.
type Scope string

// ConsolidationReport summarizes one run. A failed group is recorded and
// the run moves on; it never aborts the batch.
type ConsolidationReport struct {
	GroupsMerged      int               `json:"groupsMerged"`
	RulesDeleted      int               `json:"rulesDeleted"`
	BillsDeactivated  int               `json:"billsDeactivated"`
	InstancesMigrated int64             `json:"instancesMigrated"`
	OrphansLinked     int               `json:"orphansLinked"`
	Ambiguous         []AmbiguousOrphan `json:"ambiguousOrphans,omitempty"`
	Errors            []string          `json:"errors,omitempty"`
}

// Consolidator merges duplicate skip rules and templates and re-links
// orphan instances. Detection is pure (consolidation_plan.go); this type
// only applies plans, one storage transaction per group, so the service is
// safe to run repeatedly and to interrupt.
type Consolidator struct {
	store ConsolidationStore
}

func NewConsolidator(store ConsolidationStore) *Consolidator {
	return &Consolidator{store: store}
}

// Consolidate runs the selected scope. Bills scope covers both template
// merging and orphan linking.
func (c *Consolidator) Consolidate(ctx context.Context, scope Scope) (ConsolidationReport, error) {
	var report ConsolidationReport

	switch scope {
	case ScopeRules, ScopeBills, ScopeAll:
	default:
		return report, fmt.Errorf("unknown consolidation scope: %s", scope)
	}

	if scope == ScopeRules || scope == ScopeAll {
		c.consolidateRules(ctx, &report)
	}
	if scope == ScopeBills || scope == ScopeAll {
		c.consolidateTemplates(ctx, &report)
		c.linkOrphans(ctx, &report)
	}

	slog.InfoContext(ctx, "Consolidation complete",
		"scope", scope,
		"groups_merged", report.GroupsMerged,
		"rules_deleted", report.RulesDeleted,
		"bills_deactivated", report.BillsDeactivated,
		"instances_migrated", report.InstancesMigrated,
		"orphans_linked", report.OrphansLinked,
		"errors", len(report.Errors))

	return report, nil
}

// FixOrphans runs only the orphan-linking pass and reports how many
// instances were linked.
func (c *Consolidator) FixOrphans(ctx context.Context) (int, []AmbiguousOrphan, error) {
	var report ConsolidationReport
	c.linkOrphans(ctx, &report)
	if len(report.Errors) > 0 {
		return report.OrphansLinked, report.Ambiguous, fmt.Errorf("fix orphans: %s", report.Errors[0])
	}
	return report.OrphansLinked, report.Ambiguous, nil
}

func (c *Consolidator) consolidateRules(ctx context.Context, report *ConsolidationReport) {
	rules, err := c.store.ActiveSkipRules(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load skip rules: %v", err))
		return
	}

	for _, group := range PlanRuleMerges(rules) {
		if err := c.store.ApplyRuleMerge(ctx, group.SurvivorID, group.LoserIDs, group.MergedSkips); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("merge rule group %s: %v", group.Key, err))
			slog.ErrorContext(ctx, "Rule merge failed",
				"group", group.Key, "error", err)
			continue
		}
		report.GroupsMerged++
		report.RulesDeleted += len(group.LoserIDs)
		slog.InfoContext(ctx, "Merged duplicate skip rules",
			"group", group.Key,
			"survivor_id", group.SurvivorID,
			"deleted", len(group.LoserIDs),
			"skips_absorbed", group.MergedSkips)
	}
}

func (c *Consolidator) consolidateTemplates(ctx context.Context, report *ConsolidationReport) {
	templates, err := c.store.ActiveTemplates(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load templates: %v", err))
		return
	}
	counts, err := c.store.InstanceCountsByTemplate(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load instance counts: %v", err))
		return
	}

	for _, group := range PlanTemplateMerges(templates, counts) {
		migrated, err := c.store.ApplyTemplateMerge(ctx, group.SurvivorID, group.LoserIDs)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("merge template group %s: %v", group.Key, err))
			slog.ErrorContext(ctx, "Template merge failed",
				"group", group.Key, "error", err)
			continue
		}
		report.GroupsMerged++
		report.BillsDeactivated += len(group.LoserIDs)
		report.InstancesMigrated += migrated
		slog.InfoContext(ctx, "Merged duplicate templates",
			"group", group.Key,
			"survivor_id", group.SurvivorID,
			"deactivated", len(group.LoserIDs),
			"instances_migrated", migrated)
	}
}

func (c *Consolidator) linkOrphans(ctx context.Context, report *ConsolidationReport) {
	orphans, err := c.store.OrphanInstances(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load orphan instances: %v", err))
		return
	}
	if len(orphans) == 0 {
		return
	}
	templates, err := c.store.ActiveTemplates(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load templates: %v", err))
		return
	}
	taken, err := c.store.TemplatePeriodsTaken(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load template periods: %v", err))
		return
	}

	plan := PlanOrphanLinks(orphans, templates, taken)
	report.Ambiguous = append(report.Ambiguous, plan.Ambiguous...)

	for _, link := range plan.Links {
		key := core.TemplatePeriodKey(link.TemplateID, periodOfLink(orphans, link.InstanceID))
		if _, claimed := taken[key]; claimed {
			// An earlier link in this run already claimed the slot; leave
			// this orphan for the next pass.
			slog.WarnContext(ctx, "Orphan slot already claimed, skipping",
				"instance_id", link.InstanceID,
				"template_id", link.TemplateID)
			continue
		}
		if err := c.store.LinkInstanceToTemplate(ctx, link.InstanceID, link.TemplateID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("link instance %d: %v", link.InstanceID, err))
			slog.ErrorContext(ctx, "Orphan link failed",
				"instance_id", link.InstanceID,
				"template_id", link.TemplateID,
				"error", err)
			continue
		}
		taken[key] = struct{}{}
		report.OrphansLinked++
		slog.InfoContext(ctx, "Linked orphan instance",
			"instance_id", link.InstanceID,
			"template_id", link.TemplateID)
	}

	for _, amb := range plan.Ambiguous {
		slog.WarnContext(ctx, "Ambiguous orphan left for review",
			"instance_id", amb.InstanceID,
			"candidates", len(amb.TemplateIDs))
	}
}

func periodOfLink(orphans []core.BillInstance, instanceID int64) core.Period {
	for _, o := range orphans {
		if o.ID == instanceID {
			return o.Period
		}
	}
	return core.Period{}
}
