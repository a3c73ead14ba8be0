package services

import (
	"testing"
	"time"

	"bollette/internal/core"
)

func vendorRule(id, skips int64, pattern string, createdAt time.Time) core.SkipRule {
	return core.SkipRule{
		ID: id, RuleType: core.RuleVendor, VendorPattern: pattern,
		TransactionType: core.Both, Active: true,
		SkipCount: skips, CreatedAt: createdAt,
	}
}

func TestPlanRuleMergesGroupsDuplicates(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rules := []core.SkipRule{
		vendorRule(1, 5, "Amazon", base),
		vendorRule(2, 12, "  amazon ", base.AddDate(0, 1, 0)),
		vendorRule(3, 12, "AMAZON", base.AddDate(0, -1, 0)),
		vendorRule(4, 99, "Netflix", base),
	}

	groups := PlanRuleMerges(rules)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}

	g := groups[0]
	// Highest skip count wins; among 2 and 3 (both 12) the older one does.
	if g.SurvivorID != 3 {
		t.Fatalf("expected survivor 3, got %d", g.SurvivorID)
	}
	if len(g.LoserIDs) != 2 {
		t.Fatalf("expected 2 losers, got %v", g.LoserIDs)
	}
	if g.MergedSkips != 17 {
		t.Fatalf("expected absorbed skips 12+5=17, got %d", g.MergedSkips)
	}
}

func TestPlanRuleMergesRoundsAmountToUnits(t *testing.T) {
	base := time.Now()
	a := core.SkipRule{ID: 1, RuleType: core.RuleVendorAmount, VendorPattern: "gym", Amount: core.CentsOf(999), TransactionType: core.Both, Active: true, CreatedAt: base}
	b := core.SkipRule{ID: 2, RuleType: core.RuleVendorAmount, VendorPattern: "gym", Amount: core.CentsOf(1003), TransactionType: core.Both, Active: true, CreatedAt: base}
	c := core.SkipRule{ID: 3, RuleType: core.RuleVendorAmount, VendorPattern: "gym", Amount: core.CentsOf(2500), TransactionType: core.Both, Active: true, CreatedAt: base}

	// 999 and 1003 both round to 10 units and merge; 2500 stays apart.
	groups := PlanRuleMerges([]core.SkipRule{a, b, c})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].LoserIDs) != 1 || groups[0].LoserIDs[0] != 2 {
		t.Fatalf("unexpected group: %+v", groups[0])
	}
}

func TestPlanRuleMergesKeepsDistinctKindsApart(t *testing.T) {
	base := time.Now()
	rules := []core.SkipRule{
		{ID: 1, RuleType: core.RuleVendor, VendorPattern: "acme", TransactionType: core.Both, Active: true, CreatedAt: base},
		{ID: 2, RuleType: core.RuleDescriptionPattern, DescriptionPattern: "acme", TransactionType: core.Both, Active: true, CreatedAt: base},
	}
	if groups := PlanRuleMerges(rules); len(groups) != 0 {
		t.Fatalf("different rule types must not merge: %+v", groups)
	}
}

func TestPlanTemplateMergesSurvivorByInstanceCount(t *testing.T) {
	now := time.Now()
	a := monthlyFixed(1, "Fastweb", 2990, now)
	b := monthlyFixed(2, "fastweb ", 2990, now)
	c := monthlyFixed(3, "Enel", 5000, now)

	groups := PlanTemplateMerges([]core.BillTemplate{a, b, c}, map[int64]int64{1: 2, 2: 7})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].SurvivorID != 2 {
		t.Fatalf("expected template with most instances to survive, got %d", groups[0].SurvivorID)
	}
	if len(groups[0].LoserIDs) != 1 || groups[0].LoserIDs[0] != 1 {
		t.Fatalf("unexpected losers: %v", groups[0].LoserIDs)
	}
}

func TestPlanTemplateMergesTieBreaksByLowestID(t *testing.T) {
	now := time.Now()
	a := monthlyFixed(4, "Acqua", 4500, now)
	b := monthlyFixed(9, "acqua", 4500, now)

	groups := PlanTemplateMerges([]core.BillTemplate{a, b}, nil)
	if len(groups) != 1 || groups[0].SurvivorID != 4 {
		t.Fatalf("expected lowest id to survive, got %+v", groups)
	}
}

func TestPlanTemplateMergesVendorVariants(t *testing.T) {
	now := time.Now()
	a := monthlyFixed(1, "netflix", 1299, now)
	b := monthlyFixed(2, "Netflix Inc", 1299, now)
	c := monthlyFixed(3, "Spotify", 1299, now)

	groups := PlanTemplateMerges([]core.BillTemplate{a, b, c}, map[int64]int64{1: 5, 2: 2})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %+v", groups)
	}
	if groups[0].SurvivorID != 1 {
		t.Fatalf("expected the 5-instance template to survive, got %d", groups[0].SurvivorID)
	}
	if len(groups[0].LoserIDs) != 1 || groups[0].LoserIDs[0] != 2 {
		t.Fatalf("unexpected losers: %v", groups[0].LoserIDs)
	}
}

func TestPlanTemplateMergesBridgedVariantsCollapse(t *testing.T) {
	now := time.Now()
	// "Gym" overlaps both longer names, which do not overlap each other.
	a := monthlyFixed(1, "Acme Gym", 3500, now)
	b := monthlyFixed(2, "Gym", 3500, now)
	c := monthlyFixed(3, "Gym Milano", 3500, now)

	groups := PlanTemplateMerges([]core.BillTemplate{a, b, c}, nil)
	if len(groups) != 1 {
		t.Fatalf("expected bridged cluster to merge as one group, got %+v", groups)
	}
	if groups[0].SurvivorID != 1 || len(groups[0].LoserIDs) != 2 {
		t.Fatalf("unexpected group: %+v", groups[0])
	}
}

func TestPlanTemplateMergesDifferentDueDayStaysApart(t *testing.T) {
	now := time.Now()
	a := monthlyFixed(1, "Fastweb", 2990, now)
	b := monthlyFixed(2, "Fastweb", 2990, now)
	b.DueDay = 20

	if groups := PlanTemplateMerges([]core.BillTemplate{a, b}, nil); len(groups) != 0 {
		t.Fatalf("different due days must not merge: %+v", groups)
	}
}

func TestPlanOrphanLinks(t *testing.T) {
	created := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	march := core.Period{Year: 2025, Month: time.March}

	fastweb := monthlyFixed(1, "Fastweb", 2990, created)
	enel := monthlyFixed(2, "Enel", 5000, created)

	orphan := core.BillInstance{ID: 100, Vendor: "FASTWEB", Period: march}

	plan := PlanOrphanLinks([]core.BillInstance{orphan}, []core.BillTemplate{fastweb, enel}, map[string]struct{}{})
	if len(plan.Links) != 1 || plan.Links[0].TemplateID != 1 {
		t.Fatalf("expected unique link to template 1, got %+v", plan)
	}
}

func TestPlanOrphanLinksAmbiguous(t *testing.T) {
	created := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	march := core.Period{Year: 2025, Month: time.March}

	a := monthlyFixed(1, "Fastweb Casa", 2990, created)
	b := monthlyFixed(2, "Fastweb Mobile", 990, created)
	orphan := core.BillInstance{ID: 100, Vendor: "fastweb", Period: march}

	plan := PlanOrphanLinks([]core.BillInstance{orphan}, []core.BillTemplate{a, b}, map[string]struct{}{})
	if len(plan.Links) != 0 {
		t.Fatalf("ambiguous orphan must not auto-link: %+v", plan.Links)
	}
	if len(plan.Ambiguous) != 1 || len(plan.Ambiguous[0].TemplateIDs) != 2 {
		t.Fatalf("expected ambiguity report with 2 candidates, got %+v", plan.Ambiguous)
	}
}

func TestPlanOrphanLinksRespectsTakenSlots(t *testing.T) {
	created := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	march := core.Period{Year: 2025, Month: time.March}

	fastweb := monthlyFixed(1, "Fastweb", 2990, created)
	orphan := core.BillInstance{ID: 100, Vendor: "fastweb", Period: march}
	taken := map[string]struct{}{core.TemplatePeriodKey(1, march): {}}

	plan := PlanOrphanLinks([]core.BillInstance{orphan}, []core.BillTemplate{fastweb}, taken)
	if len(plan.Links) != 0 || len(plan.Ambiguous) != 0 {
		t.Fatalf("occupied slot must block the link: %+v", plan)
	}
}

func TestPlanOrphanLinksRespectsRecurrence(t *testing.T) {
	// Annual template anchored in January cannot own a March orphan.
	created := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	annual := monthlyFixed(1, "Assicurazione", 120000, created)
	annual.Frequency = core.Annual

	orphan := core.BillInstance{ID: 100, Vendor: "assicurazione", Period: core.Period{Year: 2025, Month: time.March}}

	plan := PlanOrphanLinks([]core.BillInstance{orphan}, []core.BillTemplate{annual}, map[string]struct{}{})
	if len(plan.Links) != 0 {
		t.Fatalf("off-cycle orphan must not link: %+v", plan.Links)
	}
}
