// Pure planning phase of the Consolidation Service. Nothing in this file
// touches storage: the planners take snapshots and return the merges and
// links to perform, so the detection logic is testable without side effects
// and never shares a codepath with the mutation phase.

package services

import (
	"sort"
	"strconv"
	"strings"

	"bollette/internal/core"
)

// RuleMergeGroup is one set of duplicate skip rules: the survivor keeps its
// row and absorbs the losers' skip counts so no match-history frequency is
// lost.
type RuleMergeGroup struct {
	Key         string
	SurvivorID  int64
	LoserIDs    []int64
	MergedSkips int64
}

// TemplateMergeGroup is one set of duplicate templates: losers are
// deactivated and their instances re-pointed at the survivor.
type TemplateMergeGroup struct {
	Key        string
	SurvivorID int64
	LoserIDs   []int64
}

// OrphanLink pairs an orphan instance with the unique template it belongs
// to.
type OrphanLink struct {
	InstanceID int64
	TemplateID int64
}

// AmbiguousOrphan reports an orphan with multiple candidate templates. It is
// surfaced for human review, never auto-resolved.
type AmbiguousOrphan struct {
	InstanceID  int64   `json:"instanceId"`
	TemplateIDs []int64 `json:"templateIds"`
}

// OrphanPlan is the outcome of orphan detection.
type OrphanPlan struct {
	Links     []OrphanLink
	Ambiguous []AmbiguousOrphan
}

// PlanRuleMerges groups active skip rules by (ruleType, normalized pattern,
// amount rounded to whole units) and picks a survivor per group: highest
// skip count, ties broken by oldest createdAt, then lowest id.
func PlanRuleMerges(rules []core.SkipRule) []RuleMergeGroup {
	byKey := make(map[string][]core.SkipRule)
	for _, r := range rules {
		if !r.Active {
			continue
		}
		key := ruleGroupKey(r)
		byKey[key] = append(byKey[key], r)
	}

	var groups []RuleMergeGroup
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if a.SkipCount != b.SkipCount {
				return a.SkipCount > b.SkipCount
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})

		group := RuleMergeGroup{Key: key, SurvivorID: members[0].ID}
		for _, loser := range members[1:] {
			group.LoserIDs = append(group.LoserIDs, loser.ID)
			group.MergedSkips += loser.SkipCount
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// PlanTemplateMerges groups active templates that share amount type, fixed
// amount and due day and whose vendor names overlap after normalization, so
// "netflix" and "Netflix Inc" land in the same group. The template with the
// most linked instances survives, ties broken by lowest id.
func PlanTemplateMerges(templates []core.BillTemplate, instanceCounts map[int64]int64) []TemplateMergeGroup {
	byBucket := make(map[string][]core.BillTemplate)
	for _, t := range templates {
		if !t.Active {
			continue
		}
		key := templateBucketKey(t)
		byBucket[key] = append(byBucket[key], t)
	}

	var groups []TemplateMergeGroup
	for bucket, members := range byBucket {
		for _, cluster := range clusterByVendor(members) {
			if len(cluster) < 2 {
				continue
			}
			sort.Slice(cluster, func(i, j int) bool {
				a, b := cluster[i], cluster[j]
				ca, cb := instanceCounts[a.ID], instanceCounts[b.ID]
				if ca != cb {
					return ca > cb
				}
				return a.ID < b.ID
			})

			group := TemplateMergeGroup{
				Key:        normalizePattern(cluster[0].Vendor) + "|" + bucket,
				SurvivorID: cluster[0].ID,
			}
			for _, loser := range cluster[1:] {
				group.LoserIDs = append(group.LoserIDs, loser.ID)
			}
			groups = append(groups, group)
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// clusterByVendor partitions one bucket transitively: a template joins a
// cluster when its vendor overlaps any member already in it, and a template
// overlapping two clusters folds them together.
func clusterByVendor(members []core.BillTemplate) [][]core.BillTemplate {
	sorted := make([]core.BillTemplate, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var clusters [][]core.BillTemplate
	for _, t := range sorted {
		joined := -1
		for i := 0; i < len(clusters); i++ {
			overlaps := false
			for _, member := range clusters[i] {
				if vendorsOverlap(t.Vendor, member.Vendor) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				continue
			}
			if joined == -1 {
				clusters[i] = append(clusters[i], t)
				joined = i
				continue
			}
			clusters[joined] = append(clusters[joined], clusters[i]...)
			clusters = append(clusters[:i], clusters[i+1:]...)
			i--
		}
		if joined == -1 {
			clusters = append(clusters, []core.BillTemplate{t})
		}
	}
	return clusters
}

// PlanOrphanLinks matches orphan instances against active templates by
// vendor substring within the orphan's period. A candidate must recur on
// that period and must not already own an instance there (linking would
// break the (template, period) uniqueness contract). A unique candidate
// becomes a link; multiple candidates are reported as ambiguous.
func PlanOrphanLinks(orphans []core.BillInstance, templates []core.BillTemplate, taken map[string]struct{}) OrphanPlan {
	var plan OrphanPlan

	for _, orphan := range orphans {
		var candidates []int64
		for _, tmpl := range templates {
			if !tmpl.Active || !vendorsOverlap(orphan.Vendor, tmpl.Vendor) {
				continue
			}
			checker, err := GetRecurrenceChecker(tmpl.Frequency)
			if err != nil || !checker.RecursOn(core.PeriodOf(tmpl.CreatedAt), orphan.Period) {
				continue
			}
			if _, exists := taken[core.TemplatePeriodKey(tmpl.ID, orphan.Period)]; exists {
				continue
			}
			candidates = append(candidates, tmpl.ID)
		}

		switch len(candidates) {
		case 0:
		case 1:
			plan.Links = append(plan.Links, OrphanLink{
				InstanceID: orphan.ID,
				TemplateID: candidates[0],
			})
		default:
			plan.Ambiguous = append(plan.Ambiguous, AmbiguousOrphan{
				InstanceID:  orphan.ID,
				TemplateIDs: candidates,
			})
		}
	}

	return plan
}

func ruleGroupKey(r core.SkipRule) string {
	pattern := r.VendorPattern
	switch r.RuleType {
	case core.RuleAccount:
		pattern = r.FinancialAccountID
	case core.RuleDescriptionPattern:
		pattern = r.DescriptionPattern
	}
	rounded := (r.Amount.Cents + 50) / 100
	return string(r.RuleType) + "|" + normalizePattern(pattern) + "|" + strconv.FormatInt(rounded, 10)
}

func templateBucketKey(t core.BillTemplate) string {
	return string(t.AmountType) + "|" +
		strconv.FormatInt(t.FixedAmount.Cents, 10) + "|" +
		strconv.Itoa(t.DueDay)
}

func normalizePattern(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func vendorsOverlap(a, b string) bool {
	a = normalizePattern(a)
	b = normalizePattern(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
