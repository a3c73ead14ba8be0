package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bollette/internal/core"
)

// memStore is an in-memory implementation of every storage port, mirroring
// the SQLite upsert contracts so service behavior can be tested without a
// database.
type memStore struct {
	templates map[int64]core.BillTemplate
	rules     map[int64]core.SkipRule
	instances map[int64]core.BillInstance
	payments  map[int64]core.FounderPayment
	founders  []core.Founder

	nextInstanceID int64
	nextPaymentID  int64
}

func newMemStore() *memStore {
	return &memStore{
		templates: make(map[int64]core.BillTemplate),
		rules:     make(map[int64]core.SkipRule),
		instances: make(map[int64]core.BillInstance),
		payments:  make(map[int64]core.FounderPayment),
	}
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func (s *memStore) ActiveFounders(ctx context.Context) ([]core.Founder, error) {
	return s.founders, nil
}

func (s *memStore) ActiveTemplates(ctx context.Context) ([]core.BillTemplate, error) {
	var out []core.BillTemplate
	for _, t := range s.templates {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) InsertInstance(ctx context.Context, i core.BillInstance) (core.BillInstance, bool, error) {
	if i.TemplateID != 0 {
		for _, existing := range s.instances {
			if existing.TemplateID == i.TemplateID && existing.Period == i.Period {
				return existing, false, nil
			}
		}
	}
	s.nextInstanceID++
	i.ID = s.nextInstanceID
	s.instances[i.ID] = i
	return i, true, nil
}

func (s *memStore) InstanceByTemplatePeriod(ctx context.Context, templateID int64, period core.Period) (core.BillInstance, bool, error) {
	for _, inst := range s.instances {
		if inst.TemplateID == templateID && inst.Period == period {
			return inst, true, nil
		}
	}
	return core.BillInstance{}, false, nil
}

func (s *memStore) UpsertFounderPayment(ctx context.Context, p core.FounderPayment) error {
	for id, existing := range s.payments {
		if existing.BillInstanceID == p.BillInstanceID && existing.UserID == p.UserID {
			existing.Amount = p.Amount
			s.payments[id] = existing
			return nil
		}
	}
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	s.payments[p.ID] = p
	return nil
}

func (s *memStore) PaymentsByInstance(ctx context.Context, instanceID int64) ([]core.FounderPayment, error) {
	var out []core.FounderPayment
	for _, p := range s.payments {
		if p.BillInstanceID == instanceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memStore) MarkFounderPaymentPaid(ctx context.Context, paymentID int64, paidDate time.Time) (core.FounderPayment, error) {
	p, ok := s.payments[paymentID]
	if !ok {
		return core.FounderPayment{}, fmt.Errorf("founder payment %d not found", paymentID)
	}
	p.Status = core.PaymentPaid
	p.PaidDate = paidDate
	s.payments[paymentID] = p
	return p, nil
}

func (s *memStore) MarkInstancePaid(ctx context.Context, instanceID int64, paidDate time.Time, paidVia string) error {
	inst, ok := s.instances[instanceID]
	if !ok {
		return fmt.Errorf("instance %d not found", instanceID)
	}
	inst.Status = core.StatusPaid
	inst.PaidDate = paidDate
	inst.PaidVia = paidVia
	s.instances[instanceID] = inst
	return nil
}

func (s *memStore) ActiveSkipRules(ctx context.Context) ([]core.SkipRule, error) {
	var out []core.SkipRule
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) IncrementSkipCount(ctx context.Context, ruleID int64) error {
	r, ok := s.rules[ruleID]
	if !ok {
		return fmt.Errorf("skip rule %d not found", ruleID)
	}
	r.SkipCount++
	s.rules[ruleID] = r
	return nil
}

func (s *memStore) SetInstanceAmount(ctx context.Context, instanceID int64, amount core.Money) error {
	inst, ok := s.instances[instanceID]
	if !ok {
		return fmt.Errorf("instance %d not found", instanceID)
	}
	inst.Amount = amount
	s.instances[instanceID] = inst
	return nil
}

func (s *memStore) InstanceCountsByTemplate(ctx context.Context) (map[int64]int64, error) {
	counts := make(map[int64]int64)
	for _, inst := range s.instances {
		if inst.TemplateID != 0 {
			counts[inst.TemplateID]++
		}
	}
	return counts, nil
}

func (s *memStore) OrphanInstances(ctx context.Context) ([]core.BillInstance, error) {
	var out []core.BillInstance
	for _, inst := range s.instances {
		if inst.TemplateID == 0 {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) TemplatePeriodsTaken(ctx context.Context) (map[string]struct{}, error) {
	taken := make(map[string]struct{})
	for _, inst := range s.instances {
		if inst.TemplateID != 0 {
			taken[core.TemplatePeriodKey(inst.TemplateID, inst.Period)] = struct{}{}
		}
	}
	return taken, nil
}

func (s *memStore) ApplyRuleMerge(ctx context.Context, survivorID int64, loserIDs []int64, addedSkips int64) error {
	survivor, ok := s.rules[survivorID]
	if !ok {
		return fmt.Errorf("skip rule %d not found", survivorID)
	}
	survivor.SkipCount += addedSkips
	s.rules[survivorID] = survivor
	for _, id := range loserIDs {
		delete(s.rules, id)
	}
	return nil
}

func (s *memStore) ApplyTemplateMerge(ctx context.Context, survivorID int64, loserIDs []int64) (int64, error) {
	losers := make(map[int64]bool, len(loserIDs))
	for _, id := range loserIDs {
		losers[id] = true
	}

	var migrated int64
	for id, inst := range s.instances {
		if !losers[inst.TemplateID] {
			continue
		}
		if _, taken, _ := s.InstanceByTemplatePeriod(ctx, survivorID, inst.Period); taken {
			continue
		}
		inst.TemplateID = survivorID
		s.instances[id] = inst
		migrated++
	}

	for _, id := range loserIDs {
		t, ok := s.templates[id]
		if !ok {
			return migrated, fmt.Errorf("template %d not found", id)
		}
		t.Active = false
		s.templates[id] = t
	}
	return migrated, nil
}

func (s *memStore) LinkInstanceToTemplate(ctx context.Context, instanceID, templateID int64) error {
	inst, ok := s.instances[instanceID]
	if !ok || inst.TemplateID != 0 {
		return fmt.Errorf("instance %d is not a linkable orphan", instanceID)
	}
	inst.TemplateID = templateID
	s.instances[instanceID] = inst
	return nil
}

func (s *memStore) InstancesByPeriod(ctx context.Context, period core.Period) ([]core.BillInstance, error) {
	var out []core.BillInstance
	for _, inst := range s.instances {
		if inst.Period == period {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) AllInstances(ctx context.Context) ([]core.BillInstance, error) {
	var out []core.BillInstance
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) PendingPaymentTotals(ctx context.Context) (map[int64]int64, error) {
	totals := make(map[int64]int64)
	for _, p := range s.payments {
		if p.Status == core.PaymentPending {
			totals[p.UserID] += p.Amount.Cents
		}
	}
	return totals, nil
}

func (s *memStore) addTemplate(t core.BillTemplate) core.BillTemplate {
	s.templates[t.ID] = t
	return t
}

func (s *memStore) addRule(r core.SkipRule) core.SkipRule {
	s.rules[r.ID] = r
	return r
}

func (s *memStore) addInstance(i core.BillInstance) core.BillInstance {
	if i.ID == 0 {
		s.nextInstanceID++
		i.ID = s.nextInstanceID
	} else if i.ID > s.nextInstanceID {
		s.nextInstanceID = i.ID
	}
	s.instances[i.ID] = i
	return i
}
