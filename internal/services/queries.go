package services

import (
	"context"
	"fmt"
	"time"

	"bollette/internal/cache"
	"bollette/internal/core"
)

// FounderBalance is one founder's outstanding (pending) share across all
// bill instances.
type FounderBalance struct {
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	Outstanding string `json:"outstanding"`
	Cents       int64  `json:"outstandingCents"`
}

// BillView is a bill instance as the admin surface sees it, with OVERDUE
// derived at read time.
type BillView struct {
	ID         int64           `json:"id"`
	TemplateID int64           `json:"templateId,omitempty"`
	Vendor     string          `json:"vendor"`
	VendorType string          `json:"vendorType,omitempty"`
	Amount     string          `json:"amount"`
	Period     string          `json:"period"`
	DueDate    string          `json:"dueDate"`
	Status     core.BillStatus `json:"status"`
	PaidDate   string          `json:"paidDate,omitempty"`
	PaidVia    string          `json:"paidVia,omitempty"`
}

// Queries serves the admin read projections: outstanding balance per
// founder and bill lists by period/status. Results are cached briefly since
// the admin dashboard polls them.
type Queries struct {
	store    QueryStore
	founders FounderRegistry
	clock    Clock

	balances *cache.LRUCache[[]FounderBalance]
	bills    *cache.LRUCache[[]BillView]
}

func NewQueries(store QueryStore, founders FounderRegistry, clock Clock) *Queries {
	return &Queries{
		store:    store,
		founders: founders,
		clock:    clock,
		balances: cache.NewLRUCache[[]FounderBalance](16, 30*time.Second),
		bills:    cache.NewLRUCache[[]BillView](128, 30*time.Second),
	}
}

// FounderBalances sums each founder's pending payment rows.
func (q *Queries) FounderBalances(ctx context.Context) ([]FounderBalance, error) {
	if cached, ok := q.balances.Get("all"); ok {
		return cached, nil
	}

	founders, err := q.founders.ActiveFounders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load founder roster: %w", err)
	}
	totals, err := q.store.PendingPaymentTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending totals: %w", err)
	}

	out := make([]FounderBalance, len(founders))
	for i, f := range founders {
		cents := totals[f.ID]
		out[i] = FounderBalance{
			UserID:      f.ID,
			Name:        f.Name,
			Outstanding: core.CentsOf(cents).String(),
			Cents:       cents,
		}
	}

	q.balances.Set("all", out)
	return out, nil
}

// Bills lists instances, optionally filtered by period and by effective
// status (pending, paid, overdue).
func (q *Queries) Bills(ctx context.Context, period string, status core.BillStatus) ([]BillView, error) {
	cacheKey := period + "|" + string(status)
	if cached, ok := q.bills.Get(cacheKey); ok {
		return cached, nil
	}

	var (
		instances []core.BillInstance
		err       error
	)
	if period != "" {
		p, perr := core.ParsePeriod(period)
		if perr != nil {
			return nil, perr
		}
		instances, err = q.store.InstancesByPeriod(ctx, p)
	} else {
		instances, err = q.store.AllInstances(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load instances: %w", err)
	}

	now := q.clock.Now()
	out := make([]BillView, 0, len(instances))
	for _, inst := range instances {
		effective := inst.EffectiveStatus(now)
		if status != "" && effective != status {
			continue
		}
		out = append(out, billView(inst, effective))
	}

	q.bills.Set(cacheKey, out)
	return out, nil
}

// Invalidate drops cached projections after a write.
func (q *Queries) Invalidate() {
	q.balances.Delete("all")
	q.bills.Purge()
}

func billView(inst core.BillInstance, effective core.BillStatus) BillView {
	v := BillView{
		ID:         inst.ID,
		TemplateID: inst.TemplateID,
		Vendor:     inst.Vendor,
		VendorType: inst.VendorType,
		Amount:     inst.Amount.String(),
		Period:     inst.Period.String(),
		DueDate:    inst.DueDate.Format("2006-01-02"),
		Status:     effective,
		PaidVia:    inst.PaidVia,
	}
	if !inst.PaidDate.IsZero() {
		v.PaidDate = inst.PaidDate.Format("2006-01-02")
	}
	return v
}
