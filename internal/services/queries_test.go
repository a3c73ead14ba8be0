package services

import (
	"context"
	"testing"
	"time"

	"bollette/internal/core"
)

func queriesHarness(now time.Time) (*memStore, *Queries) {
	store := newMemStore()
	store.founders = []core.Founder{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}}
	return store, NewQueries(store, store, fakeClock{now: now})
}

func TestFounderBalances(t *testing.T) {
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	store, queries := queriesHarness(now)

	store.payments[1] = core.FounderPayment{ID: 1, BillInstanceID: 1, UserID: 1, Amount: core.CentsOf(5000), Status: core.PaymentPending}
	store.payments[2] = core.FounderPayment{ID: 2, BillInstanceID: 2, UserID: 1, Amount: core.CentsOf(2500), Status: core.PaymentPending}
	store.payments[3] = core.FounderPayment{ID: 3, BillInstanceID: 1, UserID: 2, Amount: core.CentsOf(5000), Status: core.PaymentPaid}

	balances, err := queries.FounderBalances(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected a row per founder, got %d", len(balances))
	}
	if balances[0].Cents != 7500 || balances[0].Outstanding != "75.00" {
		t.Fatalf("unexpected balance for founder 1: %+v", balances[0])
	}
	// Paid rows never count toward outstanding.
	if balances[1].Cents != 0 {
		t.Fatalf("expected zero outstanding for founder 2, got %+v", balances[1])
	}
}

func TestBillsStatusFilterDerivesOverdue(t *testing.T) {
	now := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	store, queries := queriesHarness(now)

	overdue := store.addInstance(core.BillInstance{
		TemplateID: 1, Vendor: "Fastweb", Amount: core.CentsOf(2990),
		Period:  core.Period{Year: 2025, Month: time.March},
		DueDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		Status:  core.StatusPending,
	})
	store.addInstance(core.BillInstance{
		TemplateID: 2, Vendor: "Enel", Amount: core.CentsOf(5000),
		Period:  core.Period{Year: 2025, Month: time.March},
		DueDate: time.Date(2025, time.March, 25, 0, 0, 0, 0, time.UTC),
		Status:  core.StatusPending,
	})

	bills, err := queries.Bills(context.Background(), "2025-03", core.StatusOverdue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bills) != 1 || bills[0].ID != overdue.ID {
		t.Fatalf("expected only the overdue bill, got %+v", bills)
	}
	if bills[0].Status != core.StatusOverdue {
		t.Fatalf("expected derived overdue status, got %s", bills[0].Status)
	}
}

func TestBillsPeriodFilter(t *testing.T) {
	now := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	store, queries := queriesHarness(now)

	store.addInstance(core.BillInstance{TemplateID: 1, Vendor: "a", Period: core.Period{Year: 2025, Month: time.February}, Status: core.StatusPending})
	store.addInstance(core.BillInstance{TemplateID: 1, Vendor: "a", Period: core.Period{Year: 2025, Month: time.March}, Status: core.StatusPending})

	bills, err := queries.Bills(context.Background(), "2025-02", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bills) != 1 || bills[0].Period != "2025-02" {
		t.Fatalf("unexpected bills: %+v", bills)
	}

	if _, err := queries.Bills(context.Background(), "February", ""); err == nil {
		t.Fatal("expected error for malformed period")
	}
}

func TestQueriesCacheInvalidation(t *testing.T) {
	now := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	store, queries := queriesHarness(now)

	if bills, _ := queries.Bills(context.Background(), "", ""); len(bills) != 0 {
		t.Fatalf("expected empty list, got %d", len(bills))
	}

	store.addInstance(core.BillInstance{TemplateID: 1, Vendor: "a", Period: core.Period{Year: 2025, Month: time.March}, Status: core.StatusPending})

	// Cached result until a write invalidates.
	if bills, _ := queries.Bills(context.Background(), "", ""); len(bills) != 0 {
		t.Fatalf("expected stale cached list, got %d", len(bills))
	}
	queries.Invalidate()
	if bills, _ := queries.Bills(context.Background(), "", ""); len(bills) != 1 {
		t.Fatalf("expected fresh list after invalidation, got %d", len(bills))
	}
}
