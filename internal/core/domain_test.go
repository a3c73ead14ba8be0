package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewFixedTemplate(t *testing.T) {
	tmpl, err := NewFixedTemplate("Internet", "Fastweb", CentsOf(2990), Monthly, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tmpl.Active || tmpl.AmountType != Fixed || tmpl.FixedAmount.Cents != 2990 {
		t.Fatalf("unexpected template: %+v", tmpl)
	}
}

func TestNewFixedTemplateValidation(t *testing.T) {
	cases := []struct {
		name    string
		tmplNam string
		vendor  string
		amount  Money
		freq    Frequency
		dueDay  int
		wantErr error
	}{
		{"missing name", "", "Fastweb", CentsOf(100), Monthly, 15, ErrEmptyName},
		{"missing vendor", "Internet", "", CentsOf(100), Monthly, 15, ErrEmptyVendor},
		{"zero amount", "Internet", "Fastweb", CentsOf(0), Monthly, 15, ErrAmountRequired},
		{"due day too low", "Internet", "Fastweb", CentsOf(100), Monthly, 0, ErrInvalidDueDay},
		{"due day too high", "Internet", "Fastweb", CentsOf(100), Monthly, 29, ErrInvalidDueDay},
		{"bad frequency", "Internet", "Fastweb", CentsOf(100), Frequency("weekly"), 15, ErrInvalidFrequency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFixedTemplate(tc.tmplNam, tc.vendor, tc.amount, tc.freq, tc.dueDay)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewVariableTemplateNeedsNoAmount(t *testing.T) {
	tmpl, err := NewVariableTemplate("Electricity", "Enel", Quarterly, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl.AmountType != Variable || tmpl.FixedAmount.Cents != 0 {
		t.Fatalf("unexpected template: %+v", tmpl)
	}
}

func TestTemplateMatchesTransaction(t *testing.T) {
	fixed := BillTemplate{
		Vendor:        "Fastweb",
		AmountType:    Fixed,
		FixedAmount:   CentsOf(10000),
		EmailPatterns: []string{"fastweb"},
	}
	variable := BillTemplate{
		Vendor:        "Enel",
		AmountType:    Variable,
		EmailPatterns: []string{"enel energia"},
	}

	cases := []struct {
		name string
		tmpl BillTemplate
		tx   Transaction
		want bool
	}{
		{"exact amount", fixed, Transaction{Description: "FASTWEB SPA", Amount: CentsOf(10000)}, true},
		{"within 2%", fixed, Transaction{Description: "Fastweb abbonamento", Amount: CentsOf(10150)}, true},
		{"outside tolerance", fixed, Transaction{Description: "fastweb", Amount: CentsOf(10500)}, false},
		{"wrong description", fixed, Transaction{Description: "Vodafone", Amount: CentsOf(10000)}, false},
		{"variable ignores amount", variable, Transaction{Description: "ENEL ENERGIA spa", Amount: CentsOf(98765)}, true},
		{"variable wrong pattern", variable, Transaction{Description: "Acea", Amount: CentsOf(100)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tmpl.MatchesTransaction(tc.tx, 0.02); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	future := time.Date(2025, time.March, 25, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		inst BillInstance
		want BillStatus
	}{
		{"pending past due is overdue", BillInstance{Status: StatusPending, DueDate: due}, StatusOverdue},
		{"pending before due stays pending", BillInstance{Status: StatusPending, DueDate: future}, StatusPending},
		{"paid never goes overdue", BillInstance{Status: StatusPaid, DueDate: due}, StatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.inst.EffectiveStatus(now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRuleConstructors(t *testing.T) {
	if _, err := NewAccountRule("", Both); !errors.Is(err, ErrEmptyPattern) {
		t.Fatalf("expected ErrEmptyPattern, got %v", err)
	}
	if _, err := NewVendorRule("  ", Both); !errors.Is(err, ErrEmptyPattern) {
		t.Fatalf("expected ErrEmptyPattern, got %v", err)
	}
	if _, err := NewVendorAmountRule("spotify", CentsOf(0), 0.05, Expense); !errors.Is(err, ErrAmountRequired) {
		t.Fatalf("expected ErrAmountRequired, got %v", err)
	}
	if _, err := NewVendorAmountRule("spotify", CentsOf(999), 1.5, Expense); !errors.Is(err, ErrInvalidVariance) {
		t.Fatalf("expected ErrInvalidVariance, got %v", err)
	}

	rule, err := NewVendorAmountRule("spotify", CentsOf(999), 0, Expense)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.AmountVariance != DefaultAmountVariance {
		t.Fatalf("expected default variance, got %v", rule.AmountVariance)
	}

	// Unknown transaction types normalize to both.
	account, err := NewAccountRule("acc-1", TransactionType("whatever"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.TransactionType != Both {
		t.Fatalf("expected both, got %s", account.TransactionType)
	}
}
