package services

import (
	"testing"
	"time"

	"bollette/internal/core"
)

func TestMonthlyRecursEveryMonth(t *testing.T) {
	checker, err := GetRecurrenceChecker(core.Monthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	anchor := core.Period{Year: 2024, Month: time.June}
	for i := 0; i < 24; i++ {
		if !checker.RecursOn(anchor, anchor.AddMonths(i)) {
			t.Fatalf("monthly must recur on every month, failed at +%d", i)
		}
	}
}

func TestQuarterlyRecursEveryThirdMonth(t *testing.T) {
	checker, _ := GetRecurrenceChecker(core.Quarterly)
	anchor := core.Period{Year: 2024, Month: time.February}

	cases := []struct {
		offset int
		want   bool
	}{
		{0, true}, {1, false}, {2, false}, {3, true},
		{6, true}, {7, false}, {12, true},
		{-3, true}, {-1, false}, {-6, true},
	}
	for _, tc := range cases {
		period := anchor.AddMonths(tc.offset)
		if got := checker.RecursOn(anchor, period); got != tc.want {
			t.Fatalf("offset %d (%s): expected %v, got %v", tc.offset, period.String(), tc.want, got)
		}
	}
}

func TestAnnualRecursOnAnniversaryMonth(t *testing.T) {
	checker, _ := GetRecurrenceChecker(core.Annual)
	anchor := core.Period{Year: 2023, Month: time.September}

	if !checker.RecursOn(anchor, core.Period{Year: 2025, Month: time.September}) {
		t.Fatal("expected recurrence on anniversary month")
	}
	if checker.RecursOn(anchor, core.Period{Year: 2025, Month: time.October}) {
		t.Fatal("expected no recurrence off the anniversary month")
	}
}

func TestUnknownFrequency(t *testing.T) {
	if _, err := GetRecurrenceChecker(core.Frequency("weekly")); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestRegisterRecurrenceChecker(t *testing.T) {
	custom := core.Frequency("biannual")
	RegisterRecurrenceChecker(custom, QuarterlyChecker{})
	defer delete(recurrenceStrategies, custom)

	if _, err := GetRecurrenceChecker(custom); err != nil {
		t.Fatalf("registered checker not found: %v", err)
	}
}
