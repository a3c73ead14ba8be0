// This file implements the Strategy Pattern for frequency recurrence. Each
// frequency (monthly, quarterly, annual) has its own checker that decides
// whether a template emits an instance in a given calendar month.

package services

import (
	"fmt"

	"bollette/internal/core"
)

// RecurrenceChecker decides whether a template recurs in a period, given the
// period the template was created in (the recurrence anchor).
type RecurrenceChecker interface {
	RecursOn(anchor, period core.Period) bool
}

// MonthlyChecker emits every calendar month.
type MonthlyChecker struct{}

func (MonthlyChecker) RecursOn(_, _ core.Period) bool {
	return true
}

// QuarterlyChecker emits every third month from the anchor.
type QuarterlyChecker struct{}

func (QuarterlyChecker) RecursOn(anchor, period core.Period) bool {
	diff := period.MonthsSince(anchor) % 3
	if diff < 0 {
		diff += 3
	}
	return diff == 0
}

// AnnualChecker emits only the anchor's anniversary month.
type AnnualChecker struct{}

func (AnnualChecker) RecursOn(anchor, period core.Period) bool {
	return period.Month == anchor.Month
}

// recurrenceStrategies maps frequencies to their checkers.
var recurrenceStrategies = map[core.Frequency]RecurrenceChecker{
	core.Monthly:   MonthlyChecker{},
	core.Quarterly: QuarterlyChecker{},
	core.Annual:    AnnualChecker{},
}

// GetRecurrenceChecker returns the checker for a frequency.
func GetRecurrenceChecker(frequency core.Frequency) (RecurrenceChecker, error) {
	checker, ok := recurrenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterRecurrenceChecker registers a checker for a new frequency type.
func RegisterRecurrenceChecker(frequency core.Frequency, checker RecurrenceChecker) {
	recurrenceStrategies[frequency] = checker
}
