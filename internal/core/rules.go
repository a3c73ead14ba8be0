package core

import (
	"regexp"
	"strings"
)

// Matches reports whether the rule fires for the transaction. The
// transaction-type filter applies to every kind; the rest depends on the
// rule kind:
//
//   - ACCOUNT: source account equality, unconditional.
//   - VENDOR_AMOUNT: vendor pattern is a case-insensitive substring of the
//     description and the amount is within the rule's variance.
//   - VENDOR: substring match only.
//   - DESCRIPTION_PATTERN: substring match, then regex when the pattern
//     compiles.
func (r SkipRule) Matches(tx Transaction) bool {
	if !r.Active || !r.AppliesTo(tx) {
		return false
	}
	switch r.RuleType {
	case RuleAccount:
		return r.FinancialAccountID != "" && r.FinancialAccountID == tx.AccountID
	case RuleVendorAmount:
		if !containsFold(tx.Description, r.VendorPattern) {
			return false
		}
		variance := r.AmountVariance
		if variance == 0 {
			variance = DefaultAmountVariance
		}
		return withinTolerance(tx.Amount.Cents, r.Amount.Cents, variance)
	case RuleVendor:
		return containsFold(tx.Description, r.VendorPattern)
	case RuleDescriptionPattern:
		if containsFold(tx.Description, r.DescriptionPattern) {
			return true
		}
		re, err := regexp.Compile("(?i)" + r.DescriptionPattern)
		if err != nil {
			return false
		}
		return re.MatchString(tx.Description)
	}
	return false
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
