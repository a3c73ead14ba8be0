package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Fixed    AmountType = "fixed"
	Variable AmountType = "variable"
)

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

const (
	StatusPending BillStatus = "pending"
	StatusPaid    BillStatus = "paid"
	// StatusOverdue is derived from a pending bill past its due date.
	// It is never written to storage.
	StatusOverdue BillStatus = "overdue"
)

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

const (
	RuleAccount            RuleType = "account"
	RuleVendor             RuleType = "vendor"
	RuleVendorAmount       RuleType = "vendor_amount"
	RuleDescriptionPattern RuleType = "description_pattern"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
	Both    TransactionType = "both"
)

// DefaultAmountVariance is the VENDOR_AMOUNT tolerance applied when a rule
// does not set its own (fraction of the rule amount).
const DefaultAmountVariance = 0.05

type (
	AmountType      string
	Frequency       string
	BillStatus      string
	PaymentStatus   string
	RuleType        string
	TransactionType string

	// BillTemplate is a recurring obligation definition that projects into
	// dated BillInstance rows, one per period the frequency recurs on.
	BillTemplate struct {
		ID            int64
		Name          string
		Vendor        string
		AmountType    AmountType
		FixedAmount   Money // meaningful only when AmountType == Fixed
		Frequency     Frequency
		DueDay        int
		EmailPatterns []string
		PaymentMethod string
		VendorType    string
		Active        bool
		AutoApprove   bool
		CreatedAt     time.Time
	}

	// BillInstance is one concrete, dated occurrence of an obligation.
	// TemplateID == 0 marks an orphan (manually created or left behind by
	// consolidation).
	BillInstance struct {
		ID         int64
		TemplateID int64
		Vendor     string
		VendorType string
		Amount     Money
		Period     Period
		DueDate    time.Time
		Status     BillStatus
		PaidDate   time.Time
		PaidVia    string
	}

	// FounderPayment is one founder's share of a bill instance. Rows are
	// unique per (BillInstanceID, UserID).
	FounderPayment struct {
		ID             int64
		BillInstanceID int64
		UserID         int64
		Amount         Money
		Status         PaymentStatus
		PaidDate       time.Time
	}

	// SkipRule auto-dismisses transactions that are not real bills.
	// Which fields are meaningful depends on RuleType; use the typed
	// constructors so the per-kind requirements hold by construction.
	SkipRule struct {
		ID                 int64
		RuleType           RuleType
		FinancialAccountID string
		VendorPattern      string
		Amount             Money
		AmountVariance     float64
		DescriptionPattern string
		TransactionType    TransactionType
		Active             bool
		SkipCount          int64
		CreatedAt          time.Time
	}

	// Transaction is the record handed to the matching engine by the
	// bank/email ingestion pipeline.
	Transaction struct {
		ID          string
		AccountID   string
		Description string
		Amount      Money
		Date        time.Time
		Direction   TransactionType
	}

	// Founder is a co-owner among whom instance costs are split.
	Founder struct {
		ID   int64
		Name string
	}
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidDueDay          = errors.New("due day must be between 1 and 28")
	ErrAmountRequired         = errors.New("fixed templates require an amount")
	ErrEmptyVendor            = errors.New("empty vendor")
	ErrEmptyName              = errors.New("empty name")
	ErrEmptyPattern           = errors.New("empty pattern")
	ErrInvalidVariance        = errors.New("amount variance must be between 0 and 1")
	ErrInvalidFrequency       = errors.New("invalid frequency")
	ErrInvalidRuleType        = errors.New("invalid rule type")
	ErrNoFounders             = errors.New("no founders to split across")
	ErrSplitRoundingViolation = errors.New("founder payments do not sum to instance amount")
)

// NewFixedTemplate builds an active FIXED template. The amount is required
// and the due day is validated up front so downstream generation never sees
// a malformed template.
func NewFixedTemplate(name, vendor string, amount Money, frequency Frequency, dueDay int) (BillTemplate, error) {
	t := BillTemplate{
		Name:        strings.TrimSpace(name),
		Vendor:      strings.TrimSpace(vendor),
		AmountType:  Fixed,
		FixedAmount: amount,
		Frequency:   frequency,
		DueDay:      dueDay,
		Active:      true,
	}
	if err := t.Validate(); err != nil {
		return BillTemplate{}, err
	}
	return t, nil
}

// NewVariableTemplate builds an active VARIABLE template. The amount of each
// instance is supplied later by a matched transaction.
func NewVariableTemplate(name, vendor string, frequency Frequency, dueDay int) (BillTemplate, error) {
	t := BillTemplate{
		Name:       strings.TrimSpace(name),
		Vendor:     strings.TrimSpace(vendor),
		AmountType: Variable,
		Frequency:  frequency,
		DueDay:     dueDay,
		Active:     true,
	}
	if err := t.Validate(); err != nil {
		return BillTemplate{}, err
	}
	return t, nil
}

func (t BillTemplate) Validate() error {
	if t.Name == "" {
		return ErrEmptyName
	}
	if t.Vendor == "" {
		return ErrEmptyVendor
	}
	if t.DueDay < 1 || t.DueDay > 28 {
		return ErrInvalidDueDay
	}
	switch t.Frequency {
	case Monthly, Quarterly, Annual:
	default:
		return ErrInvalidFrequency
	}
	switch t.AmountType {
	case Fixed:
		if t.FixedAmount.Cents <= 0 {
			return ErrAmountRequired
		}
	case Variable:
	default:
		return errors.New("invalid amount type")
	}
	return nil
}

// MatchesTransaction reports whether the transaction looks like this
// template's bill: any email pattern is a case-insensitive substring of the
// description, and for FIXED templates the amount is within tolerance
// (a fraction, e.g. 0.02) of the fixed amount.
func (t BillTemplate) MatchesTransaction(tx Transaction, tolerance float64) bool {
	desc := strings.ToLower(tx.Description)
	hit := false
	for _, p := range t.EmailPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(desc, p) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	if t.AmountType == Fixed {
		return withinTolerance(tx.Amount.Cents, t.FixedAmount.Cents, tolerance)
	}
	return true
}

func (i BillInstance) Orphan() bool {
	return i.TemplateID == 0
}

// EffectiveStatus derives OVERDUE for pending bills past their due date.
func (i BillInstance) EffectiveStatus(now time.Time) BillStatus {
	if i.Status == StatusPending && !i.DueDate.IsZero() && now.After(i.DueDate) {
		return StatusOverdue
	}
	return i.Status
}

// NewAccountRule skips every transaction from a financial account.
func NewAccountRule(accountID string, txType TransactionType) (SkipRule, error) {
	r := SkipRule{
		RuleType:           RuleAccount,
		FinancialAccountID: strings.TrimSpace(accountID),
		TransactionType:    normalizeTxType(txType),
		Active:             true,
	}
	if r.FinancialAccountID == "" {
		return SkipRule{}, ErrEmptyPattern
	}
	return r, nil
}

// NewVendorRule skips transactions whose description contains the vendor
// pattern.
func NewVendorRule(vendorPattern string, txType TransactionType) (SkipRule, error) {
	r := SkipRule{
		RuleType:        RuleVendor,
		VendorPattern:   strings.TrimSpace(vendorPattern),
		TransactionType: normalizeTxType(txType),
		Active:          true,
	}
	if r.VendorPattern == "" {
		return SkipRule{}, ErrEmptyPattern
	}
	return r, nil
}

// NewVendorAmountRule skips transactions matching the vendor pattern whose
// amount falls within variance (fraction) of the rule amount. A zero
// variance falls back to DefaultAmountVariance.
func NewVendorAmountRule(vendorPattern string, amount Money, variance float64, txType TransactionType) (SkipRule, error) {
	if variance == 0 {
		variance = DefaultAmountVariance
	}
	if variance < 0 || variance > 1 {
		return SkipRule{}, ErrInvalidVariance
	}
	r := SkipRule{
		RuleType:        RuleVendorAmount,
		VendorPattern:   strings.TrimSpace(vendorPattern),
		Amount:          amount,
		AmountVariance:  variance,
		TransactionType: normalizeTxType(txType),
		Active:          true,
	}
	if r.VendorPattern == "" {
		return SkipRule{}, ErrEmptyPattern
	}
	if amount.Cents <= 0 {
		return SkipRule{}, ErrAmountRequired
	}
	return r, nil
}

// NewDescriptionRule skips transactions whose full description matches the
// pattern, as a substring or as a regular expression.
func NewDescriptionRule(pattern string, txType TransactionType) (SkipRule, error) {
	r := SkipRule{
		RuleType:           RuleDescriptionPattern,
		DescriptionPattern: strings.TrimSpace(pattern),
		TransactionType:    normalizeTxType(txType),
		Active:             true,
	}
	if r.DescriptionPattern == "" {
		return SkipRule{}, ErrEmptyPattern
	}
	return r, nil
}

func (r SkipRule) Validate() error {
	switch r.RuleType {
	case RuleAccount:
		if r.FinancialAccountID == "" {
			return ErrEmptyPattern
		}
	case RuleVendor:
		if r.VendorPattern == "" {
			return ErrEmptyPattern
		}
	case RuleVendorAmount:
		if r.VendorPattern == "" {
			return ErrEmptyPattern
		}
		if r.Amount.Cents <= 0 {
			return ErrAmountRequired
		}
		if r.AmountVariance < 0 || r.AmountVariance > 1 {
			return ErrInvalidVariance
		}
	case RuleDescriptionPattern:
		if r.DescriptionPattern == "" {
			return ErrEmptyPattern
		}
	default:
		return ErrInvalidRuleType
	}
	return nil
}

// AppliesTo reports whether the rule's transaction-type filter admits the
// transaction's direction.
func (r SkipRule) AppliesTo(tx Transaction) bool {
	return r.TransactionType == Both || r.TransactionType == tx.Direction
}

func normalizeTxType(t TransactionType) TransactionType {
	switch t {
	case Income, Expense:
		return t
	default:
		return Both
	}
}

func withinTolerance(got, want int64, tolerance float64) bool {
	if want == 0 {
		return got == 0
	}
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(want) <= tolerance
}
