package storage

import (
	"context"
	"fmt"
	"time"

	"bollette/internal/core"
)

// CreateSkipRule stores a validated rule and returns it with its id.
func (r *SQLiteRepository) CreateSkipRule(ctx context.Context, rule core.SkipRule) (core.SkipRule, error) {
	if err := rule.Validate(); err != nil {
		return core.SkipRule{}, err
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO skip_rules
			(rule_type, financial_account_id, vendor_pattern, amount_cents,
			 amount_variance, description_pattern, transaction_type, is_active,
			 skip_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rule.RuleType), rule.FinancialAccountID, rule.VendorPattern,
		rule.Amount.Cents, rule.AmountVariance, rule.DescriptionPattern,
		string(rule.TransactionType), boolInt(rule.Active), rule.SkipCount,
		rule.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return core.SkipRule{}, fmt.Errorf("create skip rule: %w", err)
	}
	rule.ID, err = res.LastInsertId()
	if err != nil {
		return core.SkipRule{}, fmt.Errorf("skip rule id: %w", err)
	}
	return rule, nil
}

// DeactivateSkipRule retires a rule. Rules are merged or deactivated, never
// deleted by operators (consolidation deletes only absorbed duplicates).
func (r *SQLiteRepository) DeactivateSkipRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE skip_rules SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate skip rule: %w", err)
	}
	return requireRow(res, "skip rule", id)
}

func (r *SQLiteRepository) ActiveSkipRules(ctx context.Context) ([]core.SkipRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rule_type, financial_account_id, vendor_pattern, amount_cents,
		       amount_variance, description_pattern, transaction_type, is_active,
		       skip_count, created_at
		FROM skip_rules
		WHERE is_active = 1
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query skip rules: %w", err)
	}
	defer rows.Close()

	var rules []core.SkipRule
	for rows.Next() {
		var (
			rule             core.SkipRule
			ruleType, txType string
			active           int
			createdAt        string
		)
		err := rows.Scan(&rule.ID, &ruleType, &rule.FinancialAccountID,
			&rule.VendorPattern, &rule.Amount.Cents, &rule.AmountVariance,
			&rule.DescriptionPattern, &txType, &active, &rule.SkipCount, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan skip rule: %w", err)
		}
		rule.RuleType = core.RuleType(ruleType)
		rule.TransactionType = core.TransactionType(txType)
		rule.Active = active != 0
		rule.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// IncrementSkipCount bumps a rule's monotonic match counter.
func (r *SQLiteRepository) IncrementSkipCount(ctx context.Context, ruleID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE skip_rules SET skip_count = skip_count + 1 WHERE id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("increment skip count: %w", err)
	}
	return requireRow(res, "skip rule", ruleID)
}
