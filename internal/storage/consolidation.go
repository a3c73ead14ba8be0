package storage

import (
	"context"
	"fmt"
	"strings"
)

// ApplyRuleMerge absorbs a group of duplicate skip rules into the survivor
// in one transaction: the survivor gains the losers' skip counts, then the
// losers are deleted. Match-history frequency is preserved.
func (r *SQLiteRepository) ApplyRuleMerge(ctx context.Context, survivorID int64, loserIDs []int64, addedSkips int64) error {
	if len(loserIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rule merge: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE skip_rules SET skip_count = skip_count + ? WHERE id = ?`,
		addedSkips, survivorID)
	if err != nil {
		return fmt.Errorf("absorb skip counts: %w", err)
	}
	if err := requireRow(res, "skip rule", survivorID); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM skip_rules WHERE id IN (%s)`, placeholders(len(loserIDs)))
	if _, err := tx.ExecContext(ctx, query, int64Args(loserIDs)...); err != nil {
		return fmt.Errorf("delete duplicate rules: %w", err)
	}

	return tx.Commit()
}

// ApplyTemplateMerge re-points loser instances at the survivor and
// deactivates the losers, in one transaction. Instances whose period the
// survivor already owns stay on their (deactivated, still resolvable)
// loser template rather than violate the (template, period) uniqueness
// contract. Historical instances are never deleted.
func (r *SQLiteRepository) ApplyTemplateMerge(ctx context.Context, survivorID int64, loserIDs []int64) (int64, error) {
	if len(loserIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin template merge: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		UPDATE bill_instances SET template_id = ?
		WHERE template_id IN (%s)
		AND NOT EXISTS (
			SELECT 1 FROM bill_instances b2
			WHERE b2.template_id = ? AND b2.period = bill_instances.period
		)`, placeholders(len(loserIDs)))
	args := append([]any{survivorID}, int64Args(loserIDs)...)
	args = append(args, survivorID)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("re-point instances: %w", err)
	}
	migrated, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	query = fmt.Sprintf(`UPDATE bill_templates SET active = 0 WHERE id IN (%s)`,
		placeholders(len(loserIDs)))
	if _, err := tx.ExecContext(ctx, query, int64Args(loserIDs)...); err != nil {
		return 0, fmt.Errorf("deactivate duplicate templates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return migrated, nil
}

// LinkInstanceToTemplate attaches an orphan to a template. The guard on
// template_id IS NULL keeps a concurrent consolidation run from re-linking
// an already claimed instance.
func (r *SQLiteRepository) LinkInstanceToTemplate(ctx context.Context, instanceID, templateID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bill_instances SET template_id = ?
		WHERE id = ? AND template_id IS NULL`,
		templateID, instanceID)
	if err != nil {
		return fmt.Errorf("link instance: %w", err)
	}
	return requireRow(res, "orphan instance", instanceID)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
