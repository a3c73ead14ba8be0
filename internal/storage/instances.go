package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bollette/internal/core"
)

// InsertInstance upserts a bill instance keyed (template_id, period). The
// returned bool is false when the row already existed; that is the expected
// no-op path of idempotent generation, not an error. Orphan instances
// (TemplateID == 0) are stored with a NULL template id and never conflict.
func (r *SQLiteRepository) InsertInstance(ctx context.Context, i core.BillInstance) (core.BillInstance, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO bill_instances
			(template_id, vendor, vendor_type, amount_cents, period, due_date,
			 status, paid_date, paid_via, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (template_id, period) DO NOTHING`,
		nullableID(i.TemplateID), i.Vendor, i.VendorType, i.Amount.Cents,
		i.Period.String(), i.DueDate.Format(dateLayout), string(i.Status),
		nullableDate(i.PaidDate), i.PaidVia, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return core.BillInstance{}, false, fmt.Errorf("insert instance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return core.BillInstance{}, false, err
	}
	if n == 0 {
		existing, ok, err := r.InstanceByTemplatePeriod(ctx, i.TemplateID, i.Period)
		if err != nil {
			return core.BillInstance{}, false, err
		}
		if !ok {
			return core.BillInstance{}, false, fmt.Errorf("instance upsert conflict but no existing row for template %d period %s",
				i.TemplateID, i.Period.String())
		}
		return existing, false, nil
	}

	i.ID, err = res.LastInsertId()
	if err != nil {
		return core.BillInstance{}, false, fmt.Errorf("instance id: %w", err)
	}
	return i, true, nil
}

func (r *SQLiteRepository) InstanceByTemplatePeriod(ctx context.Context, templateID int64, period core.Period) (core.BillInstance, bool, error) {
	row := r.db.QueryRowContext(ctx,
		instanceColumns+` WHERE template_id = ? AND period = ?`,
		templateID, period.String())
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillInstance{}, false, nil
	}
	if err != nil {
		return core.BillInstance{}, false, err
	}
	return inst, true, nil
}

func (r *SQLiteRepository) InstanceByID(ctx context.Context, id int64) (core.BillInstance, error) {
	row := r.db.QueryRowContext(ctx, instanceColumns+` WHERE id = ?`, id)
	return scanInstance(row)
}

// SetInstanceAmount fills a VARIABLE instance's amount once a transaction
// supplies it.
func (r *SQLiteRepository) SetInstanceAmount(ctx context.Context, instanceID int64, amount core.Money) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_instances SET amount_cents = ? WHERE id = ?`,
		amount.Cents, instanceID)
	if err != nil {
		return fmt.Errorf("set instance amount: %w", err)
	}
	return requireRow(res, "instance", instanceID)
}

func (r *SQLiteRepository) MarkInstancePaid(ctx context.Context, instanceID int64, paidDate time.Time, paidVia string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bill_instances
		SET status = 'paid', paid_date = ?, paid_via = ?
		WHERE id = ?`,
		paidDate.Format(dateLayout), paidVia, instanceID)
	if err != nil {
		return fmt.Errorf("mark instance paid: %w", err)
	}
	return requireRow(res, "instance", instanceID)
}

func (r *SQLiteRepository) InstancesByPeriod(ctx context.Context, period core.Period) ([]core.BillInstance, error) {
	return r.queryInstances(ctx, instanceColumns+` WHERE period = ? ORDER BY id`, period.String())
}

func (r *SQLiteRepository) AllInstances(ctx context.Context) ([]core.BillInstance, error) {
	return r.queryInstances(ctx, instanceColumns+` ORDER BY period DESC, id`)
}

func (r *SQLiteRepository) OrphanInstances(ctx context.Context) ([]core.BillInstance, error) {
	return r.queryInstances(ctx, instanceColumns+` WHERE template_id IS NULL ORDER BY id`)
}

// InstanceCountsByTemplate returns how many instances each template owns,
// the survivor criterion for template merges.
func (r *SQLiteRepository) InstanceCountsByTemplate(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT template_id, COUNT(*)
		FROM bill_instances
		WHERE template_id IS NOT NULL
		GROUP BY template_id`)
	if err != nil {
		return nil, fmt.Errorf("query instance counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan instance count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// TemplatePeriodsTaken lists every occupied (template, period) slot so
// orphan linking never claims one twice.
func (r *SQLiteRepository) TemplatePeriodsTaken(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT template_id, period FROM bill_instances WHERE template_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query template periods: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]struct{})
	for rows.Next() {
		var id int64
		var periodStr string
		if err := rows.Scan(&id, &periodStr); err != nil {
			return nil, fmt.Errorf("scan template period: %w", err)
		}
		period, err := core.ParsePeriod(periodStr)
		if err != nil {
			return nil, fmt.Errorf("parse period %q: %w", periodStr, err)
		}
		taken[core.TemplatePeriodKey(id, period)] = struct{}{}
	}
	return taken, rows.Err()
}

func (r *SQLiteRepository) queryInstances(ctx context.Context, query string, args ...any) ([]core.BillInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var instances []core.BillInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

const instanceColumns = `
	SELECT id, template_id, vendor, vendor_type, amount_cents, period, due_date,
	       status, paid_date, paid_via
	FROM bill_instances`

func scanInstance(row rowScanner) (core.BillInstance, error) {
	var (
		inst       core.BillInstance
		templateID sql.NullInt64
		periodStr  string
		dueDate    string
		status     string
		paidDate   sql.NullString
	)
	err := row.Scan(&inst.ID, &templateID, &inst.Vendor, &inst.VendorType,
		&inst.Amount.Cents, &periodStr, &dueDate, &status, &paidDate, &inst.PaidVia)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.BillInstance{}, err
		}
		return core.BillInstance{}, fmt.Errorf("scan instance: %w", err)
	}
	inst.TemplateID = templateID.Int64
	inst.Period, err = core.ParsePeriod(periodStr)
	if err != nil {
		return core.BillInstance{}, fmt.Errorf("parse period %q: %w", periodStr, err)
	}
	inst.DueDate, _ = time.Parse(dateLayout, dueDate)
	inst.Status = core.BillStatus(status)
	inst.PaidDate = parseNullDate(paidDate)
	return inst, nil
}
