package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bollette/internal/core"
)

// UpsertFounderPayment writes one founder's share, idempotent per
// (bill_instance_id, user_id). Re-splitting updates the amount in place but
// never touches a row's paid status.
func (r *SQLiteRepository) UpsertFounderPayment(ctx context.Context, p core.FounderPayment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO founder_payments (bill_instance_id, user_id, amount_cents, status, paid_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (bill_instance_id, user_id)
		DO UPDATE SET amount_cents = excluded.amount_cents`,
		p.BillInstanceID, p.UserID, p.Amount.Cents, string(p.Status), nullableDate(p.PaidDate))
	if err != nil {
		return fmt.Errorf("upsert founder payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PaymentsByInstance(ctx context.Context, instanceID int64) ([]core.FounderPayment, error) {
	rows, err := r.db.QueryContext(ctx, paymentColumns+`
		WHERE bill_instance_id = ? ORDER BY user_id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []core.FounderPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkFounderPaymentPaid settles one founder's payment and returns the
// updated row so callers can roll up instance status.
func (r *SQLiteRepository) MarkFounderPaymentPaid(ctx context.Context, paymentID int64, paidDate time.Time) (core.FounderPayment, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE founder_payments SET status = 'paid', paid_date = ? WHERE id = ?`,
		paidDate.Format(dateLayout), paymentID)
	if err != nil {
		return core.FounderPayment{}, fmt.Errorf("mark payment paid: %w", err)
	}
	if err := requireRow(res, "founder payment", paymentID); err != nil {
		return core.FounderPayment{}, err
	}

	row := r.db.QueryRowContext(ctx, paymentColumns+` WHERE id = ?`, paymentID)
	return scanPayment(row)
}

// PendingPaymentTotals sums each founder's pending share across all
// instances, the outstanding-balance projection.
func (r *SQLiteRepository) PendingPaymentTotals(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, SUM(amount_cents)
		FROM founder_payments
		WHERE status = 'pending'
		GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query pending totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]int64)
	for rows.Next() {
		var userID, cents int64
		if err := rows.Scan(&userID, &cents); err != nil {
			return nil, fmt.Errorf("scan pending total: %w", err)
		}
		totals[userID] = cents
	}
	return totals, rows.Err()
}

const paymentColumns = `
	SELECT id, bill_instance_id, user_id, amount_cents, status, paid_date
	FROM founder_payments`

func scanPayment(row rowScanner) (core.FounderPayment, error) {
	var (
		p        core.FounderPayment
		status   string
		paidDate sql.NullString
	)
	err := row.Scan(&p.ID, &p.BillInstanceID, &p.UserID, &p.Amount.Cents, &status, &paidDate)
	if err != nil {
		return core.FounderPayment{}, fmt.Errorf("scan payment: %w", err)
	}
	p.Status = core.PaymentStatus(status)
	p.PaidDate = parseNullDate(paidDate)
	return p, nil
}
