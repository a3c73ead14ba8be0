// Package storage persists the billing engine's data model in SQLite.
//
// All idempotence contracts live here as upserts: bill instances conflict on
// (template_id, period) and founder payments on (bill_instance_id, user_id),
// so concurrent generation, matching and cron ticks cannot create
// duplicates.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bollette/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTemplate stores a validated template and returns it with its id.
func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	if err := t.Validate(); err != nil {
		return core.BillTemplate{}, err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	patterns, err := json.Marshal(t.EmailPatterns)
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("marshal email patterns: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO bill_templates
			(name, vendor, amount_type, fixed_amount_cents, frequency, due_day,
			 email_patterns, payment_method, vendor_type, active, auto_approve, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Vendor, string(t.AmountType), t.FixedAmount.Cents, string(t.Frequency), t.DueDay,
		string(patterns), t.PaymentMethod, t.VendorType, boolInt(t.Active), boolInt(t.AutoApprove),
		t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("create template: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("template id: %w", err)
	}
	return t, nil
}

// UpdateTemplate overwrites an existing template's mutable fields.
func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, t core.BillTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	patterns, err := json.Marshal(t.EmailPatterns)
	if err != nil {
		return fmt.Errorf("marshal email patterns: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE bill_templates
		SET name = ?, vendor = ?, amount_type = ?, fixed_amount_cents = ?,
		    frequency = ?, due_day = ?, email_patterns = ?, payment_method = ?,
		    vendor_type = ?, active = ?, auto_approve = ?
		WHERE id = ?`,
		t.Name, t.Vendor, string(t.AmountType), t.FixedAmount.Cents,
		string(t.Frequency), t.DueDay, string(patterns), t.PaymentMethod,
		t.VendorType, boolInt(t.Active), boolInt(t.AutoApprove), t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return requireRow(res, "template", t.ID)
}

// DeactivateTemplate retires a template. Templates are never deleted.
func (r *SQLiteRepository) DeactivateTemplate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_templates SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	return requireRow(res, "template", id)
}

func (r *SQLiteRepository) TemplateByID(ctx context.Context, id int64) (core.BillTemplate, error) {
	row := r.db.QueryRowContext(ctx, templateColumns+` WHERE id = ?`, id)
	return scanTemplate(row)
}

func (r *SQLiteRepository) ActiveTemplates(ctx context.Context) ([]core.BillTemplate, error) {
	rows, err := r.db.QueryContext(ctx, templateColumns+` WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active templates: %w", err)
	}
	defer rows.Close()

	var templates []core.BillTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

const templateColumns = `
	SELECT id, name, vendor, amount_type, fixed_amount_cents, frequency, due_day,
	       email_patterns, payment_method, vendor_type, active, auto_approve, created_at
	FROM bill_templates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (core.BillTemplate, error) {
	var (
		t                   core.BillTemplate
		amountType, freq    string
		patterns, createdAt string
		active, autoApprove int
	)
	err := row.Scan(&t.ID, &t.Name, &t.Vendor, &amountType, &t.FixedAmount.Cents,
		&freq, &t.DueDay, &patterns, &t.PaymentMethod, &t.VendorType,
		&active, &autoApprove, &createdAt)
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("scan template: %w", err)
	}
	t.AmountType = core.AmountType(amountType)
	t.Frequency = core.Frequency(freq)
	t.Active = active != 0
	t.AutoApprove = autoApprove != 0
	if err := json.Unmarshal([]byte(patterns), &t.EmailPatterns); err != nil {
		return core.BillTemplate{}, fmt.Errorf("unmarshal email patterns: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return t, nil
}

// ActiveFounders implements services.FounderRegistry on top of the roster
// table the user-directory component syncs into.
func (r *SQLiteRepository) ActiveFounders(ctx context.Context) ([]core.Founder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM founders WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query founders: %w", err)
	}
	defer rows.Close()

	var founders []core.Founder
	for rows.Next() {
		var f core.Founder
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("scan founder: %w", err)
		}
		founders = append(founders, f)
	}
	return founders, rows.Err()
}

// ReplaceFounders syncs the roster: listed founders are upserted active,
// everyone else is deactivated.
func (r *SQLiteRepository) ReplaceFounders(ctx context.Context, founders []core.Founder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster sync: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE founders SET active = 0`); err != nil {
		return fmt.Errorf("deactivate founders: %w", err)
	}
	for _, f := range founders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO founders (id, name, active) VALUES (?, ?, 1)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, active = 1`,
			f.ID, f.Name)
		if err != nil {
			return fmt.Errorf("upsert founder %d: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d not found", what, id)
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func parseNullDate(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s.String)
	return t
}
