package services

import (
	"context"
	"fmt"
	"log/slog"

	"bollette/internal/core"
)

// Generator projects active templates into bill instances over a period
// window. Generation is idempotent per (template, period): re-running any
// window is a no-op beyond the first call, enforced by the storage upsert
// rather than by locks.
type Generator struct {
	store  GeneratorStore
	ledger *Ledger
	clock  Clock
}

// GenerationReport summarizes one Generate run. Per-template failures are
// collected, never fatal to the batch.
type GenerationReport struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Errors  []GenError `json:"errors,omitempty"`
}

// GenError records one template/period that could not be generated.
type GenError struct {
	TemplateID int64  `json:"templateId"`
	Period     string `json:"period,omitempty"`
	Err        string `json:"error"`
}

func NewGenerator(store GeneratorStore, ledger *Ledger, clock Clock) *Generator {
	return &Generator{
		store:  store,
		ledger: ledger,
		clock:  clock,
	}
}

// Generate walks every active template across [now - monthsBack, now +
// monthsForward] by calendar month, filtered to the months the template's
// frequency recurs on, and creates the missing instances. Existing
// (template, period) rows are counted as skipped.
func (g *Generator) Generate(ctx context.Context, monthsBack, monthsForward int) (GenerationReport, error) {
	var report GenerationReport

	templates, err := g.store.ActiveTemplates(ctx)
	if err != nil {
		return report, fmt.Errorf("load active templates: %w", err)
	}

	now := g.clock.Now()
	window := core.PeriodWindow(now, monthsBack, monthsForward)

	slog.InfoContext(ctx, "Generating bill instances",
		"templates", len(templates),
		"window_start", window[0].String(),
		"window_end", window[len(window)-1].String())

	for _, tmpl := range templates {
		if err := tmpl.Validate(); err != nil {
			report.Errors = append(report.Errors, GenError{TemplateID: tmpl.ID, Err: err.Error()})
			slog.ErrorContext(ctx, "Skipping invalid template",
				"template_id", tmpl.ID, "error", err)
			continue
		}

		checker, err := GetRecurrenceChecker(tmpl.Frequency)
		if err != nil {
			report.Errors = append(report.Errors, GenError{TemplateID: tmpl.ID, Err: err.Error()})
			continue
		}

		anchor := core.PeriodOf(tmpl.CreatedAt)
		for _, period := range window {
			if !checker.RecursOn(anchor, period) {
				continue
			}

			created, err := g.generateOne(ctx, tmpl, period)
			if created {
				// Count the insert even when the split sync after it
				// failed, so the report matches the rows on disk.
				report.Created++
			}
			if err != nil {
				report.Errors = append(report.Errors, GenError{
					TemplateID: tmpl.ID,
					Period:     period.String(),
					Err:        err.Error(),
				})
				slog.ErrorContext(ctx, "Failed to generate instance",
					"template_id", tmpl.ID,
					"period", period.String(),
					"error", err)
				continue
			}
			if !created {
				report.Skipped++
			}
		}
	}

	slog.InfoContext(ctx, "Bill generation complete",
		"created", report.Created,
		"skipped", report.Skipped,
		"errors", len(report.Errors))

	return report, nil
}

// EnsureInstance is the idempotent lookup-or-create the matcher resolves
// instances through. The bool reports whether the instance was created by
// this call.
func (g *Generator) EnsureInstance(ctx context.Context, tmpl core.BillTemplate, period core.Period) (core.BillInstance, bool, error) {
	existing, ok, err := g.store.InstanceByTemplatePeriod(ctx, tmpl.ID, period)
	if err != nil {
		return core.BillInstance{}, false, fmt.Errorf("lookup instance: %w", err)
	}
	if ok {
		return existing, false, nil
	}

	instance := g.projectInstance(tmpl, period)
	stored, created, err := g.store.InsertInstance(ctx, instance)
	if err != nil {
		return core.BillInstance{}, false, fmt.Errorf("insert instance: %w", err)
	}
	if !created {
		// A concurrent writer won the upsert; fetch its row.
		stored, ok, err = g.store.InstanceByTemplatePeriod(ctx, tmpl.ID, period)
		if err != nil {
			return core.BillInstance{}, false, fmt.Errorf("reload instance: %w", err)
		}
		if !ok {
			return core.BillInstance{}, false, fmt.Errorf("instance upsert conflict but no existing row for template %d period %s",
				tmpl.ID, period.String())
		}
		return stored, false, nil
	}

	if _, err := g.ledger.SyncSplits(ctx, stored); err != nil {
		return stored, true, fmt.Errorf("pre-populate splits: %w", err)
	}
	return stored, true, nil
}

func (g *Generator) generateOne(ctx context.Context, tmpl core.BillTemplate, period core.Period) (bool, error) {
	instance := g.projectInstance(tmpl, period)

	stored, created, err := g.store.InsertInstance(ctx, instance)
	if err != nil {
		return false, err
	}
	if !created {
		// Expected no-op path: the (template, period) row already exists.
		return false, nil
	}

	if _, err := g.ledger.SyncSplits(ctx, stored); err != nil {
		return true, err
	}
	return true, nil
}

func (g *Generator) projectInstance(tmpl core.BillTemplate, period core.Period) core.BillInstance {
	amount := core.Money{}
	if tmpl.AmountType == core.Fixed {
		amount = tmpl.FixedAmount
	}
	return core.BillInstance{
		TemplateID: tmpl.ID,
		Vendor:     tmpl.Vendor,
		VendorType: tmpl.VendorType,
		Amount:     amount,
		Period:     period,
		DueDate:    period.DueDate(tmpl.DueDay),
		Status:     core.StatusPending,
	}
}
