package core

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Period identifies one calendar month, the granularity every bill instance
// is keyed on. The canonical string form is "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

var ErrInvalidPeriod = errors.New("period must be formatted as YYYY-MM")

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses the canonical "YYYY-MM" form.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days in the period's month.
func (p Period) Days() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths returns the period n calendar months later (earlier for
// negative n).
func (p Period) AddMonths(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// MonthsSince returns the number of calendar months from o to p. Negative
// when p precedes o.
func (p Period) MonthsSince(o Period) int {
	return (p.Year-o.Year)*12 + int(p.Month) - int(o.Month)
}

func (p Period) Before(o Period) bool {
	return p.MonthsSince(o) < 0
}

// DueDate places dueDay inside the period, clamped to the month length so a
// day-28 obligation never lands outside February.
func (p Period) DueDate(dueDay int) time.Time {
	day := dueDay
	if last := p.Days(); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// TemplatePeriodKey keys the (template, period) idempotence contract in
// plain maps, mirroring the unique index in storage.
func TemplatePeriodKey(templateID int64, period Period) string {
	return period.String() + "#" + strconv.FormatInt(templateID, 10)
}

// PeriodWindow lists every calendar month in [now - monthsBack, now +
// monthsForward], inclusive and in ascending order.
func PeriodWindow(now time.Time, monthsBack, monthsForward int) []Period {
	if monthsBack < 0 {
		monthsBack = 0
	}
	if monthsForward < 0 {
		monthsForward = 0
	}
	start := PeriodOf(now).AddMonths(-monthsBack)
	periods := make([]Period, 0, monthsBack+monthsForward+1)
	for i := 0; i <= monthsBack+monthsForward; i++ {
		periods = append(periods, start.AddMonths(i))
	}
	return periods
}
