package core

import "sort"

// Split divides an instance amount equally across founders, cent-accurate.
//
// Each founder gets floor(amount / n) cents; the remainder is handed out one
// cent at a time to the first founders in ascending id order, so the split
// is reproducible and always sums exactly to the instance amount. 100.01
// over three founders yields 33.34, 33.34, 33.33.
func Split(instance BillInstance, founders []Founder) ([]FounderPayment, error) {
	n := int64(len(founders))
	if n == 0 {
		return nil, ErrNoFounders
	}
	if err := instance.Amount.Validate(); err != nil {
		return nil, err
	}

	ordered := make([]Founder, len(founders))
	copy(ordered, founders)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	base := instance.Amount.Cents / n
	remainder := instance.Amount.Cents - base*n

	payments := make([]FounderPayment, len(ordered))
	for i, f := range ordered {
		cents := base
		if int64(i) < remainder {
			cents++
		}
		payments[i] = FounderPayment{
			BillInstanceID: instance.ID,
			UserID:         f.ID,
			Amount:         CentsOf(cents),
			Status:         PaymentPending,
		}
	}

	if err := VerifySplit(instance, payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// VerifySplit checks the exact-sum invariant. A violation is an internal
// assertion failure, never a user-facing condition.
func VerifySplit(instance BillInstance, payments []FounderPayment) error {
	var sum int64
	for _, p := range payments {
		sum += p.Amount.Cents
	}
	if sum != instance.Amount.Cents {
		return ErrSplitRoundingViolation
	}
	return nil
}
