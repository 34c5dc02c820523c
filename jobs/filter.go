// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package jobs

// Filter is a set of minimum-quality cutoffs. A zero field is not applied.
type Filter struct {
	// EValue keeps rows whose e-value exponent is at most -EValue.
	EValue int
	// Identity keeps rows with at least this percent identity.
	Identity int
	// Length keeps rows with at least this alignment length.
	Length int
}

// IsZero returns true when no cutoff is set.
func (filter Filter) IsZero() bool {
	return filter == Filter{}
}

// Match reports whether row passes every cutoff.
func (filter Filter) Match(row Row) bool {
	if filter.EValue != 0 && row.ExpAvg > float64(-filter.EValue) {
		return false
	}
	if filter.Identity != 0 && row.IdentAvg < float64(filter.Identity) {
		return false
	}
	if filter.Length != 0 && row.LenAvg < float64(filter.Length) {
		return false
	}
	return true
}

// Condition is one comparison of a filter, e.g. exp_avg <= -5.
type Condition struct {
	Column   Column
	Operator string
	Value    float64
}

// Conditions returns the comparisons of filter in a fixed order.
func (filter Filter) Conditions() []Condition {
	var conditions []Condition
	if filter.EValue != 0 {
		conditions = append(conditions, Condition{ColumnExpAvg, "<=", float64(-filter.EValue)})
	}
	if filter.Identity != 0 {
		conditions = append(conditions, Condition{ColumnIdentAvg, ">=", float64(filter.Identity)})
	}
	if filter.Length != 0 {
		conditions = append(conditions, Condition{ColumnLenAvg, ">=", float64(filter.Length)})
	}
	return conditions
}
