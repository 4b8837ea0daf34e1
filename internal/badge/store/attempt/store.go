// Package attempt journals issuance attempts so that work which outlives its
// request stays visible and repairable.
package attempt

import "skillbadge/internal/badge/models"

// clone returns a deep copy so callers never share pointers with the store.
func clone(a *models.Attempt) *models.Attempt {
	c := *a
	if a.Receipt != nil {
		r := *a.Receipt
		c.Receipt = &r
	}
	if a.Badge != nil {
		b := *a.Badge
		c.Badge = &b
	}
	return &c
}
