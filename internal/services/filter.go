package services

import (
	"fmt"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

type constraint struct {
	dim     models.Dimension
	allowed models.ValueSet
}

// ApplyFilters returns the records of dataset accepted by every dimension of
// selection. Dimensions are AND-combined and values within a dimension are
// OR-combined. A dimension absent from selection imposes nothing, while a
// dimension with an empty set rejects every record. The dataset is never
// modified; each call returns a new view.
func ApplyFilters(dataset *models.Dataset, selection models.FilterSelection) models.FilteredView {
	active := make([]constraint, 0, len(selection))
	for dim, allowed := range selection {
		if !dim.IsCategorical() {
			continue
		}
		if len(allowed) == 0 {
			return models.NewFilteredView(dataset, []int{})
		}
		active = append(active, constraint{dim: dim, allowed: allowed})
	}

	n := dataset.Len()
	indices := make([]int, 0, n)
	for i := range n {
		r := dataset.At(i)
		if accepts(r, active) {
			indices = append(indices, i)
		}
	}

	return models.NewFilteredView(dataset, indices)
}

func accepts(r models.Record, active []constraint) bool {
	for _, c := range active {
		v, _ := r.Value(c.dim)
		if !c.allowed.Has(v) {
			return false
		}
	}
	return true
}

// DefaultSelection accepts every value observed in dataset for each
// filterable dimension, so applying it returns the whole dataset.
func DefaultSelection(dataset *models.Dataset) models.FilterSelection {
	selection := make(models.FilterSelection, len(models.FilterDimensions))
	for _, dim := range models.FilterDimensions {
		selection[dim] = models.NewValueSet(dataset.Distinct(dim)...)
	}
	return selection
}

// ValidateSelection rejects selections over dimensions that cannot be filtered.
func ValidateSelection(selection models.FilterSelection) error {
	for dim := range selection {
		if !dim.IsFilterable() {
			return errors.Validation("unsupported filter dimension").
				WithDetails("dimension %q, expected one of %v", dim, models.FilterDimensions)
		}
	}
	return nil
}

// describeSelection renders selection for logs and span tags.
func describeSelection(selection models.FilterSelection) string {
	if len(selection) == 0 {
		return "all"
	}
	out := ""
	for _, dim := range models.CategoricalDimensions {
		set, ok := selection[dim]
		if !ok {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", dim, set.Values())
	}
	return out
}
