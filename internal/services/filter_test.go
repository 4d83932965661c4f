package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

func TestApplyFilters_SingleDimension(t *testing.T) {
	ds := models.NewDataset(sampleRecords())

	view := ApplyFilters(ds, models.FilterSelection{}.With(models.DimensionCity, "Yangon"))

	require.Equal(t, 2, view.Len())
	for _, r := range view.Records() {
		assert.Equal(t, "Yangon", r.City)
	}
}

func TestApplyFilters_AndAcrossOrWithin(t *testing.T) {
	ds := models.NewDataset(sampleRecords())

	selection := models.FilterSelection{}.
		With(models.DimensionCity, "Yangon", "Naypyitaw").
		With(models.DimensionGender, "Female")

	view := ApplyFilters(ds, selection)

	require.Equal(t, 2, view.Len())
	assert.Equal(t, "Yangon", view.At(0).City)
	assert.Equal(t, "Naypyitaw", view.At(1).City)
}

func TestApplyFilters_EmptySetSelectsNothing(t *testing.T) {
	ds := models.NewDataset(sampleRecords())

	view := ApplyFilters(ds, models.FilterSelection{models.DimensionCity: models.NewValueSet()})

	assert.Equal(t, 0, view.Len())
	assert.Empty(t, view.Records())
}

func TestApplyFilters_AbsentDimensionIsUnconstrained(t *testing.T) {
	ds := models.NewDataset(sampleRecords())

	assert.Equal(t, 3, ApplyFilters(ds, nil).Len())
	assert.Equal(t, 3, ApplyFilters(ds, models.FilterSelection{}).Len())
}

func TestApplyFilters_UnknownValue(t *testing.T) {
	ds := models.NewDataset(sampleRecords())

	view := ApplyFilters(ds, models.FilterSelection{}.With(models.DimensionCity, "Mandalay"))

	assert.Equal(t, 0, view.Len())
}

func TestApplyFilters_EmptyDataset(t *testing.T) {
	view := ApplyFilters(models.NewDataset(nil), models.FilterSelection{}.With(models.DimensionCity, "Yangon"))
	assert.Equal(t, 0, view.Len())
}

func TestApplyFilters_DoesNotMutateDataset(t *testing.T) {
	records := sampleRecords()
	ds := models.NewDataset(records)
	before := ds.Records()

	_ = ApplyFilters(ds, models.FilterSelection{}.With(models.DimensionGender, "Male"))

	assert.Equal(t, before, ds.Records())
}

func TestDefaultSelection_IsIdentity(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		ds := models.NewDataset(fakeRecords(seed, 500))

		selection := DefaultSelection(ds)
		view := ApplyFilters(ds, selection)

		require.Len(t, selection, len(models.FilterDimensions))
		assert.Equal(t, ds.Records(), view.Records())
	}
}

func TestApplyFilters_Properties(t *testing.T) {
	ds := models.NewDataset(fakeRecords(42, 1000))

	selections := []models.FilterSelection{
		models.FilterSelection{}.With(models.DimensionCity, "Yangon"),
		models.FilterSelection{}.With(models.DimensionCity, "Yangon", "Mandalay").With(models.DimensionCustomerType, "Member"),
		models.FilterSelection{}.With(models.DimensionGender, "Male").With(models.DimensionCustomerType, "Normal").With(models.DimensionCity, "Naypyitaw"),
		models.FilterSelection{}.With(models.DimensionGender),
	}

	for _, sel := range selections {
		view := ApplyFilters(ds, sel)

		// Every returned record satisfies every active constraint.
		for _, r := range view.Records() {
			for dim, set := range sel {
				v, _ := r.Value(dim)
				assert.True(t, set.Has(v), "record %+v fails %s", r, dim)
			}
		}

		// Exactly the matching records are kept, in dataset order.
		var expected []models.Record
		for _, r := range ds.Records() {
			if matchesSelection(r, sel) {
				expected = append(expected, r)
			}
		}
		assert.Equal(t, len(expected), view.Len())
		if len(expected) > 0 {
			assert.Equal(t, expected, view.Records())
		}

		// Idempotence.
		assert.Equal(t, view.Records(), ApplyFilters(ds, sel).Records())
	}
}

// matchesSelection restates the filter contract field by field without going
// through Record.Value or the engine's constraint list.
func matchesSelection(r models.Record, sel models.FilterSelection) bool {
	for dim, set := range sel {
		var field string
		switch dim {
		case models.DimensionCity:
			field = r.City
		case models.DimensionCustomerType:
			field = r.CustomerType
		case models.DimensionGender:
			field = r.Gender
		default:
			continue
		}
		found := false
		for v := range set {
			if v == field {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestValidateSelection(t *testing.T) {
	assert.NoError(t, ValidateSelection(DefaultSelection(models.NewDataset(sampleRecords()))))

	err := ValidateSelection(models.FilterSelection{}.With(models.DimensionProductLine, "Health and beauty"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestDescribeSelection(t *testing.T) {
	assert.Equal(t, "all", describeSelection(nil))

	sel := models.FilterSelection{}.With(models.DimensionGender, "Male").With(models.DimensionCity, "Yangon", "Mandalay")
	assert.Equal(t, "city=[Mandalay Yangon] gender=[Male]", describeSelection(sel))
}

func BenchmarkApplyFilters(b *testing.B) {
	ds := models.NewDataset(fakeRecords(7, 100000))
	sel := models.FilterSelection{}.With(models.DimensionCity, "Yangon").With(models.DimensionGender, "Female")

	b.ResetTimer()
	for b.Loop() {
		_ = ApplyFilters(ds, sel)
	}
}
