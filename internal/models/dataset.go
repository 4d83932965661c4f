package models

import "slices"

// Dataset is the immutable base table loaded at startup.
type Dataset struct {
	records []Record
}

func NewDataset(records []Record) *Dataset {
	return &Dataset{records: slices.Clone(records)}
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

func (d *Dataset) At(i int) Record {
	return d.records[i]
}

// Records returns a copy of every record in load order.
func (d *Dataset) Records() []Record {
	if d == nil {
		return nil
	}
	return slices.Clone(d.records)
}

// Distinct returns the distinct values of dim in first-appearance order.
func (d *Dataset) Distinct(dim Dimension) []string {
	values := make([]string, 0)
	if d == nil {
		return values
	}
	seen := make(map[string]struct{})
	for _, r := range d.records {
		v, ok := r.Value(dim)
		if !ok {
			return values
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}

func (d *Dataset) FilterOptions() FilterOptions {
	return FilterOptions{
		Cities:        d.Distinct(DimensionCity),
		CustomerTypes: d.Distinct(DimensionCustomerType),
		Genders:       d.Distinct(DimensionGender),
	}
}

// FilteredView is a read-only subset of a Dataset addressed by ascending
// record indices.
type FilteredView struct {
	dataset *Dataset
	indices []int
}

func NewFilteredView(dataset *Dataset, indices []int) FilteredView {
	return FilteredView{dataset: dataset, indices: indices}
}

func (v FilteredView) Len() int {
	return len(v.indices)
}

func (v FilteredView) At(i int) Record {
	return v.dataset.records[v.indices[i]]
}

// Each calls fn for every record in the view, in dataset order.
func (v FilteredView) Each(fn func(Record)) {
	for _, idx := range v.indices {
		fn(v.dataset.records[idx])
	}
}

func (v FilteredView) Records() []Record {
	out := make([]Record, 0, len(v.indices))
	v.Each(func(r Record) { out = append(out, r) })
	return out
}

// ValueSet is a set of accepted category values for one dimension.
type ValueSet map[string]struct{}

func NewValueSet(values ...string) ValueSet {
	set := make(ValueSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (s ValueSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Values returns the set members sorted.
func (s ValueSet) Values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// FilterSelection maps a dimension to its accepted values. A missing dimension
// accepts everything; a present but empty set accepts nothing.
type FilterSelection map[Dimension]ValueSet

// With returns a copy of s with dim restricted to values.
func (s FilterSelection) With(dim Dimension, values ...string) FilterSelection {
	out := make(FilterSelection, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[dim] = NewValueSet(values...)
	return out
}
