package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

// signalsParam carries the datastar store on GET requests.
const signalsParam = "datastar"

var validate = validator.New(validator.WithRequiredStructEnabled())

// queryParams are the non-selection parameters accepted by the JSON API.
type queryParams struct {
	Bucket    string `validate:"omitempty,oneof=daily monthly"`
	Dimension string `validate:"omitempty,oneof=date city customer_type gender product_line payment_method"`
}

// dashboardSignals mirrors the datastar store of the dashboard page. A nil
// slice (signal missing or null) leaves its dimension unconstrained while an
// empty slice selects nothing. Values are matched exactly, so "" selects
// records with a blank field.
type dashboardSignals struct {
	Cities        []string `json:"cities"`
	CustomerTypes []string `json:"customerTypes"`
	Genders       []string `json:"genders"`
	Bucket        string   `json:"bucket" validate:"omitempty,oneof=daily monthly"`
}

// selectionFromQuery builds a selection from repeated query parameters named
// after the filter dimensions. A parameter that is present but carries only
// blank values yields an empty set. Once any value is non-blank, a blank
// value selects records whose field is blank.
func selectionFromQuery(query url.Values) models.FilterSelection {
	selection := models.FilterSelection{}
	for _, dim := range models.FilterDimensions {
		raw, ok := query[string(dim)]
		if !ok {
			continue
		}
		values := make([]string, 0, len(raw))
		for _, v := range raw {
			values = append(values, strings.TrimSpace(v))
		}
		if !slices.ContainsFunc(values, func(v string) bool { return v != "" }) {
			values = nil
		}
		selection[dim] = models.NewValueSet(values...)
	}
	return selection
}

func parseQuery(r *http.Request) (models.FilterSelection, queryParams, error) {
	params := queryParams{
		Bucket:    strings.TrimSpace(r.URL.Query().Get("bucket")),
		Dimension: r.PathValue("dimension"),
	}
	if err := validate.Struct(params); err != nil {
		return nil, params, validationError(err)
	}
	return selectionFromQuery(r.URL.Query()), params, nil
}

// readSignals decodes the datastar signals sent with r. Requests without
// signals (a plain GET) select the whole dataset.
func readSignals(r *http.Request) (models.FilterSelection, models.Bucket, error) {
	var signals dashboardSignals
	if r.Method != http.MethodGet || r.URL.Query().Has(signalsParam) {
		if err := datastar.ReadSignals(r, &signals); err != nil {
			return nil, "", errors.BadRequestWrap(err, "invalid datastar signals")
		}
	}
	if err := validate.Struct(signals); err != nil {
		return nil, "", validationError(err)
	}

	selection := models.FilterSelection{}
	for dim, values := range map[models.Dimension][]string{
		models.DimensionCity:         signals.Cities,
		models.DimensionCustomerType: signals.CustomerTypes,
		models.DimensionGender:       signals.Genders,
	} {
		if values != nil {
			selection[dim] = models.NewValueSet(values...)
		}
	}
	return selection, models.Bucket(signals.Bucket), nil
}

func validationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return errors.ValidationWrap(err, "invalid request parameters")
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%q must satisfy %s", strings.ToLower(f.Field()), f.Value(), strings.TrimSpace(f.Tag()+" "+f.Param())))
	}
	return errors.ValidationWrap(err, "invalid request parameters").WithDetails("%s", strings.Join(parts, "; "))
}
