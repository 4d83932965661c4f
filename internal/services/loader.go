package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

// Source column headers.
const (
	ColumnDate         = "Date"
	ColumnCity         = "City"
	ColumnCustomerType = "Customer_type"
	ColumnGender       = "Gender"
	ColumnProductLine  = "Product line"
	ColumnQuantity     = "Quantity"
	ColumnTotal        = "Total"
	ColumnPayment      = "Payment"
)

var RequiredColumns = []string{
	ColumnDate,
	ColumnCity,
	ColumnCustomerType,
	ColumnGender,
	ColumnProductLine,
	ColumnQuantity,
	ColumnTotal,
	ColumnPayment,
}

// fieldError remembers where a typed column failed so that the earliest
// failure is reported no matter which column parser finished first.
type fieldError struct {
	row int
	err *errors.AppError
}

// LoadCSV parses a sales table with a header row into a Dataset. Either the
// whole table parses or an error is returned; a partial dataset is never
// produced.
func LoadCSV(ctx context.Context, r io.Reader, dateLayouts []string) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, errors.DataFormatWrap(df.Err, "unreadable sales table")
	}

	columns, err := resolveColumns(df.Names())
	if err != nil {
		return nil, err
	}

	if df.Nrow() == 0 {
		return nil, errors.DataFormat("sales table contains no records")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := make(map[string][]string, len(RequiredColumns))
	for _, name := range RequiredColumns {
		raw[name] = df.Col(columns[name]).Records()
	}

	n := df.Nrow()
	var (
		dates      []time.Time
		quantities []int
		totals     []decimal.Decimal
		failures   [3]*fieldError
	)

	var g errgroup.Group
	g.Go(func() error {
		dates, failures[0] = parseDates(raw[ColumnDate], dateLayouts)
		return nil
	})
	g.Go(func() error {
		quantities, failures[1] = parseQuantities(raw[ColumnQuantity])
		return nil
	})
	g.Go(func() error {
		totals, failures[2] = parseTotals(raw[ColumnTotal])
		return nil
	})
	_ = g.Wait()

	var first *fieldError
	for _, f := range failures {
		if f != nil && (first == nil || f.row < first.row) {
			first = f
		}
	}
	if first != nil {
		return nil, first.err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]models.Record, n)
	for i := range n {
		records[i] = models.Record{
			Date:          dates[i],
			City:          strings.TrimSpace(raw[ColumnCity][i]),
			CustomerType:  strings.TrimSpace(raw[ColumnCustomerType][i]),
			Gender:        strings.TrimSpace(raw[ColumnGender][i]),
			ProductLine:   strings.TrimSpace(raw[ColumnProductLine][i]),
			PaymentMethod: strings.TrimSpace(raw[ColumnPayment][i]),
			Quantity:      quantities[i],
			Total:         totals[i],
		}
	}

	return models.NewDataset(records), nil
}

// utf8BOM prefixes the first header of many spreadsheet exports.
const utf8BOM = "\ufeff"

// resolveColumns maps each required column to the header name as it appears
// in the file, tolerating surrounding whitespace and a leading byte order mark.
func resolveColumns(headers []string) (map[string]string, error) {
	byTrimmed := make(map[string]string, len(headers))
	for _, h := range headers {
		byTrimmed[strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))] = h
	}

	columns := make(map[string]string, len(RequiredColumns))
	var missing []string
	for _, name := range RequiredColumns {
		actual, ok := byTrimmed[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		columns[name] = actual
	}

	if len(missing) > 0 {
		return nil, errors.DataFormat("missing required column").
			WithDetails("columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

// rowNumber converts a data index to its 1-based line in the file.
func rowNumber(i int) int {
	return i + 2
}

func parseDates(values []string, layouts []string) ([]time.Time, *fieldError) {
	out := make([]time.Time, len(values))
	for i, v := range values {
		d, err := parseDate(strings.TrimSpace(v), layouts)
		if err != nil {
			return nil, &fieldError{row: rowNumber(i), err: errors.ValueParse(err, rowNumber(i), ColumnDate, v)}
		}
		out[i] = d
	}
	return out, nil
}

// parseDate tries each layout in order and truncates the result to its
// calendar day.
func parseDate(value string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("no date layout matches %q", value)
}

func parseQuantities(values []string) ([]int, *fieldError) {
	out := make([]int, len(values))
	for i, v := range values {
		q, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil && q < 0 {
			err = fmt.Errorf("quantity must not be negative")
		}
		if err != nil {
			return nil, &fieldError{row: rowNumber(i), err: errors.ValueParse(err, rowNumber(i), ColumnQuantity, v)}
		}
		out[i] = q
	}
	return out, nil
}

func parseTotals(values []string) ([]decimal.Decimal, *fieldError) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err == nil && d.IsNegative() {
			err = fmt.Errorf("total must not be negative")
		}
		if err != nil {
			return nil, &fieldError{row: rowNumber(i), err: errors.ValueParse(err, rowNumber(i), ColumnTotal, v)}
		}
		out[i] = d
	}
	return out, nil
}
