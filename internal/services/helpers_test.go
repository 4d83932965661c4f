package services

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// sampleRecords mirrors the worked example: two Yangon sales and one
// Naypyitaw sale.
func sampleRecords() []models.Record {
	return []models.Record{
		{
			Date:          day(2019, time.January, 5),
			City:          "Yangon",
			CustomerType:  "Member",
			Gender:        "Female",
			ProductLine:   "Health and beauty",
			PaymentMethod: "Ewallet",
			Quantity:      7,
			Total:         dec("100"),
		},
		{
			Date:          day(2019, time.March, 8),
			City:          "Yangon",
			CustomerType:  "Normal",
			Gender:        "Male",
			ProductLine:   "Electronic accessories",
			PaymentMethod: "Cash",
			Quantity:      5,
			Total:         dec("50"),
		},
		{
			Date:          day(2019, time.March, 8),
			City:          "Naypyitaw",
			CustomerType:  "Normal",
			Gender:        "Female",
			ProductLine:   "Health and beauty",
			PaymentMethod: "Credit card",
			Quantity:      3,
			Total:         dec("75"),
		},
	}
}

var (
	fakeCities        = []string{"Yangon", "Naypyitaw", "Mandalay"}
	fakeCustomerTypes = []string{"Member", "Normal"}
	fakeGenders       = []string{"Female", "Male"}
	fakeProductLines  = []string{"Health and beauty", "Electronic accessories", "Home and lifestyle", "Sports and travel", "Food and beverages", "Fashion accessories"}
	fakePayments      = []string{"Ewallet", "Cash", "Credit card"}
)

// fakeRecords builds n deterministic pseudo-random sales for property tests.
func fakeRecords(seed uint64, n int) []models.Record {
	f := gofakeit.New(seed)
	start := day(2019, time.January, 1)

	records := make([]models.Record, n)
	for i := range records {
		cents := f.IntRange(1000, 105000)
		records[i] = models.Record{
			Date:          start.AddDate(0, 0, f.IntRange(0, 89)),
			City:          f.RandomString(fakeCities),
			CustomerType:  f.RandomString(fakeCustomerTypes),
			Gender:        f.RandomString(fakeGenders),
			ProductLine:   f.RandomString(fakeProductLines),
			PaymentMethod: f.RandomString(fakePayments),
			Quantity:      f.IntRange(1, 10),
			Total:         decimal.New(int64(cents), -2),
		}
	}
	return records
}
