package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/crossx-exchange/crossx/internal/tradelog"
)

func TestParseMonthValid(t *testing.T) {
	month, year, err := ParseMonth("032026")
	assert.NoError(t, err)
	assert.Equal(t, 3, month)
	assert.Equal(t, 2026, year)
}

func TestParseMonthRejectsWrongLength(t *testing.T) {
	_, _, err := ParseMonth("32026")
	assert.Error(t, err)
}

func TestParseMonthRejectsOutOfRange(t *testing.T) {
	_, _, err := ParseMonth("132026")
	assert.Error(t, err)
}

func TestParseMonthRejectsNonDigits(t *testing.T) {
	_, _, err := ParseMonth("0aYYYY")
	assert.Error(t, err)
}

func tsAt(y int, m time.Month, d, h int) int64 {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC).Unix()
}

func TestAggregateGroupsByCalendarDayAndComputesOHLCV(t *testing.T) {
	records := []tradelog.Record{
		{OrderID: 1, Type: "bid", OrderType: "limit", Size: 10, Price: 100, Timestamp: tsAt(2026, time.March, 1, 9)},
		{OrderID: 2, Type: "ask", OrderType: "limit", Size: 5, Price: 110, Timestamp: tsAt(2026, time.March, 1, 15)},
		{OrderID: 3, Type: "bid", OrderType: "limit", Size: 8, Price: 90, Timestamp: tsAt(2026, time.March, 1, 12)},
		{OrderID: 4, Type: "ask", OrderType: "limit", Size: 3, Price: 105, Timestamp: tsAt(2026, time.March, 2, 10)},
	}

	hist, err := Aggregate("032026", records)
	assert.NoError(t, err)
	assert.Equal(t, 2, hist.TotalDays)
	assert.Equal(t, 4, hist.TotalTrades)

	day1 := hist.PriceHistory[0]
	assert.Equal(t, "2026-03-01", day1.Date)
	assert.Equal(t, int64(100), day1.OpenPrice)
	assert.Equal(t, int64(110), day1.HighPrice)
	assert.Equal(t, int64(90), day1.LowPrice)
	assert.Equal(t, int64(110), day1.ClosePrice)
	assert.Equal(t, int64(23), day1.Volume)
	assert.Equal(t, 3, day1.TradesCount)
	assert.Equal(t, 2, day1.BidTrades)
	assert.Equal(t, 1, day1.AskTrades)
}

func TestAggregateExcludesRecordsOutsideRequestedMonth(t *testing.T) {
	records := []tradelog.Record{
		{Type: "bid", Size: 1, Price: 100, Timestamp: tsAt(2026, time.February, 28, 12)},
		{Type: "bid", Size: 1, Price: 100, Timestamp: tsAt(2026, time.March, 1, 12)},
	}

	hist, err := Aggregate("032026", records)
	assert.NoError(t, err)
	assert.Equal(t, 1, hist.TotalDays)
	assert.Equal(t, 1, hist.TotalTrades)
}

func TestAggregateRejectsInvalidMonth(t *testing.T) {
	_, err := Aggregate("notamonth", nil)
	assert.Error(t, err)
}

func TestAggregateEmptyMonthYieldsEmptyHistory(t *testing.T) {
	hist, err := Aggregate("042026", nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, hist.TotalDays)
	assert.Empty(t, hist.PriceHistory)
}
