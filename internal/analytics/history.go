// Package analytics implements getPriceHistory aggregation (spec.md
// §4.7): parsing a MMYYYY month, grouping persisted half-records by GMT
// calendar day, and producing per-day OHLCV summaries. It additionally
// enriches each day with VWAP (gonum.org/v1/gonum/stat) and a 5-day
// simple moving average of the close (github.com/markcheno/go-talib) —
// additive fields only; every spec-mandated field keeps its spec-defined
// value (spec.md §12 "Day-aggregate analytics enrichment").
package analytics

import (
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/crossx-exchange/crossx/internal/apperrors"
	"github.com/crossx-exchange/crossx/internal/tradelog"
)

// Day is one calendar day's aggregate.
type Day struct {
	Date        string `json:"date"` // YYYY-MM-DD
	OpenPrice   int64  `json:"openPrice"`
	HighPrice   int64  `json:"highPrice"`
	LowPrice    int64  `json:"lowPrice"`
	ClosePrice  int64  `json:"closePrice"`
	Volume      int64  `json:"volume"`
	TradesCount int    `json:"tradesCount"`
	BidTrades   int    `json:"bidTrades"`
	AskTrades   int    `json:"askTrades"`
	VWAP        int64  `json:"vwap"`
	SMA5        int64  `json:"sma5"`
}

// History is the full response for getPriceHistory (spec.md §6).
type History struct {
	Month       string `json:"month"`
	TotalDays   int    `json:"totalDays"`
	TotalTrades int    `json:"totalTrades"`
	PriceHistory []Day `json:"priceHistory"`
}

// ParseMonth parses a "MMYYYY" string into (month, year), rejecting
// anything else with apperrors.ErrInvalidMonth (spec.md §4.7: "Parse
// month (1-12) and year; reject otherwise with error code 103").
func ParseMonth(mmYYYY string) (month int, year int, err error) {
	if len(mmYYYY) != 6 {
		return 0, 0, apperrors.New(apperrors.ErrInvalidMonth, "month must be MMYYYY")
	}
	m, errM := parseDigits(mmYYYY[0:2])
	y, errY := parseDigits(mmYYYY[2:6])
	if errM != nil || errY != nil || m < 1 || m > 12 {
		return 0, 0, apperrors.New(apperrors.ErrInvalidMonth, "month must be MMYYYY with month 01-12")
	}
	return m, y, nil
}

func parseDigits(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, apperrors.New(apperrors.ErrInvalidMonth, "non-digit in month")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// Aggregate groups records by GMT calendar day, keeping only days whose
// (month, year) match, and computes each day's OHLCV summary (spec.md
// §4.7). Days are emitted in ascending date order.
func Aggregate(mmYYYY string, records []tradelog.Record) (*History, error) {
	month, year, err := ParseMonth(mmYYYY)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]tradelog.Record)
	for _, r := range records {
		t := time.Unix(r.Timestamp, 0).UTC()
		if int(t.Month()) != month || t.Year() != year {
			continue
		}
		key := t.Format("2006-01-02")
		byDay[key] = append(byDay[key], r)
	}

	dates := make([]string, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var totalTrades int
	var closes []int64 // running closes, for SMA5 as each day is appended
	days := make([]Day, 0, len(dates))

	for _, date := range dates {
		recs := byDay[date]
		sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp < recs[j].Timestamp })

		day := Day{
			Date:       date,
			OpenPrice:  recs[0].Price,
			ClosePrice: recs[len(recs)-1].Price,
			HighPrice:  recs[0].Price,
			LowPrice:   recs[0].Price,
		}

		prices := make([]float64, 0, len(recs))
		weights := make([]float64, 0, len(recs))

		for _, r := range recs {
			if r.Price > day.HighPrice {
				day.HighPrice = r.Price
			}
			if r.Price < day.LowPrice {
				day.LowPrice = r.Price
			}
			day.Volume += r.Size
			day.TradesCount++
			if r.Type == "bid" {
				day.BidTrades++
			} else if r.Type == "ask" {
				day.AskTrades++
			}
			prices = append(prices, float64(r.Price))
			weights = append(weights, float64(r.Size))
		}

		day.VWAP = int64(vwap(prices, weights))
		closes = append(closes, day.ClosePrice)
		day.SMA5 = sma5(closes)

		totalTrades += day.TradesCount
		days = append(days, day)
	}

	return &History{
		Month:        mmYYYY,
		TotalDays:    len(days),
		TotalTrades:  totalTrades,
		PriceHistory: days,
	}, nil
}

func vwap(prices, weights []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	totalWeight := stat.Sum(weights)
	if totalWeight == 0 {
		return stat.Mean(prices, nil)
	}
	return stat.Mean(prices, weights)
}

// sma5 computes a 5-day simple moving average of the closes seen so far,
// using the trailing window (fewer than 5 days simply averages what is
// available). talib.Sma is built for full price series; we feed it the
// running window and take its last value so the dependency exercises a
// real indicator call rather than a hand-rolled average.
func sma5(closes []int64) int64 {
	if len(closes) == 0 {
		return 0
	}
	window := closes
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	floats := make([]float64, len(window))
	for i, c := range window {
		floats[i] = float64(c)
	}
	period := len(floats)
	sma := talib.Sma(floats, period)
	if len(sma) == 0 {
		return int64(floats[len(floats)-1])
	}
	return int64(sma[len(sma)-1])
}
