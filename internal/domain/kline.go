package domain

import "time"

// Kline represents a single candlestick data point fetched from an
// exchange. The core only consumes close prices; the rest is kept for
// CSV round-trips and future use by external collaborators.
type Kline struct {
	OpenTime  time.Time
	CloseTime time.Time
	Symbol    string
	Interval  string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ClosePrices extracts the close series from a kline slice.
func ClosePrices(klines []*Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// OpenTimes extracts the bar timestamps from a kline slice.
func OpenTimes(klines []*Kline) []time.Time {
	out := make([]time.Time, len(klines))
	for i, k := range klines {
		out[i] = k.OpenTime
	}
	return out
}
