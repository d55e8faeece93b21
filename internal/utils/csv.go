package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"pairsTradingBot/internal/domain"
)

func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"})

	for _, k := range klines {
		writer.Write([]string{
			k.OpenTime.Format(time.RFC3339),
			k.CloseTime.Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

func ReadKlinesFromCSV(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("no kline rows in %s", filename)
	}

	klines := make([]*domain.Kline, 0, len(records)-1)
	for i, rec := range records[1:] { // skip header
		if len(rec) != 9 {
			return nil, fmt.Errorf("row %d of %s: expected 9 columns, got %d", i+2, filename, len(rec))
		}
		k := &domain.Kline{Symbol: rec[2], Interval: rec[3]}
		if k.OpenTime, err = time.Parse(time.RFC3339, rec[0]); err != nil {
			return nil, fmt.Errorf("row %d of %s: parsing open_time: %w", i+2, filename, err)
		}
		if k.CloseTime, err = time.Parse(time.RFC3339, rec[1]); err != nil {
			return nil, fmt.Errorf("row %d of %s: parsing close_time: %w", i+2, filename, err)
		}
		if k.Open, err = strconv.ParseFloat(rec[4], 64); err != nil {
			return nil, fmt.Errorf("row %d of %s: parsing open: %w", i+2, filename, err)
		}
		if k.High, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return nil, fmt.Errorf("row %d of %s: parsing high: %w", i+2, filename, err)
		}
		if k.Low, err = strconv.ParseFloat(rec[6], 64); err != nil {
			return nil, fmt.Errorf("row %d of %s: parsing low: %w", i+2, filename, err)
		}
		if k.Close, err = strconv.ParseFloat(rec[7], 64); err != nil {
			return nil, fmt.Errorf("row %d of %s: parsing close: %w", i+2, filename, err)
		}
		if k.Volume, err = strconv.ParseFloat(rec[8], 64); err != nil {
			return nil, fmt.Errorf("row %d of %s: parsing volume: %w", i+2, filename, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// AlignKlines intersects two kline series on their open timestamps and
// returns the aligned close price series plus the shared timestamps.
// Bars present in only one series are dropped.
func AlignKlines(k1, k2 []*domain.Kline) (series1, series2 []float64, times []time.Time) {
	byTime := make(map[int64]*domain.Kline, len(k2))
	for _, k := range k2 {
		byTime[k.OpenTime.UnixMilli()] = k
	}

	for _, k := range k1 {
		other, ok := byTime[k.OpenTime.UnixMilli()]
		if !ok {
			continue
		}
		series1 = append(series1, k.Close)
		series2 = append(series2, other.Close)
		times = append(times, k.OpenTime)
	}
	return series1, series2, times
}
