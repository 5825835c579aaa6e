package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"hedgegraph/internal/domain"
)

// CSVTimeLayout keeps millisecond precision so close times survive a round trip.
const CSVTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var csvHeader = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}

func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteKlines(file, klines); err != nil {
		return err
	}
	return file.Sync()
}

// WriteKlines writes a header row followed by one row per kline.
func WriteKlines(w io.Writer, klines []*domain.Kline) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, k := range klines {
		if k == nil {
			continue
		}
		err := writer.Write([]string{
			k.OpenTime.UTC().Format(CSVTimeLayout),
			k.CloseTime.UTC().Format(CSVTimeLayout),
			k.Symbol,
			string(k.Interval),
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadKlinesFromCSV(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadKlines(file)
}

// ReadKlines parses rows written by WriteKlines. The header row is required.
func ReadKlines(r io.Reader) ([]*domain.Kline, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected column %d %q, want %q", i, header[i], name)
		}
	}

	var klines []*domain.Kline
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		k, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

func parseRecord(record []string) (*domain.Kline, error) {
	openTime, err := time.Parse(CSVTimeLayout, record[0])
	if err != nil {
		return nil, fmt.Errorf("parsing open_time: %w", err)
	}
	closeTime, err := time.Parse(CSVTimeLayout, record[1])
	if err != nil {
		return nil, fmt.Errorf("parsing close_time: %w", err)
	}
	interval, err := domain.ParseInterval(record[3])
	if err != nil {
		return nil, err
	}

	var values [5]float64
	for i := range values {
		values[i], err = strconv.ParseFloat(record[4+i], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", csvHeader[4+i], err)
		}
	}

	return &domain.Kline{
		OpenTime:  openTime.UTC(),
		CloseTime: closeTime.UTC(),
		Symbol:    record[2],
		Interval:  interval,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
