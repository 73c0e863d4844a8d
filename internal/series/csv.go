package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// ImplicitStart anchors single-column files that carry no timestamps.
var ImplicitStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

var timestampColumns = map[string]bool{
	"ts": true, "time": true, "timestamp": true, "date": true, "datetime": true,
}

// ParseTimestamp accepts RFC 3339 and the common "YYYY-MM-DD[ HH:MM[:SS]]"
// layouts; values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return utils.ParseTime(s)
}

// LoadCSV reads a series file from disk. See ReadCSV for the accepted shapes.
func LoadCSV(name, path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open empirical series %s: %w", name, err)
	}
	defer f.Close()

	s, err := ReadCSV(name, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load empirical series '%s' from %s: %w", name, path, err)
	}
	return s, nil
}

// ReadCSV parses either a two-column file (a timestamp column named ts, time,
// timestamp, date or datetime plus a value column) or a single value column
// placed on an hourly grid from ImplicitStart. The result is forward-filled to
// hourly.
func ReadCSV(name string, r io.Reader) (*Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.New("csv has no data rows")
	}
	header := rows[0]
	data := rows[1:]

	if len(header) == 1 {
		values := make([]float64, len(data))
		for i, row := range data {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			values[i] = v
		}
		return Hourly(name, ImplicitStart, values), nil
	}

	tsCol, valCol := -1, -1
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if tsCol < 0 && timestampColumns[key] {
			tsCol = i
		} else if key == "value" {
			valCol = i
		}
	}
	if tsCol < 0 {
		return nil, errors.New("could not find timestamp column (expected ts, time, timestamp, date or datetime)")
	}
	if valCol < 0 {
		for i := range header {
			if i != tsCol {
				valCol = i
				break
			}
		}
	}

	times := make([]time.Time, 0, len(data))
	values := make([]float64, 0, len(data))
	for i, row := range data {
		ts, err := ParseTimestamp(row[tsCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[valCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		times = append(times, ts)
		values = append(values, v)
	}
	s, err := New(name, times, values)
	if err != nil {
		return nil, err
	}
	return s.AsHourly(), nil
}
