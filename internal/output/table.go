// Package output writes simulated market records as datasets: CSV, XLSX and a
// JSON metadata sidecar.
package output

import (
	"strconv"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/internal/market"
	"github.com/GoSim-25-26J-441/marketsim/internal/simulate"
)

// TimestampLayout formats the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// RegimeSuffix is appended to a variable name to form its regime column.
const RegimeSuffix = "_regime"

// Table is records laid out as fixed columns: timestamp, price, q_cleared,
// Q_<tech> per technology, every driver value, then every driver's regime.
type Table struct {
	Columns []string
	records []simulate.Record
	values  []string
	regimes []string
}

// NewTable lays out records. Driver columns are the sorted union over all
// records; an absent value is written as an empty cell.
func NewTable(records []simulate.Record) *Table {
	t := &Table{
		records: records,
		values:  simulate.ValueNames(records),
		regimes: simulate.RegimeNames(records),
	}
	t.Columns = append(t.Columns, "timestamp", "price", "q_cleared")
	for _, tech := range market.Technologies {
		t.Columns = append(t.Columns, "Q_"+tech)
	}
	t.Columns = append(t.Columns, t.values...)
	for _, name := range t.regimes {
		t.Columns = append(t.Columns, name+RegimeSuffix)
	}
	return t
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.records) }

// Row returns row i as typed cells: time.Time, float64, string or nil for
// an absent value.
func (t *Table) Row(i int) []any {
	r := t.records[i]
	row := make([]any, 0, len(t.Columns))
	row = append(row, r.Timestamp, r.Price, r.Quantity)
	for _, tech := range market.Technologies {
		row = append(row, r.Output.Get(tech))
	}
	for _, name := range t.values {
		if v, ok := r.Values[name]; ok {
			row = append(row, v)
		} else {
			row = append(row, nil)
		}
	}
	for _, name := range t.regimes {
		row = append(row, r.Regimes[name])
	}
	return row
}

// StringRow returns row i formatted for text output.
func (t *Table) StringRow(i int) []string {
	cells := t.Row(i)
	out := make([]string, len(cells))
	for j, c := range cells {
		out[j] = formatCell(c)
	}
	return out
}

func formatCell(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format(TimestampLayout)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	}
	return ""
}

// RowMap returns row i keyed by column name. Timestamps are formatted with
// TimestampLayout and absent values are nil.
func (t *Table) RowMap(i int) map[string]any {
	cells := t.Row(i)
	out := make(map[string]any, len(cells))
	for j, c := range cells {
		if ts, ok := c.(time.Time); ok {
			c = ts.Format(TimestampLayout)
		}
		out[t.Columns[j]] = c
	}
	return out
}
