package traits

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one numeric column.
type Summary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
}

// Summarize returns statistics for every column whose non-empty cells all
// parse as numbers. Columns with no values are skipped.
func Summarize(t *Table) []Summary {
	var out []Summary
	for i, name := range t.Columns {
		if name == ModelColumn {
			continue
		}
		vals, ok := numeric(t, i)
		if !ok || len(vals) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if math.IsNaN(std) {
			std = 0
		}
		out = append(out, Summary{
			Column: name,
			Count:  len(vals),
			Mean:   mean,
			Std:    std,
			Min:    floats.Min(vals),
			Max:    floats.Max(vals),
		})
	}
	return out
}

func numeric(t *Table, col int) ([]float64, bool) {
	vals := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		cell := row[col]
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		vals = append(vals, v)
	}
	return vals, true
}

// SummaryTable lays summaries out as a table for CSV export.
func SummaryTable(s []Summary) *Table {
	t := &Table{Columns: []string{"column", "count", "mean", "std", "min", "max"}}
	for _, x := range s {
		t.Rows = append(t.Rows, []string{
			x.Column,
			strconv.Itoa(x.Count),
			formatFloat(x.Mean),
			formatFloat(x.Std),
			formatFloat(x.Min),
			formatFloat(x.Max),
		})
	}
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
