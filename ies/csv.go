package ies

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes the table as CSV: one header record of column names
// followed by one record per row. Cells render with [Value.String], so
// integral numbers carry no fraction.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
