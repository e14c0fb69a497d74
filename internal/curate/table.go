package curate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Table is a header plus string rows. Cells are kept verbatim.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a delimited file whose first record is the header.
func ReadTable(path string, comma rune) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var table Table
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read %s: %w", path, err)
		}
		if table.Header == nil {
			table.Header = record
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	if table.Header == nil {
		return Table{}, fmt.Errorf("read %s: empty table", path)
	}
	return table, nil
}

// Drop returns a copy of t without the named columns. Absent names are ignored.
func (t Table) Drop(names ...string) Table {
	if len(names) == 0 {
		return t
	}
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	keep := make([]int, 0, len(t.Header))
	for i, name := range t.Header {
		if _, ok := drop[name]; !ok {
			keep = append(keep, i)
		}
	}
	out := Table{Header: pick(t.Header, keep)}
	for _, row := range t.Rows {
		out.Rows = append(out.Rows, pick(row, keep))
	}
	return out
}

func pick(values []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		if j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

// Concat joins tables side by side. Row i of the result holds row i of every
// table; tables with fewer rows (or short rows) contribute empty cells. The
// first column is an unnamed zero-based row index.
func Concat(tables ...Table) Table {
	width := 0
	height := 0
	for _, t := range tables {
		width += len(t.Header)
		if len(t.Rows) > height {
			height = len(t.Rows)
		}
	}

	out := Table{Header: make([]string, 0, width+1)}
	out.Header = append(out.Header, "")
	for _, t := range tables {
		out.Header = append(out.Header, t.Header...)
	}

	for i := 0; i < height; i++ {
		row := make([]string, 0, width+1)
		row = append(row, strconv.Itoa(i))
		for _, t := range tables {
			var src []string
			if i < len(t.Rows) {
				src = t.Rows[i]
			}
			for j := range t.Header {
				if j < len(src) {
					row = append(row, src[j])
				} else {
					row = append(row, "")
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Write encodes the table as comma-separated values.
func (t Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}
