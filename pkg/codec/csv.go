package codec

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

type csvCodec struct {
	policy CSVPolicy
}

// Decode reads comma separated records. With a header policy the first
// record names the columns and each following record becomes a map of its
// first min(columns, fields) cells; otherwise records stay lists.
func (c csvCodec) Decode(data []byte) (types.Value, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var header []string
	rows := []types.Value{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Null, err
		}
		if !c.policy.Header {
			cells := make([]types.Value, len(record))
			for i, cell := range record {
				cells[i] = types.NewString(cell)
			}
			rows = append(rows, types.NewList(cells))
			continue
		}
		if header == nil {
			header = record
			continue
		}
		m := types.NewOrderedMap()
		for i := 0; i < len(header) && i < len(record); i++ {
			m.Set(header[i], types.NewString(record[i]))
		}
		rows = append(rows, types.NewMap(m))
	}
	return types.NewList(rows), nil
}

// Encode writes a list of maps under a header row. Columns are discovered
// from the records until the column count has stayed the same for
// MinRun consecutive records. Lists of lists are written as rows, a map as
// one record and anything else as a single cell.
func (c csvCodec) Encode(v types.Value) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var records []types.Value
	switch v.Type() {
	case types.TypeNull:
		return []byte{}, nil
	case types.TypeList, types.TypeSet:
		records = v.AsList()
	default:
		records = []types.Value{v}
	}

	columns := c.discoverColumns(records)
	if len(columns) > 0 {
		if err := w.Write(columns); err != nil {
			return nil, err
		}
	}
	for _, rec := range records {
		var row []string
		switch {
		case rec.Type() == types.TypeMap:
			m := rec.AsMap()
			row = make([]string, len(columns))
			for i, col := range columns {
				if cell, ok := m.Get(col); ok {
					row[i] = Stringify(cell)
				}
			}
		case rec.IsCollection():
			for _, cell := range rec.AsList() {
				row = append(row, Stringify(cell))
			}
		default:
			row = []string{Stringify(rec)}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (c csvCodec) discoverColumns(records []types.Value) []string {
	var columns []string
	seen := map[string]bool{}
	stable := 0
	for _, rec := range records {
		if rec.Type() != types.TypeMap {
			continue
		}
		before := len(columns)
		for _, k := range rec.AsMap().Keys() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		if len(columns) == before {
			stable++
			if stable >= c.policy.MinRun {
				break
			}
		} else {
			stable = 0
		}
	}
	return columns
}
