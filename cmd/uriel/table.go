package main

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// renderTable writes a map, a list of maps or a list of lists as a table
// and reports whether v had one of those shapes.
func renderTable(w io.Writer, v types.Value) bool {
	headers, rows, ok := tableRows(v)
	if !ok {
		return false
	}

	table := tablewriter.NewTable(w, tablewriter.WithHeaderAutoFormat(tw.Off))
	if len(headers) > 0 {
		table.Header(headers)
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return true
}

// tableRows lays v out as cells. Map rows share the union of their keys in
// first-seen order; a missing key is an empty cell.
func tableRows(v types.Value) ([]string, [][]string, bool) {
	switch v.Type() {
	case types.TypeMap:
		m := v.AsMap()
		rows := make([][]string, 0, m.Len())
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			rows = append(rows, []string{k, codec.Stringify(val)})
		}
		return []string{"key", "value"}, rows, true

	case types.TypeList, types.TypeSet:
		items := v.AsList()
		if len(items) == 0 {
			return nil, nil, false
		}
		switch items[0].Type() {
		case types.TypeMap:
			return mapRows(items)
		case types.TypeList, types.TypeSet:
			return nil, listRows(items), true
		}
	}
	return nil, nil, false
}

func mapRows(items []types.Value) ([]string, [][]string, bool) {
	var headers []string
	index := map[string]int{}
	for _, item := range items {
		if item.Type() != types.TypeMap {
			return nil, nil, false
		}
		for _, k := range item.AsMap().Keys() {
			if _, seen := index[k]; !seen {
				index[k] = len(headers)
				headers = append(headers, k)
			}
		}
	}
	rows := make([][]string, len(items))
	for i, item := range items {
		row := make([]string, len(headers))
		m := item.AsMap()
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			row[index[k]] = codec.Stringify(val)
		}
		rows[i] = row
	}
	return headers, rows, true
}

func listRows(items []types.Value) [][]string {
	rows := make([][]string, len(items))
	for i, item := range items {
		var cells []types.Value
		if item.Type() == types.TypeList || item.Type() == types.TypeSet {
			cells = item.AsList()
		} else {
			cells = []types.Value{item}
		}
		row := make([]string, len(cells))
		for j, c := range cells {
			row[j] = codec.Stringify(c)
		}
		rows[i] = row
	}
	return rows
}
