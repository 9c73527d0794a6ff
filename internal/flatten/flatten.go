package flatten

import (
	"iter"
	"strconv"
)

// DefaultDelimiter joins path segments when no delimiter is configured.
const DefaultDelimiter = "."

// Flatten walks v depth-first and yields one (path, scalar) pair per leaf.
// Object members contribute their key and array elements their index, joined
// to the parent path with delimiter. A scalar root yields the empty path.
// Empty arrays and objects yield nothing.
func Flatten(v Value, delimiter string) iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		walk(v, "", delimiter, yield)
	}
}

func walk(v Value, prefix, delimiter string, yield func(string, Value) bool) bool {
	switch v.kind {
	case KindObject:
		for _, m := range v.members {
			if !walk(m.Value, join(prefix, delimiter, m.Key), delimiter, yield) {
				return false
			}
		}
		return true
	case KindArray:
		for i, e := range v.elems {
			if !walk(e, join(prefix, delimiter, strconv.Itoa(i)), delimiter, yield) {
				return false
			}
		}
		return true
	default:
		return yield(prefix, v)
	}
}

func join(prefix, delimiter, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + delimiter + key
}

// Row is a flattened record: ordered column keys with their scalar values.
type Row struct {
	Keys   []string
	Values map[string]Value
}

// Collect flattens v into a Row. A path seen twice keeps its first position
// and its last value.
func Collect(v Value, delimiter string) Row {
	row := Row{Values: make(map[string]Value)}
	for key, val := range Flatten(v, delimiter) {
		if _, seen := row.Values[key]; !seen {
			row.Keys = append(row.Keys, key)
		}
		row.Values[key] = val
	}
	return row
}

// Project renders the row onto schema; absent keys become empty cells.
func (r Row) Project(schema []string) []string {
	cells := make([]string, len(schema))
	for i, key := range schema {
		if v, ok := r.Values[key]; ok {
			cells[i] = v.Text()
		}
	}
	return cells
}
