package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/vies-crawler/internal/flatten"
)

// ErrUnknownFormat is returned by New for unsupported format names.
var ErrUnknownFormat = errors.New("unknown output format")

// Format names accepted by New.
const (
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatTable = "table"
)

// Serializer writes records to a destination and returns how many it wrote.
type Serializer interface {
	Serialize(ctx context.Context, dst *Destination, records iter.Seq[flatten.Value]) (int, error)
}

// New returns the serializer for format. delimiter joins flattened keys for
// the tabular formats.
func New(format, delimiter string) (Serializer, error) {
	if delimiter == "" {
		delimiter = flatten.DefaultDelimiter
	}
	switch strings.ToLower(format) {
	case FormatJSON, "jsonl":
		return JSONLines{}, nil
	case FormatCSV:
		return CSV{Delimiter: delimiter}, nil
	case FormatTable:
		return Table{Delimiter: delimiter}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// CSV writes flattened records under a header fixed by the first record, or by
// the header already present in a resumed file.
type CSV struct {
	Delimiter string
}

// Serialize implements Serializer. Each row is flushed as soon as it is
// written so an interrupted run loses at most the row in flight.
func (c CSV) Serialize(ctx context.Context, dst *Destination, records iter.Seq[flatten.Value]) (int, error) {
	schema, err := existingHeader(dst)
	if err != nil {
		return 0, err
	}
	w := csv.NewWriter(dst)
	written := 0
	for rec := range records {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("csv serialize: %w", err)
		}
		row := flatten.Collect(rec, c.delimiter())
		if schema == nil {
			// A record without scalar fields cannot fix the header.
			if len(row.Keys) == 0 {
				continue
			}
			schema = row.Keys
			if err := w.Write(schema); err != nil {
				return written, fmt.Errorf("write csv header: %w", err)
			}
		}
		if err := w.Write(row.Project(schema)); err != nil {
			return written, fmt.Errorf("write csv row: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return written, fmt.Errorf("flush csv row: %w", err)
		}
		written++
	}
	return written, nil
}

func (c CSV) delimiter() string {
	if c.Delimiter == "" {
		return flatten.DefaultDelimiter
	}
	return c.Delimiter
}

func existingHeader(dst *Destination) ([]string, error) {
	if !dst.Resumed {
		return nil, nil
	}
	if dst.FirstLine == "" {
		// Scalar records flatten to the single empty key, written as a blank line.
		return []string{""}, nil
	}
	header, err := csv.NewReader(strings.NewReader(dst.FirstLine)).Read()
	if err != nil {
		return nil, fmt.Errorf("parse existing header of %s: %w", dst.Name(), err)
	}
	return header, nil
}

// JSONLines writes one compact JSON object per line, keeping nesting and key order.
type JSONLines struct{}

// Serialize implements Serializer.
func (JSONLines) Serialize(ctx context.Context, dst *Destination, records iter.Seq[flatten.Value]) (int, error) {
	written := 0
	for rec := range records {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("jsonl serialize: %w", err)
		}
		// Direct call keeps markup characters unescaped; json.Marshal would
		// re-escape them.
		line, err := rec.MarshalJSON()
		if err != nil {
			return written, fmt.Errorf("encode record: %w", err)
		}
		if _, err := dst.Write(append(line, '\n')); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Table renders flattened records as a rounded terminal table once the stream
// ends. The first record fixes the columns.
type Table struct {
	Delimiter string
}

// Serialize implements Serializer.
func (t Table) Serialize(ctx context.Context, dst *Destination, records iter.Seq[flatten.Value]) (int, error) {
	delim := t.Delimiter
	if delim == "" {
		delim = flatten.DefaultDelimiter
	}
	var (
		schema []string
		rows   []table.Row
	)
	for rec := range records {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("table serialize: %w", err)
		}
		row := flatten.Collect(rec, delim)
		if schema == nil {
			if len(row.Keys) == 0 {
				continue
			}
			schema = row.Keys
		}
		cells := row.Project(schema)
		tr := make(table.Row, len(cells))
		for i, c := range cells {
			tr[i] = c
		}
		rows = append(rows, tr)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetOutputMirror(dst)
	header := make(table.Row, len(schema))
	for i, k := range schema {
		header[i] = k
	}
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
	return len(rows), nil
}
