package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// delimited renders a header-first table as one paragraph per row so the
// chunker never splits a row.
func delimited(sep rune) Strategy {
	return func(_ context.Context, content []byte) (string, error) {
		r := csv.NewReader(bytes.NewReader(content))
		r.Comma = sep
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true

		header, err := r.Read()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read header: %w", err)
		}
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}

		var b strings.Builder
		b.WriteString("Table with columns: ")
		b.WriteString(strings.Join(header, ", "))

		row := 0
		for {
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return "", fmt.Errorf("read row %d: %w", row+1, err)
			}
			if isBlank(record) {
				continue
			}
			row++

			cells := make([]string, 0, len(record))
			for i, v := range record {
				v = strings.TrimSpace(v)
				if i < len(header) && header[i] != "" {
					cells = append(cells, header[i]+": "+v)
				} else {
					cells = append(cells, v)
				}
			}
			fmt.Fprintf(&b, "\n\nRow %d: %s", row, strings.Join(cells, ", "))
		}

		return b.String(), nil
	}
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
