package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Row is one data row keyed by lower-cased header. Line is the 1-based
// line number in the file, counting the header as line 1.
type Row struct {
	Line   int
	Fields map[string]string
}

// sniffDelimiter picks the most frequent of , ; and tab in the header line.
func sniffDelimiter(header []byte) rune {
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ReadRows parses a CSV with a header row. Headers are trimmed and
// lower-cased. Rows whose width differs from the header are reported as
// malformed instead of aborting the read.
//
// maxRows limits how many data rows are parsed (excluding header).
func ReadRows(r io.Reader, maxRows int) ([]Row, []RowError, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(4096)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(peek)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, nil, err
	}
	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	if maxRows <= 0 {
		maxRows = 10000
	}

	var rows []Row
	var bad []RowError
	line := 1
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			bad = append(bad, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if len(record) != len(headers) {
			bad = append(bad, RowError{Line: line, Reason: "wrong number of fields"})
			continue
		}

		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			fields[h] = strings.TrimSpace(record[i])
		}
		rows = append(rows, Row{Line: line, Fields: fields})
	}
	return rows, bad, nil
}
