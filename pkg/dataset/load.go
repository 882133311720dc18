package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ReadCSV parses CSV with a header row. Cell values that parse as
// integers or floats are typed accordingly; everything else stays a
// string. Empty cells become nil.
func ReadCSV(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return Dataset{}, fmt.Errorf("reading csv header: %w", err)
	}

	ds := Dataset{Columns: header}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("reading csv row: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = typedCell(cell)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func typedCell(cell string) any {
	if cell == "" {
		return nil
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}

// ReadJSON parses either a JSON array of objects or newline-delimited
// JSON objects. Column order is the sorted union of keys; missing keys
// become nil.
func ReadJSON(r io.Reader) (Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Dataset{}, err
	}

	var records []map[string]any
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &records); err != nil {
			return Dataset{}, fmt.Errorf("parsing json array: %w", err)
		}
	} else {
		sc := bufio.NewScanner(strings.NewReader(trimmed))
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return Dataset{}, fmt.Errorf("parsing ndjson line: %w", err)
			}
			records = append(records, rec)
		}
		if err := sc.Err(); err != nil {
			return Dataset{}, err
		}
	}

	keys := map[string]bool{}
	for _, rec := range records {
		for k := range rec {
			keys[k] = true
		}
	}
	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	ds := Dataset{Columns: columns}
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = rec[col]
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// LoadFile reads one data file into a dataset based on its extension.
// Supported: .csv, .json, .jsonl, .ndjson.
func LoadFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ReadCSV(f)
	case ".json", ".jsonl", ".ndjson":
		return ReadJSON(f)
	default:
		return Dataset{}, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// Stem returns the filename without directory or extension, the raw
// input to table-name sanitization.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
