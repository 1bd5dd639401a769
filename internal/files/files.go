/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package files

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	TypeCSV  = "text/csv"
	TypeJSON = "application/json"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmpty is returned when a payload carries no header row.
var ErrEmpty = errors.New("statement is empty")

// Record is one data row of a statement. Row counts data rows from 1; the header is not counted.
// Err is set when the row itself could not be read, e.g. an unterminated quote.
type Record struct {
	Row    int
	Fields []string
	Err    error
}

// Table is a statement reduced to a header and its rows, whatever format it arrived in.
type Table struct {
	Header  []string
	Records []Record
}

// ReadTable reads a CSV export or a JSON feed payload into a Table.
func ReadTable(data []byte, filename string) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	fileType, err := DetectFileType(data, filename)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(fileType, TypeJSON):
		return readJSON(data)
	case strings.HasPrefix(fileType, TypeCSV), strings.HasPrefix(fileType, "text/plain"), strings.HasPrefix(fileType, "text/tab-separated-values"):
		return readCSV(data, DetectDelimiter(firstLine(data)))
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

// DetectFileType attempts to detect the file type based on its extension or content.
func DetectFileType(data []byte, filename string) (string, error) {
	if mimeType := DetectByExtension(filename); mimeType != "" {
		return mimeType, nil
	}
	return DetectByContent(data)
}

// DetectByExtension detects the MIME type by the file extension.
func DetectByExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case "":
		return ""
	case ".csv", ".tsv", ".txt":
		return TypeCSV
	}
	return mime.TypeByExtension(ext)
}

// DetectByContent detects the MIME type based on the content of the payload.
func DetectByContent(data []byte) (string, error) {
	mimeType := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(mimeType, "application/octet-stream"), strings.HasPrefix(mimeType, "text/plain"):
		return AnalyzeTextContent(data)
	default:
		return mimeType, nil
	}
}

// AnalyzeTextContent differentiates between CSV, JSON and plain text.
func AnalyzeTextContent(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') && json.Valid(trimmed) {
		return TypeJSON, nil
	}
	if LooksLikeCSV(data) {
		return TypeCSV, nil
	}
	return "text/plain", nil
}

// LooksLikeCSV reports whether the payload has a delimited header with at least two columns.
func LooksLikeCSV(data []byte) bool {
	header := firstLine(data)
	delimiter := DetectDelimiter(header)
	return bytes.Count(header, []byte(string(delimiter))) >= 1
}

// DetectDelimiter picks the most frequent of comma, semicolon and tab in the header line,
// ignoring anything between double quotes. Comma wins ties.
func DetectDelimiter(header []byte) rune {
	counts := map[rune]int{',': 0, ';': 0, '\t': 0}
	inQuotes := false
	for _, r := range string(header) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if _, ok := counts[r]; ok {
			counts[r]++
		}
	}
	best := ','
	for _, candidate := range []rune{';', '\t'} {
		if counts[candidate] > counts[best] {
			best = candidate
		}
	}
	return best
}

func firstLine(data []byte) []byte {
	data = bytes.TrimLeft(data, "\r\n")
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return bytes.TrimRight(data[:i], "\r")
	}
	return data
}

func isBlank(fields []string) bool {
	for _, field := range fields {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func readCSV(data []byte, delimiter rune) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading statement header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &Table{Header: header}
	row := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			row++
			table.Records = append(table.Records, Record{Row: row, Err: errors.Wrapf(err, "reading row %d", row)})
			continue
		}
		if isBlank(fields) {
			continue
		}
		row++
		table.Records = append(table.Records, Record{Row: row, Fields: fields})
	}
	return table, nil
}

// readJSON accepts either an array of objects or an object wrapping one under
// "transactions" or "data", which is how most live feeds deliver rows.
func readJSON(data []byte) (*Table, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding statement feed")
	}

	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		for _, key := range []string{"transactions", "data"} {
			if list, ok := v[key].([]interface{}); ok {
				items = list
				break
			}
		}
		if items == nil {
			return nil, errors.New("statement feed has no transactions array")
		}
	default:
		return nil, errors.New("statement feed must be an array of objects")
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	keys := map[string]struct{}{}
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			for key := range obj {
				keys[key] = struct{}{}
			}
		}
	}
	header := make([]string, 0, len(keys))
	for key := range keys {
		header = append(header, key)
	}
	sort.Strings(header)

	table := &Table{Header: header}
	for i, item := range items {
		row := i + 1
		obj, ok := item.(map[string]interface{})
		if !ok {
			table.Records = append(table.Records, Record{Row: row, Err: fmt.Errorf("row %d is not an object", row)})
			continue
		}
		fields := make([]string, len(header))
		for j, key := range header {
			fields[j] = stringify(obj[key])
		}
		table.Records = append(table.Records, Record{Row: row, Fields: fields})
	}
	return table, nil
}

func stringify(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		if value {
			return "true"
		}
		return "false"
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
