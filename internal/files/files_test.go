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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   rune
	}{
		{"comma", "Date,Description,Amount", ','},
		{"semicolon", "Datum;Omschrijving;Bedrag", ';'},
		{"tab", "Date\tDescription\tAmount", '\t'},
		{"quoted commas ignored", `"Date; posted";"Desc, long";Amount`, ';'},
		{"single column defaults to comma", "Date", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter([]byte(tt.header)))
		})
	}
}

func TestDetectFileType(t *testing.T) {
	fileType, err := DetectFileType([]byte("a,b\n1,2\n"), "statement.csv")
	require.NoError(t, err)
	assert.Equal(t, TypeCSV, fileType)

	fileType, err = DetectFileType([]byte(`[{"date":"2024-01-01"}]`), "")
	require.NoError(t, err)
	assert.Equal(t, TypeJSON, fileType)

	fileType, err = DetectFileType([]byte("date;amount\n2024-01-01;5\n"), "")
	require.NoError(t, err)
	assert.Equal(t, TypeCSV, fileType)
}

func TestReadTableCSV(t *testing.T) {
	data := "\xEF\xBB\xBFDate,Description,Amount\n2024-03-01,STAPLES #4521,-50.00\n\n,,\n2024-03-02,\"Coffee, large\",-4.50\n"
	table, err := ReadTable([]byte(data), "bank.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Description", "Amount"}, table.Header)
	require.Len(t, table.Records, 2)
	assert.Equal(t, 1, table.Records[0].Row)
	assert.Equal(t, "STAPLES #4521", table.Records[0].Fields[1])
	assert.Equal(t, 2, table.Records[1].Row)
	assert.Equal(t, "Coffee, large", table.Records[1].Fields[1])
}

func TestReadTableSemicolon(t *testing.T) {
	table, err := ReadTable([]byte("Date;Description;Amount\n01/03/2024;Rent;-1200,00\n"), "export.csv")
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "-1200,00", table.Records[0].Fields[2])
}

func TestReadTableJSONFeed(t *testing.T) {
	data := `{"transactions": [
		{"date": "2024-03-01", "description": "Deposit", "amount": 500.25},
		{"date": "2024-03-02", "description": "Fee", "amount": -2, "category": null},
		"garbage"
	]}`
	table, err := ReadTable([]byte(data), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"amount", "category", "date", "description"}, table.Header)
	require.Len(t, table.Records, 3)
	assert.Equal(t, []string{"500.25", "", "2024-03-01", "Deposit"}, table.Records[0].Fields)
	assert.Equal(t, "-2", table.Records[1].Fields[0])
	assert.Error(t, table.Records[2].Err)
}

func TestReadTableEmpty(t *testing.T) {
	_, err := ReadTable([]byte("   \n"), "empty.csv")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ReadTable([]byte(`[]`), "feed.json")
	assert.ErrorIs(t, err, ErrEmpty)
}
