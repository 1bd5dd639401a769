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

package model

import (
	"fmt"
	"time"
)

type BatchStatus string

const (
	BatchStatusImported   BatchStatus = "imported"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusProcessed  BatchStatus = "processed"
	BatchStatusFailed     BatchStatus = "failed"
)

// RowError describes one statement row that could not be turned into a transaction.
type RowError struct {
	Row               int    `json:"row"`
	AccountIdentifier string `json:"account_identifier,omitempty"`
	Field             string `json:"field,omitempty"`
	Message           string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ImportBatch records one statement import and, once processed, its matching outcome.
type ImportBatch struct {
	ID            int64       `json:"-"`
	BatchID       string      `json:"batch_id"`
	FileName      string      `json:"file_name,omitempty"`
	Dialect       string      `json:"dialect"`
	TotalRows     int         `json:"total_rows"`
	Imported      int         `json:"imported"`
	Skipped       int         `json:"skipped"`
	Failed        int         `json:"failed"`
	Errors        []RowError  `json:"errors,omitempty"`
	Status        BatchStatus `json:"status"`
	Matched       int         `json:"matched"`
	Suggested     int         `json:"suggested"`
	Uncategorized int         `json:"uncategorized"`
	ArchiveKey    string      `json:"archive_key,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty"`
}
