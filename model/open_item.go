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
	"time"

	"github.com/shopspring/decimal"
	"github.com/wacul/ptr"
)

type OpenItemStatus string

const (
	OpenItemStatusOpen    OpenItemStatus = "open"
	OpenItemStatusMatched OpenItemStatus = "matched"
)

// OpenItem is a financial event already entered through another flow (a customer payment,
// a bill payment, or an earlier statement row) that a bank row may turn out to duplicate.
// Amount is signed the same way as ImportedTransaction.Amount.
type OpenItem struct {
	ID                   int64             `json:"-"`
	ItemID               string            `json:"item_id"`
	ItemType             MatchedEntityType `json:"item_type"`
	DocumentNumber       string            `json:"document_number,omitempty"`
	Reference            string            `json:"reference,omitempty"`
	Description          string            `json:"description,omitempty"`
	Amount               decimal.Decimal   `json:"amount"`
	Date                 time.Time         `json:"date"`
	SourceAccountID      *string           `json:"source_account_id,omitempty"`
	LedgerAccountID      *string           `json:"ledger_account_id,omitempty"`
	Status               OpenItemStatus    `json:"status"`
	MatchedTransactionID *string           `json:"matched_transaction_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// OpenItemFromImported presents an earlier statement row as a match candidate.
func OpenItemFromImported(txn ImportedTransaction) OpenItem {
	return OpenItem{
		ItemID:          txn.TransactionID,
		ItemType:        EntityImportedTransaction,
		Description:     txn.Description,
		Amount:          txn.Amount,
		Date:            txn.TransactionDate,
		SourceAccountID: ptr.String(txn.SourceAccountID),
		Status:          OpenItemStatusOpen,
		CreatedAt:       txn.CreatedAt,
	}
}
