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
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
	StatusPosted   TransactionStatus = "posted"
	// StatusMatched marks a row approved as a link to an existing record. No entry is posted for it.
	StatusMatched TransactionStatus = "matched"
)

// transactionTransitions is the complete set of legal status moves for an imported row.
// Anything not listed here is refused.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusMatched},
	StatusApproved: {StatusPosted},
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPosted, StatusMatched:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s TransactionStatus) IsTerminal() bool {
	return len(transactionTransitions[s]) == 0
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AutoLinks reports whether a match at this tier links records without reviewer judgement.
func (c Confidence) AutoLinks() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium
}

type MatchedEntityType string

const (
	EntityCustomerPayment     MatchedEntityType = "customer_payment"
	EntityBillPayment         MatchedEntityType = "bill_payment"
	EntityImportedTransaction MatchedEntityType = "imported_transaction"
)

func (t MatchedEntityType) Valid() bool {
	switch t {
	case EntityCustomerPayment, EntityBillPayment, EntityImportedTransaction:
		return true
	}
	return false
}

type SuggestionSource string

const (
	SuggestionNone SuggestionSource = ""
	SuggestionRule SuggestionSource = "rule"
	SuggestionAI   SuggestionSource = "ai"
)

// ImportedTransaction is one canonical statement row awaiting review.
// Amount is signed from the source account's point of view: negative means money left it.
type ImportedTransaction struct {
	ID                 int64             `json:"-"`
	TransactionID      string            `json:"transaction_id"`
	BatchID            string            `json:"batch_id"`
	SourceAccountID    string            `json:"source_account_id"`
	RowNumber          int               `json:"row_number"`
	TransactionDate    time.Time         `json:"transaction_date"`
	PostDate           *time.Time        `json:"post_date,omitempty"`
	Description        string            `json:"description"`
	RawCategory        string            `json:"raw_category,omitempty"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	Status             TransactionStatus `json:"status"`
	SuggestedAccountID *string           `json:"suggested_account_id,omitempty"`
	SuggestionSource   SuggestionSource  `json:"suggestion_source,omitempty"`
	SuggestionRuleID   *string           `json:"suggestion_rule_id,omitempty"`
	ApprovedAccountID  *string           `json:"approved_account_id,omitempty"`
	MatchedEntityType  MatchedEntityType `json:"matched_entity_type,omitempty"`
	MatchedEntityID    *string           `json:"matched_entity_id,omitempty"`
	Confidence         *Confidence       `json:"confidence,omitempty"`
	JournalEntryID     *string           `json:"journal_entry_id,omitempty"`
	ImportHash         string            `json:"-"`
	ReviewedBy         string            `json:"reviewed_by,omitempty"`
	RejectionReason    string            `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (t *ImportedTransaction) IsOutflow() bool {
	return t.Amount.IsNegative()
}

// HasUsableMatch reports whether the row is linked to an existing record strongly enough
// that approving it must not post a new entry.
func (t *ImportedTransaction) HasUsableMatch() bool {
	return t.MatchedEntityID != nil && t.Confidence != nil && t.Confidence.AutoLinks()
}

// ResolvedAccountID returns the reviewer's account choice, falling back to the suggestion.
func (t *ImportedTransaction) ResolvedAccountID() *string {
	if t.ApprovedAccountID != nil && *t.ApprovedAccountID != "" {
		return t.ApprovedAccountID
	}
	if t.SuggestedAccountID != nil && *t.SuggestedAccountID != "" {
		return t.SuggestedAccountID
	}
	return nil
}

// TransactionFilter narrows imported-row listings.
type TransactionFilter struct {
	Status          TransactionStatus `json:"status,omitempty"`
	BatchID         string            `json:"batch_id,omitempty"`
	SourceAccountID string            `json:"source_account_id,omitempty"`
}
