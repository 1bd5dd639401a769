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
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wacul/ptr"
)

type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "draft"
	JournalStatusPosted JournalStatus = "posted"
)

var journalTransitions = map[JournalStatus][]JournalStatus{
	JournalStatusDraft: {JournalStatusPosted},
}

func (s JournalStatus) CanTransitionTo(next JournalStatus) bool {
	for _, allowed := range journalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type JournalSource string

const (
	JournalSourceManual    JournalSource = "manual"
	JournalSourceImported  JournalSource = "imported"
	JournalSourceRecurring JournalSource = "recurring"
	JournalSourceReversal  JournalSource = "reversal"
)

// JournalEntry is a double-entry record. Once Posted it is never edited; corrections are
// new reversing entries.
type JournalEntry struct {
	ID                  int64              `json:"-"`
	JournalEntryID      string             `json:"journal_entry_id"`
	Reference           string             `json:"reference"`
	TransactionDate     time.Time          `json:"transaction_date"`
	Description         string             `json:"description"`
	Status              JournalStatus      `json:"status"`
	Source              JournalSource      `json:"source"`
	SourceTransactionID *string            `json:"source_transaction_id,omitempty"`
	ReversalOf          *string            `json:"reversal_of,omitempty"`
	CreatedBy           string             `json:"created_by"`
	Lines               []JournalEntryLine `json:"lines"`
	PostedAt            *time.Time         `json:"posted_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
}

type JournalEntryLine struct {
	LineID         string          `json:"line_id"`
	JournalEntryID string          `json:"journal_entry_id"`
	LineNumber     int             `json:"line_number"`
	AccountID      string          `json:"account_id"`
	Description    string          `json:"description,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
}

var (
	ErrLineNegative    = errors.New("debit and credit must not be negative")
	ErrLineBothSides   = errors.New("exactly one of debit or credit must be nonzero")
	ErrLineNoAccount   = errors.New("account_id is required")
	ErrLineScale       = errors.New("amount has more decimal places than the currency allows")
	ErrTooFewLines     = errors.New("an entry needs at least two lines")
	ErrEntryUnbalanced = errors.New("total debits do not equal total credits")
)

// Validate checks a single line in isolation.
func (l JournalEntryLine) Validate(scale int32) error {
	if l.AccountID == "" {
		return ErrLineNoAccount
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return ErrLineNegative
	}
	if l.Debit.IsZero() == l.Credit.IsZero() {
		return ErrLineBothSides
	}
	if !HasScale(l.Debit, scale) || !HasScale(l.Credit, scale) {
		return ErrLineScale
	}
	return nil
}

// Amount returns the nonzero side of the line.
func (l JournalEntryLine) Amount() decimal.Decimal {
	if l.Debit.IsPositive() {
		return l.Debit
	}
	return l.Credit
}

// Totals sums both sides of the entry using exact decimal addition.
func (e *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

func (e *JournalEntry) IsBalanced() bool {
	debit, credit := e.Totals()
	return debit.Equal(credit)
}

// ValidateForPosting checks every line and the balance of the entry as a whole.
// It never adjusts amounts to force a balance.
func (e *JournalEntry) ValidateForPosting(scale int32) error {
	if len(e.Lines) < 2 {
		return ErrTooFewLines
	}
	for i, line := range e.Lines {
		if err := line.Validate(scale); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	if !e.IsBalanced() {
		debit, credit := e.Totals()
		return fmt.Errorf("%w: debits %s, credits %s", ErrEntryUnbalanced, debit.StringFixed(scale), credit.StringFixed(scale))
	}
	return nil
}

// Reversed builds the offsetting entry for e: same accounts, sides swapped.
// The receiver is not modified.
func (e *JournalEntry) Reversed(createdBy, description string, date time.Time) *JournalEntry {
	reversal := &JournalEntry{
		Reference:       fmt.Sprintf("REV-%s", e.Reference),
		TransactionDate: date,
		Description:     description,
		Status:          JournalStatusDraft,
		Source:          JournalSourceReversal,
		ReversalOf:      ptr.String(e.JournalEntryID),
		CreatedBy:       createdBy,
		Lines:           make([]JournalEntryLine, 0, len(e.Lines)),
	}
	for _, line := range e.Lines {
		reversal.Lines = append(reversal.Lines, JournalEntryLine{
			LineNumber:  line.LineNumber,
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Credit,
			Credit:      line.Debit,
		})
	}
	return reversal
}

// AccountBalance is the net of posted lines against one account.
type AccountBalance struct {
	AccountID   string          `json:"account_id"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
	Net         decimal.Decimal `json:"net"`
}
