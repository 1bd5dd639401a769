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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/tally/model"
)

const dateLayout = "2006-01-02"

type CreateAccount struct {
	Code            string                 `json:"code"`
	Name            string                 `json:"name"`
	Type            string                 `json:"type"`
	Subtype         string                 `json:"subtype"`
	ParentAccountID string                 `json:"parent_account_id"`
	MetaData        map[string]interface{} `json:"meta_data"`
}

type UpdateAccount struct {
	Code            string                 `json:"code"`
	Name            string                 `json:"name"`
	Type            string                 `json:"type"`
	Subtype         string                 `json:"subtype"`
	ParentAccountID string                 `json:"parent_account_id"`
	Status          string                 `json:"status"`
	MetaData        map[string]interface{} `json:"meta_data"`
}

type MapSourceAccount struct {
	LedgerAccountID string `json:"ledger_account_id"`
}

type ApproveTransaction struct {
	AccountID  string `json:"account_id"`
	ApprovedBy string `json:"approved_by"`
}

type RejectTransaction struct {
	Reason     string `json:"reason"`
	RejectedBy string `json:"rejected_by"`
}

type AcceptMatch struct {
	ReviewedBy string `json:"reviewed_by"`
}

type JournalLine struct {
	AccountID   string          `json:"account_id"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

type JournalEntry struct {
	Reference       string        `json:"reference"`
	TransactionDate string        `json:"transaction_date"`
	Description     string        `json:"description"`
	CreatedBy       string        `json:"created_by"`
	Lines           []JournalLine `json:"lines"`
}

type ReverseEntry struct {
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by"`
}

type BankRule struct {
	Name            string `json:"name"`
	MatchField      string `json:"match_field"`
	MatchType       string `json:"match_type"`
	MatchValue      string `json:"match_value"`
	AssignAccountID string `json:"assign_account_id"`
	Priority        int    `json:"priority"`
}

type OpenItem struct {
	ItemType        string          `json:"item_type"`
	DocumentNumber  string          `json:"document_number"`
	Reference       string          `json:"reference"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date"`
	SourceAccountID string          `json:"source_account_id"`
	LedgerAccountID string          `json:"ledger_account_id"`
}

type RecurringTemplate struct {
	Name            string `json:"name"`
	TransactionType string `json:"transaction_type"`
	Frequency       string `json:"frequency"`
	Interval        int    `json:"interval"`
	DayOfMonth      *int   `json:"day_of_month"`
	DayOfWeek       *int   `json:"day_of_week"`
	NextRunDate     string `json:"next_run_date"`
	SourceAccountID string `json:"source_account_id"`
}

// RecurringRun is the scheduler's handoff of one due occurrence.
type RecurringRun struct {
	RunDate        string          `json:"run_date"`
	NextRunDate    string          `json:"next_run_date"`
	DocumentNumber string          `json:"document_number"`
	OpenAmount     decimal.Decimal `json:"open_amount"`
	Draft          JournalEntry    `json:"draft"`
}

func isDate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return errors.New("must be a date formatted as YYYY-MM-DD")
	}
	return nil
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	parsed, _ := time.Parse(dateLayout, s)
	return parsed
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func accountTypes() []interface{} {
	return []interface{}{
		string(model.AccountTypeAsset),
		string(model.AccountTypeLiability),
		string(model.AccountTypeEquity),
		string(model.AccountTypeRevenue),
		string(model.AccountTypeExpense),
	}
}

func (a *CreateAccount) ValidateCreateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Code, validation.Required, validation.Length(1, 32)),
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Type, validation.Required, validation.In(accountTypes()...)),
	)
}

func (a *CreateAccount) ToAccount() model.Account {
	return model.Account{
		Code:            a.Code,
		Name:            a.Name,
		Type:            model.AccountType(a.Type),
		Subtype:         a.Subtype,
		ParentAccountID: optional(a.ParentAccountID),
		MetaData:        a.MetaData,
	}
}

func (a *UpdateAccount) ValidateUpdateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Code, validation.Required, validation.Length(1, 32)),
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Type, validation.Required, validation.In(accountTypes()...)),
		validation.Field(&a.Status, validation.In(string(model.AccountStatusActive), string(model.AccountStatusInactive))),
	)
}

func (a *UpdateAccount) ToAccount(id string) *model.Account {
	return &model.Account{
		AccountID:       id,
		Code:            a.Code,
		Name:            a.Name,
		Type:            model.AccountType(a.Type),
		Subtype:         a.Subtype,
		ParentAccountID: optional(a.ParentAccountID),
		Status:          model.AccountStatus(a.Status),
		MetaData:        a.MetaData,
	}
}

func (m *MapSourceAccount) ValidateMapSourceAccount() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.LedgerAccountID, validation.Required),
	)
}

func (a *ApproveTransaction) ValidateApproveTransaction() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ApprovedBy, validation.Required),
	)
}

func (r *RejectTransaction) ValidateRejectTransaction() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required),
		validation.Field(&r.RejectedBy, validation.Required),
	)
}

func (a *AcceptMatch) ValidateAcceptMatch() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ReviewedBy, validation.Required),
	)
}

// Line shape and balance are checked by the posting engine so that drafts can be saved
// unbalanced; only the envelope is validated here.
func (l JournalLine) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.AccountID, validation.Required),
	)
}

func (j *JournalEntry) ValidateJournalEntry() error {
	return validation.ValidateStruct(j,
		validation.Field(&j.TransactionDate, validation.By(isDate)),
		validation.Field(&j.CreatedBy, validation.Required),
		validation.Field(&j.Lines, validation.Required),
	)
}

func (j *JournalEntry) ToJournalEntry() model.JournalEntry {
	lines := make([]model.JournalEntryLine, 0, len(j.Lines))
	for _, line := range j.Lines {
		lines = append(lines, model.JournalEntryLine{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
		})
	}
	return model.JournalEntry{
		Reference:       j.Reference,
		TransactionDate: parseDate(j.TransactionDate),
		Description:     j.Description,
		CreatedBy:       j.CreatedBy,
		Lines:           lines,
	}
}

func (r *ReverseEntry) ValidateReverseEntry() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required),
		validation.Field(&r.CreatedBy, validation.Required),
	)
}

func (b *BankRule) ValidateBankRule() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Name, validation.Required),
		validation.Field(&b.MatchField, validation.Required, validation.In(
			string(model.MatchFieldDescription), string(model.MatchFieldAmount), string(model.MatchFieldRawCategory))),
		validation.Field(&b.MatchType, validation.Required, validation.In(
			string(model.MatchTypeContains), string(model.MatchTypeEquals), string(model.MatchTypeStartsWith),
			string(model.MatchTypeEndsWith), string(model.MatchTypeGreaterThan), string(model.MatchTypeLessThan))),
		validation.Field(&b.MatchValue, validation.Required),
		validation.Field(&b.AssignAccountID, validation.Required),
		validation.Field(&b.Priority, validation.Min(0)),
	)
}

func (b *BankRule) ToBankRule() model.BankRule {
	return model.BankRule{
		Name:            b.Name,
		MatchField:      model.MatchField(b.MatchField),
		MatchType:       model.MatchType(b.MatchType),
		MatchValue:      b.MatchValue,
		AssignAccountID: b.AssignAccountID,
		Priority:        b.Priority,
	}
}

func (o *OpenItem) ValidateOpenItem() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.ItemType, validation.Required, validation.In(
			string(model.EntityCustomerPayment), string(model.EntityBillPayment))),
		validation.Field(&o.Amount, validation.By(func(value interface{}) error {
			if o.Amount.IsZero() {
				return errors.New("cannot be zero")
			}
			return nil
		})),
		validation.Field(&o.Date, validation.Required, validation.By(isDate)),
		validation.Field(&o.SourceAccountID, validation.When(o.LedgerAccountID == "",
			validation.Required.Error("source_account_id or ledger_account_id is required"))),
	)
}

func (o *OpenItem) ToOpenItem() model.OpenItem {
	return model.OpenItem{
		ItemType:        model.MatchedEntityType(o.ItemType),
		DocumentNumber:  o.DocumentNumber,
		Reference:       o.Reference,
		Description:     o.Description,
		Amount:          o.Amount,
		Date:            parseDate(o.Date),
		SourceAccountID: optional(o.SourceAccountID),
		LedgerAccountID: optional(o.LedgerAccountID),
	}
}

func (r *RecurringTemplate) ValidateRecurringTemplate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.TransactionType, validation.Required, validation.In(
			string(model.RecurringInvoice), string(model.RecurringBill), string(model.RecurringJournalEntry))),
		validation.Field(&r.Frequency, validation.Required, validation.In(
			string(model.FrequencyDaily), string(model.FrequencyWeekly), string(model.FrequencyMonthly), string(model.FrequencyYearly))),
		validation.Field(&r.Interval, validation.Min(0)),
		validation.Field(&r.NextRunDate, validation.Required, validation.By(isDate)),
		validation.Field(&r.SourceAccountID, validation.When(r.TransactionType != string(model.RecurringJournalEntry),
			validation.Required.Error("is required for invoice and bill templates"))),
	)
}

func (r *RecurringTemplate) ToRecurringTemplate() model.RecurringTemplate {
	return model.RecurringTemplate{
		Name:            r.Name,
		TransactionType: model.RecurringTransactionType(r.TransactionType),
		Frequency:       model.RecurringFrequency(r.Frequency),
		Interval:        r.Interval,
		DayOfMonth:      r.DayOfMonth,
		DayOfWeek:       r.DayOfWeek,
		NextRunDate:     parseDate(r.NextRunDate),
		SourceAccountID: optional(r.SourceAccountID),
	}
}

func (r *RecurringRun) ValidateRecurringRun() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RunDate, validation.Required, validation.By(isDate)),
		validation.Field(&r.NextRunDate, validation.Required, validation.By(isDate)),
		validation.Field(&r.Draft, validation.By(func(value interface{}) error {
			return r.Draft.ValidateJournalEntry()
		})),
	)
}

func (r *RecurringRun) ToRecurringRun() model.RecurringRun {
	return model.RecurringRun{
		RunDate:        parseDate(r.RunDate),
		NextRunDate:    parseDate(r.NextRunDate),
		DocumentNumber: r.DocumentNumber,
		OpenAmount:     r.OpenAmount,
		Draft:          r.Draft.ToJournalEntry(),
	}
}
