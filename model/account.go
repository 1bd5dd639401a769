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

import "time"

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

var accountTypes = map[AccountType]struct{}{
	AccountTypeAsset:     {},
	AccountTypeLiability: {},
	AccountTypeEquity:    {},
	AccountTypeRevenue:   {},
	AccountTypeExpense:   {},
}

func (t AccountType) Valid() bool {
	_, ok := accountTypes[t]
	return ok
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// Account is a node in the chart of accounts.
type Account struct {
	ID              int64                  `json:"-"`
	AccountID       string                 `json:"account_id"`
	Code            string                 `json:"code"`
	Name            string                 `json:"name"`
	Type            AccountType            `json:"type"`
	Subtype         string                 `json:"subtype,omitempty"`
	ParentAccountID *string                `json:"parent_account_id,omitempty"`
	Status          AccountStatus          `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
}

func (a Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// SourceAccount is a bank or card account outside the ledger that statement rows come from.
// LedgerAccountID maps it onto the asset/liability account that mirrors it in the chart.
type SourceAccount struct {
	ID                int64     `json:"-"`
	SourceAccountID   string    `json:"source_account_id"`
	Institution       string    `json:"institution"`
	AccountIdentifier string    `json:"account_identifier"`
	Currency          string    `json:"currency"`
	LedgerAccountID   *string   `json:"ledger_account_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
