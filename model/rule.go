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
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MatchField string

const (
	MatchFieldDescription MatchField = "description"
	MatchFieldAmount      MatchField = "amount"
	MatchFieldRawCategory MatchField = "raw_category"
)

type MatchType string

const (
	MatchTypeContains    MatchType = "contains"
	MatchTypeEquals      MatchType = "equals"
	MatchTypeStartsWith  MatchType = "starts_with"
	MatchTypeEndsWith    MatchType = "ends_with"
	MatchTypeGreaterThan MatchType = "greater_than"
	MatchTypeLessThan    MatchType = "less_than"
)

// BankRule assigns an account to rows whose field passes the test. Lower Priority runs first.
type BankRule struct {
	ID              int64      `json:"-"`
	RuleID          string     `json:"rule_id"`
	Name            string     `json:"name"`
	MatchField      MatchField `json:"match_field"`
	MatchType       MatchType  `json:"match_type"`
	MatchValue      string     `json:"match_value"`
	AssignAccountID string     `json:"assign_account_id"`
	Priority        int        `json:"priority"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (r BankRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rule name is required")
	}
	if r.AssignAccountID == "" {
		return errors.New("assign_account_id is required")
	}
	if strings.TrimSpace(r.MatchValue) == "" {
		return errors.New("match_value is required")
	}
	switch r.MatchField {
	case MatchFieldDescription, MatchFieldRawCategory:
		switch r.MatchType {
		case MatchTypeContains, MatchTypeEquals, MatchTypeStartsWith, MatchTypeEndsWith:
			return nil
		}
		return errors.New("invalid match_type for a text field")
	case MatchFieldAmount:
		switch r.MatchType {
		case MatchTypeEquals, MatchTypeGreaterThan, MatchTypeLessThan:
		default:
			return errors.New("invalid match_type for the amount field")
		}
		if _, err := decimal.NewFromString(strings.TrimSpace(r.MatchValue)); err != nil {
			return errors.New("match_value must be a decimal for the amount field")
		}
		return nil
	}
	return errors.New("invalid match_field")
}

// Matches evaluates the rule against a row. Text tests ignore case; amount tests compare
// the absolute amount so one rule covers both directions.
func (r BankRule) Matches(txn *ImportedTransaction) bool {
	switch r.MatchField {
	case MatchFieldDescription:
		return matchText(r.MatchType, txn.Description, r.MatchValue)
	case MatchFieldRawCategory:
		return matchText(r.MatchType, txn.RawCategory, r.MatchValue)
	case MatchFieldAmount:
		want, err := decimal.NewFromString(strings.TrimSpace(r.MatchValue))
		if err != nil {
			return false
		}
		got := txn.Amount.Abs()
		switch r.MatchType {
		case MatchTypeEquals:
			return got.Equal(want.Abs())
		case MatchTypeGreaterThan:
			return got.GreaterThan(want.Abs())
		case MatchTypeLessThan:
			return got.LessThan(want.Abs())
		}
	}
	return false
}

func matchText(matchType MatchType, value, pattern string) bool {
	value = strings.ToUpper(strings.TrimSpace(value))
	pattern = strings.ToUpper(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	switch matchType {
	case MatchTypeContains:
		return strings.Contains(value, pattern)
	case MatchTypeEquals:
		return value == pattern
	case MatchTypeStartsWith:
		return strings.HasPrefix(value, pattern)
	case MatchTypeEndsWith:
		return strings.HasSuffix(value, pattern)
	}
	return false
}
