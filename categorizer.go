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

package tally

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

const (
	rulesCacheKey = "tally:rules"
	rulesCacheTTL = 5 * time.Minute
)

// CategorizationResult is the account suggested for a row and where the suggestion came from.
// An empty AccountID means the row needs a reviewer to choose.
type CategorizationResult struct {
	AccountID string                 `json:"account_id,omitempty"`
	Source    model.SuggestionSource `json:"source,omitempty"`
	RuleID    string                 `json:"rule_id,omitempty"`
}

func (r CategorizationResult) Categorized() bool {
	return r.AccountID != ""
}

// sortRules orders rules by priority, then age, then id, so evaluation is deterministic.
func sortRules(rules []model.BankRule) []model.BankRule {
	sorted := make([]model.BankRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.RuleID < b.RuleID
	})
	return sorted
}

// ApplyRules returns the first rule that matches txn and points at an active account.
func ApplyRules(txn *model.ImportedTransaction, rules []model.BankRule, chart *ChartSnapshot) (model.BankRule, bool) {
	for _, rule := range rules {
		if !chart.IsActive(rule.AssignAccountID) {
			continue
		}
		if rule.Matches(txn) {
			return rule, true
		}
	}
	return model.BankRule{}, false
}

// Categorize suggests an account for txn. Rules always run first; the AI collaborator is only
// consulted when none match, and its answer is kept only if it names an active account.
// An AI failure is returned alongside an empty result so the caller can leave the row for review.
func (t *Tally) Categorize(ctx context.Context, txn *model.ImportedTransaction, snapshot *ReferenceSnapshot) (CategorizationResult, error) {
	if rule, ok := ApplyRules(txn, snapshot.Rules, snapshot.Chart); ok {
		return CategorizationResult{AccountID: rule.AssignAccountID, Source: model.SuggestionRule, RuleID: rule.RuleID}, nil
	}
	if t.suggester == nil {
		return CategorizationResult{}, nil
	}

	accountID, err := t.suggester.Suggest(ctx, SuggestionRequest{
		Description: txn.Description,
		RawCategory: txn.RawCategory,
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		Candidates:  snapshot.Chart.ActiveAccounts(),
	})
	if err != nil {
		return CategorizationResult{}, err
	}
	if accountID == "" {
		return CategorizationResult{}, nil
	}
	if !snapshot.Chart.IsActive(accountID) {
		logrus.WithFields(logrus.Fields{"transaction_id": txn.TransactionID, "suggested": accountID}).
			Warn("discarding AI suggestion outside the chart of accounts")
		return CategorizationResult{}, nil
	}
	return CategorizationResult{AccountID: accountID, Source: model.SuggestionAI}, nil
}

func (t *Tally) validateRule(ctx context.Context, rule model.BankRule) error {
	if err := rule.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}
	account, err := t.datasource.GetAccountByID(ctx, rule.AssignAccountID)
	if err != nil {
		if isNotFound(err) {
			return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("account %s does not exist", rule.AssignAccountID), err)
		}
		return err
	}
	if !account.IsActive() {
		return invalidInput(apierror.ReasonAccountInactive, "account %s is inactive", account.AccountID)
	}
	return nil
}

func (t *Tally) CreateBankRule(ctx context.Context, rule model.BankRule) (model.BankRule, error) {
	if err := t.validateRule(ctx, rule); err != nil {
		return model.BankRule{}, err
	}
	rule.RuleID = model.GenerateUUIDWithSuffix("rule")
	rule.CreatedAt = time.Now()
	created, err := t.datasource.CreateBankRule(ctx, rule)
	if err != nil {
		return model.BankRule{}, err
	}
	t.invalidateRules(ctx)
	return created, nil
}

func (t *Tally) GetBankRule(ctx context.Context, id string) (*model.BankRule, error) {
	return t.datasource.GetBankRule(ctx, id)
}

// ListBankRules returns rules in evaluation order.
func (t *Tally) ListBankRules(ctx context.Context) ([]model.BankRule, error) {
	rules, err := t.datasource.GetBankRules(ctx)
	if err != nil {
		return nil, err
	}
	return sortRules(rules), nil
}

func (t *Tally) UpdateBankRule(ctx context.Context, rule *model.BankRule) error {
	current, err := t.datasource.GetBankRule(ctx, rule.RuleID)
	if err != nil {
		return err
	}
	if err := t.validateRule(ctx, *rule); err != nil {
		return err
	}
	rule.CreatedAt = current.CreatedAt
	if err := t.datasource.UpdateBankRule(ctx, rule); err != nil {
		return err
	}
	t.invalidateRules(ctx)
	return nil
}

func (t *Tally) DeleteBankRule(ctx context.Context, id string) error {
	if err := t.datasource.DeleteBankRule(ctx, id); err != nil {
		return err
	}
	t.invalidateRules(ctx)
	return nil
}

// rulesSnapshot returns the rules in evaluation order, served from cache when possible.
func (t *Tally) rulesSnapshot(ctx context.Context) ([]model.BankRule, error) {
	var rules []model.BankRule
	if t.cache != nil {
		found, err := t.cache.Get(ctx, rulesCacheKey, &rules)
		if err != nil {
			logrus.WithError(err).Warn("rules cache read failed")
		}
		if found {
			return sortRules(rules), nil
		}
	}
	rules, err := t.datasource.GetBankRules(ctx)
	if err != nil {
		return nil, err
	}
	if t.cache != nil {
		if err := t.cache.Set(ctx, rulesCacheKey, rules, rulesCacheTTL); err != nil {
			logrus.WithError(err).Warn("rules cache write failed")
		}
	}
	return sortRules(rules), nil
}

func (t *Tally) invalidateRules(ctx context.Context) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Delete(ctx, rulesCacheKey); err != nil {
		logrus.WithError(err).Warn("rules cache invalidation failed")
	}
}
