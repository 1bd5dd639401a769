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
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/model"
)

// MatchPolicy is the tolerance policy behind the confidence tiers. Institutions clear at
// different speeds, so every value comes from configuration.
type MatchPolicy struct {
	AmountTolerance       decimal.Decimal
	DateWindowDays        int
	TightWindowDays       int
	DescriptionSimilarity float64
}

func MatchPolicyFromConfig(cfg config.MatchingConfig) MatchPolicy {
	return MatchPolicy{
		AmountTolerance:       cfg.Tolerance(),
		DateWindowDays:        cfg.DateWindowDays,
		TightWindowDays:       cfg.TightWindow(),
		DescriptionSimilarity: cfg.DescriptionSimilarity,
	}
}

// Matcher grades how likely a statement row is to be an event that was already recorded.
type Matcher struct {
	policy MatchPolicy
}

func NewMatcher(policy MatchPolicy) *Matcher {
	return &Matcher{policy: policy}
}

func (m *Matcher) Policy() MatchPolicy {
	return m.policy
}

// MatchResult is the outcome for one row. Candidate is nil when nothing qualified.
type MatchResult struct {
	Candidate    *model.OpenItem
	Confidence   model.Confidence
	Tied         bool
	DateDelta    int
	Corroborated bool
}

func (r MatchResult) Found() bool {
	return r.Candidate != nil
}

type scoredCandidate struct {
	item         model.OpenItem
	tier         int
	confidence   model.Confidence
	delta        int
	corroborated bool
}

func tierOf(c model.Confidence) int {
	switch c {
	case model.ConfidenceHigh:
		return 3
	case model.ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// InScope reports whether item belongs to the same money account as txn: either the same
// source account or the ledger account that source is mapped to.
func InScope(txn *model.ImportedTransaction, ledgerAccountID string, item model.OpenItem) bool {
	if item.SourceAccountID != nil && *item.SourceAccountID == txn.SourceAccountID {
		return true
	}
	return ledgerAccountID != "" && item.LedgerAccountID != nil && *item.LedgerAccountID == ledgerAccountID
}

// directionAgrees refuses pairs that move money opposite ways. Customer payments are inflows
// and bill payments outflows whatever sign they were recorded with.
func directionAgrees(txn *model.ImportedTransaction, item model.OpenItem) bool {
	switch item.ItemType {
	case model.EntityCustomerPayment:
		return txn.Amount.IsPositive()
	case model.EntityBillPayment:
		return txn.Amount.IsNegative()
	default:
		return txn.Amount.Sign() == item.Amount.Sign()
	}
}

// Match grades every candidate and returns the best one. Candidates must already be scoped
// to the row's account (see InScope); matched items and the row itself are ignored.
// When more than one candidate shares the best tier the result is downgraded to Low and
// Tied is set; the earliest-dated candidate is still offered as the suggestion.
func (m *Matcher) Match(txn *model.ImportedTransaction, candidates []model.OpenItem) MatchResult {
	if txn.Amount.IsZero() {
		return MatchResult{}
	}

	var scored []scoredCandidate
	for _, item := range candidates {
		if item.Status != model.OpenItemStatusOpen || item.ItemID == txn.TransactionID {
			continue
		}
		if !directionAgrees(txn, item) {
			continue
		}
		diff := txn.Amount.Abs().Sub(item.Amount.Abs()).Abs()
		if diff.GreaterThan(m.policy.AmountTolerance) {
			continue
		}
		delta := model.DaysBetween(txn.TransactionDate, item.Date)
		if delta > m.policy.DateWindowDays {
			continue
		}

		corroborated := m.corroborates(txn, item)
		confidence := model.ConfidenceLow
		switch {
		case diff.IsZero() && delta <= m.policy.TightWindowDays && corroborated:
			confidence = model.ConfidenceHigh
		case diff.IsZero():
			confidence = model.ConfidenceMedium
		}
		scored = append(scored, scoredCandidate{
			item:         item,
			tier:         tierOf(confidence),
			confidence:   confidence,
			delta:        delta,
			corroborated: corroborated,
		})
	}
	if len(scored) == 0 {
		return MatchResult{}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.tier != b.tier {
			return a.tier > b.tier
		}
		if !a.item.Date.Equal(b.item.Date) {
			return a.item.Date.Before(b.item.Date)
		}
		if a.delta != b.delta {
			return a.delta < b.delta
		}
		return a.item.ItemID < b.item.ItemID
	})

	best := scored[0]
	chosen := best.item
	result := MatchResult{
		Candidate:    &chosen,
		Confidence:   best.confidence,
		DateDelta:    best.delta,
		Corroborated: best.corroborated,
	}
	if len(scored) > 1 && scored[1].tier == best.tier {
		result.Confidence = model.ConfidenceLow
		result.Tied = true
	}
	return result
}

// corroborates looks for text tying the row to the candidate: its reference or document
// number inside the description, or, for an earlier statement row, a near-identical description.
func (m *Matcher) corroborates(txn *model.ImportedTransaction, item model.OpenItem) bool {
	description := strings.ToUpper(txn.Description)
	for _, token := range []string{item.Reference, item.DocumentNumber} {
		token = strings.ToUpper(strings.TrimSpace(token))
		if len(token) >= 3 && strings.Contains(description, token) {
			return true
		}
	}
	if item.ItemType == model.EntityImportedTransaction && item.Description != "" {
		return DescriptionSimilarity(txn.Description, item.Description) >= m.policy.DescriptionSimilarity
	}
	return false
}

// DescriptionSimilarity returns 1 for identical normalized descriptions and falls towards 0
// as the edit distance grows relative to the longer one.
func DescriptionSimilarity(a, b string) float64 {
	a, b = model.NormalizeDescription(a), model.NormalizeDescription(b)
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptionsWithSub)
	similarity := 1 - float64(distance)/float64(longest)
	if similarity < 0 {
		return 0
	}
	return similarity
}
