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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
	redlock "github.com/blnkfinance/tally/internal/lock"
	"github.com/blnkfinance/tally/internal/notification"
	"github.com/blnkfinance/tally/model"
)

const (
	batchLockTTL      = 5 * time.Minute
	batchLockInterval = time.Minute
)

// ReferenceSnapshot is the read-only view every row of a batch is processed against, so rows
// processed concurrently all see the same chart, rules and candidates.
type ReferenceSnapshot struct {
	Chart     *ChartSnapshot
	Rules     []model.BankRule
	OpenItems []model.OpenItem
	// Ledgers maps source account ids to the ledger account they are mapped to.
	Ledgers map[string]string
}

// candidatesFor returns the open items in the same money account as txn.
func (s *ReferenceSnapshot) candidatesFor(txn *model.ImportedTransaction) []model.OpenItem {
	ledger := s.Ledgers[txn.SourceAccountID]
	var scoped []model.OpenItem
	for _, item := range s.OpenItems {
		if InScope(txn, ledger, item) {
			scoped = append(scoped, item)
		}
	}
	return scoped
}

// BatchSummary is the outcome of matching and categorizing one batch.
type BatchSummary struct {
	BatchID       string `json:"batch_id"`
	Rows          int    `json:"rows"`
	Matched       int    `json:"matched"`
	Suggested     int    `json:"suggested"`
	Uncategorized int    `json:"uncategorized"`
	Failed        int    `json:"failed"`
}

// claimSet records which row a candidate was linked to while a batch settles its matches.
type claimSet map[string]string

func (c claimSet) unclaimed(items []model.OpenItem) []model.OpenItem {
	free := make([]model.OpenItem, 0, len(items))
	for _, item := range items {
		if _, ok := c[item.ItemID]; !ok {
			free = append(free, item)
		}
	}
	return free
}

// loadReferenceSnapshot reads everything the batch needs once. Earlier statement rows are
// only loaded within the date window around the batch's own rows.
func (t *Tally) loadReferenceSnapshot(ctx context.Context, batchID string, rows []*model.ImportedTransaction, policy MatchPolicy) (*ReferenceSnapshot, error) {
	chart, err := t.ChartSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := t.rulesSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	items, err := t.datasource.GetOpenItems(ctx, model.OpenItemStatusOpen)
	if err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		from, to := rows[0].TransactionDate, rows[0].TransactionDate
		for _, row := range rows[1:] {
			if row.TransactionDate.Before(from) {
				from = row.TransactionDate
			}
			if row.TransactionDate.After(to) {
				to = row.TransactionDate
			}
		}
		window := time.Duration(policy.DateWindowDays) * 24 * time.Hour
		previous, err := t.datasource.GetMatchableImportedTransactions(ctx, batchID, from.Add(-window), to.Add(window))
		if err != nil {
			return nil, err
		}
		for _, txn := range previous {
			items = append(items, model.OpenItemFromImported(txn))
		}
	}

	sources, err := t.datasource.GetAllSourceAccounts(ctx)
	if err != nil {
		return nil, err
	}
	ledgers := make(map[string]string, len(sources))
	for _, source := range sources {
		if source.LedgerAccountID != nil {
			ledgers[source.SourceAccountID] = *source.LedgerAccountID
		}
	}

	return &ReferenceSnapshot{Chart: chart, Rules: rules, OpenItems: items, Ledgers: ledgers}, nil
}

// ProcessBatch matches and categorizes every Pending row of a batch. Rows are spread over a
// worker pool; nothing is posted here. Processing a batch that already finished returns its
// stored outcome.
func (t *Tally) ProcessBatch(ctx context.Context, batchID string) (*BatchSummary, error) {
	ctx, span := tracer.Start(ctx, "Processing import batch")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	batch, err := t.datasource.GetImportBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == model.BatchStatusProcessed {
		return summaryOf(batch), nil
	}

	if t.redis != nil {
		locker := redlock.NewLocker(t.redis, fmt.Sprintf("tally:batch:%s", batchID), uuid.NewString())
		if err := locker.Lock(ctx, batchLockTTL); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("batch %s is already being processed", batchID), err)
		}
		lockCtx, cancel := context.WithCancel(ctx)
		go locker.KeepAlive(lockCtx, batchLockInterval, batchLockTTL)
		defer func() {
			cancel()
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.WithError(err).Warn("failed to release batch lock")
			}
		}()
	}

	if batch.Status != model.BatchStatusProcessing {
		if err := t.datasource.UpdateImportBatchStatus(ctx, batchID, batch.Status, model.BatchStatusProcessing); err != nil {
			return nil, err
		}
	}

	summary, err := t.processRows(ctx, batchID, cfg)
	if err != nil {
		span.RecordError(err)
		if statusErr := t.datasource.UpdateImportBatchStatus(ctx, batchID, model.BatchStatusProcessing, model.BatchStatusFailed); statusErr != nil {
			logrus.WithError(statusErr).Error("failed to mark batch failed")
		}
		notification.NotifyError(err)
		return nil, err
	}

	batch.Status = model.BatchStatusProcessed
	batch.Matched = summary.Matched
	batch.Suggested = summary.Suggested
	batch.Uncategorized = summary.Uncategorized
	batch.ProcessedAt = ptr.Time(time.Now())
	if err := t.datasource.CompleteImportBatch(ctx, batch); err != nil {
		return nil, logAndRecordError(span, "failed to complete batch", err)
	}

	logrus.WithFields(logrus.Fields{
		"batch_id":      batchID,
		"rows":          summary.Rows,
		"matched":       summary.Matched,
		"suggested":     summary.Suggested,
		"uncategorized": summary.Uncategorized,
		"failed":        summary.Failed,
	}).Info("import batch processed")
	t.publish(ctx, EventBatchProcessed, summary)
	return summary, nil
}

func summaryOf(batch *model.ImportBatch) *BatchSummary {
	return &BatchSummary{
		BatchID:       batch.BatchID,
		Rows:          batch.Imported,
		Matched:       batch.Matched,
		Suggested:     batch.Suggested,
		Uncategorized: batch.Uncategorized,
	}
}

type rowOutcome int

const (
	outcomeUncategorized rowOutcome = iota
	outcomeMatched
	outcomeSuggested
	outcomeFailed
)

func (t *Tally) processRows(ctx context.Context, batchID string, cfg *config.Configuration) (*BatchSummary, error) {
	rows, err := t.datasource.GetPendingTransactionsByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	policy := MatchPolicyFromConfig(cfg.Matching)
	snapshot, err := t.loadReferenceSnapshot(ctx, batchID, rows, policy)
	if err != nil {
		return nil, err
	}

	matches := resolveMatches(rows, snapshot, NewMatcher(policy))
	summary := &BatchSummary{BatchID: batchID, Rows: len(rows)}

	workers := cfg.Workers.BatchConcurrency
	if workers > len(rows) {
		workers = len(rows)
	}
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan *model.ImportedTransaction)
	outcomes := make(chan rowOutcome, len(rows))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for txn := range jobs {
				outcomes <- t.processRow(ctx, txn, snapshot, matches[txn.TransactionID])
			}
		}()
	}
	for _, row := range rows {
		jobs <- row
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		switch outcome {
		case outcomeMatched:
			summary.Matched++
		case outcomeSuggested:
			summary.Suggested++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Uncategorized++
		}
	}
	return summary, nil
}

// settlingRank orders rows by the strength of their best match over all candidates, so High
// rows claim first and the order rows were imported in never decides a link.
func settlingRank(result MatchResult) int {
	if !result.Found() {
		return 0
	}
	return tierOf(result.Confidence)
}

// resolveMatches settles the match of every row in the batch before anything is written.
// Only High and Medium matches claim their candidate; Low and tied suggestions are graded
// afterwards against whatever is still unclaimed.
func resolveMatches(rows []*model.ImportedTransaction, snapshot *ReferenceSnapshot, matcher *Matcher) map[string]MatchResult {
	candidates := make([][]model.OpenItem, len(rows))
	ranks := make([]int, len(rows))
	order := make([]int, len(rows))
	for i, row := range rows {
		candidates[i] = snapshot.candidatesFor(row)
		ranks[i] = settlingRank(matcher.Match(row, candidates[i]))
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := order[a], order[b]
		if ranks[x] != ranks[y] {
			return ranks[x] > ranks[y]
		}
		if !rows[x].TransactionDate.Equal(rows[y].TransactionDate) {
			return rows[x].TransactionDate.Before(rows[y].TransactionDate)
		}
		return rows[x].TransactionID < rows[y].TransactionID
	})

	claims := make(claimSet)
	results := make(map[string]MatchResult, len(rows))
	for _, i := range order {
		row := rows[i]
		result := matcher.Match(row, claims.unclaimed(candidates[i]))
		if result.Found() && result.Confidence.AutoLinks() {
			claims[result.Candidate.ItemID] = row.TransactionID
			results[row.TransactionID] = result
		}
	}
	for _, i := range order {
		row := rows[i]
		if _, ok := results[row.TransactionID]; ok {
			continue
		}
		results[row.TransactionID] = matcher.Match(row, claims.unclaimed(candidates[i]))
	}
	return results
}

func (t *Tally) processRow(ctx context.Context, txn *model.ImportedTransaction, snapshot *ReferenceSnapshot, result MatchResult) rowOutcome {
	logger := logrus.WithFields(logrus.Fields{"transaction_id": txn.TransactionID, "batch_id": txn.BatchID})

	if result.Found() {
		confidence := result.Confidence
		txn.MatchedEntityType = result.Candidate.ItemType
		txn.MatchedEntityID = ptr.String(result.Candidate.ItemID)
		txn.Confidence = &confidence
	}

	if !txn.HasUsableMatch() {
		categorized, err := t.Categorize(ctx, txn, snapshot)
		if err != nil {
			logger.WithError(err).Warn("AI categorization unavailable, leaving row for review")
		}
		if categorized.Categorized() {
			txn.SuggestedAccountID = ptr.String(categorized.AccountID)
			txn.SuggestionSource = categorized.Source
			if categorized.RuleID != "" {
				txn.SuggestionRuleID = ptr.String(categorized.RuleID)
			}
		}
	}

	if err := t.datasource.UpdateTransactionSuggestion(ctx, txn); err != nil {
		logger.WithError(err).Error("failed to store row suggestion")
		return outcomeFailed
	}

	switch {
	case txn.HasUsableMatch():
		return outcomeMatched
	case txn.SuggestedAccountID != nil:
		return outcomeSuggested
	default:
		return outcomeUncategorized
	}
}
