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
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

// ApproveRequest is a reviewer's decision on a Pending row. AccountID overrides the
// suggestion; it is ignored for rows linked by a High or Medium match unless the matched
// record was meanwhile linked to another row.
type ApproveRequest struct {
	AccountID  string `json:"account_id,omitempty"`
	ApprovedBy string `json:"approved_by"`
}

// ApprovalResult is the row after approval and, unless it was linked to an existing record,
// the entry that was posted for it.
type ApprovalResult struct {
	Transaction  *model.ImportedTransaction `json:"transaction"`
	JournalEntry *model.JournalEntry        `json:"journal_entry,omitempty"`
}

// ApproveTransaction applies a reviewer's approval.
//
// A Pending row with a High or Medium match is linked to the matched record and becomes
// Matched; no entry is posted. Otherwise the row is Approved against the chosen account and
// posted in the same call. An Approved row whose posting failed earlier is posted again.
func (t *Tally) ApproveTransaction(ctx context.Context, id string, req ApproveRequest) (*ApprovalResult, error) {
	ctx, span := tracer.Start(ctx, "Approving imported transaction")
	defer span.End()

	txn, err := t.datasource.GetImportedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	switch txn.Status {
	case model.StatusPending:
	case model.StatusApproved:
		entry, err := t.postApproved(ctx, txn)
		if err != nil {
			return nil, err
		}
		return &ApprovalResult{Transaction: txn, JournalEntry: entry}, nil
	case model.StatusPosted:
		return nil, conflict(apierror.ReasonAlreadyPosted, "imported transaction %s is already posted", id)
	default:
		return nil, conflict(apierror.ReasonInvalidTransition, "imported transaction %s is %s and cannot be approved", id, txn.Status)
	}

	reviewer := strings.TrimSpace(req.ApprovedBy)
	if reviewer == "" {
		reviewer = systemUser
	}
	txn.ReviewedBy = reviewer

	if txn.HasUsableMatch() {
		err := t.datasource.LinkTransactionMatch(ctx, txn)
		if err == nil {
			txn.Status = model.StatusMatched
			logrus.WithFields(logrus.Fields{
				"transaction_id": id,
				"matched_entity": *txn.MatchedEntityID,
			}).Info("imported transaction linked to existing record")
			t.publish(ctx, EventTransactionMatched, txn)
			return &ApprovalResult{Transaction: txn}, nil
		}
		if !t.matchTaken(ctx, id, err) {
			return nil, t.afterStaleApproval(ctx, id, err)
		}
		taken := *txn.MatchedEntityID
		if err := t.releaseMatch(ctx, txn); err != nil {
			return nil, t.afterStaleApproval(ctx, id, err)
		}
		if req.AccountID == "" {
			return nil, conflict(apierror.ReasonMatchTaken, "%s was linked to another transaction; choose an account to approve %s", taken, id)
		}
	}

	if req.AccountID != "" {
		if err := t.requireActiveAccount(ctx, req.AccountID); err != nil {
			return nil, err
		}
		txn.ApprovedAccountID = ptr.String(req.AccountID)
	}

	target := txn.ResolvedAccountID()
	if target == nil {
		return nil, invalidInput(apierror.ReasonMissingCategorization, "imported transaction %s has no suggested account; choose one to approve", id)
	}
	if txn.ApprovedAccountID == nil {
		if err := t.requireActiveAccount(ctx, *target); err != nil {
			return nil, err
		}
		txn.ApprovedAccountID = ptr.String(*target)
	}

	txn.Status = model.StatusApproved
	if err := t.datasource.TransitionTransaction(ctx, txn, model.StatusPending); err != nil {
		return nil, t.afterStaleApproval(ctx, id, err)
	}
	t.publish(ctx, EventTransactionApproved, txn)

	entry, err := t.postApproved(ctx, txn)
	if err != nil {
		span.RecordError(err)
		return &ApprovalResult{Transaction: txn}, err
	}
	return &ApprovalResult{Transaction: txn, JournalEntry: entry}, nil
}

// matchTaken reports whether a failed link left the row Pending, which means the matched
// record was linked to another row first.
func (t *Tally) matchTaken(ctx context.Context, id string, err error) bool {
	if apierror.ReasonOf(err) != apierror.ReasonStaleState {
		return false
	}
	current, getErr := t.datasource.GetImportedTransaction(ctx, id)
	return getErr == nil && current.Status == model.StatusPending
}

// releaseMatch drops a match whose record is no longer open so the row can be approved
// against an account instead.
func (t *Tally) releaseMatch(ctx context.Context, txn *model.ImportedTransaction) error {
	taken := *txn.MatchedEntityID
	txn.MatchedEntityID = nil
	txn.MatchedEntityType = ""
	txn.Confidence = nil
	if err := t.datasource.UpdateTransactionSuggestion(ctx, txn); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"matched_entity": taken,
	}).Warn("matched record was linked elsewhere, match released")
	return nil
}

// afterStaleApproval turns a lost race into the reason the winner left behind.
func (t *Tally) afterStaleApproval(ctx context.Context, id string, err error) error {
	if apierror.ReasonOf(err) != apierror.ReasonStaleState {
		return err
	}
	current, getErr := t.datasource.GetImportedTransaction(ctx, id)
	if getErr != nil {
		return err
	}
	switch current.Status {
	case model.StatusPosted:
		return conflict(apierror.ReasonAlreadyPosted, "imported transaction %s is already posted", id)
	case model.StatusRejected:
		return conflict(apierror.ReasonAlreadyRejected, "imported transaction %s was rejected", id)
	}
	return err
}

func (t *Tally) requireActiveAccount(ctx context.Context, accountID string) error {
	account, err := t.datasource.GetAccountByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return invalidInput(apierror.ReasonInvalidLine, "account %s does not exist", accountID)
		}
		return err
	}
	if !account.IsActive() {
		return invalidInput(apierror.ReasonAccountInactive, "account %s is inactive", accountID)
	}
	return nil
}

// RejectTransaction marks a Pending row as not to be posted.
func (t *Tally) RejectTransaction(ctx context.Context, id, reason, rejectedBy string) (*model.ImportedTransaction, error) {
	ctx, span := tracer.Start(ctx, "Rejecting imported transaction")
	defer span.End()

	txn, err := t.datasource.GetImportedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status == model.StatusRejected {
		return nil, conflict(apierror.ReasonAlreadyRejected, "imported transaction %s is already rejected", id)
	}
	if !txn.Status.CanTransitionTo(model.StatusRejected) {
		return nil, conflict(apierror.ReasonInvalidTransition, "imported transaction %s is %s and cannot be rejected", id, txn.Status)
	}

	if rejectedBy == "" {
		rejectedBy = systemUser
	}
	txn.Status = model.StatusRejected
	txn.ReviewedBy = rejectedBy
	txn.RejectionReason = reason
	if err := t.datasource.TransitionTransaction(ctx, txn, model.StatusPending); err != nil {
		return nil, t.afterStaleApproval(ctx, id, err)
	}
	t.publish(ctx, EventTransactionRejected, txn)
	return txn, nil
}

// AcceptLowMatch lets a reviewer confirm a Low confidence match, after which approval links
// the row like any other usable match.
func (t *Tally) AcceptLowMatch(ctx context.Context, id, reviewedBy string) (*model.ImportedTransaction, error) {
	txn, err := t.datasource.GetImportedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != model.StatusPending {
		return nil, conflict(apierror.ReasonInvalidTransition, "imported transaction %s is %s", id, txn.Status)
	}
	if txn.MatchedEntityID == nil || txn.Confidence == nil || *txn.Confidence != model.ConfidenceLow {
		return nil, conflict(apierror.ReasonInvalidTransition, "imported transaction %s has no low confidence match to accept", id)
	}

	confidence := model.ConfidenceHigh
	txn.Confidence = &confidence
	txn.ReviewedBy = reviewedBy
	if err := t.datasource.UpdateTransactionSuggestion(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (t *Tally) GetImportedTransaction(ctx context.Context, id string) (*model.ImportedTransaction, error) {
	return t.datasource.GetImportedTransaction(ctx, id)
}

func (t *Tally) ListImportedTransactions(ctx context.Context, filter model.TransactionFilter, limit, offset int) ([]model.ImportedTransaction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "unknown transaction status "+string(filter.Status), nil)
	}
	return t.datasource.GetImportedTransactions(ctx, filter, limit, offset)
}
