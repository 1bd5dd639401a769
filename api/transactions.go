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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blnkfinance/tally"
	model2 "github.com/blnkfinance/tally/api/model"
	"github.com/blnkfinance/tally/model"
)

// ListImportedTransactions returns the review queue, filtered by status, batch_id and
// source_account_id query parameters.
func (a Api) ListImportedTransactions(c *gin.Context) {
	filter := model.TransactionFilter{
		Status:          model.TransactionStatus(c.Query("status")),
		BatchID:         c.Query("batch_id"),
		SourceAccountID: c.Query("source_account_id"),
	}
	limit, offset := pagination(c)

	txns, err := a.tally.ListImportedTransactions(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (a Api) GetImportedTransaction(c *gin.Context) {
	txn, err := a.tally.GetImportedTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// ApproveTransaction links the row to its match or posts it against the chosen account.
//
// Responses:
// - 400 Bad Request: no account to post against, or an inactive account.
// - 409 Conflict: the row was already posted, rejected or changed concurrently.
// - 200 OK: the row and, when one was posted, its journal entry.
func (a Api) ApproveTransaction(c *gin.Context) {
	var req model2.ApproveTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateApproveTransaction(); err != nil {
		bindError(c, err)
		return
	}

	result, err := a.tally.ApproveTransaction(c.Request.Context(), c.Param("id"), tally.ApproveRequest{
		AccountID:  req.AccountID,
		ApprovedBy: req.ApprovedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) RejectTransaction(c *gin.Context) {
	var req model2.RejectTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateRejectTransaction(); err != nil {
		bindError(c, err)
		return
	}

	txn, err := a.tally.RejectTransaction(c.Request.Context(), c.Param("id"), req.Reason, req.RejectedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// AcceptMatch confirms a low-confidence match so that approval links it.
func (a Api) AcceptMatch(c *gin.Context) {
	var req model2.AcceptMatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateAcceptMatch(); err != nil {
		bindError(c, err)
		return
	}

	txn, err := a.tally.AcceptLowMatch(c.Request.Context(), c.Param("id"), req.ReviewedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}
