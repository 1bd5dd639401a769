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

	model2 "github.com/blnkfinance/tally/api/model"
)

func (a Api) bindJournalEntry(c *gin.Context) (*model2.JournalEntry, bool) {
	var req model2.JournalEntry
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return nil, false
	}
	if err := req.ValidateJournalEntry(); err != nil {
		bindError(c, err)
		return nil, false
	}
	return &req, true
}

// PostJournalEntry posts a manual entry. Unbalanced entries and bad lines are refused with a
// reason code and nothing is written.
func (a Api) PostJournalEntry(c *gin.Context) {
	req, ok := a.bindJournalEntry(c)
	if !ok {
		return
	}
	entry, err := a.tally.PostJournalEntry(c.Request.Context(), req.ToJournalEntry())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (a Api) SaveDraftEntry(c *gin.Context) {
	req, ok := a.bindJournalEntry(c)
	if !ok {
		return
	}
	entry, err := a.tally.SaveDraftEntry(c.Request.Context(), req.ToJournalEntry())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (a Api) PostDraftEntry(c *gin.Context) {
	entry, err := a.tally.PostDraftEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (a Api) ReverseJournalEntry(c *gin.Context) {
	var req model2.ReverseEntry
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateReverseEntry(); err != nil {
		bindError(c, err)
		return
	}

	entry, err := a.tally.ReverseJournalEntry(c.Request.Context(), c.Param("id"), req.Reason, req.CreatedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (a Api) GetJournalEntry(c *gin.Context) {
	entry, err := a.tally.GetJournalEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (a Api) ListJournalEntries(c *gin.Context) {
	limit, offset := pagination(c)
	entries, err := a.tally.ListJournalEntries(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
