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
	"github.com/blnkfinance/tally/model"
)

// RecordOpenItem registers a payment or bill that was entered outside the bank feed.
func (a Api) RecordOpenItem(c *gin.Context) {
	var req model2.OpenItem
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateOpenItem(); err != nil {
		bindError(c, err)
		return
	}

	item, err := a.tally.RecordOpenItem(c.Request.Context(), req.ToOpenItem())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// ListOpenItems defaults to open items; pass status=matched for linked ones.
func (a Api) ListOpenItems(c *gin.Context) {
	status := model.OpenItemStatus(c.DefaultQuery("status", string(model.OpenItemStatusOpen)))
	items, err := a.tally.ListOpenItems(c.Request.Context(), c.Query("source_account_id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (a Api) GetOpenItem(c *gin.Context) {
	item, err := a.tally.GetOpenItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
