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

// CreateAccount adds an account to the chart.
//
// Responses:
// - 400 Bad Request: invalid body, unknown type or a parent cycle.
// - 409 Conflict: the code is already in use.
// - 201 Created: the stored account.
func (a Api) CreateAccount(c *gin.Context) {
	var newAccount model2.CreateAccount
	if err := c.ShouldBindJSON(&newAccount); err != nil {
		bindError(c, err)
		return
	}
	if err := newAccount.ValidateCreateAccount(); err != nil {
		bindError(c, err)
		return
	}

	resp, err := a.tally.CreateAccount(c.Request.Context(), newAccount.ToAccount())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetAccount(c *gin.Context) {
	account, err := a.tally.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (a Api) ListAccounts(c *gin.Context) {
	accounts, err := a.tally.ListAccounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// UpdateAccount replaces an account's editable fields. A type change is refused once the
// account has posted lines.
func (a Api) UpdateAccount(c *gin.Context) {
	var update model2.UpdateAccount
	if err := c.ShouldBindJSON(&update); err != nil {
		bindError(c, err)
		return
	}
	if err := update.ValidateUpdateAccount(); err != nil {
		bindError(c, err)
		return
	}

	account := update.ToAccount(c.Param("id"))
	if err := a.tally.UpdateAccount(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (a Api) DeactivateAccount(c *gin.Context) {
	account, err := a.tally.DeactivateAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (a Api) GetAccountBalance(c *gin.Context) {
	balance, err := a.tally.AccountBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// SeedChart loads a YAML chart from the request body and creates the codes that are missing.
func (a Api) SeedChart(c *gin.Context) {
	result, err := a.tally.SeedChart(c.Request.Context(), c.Request.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a Api) ListSourceAccounts(c *gin.Context) {
	sources, err := a.tally.ListSourceAccounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sources)
}

func (a Api) GetSourceAccount(c *gin.Context) {
	source, err := a.tally.GetSourceAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, source)
}

// MapSourceAccount binds an imported bank or card account to its ledger account.
func (a Api) MapSourceAccount(c *gin.Context) {
	var req model2.MapSourceAccount
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateMapSourceAccount(); err != nil {
		bindError(c, err)
		return
	}

	source, err := a.tally.MapSourceAccount(c.Request.Context(), c.Param("id"), req.LedgerAccountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, source)
}
