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

func (a Api) CreateBankRule(c *gin.Context) {
	var req model2.BankRule
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateBankRule(); err != nil {
		bindError(c, err)
		return
	}

	rule, err := a.tally.CreateBankRule(c.Request.Context(), req.ToBankRule())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// ListBankRules returns rules in the order they are evaluated.
func (a Api) ListBankRules(c *gin.Context) {
	rules, err := a.tally.ListBankRules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (a Api) GetBankRule(c *gin.Context) {
	rule, err := a.tally.GetBankRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (a Api) UpdateBankRule(c *gin.Context) {
	var req model2.BankRule
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateBankRule(); err != nil {
		bindError(c, err)
		return
	}

	rule := req.ToBankRule()
	rule.RuleID = c.Param("id")
	if err := a.tally.UpdateBankRule(c.Request.Context(), &rule); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (a Api) DeleteBankRule(c *gin.Context) {
	if err := a.tally.DeleteBankRule(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bank rule deleted successfully"})
}
