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

func (a Api) CreateRecurringTemplate(c *gin.Context) {
	var req model2.RecurringTemplate
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateRecurringTemplate(); err != nil {
		bindError(c, err)
		return
	}

	template, err := a.tally.CreateRecurringTemplate(c.Request.Context(), req.ToRecurringTemplate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

func (a Api) GetRecurringTemplate(c *gin.Context) {
	template, err := a.tally.GetRecurringTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func (a Api) PauseRecurringTemplate(c *gin.Context) {
	template, err := a.tally.PauseRecurringTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func (a Api) ResumeRecurringTemplate(c *gin.Context) {
	template, err := a.tally.ResumeRecurringTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

// QueueRecurringRun accepts a due occurrence from the external scheduler. The run is queued
// for the workers, or materialized inline when no queue is configured.
func (a Api) QueueRecurringRun(c *gin.Context) {
	var req model2.RecurringRun
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.ValidateRecurringRun(); err != nil {
		bindError(c, err)
		return
	}

	if err := a.tally.QueueRecurringRun(c.Request.Context(), c.Param("id"), req.ToRecurringRun()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"template_id": c.Param("id"), "run_date": req.RunDate})
}
