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
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/api/middleware"
	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
)

type Api struct {
	tally  *tally.Tally
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/accounts", a.CreateAccount)
	router.POST("/accounts/seed", a.SeedChart)
	router.GET("/accounts", a.ListAccounts)
	router.GET("/accounts/:id", a.GetAccount)
	router.PUT("/accounts/:id", a.UpdateAccount)
	router.POST("/accounts/:id/deactivate", a.DeactivateAccount)
	router.GET("/accounts/:id/balance", a.GetAccountBalance)

	router.GET("/source-accounts", a.ListSourceAccounts)
	router.GET("/source-accounts/:id", a.GetSourceAccount)
	router.PUT("/source-accounts/:id/ledger", a.MapSourceAccount)

	router.POST("/imports", a.ImportStatement)
	router.GET("/imports/:id", a.GetImportBatch)
	router.POST("/imports/:id/process", a.ProcessImportBatch)

	router.GET("/transactions", a.ListImportedTransactions)
	router.GET("/transactions/:id", a.GetImportedTransaction)
	router.POST("/transactions/:id/approve", a.ApproveTransaction)
	router.POST("/transactions/:id/reject", a.RejectTransaction)
	router.POST("/transactions/:id/accept-match", a.AcceptMatch)

	router.POST("/journal-entries", a.PostJournalEntry)
	router.POST("/journal-entries/drafts", a.SaveDraftEntry)
	router.GET("/journal-entries", a.ListJournalEntries)
	router.GET("/journal-entries/:id", a.GetJournalEntry)
	router.POST("/journal-entries/:id/post", a.PostDraftEntry)
	router.POST("/journal-entries/:id/reverse", a.ReverseJournalEntry)

	router.POST("/bank-rules", a.CreateBankRule)
	router.GET("/bank-rules", a.ListBankRules)
	router.GET("/bank-rules/:id", a.GetBankRule)
	router.PUT("/bank-rules/:id", a.UpdateBankRule)
	router.DELETE("/bank-rules/:id", a.DeleteBankRule)

	router.POST("/open-items", a.RecordOpenItem)
	router.GET("/open-items", a.ListOpenItems)
	router.GET("/open-items/:id", a.GetOpenItem)

	router.POST("/recurring-templates", a.CreateRecurringTemplate)
	router.GET("/recurring-templates/:id", a.GetRecurringTemplate)
	router.POST("/recurring-templates/:id/pause", a.PauseRecurringTemplate)
	router.POST("/recurring-templates/:id/resume", a.ResumeRecurringTemplate)
	router.POST("/recurring-templates/:id/runs", a.QueueRecurringRun)

	return a.router
}

func NewAPI(t *tally.Tally) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logrus.StandardLogger()), gin.Recovery())
	if conf.EnableTelemetry {
		r.Use(otelgin.Middleware("Tally"))
	}
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{tally: t, router: r}
}

// respondError writes err with the status its code maps to. Refusals carry their reason so
// clients can tell an unbalanced entry from a stale approval.
func respondError(c *gin.Context, err error) {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		body := gin.H{"error": apiErr.Message, "code": apiErr.Code}
		if apiErr.Reason != "" {
			body["reason"] = apiErr.Reason
		}
		c.JSON(apierror.MapErrorToHTTPStatus(err), body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
}

// pagination reads limit and offset from the query string, defaulting to the first 20 rows.
func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
