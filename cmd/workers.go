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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/config"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// initializeQueues weights import batches above recurring runs; webhooks sit in between so
// deliveries do not lag a large import.
func initializeQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{
		cfg.Queue.BatchQueue:     3,
		cfg.Queue.WebhookQueue:   2,
		cfg.Queue.RecurringQueue: 1,
	}
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	redisOption, err := tally.RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(
		redisOption,
		asynq.Config{
			// Each batch fans out to its own row workers, so a handful of batches at once is enough.
			Concurrency: 4,
			Queues:      initializeQueues(conf),
			Logger:      logrus.StandardLogger(),
		},
	), nil
}

func initializeTaskHandlers(t *tallyInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(t.cnf.Queue.BatchQueue, t.tally.ProcessBatchTask)
	mux.HandleFunc(t.cnf.Queue.RecurringQueue, t.tally.ProcessRecurringTask)
	mux.HandleFunc(t.cnf.Queue.WebhookQueue, tally.ProcessWebhook)
}

func startMonitoring(conf *config.Configuration) error {
	redisOption, err := tally.RedisClientOpt(conf)
	if err != nil {
		return err
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: redisOption,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
	return nil
}

// workerCommands starts the background workers: batch processing, recurring runs and
// webhook delivery.
func workerCommands(t *tallyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start tally workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := t.cnf

			phClient, shutdown, err := initializeObservability(ctx, conf, "workers")
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(t, mux)

			if err := startMonitoring(conf); err != nil {
				log.Fatal(err)
			}

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
