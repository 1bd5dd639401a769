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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5004"

	DEFAULT_CURRENCY       = "USD"
	DEFAULT_CURRENCY_SCALE = 2

	DEFAULT_AMOUNT_TOLERANCE       = "0.00"
	DEFAULT_DATE_WINDOW_DAYS       = 5
	DEFAULT_TIGHT_WINDOW_DAYS      = 1
	DEFAULT_DESCRIPTION_SIMILARITY = 0.85

	DEFAULT_AI_MODEL      = "gemini-2.0-flash"
	DEFAULT_AI_TIMEOUT_MS = 8000
	DEFAULT_AI_RETRIES    = 2

	DEFAULT_BATCH_CONCURRENCY = 8
	DEFAULT_MAX_OPEN_CONNS    = 25
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"TALLY_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"TALLY_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"TALLY_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"TALLY_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"TALLY_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"TALLY_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns          string `json:"dns" envconfig:"TALLY_DATA_SOURCE_DNS"`
	MaxOpenConns int    `json:"max_open_conns" envconfig:"TALLY_DATA_SOURCE_MAX_OPEN_CONNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"TALLY_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"TALLY_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	BatchQueue     string `json:"batch_queue" envconfig:"TALLY_QUEUE_BATCH"`
	RecurringQueue string `json:"recurring_queue" envconfig:"TALLY_QUEUE_RECURRING"`
	WebhookQueue   string `json:"webhook_queue" envconfig:"TALLY_QUEUE_WEBHOOK"`
	MonitoringPort string `json:"monitoring_port" envconfig:"TALLY_QUEUE_MONITORING_PORT"`
	AutoProcess    bool   `json:"auto_process" envconfig:"TALLY_QUEUE_AUTO_PROCESS"`
	MaxRetry       int    `json:"max_retry" envconfig:"TALLY_QUEUE_MAX_RETRY"`
}

// MatchingConfig holds the tolerance policy used to grade match confidence.
// Institutions clear at different speeds, so none of these are hardcoded.
type MatchingConfig struct {
	AmountTolerance       string  `json:"amount_tolerance" envconfig:"TALLY_MATCHING_AMOUNT_TOLERANCE"`
	DateWindowDays        int     `json:"date_window_days" envconfig:"TALLY_MATCHING_DATE_WINDOW_DAYS"`
	TightWindowDays       *int    `json:"tight_window_days" envconfig:"TALLY_MATCHING_TIGHT_WINDOW_DAYS"`
	DescriptionSimilarity float64 `json:"description_similarity" envconfig:"TALLY_MATCHING_DESCRIPTION_SIMILARITY"`
}

// TightWindow returns the configured tight window in days. Zero means same day only.
func (m MatchingConfig) TightWindow() int {
	if m.TightWindowDays == nil {
		return DEFAULT_TIGHT_WINDOW_DAYS
	}
	return *m.TightWindowDays
}

// Tolerance returns the configured amount tolerance. Validation guarantees it parses.
func (m MatchingConfig) Tolerance() decimal.Decimal {
	d, err := decimal.NewFromString(m.AmountTolerance)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type CategorizationConfig struct {
	Provider   string `json:"provider" envconfig:"TALLY_AI_PROVIDER"`
	Model      string `json:"model" envconfig:"TALLY_AI_MODEL"`
	ApiKey     string `json:"api_key" envconfig:"TALLY_AI_API_KEY"`
	TimeoutMs  int    `json:"timeout_ms" envconfig:"TALLY_AI_TIMEOUT_MS"`
	MaxRetries int    `json:"max_retries" envconfig:"TALLY_AI_MAX_RETRIES"`
}

type WorkersConfig struct {
	BatchConcurrency int `json:"batch_concurrency" envconfig:"TALLY_WORKERS_BATCH_CONCURRENCY"`
}

type CurrencyConfig struct {
	Default string `json:"default" envconfig:"TALLY_CURRENCY_DEFAULT"`
	Scale   int32  `json:"scale" envconfig:"TALLY_CURRENCY_SCALE"`
}

type ArchiveConfig struct {
	S3BucketName       string `json:"s3_bucket_name" envconfig:"TALLY_ARCHIVE_S3_BUCKET"`
	S3Region           string `json:"s3_region" envconfig:"TALLY_ARCHIVE_S3_REGION"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"TALLY_ARCHIVE_S3_ENDPOINT"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"TALLY_ARCHIVE_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"TALLY_ARCHIVE_AWS_SECRET_ACCESS_KEY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"TALLY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"TALLY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"TALLY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"TALLY_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url" envconfig:"TALLY_WEBHOOK_URL"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName     string               `json:"project_name" envconfig:"TALLY_PROJECT_NAME"`
	EnableTelemetry bool                 `json:"enable_telemetry" envconfig:"TALLY_ENABLE_TELEMETRY"`
	PostHogKey      string               `json:"posthog_key" envconfig:"TALLY_POSTHOG_KEY"`
	Server          ServerConfig         `json:"server"`
	DataSource      DataSourceConfig     `json:"data_source"`
	Redis           RedisConfig          `json:"redis"`
	Queue           QueueConfig          `json:"queue"`
	Matching        MatchingConfig       `json:"matching"`
	Categorization  CategorizationConfig `json:"categorization"`
	Workers         WorkersConfig        `json:"workers"`
	Currency        CurrencyConfig       `json:"currency"`
	Archive         ArchiveConfig        `json:"archive"`
	Notification    Notification         `json:"notification"`
	RateLimit       RateLimitConfig      `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("tally", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called tally.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Tally Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	return cnf.applyDefaults()
}

// applyDefaults fills every optional setting. Required fields are checked by the caller.
func (cnf *Configuration) applyDefaults() error {
	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.setQueueDefaults()

	if err := cnf.setMatchingDefaults(); err != nil {
		return err
	}

	cnf.setCategorizationDefaults()

	if cnf.DataSource.MaxOpenConns <= 0 {
		cnf.DataSource.MaxOpenConns = DEFAULT_MAX_OPEN_CONNS
	}
	if cnf.Workers.BatchConcurrency <= 0 {
		cnf.Workers.BatchConcurrency = DEFAULT_BATCH_CONCURRENCY
	}
	// Workers each hold a connection while writing their row.
	if cnf.Workers.BatchConcurrency > cnf.DataSource.MaxOpenConns {
		cnf.Workers.BatchConcurrency = cnf.DataSource.MaxOpenConns
	}

	if cnf.Currency.Default == "" {
		cnf.Currency.Default = DEFAULT_CURRENCY
	}
	if cnf.Currency.Scale <= 0 {
		cnf.Currency.Scale = DEFAULT_CURRENCY_SCALE
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) setQueueDefaults() {
	if cnf.Queue.BatchQueue == "" {
		cnf.Queue.BatchQueue = "import_batches"
	}
	if cnf.Queue.RecurringQueue == "" {
		cnf.Queue.RecurringQueue = "recurring_runs"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "webhook_queue"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5005"
	}
	if cnf.Queue.MaxRetry <= 0 {
		cnf.Queue.MaxRetry = 5
	}
}

func (cnf *Configuration) setMatchingDefaults() error {
	m := &cnf.Matching
	if strings.TrimSpace(m.AmountTolerance) == "" {
		m.AmountTolerance = DEFAULT_AMOUNT_TOLERANCE
	}
	tolerance, err := decimal.NewFromString(strings.TrimSpace(m.AmountTolerance))
	if err != nil {
		return fmt.Errorf("matching amount tolerance %q is not a decimal: %w", m.AmountTolerance, err)
	}
	if tolerance.IsNegative() {
		return errors.New("matching amount tolerance must not be negative")
	}
	m.AmountTolerance = tolerance.String()

	if m.TightWindowDays == nil {
		tight := DEFAULT_TIGHT_WINDOW_DAYS
		m.TightWindowDays = &tight
	}
	if *m.TightWindowDays < 0 {
		return errors.New("matching tight window must not be negative")
	}
	if m.DateWindowDays <= 0 {
		m.DateWindowDays = DEFAULT_DATE_WINDOW_DAYS
	}
	if m.DateWindowDays < *m.TightWindowDays {
		return errors.New("matching date window must be at least as wide as the tight window")
	}
	if m.DescriptionSimilarity <= 0 || m.DescriptionSimilarity > 1 {
		m.DescriptionSimilarity = DEFAULT_DESCRIPTION_SIMILARITY
	}
	return nil
}

func (cnf *Configuration) setCategorizationDefaults() {
	c := &cnf.Categorization
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Model == "" {
		c.Model = DEFAULT_AI_MODEL
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = DEFAULT_AI_TIMEOUT_MS
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DEFAULT_AI_RETRIES
	}
}

// MockConfig sets a mock configuration for testing purposes.
// Optional settings are defaulted the same way a loaded file would be.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.applyDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
