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
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
	}
	err := cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "data source DNS is required")

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
	}
	err = cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "redis DNS is required")

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: " some-dns "},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, "Tally Server", cnf.ProjectName)
	assert.Equal(t, "some-dns", cnf.DataSource.Dns)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "import_batches", cnf.Queue.BatchQueue)
	assert.Equal(t, "webhook_queue", cnf.Queue.WebhookQueue)
	assert.Equal(t, DEFAULT_DATE_WINDOW_DAYS, cnf.Matching.DateWindowDays)
	assert.Equal(t, DEFAULT_TIGHT_WINDOW_DAYS, cnf.Matching.TightWindow())
	assert.True(t, cnf.Matching.Tolerance().Equal(decimal.Zero))
	assert.Equal(t, DEFAULT_DESCRIPTION_SIMILARITY, cnf.Matching.DescriptionSimilarity)
	assert.Equal(t, DEFAULT_AI_TIMEOUT_MS, cnf.Categorization.TimeoutMs)
	assert.Equal(t, DEFAULT_BATCH_CONCURRENCY, cnf.Workers.BatchConcurrency)
	assert.Equal(t, DEFAULT_MAX_OPEN_CONNS, cnf.DataSource.MaxOpenConns)
	assert.Equal(t, int32(2), cnf.Currency.Scale)
	assert.Equal(t, "USD", cnf.Currency.Default)
}

func TestValidateMatchingPolicy(t *testing.T) {
	base := func() Configuration {
		return Configuration{
			DataSource: DataSourceConfig{Dns: "dns"},
			Redis:      RedisConfig{Dns: "localhost:6379"},
		}
	}

	cnf := base()
	cnf.Matching.AmountTolerance = "0.5"
	cnf.Matching.DateWindowDays = 10
	cnf.Matching.TightWindowDays = intPtr(2)
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.True(t, cnf.Matching.Tolerance().Equal(decimal.RequireFromString("0.50")))
	assert.Equal(t, 10, cnf.Matching.DateWindowDays)
	assert.Equal(t, 2, cnf.Matching.TightWindow())

	cnf = base()
	cnf.Matching.AmountTolerance = "abc"
	assert.Error(t, cnf.validateAndAddDefaults())

	cnf = base()
	cnf.Matching.AmountTolerance = "-1"
	assert.EqualError(t, cnf.validateAndAddDefaults(), "matching amount tolerance must not be negative")

	cnf = base()
	cnf.Matching.DateWindowDays = 1
	cnf.Matching.TightWindowDays = intPtr(3)
	assert.EqualError(t, cnf.validateAndAddDefaults(), "matching date window must be at least as wide as the tight window")

	cnf = base()
	cnf.Matching.TightWindowDays = intPtr(0)
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 0, cnf.Matching.TightWindow(), "a same-day tight window is kept")

	cnf = base()
	cnf.Matching.TightWindowDays = intPtr(-1)
	assert.EqualError(t, cnf.validateAndAddDefaults(), "matching tight window must not be negative")
}

func intPtr(v int) *int {
	return &v
}

func TestBatchConcurrencyBoundedByConnections(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "dns", MaxOpenConns: 4},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Workers:    WorkersConfig{BatchConcurrency: 16},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 4, cnf.Workers.BatchConcurrency)
}

func TestRateLimitDefaults(t *testing.T) {
	rps := 10.0
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		RateLimit:  RateLimitConfig{RequestsPerSecond: &rps},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)
	assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "tally.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		Redis:       RedisConfig{Dns: "temp-redis"},
	}
	require.NoError(t, json.NewEncoder(tmpFile).Encode(sampleConfig))
	tmpFile.Close()

	t.Setenv("TALLY_PROJECT_NAME", "Env Project")
	t.Setenv("TALLY_MATCHING_DATE_WINDOW_DAYS", "7")

	require.NoError(t, loadConfigFromFile(tmpFile.Name()))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "temp-dns", loadedConfig.DataSource.Dns)
	assert.Equal(t, 7, loadedConfig.Matching.DateWindowDays)
}

func TestInitConfigWithoutFile(t *testing.T) {
	t.Setenv("TALLY_DATA_SOURCE_DNS", "env-dns")
	t.Setenv("TALLY_REDIS_DNS", "localhost:6379")

	require.NoError(t, InitConfig("does-not-exist.json"))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "env-dns", loadedConfig.DataSource.Dns)
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "Mocked"})
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Mocked", cnf.ProjectName)
}
