// Copyright 2023-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package screener

import (
	"time"

	"github.com/penny-vault/pv-screener/validator"
)

// Config is the immutable screener parameter set. It is populated by an
// external loader (cmd builds it from viper); the engine never reads
// configuration sources itself.
type Config struct {
	// DefaultLookback is the trailing period count used when a screen call
	// passes lookback <= 0
	DefaultLookback int

	// RiskFreeRate is the annualized baseline return subtracted before
	// computing excess-return metrics
	RiskFreeRate float64

	// MinDataPoints is the minimum price series length accepted by
	// validation; return series need MinDataPoints-1 aligned observations
	MinDataPoints int

	// Benchmarks maps friendly benchmark names to provider symbols
	Benchmarks map[string]string

	// DefaultInstruments is the instrument list used when none is given
	DefaultInstruments []string

	// CacheTTL is the staleness window for cache entries
	CacheTTL time.Duration

	// MaxFetchConcurrency bounds the I/O worker pool
	MaxFetchConcurrency int

	// MaxComputeConcurrency bounds the CPU worker pool
	MaxComputeConcurrency int

	// FetchTimeout bounds a single instrument's fetch
	FetchTimeout time.Duration

	// FetchBufferDays widens the fetch window beyond the lookback so the
	// aligned return series still covers the requested lookback after
	// weekends, holidays and dropped observations
	FetchBufferDays int

	// PeriodsPerYear annualizes daily metrics
	PeriodsPerYear float64

	// Validation holds the data quality thresholds
	Validation validator.Policy
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		DefaultLookback: 60,
		RiskFreeRate:    0.03,
		MinDataPoints:   50,
		Benchmarks: map[string]string{
			"SP500":  "^GSPC",
			"SPX":    "^GSPC",
			"NASDAQ": "^IXIC",
			"DOW":    "^DJI",
			"SPY":    "SPY",
			"QQQ":    "QQQ",
		},
		DefaultInstruments:    []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"},
		CacheTTL:              24 * time.Hour,
		MaxFetchConcurrency:   0, // fetcher default: small multiple of NumCPU
		MaxComputeConcurrency: 0, // dispatcher default: NumCPU
		FetchTimeout:          time.Minute,
		FetchBufferDays:       100,
		PeriodsPerYear:        252,
		Validation:            validator.DefaultPolicy(),
	}
}

// withDefaults fills zero values so a partially populated Config behaves
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.DefaultLookback <= 0 {
		cfg.DefaultLookback = def.DefaultLookback
	}
	if cfg.MinDataPoints <= 0 {
		cfg.MinDataPoints = def.MinDataPoints
	}
	if cfg.Benchmarks == nil {
		cfg.Benchmarks = def.Benchmarks
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.FetchBufferDays <= 0 {
		cfg.FetchBufferDays = def.FetchBufferDays
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = def.PeriodsPerYear
	}
	if cfg.Validation.MinDataPoints <= 0 {
		cfg.Validation = def.Validation
	}
	cfg.Validation.MinDataPoints = cfg.MinDataPoints
	return cfg
}
