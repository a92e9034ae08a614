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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/penny-vault/pv-screener/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Logging configuration
	bindEnv("log.level", "PV_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	bindPFlag("log.level", "log-level")

	bindEnv("log.report_caller", "PV_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	bindPFlag("log.report_caller", "log-report-caller")

	bindEnv("log.output", "PV_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	bindPFlag("log.output", "log-output")

	bindEnv("log.pretty", "PV_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Pretty print log output to console")
	bindPFlag("log.pretty", "log-pretty")

	// Cache configuration
	bindEnv("cache.path", "PV_CACHE_PATH")
	rootCmd.PersistentFlags().String("cache-path", "", "Path to the price cache database (default: user cache dir)")
	bindPFlag("cache.path", "cache-path")

	bindEnv("cache.ttl", "PV_CACHE_TTL")
	rootCmd.PersistentFlags().Duration("cache-ttl", 0, "Time before cached price data is considered stale")
	bindPFlag("cache.ttl", "cache-ttl")

	bindEnv("cache.hot_size", "PV_CACHE_HOT_SIZE")
	rootCmd.PersistentFlags().Int("cache-hot-size", 0, "Number of decoded series kept in the in-memory cache")
	bindPFlag("cache.hot_size", "cache-hot-size")

	// Provider configuration
	bindEnv("provider.rate_limit", "PV_PROVIDER_RATE_LIMIT")
	rootCmd.PersistentFlags().Float64("provider-rate-limit", 4, "Maximum provider requests per second")
	bindPFlag("provider.rate_limit", "provider-rate-limit")
}

func bindEnv(key, env string) {
	if err := viper.BindEnv(key, env); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind environment variable")
	}
}

func bindPFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind flag")
	}
}

var rootCmd = &cobra.Command{
	Use:     "pvscreen",
	Version: common.CurrentVersion.String(),
	Short:   "Penny Vault screener ranks instruments by risk-adjusted performance",
	Long: `Screen financial instruments against a benchmark: fetch end-of-day
prices, validate data quality, and compute comparative metrics like the
Sharpe ratio, beta, alpha and information ratio.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cachePath returns the configured cache database path, defaulting to the
// user cache directory
func cachePath() string {
	if configured := viper.GetString("cache.path"); configured != "" {
		return configured
	}

	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	dir := filepath.Join(base, "pv-screener")
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.Panic().Err(err).Str("Dir", dir).Msg("could not create cache directory")
	}
	return filepath.Join(dir, "prices.db")
}
