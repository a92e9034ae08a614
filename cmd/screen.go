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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-screener/common"
	"github.com/penny-vault/pv-screener/data"
	"github.com/penny-vault/pv-screener/screener"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	bindEnv("screener.benchmark", "PV_BENCHMARK")
	screenCmd.Flags().StringP("benchmark", "b", "SP500", "Benchmark to compare instruments against")
	if err := viper.BindPFlag("screener.benchmark", screenCmd.Flags().Lookup("benchmark")); err != nil {
		log.Panic().Err(err).Msg("could not bind screener.benchmark")
	}

	bindEnv("screener.lookback", "PV_LOOKBACK")
	screenCmd.Flags().IntP("lookback", "l", 0, "Number of trailing trading days to evaluate")
	if err := viper.BindPFlag("screener.lookback", screenCmd.Flags().Lookup("lookback")); err != nil {
		log.Panic().Err(err).Msg("could not bind screener.lookback")
	}

	bindEnv("screener.risk_free_rate", "PV_RISK_FREE_RATE")
	screenCmd.Flags().Float64("risk-free-rate", 0.03, "Annualized risk free rate")
	if err := viper.BindPFlag("screener.risk_free_rate", screenCmd.Flags().Lookup("risk-free-rate")); err != nil {
		log.Panic().Err(err).Msg("could not bind screener.risk_free_rate")
	}

	screenCmd.Flags().String("sort", "", "Metric to sort the result table by (default: Information Ratio)")
	if err := viper.BindPFlag("screener.sort", screenCmd.Flags().Lookup("sort")); err != nil {
		log.Panic().Err(err).Msg("could not bind screener.sort")
	}

	rootCmd.AddCommand(screenCmd)
}

var screenCmd = &cobra.Command{
	Use:   "screen [tickers...]",
	Short: "Screen instruments against a benchmark and rank them by metric",
	Run: func(_ *cobra.Command, args []string) {
		ctx := context.Background()
		common.SetupLogging()

		cfg := buildConfig()

		store, err := data.OpenStore(cachePath(), viper.GetInt("cache.hot_size"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not open price cache")
		}
		defer store.Close()

		provider := data.NewRateLimitedProvider(data.NewYahoo(nil), viper.GetFloat64("provider.rate_limit"), 1)
		manager := data.NewManager(store, provider, cfg.CacheTTL)
		engine := screener.NewEngine(cfg, manager)

		table, err := engine.Screen(ctx, args, viper.GetString("screener.benchmark"), viper.GetInt("screener.lookback"))
		if err != nil {
			log.Fatal().Err(err).Msg("screen failed")
		}

		if sortMetric := viper.GetString("screener.sort"); sortMetric != "" {
			table.SortByMetric(sortMetric)
		}

		printTable(table)
	},
}

// buildConfig assembles the screener configuration from viper, starting from
// the stock defaults
func buildConfig() screener.Config {
	cfg := screener.DefaultConfig()

	cfg.RiskFreeRate = viper.GetFloat64("screener.risk_free_rate")
	if lookback := viper.GetInt("screener.lookback"); lookback > 0 {
		cfg.DefaultLookback = lookback
	}
	if minPoints := viper.GetInt("screener.min_data_points"); minPoints > 0 {
		cfg.MinDataPoints = minPoints
	}
	if benchmarks := viper.GetStringMapString("screener.benchmarks"); len(benchmarks) > 0 {
		for name, symbol := range benchmarks {
			cfg.Benchmarks[strings.ToUpper(name)] = symbol
		}
	}
	if instruments := viper.GetStringSlice("screener.instruments"); len(instruments) > 0 {
		common.ArrToUpper(instruments)
		cfg.DefaultInstruments = instruments
	}
	if ttl := viper.GetDuration("cache.ttl"); ttl > 0 {
		cfg.CacheTTL = ttl
	}
	if concurrency := viper.GetInt("fetch.concurrency"); concurrency > 0 {
		cfg.MaxFetchConcurrency = concurrency
	}
	if timeout := viper.GetDuration("fetch.timeout"); timeout > 0 {
		cfg.FetchTimeout = timeout
	}
	if workers := viper.GetInt("compute.concurrency"); workers > 0 {
		cfg.MaxComputeConcurrency = workers
	}

	return cfg
}

func printTable(result *screener.Table) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(append([]string{"Symbol", "Status"}, result.Columns...))
	table.SetBorder(false)

	for _, row := range result.Rows {
		cells := make([]string, 0, len(result.Columns)+2)
		cells = append(cells, string(row.Instrument), string(row.Status))
		for _, column := range result.Columns {
			metric := row.Metrics[column]
			if metric.OK {
				cells = append(cells, fmt.Sprintf("%.4f", metric.Value))
			} else {
				cells = append(cells, "--")
			}
		}
		table.Append(cells)
	}

	table.Render()
}
