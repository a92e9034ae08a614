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
	"time"

	"github.com/penny-vault/pv-screener/common"
	"github.com/penny-vault/pv-screener/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	bindEnv("cache.max_age", "PV_CACHE_MAX_AGE")
	purgeCmd.Flags().DurationP("max-age", "a", 7*24*time.Hour, "Delete cache entries fetched longer ago than this")
	if err := viper.BindPFlag("cache.max_age", purgeCmd.Flags().Lookup("max-age")); err != nil {
		log.Panic().Err(err).Msg("could not bind cache.max_age")
	}

	rootCmd.AddCommand(purgeCmd)
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached price data older than max-age",
	Run: func(_ *cobra.Command, _ []string) {
		common.SetupLogging()

		store, err := data.OpenStore(cachePath(), viper.GetInt("cache.hot_size"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not open price cache")
		}
		defer store.Close()

		cutoff := time.Now().Add(-viper.GetDuration("cache.max_age"))
		removed, err := store.Purge(cutoff)
		if err != nil {
			log.Fatal().Err(err).Msg("could not purge price cache")
		}

		remaining, err := store.Count()
		if err != nil {
			log.Error().Err(err).Msg("could not count remaining cache entries")
		}

		log.Info().Int64("NumRemoved", removed).Int64("NumRemaining", remaining).Time("Cutoff", cutoff).Msg("purged price cache")
	},
}
