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

// Package screener orchestrates the end-to-end screening pipeline: sanitize
// identifiers, fetch price series, validate data quality, align against the
// benchmark and compute metrics. Per-instrument failures are contained in
// status rows; only benchmark failure or an unknown benchmark name aborts a
// whole screen.
package screener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pv-screener/common"
	"github.com/penny-vault/pv-screener/data"
	"github.com/penny-vault/pv-screener/metrics"
	"github.com/penny-vault/pv-screener/validator"
	"github.com/rs/zerolog/log"
)

// Engine wires the data manager, fetcher, metric registry and dispatcher
// into one screening pipeline
type Engine struct {
	cfg        Config
	fetcher    *data.Fetcher
	metrics    *metrics.Engine
	dispatcher *metrics.Dispatcher
}

func NewEngine(cfg Config, manager *data.Manager) *Engine {
	cfg = cfg.withDefaults()
	metricEngine := metrics.NewEngine(cfg.RiskFreeRate, cfg.PeriodsPerYear)
	return &Engine{
		cfg:        cfg,
		fetcher:    data.NewFetcher(manager, cfg.MaxFetchConcurrency, cfg.FetchTimeout),
		metrics:    metricEngine,
		dispatcher: metrics.NewDispatcher(metricEngine, cfg.MaxComputeConcurrency),
	}
}

// Metrics exposes the calculator registry so callers can register custom
// calculators before the first screen
func (engine *Engine) Metrics() *metrics.Engine {
	return engine.metrics
}

// Screen runs the full pipeline over the requested tickers against the named
// benchmark. Every requested identifier yields exactly one row; duplicates
// after normalization collapse onto the first occurrence. lookback <= 0 uses
// the configured default.
func (engine *Engine) Screen(ctx context.Context, tickers []string, benchmarkName string, lookback int) (*Table, error) {
	if lookback <= 0 {
		lookback = engine.cfg.DefaultLookback
	}
	if len(tickers) == 0 {
		tickers = engine.cfg.DefaultInstruments
	}

	benchmark, err := engine.resolveBenchmark(benchmarkName)
	if err != nil {
		return nil, err
	}

	subLog := log.With().Str("Benchmark", string(benchmark)).Int("Lookback", lookback).Logger()
	subLog.Info().Int("NumTickers", len(tickers)).Msg("screening instruments")

	// one row per requested identifier, in request order; duplicates after
	// normalization collapse onto the first occurrence
	rows := make([]*Row, 0, len(tickers))
	byInstrument := make(map[data.Instrument]*Row, len(tickers))
	order := make([]data.Instrument, 0, len(tickers))
	for _, raw := range tickers {
		instrument, sanitizeErr := validator.Sanitize(raw)
		if sanitizeErr != nil {
			rows = append(rows, &Row{
				Instrument: data.Instrument(strings.TrimSpace(raw)),
				Status:     StatusInvalid,
				Detail:     sanitizeErr.Error(),
			})
			continue
		}
		if _, ok := byInstrument[instrument]; ok {
			continue
		}
		row := &Row{Instrument: instrument, Status: StatusOK}
		byInstrument[instrument] = row
		order = append(order, instrument)
		rows = append(rows, row)
	}

	period := engine.fetchPeriod(lookback)
	results := engine.fetcher.FetchAll(ctx, append([]data.Instrument{benchmark}, order...), period)

	benchSeries, benchErr := safeDownload(results, benchmark)
	if benchErr != nil || benchSeries.Len() == 0 {
		return nil, fmt.Errorf("%w: benchmark %s", data.ErrDataUnavailable, benchmark)
	}
	benchReturns := benchSeries.DropNaN().PctChange()

	// validate and align; survivors feed the compute pool
	requiredReturns := engine.cfg.MinDataPoints - 1
	window := lookback
	if window < requiredReturns {
		window = requiredReturns
	}

	aligned := make(map[data.Instrument]metrics.Aligned, len(order))
	for _, instrument := range order {
		row := byInstrument[instrument]

		series, fetchErr := safeDownload(results, instrument)
		if fetchErr != nil {
			if errors.Is(fetchErr, context.DeadlineExceeded) {
				row.Status = StatusTimeout
			} else {
				row.Status = StatusFetchFailed
			}
			row.Detail = fetchErr.Error()
			continue
		}

		verdict := validator.Validate(series, instrument, engine.cfg.Validation)
		if !verdict.Pass {
			row.Status = StatusValidationFailed
			row.Detail = verdict.Reason
			continue
		}

		stockReturns, pairedBench := data.Align(series.DropNaN().PctChange(), benchReturns)
		if stockReturns.Len() < requiredReturns {
			row.Status = StatusInsufficientData
			row.Detail = fmt.Sprintf("%d aligned observations, need %d", stockReturns.Len(), requiredReturns)
			continue
		}

		aligned[instrument] = metrics.Aligned{
			Stock: stockReturns.Tail(window).Values,
			Bench: pairedBench.Tail(window).Values,
		}
	}

	computed := engine.dispatcher.ComputeAll(ctx, aligned)

	columns := engine.metrics.Names()
	for _, row := range rows {
		if metricsRow, ok := computed[row.Instrument]; ok && row.Status == StatusOK {
			row.Metrics = metricsRow
			continue
		}
		row.Metrics = blankMetrics(columns)
		if row.Status == StatusOK {
			// instrument survived validation but the compute pool never ran it
			row.Status = StatusTimeout
			row.Detail = "metric computation did not complete"
		}
	}

	table := &Table{Columns: columns, Rows: rows}
	table.SortByMetric(metrics.MetricInformationRatio)

	subLog.Info().Int("NumRows", len(table.Rows)).Msg("screen complete")
	return table, nil
}

// resolveBenchmark maps a friendly benchmark name to its provider symbol.
// Resolved symbols come from configuration and may carry index prefixes like
// ^GSPC, so they bypass Sanitize.
func (engine *Engine) resolveBenchmark(name string) (data.Instrument, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if symbol, ok := engine.cfg.Benchmarks[key]; ok {
		return data.Instrument(symbol), nil
	}
	if symbol, ok := engine.cfg.Benchmarks[name]; ok {
		return data.Instrument(symbol), nil
	}
	return "", fmt.Errorf("%w: %q", data.ErrUnknownBenchmark, name)
}

// fetchPeriod computes the half-open fetch window ending today (exclusive),
// widened beyond the lookback by the configured calendar-day buffer
func (engine *Engine) fetchPeriod(lookback int) *data.Interval {
	nyc := common.GetTimezone()
	now := time.Now().In(nyc)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc)
	begin := end.AddDate(0, 0, -(lookback + engine.cfg.FetchBufferDays))
	return data.NewInterval(begin, end)
}

// safeDownload reads one instrument's batch outcome, containing any failure
// as an empty series plus the recorded error so every pipeline stage treats
// instruments uniformly
func safeDownload(results map[data.Instrument]data.FetchResult, instrument data.Instrument) (*data.Series, error) {
	res, ok := results[instrument]
	if !ok {
		return &data.Series{}, fmt.Errorf("%w: %s", data.ErrDataUnavailable, instrument)
	}
	if res.Err != nil {
		return &data.Series{}, res.Err
	}
	if res.Series == nil {
		return &data.Series{}, nil
	}
	return res.Series, nil
}

// blankMetrics builds a full-width not-computable metrics map so failed rows
// keep the same schema as successful ones
func blankMetrics(columns []string) map[string]metrics.Result {
	blank := make(map[string]metrics.Result, len(columns))
	for _, column := range columns {
		blank[column] = metrics.NotComputable()
	}
	return blank
}
