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

package data

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"context"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-screener/common"
	"github.com/rs/zerolog/log"
)

var yahooAPI = "https://query1.finance.yahoo.com"

type yahoo struct {
	client    *http.Client
	symbolMap map[Instrument]string
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// NewYahoo creates a market data provider backed by the Yahoo Finance chart
// API. A nil client gets a default with a 30 second timeout.
func NewYahoo(client *http.Client) Provider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &yahoo{
		client: client,
		symbolMap: map[Instrument]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
			"NASDAQ": "^IXIC",
			"DOW":    "^DJI",
		},
	}
}

func (y *yahoo) Name() string {
	return "yahoo"
}

func (y *yahoo) providerSymbol(instrument Instrument) string {
	if mapped, ok := y.symbolMap[instrument]; ok {
		return mapped
	}
	return string(instrument)
}

func (y *yahoo) Fetch(ctx context.Context, instrument Instrument, period *Interval) ([]EOD, error) {
	subLog := log.With().Str("Symbol", string(instrument)).Object("Period", period).Logger()

	requestURL := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=history",
		yahooAPI, url.PathEscape(y.providerSymbol(instrument)), period.Begin.Unix(), period.End.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		subLog.Warn().Err(err).Msg("yahoo http request failed")
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		subLog.Warn().Err(err).Msg("could not read yahoo body")
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, err.Error())
	}

	if resp.StatusCode >= 400 {
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("yahoo returned invalid response code")
		return nil, fmt.Errorf("%w: HTTP status %d", ErrProviderFailure, resp.StatusCode)
	}

	var chart yahooChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		subLog.Warn().Err(err).Msg("could not unmarshal yahoo json")
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, err.Error())
	}

	if chart.Chart.Error != nil {
		subLog.Warn().Str("Code", chart.Chart.Error.Code).Msg("yahoo api error")
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		subLog.Warn().Msg("yahoo returned no data")
		return nil, fmt.Errorf("%w: no data returned", ErrProviderFailure)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	tz := common.GetTimezone()

	observations := make([]EOD, 0, len(result.Timestamp))
	for idx, ts := range result.Timestamp {
		if idx >= len(quote.Close) || quote.Close[idx] == nil {
			// null bars on holidays and half-days
			continue
		}
		dt := time.Unix(ts, 0).In(tz)
		dt = time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, tz)
		observations = append(observations, EOD{Date: dt, Close: *quote.Close[idx]})
	}

	subLog.Debug().Int("Observations", len(observations)).Msg("loaded eod prices from yahoo")
	return observations, nil
}
