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

// Package validator sanitizes instrument identifiers and quality-checks
// price series. Everything here is a pure function over its inputs.
package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/penny-vault/pv-screener/data"
	"gonum.org/v1/gonum/stat"
)

var validSymbol = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// AnomalyKind classifies a data quality finding
type AnomalyKind string

const (
	AnomalyExtremeJump AnomalyKind = "extreme-jump"
	AnomalyFlatRun     AnomalyKind = "flat-run"
	AnomalyNonPositive AnomalyKind = "non-positive-price"
)

// Anomaly is a single finding at a position in the series
type Anomaly struct {
	Position int
	Kind     AnomalyKind
}

// Policy holds the quality thresholds. These are deliberate policy knobs,
// surfaced through configuration rather than hard-coded.
type Policy struct {
	// MinDataPoints is the minimum series length accepted
	MinDataPoints int

	// MaxMissingFrac is the maximum tolerated fraction of NaN observations
	MaxMissingFrac float64

	// ExtremeSigma flags single-period returns larger than this multiple of
	// the return series' own standard deviation
	ExtremeSigma float64

	// MaxFlatRun flags runs of identical consecutive values at least this
	// long; frozen feeds show up as long flat runs
	MaxFlatRun int

	// MaxAnomalies is how many non-disqualifying anomalies a series may
	// carry before validation fails
	MaxAnomalies int
}

// DefaultPolicy returns the stock thresholds
func DefaultPolicy() Policy {
	return Policy{
		MinDataPoints:  50,
		MaxMissingFrac: 0.10,
		ExtremeSigma:   6.0,
		MaxFlatRun:     5,
		MaxAnomalies:   3,
	}
}

// Result is the outcome of validating one instrument's series
type Result struct {
	Pass      bool
	Reason    string
	Anomalies []Anomaly
}

// Sanitize normalizes a raw ticker string: trimmed, upper-cased, restricted
// to [A-Z0-9.-]. Anything else fails with ErrInvalidIdentifier.
func Sanitize(raw string) (data.Instrument, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty symbol", data.ErrInvalidIdentifier)
	}
	if !validSymbol.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q", data.ErrInvalidIdentifier, raw)
	}
	return data.Instrument(cleaned), nil
}

// Validate quality-checks a price series. A failed check returns Pass=false
// with a human-readable reason; it never returns an error.
func Validate(series *data.Series, instrument data.Instrument, policy Policy) Result {
	if series == nil || series.Len() == 0 {
		return Result{Pass: false, Reason: fmt.Sprintf("no data for %s", instrument)}
	}

	if series.Len() < policy.MinDataPoints {
		return Result{Pass: false, Reason: fmt.Sprintf("insufficient data points: %d", series.Len())}
	}

	if frac := series.MissingFraction(); frac > policy.MaxMissingFrac {
		return Result{Pass: false, Reason: fmt.Sprintf("too many missing values: %.1f%%", frac*100)}
	}

	anomalies := DetectAnomalies(series, policy)
	for _, anomaly := range anomalies {
		if anomaly.Kind == AnomalyNonPositive {
			return Result{
				Pass:      false,
				Reason:    fmt.Sprintf("non-positive price at position %d", anomaly.Position),
				Anomalies: anomalies,
			}
		}
	}

	if len(anomalies) > policy.MaxAnomalies {
		return Result{
			Pass:      false,
			Reason:    fmt.Sprintf("multiple anomalies detected: %d", len(anomalies)),
			Anomalies: anomalies,
		}
	}

	return Result{Pass: true, Reason: "valid", Anomalies: anomalies}
}

// DetectAnomalies scans a price series for quality findings. Pure function;
// it never fails. Used both for diagnostics and by Validate.
func DetectAnomalies(series *data.Series, policy Policy) []Anomaly {
	anomalies := []Anomaly{}
	if series == nil || series.Len() == 0 {
		return anomalies
	}

	// non-positive prices disqualify outright
	for idx, val := range series.Values {
		if !math.IsNaN(val) && val <= 0 {
			anomalies = append(anomalies, Anomaly{Position: idx, Kind: AnomalyNonPositive})
		}
	}

	// extreme single-period moves relative to the series' own volatility
	returns := series.PctChange().DropNaN()
	if returns.Len() > 1 {
		sigma := stat.StdDev(returns.Values, nil)
		if sigma > 0 {
			for idx, ret := range returns.Values {
				if math.Abs(ret) > policy.ExtremeSigma*sigma {
					anomalies = append(anomalies, Anomaly{Position: idx + 1, Kind: AnomalyExtremeJump})
				}
			}
		}
	}

	// runs of identical values suggest a stale or frozen feed
	if policy.MaxFlatRun > 1 {
		runStart := 0
		runLen := 1
		flagRun := func(start, length int) {
			if length >= policy.MaxFlatRun {
				anomalies = append(anomalies, Anomaly{Position: start, Kind: AnomalyFlatRun})
			}
		}
		for idx := 1; idx < series.Len(); idx++ {
			if series.Values[idx] == series.Values[idx-1] && !math.IsNaN(series.Values[idx]) {
				runLen++
				continue
			}
			flagRun(runStart, runLen)
			runStart = idx
			runLen = 1
		}
		flagRun(runStart, runLen)
	}

	return anomalies
}
