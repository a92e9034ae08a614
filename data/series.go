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
	"math"
	"sort"
	"time"
)

// Instrument is a normalized security symbol: upper-case, trimmed, restricted
// to [A-Z0-9.-]. Benchmark index symbols resolved from configuration (e.g.
// ^GSPC) bypass normalization and are used as provider symbols directly.
type Instrument string

// EOD is a single end-of-day price observation from a provider
type EOD struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Series is an ordered (date, value) sequence with strictly increasing dates
// and no duplicates. A price series holds raw observations; calling PctChange
// derives the one-element-shorter return series.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// NewSeries builds a series from unordered provider observations; duplicate
// dates keep the last observation
func NewSeries(observations []EOD) *Series {
	// key by unix seconds; time.Time equality is location sensitive
	byDate := make(map[int64]EOD, len(observations))
	for _, obs := range observations {
		byDate[obs.Date.Unix()] = obs
	}

	keys := make([]int64, 0, len(byDate))
	for key := range byDate {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	res := &Series{
		Dates:  make([]time.Time, len(keys)),
		Values: make([]float64, len(keys)),
	}
	for idx, key := range keys {
		res.Dates[idx] = byDate[key].Date
		res.Values[idx] = byDate[key].Close
	}

	return res
}

func (series *Series) Len() int {
	return len(series.Dates)
}

func (series *Series) Copy() *Series {
	res := &Series{
		Dates:  make([]time.Time, len(series.Dates)),
		Values: make([]float64, len(series.Values)),
	}
	copy(res.Dates, series.Dates)
	copy(res.Values, series.Values)
	return res
}

// Valid returns an error unless dates are strictly increasing
func (series *Series) Valid() error {
	if len(series.Dates) != len(series.Values) {
		return ErrUnalignedSeries
	}
	for idx := 1; idx < len(series.Dates); idx++ {
		if !series.Dates[idx-1].Before(series.Dates[idx]) {
			return ErrUnalignedSeries
		}
	}
	return nil
}

// Period returns the half-open interval [first date, last date + 1 day)
// spanned by the series observations
func (series *Series) Period() *Interval {
	if series.Len() == 0 {
		return nil
	}
	return &Interval{
		Begin: series.Dates[0],
		End:   series.Dates[series.Len()-1].AddDate(0, 0, 1),
	}
}

// Clip returns the subset of the series falling within interval
func (series *Series) Clip(interval *Interval) *Series {
	res := &Series{}
	for idx, dt := range series.Dates {
		if interval.ContainsDate(dt) {
			res.Dates = append(res.Dates, dt)
			res.Values = append(res.Values, series.Values[idx])
		}
	}
	return res
}

// Tail returns the trailing n observations (the whole series when n exceeds
// its length)
func (series *Series) Tail(n int) *Series {
	if n >= series.Len() {
		return series.Copy()
	}
	start := series.Len() - n
	return &Series{
		Dates:  append([]time.Time{}, series.Dates[start:]...),
		Values: append([]float64{}, series.Values[start:]...),
	}
}

// DropNaN removes observations whose value is NaN
func (series *Series) DropNaN() *Series {
	res := &Series{}
	for idx, val := range series.Values {
		if !math.IsNaN(val) {
			res.Dates = append(res.Dates, series.Dates[idx])
			res.Values = append(res.Values, val)
		}
	}
	return res
}

// MissingFraction returns the fraction of NaN observations
func (series *Series) MissingFraction() float64 {
	if series.Len() == 0 {
		return 0
	}
	missing := 0
	for _, val := range series.Values {
		if math.IsNaN(val) {
			missing++
		}
	}
	return float64(missing) / float64(series.Len())
}

// PctChange derives the return series: one element shorter with
// value[i] = price[i+1]/price[i] - 1. NaN observations yield NaN returns.
func (series *Series) PctChange() *Series {
	if series.Len() < 2 {
		return &Series{}
	}

	res := &Series{
		Dates:  make([]time.Time, series.Len()-1),
		Values: make([]float64, series.Len()-1),
	}
	for idx := 1; idx < series.Len(); idx++ {
		res.Dates[idx-1] = series.Dates[idx]
		res.Values[idx-1] = series.Values[idx]/series.Values[idx-1] - 1.0
	}
	return res
}

// Align inner-joins two series on their date index, dropping rows where
// either side is missing or NaN. Both returned series share the same dates.
func Align(a, b *Series) (*Series, *Series) {
	bIdx := make(map[int64]int, b.Len())
	for idx, dt := range b.Dates {
		bIdx[dt.Unix()] = idx
	}

	resA := &Series{}
	resB := &Series{}
	for idx, dt := range a.Dates {
		other, ok := bIdx[dt.Unix()]
		if !ok {
			continue
		}
		if math.IsNaN(a.Values[idx]) || math.IsNaN(b.Values[other]) {
			continue
		}
		resA.Dates = append(resA.Dates, dt)
		resA.Values = append(resA.Values, a.Values[idx])
		resB.Dates = append(resB.Dates, dt)
		resB.Values = append(resB.Values, b.Values[other])
	}

	return resA, resB
}

// MergeSeries combines multiple (possibly overlapping) series into one
// continuous series clipped to interval. Later parts win on duplicate dates.
func MergeSeries(interval *Interval, parts ...*Series) *Series {
	type observation struct {
		date  time.Time
		value float64
	}

	byDate := make(map[int64]observation)
	for _, part := range parts {
		if part == nil {
			continue
		}
		for idx, dt := range part.Dates {
			if interval.ContainsDate(dt) {
				byDate[dt.Unix()] = observation{date: dt, value: part.Values[idx]}
			}
		}
	}

	keys := make([]int64, 0, len(byDate))
	for key := range byDate {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	res := &Series{
		Dates:  make([]time.Time, len(keys)),
		Values: make([]float64, len(keys)),
	}
	for idx, key := range keys {
		res.Dates[idx] = byDate[key].date
		res.Values[idx] = byDate[key].value
	}

	return res
}
