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
	"bytes"
	"io"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
)

// seriesWire is the cache blob payload. Values are pointers so missing
// observations (NaN) survive the JSON round trip as null.
type seriesWire struct {
	Dates  []int64    `json:"dates"`
	Values []*float64 `json:"values"`
}

func encodeSeries(series *Series) ([]byte, error) {
	wire := seriesWire{
		Dates:  make([]int64, series.Len()),
		Values: make([]*float64, series.Len()),
	}
	for idx := range series.Dates {
		wire.Dates[idx] = series.Dates[idx].Unix()
		if !math.IsNaN(series.Values[idx]) {
			val := series.Values[idx]
			wire.Values[idx] = &val
		}
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	zw := lz4.NewWriter(buf)
	if _, err := io.Copy(zw, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeSeries(payload []byte, tz *time.Location) (*Series, error) {
	buf := &bytes.Buffer{}
	zr := lz4.NewReader(bytes.NewReader(payload))
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, ErrCacheCorrupt
	}

	var wire seriesWire
	if err := json.Unmarshal(buf.Bytes(), &wire); err != nil {
		return nil, ErrCacheCorrupt
	}
	if len(wire.Dates) != len(wire.Values) {
		return nil, ErrCacheCorrupt
	}

	series := &Series{
		Dates:  make([]time.Time, len(wire.Dates)),
		Values: make([]float64, len(wire.Values)),
	}
	for idx := range wire.Dates {
		series.Dates[idx] = time.Unix(wire.Dates[idx], 0).In(tz)
		if wire.Values[idx] == nil {
			series.Values[idx] = math.NaN()
		} else {
			series.Values[idx] = *wire.Values[idx]
		}
	}

	if err := series.Valid(); err != nil {
		return nil, ErrCacheCorrupt
	}

	return series, nil
}
