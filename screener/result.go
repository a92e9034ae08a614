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
	"sort"

	"github.com/penny-vault/pv-screener/data"
	"github.com/penny-vault/pv-screener/metrics"
)

// Status communicates exactly which stage failed for an instrument
type Status string

const (
	StatusOK               Status = "ok"
	StatusInvalid          Status = "invalid"
	StatusFetchFailed      Status = "fetch-failed"
	StatusValidationFailed Status = "validation-failed"
	StatusInsufficientData Status = "insufficient-data"
	StatusTimeout          Status = "timeout"
)

// Row is one instrument's screening outcome. The metrics map always holds
// every registered metric; failed instruments carry not-computable
// sentinels so consumers can rely on a stable schema.
type Row struct {
	Instrument data.Instrument
	Status     Status
	Detail     string
	Metrics    map[string]metrics.Result
}

// Table is the screening result: one row per requested identifier plus the
// stable metric column list
type Table struct {
	Columns []string
	Rows    []*Row
}

// SortByMetric orders rows by the named metric, descending; rows whose
// metric is not computable sort last, keeping their relative order
func (table *Table) SortByMetric(name string) {
	sort.SliceStable(table.Rows, func(i, j int) bool {
		a, aOK := table.Rows[i].Metrics[name]
		b, bOK := table.Rows[j].Metrics[name]
		aOK = aOK && a.OK
		bOK = bOK && b.OK
		if aOK && bOK {
			return a.Value > b.Value
		}
		return aOK && !bOK
	})
}

// Statuses returns a per-instrument status summary
func (table *Table) Statuses() map[data.Instrument]Status {
	statuses := make(map[data.Instrument]Status, len(table.Rows))
	for _, row := range table.Rows {
		statuses[row.Instrument] = row.Status
	}
	return statuses
}
