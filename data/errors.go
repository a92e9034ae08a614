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

import "errors"

var (
	ErrInvalidIdentifier = errors.New("invalid instrument identifier")
	ErrInvalidTimeRange  = errors.New("begin must be before end")
	ErrBeginAfterEnd     = errors.New("invalid interval; begin after end date")
	ErrProviderFailure   = errors.New("market data provider call failed")
	ErrDataUnavailable   = errors.New("data unavailable for instrument")
	ErrCacheCorrupt      = errors.New("cache entry could not be deserialized")
	ErrUnknownBenchmark  = errors.New("unknown benchmark")
	ErrInsufficientData  = errors.New("insufficient data points")
	ErrEmptySeries       = errors.New("series contains no observations")
	ErrUnalignedSeries   = errors.New("series dates are not aligned")
)
