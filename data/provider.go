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
	"context"

	"golang.org/x/time/rate"
)

// Provider retrieves end-of-day price observations for an instrument over a
// half-open date interval. Implementations wrap transient network and
// rate-limit conditions in ErrProviderFailure so callers can retry.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, instrument Instrument, period *Interval) ([]EOD, error)
}

type rateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps a provider with a token-bucket limiter so
// bursts of concurrent fetches do not trip upstream rate limits
func NewRateLimitedProvider(provider Provider, callsPerSecond float64, burst int) Provider {
	return &rateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(callsPerSecond), burst),
	}
}

func (p *rateLimitedProvider) Name() string {
	return p.provider.Name()
}

func (p *rateLimitedProvider) Fetch(ctx context.Context, instrument Instrument, period *Interval) ([]EOD, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.Fetch(ctx, instrument, period)
}
