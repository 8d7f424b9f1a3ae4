// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package ctxpool implements the stateful context pool of spec.md §4.2:
// the holder of {user size, provider size, current tokens, active
// requests} that serializes resize against in-flight requests.
package ctxpool

import (
	"context"
	"sync"

	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxsize"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"go.uber.org/zap"
)

// Usage is the read model returned by Usage(). The UI reads
// PercentOfUser; the memory guard reads PercentOfProvider.
type Usage struct {
	Current           int
	UserSize          int
	ProviderSize      int
	PercentOfUser     float64
	PercentOfProvider float64
}

// Pool is the stateful context pool. Zero value is not usable; use New.
type Pool struct {
	profile ctxsize.Profile

	mu             sync.Mutex
	userSize       int
	providerSize   int
	currentTokens  int
	activeRequests int

	// drained is created by a Resize that has to wait for activeRequests
	// to reach zero; FinishRequest closes it and resets it to nil when the
	// count reaches zero, waking the waiting Resize.
	drained chan struct{}
}

// New creates a pool at the given user size, deriving provider size from
// the profile.
func New(userSize int, profile ctxsize.Profile) *Pool {
	p := &Pool{
		profile:      profile,
		userSize:     userSize,
		providerSize: ctxsize.ProviderSizeFromUser(userSize, profile),
	}
	return p
}

// SetTokens records the current token count held by the live
// conversation (messages + active checkpoints).
func (p *Pool) SetTokens(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTokens = n
}

// AddRequest marks a request as started, blocking any resize that is
// waiting for activeRequests to reach zero until FinishRequest is called.
func (p *Pool) AddRequest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drained != nil {
		rtlog.Info("ctxpool: request started while a resize was waiting to commit")
	}
	p.activeRequests++
}

// FinishRequest marks a request as finished.
func (p *Pool) FinishRequest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeRequests > 0 {
		p.activeRequests--
	}
	if p.activeRequests == 0 && p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
}

// Sizes is the {user_size, provider_size} pair returned by Resize.
type Sizes struct {
	UserSize     int
	ProviderSize int
}

// Resize waits for activeRequests to reach zero, then atomically updates
// both sizes and returns them. A resize to the identical size is a
// no-op: no wait, no event (spec.md §8 boundary behavior).
func (p *Pool) Resize(ctx context.Context, newUserSize int) (Sizes, error) {
	p.mu.Lock()
	if newUserSize == p.userSize {
		sizes := Sizes{UserSize: p.userSize, ProviderSize: p.providerSize}
		p.mu.Unlock()
		return sizes, nil
	}

	for p.activeRequests > 0 {
		if p.drained == nil {
			p.drained = make(chan struct{})
		}
		wait := p.drained
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Sizes{}, ctx.Err()
		}

		p.mu.Lock()
	}

	p.userSize = newUserSize
	p.providerSize = ctxsize.ProviderSizeFromUser(newUserSize, p.profile)
	sizes := Sizes{UserSize: p.userSize, ProviderSize: p.providerSize}
	p.mu.Unlock()

	rtlog.Info("ctxpool: resized",
		zap.Int("user_size", sizes.UserSize),
		zap.Int("provider_size", sizes.ProviderSize))

	return sizes, nil
}

// Usage returns the current usage snapshot.
func (p *Pool) Usage() Usage {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := Usage{
		Current:      p.currentTokens,
		UserSize:     p.userSize,
		ProviderSize: p.providerSize,
	}
	if p.userSize > 0 {
		u.PercentOfUser = float64(p.currentTokens) / float64(p.userSize)
	}
	if p.providerSize > 0 {
		u.PercentOfProvider = float64(p.currentTokens) / float64(p.providerSize)
	}
	return u
}

// ActiveRequests reports the number of in-flight requests.
func (p *Pool) ActiveRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeRequests
}
