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
// Package fakeadapter is a scriptable provider.Adapter used throughout
// the runtime's test suite, so agent-loop and compression tests don't
// depend on a live model backend.
package fakeadapter

import (
	"context"

	"github.com/Tecet/OLLM-CLI-sub019/provider"
)

// Script is one canned response a Fake will play back for a single
// StreamChat call.
type Script struct {
	Events []provider.Event
	Err    error
}

// Fake is a provider.Adapter that plays back a queue of Scripts in
// order, one per StreamChat call. Once exhausted, it replays the last
// script forever.
type Fake struct {
	Scripts []Script
	Caps    provider.Capabilities

	calls int
	// Requests records every request StreamChat was called with, so
	// tests can assert on what the agent loop sent.
	Requests []provider.Request
}

// New creates a Fake with the given scripted responses.
func New(scripts ...Script) *Fake {
	return &Fake{Scripts: scripts}
}

// StreamChat implements provider.Adapter.
func (f *Fake) StreamChat(ctx context.Context, req provider.Request) (<-chan provider.Event, error) {
	f.Requests = append(f.Requests, req)

	idx := f.calls
	if idx >= len(f.Scripts) {
		idx = len(f.Scripts) - 1
	}
	f.calls++

	if idx < 0 {
		ch := make(chan provider.Event)
		close(ch)
		return ch, nil
	}

	script := f.Scripts[idx]
	if script.Err != nil {
		return nil, script.Err
	}

	ch := make(chan provider.Event, len(script.Events))
	for _, e := range script.Events {
		select {
		case <-ctx.Done():
			close(ch)
			return ch, ctx.Err()
		default:
		}
		ch <- e
	}
	close(ch)
	return ch, nil
}

// CountTokens implements provider.Adapter by reporting unsupported, so
// callers fall back to the estimator.
func (f *Fake) CountTokens(ctx context.Context, req provider.Request) (int, error) {
	return 0, provider.ErrCountTokensUnsupported
}

// Capabilities implements provider.CapableAdapter.
func (f *Fake) Capabilities() provider.Capabilities { return f.Caps }

// CallCount reports how many times StreamChat has been invoked.
func (f *Fake) CallCount() int { return f.calls }
