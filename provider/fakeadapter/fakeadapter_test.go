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
package fakeadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/Tecet/OLLM-CLI-sub019/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan provider.Event) []provider.Event {
	var out []provider.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestStreamChatPlaysBackScriptedEventsInOrder(t *testing.T) {
	f := New(Script{Events: []provider.Event{
		{Kind: provider.EventText, Chunk: "hello"},
		{Kind: provider.EventFinish, FinishReason: "stop"},
	}})

	ch, err := f.StreamChat(context.Background(), provider.Request{Model: "test"})
	require.NoError(t, err)

	events := drain(ch)
	require.Len(t, events, 2)
	assert.Equal(t, "hello", events[0].Chunk)
	assert.Equal(t, "stop", events[1].FinishReason)
}

func TestStreamChatAdvancesThroughMultipleScripts(t *testing.T) {
	f := New(
		Script{Events: []provider.Event{{Kind: provider.EventText, Chunk: "first"}}},
		Script{Events: []provider.Event{{Kind: provider.EventText, Chunk: "second"}}},
	)

	ch1, _ := f.StreamChat(context.Background(), provider.Request{})
	ch2, _ := f.StreamChat(context.Background(), provider.Request{})

	assert.Equal(t, "first", drain(ch1)[0].Chunk)
	assert.Equal(t, "second", drain(ch2)[0].Chunk)
}

func TestStreamChatReplaysLastScriptOnceExhausted(t *testing.T) {
	f := New(Script{Events: []provider.Event{{Kind: provider.EventText, Chunk: "only"}}})

	f.StreamChat(context.Background(), provider.Request{})
	ch, err := f.StreamChat(context.Background(), provider.Request{})
	require.NoError(t, err)
	assert.Equal(t, "only", drain(ch)[0].Chunk)
	assert.Equal(t, 2, f.CallCount())
}

func TestStreamChatReturnsScriptedError(t *testing.T) {
	f := New(Script{Err: errors.New("provider down")})
	_, err := f.StreamChat(context.Background(), provider.Request{})
	assert.Error(t, err)
}

func TestStreamChatRecordsEachRequest(t *testing.T) {
	f := New(Script{Events: []provider.Event{{Kind: provider.EventFinish}}})
	req := provider.Request{Model: "llama"}
	f.StreamChat(context.Background(), req)

	require.Len(t, f.Requests, 1)
	assert.Equal(t, "llama", f.Requests[0].Model)
}

func TestCountTokensReportsUnsupported(t *testing.T) {
	f := New()
	_, err := f.CountTokens(context.Background(), provider.Request{})
	assert.ErrorIs(t, err, provider.ErrCountTokensUnsupported)
}

func TestCapabilitiesReturnsConfiguredValue(t *testing.T) {
	f := New()
	f.Caps = provider.Capabilities{SupportsStructuredTools: true}
	assert.True(t, f.Capabilities().SupportsStructuredTools)
}
