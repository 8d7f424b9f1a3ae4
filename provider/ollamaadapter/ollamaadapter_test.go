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
package ollamaadapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func ndjsonServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
}

func TestStreamChatParsesTextChunksThenFinish(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"hel"},"done":false}`,
		`{"message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	})
	defer srv.Close()

	a := New(srv.URL)
	ch, err := a.StreamChat(context.Background(), provider.Request{Model: "llama3"})
	require.NoError(t, err)

	events := drain(ch)
	require.Len(t, events, 3)
	assert.Equal(t, "hel", events[0].Chunk)
	assert.Equal(t, "lo", events[1].Chunk)
	assert.Equal(t, provider.EventFinish, events[2].Kind)
	assert.Equal(t, "stop", events[2].FinishReason)
}

func TestStreamChatEmitsProtocolErrorOnMalformedLine(t *testing.T) {
	srv := ndjsonServer(t, []string{`not json at all`})
	defer srv.Close()

	a := New(srv.URL)
	ch, err := a.StreamChat(context.Background(), provider.Request{Model: "llama3"})
	require.NoError(t, err)

	events := drain(ch)
	require.Len(t, events, 1)
	assert.Equal(t, provider.EventError, events[0].Kind)
	assert.Equal(t, "protocol", events[0].ErrorCode)
}

func TestStreamChatReturnsErrorOn5xxBeforeStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := New(srv.URL)
	_, err := a.StreamChat(context.Background(), provider.Request{Model: "llama3"})
	assert.Error(t, err)
}

func TestStreamChatStopsOnContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"first"},"done":false}`)
		if flusher != nil {
			flusher.Flush()
		}
		time.Sleep(200 * time.Millisecond)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"second"},"done":true}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := New(srv.URL)
	ch, err := a.StreamChat(ctx, provider.Request{Model: "llama3"})
	require.NoError(t, err)

	<-ch // consume the first event
	cancel()

	// the channel must close without yielding the second event
	for ev := range ch {
		assert.NotEqual(t, "second", ev.Chunk)
	}
}

func TestCountTokensReportsUnsupported(t *testing.T) {
	a := New("http://localhost:11434")
	_, err := a.CountTokens(context.Background(), provider.Request{})
	assert.ErrorIs(t, err, provider.ErrCountTokensUnsupported)
}

func TestCapabilitiesReportsThinkMarkers(t *testing.T) {
	a := New("http://localhost:11434")
	assert.True(t, a.Capabilities().UsesThinkMarkers)
}

func TestHealthyReturnsNilWhenServerResponds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(srv.URL)
	assert.NoError(t, a.Healthy(context.Background()))
}

func TestHealthyReturnsErrorWhenServerUnreachable(t *testing.T) {
	a := New("http://127.0.0.1:1")
	assert.Error(t, a.Healthy(context.Background()))
}
