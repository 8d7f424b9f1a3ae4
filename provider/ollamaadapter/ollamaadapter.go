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
// Package ollamaadapter is a reference provider.Adapter implementation
// against an Ollama-compatible /api/chat endpoint — the natural
// reference backend for "open-weight models" this CLI targets.
//
// Ollama's streaming wire format is newline-delimited JSON objects, not
// a text/event-stream; the teacher's SSE client (github.com/r3labs/sse)
// doesn't apply here, so this adapter reads with bufio.Scanner over the
// stdlib http.Response body instead (documented in DESIGN.md's provider
// section).
package ollamaadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/provider"
)

// Adapter streams chat completions from an Ollama-compatible server.
type Adapter struct {
	BaseURL string
	Client  *http.Client
	Caps    provider.Capabilities
}

// New creates an adapter targeting baseURL (e.g. "http://localhost:11434").
func New(baseURL string) *Adapter {
	return &Adapter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 0}, // streaming: no fixed timeout, caller's ctx governs
		Caps:    provider.Capabilities{UsesThinkMarkers: true},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  wireOptions   `json:"options,omitempty"`
}

type wireOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	Seed        int64   `json:"seed,omitempty"`
}

type wireChunk struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

// StreamChat implements provider.Adapter.
func (a *Adapter) StreamChat(ctx context.Context, req provider.Request) (<-chan provider.Event, error) {
	wireMsgs := make([]wireMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		wireMsgs = append(wireMsgs, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		wireMsgs = append(wireMsgs, wireMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(wireRequest{
		Model:    req.Model,
		Messages: wireMsgs,
		Stream:   true,
		Options: wireOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  req.Options.MaxTokens,
			Seed:        req.Options.Seed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ollamaadapter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollamaadapter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollamaadapter: request failed: %w", err)
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("ollamaadapter: provider returned %d", resp.StatusCode)
	}

	events := make(chan provider.Event, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk wireChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				events <- provider.Event{Kind: provider.EventError, ErrorCode: "protocol", ErrorMessage: err.Error()}
				return
			}

			if chunk.Message.Content != "" {
				events <- provider.Event{Kind: provider.EventText, Chunk: chunk.Message.Content}
			}
			if chunk.Done {
				events <- provider.Event{Kind: provider.EventFinish, FinishReason: chunk.DoneReason}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			events <- provider.Event{Kind: provider.EventError, ErrorCode: "transport", ErrorMessage: err.Error()}
		}
	}()

	return events, nil
}

// CountTokens implements provider.Adapter by reporting unsupported;
// Ollama's /api/chat doesn't expose a tokenizer endpoint, so callers
// fall back to internal/tokencount's estimator.
func (a *Adapter) CountTokens(ctx context.Context, req provider.Request) (int, error) {
	return 0, provider.ErrCountTokensUnsupported
}

// Capabilities implements provider.CapableAdapter.
func (a *Adapter) Capabilities() provider.Capabilities { return a.Caps }

// Healthy does a cheap liveness check against the server root, useful
// for CLI startup diagnostics.
func (a *Adapter) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
