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
// Package tokencount estimates token usage for prompts and messages,
// caching per-message counts. Grounded on the teacher's tiktoken-backed
// counter (pkg/agent/token_counter.go): cl100k_base is a reasonable
// stand-in encoding for open-weight chat models that don't expose their
// own tokenizer through the provider adapter contract.
package tokencount

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
)

// perMessageOverhead approximates the role/formatting tokens a chat
// template adds around each message's raw content.
const perMessageOverhead = 10

// Counter estimates token counts for text and messages.
type Counter struct {
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

var (
	once   sync.Once
	global *Counter
)

// Get returns the process-wide counter, built once on first use.
func Get() *Counter {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			global = &Counter{}
			return
		}
		global = &Counter{encoder: enc}
	})
	return global
}

// New builds a standalone counter, useful in tests where the global
// singleton shouldn't be shared.
func New() *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Counter{}
	}
	return &Counter{encoder: enc}
}

// Count returns the estimated token count of a string. Falls back to a
// char/4 heuristic if the encoder failed to load.
func (c *Counter) Count(text string) int {
	if c.encoder == nil {
		return len(text) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// CountMessage estimates the token count of a single message, including
// per-message overhead, content, tool calls, and any reasoning block.
func (c *Counter) CountMessage(m message.Message) int {
	total := perMessageOverhead
	total += c.Count(m.Content)
	for _, tc := range m.ToolCalls {
		total += c.Count(fmt.Sprintf("%s%v%s%s", tc.Name, tc.Args, tc.Result, tc.Error))
	}
	if m.Reasoning != nil {
		total += c.Count(m.Reasoning.Content)
	}
	return total
}

// CountMessages sums CountMessage across a slice of messages.
func (c *Counter) CountMessages(messages []message.Message) int {
	total := 0
	for _, m := range messages {
		total += c.CountMessage(m)
	}
	return total
}
