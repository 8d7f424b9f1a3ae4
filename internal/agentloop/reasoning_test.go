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
package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasoningParserNoMarkers(t *testing.T) {
	p := &reasoningParser{}
	p.Feed("plain text, no reasoning here")

	assert.Equal(t, "plain text, no reasoning here", p.VisibleText())
	assert.False(t, p.Started())
	content, complete := p.Reasoning()
	assert.Empty(t, content)
	assert.False(t, complete)
}

func TestReasoningParserSingleChunk(t *testing.T) {
	p := &reasoningParser{}
	p.Feed("before <think>hidden reasoning</think> after")

	assert.Equal(t, "before  after", p.VisibleText())
	content, complete := p.Reasoning()
	require.True(t, complete)
	assert.Equal(t, "hidden reasoning", content)
	assert.True(t, p.Started())
}

func TestReasoningParserAcrossChunks(t *testing.T) {
	p := &reasoningParser{}
	p.Feed("before <think>part one ")
	p.Feed("part two</think> after")

	assert.Equal(t, "before  after", p.VisibleText())
	content, complete := p.Reasoning()
	require.True(t, complete)
	assert.Equal(t, "part one part two", content)
}

func TestReasoningParserUnclosedMarker(t *testing.T) {
	p := &reasoningParser{}
	p.Feed("before <think>never closes")

	assert.Equal(t, "before ", p.VisibleText())
	_, complete := p.Reasoning()
	assert.False(t, complete)
	assert.True(t, p.Started())
}

func TestReasoningParserMultipleRegions(t *testing.T) {
	p := &reasoningParser{}
	p.Feed("<think>one</think>mid<think>two</think>end")

	assert.Equal(t, "midend", p.VisibleText())
	content, complete := p.Reasoning()
	assert.True(t, complete)
	assert.Equal(t, "onetwo", content)
}
