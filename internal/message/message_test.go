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
package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeIsIdempotent(t *testing.T) {
	m := New("1", RoleUser, "hello")
	assert.False(t, m.IsFinalized())

	m.Finalize(3)
	assert.Equal(t, 3, m.TokenCount)
	assert.True(t, m.IsFinalized())

	m.Finalize(99)
	assert.Equal(t, 3, m.TokenCount, "a second Finalize must not overwrite the cached count")
}

func TestToolCallFinished(t *testing.T) {
	assert.False(t, ToolCall{}.Finished())
	assert.True(t, ToolCall{Result: "ok"}.Finished())
	assert.True(t, ToolCall{Error: "boom"}.Finished())
}

func TestStoreAddAndReplaceRange(t *testing.T) {
	s := NewStore()
	s.AddMessage(New("1", RoleUser, "a"))
	s.AddMessage(New("2", RoleAssistant, "b"))
	s.AddMessage(New("3", RoleUser, "c"))

	removed := s.ReplaceRange(0, 2)
	require.Equal(t, []string{"1", "2"}, removed)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "3", s.Messages()[0].ID)
}

func TestReplaceRangeRejectsInvalidBounds(t *testing.T) {
	s := NewStore()
	s.AddMessage(New("1", RoleUser, "a"))

	assert.Nil(t, s.ReplaceRange(1, 0))
	assert.Nil(t, s.ReplaceRange(-1, 1))
	assert.Nil(t, s.ReplaceRange(0, 5))
	assert.Equal(t, 1, s.Len())
}

func TestStoreByID(t *testing.T) {
	s := NewStore()
	s.AddMessage(New("1", RoleUser, "a"))

	found, ok := s.ByID("1")
	require.True(t, ok)
	assert.Equal(t, "a", found.Content)

	_, ok = s.ByID("missing")
	assert.False(t, ok)
}

func TestClearAndReplace(t *testing.T) {
	s := NewStore()
	s.AddMessage(New("1", RoleUser, "a"))
	s.Clear()
	assert.Equal(t, 0, s.Len())

	s.Replace([]Message{New("2", RoleUser, "b"), New("3", RoleAssistant, "c")})
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "2", s.Messages()[0].ID)
}

func TestMessagesReturnsACopy(t *testing.T) {
	s := NewStore()
	s.AddMessage(New("1", RoleUser, "a"))

	out := s.Messages()
	out[0].Content = "mutated"

	assert.Equal(t, "a", s.Messages()[0].Content, "Messages() must not expose the internal slice")
}
