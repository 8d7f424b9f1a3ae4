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
package main

import (
	"testing"

	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := NewRuntime(t.TempDir(), "llama3", "http://127.0.0.1:1")
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt
}

func TestNewRuntimeBindsInitialSession(t *testing.T) {
	rt := newTestRuntime(t)
	require.NotNil(t, rt.session)
	assert.Equal(t, "llama3", rt.session.Model)
	assert.NotNil(t, rt.loop)
	assert.NotNil(t, rt.pool)
	assert.NotNil(t, rt.compressor)
	assert.NotNil(t, rt.guard)
}

func TestSwapModelRotatesSessionAndRebindsCollaborators(t *testing.T) {
	rt := newTestRuntime(t)
	firstSessionID := rt.session.ID

	rt.SwapModel("mistral")

	assert.Equal(t, "mistral", rt.session.Model)
	assert.NotEqual(t, firstSessionID, rt.session.ID)
}

func TestNewRotatesSessionKeepingModel(t *testing.T) {
	rt := newTestRuntime(t)
	firstSessionID := rt.session.ID

	rt.New()

	assert.Equal(t, "llama3", rt.session.Model)
	assert.NotEqual(t, firstSessionID, rt.session.ID)
}

func TestClearPreservesLeadingSystemMessage(t *testing.T) {
	rt := newTestRuntime(t)
	sysMsg := message.New("sys", message.RoleSystem, "system prompt")
	rt.session.Messages.AddMessage(sysMsg)
	rt.session.Messages.AddMessage(message.New("u1", message.RoleUser, "hi"))

	rt.Clear()

	assert.Equal(t, 1, rt.session.Messages.Len())
	got, ok := rt.session.Messages.ByID("sys")
	require.True(t, ok)
	assert.Equal(t, "system prompt", got.Content)
}

func TestClearWithNoSystemMessageEmptiesStore(t *testing.T) {
	rt := newTestRuntime(t)
	rt.session.Messages.AddMessage(message.New("u1", message.RoleUser, "hi"))

	rt.Clear()
	assert.Equal(t, 0, rt.session.Messages.Len())
}

func TestShutdownIsIdempotentAndSafeWithoutStart(t *testing.T) {
	rt := &Runtime{}
	assert.NotPanics(t, func() {
		rt.Shutdown()
	})
}
