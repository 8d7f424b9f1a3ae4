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
package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchBlockingEventRefusedByHookReply(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{
		ID: "refuse", Name: "refuse", Source: SourceBuiltin, Command: "bash",
		Args: []string{"-c", `echo '{"continue":false,"systemMessage":"nope"}'`},
		EventType: "before_tool", Enabled: true,
	})
	d := NewDispatcher(r, NewPlanner(r, RateLimit{}), NewRunner())

	cont, msg, err := d.Dispatch(context.Background(), "before_tool", map[string]any{})

	require.NoError(t, err)
	assert.False(t, cont)
	assert.Contains(t, msg, "nope")
}

func TestDispatchNonBlockingEventNeverRefuses(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{
		ID: "refuse", Name: "refuse", Source: SourceBuiltin, Command: "bash",
		Args: []string{"-c", `echo '{"continue":false,"systemMessage":"fyi"}'`},
		EventType: "after_tool", Enabled: true,
	})
	d := NewDispatcher(r, NewPlanner(r, RateLimit{}), NewRunner())

	cont, msg, err := d.Dispatch(context.Background(), "after_tool", map[string]any{})

	require.NoError(t, err)
	assert.True(t, cont)
	assert.Contains(t, msg, "fyi")
}

func TestDispatchRefusesUntrustedHookOnBlockingEvent(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{ID: "w1", Name: "untrusted", Source: SourceWorkspace, Command: "bash", EventType: "before_tool", Enabled: true})
	d := NewDispatcher(r, NewPlanner(r, RateLimit{}), NewRunner())

	cont, msg, err := d.Dispatch(context.Background(), "before_tool", map[string]any{})

	require.NoError(t, err)
	assert.False(t, cont)
	assert.Contains(t, msg, "untrusted")
}

func TestDispatchWithNoHooksContinues(t *testing.T) {
	r := NewRegistry("")
	d := NewDispatcher(r, NewPlanner(r, RateLimit{}), NewRunner())

	cont, msg, err := d.Dispatch(context.Background(), "before_tool", map[string]any{})

	require.NoError(t, err)
	assert.True(t, cont)
	assert.Empty(t, msg)
}

func TestFoldNonBlockingTimeoutNeverBlocks(t *testing.T) {
	d := &Dispatcher{}
	ex := Execution{Hook: Hook{Name: "slow"}, Status: StatusTimedOut, Reply: Reply{Continue: false}}

	ok, msg := d.fold(ex, false)

	assert.True(t, ok)
	assert.Contains(t, msg, "timed out")
}

func TestFoldBlockingFailureBlocks(t *testing.T) {
	d := &Dispatcher{}
	ex := Execution{Hook: Hook{Name: "broken"}, Status: StatusFailed}

	ok, _ := d.fold(ex, true)

	assert.False(t, ok)
}
