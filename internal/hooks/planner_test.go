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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSeparatesParallelAndSequentialByFilePattern(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{ID: "fmt-go", Source: SourceBuiltin, EventType: "after_tool", Command: "bash", FilePattern: "*.go", Enabled: true})
	r.Register(Hook{ID: "lint-go", Source: SourceBuiltin, EventType: "after_tool", Command: "bash", FilePattern: "*.go", Enabled: true})
	r.Register(Hook{ID: "notify", Source: SourceBuiltin, EventType: "after_tool", Command: "bash", Enabled: true})

	p := NewPlanner(r, RateLimit{})
	plan, refused := p.Plan("after_tool", "main.go")

	assert.Empty(t, refused)
	assert.Len(t, plan.Parallel, 2) // first *.go hook + the unpatterned one
	assert.Len(t, plan.Sequential, 1)
}

func TestPlanExcludesDisabledAndNonMatchingFile(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{ID: "off", Source: SourceBuiltin, EventType: "after_tool", Command: "bash", Enabled: false})
	r.Register(Hook{ID: "py-only", Source: SourceBuiltin, EventType: "after_tool", Command: "bash", FilePattern: "*.py", Enabled: true})

	p := NewPlanner(r, RateLimit{})
	plan, refused := p.Plan("after_tool", "main.go")

	assert.Empty(t, refused)
	assert.Empty(t, plan.Parallel)
	assert.Empty(t, plan.Sequential)
}

func TestPlanRefusesPendingAndUnwhitelistedHooks(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{ID: "w1", Source: SourceWorkspace, EventType: "before_tool", Command: "bash", Enabled: true})
	r.Register(Hook{ID: "bad-cmd", Source: SourceBuiltin, EventType: "before_tool", Command: "curl", Enabled: true})

	p := NewPlanner(r, RateLimit{})
	plan, refused := p.Plan("before_tool", "")

	assert.Empty(t, plan.Parallel)
	assert.Empty(t, plan.Sequential)
	require.Len(t, refused, 2)
}

func TestPlanEnforcesPerHookRateLimit(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{
		ID: "rl", Source: SourceBuiltin, EventType: "before_tool", Command: "bash", Enabled: true,
		RateLimit: &RateLimit{Max: 1, Window: time.Minute},
	})

	p := NewPlanner(r, RateLimit{})

	plan1, refused1 := p.Plan("before_tool", "")
	assert.Empty(t, refused1)
	assert.Len(t, plan1.Parallel, 1)

	plan2, refused2 := p.Plan("before_tool", "")
	assert.Empty(t, refused2)
	assert.Empty(t, plan2.Parallel)
	assert.Empty(t, plan2.Sequential)
}

func TestPlanEnforcesGlobalRateLimit(t *testing.T) {
	r := NewRegistry("")
	r.Register(Hook{ID: "a", Source: SourceBuiltin, EventType: "before_tool", Command: "bash", Enabled: true})
	r.Register(Hook{ID: "b", Source: SourceUser, EventType: "before_tool", Command: "bash", Enabled: true})

	p := NewPlanner(r, RateLimit{Max: 1, Window: time.Minute})
	plan, _ := p.Plan("before_tool", "")

	assert.Len(t, plan.Parallel, 1)
}
