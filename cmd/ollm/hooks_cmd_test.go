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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHookDefinition(t *testing.T, home, source, id string) {
	t.Helper()
	dir := filepath.Join(home, "hooks", source)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := `{"id":"` + id + `","name":"` + id + `","command":"bash","event":"pre_tool"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(content), 0o600))
}

func TestHooksListCmdSucceedsOnFreshHome(t *testing.T) {
	originalHome := ollmHome
	defer func() { ollmHome = originalHome }()
	ollmHome = t.TempDir()

	err := hooksListCmd.RunE(hooksListCmd, nil)
	assert.NoError(t, err)
}

func TestHooksApproveCmdApprovesWorkspaceHook(t *testing.T) {
	originalHome := ollmHome
	defer func() { ollmHome = originalHome }()
	ollmHome = t.TempDir()

	writeHookDefinition(t, ollmHome, "workspace", "my-hook")

	err := hooksApproveCmd.RunE(hooksApproveCmd, []string{"my-hook"})
	require.NoError(t, err)

	approvalsPath := filepath.Join(ollmHome, "hooks", "approvals.json")
	_, statErr := os.Stat(approvalsPath)
	assert.NoError(t, statErr, "approving a hook should persist to approvals.json")
}

func TestHooksApproveCmdFailsForUnknownHook(t *testing.T) {
	originalHome := ollmHome
	defer func() { ollmHome = originalHome }()
	ollmHome = t.TempDir()

	err := hooksApproveCmd.RunE(hooksApproveCmd, []string{"nonexistent"})
	assert.Error(t, err)
}
