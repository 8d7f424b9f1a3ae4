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
package builtintools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tecet/OLLM-CLI-sub019/internal/mode"
	"github.com/Tecet/OLLM-CLI-sub019/internal/toolregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*toolregistry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r := toolregistry.New()
	Register(r, dir)
	return r, dir
}

func TestReadFileReturnsContent(t *testing.T) {
	r, dir := newRegistry(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600))

	out, err := r.Invoke(context.Background(), "read_file", mode.Assistant, map[string]any{"path": "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestReadFileRejectsPathEscapingWorkspace(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Invoke(context.Background(), "read_file", mode.Assistant, map[string]any{"path": "../../etc/passwd"})
	assert.Error(t, err)
}

func TestReadFileRejectsMissingPathArgument(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Invoke(context.Background(), "read_file", mode.Assistant, map[string]any{})
	assert.Error(t, err)
}

func TestReadFileRejectsOversizedFile(t *testing.T) {
	r, dir := newRegistry(t)
	big := make([]byte, maxReadBytes+1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.bin"), big, 0o600))

	_, err := r.Invoke(context.Background(), "read_file", mode.Assistant, map[string]any{"path": "big.bin"})
	assert.Error(t, err)
}

func TestWriteFileCreatesParentDirsAndContent(t *testing.T) {
	r, dir := newRegistry(t)

	out, err := r.Invoke(context.Background(), "write_file", mode.Assistant, map[string]any{
		"path": "nested/dir/out.txt", "content": "some content",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "12 bytes")

	data, err := os.ReadFile(filepath.Join(dir, "nested", "dir", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "some content", string(data))
}

func TestWriteFileRejectsPathEscapingWorkspace(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Invoke(context.Background(), "write_file", mode.Assistant, map[string]any{
		"path": "../escape.txt", "content": "x",
	})
	assert.Error(t, err)
}

func TestShellExecuteReturnsCombinedOutput(t *testing.T) {
	r, _ := newRegistry(t)
	out, err := r.Invoke(context.Background(), "shell_execute", mode.Assistant, map[string]any{"command": "echo hi"})
	require.NoError(t, err)
	assert.Contains(t, out, "hi")
}

func TestShellExecuteReturnsOutputAndErrorOnNonZeroExit(t *testing.T) {
	r, _ := newRegistry(t)
	out, err := r.Invoke(context.Background(), "shell_execute", mode.Assistant, map[string]any{"command": "echo oops; exit 1"})
	assert.Error(t, err)
	assert.Contains(t, out, "oops")
}

func TestShellExecuteRejectsMissingCommand(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Invoke(context.Background(), "shell_execute", mode.Assistant, map[string]any{})
	assert.Error(t, err)
}

func TestShellExecuteRunsInBaseDir(t *testing.T) {
	r, dir := newRegistry(t)
	out, err := r.Invoke(context.Background(), "shell_execute", mode.Assistant, map[string]any{"command": "pwd"})
	require.NoError(t, err)
	resolvedDir, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, out, filepath.Base(resolvedDir))
}
