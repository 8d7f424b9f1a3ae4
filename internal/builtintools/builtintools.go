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
// Package builtintools registers the small set of filesystem and shell
// tools the runtime ships out of the box, adapted from the teacher's
// builtin tool package (pkg/shuttle/builtin/file_read.go,
// file_write.go, shell_execute.go) onto this runtime's declarative
// toolregistry.Tool shape instead of the teacher's Name()/Description()
// interface.
package builtintools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Tecet/OLLM-CLI-sub019/internal/toolregistry"
)

const (
	maxReadBytes  = 10 * 1024 * 1024
	maxShellBytes = 1024 * 1024
)

// Register adds the builtin tools to r, resolving relative paths against
// baseDir (typically the workspace the CLI was started in).
func Register(r *toolregistry.Registry, baseDir string) {
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	}

	r.Register(toolregistry.Tool{
		Name:        "read_file",
		Description: "Reads a UTF-8 text file from the local filesystem and returns its content.",
		Capability:  "file_read",
		Parameters: toolregistry.Schema{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "path to the file, relative to the workspace root"},
			},
			"required": []string{"path"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				return "", fmt.Errorf("read_file: missing path argument")
			}
			resolved, err := resolveWithin(baseDir, path)
			if err != nil {
				return "", err
			}
			info, err := os.Stat(resolved)
			if err != nil {
				return "", err
			}
			if info.Size() > maxReadBytes {
				return "", fmt.Errorf("read_file: %s is %d bytes, exceeds the %d byte limit", path, info.Size(), maxReadBytes)
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	})

	r.Register(toolregistry.Tool{
		Name:        "write_file",
		Description: "Writes UTF-8 text content to a file on the local filesystem, creating parent directories as needed.",
		Capability:  "file_write",
		Parameters: toolregistry.Schema{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "path to the file, relative to the workspace root"},
				"content": map[string]any{"type": "string", "description": "content to write"},
			},
			"required": []string{"path", "content"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if path == "" {
				return "", fmt.Errorf("write_file: missing path argument")
			}
			resolved, err := resolveWithin(baseDir, path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(resolved), 0o750); err != nil {
				return "", err
			}
			if err := os.WriteFile(resolved, []byte(content), 0o600); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
		},
	})

	r.Register(toolregistry.Tool{
		Name:        "shell_execute",
		Description: "Runs a shell command via /bin/sh -c and returns combined stdout/stderr, bounded to 1MB.",
		Capability:  "shell",
		Parameters: toolregistry.Schema{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "command to run"},
			},
			"required": []string{"command"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			command, _ := args["command"].(string)
			if command == "" {
				return "", fmt.Errorf("shell_execute: missing command argument")
			}
			cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
			cmd.Dir = baseDir
			out, err := cmd.CombinedOutput()
			if len(out) > maxShellBytes {
				out = out[:maxShellBytes]
			}
			if err != nil {
				return string(out), fmt.Errorf("shell_execute: %w", err)
			}
			return string(out), nil
		},
	})
}

// resolveWithin joins path onto baseDir and refuses any result that
// escapes baseDir via "..", mirroring the teacher's session-boundary
// check (pkg/shuttle/builtin/shell_execute.go restrictReads/Writes).
func resolveWithin(baseDir, path string) (string, error) {
	resolved := filepath.Join(baseDir, path)
	rel, err := filepath.Rel(baseDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace root", path)
	}
	return resolved, nil
}
