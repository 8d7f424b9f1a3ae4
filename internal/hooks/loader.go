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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"go.uber.org/zap"
)

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }

// definitionFile is the on-disk JSON shape of one hook definition
// (spec.md §6: "one JSON file per source: builtin/, user/, workspace/,
// downloaded/").
type definitionFile struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	EventType   string            `json:"event"`
	FilePattern string            `json:"file_pattern"`
	Enabled     *bool             `json:"enabled"`
	Env         map[string]string `json:"env"`
	WorkingDir  string            `json:"working_dir"`
	RateLimit   *struct {
		Max       int `json:"max"`
		WindowSec int `json:"window_seconds"`
	} `json:"rate_limit"`
}

var sourceDirs = map[string]Source{
	"builtin":    SourceBuiltin,
	"user":       SourceUser,
	"workspace":  SourceWorkspace,
	"downloaded": SourceDownloaded,
}

// LoadDir walks root/<builtin|user|workspace|downloaded>/*.json, parses
// each hook definition, and registers it. Missing subdirectories are
// skipped, not an error — a fresh $OLLM_HOME has none of them yet.
func LoadDir(registry *Registry, root string) error {
	for name, source := range sourceDirs {
		dir := filepath.Join(root, name)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			h, err := parseDefinition(path, source)
			if err != nil {
				rtlog.Warn("hooks: skipping malformed definition", zap.String("path", path), zap.Error(err))
				continue
			}
			registry.Register(h)
		}
	}
	return nil
}

func parseDefinition(path string, source Source) (Hook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Hook{}, err
	}
	var def definitionFile
	if err := json.Unmarshal(data, &def); err != nil {
		return Hook{}, err
	}

	enabled := true
	if def.Enabled != nil {
		enabled = *def.Enabled
	}

	h := Hook{
		ID:          def.ID,
		Name:        def.Name,
		Command:     def.Command,
		Args:        def.Args,
		EventType:   def.EventType,
		FilePattern: def.FilePattern,
		Source:      source,
		Enabled:     enabled,
		Env:         def.Env,
		WorkingDir:  def.WorkingDir,
	}
	if def.RateLimit != nil {
		h.RateLimit = &RateLimit{Max: def.RateLimit.Max, Window: secondsToDuration(def.RateLimit.WindowSec)}
	}
	return h, nil
}
