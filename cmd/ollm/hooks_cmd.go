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
	"fmt"
	"path/filepath"

	"github.com/Tecet/OLLM-CLI-sub019/internal/hooks"
	"github.com/spf13/cobra"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Inspect and approve hooks",
}

var hooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered hook and its trust state",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := hooks.NewRegistry(filepath.Join(ollmHome, "hooks", "approvals.json"))
		if err := hooks.LoadDir(registry, filepath.Join(ollmHome, "hooks")); err != nil {
			return err
		}
		for _, h := range registry.All() {
			fmt.Printf("%-24s %-24s %-10s %v\n", h.ID, h.EventType, h.Trust, h.Enabled)
		}
		return nil
	},
}

var hooksApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a workspace or downloaded hook by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := hooks.NewRegistry(filepath.Join(ollmHome, "hooks", "approvals.json"))
		if err := hooks.LoadDir(registry, filepath.Join(ollmHome, "hooks")); err != nil {
			return err
		}
		if err := registry.Approve(args[0]); err != nil {
			return err
		}
		fmt.Printf("approved %s\n", args[0])
		return nil
	},
}

func init() {
	hooksCmd.AddCommand(hooksListCmd, hooksApproveCmd)
}
