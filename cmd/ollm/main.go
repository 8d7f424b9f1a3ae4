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
// Package main wires the runtime's internal packages into a local-first
// CLI, grounded on the teacher's cobra root-command shape (cmd/loom/main.go)
// generalized away from the teacher's gRPC client to an in-process runtime
// talking to a local Ollama-compatible provider.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	ollmHome  string
	modelFlag string
	baseURL   string
)

var rootCmd = &cobra.Command{
	Use:   "ollm",
	Short: "OLLM-CLI - a local-first conversation runtime for LLMs",
	Long: `ollm drives a conversation against a local Ollama-compatible model,
handling context sizing, compression, checkpoints, hooks, and mode
switching without any server round-trip.`,
	RunE: runChat,
}

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultHome := home + "/.ollm"

	rootCmd.PersistentFlags().StringVar(&ollmHome, "home", defaultHome, "runtime home directory (sessions, snapshots, hooks, settings.json)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "llama3", "model name to bind the session to")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:11434", "Ollama-compatible provider base URL")

	rootCmd.AddCommand(hooksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ollm: %v\n", err)
		os.Exit(1)
	}
}
